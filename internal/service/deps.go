package service

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/generator"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/period"
)

// ── 通用业务错误 ──

var (
	ErrInvalidWeekStart = errors.New("week_start 必须为 YYYY-MM-DD 格式的周三")
	ErrPermissionDenied = errors.New("无权限执行该操作")
)

// Cache 缓存读写与失效广播，*redis.Client 实现该接口
type Cache interface {
	GetJSON(ctx context.Context, key string, dst interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Publish(ctx context.Context, channel string, payload interface{}) error
}

// Locker 分布式锁，*redis.Client 实现该接口
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// GenerationTrigger 排程生成入口，*generator.Dispatcher 实现该接口
type GenerationTrigger interface {
	Enqueue(ctx context.Context, job generator.Job) (string, bool)
	Run(ctx context.Context, job generator.Job) (string, error)
}

// Deps 业务层外部依赖
// Cache、Locker 可为 nil（Redis 不可用时降级）
type Deps struct {
	Clock    period.Clock
	Resolver *period.Resolver
	Trigger  GenerationTrigger
	Cache    Cache
	Locker   Locker
}

func (d Deps) now() time.Time {
	if d.Clock == nil {
		return time.Now()
	}
	return d.Clock.Now()
}

// resolveWeek 解析 week_start，为空时取当前计划周
func resolveWeek(d Deps, s string) (time.Time, error) {
	if s == "" {
		return d.Resolver.Resolve(d.now()).WeekStart, nil
	}
	w, err := period.ParseWeekStart(s)
	if err != nil {
		return time.Time{}, ErrInvalidWeekStart
	}
	return w, nil
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// progressPercent round(completed/total*100)，total 为 0 时返回 0
func progressPercent(completed, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(completed) / float64(total) * 100))
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTimestamp(*t)
}
