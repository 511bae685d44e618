package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/generator"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/repository"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/period"
)

// InvalidationChannel 缓存失效事件频道
const InvalidationChannel = "agenda:invalidate"

// InvalidationEvent 缓存失效事件
type InvalidationEvent struct {
	Reason    string `json:"reason"` // toggle | validation | generated
	UserID    string `json:"user_id,omitempty"`
	OrgID     string `json:"organization_id,omitempty"`
	WeekStart string `json:"week_start"`
	At        string `json:"at"`
}

func weekCacheKey(userID string, weekStart time.Time) string {
	return fmt.Sprintf("agenda:week:%s:%s", userID, period.FormatDate(weekStart))
}

func statsCacheKey(userID string) string {
	return "agenda:stats:" + userID
}

// Invalidator 写入提交后通知读方：删除周排程与全局进度缓存并广播事件
// 失败只记录日志
type Invalidator struct {
	repo   *repository.Repository
	cache  Cache
	logger *zap.Logger
}

// NewInvalidator 创建缓存失效通知器，cache 为 nil 时为空操作
func NewInvalidator(repo *repository.Repository, cache Cache, logger *zap.Logger) *Invalidator {
	return &Invalidator{repo: repo, cache: cache, logger: logger}
}

// User 单个用户某周数据变更
func (i *Invalidator) User(ctx context.Context, reason, userID string, weekStart time.Time) {
	if i == nil || i.cache == nil {
		return
	}
	if err := i.cache.Delete(ctx, weekCacheKey(userID, weekStart), statsCacheKey(userID)); err != nil {
		i.logger.Warn("删除缓存失败", zap.String("user_id", userID), zap.Error(err))
	}
	i.publish(ctx, InvalidationEvent{
		Reason:    reason,
		UserID:    userID,
		WeekStart: period.FormatDate(weekStart),
	})
}

// OnGenerated 生成任务成功后的回调
// 组织级任务按该周已提交可用时间的成员逐个失效
func (i *Invalidator) OnGenerated(ctx context.Context, job generator.Job) {
	if i == nil || i.cache == nil {
		return
	}
	if job.UserID != "" {
		i.User(ctx, "generated", job.UserID, job.WeekStart)
		return
	}

	var keys []string
	if i.repo != nil {
		list, err := i.repo.Availability.ListByOrgWeek(ctx, job.OrganizationID, job.WeekStart)
		if err != nil {
			i.logger.Warn("查询组织成员失败", zap.String("organization_id", job.OrganizationID), zap.Error(err))
		}
		for _, a := range list {
			keys = append(keys, weekCacheKey(a.UserID, job.WeekStart), statsCacheKey(a.UserID))
		}
	}
	if err := i.cache.Delete(ctx, keys...); err != nil {
		i.logger.Warn("删除缓存失败", zap.String("organization_id", job.OrganizationID), zap.Error(err))
	}
	i.publish(ctx, InvalidationEvent{
		Reason:    "generated",
		OrgID:     job.OrganizationID,
		WeekStart: period.FormatDate(job.WeekStart),
	})
}

func (i *Invalidator) publish(ctx context.Context, ev InvalidationEvent) {
	ev.At = formatTimestamp(time.Now())
	if err := i.cache.Publish(ctx, InvalidationChannel, ev); err != nil {
		i.logger.Warn("广播缓存失效事件失败", zap.String("reason", ev.Reason), zap.Error(err))
	}
}
