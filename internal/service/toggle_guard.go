package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// toggleGuard 同一 (task_id, user_id) 同时只允许一个完成状态切换
// 进程内互斥始终生效；Locker 可用时额外持有 Redis 锁以覆盖多实例部署
type toggleGuard struct {
	locker Locker
	ttl    time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	holding map[string]struct{}
}

func newToggleGuard(locker Locker, ttl time.Duration, logger *zap.Logger) *toggleGuard {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	return &toggleGuard{
		locker:  locker,
		ttl:     ttl,
		logger:  logger,
		holding: make(map[string]struct{}),
	}
}

func toggleKey(taskID, userID string) string {
	return "agenda:toggle:" + taskID + ":" + userID
}

// acquire 获取锁，已被占用时返回 ErrToggleInFlight
func (g *toggleGuard) acquire(ctx context.Context, taskID, userID string) (func(), error) {
	key := toggleKey(taskID, userID)

	g.mu.Lock()
	if _, busy := g.holding[key]; busy {
		g.mu.Unlock()
		return nil, ErrToggleInFlight
	}
	g.holding[key] = struct{}{}
	g.mu.Unlock()

	releaseLocal := func() {
		g.mu.Lock()
		delete(g.holding, key)
		g.mu.Unlock()
	}

	if g.locker == nil {
		return releaseLocal, nil
	}

	token, ok, err := g.locker.AcquireLock(ctx, key, g.ttl)
	if err != nil {
		// Redis 不可用时仅依赖进程内互斥
		g.logger.Warn("获取切换锁失败，降级为进程内锁", zap.String("key", key), zap.Error(err))
		return releaseLocal, nil
	}
	if !ok {
		releaseLocal()
		return nil, ErrToggleInFlight
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := g.locker.ReleaseLock(releaseCtx, key, token); err != nil {
			g.logger.Warn("释放切换锁失败", zap.String("key", key), zap.Error(err))
		}
		releaseLocal()
	}, nil
}
