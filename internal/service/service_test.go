package service

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/config"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/dto"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/period"
)

// ── 测试辅助 ──

var (
	// 周四上午：计划周 2026-10-21 处于 filling，2026-10-14 已锁定
	fillingNow = time.Date(2026, 10, 15, 10, 0, 0, 0, time.UTC)
	// 周一下午：计划周 2026-10-21 处于 reviewing
	reviewingNow = time.Date(2026, 10, 19, 14, 0, 0, 0, time.UTC)

	planningWeek = time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC)
	activeWeek   = time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
)

var (
	member = dto.Caller{UserID: "u-1", OrganizationID: "org-1", Role: dto.RoleMember}
	leader = dto.Caller{UserID: "lead-1", OrganizationID: "org-1", Role: dto.RoleLeader}
)

type testEnv struct {
	store   *memStore
	trigger *fakeTrigger
	cache   *fakeCache
	locker  *fakeLocker
	cfg     *config.Config
	svc     *Service
}

type envOption func(*testEnv, *Deps)

func withoutRedis() envOption {
	return func(e *testEnv, d *Deps) {
		e.cache, e.locker = nil, nil
		d.Cache, d.Locker = nil, nil
	}
}

func newTestEnv(t *testing.T, now time.Time, opts ...envOption) *testEnv {
	t.Helper()
	e := &testEnv{
		store:   newMemStore(),
		trigger: newFakeTrigger(),
		cache:   newFakeCache(),
		locker:  newFakeLocker(),
		cfg: &config.Config{
			Agenda: config.AgendaConfig{
				Timezone:         "UTC",
				OperationTimeout: time.Second,
				LockActiveWeek:   true,
				ToggleLockTTL:    time.Second,
				StatsCacheTTL:    time.Minute,
				WeekCacheTTL:     time.Minute,
			},
		},
	}
	deps := Deps{
		Clock:    period.FixedClock{T: now},
		Resolver: period.NewResolver(time.UTC),
		Trigger:  e.trigger,
		Cache:    e.cache,
		Locker:   e.locker,
	}
	for _, opt := range opts {
		opt(e, &deps)
	}
	e.svc = NewService(e.cfg, e.store.repository(), deps, zap.NewNop())
	return e
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		completed, total int64
		want             int
	}{
		{0, 0, 0},
		{0, 5, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{5, 5, 100},
	}
	for _, tt := range tests {
		if got := progressPercent(tt.completed, tt.total); got != tt.want {
			t.Errorf("progressPercent(%d, %d) 期望 %d，实际 %d", tt.completed, tt.total, tt.want, got)
		}
	}

	// 完成数递增时百分比单调不减
	prev := -1
	for c := int64(0); c <= 7; c++ {
		p := progressPercent(c, 7)
		if p < prev {
			t.Fatalf("completed=%d 时进度回退: %d < %d", c, p, prev)
		}
		prev = p
	}
}

func TestResolveWeek(t *testing.T) {
	d := Deps{Clock: period.FixedClock{T: fillingNow}, Resolver: period.NewResolver(time.UTC)}

	w, err := resolveWeek(d, "")
	if err != nil || !w.Equal(planningWeek) {
		t.Errorf("空值应解析为计划周，实际 %v, %v", w, err)
	}
	if _, err := resolveWeek(d, "2026-10-15"); err != ErrInvalidWeekStart {
		t.Errorf("非周三应返回 ErrInvalidWeekStart，实际 %v", err)
	}
	if _, err := resolveWeek(d, "tomorrow"); err != ErrInvalidWeekStart {
		t.Errorf("格式错误应返回 ErrInvalidWeekStart，实际 %v", err)
	}
}

func TestPeriodService_Current(t *testing.T) {
	env := newTestEnv(t, reviewingNow)
	resp := env.svc.Period.Current(context.Background())

	if resp.Period != "reviewing" {
		t.Errorf("期望 reviewing，实际 %s", resp.Period)
	}
	if resp.WeekStart != "2026-10-21" {
		t.Errorf("期望 week_start=2026-10-21，实际 %s", resp.WeekStart)
	}
	if resp.CanSubmit || !resp.CanRegenerate {
		t.Errorf("复核阶段应 can_submit=false can_regenerate=true，实际 %v %v", resp.CanSubmit, resp.CanRegenerate)
	}
	if resp.ActiveWeekStart != "2026-10-14" {
		t.Errorf("期望 active_week_start=2026-10-14，实际 %s", resp.ActiveWeekStart)
	}
}
