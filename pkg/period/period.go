// Package period 根据业务时区的墙上时间计算周计划所处阶段。
//
// 每个业务周从周三 13:30 开始：
//   - filling   上一周周三 13:30 → 本周开始前的周一 13:30，可提交可用时间
//   - reviewing 周一 13:30 → 周三 13:30，可查看并重新生成排程
//   - active    周三 13:30 起，该周排程锁定
//
// 所有区间均为左闭右开。
//
// Resolve 描述的是正在计划的周，其阶段只会是 filling 或 reviewing；
// 判断某一周是否已锁定应使用 PeriodOf 或 Locked。
package period

import (
	"errors"
	"time"
)

// Period 周计划阶段
type Period string

const (
	Filling   Period = "filling"
	Reviewing Period = "reviewing"
	Active    Period = "active"
)

const (
	boundaryHour   = 13
	boundaryMinute = 30
	dateLayout     = "2006-01-02"
)

// WeekStartMinute 周开始时刻距当日零点的分钟数
const WeekStartMinute = boundaryHour*60 + boundaryMinute

// ErrNotWeekStart 日期不是周起始日（周三）
var ErrNotWeekStart = errors.New("week_start 必须为周三")

// Clock 可注入的时钟
type Clock interface {
	Now() time.Time
}

// SystemClock 系统时钟
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock 固定时钟，用于测试与命令行回放
type FixedClock struct{ T time.Time }

func (c FixedClock) Now() time.Time { return c.T }

// Resolution 某一时刻的阶段解析结果
type Resolution struct {
	Period             Period    `json:"period"`
	WeekStart          time.Time `json:"week_start"`            // 正在计划的周（日期，UTC 零点）
	WeekStartsAt       time.Time `json:"week_starts_at"`        // 该周开始时刻（周三 13:30）
	ReviewStartsAt     time.Time `json:"review_starts_at"`      // 复核开始时刻（周一 13:30）
	ActiveWeekStart    time.Time `json:"active_week_start"`     // 当前锁定周（日期）
	ActiveWeekStartsAt time.Time `json:"active_week_starts_at"` // 当前锁定周开始时刻
}

// Resolver 阶段解析器，边界按 loc 时区计算
type Resolver struct {
	loc *time.Location
}

// NewResolver 创建解析器，loc 为 nil 时使用 UTC
func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{loc: loc}
}

// Location 返回业务时区
func (r *Resolver) Location() *time.Location { return r.loc }

// Resolve 计算 now 时刻正在计划的周及其阶段
// WeekStart 为严格晚于 now 的第一个周三 13:30；恰在边界时刻视为进入新阶段。
// 返回的 Period 不会是 Active，当前锁定周见 ActiveWeekStart。
func (r *Resolver) Resolve(now time.Time) Resolution {
	startsAt := r.nextWeekStart(now)
	reviewAt := startsAt.AddDate(0, 0, -2)
	activeAt := startsAt.AddDate(0, 0, -7)

	p := Filling
	if !now.Before(reviewAt) {
		p = Reviewing
	}

	return Resolution{
		Period:             p,
		WeekStart:          dateOnly(startsAt),
		WeekStartsAt:       startsAt,
		ReviewStartsAt:     reviewAt,
		ActiveWeekStart:    dateOnly(activeAt),
		ActiveWeekStartsAt: activeAt,
	}
}

// PeriodOf 计算指定周在 now 时刻所处阶段
// 已开始的周（含历史周）一律为 active。
func (r *Resolver) PeriodOf(weekStart, now time.Time) Period {
	startsAt := r.Instant(weekStart)
	if !now.Before(startsAt) {
		return Active
	}
	if !now.Before(startsAt.AddDate(0, 0, -2)) {
		return Reviewing
	}
	return Filling
}

// Locked 指定周在 now 时刻是否处于锁定状态
func (r *Resolver) Locked(weekStart, now time.Time) bool {
	return r.PeriodOf(weekStart, now) == Active
}

// Instant 返回周起始日对应的开始时刻（业务时区周三 13:30）
func (r *Resolver) Instant(weekStart time.Time) time.Time {
	y, m, d := weekStart.Date()
	return time.Date(y, m, d, boundaryHour, boundaryMinute, 0, 0, r.loc)
}

// WeekStartOf 返回某一日期所属业务周的起始日（周三）
func WeekStartOf(date time.Time) time.Time {
	d := dateOnly(date)
	back := (int(d.Weekday()) - int(time.Wednesday) + 7) % 7
	return d.AddDate(0, 0, -back)
}

// IsWeekStart 日期是否为周三
func IsWeekStart(date time.Time) bool {
	return date.Weekday() == time.Wednesday
}

// ParseWeekStart 解析 YYYY-MM-DD 格式的周起始日
func ParseWeekStart(s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	if !IsWeekStart(t) {
		return time.Time{}, ErrNotWeekStart
	}
	return t, nil
}

// FormatDate 格式化为 YYYY-MM-DD
func FormatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// Days 返回业务周内的七个日期（周三 → 下周二）
func Days(weekStart time.Time) []time.Time {
	days := make([]time.Time, 7)
	for i := range days {
		days[i] = dateOnly(weekStart).AddDate(0, 0, i)
	}
	return days
}

func (r *Resolver) nextWeekStart(now time.Time) time.Time {
	local := now.In(r.loc)
	ahead := (int(time.Wednesday) - int(local.Weekday()) + 7) % 7
	candidate := time.Date(local.Year(), local.Month(), local.Day()+ahead, boundaryHour, boundaryMinute, 0, 0, r.loc)
	if !candidate.After(now) {
		candidate = candidate.AddDate(0, 0, 7)
	}
	return candidate
}

// dateOnly 取日历日期，统一为 UTC 零点，便于作为 date 列存储
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
