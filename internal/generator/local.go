package generator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gorm.io/gorm"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/model"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/repository"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/period"
)

// ErrNoAvailability 用户未提交该周可用时间
var ErrNoAvailability = errors.New("该周尚未提交可用时间")

const minTaskMinutes = 30

// 时间偏好对应的时段（分钟，左闭右开）
var timeOfDayRanges = map[string]timeBlock{
	model.TimeOfDayMorning:   {start: 6 * 60, end: 12 * 60},
	model.TimeOfDayAfternoon: {start: 12 * 60, end: 18 * 60},
	model.TimeOfDayEvening:   {start: 18 * 60, end: 23 * 60},
}

// LocalMaterializer 进程内排程生成器
// 同一任务同时只排入一个未开始的周，已开始周里遗留的待完成任务可顺延
type LocalMaterializer struct {
	repo     *repository.Repository
	resolver *period.Resolver
	clock    period.Clock
}

// NewLocalMaterializer 创建本地生成器，clock 为 nil 时使用系统时钟
func NewLocalMaterializer(repo *repository.Repository, resolver *period.Resolver, clock period.Clock) *LocalMaterializer {
	if clock == nil {
		clock = period.SystemClock{}
	}
	return &LocalMaterializer{repo: repo, resolver: resolver, clock: clock}
}

func (l *LocalMaterializer) GeneratePreview(ctx context.Context, organizationID, userID string, weekStart time.Time) error {
	avail, err := l.repo.Availability.GetByUserWeek(ctx, userID, weekStart)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoAvailability
		}
		return fmt.Errorf("load availability: %w", err)
	}
	return l.materialize(ctx, organizationID, avail)
}

func (l *LocalMaterializer) GenerateWeeklySchedules(ctx context.Context, organizationID string, weekStart time.Time) error {
	list, err := l.repo.Availability.ListByOrgWeek(ctx, organizationID, weekStart)
	if err != nil {
		return fmt.Errorf("list availability: %w", err)
	}

	var errs []error
	for i := range list {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := l.materialize(ctx, organizationID, &list[i]); err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", list[i].UserID, err))
		}
	}
	return errors.Join(errs...)
}

func (l *LocalMaterializer) materialize(ctx context.Context, organizationID string, avail *model.WeeklyAvailability) error {
	// 当前锁定周及更早的周均已开始
	openAfter := l.resolver.Resolve(l.clock.Now()).ActiveWeekStart
	tasks, err := l.repo.Task.ListSchedulable(ctx, organizationID, avail.UserID, avail.WeekStart, openAfter)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	placements := Place(avail, tasks)
	rows := make([]model.ScheduledTask, 0, len(placements))
	for _, p := range placements {
		rows = append(rows, model.ScheduledTask{
			TaskID:          p.Task.TaskID,
			UserID:          avail.UserID,
			OrganizationID:  organizationID,
			WeekStart:       avail.WeekStart,
			ScheduledDate:   p.Date,
			ScheduledStart:  formatMinutes(p.Start),
			ScheduledEnd:    formatMinutes(p.End),
			IsCollaborative: p.Task.IsCollaborative,
			Status:          model.ScheduledStatusPending,
		})
	}

	if err := l.repo.ScheduledTask.ReplacePending(ctx, avail.UserID, avail.WeekStart, rows); err != nil {
		return fmt.Errorf("replace schedule: %w", err)
	}
	return nil
}

// Placement 单个任务的放置结果
type Placement struct {
	Task  model.Task
	Date  time.Time
	Start int // 分钟
	End   int
}

type timeBlock struct {
	start int
	end   int
}

// Place 把任务按首次适配放入可用时间
//
// 任务按预计时长降序处理，每个任务在本周只放置一次；
// 单日放置总时长不超过 preferred_hours_per_day；
// 优先使用偏好时段，偏好时段与当日窗口无交集时使用整个窗口；
// 周三的窗口从 13:30 之后开始。
func Place(avail *model.WeeklyAvailability, tasks []model.Task) []Placement {
	days := period.Days(avail.WeekStart)
	week := avail.Days.Data()
	dailyCap := avail.PreferredHoursPerDay * 60

	blocks := make([][]timeBlock, len(days))
	remaining := make([]int, len(days))
	for i, d := range days {
		w := week.On(d.Weekday())
		if !w.Available {
			continue
		}
		start, err1 := ParseMinutes(w.Start)
		end, err2 := ParseMinutes(w.End)
		if err1 != nil || err2 != nil {
			continue
		}
		if i == 0 {
			start = max(start, period.WeekStartMinute)
		}
		b := preferredBlock(timeBlock{start: start, end: end}, avail.PreferredTimeOfDay)
		if b.end-b.start < minTaskMinutes {
			continue
		}
		blocks[i] = []timeBlock{b}
		remaining[i] = dailyCap
	}

	ordered := make([]model.Task, len(tasks))
	copy(ordered, tasks)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].EstimatedHours > ordered[j].EstimatedHours
	})

	var out []Placement
	for _, task := range ordered {
		need := taskMinutes(task, dailyCap)
		placed := false
		for i := range days {
			if placed {
				break
			}
			if remaining[i] < need {
				continue
			}
			for bi, b := range blocks[i] {
				if b.end-b.start < need {
					continue
				}
				out = append(out, Placement{Task: task, Date: days[i], Start: b.start, End: b.start + need})
				blocks[i][bi].start += need
				remaining[i] -= need
				placed = true
				break
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Start < out[j].Start
	})
	return out
}

func preferredBlock(window timeBlock, timeOfDay string) timeBlock {
	pref, ok := timeOfDayRanges[timeOfDay]
	if !ok {
		return window
	}
	b := timeBlock{start: max(window.start, pref.start), end: min(window.end, pref.end)}
	if b.end-b.start < minTaskMinutes {
		return window
	}
	return b
}

func taskMinutes(task model.Task, dailyCap int) int {
	m := int(math.Round(task.EstimatedHours * 60))
	if m < minTaskMinutes {
		m = minTaskMinutes
	}
	if dailyCap > 0 && m > dailyCap {
		m = dailyCap
	}
	return m
}

// ParseMinutes 把 HH:MM 解析为当日分钟数
func ParseMinutes(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

func formatMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
