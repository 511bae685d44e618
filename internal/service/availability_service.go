package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/config"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/dto"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/generator"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/model"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/repository"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/period"
)

// ── 可用时间模块业务错误 ──

var (
	ErrNoDaySelected        = errors.New("请至少选择一天可用时间")
	ErrInvalidHoursPerDay   = errors.New("每日时长必须在 2 到 8 小时之间")
	ErrInvalidTimeOfDay     = errors.New("时间偏好只能为 morning、afternoon、evening 或 flexible")
	ErrInvalidDayWindow     = errors.New("可用日期的开始时间必须早于结束时间")
	ErrAvailabilityClosed   = errors.New("当前不在可用时间填写阶段")
	ErrAvailabilityNotFound = errors.New("该周尚未提交可用时间")
)

const (
	minHoursPerDay = 2
	maxHoursPerDay = 8
)

// AvailabilityService 可用时间业务接口
type AvailabilityService interface {
	// Submit 校验并写入可用时间，成功后异步触发预览生成
	Submit(ctx context.Context, req *dto.SubmitAvailabilityRequest, caller dto.Caller) (*dto.SubmitAvailabilityResponse, error)
	Get(ctx context.Context, caller dto.Caller, weekStart string) (*dto.AvailabilityResponse, error)
	HasAvailability(ctx context.Context, caller dto.Caller, weekStart string) (bool, error)
	// ListWeek 团队提交进度（负责人、管理员）
	ListWeek(ctx context.Context, caller dto.Caller, weekStart string) (*dto.TeamAvailabilityResponse, error)
}

type availabilityService struct {
	cfg    *config.AgendaConfig
	repo   *repository.Repository
	deps   Deps
	logger *zap.Logger
}

// NewAvailabilityService 创建 AvailabilityService 实例
func NewAvailabilityService(cfg *config.AgendaConfig, repo *repository.Repository, deps Deps, logger *zap.Logger) AvailabilityService {
	return &availabilityService{cfg: cfg, repo: repo, deps: deps, logger: logger}
}

// ────────────────────── Submit ──────────────────────

func (s *availabilityService) Submit(ctx context.Context, req *dto.SubmitAvailabilityRequest, caller dto.Caller) (*dto.SubmitAvailabilityResponse, error) {
	days, err := validateAvailability(req)
	if err != nil {
		return nil, err
	}

	week, err := resolveWeek(s.deps, req.WeekStart)
	if err != nil {
		return nil, err
	}

	now := s.deps.now()
	if s.deps.Resolver.PeriodOf(week, now) != period.Filling {
		return nil, ErrAvailabilityClosed
	}

	ctx, cancel := withTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	record := &model.WeeklyAvailability{
		UserID:               caller.UserID,
		OrganizationID:       caller.OrganizationID,
		WeekStart:            week,
		Days:                 datatypes.NewJSONType(days),
		PreferredHoursPerDay: req.PreferredHoursPerDay,
		PreferredTimeOfDay:   req.PreferredTimeOfDay,
		SubmittedAt:          now.UTC(),
	}
	record.CreatedBy = &caller.UserID
	record.Touch(caller.UserID)
	record.UpdatedAt = now.UTC()

	if err := s.repo.Availability.Upsert(ctx, record); err != nil {
		s.logger.Error("保存可用时间失败",
			zap.String("user_id", caller.UserID),
			zap.String("week_start", period.FormatDate(week)),
			zap.Error(err),
		)
		return nil, err
	}

	resp := &dto.SubmitAvailabilityResponse{Availability: *toAvailabilityResponse(record)}

	// 预览生成为尽力而为，失败不影响提交结果
	if s.deps.Trigger != nil {
		jobID, queued := s.deps.Trigger.Enqueue(ctx, generator.Job{
			Kind:           model.JobKindPreview,
			OrganizationID: caller.OrganizationID,
			UserID:         caller.UserID,
			WeekStart:      week,
		})
		resp.GenerationQueued = queued
		resp.GenerationJobID = jobID
	}

	return resp, nil
}

// ────────────────────── Get ──────────────────────

func (s *availabilityService) Get(ctx context.Context, caller dto.Caller, weekStart string) (*dto.AvailabilityResponse, error) {
	week, err := resolveWeek(s.deps, weekStart)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	record, err := s.repo.Availability.GetByUserWeek(ctx, caller.UserID, week)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAvailabilityNotFound
		}
		s.logger.Error("查询可用时间失败", zap.String("user_id", caller.UserID), zap.Error(err))
		return nil, err
	}

	return toAvailabilityResponse(record), nil
}

// ────────────────────── HasAvailability ──────────────────────

func (s *availabilityService) HasAvailability(ctx context.Context, caller dto.Caller, weekStart string) (bool, error) {
	week, err := resolveWeek(s.deps, weekStart)
	if err != nil {
		return false, err
	}

	ctx, cancel := withTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	ok, err := s.repo.Availability.ExistsByUserWeek(ctx, caller.UserID, week)
	if err != nil {
		s.logger.Error("查询可用时间失败", zap.String("user_id", caller.UserID), zap.Error(err))
		return false, err
	}
	return ok, nil
}

// ────────────────────── ListWeek ──────────────────────

func (s *availabilityService) ListWeek(ctx context.Context, caller dto.Caller, weekStart string) (*dto.TeamAvailabilityResponse, error) {
	if !caller.CanValidate() {
		return nil, ErrPermissionDenied
	}
	week, err := resolveWeek(s.deps, weekStart)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	list, err := s.repo.Availability.ListByOrgWeek(ctx, caller.OrganizationID, week)
	if err != nil {
		s.logger.Error("查询团队可用时间失败", zap.String("organization_id", caller.OrganizationID), zap.Error(err))
		return nil, err
	}

	users := make([]string, 0, len(list))
	for _, a := range list {
		users = append(users, a.UserID)
	}
	return &dto.TeamAvailabilityResponse{
		WeekStart:      period.FormatDate(week),
		SubmittedCount: len(users),
		SubmittedUsers: users,
	}, nil
}

// ── 内部辅助方法 ──

// validateAvailability 在任何写入之前完成全部取值校验
func validateAvailability(req *dto.SubmitAvailabilityRequest) (model.WeekDays, error) {
	days := fromDTOWeekDays(req.Days)
	if !days.AnyAvailable() {
		return days, ErrNoDaySelected
	}
	if req.PreferredHoursPerDay < minHoursPerDay || req.PreferredHoursPerDay > maxHoursPerDay {
		return days, ErrInvalidHoursPerDay
	}
	switch req.PreferredTimeOfDay {
	case model.TimeOfDayMorning, model.TimeOfDayAfternoon, model.TimeOfDayEvening, model.TimeOfDayFlexible:
	default:
		return days, ErrInvalidTimeOfDay
	}
	for _, d := range days.Named() {
		if !d.Window.Available {
			continue
		}
		start, err1 := generator.ParseMinutes(d.Window.Start)
		end, err2 := generator.ParseMinutes(d.Window.End)
		if err1 != nil || err2 != nil || start >= end {
			return days, ErrInvalidDayWindow
		}
	}
	return days, nil
}

func fromDTOWeekDays(d dto.WeekDays) model.WeekDays {
	conv := func(w dto.DayWindow) model.DayWindow {
		if !w.Available {
			return model.DayWindow{}
		}
		return model.DayWindow{Available: true, Start: w.Start, End: w.End}
	}
	return model.WeekDays{
		Monday:    conv(d.Monday),
		Tuesday:   conv(d.Tuesday),
		Wednesday: conv(d.Wednesday),
		Thursday:  conv(d.Thursday),
		Friday:    conv(d.Friday),
		Saturday:  conv(d.Saturday),
		Sunday:    conv(d.Sunday),
	}
}

func toDTOWeekDays(d model.WeekDays) dto.WeekDays {
	conv := func(w model.DayWindow) dto.DayWindow {
		return dto.DayWindow{Available: w.Available, Start: w.Start, End: w.End}
	}
	return dto.WeekDays{
		Monday:    conv(d.Monday),
		Tuesday:   conv(d.Tuesday),
		Wednesday: conv(d.Wednesday),
		Thursday:  conv(d.Thursday),
		Friday:    conv(d.Friday),
		Saturday:  conv(d.Saturday),
		Sunday:    conv(d.Sunday),
	}
}

func toAvailabilityResponse(a *model.WeeklyAvailability) *dto.AvailabilityResponse {
	submitted := a.SubmittedAt
	if submitted.IsZero() {
		submitted = time.Now()
	}
	return &dto.AvailabilityResponse{
		ID:                   a.AvailabilityID,
		UserID:               a.UserID,
		WeekStart:            period.FormatDate(a.WeekStart),
		Days:                 toDTOWeekDays(a.Days.Data()),
		PreferredHoursPerDay: a.PreferredHoursPerDay,
		PreferredTimeOfDay:   a.PreferredTimeOfDay,
		SubmittedAt:          formatTimestamp(submitted),
	}
}
