package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/config"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/dto"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/generator"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/model"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/repository"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/period"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/redis"
)

// ── 周排程模块业务错误 ──

var (
	ErrNotReviewing         = errors.New("仅可在复核阶段重新生成排程")
	ErrGenerationFailed     = errors.New("排程生成失败")
	ErrGeneratorUnavailable = errors.New("排程生成器未配置")
)

const jobListLimit = 20

// ScheduleService 周排程业务接口
type ScheduleService interface {
	// GetWeek 按日期分组的周排程与进度
	GetWeek(ctx context.Context, caller dto.Caller, weekStart string) (*dto.WeeklyScheduleResponse, error)
	// Regenerate 复核阶段同步重新生成组织整周排程
	Regenerate(ctx context.Context, caller dto.Caller, weekStart string) (*dto.RegenerateResponse, error)
	// Stats 跨周的全局完成进度
	Stats(ctx context.Context, caller dto.Caller) (*dto.StatsResponse, error)
	ListJobs(ctx context.Context, caller dto.Caller, weekStart string) ([]dto.GenerationJobResponse, error)
}

type scheduleService struct {
	cfg    *config.AgendaConfig
	repo   *repository.Repository
	deps   Deps
	logger *zap.Logger
}

// NewScheduleService 创建 ScheduleService 实例
func NewScheduleService(cfg *config.AgendaConfig, repo *repository.Repository, deps Deps, logger *zap.Logger) ScheduleService {
	return &scheduleService{cfg: cfg, repo: repo, deps: deps, logger: logger}
}

// ────────────────────── GetWeek ──────────────────────

func (s *scheduleService) GetWeek(ctx context.Context, caller dto.Caller, weekStart string) (*dto.WeeklyScheduleResponse, error) {
	week, err := resolveWeek(s.deps, weekStart)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	p := s.deps.Resolver.PeriodOf(week, s.deps.now())

	key := weekCacheKey(caller.UserID, week)
	if s.deps.Cache != nil {
		var cached dto.WeeklyScheduleResponse
		if err := s.deps.Cache.GetJSON(ctx, key, &cached); err == nil {
			cached.Period = string(p)
			cached.Locked = p == period.Active
			return &cached, nil
		} else if !errors.Is(err, redis.ErrCacheMiss) {
			s.logger.Warn("读取周排程缓存失败", zap.String("key", key), zap.Error(err))
		}
	}

	rows, completions, err := loadWeek(ctx, s.repo, caller.UserID, week)
	if err != nil {
		s.logger.Error("查询周排程失败",
			zap.String("user_id", caller.UserID),
			zap.String("week_start", period.FormatDate(week)),
			zap.Error(err),
		)
		return nil, err
	}

	tasks := make([]dto.ScheduledTaskResponse, 0, len(rows))
	var completed, awaiting int
	for i := range rows {
		t := toScheduledTaskResponse(&rows[i], completions[rows[i].TaskID])
		switch t.State {
		case dto.TaskStateCompleted:
			completed++
		case dto.TaskStateAwaitingValidation:
			awaiting++
		}
		tasks = append(tasks, t)
	}

	resp := &dto.WeeklyScheduleResponse{
		WeekStart:          period.FormatDate(week),
		Period:             string(p),
		Locked:             p == period.Active,
		Days:               groupByDay(week, tasks),
		Total:              len(tasks),
		Completed:          completed,
		AwaitingValidation: awaiting,
		ProgressPercent:    progressPercent(int64(completed), int64(len(tasks))),
	}

	if s.deps.Cache != nil && s.cfg.WeekCacheTTL > 0 {
		if err := s.deps.Cache.SetJSON(ctx, key, resp, s.cfg.WeekCacheTTL); err != nil {
			s.logger.Warn("写入周排程缓存失败", zap.String("key", key), zap.Error(err))
		}
	}

	return resp, nil
}

// ────────────────────── Regenerate ──────────────────────

func (s *scheduleService) Regenerate(ctx context.Context, caller dto.Caller, weekStart string) (*dto.RegenerateResponse, error) {
	if !caller.CanValidate() {
		return nil, ErrPermissionDenied
	}
	week, err := resolveWeek(s.deps, weekStart)
	if err != nil {
		return nil, err
	}
	if s.deps.Resolver.PeriodOf(week, s.deps.now()) != period.Reviewing {
		return nil, ErrNotReviewing
	}
	if s.deps.Trigger == nil {
		return nil, ErrGeneratorUnavailable
	}

	// 生成耗时由 generator.timeout 约束，不套用 operation_timeout
	jobID, err := s.deps.Trigger.Run(ctx, generator.Job{
		Kind:           model.JobKindWeekly,
		OrganizationID: caller.OrganizationID,
		WeekStart:      week,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("regenerate week %s: %w", period.FormatDate(week), err)
		}
		return nil, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	return &dto.RegenerateResponse{
		JobID:     jobID,
		WeekStart: period.FormatDate(week),
		Status:    model.JobStatusSucceeded,
	}, nil
}

// ────────────────────── Stats ──────────────────────

func (s *scheduleService) Stats(ctx context.Context, caller dto.Caller) (*dto.StatsResponse, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	key := statsCacheKey(caller.UserID)
	if s.deps.Cache != nil {
		var cached dto.StatsResponse
		if err := s.deps.Cache.GetJSON(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, redis.ErrCacheMiss) {
			s.logger.Warn("读取进度缓存失败", zap.String("key", key), zap.Error(err))
		}
	}

	count, err := s.repo.ScheduledTask.CountByUser(ctx, caller.UserID)
	if err != nil {
		s.logger.Error("统计完成进度失败", zap.String("user_id", caller.UserID), zap.Error(err))
		return nil, err
	}

	resp := &dto.StatsResponse{
		Total:           count.Total,
		Completed:       count.Completed,
		ProgressPercent: progressPercent(count.Completed, count.Total),
	}

	if s.deps.Cache != nil && s.cfg.StatsCacheTTL > 0 {
		if err := s.deps.Cache.SetJSON(ctx, key, resp, s.cfg.StatsCacheTTL); err != nil {
			s.logger.Warn("写入进度缓存失败", zap.String("key", key), zap.Error(err))
		}
	}
	return resp, nil
}

// ────────────────────── ListJobs ──────────────────────

func (s *scheduleService) ListJobs(ctx context.Context, caller dto.Caller, weekStart string) ([]dto.GenerationJobResponse, error) {
	week, err := resolveWeek(s.deps, weekStart)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	var jobs []model.GenerationJob
	if caller.CanValidate() {
		jobs, err = s.repo.GenerationJob.ListByOrgWeek(ctx, caller.OrganizationID, week, jobListLimit)
	} else {
		jobs, err = s.repo.GenerationJob.ListByUserWeek(ctx, caller.UserID, week, jobListLimit)
	}
	if err != nil {
		s.logger.Error("查询生成任务失败", zap.String("user_id", caller.UserID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.GenerationJobResponse, 0, len(jobs))
	for _, j := range jobs {
		result = append(result, dto.GenerationJobResponse{
			ID:          j.JobID,
			Kind:        j.Kind,
			Status:      j.Status,
			Error:       j.Error,
			WeekStart:   period.FormatDate(j.WeekStart),
			AttemptedAt: formatOptionalTimestamp(j.AttemptedAt),
			FinishedAt:  formatOptionalTimestamp(j.FinishedAt),
			CreatedAt:   formatTimestamp(j.CreatedAt),
		})
	}
	return result, nil
}

// ── 内部辅助方法 ──

// loadWeek 读取用户某周的排程及对应完成记录（按 task_id 索引）
// 只收录属于本周排程行的完成记录，其他周同一任务的记录不计入
func loadWeek(ctx context.Context, repo *repository.Repository, userID string, week time.Time) ([]model.ScheduledTask, map[string]*model.TaskCompletion, error) {
	rows, err := repo.ScheduledTask.ListByUserWeek(ctx, userID, week)
	if err != nil {
		return nil, nil, err
	}
	completions := make(map[string]*model.TaskCompletion, len(rows))
	if len(rows) == 0 {
		return rows, completions, nil
	}

	rowByTask := make(map[string]string, len(rows))
	taskIDs := make([]string, 0, len(rows))
	for _, r := range rows {
		rowByTask[r.TaskID] = r.ScheduledTaskID
		taskIDs = append(taskIDs, r.TaskID)
	}
	list, err := repo.Completion.ListByUserTasks(ctx, userID, taskIDs)
	if err != nil {
		return nil, nil, err
	}
	for i := range list {
		if list[i].BelongsTo(rowByTask[list[i].TaskID]) {
			completions[list[i].TaskID] = &list[i]
		}
	}
	return rows, completions, nil
}
