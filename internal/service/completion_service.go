package service

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/config"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/dto"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/model"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/repository"
	pkgerrors "github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/errors"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/period"
)

// ── 任务完成模块业务错误 ──

var (
	ErrScheduledTaskNotFound = errors.New("排程任务不存在")
	ErrScheduledTaskNotOwner = errors.New("只能修改自己的排程任务")
	ErrWeekLocked            = errors.New("该周排程已锁定，无法修改完成状态")
	ErrToggleInFlight        = pkgerrors.ErrLockNotAcquired
	ErrCompletionConflict    = errors.New("任务状态已被修改，请刷新后重试")
	ErrCompletionNotFound    = errors.New("完成记录不存在")
	ErrCompletionNotAwaiting = errors.New("该完成记录不在待确认状态")
	ErrCompletedInOtherWeek  = errors.New("该任务已在其他周提交完成")
)

// CompletionService 任务完成状态业务接口
type CompletionService interface {
	// MarkComplete 标记完成；协作任务进入待负责人确认
	MarkComplete(ctx context.Context, scheduledTaskID string, caller dto.Caller) (*dto.ScheduledTaskResponse, error)
	// MarkPending 撤销完成，删除完成记录
	MarkPending(ctx context.Context, scheduledTaskID string, caller dto.Caller) (*dto.ScheduledTaskResponse, error)
	ListPendingValidations(ctx context.Context, caller dto.Caller) ([]dto.ValidationItemResponse, error)
	// Validate 负责人确认或驳回协作任务
	Validate(ctx context.Context, completionID string, approved bool, caller dto.Caller) (*dto.CompletionResponse, error)
	// Reconcile 按完成记录修复排程状态，返回修复行数
	Reconcile(ctx context.Context, userID string, weekStart string) (int, error)
}

type completionService struct {
	cfg         *config.AgendaConfig
	repo        *repository.Repository
	deps        Deps
	guard       *toggleGuard
	invalidator *Invalidator
	logger      *zap.Logger
}

// NewCompletionService 创建 CompletionService 实例
func NewCompletionService(cfg *config.AgendaConfig, repo *repository.Repository, deps Deps, invalidator *Invalidator, logger *zap.Logger) CompletionService {
	return &completionService{
		cfg:         cfg,
		repo:        repo,
		deps:        deps,
		guard:       newToggleGuard(deps.Locker, cfg.ToggleLockTTL, logger),
		invalidator: invalidator,
		logger:      logger,
	}
}

// ────────────────────── MarkComplete ──────────────────────

func (s *completionService) MarkComplete(ctx context.Context, scheduledTaskID string, caller dto.Caller) (*dto.ScheduledTaskResponse, error) {
	return s.toggle(ctx, scheduledTaskID, caller, func(ctx context.Context, st *model.ScheduledTask, existing *model.TaskCompletion) (*model.TaskCompletion, error) {
		// 完成记录按 (task_id, user_id) 唯一，不能覆盖其他周排程行的记录
		if existing != nil && !existing.BelongsTo(st.ScheduledTaskID) {
			if existing.ScheduledTaskID != nil {
				return nil, ErrCompletedInOtherWeek
			}
			// 原排程行已删除的记录由本次提交接管
			existing = nil
		}
		// 已确认完成且状态一致时无需重复写入
		if existing != nil && existing.Validated() && st.Status == model.ScheduledStatusCompleted {
			return existing, nil
		}
		// 协作任务已提交待确认时保持原记录
		if existing != nil && st.IsCollaborative && existing.AwaitingValidation() {
			return existing, nil
		}

		validated := !st.IsCollaborative
		status := model.ScheduledStatusPending
		if validated {
			status = model.ScheduledStatusCompleted
		}
		stID := st.ScheduledTaskID
		c := &model.TaskCompletion{
			TaskID:            st.TaskID,
			UserID:            st.UserID,
			OrganizationID:    st.OrganizationID,
			ScheduledTaskID:   &stID,
			CompletedByUser:   true,
			ValidatedByLeader: &validated,
			CompletedAt:       s.deps.now().UTC(),
		}
		st.Touch(caller.UserID)
		if err := s.repo.Completion.Complete(ctx, st, c, status); err != nil {
			return nil, err
		}
		return c, nil
	})
}

// ────────────────────── MarkPending ──────────────────────

func (s *completionService) MarkPending(ctx context.Context, scheduledTaskID string, caller dto.Caller) (*dto.ScheduledTaskResponse, error) {
	return s.toggle(ctx, scheduledTaskID, caller, func(ctx context.Context, st *model.ScheduledTask, _ *model.TaskCompletion) (*model.TaskCompletion, error) {
		st.Touch(caller.UserID)
		if err := s.repo.Completion.Revert(ctx, st); err != nil {
			return nil, err
		}
		return nil, nil
	})
}

type toggleFunc func(ctx context.Context, st *model.ScheduledTask, existing *model.TaskCompletion) (*model.TaskCompletion, error)

// toggle 完成状态切换的公共流程：归属与锁定校验 → 互斥 → 重新读取 → 事务写入 → 失效通知
func (s *completionService) toggle(ctx context.Context, scheduledTaskID string, caller dto.Caller, apply toggleFunc) (*dto.ScheduledTaskResponse, error) {
	ctx, cancel := withTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	st, err := s.loadOwned(ctx, scheduledTaskID, caller)
	if err != nil {
		return nil, err
	}
	if s.cfg.LockActiveWeek && s.deps.Resolver.Locked(st.WeekStart, s.deps.now()) {
		return nil, ErrWeekLocked
	}

	release, err := s.guard.acquire(ctx, st.TaskID, st.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	// 持锁后重新读取，拿到最新 version
	st, err = s.loadOwned(ctx, scheduledTaskID, caller)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.Completion.GetByTaskUser(ctx, st.TaskID, st.UserID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		existing = nil
	}

	c, err := apply(ctx, st, existing)
	if err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrCompletionConflict
		}
		if errors.Is(err, ErrCompletedInOtherWeek) {
			return nil, err
		}
		s.logger.Error("更新任务完成状态失败",
			zap.String("scheduled_task_id", scheduledTaskID),
			zap.String("user_id", caller.UserID),
			zap.Error(err),
		)
		return nil, err
	}

	s.invalidator.User(ctx, "toggle", st.UserID, st.WeekStart)

	resp := toScheduledTaskResponse(st, c)
	return &resp, nil
}

func (s *completionService) loadOwned(ctx context.Context, scheduledTaskID string, caller dto.Caller) (*model.ScheduledTask, error) {
	st, err := s.repo.ScheduledTask.GetByID(ctx, scheduledTaskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrScheduledTaskNotFound
		}
		return nil, err
	}
	if st.UserID != caller.UserID {
		return nil, ErrScheduledTaskNotOwner
	}
	return st, nil
}

// ────────────────────── ListPendingValidations ──────────────────────

func (s *completionService) ListPendingValidations(ctx context.Context, caller dto.Caller) ([]dto.ValidationItemResponse, error) {
	if !caller.CanValidate() {
		return nil, ErrPermissionDenied
	}

	ctx, cancel := withTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	list, err := s.repo.Completion.ListAwaitingValidation(ctx, caller.OrganizationID)
	if err != nil {
		s.logger.Error("查询待确认任务失败", zap.String("organization_id", caller.OrganizationID), zap.Error(err))
		return nil, err
	}

	result := make([]dto.ValidationItemResponse, 0, len(list))
	for i := range list {
		c := &list[i]
		// 负责人只处理自己负责的任务，管理员不受限
		if caller.Role != dto.RoleAdmin && c.Task != nil && c.Task.LeaderID != nil && *c.Task.LeaderID != caller.UserID {
			continue
		}
		item := dto.ValidationItemResponse{Completion: *toCompletionResponse(c)}
		if c.Task != nil {
			item.TaskTitle = c.Task.Title
			item.Area = c.Task.Area
		}
		result = append(result, item)
	}
	return result, nil
}

// ────────────────────── Validate ──────────────────────

func (s *completionService) Validate(ctx context.Context, completionID string, approved bool, caller dto.Caller) (*dto.CompletionResponse, error) {
	if !caller.CanValidate() {
		return nil, ErrPermissionDenied
	}

	ctx, cancel := withTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	c, err := s.repo.Completion.GetByID(ctx, completionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCompletionNotFound
		}
		return nil, err
	}
	if c.OrganizationID != caller.OrganizationID {
		return nil, ErrCompletionNotFound
	}
	if !c.AwaitingValidation() {
		return nil, ErrCompletionNotAwaiting
	}
	// 负责人只能处理自己负责或未指定负责人的任务
	if caller.Role != dto.RoleAdmin {
		task, err := s.repo.Task.GetByID(ctx, c.TaskID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if task != nil && task.LeaderID != nil && *task.LeaderID != caller.UserID {
			return nil, ErrPermissionDenied
		}
	}

	release, err := s.guard.acquire(ctx, c.TaskID, c.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	// 排程行可能已被重新生成删除，此时只处理完成记录
	var st *model.ScheduledTask
	if c.ScheduledTaskID != nil {
		row, err := s.repo.ScheduledTask.GetByID(ctx, *c.ScheduledTaskID)
		switch {
		case err == nil:
			row.Touch(caller.UserID)
			st = row
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, err
		}
	}

	now := s.deps.now().UTC()
	if approved {
		err = s.repo.Completion.Approve(ctx, c, st, caller.UserID, now)
	} else {
		err = s.repo.Completion.Reject(ctx, c, st)
	}
	if err != nil {
		if errors.Is(err, pkgerrors.ErrOptimisticLock) {
			return nil, ErrCompletionConflict
		}
		s.logger.Error("确认协作任务失败",
			zap.String("completion_id", completionID),
			zap.Bool("approved", approved),
			zap.Error(err),
		)
		return nil, err
	}

	week := period.WeekStartOf(c.CompletedAt)
	if st != nil {
		week = st.WeekStart
	}
	s.invalidator.User(ctx, "validation", c.UserID, week)

	s.logger.Info("协作任务已处理",
		zap.String("completion_id", completionID),
		zap.String("validator_id", caller.UserID),
		zap.Bool("approved", approved),
	)

	if !approved {
		return nil, nil
	}
	t := true
	c.ValidatedByLeader = &t
	c.ValidatedBy = &caller.UserID
	c.ValidatedAt = &now
	return toCompletionResponse(c), nil
}

// ────────────────────── Reconcile ──────────────────────

func (s *completionService) Reconcile(ctx context.Context, userID string, weekStart string) (int, error) {
	week, err := resolveWeek(s.deps, weekStart)
	if err != nil {
		return 0, err
	}

	ctx, cancel := withTimeout(ctx, s.cfg.OperationTimeout)
	defer cancel()

	rows, completions, err := loadWeek(ctx, s.repo, userID, week)
	if err != nil {
		return 0, err
	}

	fixed := 0
	for i := range rows {
		st := &rows[i]
		want := expectedStatus(completions[st.TaskID])
		if st.Status == want {
			continue
		}
		if err := s.repo.ScheduledTask.UpdateStatus(ctx, st, want); err != nil {
			if errors.Is(err, pkgerrors.ErrOptimisticLock) {
				// 并发修改的行留给下一轮
				continue
			}
			return fixed, err
		}
		fixed++
	}

	if fixed > 0 {
		s.invalidator.User(ctx, "reconcile", userID, week)
		s.logger.Info("排程状态已修复",
			zap.String("user_id", userID),
			zap.String("week_start", period.FormatDate(week)),
			zap.Int("fixed", fixed),
		)
	}
	return fixed, nil
}
