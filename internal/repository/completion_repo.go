package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/model"
	pkgerrors "github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/errors"
)

// CompletionRepository 完成记录数据访问接口
// 写操作均在同一事务内同时修改完成记录与排程状态
type CompletionRepository interface {
	GetByID(ctx context.Context, id string) (*model.TaskCompletion, error)
	GetByTaskUser(ctx context.Context, taskID, userID string) (*model.TaskCompletion, error)
	ListByUserTasks(ctx context.Context, userID string, taskIDs []string) ([]model.TaskCompletion, error)
	// ListAwaitingValidation 列出组织内等待负责人确认的完成记录
	ListAwaitingValidation(ctx context.Context, organizationID string) ([]model.TaskCompletion, error)

	// Complete 写入完成记录并把排程状态置为 status
	Complete(ctx context.Context, st *model.ScheduledTask, c *model.TaskCompletion, status string) error
	// Revert 删除属于该排程行的完成记录并把排程状态置为 pending
	Revert(ctx context.Context, st *model.ScheduledTask) error
	// Approve 负责人确认：validated_by_leader=true，排程置为 completed
	Approve(ctx context.Context, c *model.TaskCompletion, st *model.ScheduledTask, validatorID string, at time.Time) error
	// Reject 负责人驳回：删除完成记录，排程置为 pending
	Reject(ctx context.Context, c *model.TaskCompletion, st *model.ScheduledTask) error
}

type completionRepo struct {
	db *gorm.DB
}

func NewCompletionRepo(db *gorm.DB) CompletionRepository {
	return &completionRepo{db: db}
}

func (r *completionRepo) GetByID(ctx context.Context, id string) (*model.TaskCompletion, error) {
	var c model.TaskCompletion
	err := r.db.WithContext(ctx).
		Where("completion_id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *completionRepo) GetByTaskUser(ctx context.Context, taskID, userID string) (*model.TaskCompletion, error) {
	var c model.TaskCompletion
	err := r.db.WithContext(ctx).
		Where("task_id = ? AND user_id = ?", taskID, userID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *completionRepo) ListByUserTasks(ctx context.Context, userID string, taskIDs []string) ([]model.TaskCompletion, error) {
	if len(taskIDs) == 0 {
		return nil, nil
	}
	var list []model.TaskCompletion
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND task_id IN ?", userID, taskIDs).
		Find(&list).Error
	return list, err
}

func (r *completionRepo) ListAwaitingValidation(ctx context.Context, organizationID string) ([]model.TaskCompletion, error) {
	var list []model.TaskCompletion
	err := r.db.WithContext(ctx).
		Preload("Task").
		Where("organization_id = ? AND validated_by_leader = FALSE", organizationID).
		Order("completed_at ASC").
		Find(&list).Error
	return list, err
}

func (r *completionRepo) Complete(ctx context.Context, st *model.ScheduledTask, c *model.TaskCompletion, status string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Clauses(
				clause.OnConflict{
					Columns: []clause.Column{{Name: "task_id"}, {Name: "user_id"}},
					DoUpdates: clause.AssignmentColumns([]string{
						"organization_id",
						"scheduled_task_id",
						"completed_by_user",
						"validated_by_leader",
						"validated_by",
						"validated_at",
						"completed_at",
						"updated_at",
					}),
				},
				clause.Returning{},
			).
			Create(c).Error; err != nil {
			return err
		}
		return updateScheduledStatus(tx, st, status)
	})
}

func (r *completionRepo) Revert(ctx context.Context, st *model.ScheduledTask) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("task_id = ? AND user_id = ? AND scheduled_task_id = ?", st.TaskID, st.UserID, st.ScheduledTaskID).
			Delete(&model.TaskCompletion{}).Error; err != nil {
			return err
		}
		return updateScheduledStatus(tx, st, model.ScheduledStatusPending)
	})
}

func (r *completionRepo) Approve(ctx context.Context, c *model.TaskCompletion, st *model.ScheduledTask, validatorID string, at time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Model(&model.TaskCompletion{}).
			Where("completion_id = ? AND validated_by_leader = FALSE", c.CompletionID).
			Updates(map[string]interface{}{
				"validated_by_leader": true,
				"validated_by":        validatorID,
				"validated_at":        at,
				"updated_at":          at,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgerrors.ErrOptimisticLock
		}
		if st == nil {
			return nil
		}
		return updateScheduledStatus(tx, st, model.ScheduledStatusCompleted)
	})
}

func (r *completionRepo) Reject(ctx context.Context, c *model.TaskCompletion, st *model.ScheduledTask) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Where("completion_id = ? AND validated_by_leader = FALSE", c.CompletionID).
			Delete(&model.TaskCompletion{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return pkgerrors.ErrOptimisticLock
		}
		if st == nil {
			return nil
		}
		return updateScheduledStatus(tx, st, model.ScheduledStatusPending)
	})
}
