package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/model"
	pkgerrors "github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/errors"
)

// ProgressCount 完成进度计数
type ProgressCount struct {
	Total     int64
	Completed int64
}

// ScheduledTaskRepository 周排程数据访问接口
type ScheduledTaskRepository interface {
	GetByID(ctx context.Context, id string) (*model.ScheduledTask, error)
	// ListByUserWeek 按日期、开始时间排序
	ListByUserWeek(ctx context.Context, userID string, weekStart time.Time) ([]model.ScheduledTask, error)
	// CountByUser 统计用户全部周的排程总数与已完成数
	CountByUser(ctx context.Context, userID string) (ProgressCount, error)
	// UpdateStatus 带版本校验地更新状态
	UpdateStatus(ctx context.Context, st *model.ScheduledTask, status string) error
	// ReplacePending 事务内替换用户某周的未完成排程
	// 已完成或已有完成记录的行保留，新行中与保留行重复的任务被忽略
	ReplacePending(ctx context.Context, userID string, weekStart time.Time, rows []model.ScheduledTask) error
}

type scheduledTaskRepo struct {
	db *gorm.DB
}

func NewScheduledTaskRepo(db *gorm.DB) ScheduledTaskRepository {
	return &scheduledTaskRepo{db: db}
}

func (r *scheduledTaskRepo) GetByID(ctx context.Context, id string) (*model.ScheduledTask, error) {
	var st model.ScheduledTask
	err := r.db.WithContext(ctx).
		Preload("Task").
		Where("scheduled_task_id = ?", id).
		First(&st).Error
	if err != nil {
		return nil, err
	}
	return &st, nil
}

func (r *scheduledTaskRepo) ListByUserWeek(ctx context.Context, userID string, weekStart time.Time) ([]model.ScheduledTask, error) {
	var list []model.ScheduledTask
	err := r.db.WithContext(ctx).
		Preload("Task").
		Where("user_id = ? AND week_start = ?", userID, weekStart).
		Order("scheduled_date ASC, scheduled_start ASC").
		Find(&list).Error
	return list, err
}

func (r *scheduledTaskRepo) CountByUser(ctx context.Context, userID string) (ProgressCount, error) {
	var row struct {
		Total     int64
		Completed int64
	}
	err := r.db.WithContext(ctx).
		Model(&model.ScheduledTask{}).
		Select("COUNT(*) AS total, COUNT(*) FILTER (WHERE status = ?) AS completed", model.ScheduledStatusCompleted).
		Where("user_id = ?", userID).
		Scan(&row).Error
	return ProgressCount{Total: row.Total, Completed: row.Completed}, err
}

func (r *scheduledTaskRepo) UpdateStatus(ctx context.Context, st *model.ScheduledTask, status string) error {
	return updateScheduledStatus(r.db.WithContext(ctx), st, status)
}

func (r *scheduledTaskRepo) ReplacePending(ctx context.Context, userID string, weekStart time.Time, rows []model.ScheduledTask) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("user_id = ? AND week_start = ? AND status = ?", userID, weekStart, model.ScheduledStatusPending).
			Where("NOT EXISTS (SELECT 1 FROM task_completions c WHERE c.scheduled_task_id = scheduled_tasks.scheduled_task_id)").
			Delete(&model.ScheduledTask{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "task_id"}, {Name: "user_id"}, {Name: "week_start"}},
				DoNothing: true,
			}).
			Create(&rows).Error
	})
}

// updateScheduledStatus 乐观锁更新，供完成记录事务复用
func updateScheduledStatus(db *gorm.DB, st *model.ScheduledTask, status string) error {
	now := time.Now().UTC()
	result := db.
		Model(&model.ScheduledTask{}).
		Where("scheduled_task_id = ? AND version = ?", st.ScheduledTaskID, st.Version).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_by": st.UpdatedBy,
			"updated_at": now,
			"version":    st.Version + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	st.Status = status
	st.Bump(now)
	return nil
}
