package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/model"
)

// TaskRepository 任务定义数据访问接口
// 任务由外部系统维护，这里只读
type TaskRepository interface {
	GetByID(ctx context.Context, id string) (*model.Task, error)
	// ListSchedulable 列出可排入 weekStart 周的任务：
	// 分配给用户、没有任何完成记录，且未排入 openAfter 之后的其他周
	ListSchedulable(ctx context.Context, organizationID, userID string, weekStart, openAfter time.Time) ([]model.Task, error)
}

type taskRepo struct {
	db *gorm.DB
}

func NewTaskRepo(db *gorm.DB) TaskRepository {
	return &taskRepo{db: db}
}

func (r *taskRepo) GetByID(ctx context.Context, id string) (*model.Task, error) {
	var task model.Task
	err := r.db.WithContext(ctx).
		Where("task_id = ?", id).
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepo) ListSchedulable(ctx context.Context, organizationID, userID string, weekStart, openAfter time.Time) ([]model.Task, error) {
	var tasks []model.Task
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND assignee_id = ?", organizationID, userID).
		Where("NOT EXISTS (SELECT 1 FROM task_completions c WHERE c.task_id = tasks.task_id AND c.user_id = ?)", userID).
		Where(`NOT EXISTS (SELECT 1 FROM scheduled_tasks s
			WHERE s.task_id = tasks.task_id AND s.user_id = ?
			AND s.week_start <> ? AND s.week_start > ? AND s.status = ?)`,
			userID, weekStart, openAfter, model.ScheduledStatusPending).
		Order("estimated_hours DESC, created_at ASC").
		Find(&tasks).Error
	return tasks, err
}
