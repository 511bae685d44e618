package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/model"
)

// GenerationJobRepository 排程生成任务数据访问接口
type GenerationJobRepository interface {
	Create(ctx context.Context, job *model.GenerationJob) error
	MarkRunning(ctx context.Context, jobID string, at time.Time) error
	MarkFinished(ctx context.Context, jobID, status, errMsg string, at time.Time) error
	ListByUserWeek(ctx context.Context, userID string, weekStart time.Time, limit int) ([]model.GenerationJob, error)
	ListByOrgWeek(ctx context.Context, organizationID string, weekStart time.Time, limit int) ([]model.GenerationJob, error)
}

type generationJobRepo struct {
	db *gorm.DB
}

func NewGenerationJobRepo(db *gorm.DB) GenerationJobRepository {
	return &generationJobRepo{db: db}
}

func (r *generationJobRepo) Create(ctx context.Context, job *model.GenerationJob) error {
	return r.db.WithContext(ctx).Create(job).Error
}

func (r *generationJobRepo) MarkRunning(ctx context.Context, jobID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.GenerationJob{}).
		Where("job_id = ?", jobID).
		Updates(map[string]interface{}{
			"status":       model.JobStatusRunning,
			"attempted_at": at,
			"updated_at":   at,
		}).Error
}

func (r *generationJobRepo) MarkFinished(ctx context.Context, jobID, status, errMsg string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.GenerationJob{}).
		Where("job_id = ?", jobID).
		Updates(map[string]interface{}{
			"status":      status,
			"error":       errMsg,
			"finished_at": at,
			"updated_at":  at,
		}).Error
}

func (r *generationJobRepo) ListByUserWeek(ctx context.Context, userID string, weekStart time.Time, limit int) ([]model.GenerationJob, error) {
	var jobs []model.GenerationJob
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND week_start = ?", userID, weekStart).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

func (r *generationJobRepo) ListByOrgWeek(ctx context.Context, organizationID string, weekStart time.Time, limit int) ([]model.GenerationJob, error) {
	var jobs []model.GenerationJob
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND week_start = ?", organizationID, weekStart).
		Order("created_at DESC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}
