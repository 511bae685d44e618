package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/model"
)

// AvailabilityRepository 每周可用时间数据访问接口
type AvailabilityRepository interface {
	// Upsert 以 (user_id, week_start) 为冲突键写入，重复提交覆盖旧值
	Upsert(ctx context.Context, a *model.WeeklyAvailability) error
	GetByUserWeek(ctx context.Context, userID string, weekStart time.Time) (*model.WeeklyAvailability, error)
	ExistsByUserWeek(ctx context.Context, userID string, weekStart time.Time) (bool, error)
	ListByOrgWeek(ctx context.Context, organizationID string, weekStart time.Time) ([]model.WeeklyAvailability, error)
}

type availabilityRepo struct {
	db *gorm.DB
}

func NewAvailabilityRepo(db *gorm.DB) AvailabilityRepository {
	return &availabilityRepo{db: db}
}

func (r *availabilityRepo) Upsert(ctx context.Context, a *model.WeeklyAvailability) error {
	return r.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns: []clause.Column{{Name: "user_id"}, {Name: "week_start"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"organization_id",
					"days",
					"preferred_hours_per_day",
					"preferred_time_of_day",
					"submitted_at",
					"updated_at",
					"updated_by",
				}),
			},
			clause.Returning{},
		).
		Create(a).Error
}

func (r *availabilityRepo) GetByUserWeek(ctx context.Context, userID string, weekStart time.Time) (*model.WeeklyAvailability, error) {
	var a model.WeeklyAvailability
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND week_start = ?", userID, weekStart).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *availabilityRepo) ExistsByUserWeek(ctx context.Context, userID string, weekStart time.Time) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.WeeklyAvailability{}).
		Where("user_id = ? AND week_start = ?", userID, weekStart).
		Count(&count).Error
	return count > 0, err
}

func (r *availabilityRepo) ListByOrgWeek(ctx context.Context, organizationID string, weekStart time.Time) ([]model.WeeklyAvailability, error) {
	var list []model.WeeklyAvailability
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND week_start = ?", organizationID, weekStart).
		Order("submitted_at ASC").
		Find(&list).Error
	return list, err
}
