package service

import (
	"go.uber.org/zap"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/config"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/repository"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Period       PeriodService
	Availability AvailabilityService
	Schedule     ScheduleService
	Completion   CompletionService
	Export       ExportService
	Invalidator  *Invalidator
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	deps Deps,
	logger *zap.Logger,
) *Service {
	inv := NewInvalidator(repo, deps.Cache, logger)
	return &Service{
		Period:       NewPeriodService(deps),
		Availability: NewAvailabilityService(&cfg.Agenda, repo, deps, logger),
		Schedule:     NewScheduleService(&cfg.Agenda, repo, deps, logger),
		Completion:   NewCompletionService(&cfg.Agenda, repo, deps, inv, logger),
		Export:       NewExportService(&cfg.Agenda, repo, deps, logger),
		Invalidator:  inv,
	}
}
