package handler

import "github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/service"

// Handler 所有 Handler 的聚合入口
type Handler struct {
	Period       *PeriodHandler
	Availability *AvailabilityHandler
	Schedule     *ScheduleHandler
	Completion   *CompletionHandler
	Export       *ExportHandler
}

// NewHandler 创建 Handler 聚合
func NewHandler(svc *service.Service) *Handler {
	return &Handler{
		Period:       NewPeriodHandler(svc.Period),
		Availability: NewAvailabilityHandler(svc.Availability),
		Schedule:     NewScheduleHandler(svc.Schedule),
		Completion:   NewCompletionHandler(svc.Completion),
		Export:       NewExportHandler(svc.Export),
	}
}
