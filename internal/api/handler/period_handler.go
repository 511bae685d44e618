package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/service"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/response"
)

// PeriodHandler 周期阶段 HTTP 处理器
type PeriodHandler struct {
	periodSvc service.PeriodService
}

// NewPeriodHandler 创建 PeriodHandler
func NewPeriodHandler(periodSvc service.PeriodService) *PeriodHandler {
	return &PeriodHandler{periodSvc: periodSvc}
}

// Current 当前阶段
// GET /api/v1/agenda/period
func (h *PeriodHandler) Current(c *gin.Context) {
	response.OK(c, h.periodSvc.Current(c.Request.Context()))
}
