package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/dto"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/service"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/response"
)

// ScheduleHandler 周排程 HTTP 处理器
type ScheduleHandler struct {
	scheduleSvc service.ScheduleService
}

// NewScheduleHandler 创建 ScheduleHandler
func NewScheduleHandler(scheduleSvc service.ScheduleService) *ScheduleHandler {
	return &ScheduleHandler{scheduleSvc: scheduleSvc}
}

// GetWeek 获取我的周排程
// GET /api/v1/agenda/schedule?week_start=YYYY-MM-DD
func (h *ScheduleHandler) GetWeek(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var q dto.WeekQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 15001, "参数校验失败")
		return
	}

	week, err := h.scheduleSvc.GetWeek(c.Request.Context(), caller, q.WeekStart)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, week)
}

// Stats 全局完成进度
// GET /api/v1/agenda/stats
func (h *ScheduleHandler) Stats(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	stats, err := h.scheduleSvc.Stats(c.Request.Context(), caller)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, stats)
}

// Regenerate 复核阶段重新生成整周排程
// POST /api/v1/agenda/schedule/regenerate
func (h *ScheduleHandler) Regenerate(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.RegenerateRequest
	// 请求体可为空
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, 15001, "参数校验失败")
			return
		}
	}

	result, err := h.scheduleSvc.Regenerate(c.Request.Context(), caller, req.WeekStart)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, result)
}

// ListJobs 排程生成记录
// GET /api/v1/agenda/schedule/jobs?week_start=YYYY-MM-DD
func (h *ScheduleHandler) ListJobs(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var q dto.WeekQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 15001, "参数校验失败")
		return
	}

	jobs, err := h.scheduleSvc.ListJobs(c.Request.Context(), caller, q.WeekStart)
	if err != nil {
		h.handleScheduleError(c, err)
		return
	}

	response.OK(c, gin.H{"list": jobs})
}

func (h *ScheduleHandler) handleScheduleError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrNotReviewing):
		response.Conflict(c, 15101, "仅可在复核阶段重新生成排程")
	case errors.Is(err, service.ErrGenerationFailed):
		response.Error(c, http.StatusBadGateway, 15102, "排程生成失败")
	case errors.Is(err, service.ErrGeneratorUnavailable):
		response.Error(c, http.StatusServiceUnavailable, 15103, "排程生成器未配置")
	default:
		response.InternalError(c)
	}
}
