package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/dto"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/service"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/response"
)

// AvailabilityHandler 可用时间 HTTP 处理器
type AvailabilityHandler struct {
	availabilitySvc service.AvailabilityService
}

// NewAvailabilityHandler 创建 AvailabilityHandler
func NewAvailabilityHandler(availabilitySvc service.AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{availabilitySvc: availabilitySvc}
}

// Submit 提交本周可用时间
// PUT /api/v1/agenda/availability
func (h *AvailabilityHandler) Submit(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.SubmitAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 14001, "参数校验失败")
		return
	}

	result, err := h.availabilitySvc.Submit(c.Request.Context(), &req, caller)
	if err != nil {
		h.handleAvailabilityError(c, err)
		return
	}

	response.OK(c, result)
}

// Get 查询某周可用时间
// GET /api/v1/agenda/availability?week_start=YYYY-MM-DD
func (h *AvailabilityHandler) Get(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var q dto.WeekQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 14001, "参数校验失败")
		return
	}

	has, err := h.availabilitySvc.HasAvailability(c.Request.Context(), caller, q.WeekStart)
	if err != nil {
		h.handleAvailabilityError(c, err)
		return
	}

	resp := dto.AvailabilityStatusResponse{WeekStart: q.WeekStart, HasAvailability: has}
	if has {
		record, err := h.availabilitySvc.Get(c.Request.Context(), caller, q.WeekStart)
		if err != nil {
			h.handleAvailabilityError(c, err)
			return
		}
		resp.Availability = record
		resp.WeekStart = record.WeekStart
	}

	response.OK(c, resp)
}

// ListTeam 团队提交进度
// GET /api/v1/agenda/availability/team?week_start=YYYY-MM-DD
func (h *AvailabilityHandler) ListTeam(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var q dto.WeekQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, 14001, "参数校验失败")
		return
	}

	result, err := h.availabilitySvc.ListWeek(c.Request.Context(), caller, q.WeekStart)
	if err != nil {
		h.handleAvailabilityError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *AvailabilityHandler) handleAvailabilityError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrNoDaySelected):
		response.BadRequest(c, 14002, "请至少选择一天可用时间")
	case errors.Is(err, service.ErrInvalidHoursPerDay):
		response.BadRequest(c, 14003, "每日时长必须在 2 到 8 小时之间")
	case errors.Is(err, service.ErrInvalidTimeOfDay):
		response.BadRequest(c, 14004, "时间偏好无效")
	case errors.Is(err, service.ErrInvalidDayWindow):
		response.BadRequest(c, 14005, "可用时间段无效")
	case errors.Is(err, service.ErrAvailabilityClosed):
		response.Conflict(c, 14006, "当前不在可用时间填写阶段")
	case errors.Is(err, service.ErrAvailabilityNotFound):
		response.NotFound(c, 14007, "该周尚未提交可用时间")
	default:
		response.InternalError(c)
	}
}
