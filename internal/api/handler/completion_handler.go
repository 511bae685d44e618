package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/dto"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/service"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/response"
)

// CompletionHandler 任务完成状态 HTTP 处理器
type CompletionHandler struct {
	completionSvc service.CompletionService
}

// NewCompletionHandler 创建 CompletionHandler
func NewCompletionHandler(completionSvc service.CompletionService) *CompletionHandler {
	return &CompletionHandler{completionSvc: completionSvc}
}

// MarkComplete 标记完成
// POST /api/v1/agenda/tasks/:id/complete
func (h *CompletionHandler) MarkComplete(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	task, err := h.completionSvc.MarkComplete(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		h.handleCompletionError(c, err)
		return
	}

	response.OK(c, task)
}

// MarkPending 撤销完成
// DELETE /api/v1/agenda/tasks/:id/complete
func (h *CompletionHandler) MarkPending(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	task, err := h.completionSvc.MarkPending(c.Request.Context(), c.Param("id"), caller)
	if err != nil {
		h.handleCompletionError(c, err)
		return
	}

	response.OK(c, task)
}

// ListPendingValidations 待负责人确认的协作任务
// GET /api/v1/agenda/validations
func (h *CompletionHandler) ListPendingValidations(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	items, err := h.completionSvc.ListPendingValidations(c.Request.Context(), caller)
	if err != nil {
		h.handleCompletionError(c, err)
		return
	}

	response.OK(c, gin.H{"list": items})
}

// Validate 负责人确认或驳回
// POST /api/v1/agenda/validations/:id
func (h *CompletionHandler) Validate(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	var req dto.ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 15001, "参数校验失败")
		return
	}

	result, err := h.completionSvc.Validate(c.Request.Context(), c.Param("id"), *req.Approved, caller)
	if err != nil {
		h.handleCompletionError(c, err)
		return
	}

	response.OK(c, gin.H{"approved": *req.Approved, "completion": result})
}

func (h *CompletionHandler) handleCompletionError(c *gin.Context, err error) {
	if handleCommonError(c, err) {
		return
	}
	switch {
	case errors.Is(err, service.ErrScheduledTaskNotFound):
		response.NotFound(c, 15201, "排程任务不存在")
	case errors.Is(err, service.ErrScheduledTaskNotOwner):
		response.Forbidden(c, 15202, "只能修改自己的排程任务")
	case errors.Is(err, service.ErrWeekLocked):
		response.Locked(c, 15203, "该周排程已锁定")
	case errors.Is(err, service.ErrToggleInFlight):
		response.Conflict(c, 15204, "该任务正在更新中，请稍后重试")
	case errors.Is(err, service.ErrCompletionConflict):
		response.Conflict(c, 15205, "任务状态已被修改，请刷新后重试")
	case errors.Is(err, service.ErrCompletionNotFound):
		response.NotFound(c, 15206, "完成记录不存在")
	case errors.Is(err, service.ErrCompletionNotAwaiting):
		response.Conflict(c, 15207, "该完成记录不在待确认状态")
	case errors.Is(err, service.ErrCompletedInOtherWeek):
		response.Conflict(c, 15208, "该任务已在其他周提交完成")
	default:
		response.InternalError(c)
	}
}
