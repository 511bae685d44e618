package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/service"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/response"
)

// handleCommonError 处理各模块共用的业务错误，已写入响应时返回 true
func handleCommonError(c *gin.Context, err error) bool {
	switch {
	case errors.Is(err, service.ErrInvalidWeekStart):
		response.BadRequest(c, 10001, "week_start 必须为 YYYY-MM-DD 格式的周三")
	case errors.Is(err, service.ErrPermissionDenied):
		response.Forbidden(c, 10003, "无权限访问")
	case errors.Is(err, context.DeadlineExceeded):
		response.Error(c, http.StatusGatewayTimeout, 10006, "操作超时，请稍后重试")
	default:
		return false
	}
	return true
}
