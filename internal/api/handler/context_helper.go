package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/dto"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/response"
)

// mustGetString 从 Gin 上下文中安全提取非空字符串。
// 缺失时写入 401 响应，调用方应在 ok=false 时直接 return。
func mustGetString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetCaller 提取 JWT 中间件注入的 user_id、organization_id 与 role。
func MustGetCaller(c *gin.Context) (dto.Caller, bool) {
	userID, ok := mustGetString(c, "user_id")
	if !ok {
		return dto.Caller{}, false
	}
	orgID, ok := mustGetString(c, "organization_id")
	if !ok {
		return dto.Caller{}, false
	}
	role, ok := mustGetString(c, "role")
	if !ok {
		return dto.Caller{}, false
	}
	return dto.Caller{UserID: userID, OrganizationID: orgID, Role: role}, true
}
