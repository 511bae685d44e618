package dto

// 角色
const (
	RoleAdmin  = "admin"
	RoleLeader = "leader"
	RoleMember = "member"
)

// Caller 当前请求的调用方（来自 JWT）
type Caller struct {
	UserID         string
	OrganizationID string
	Role           string
}

// CanValidate 负责人与管理员可确认协作任务、查看团队进度
func (c Caller) CanValidate() bool {
	return c.Role == RoleAdmin || c.Role == RoleLeader
}

// WeekQuery 按周查询参数，week_start 为空时使用当前计划周
type WeekQuery struct {
	WeekStart string `form:"week_start" binding:"omitempty,datetime=2006-01-02"`
}
