package dto

// ── 周期 ──

// PeriodResponse 当前阶段
type PeriodResponse struct {
	Period             string `json:"period"`
	WeekStart          string `json:"week_start"`
	WeekStartsAt       string `json:"week_starts_at"`
	ReviewStartsAt     string `json:"review_starts_at"`
	ActiveWeekStart    string `json:"active_week_start"`
	ActiveWeekStartsAt string `json:"active_week_starts_at"`
	CanSubmit          bool   `json:"can_submit"`
	CanRegenerate      bool   `json:"can_regenerate"`
	Timezone           string `json:"timezone"`
	Now                string `json:"now"`
}

// ── 可用时间 ──

// DayWindow 单日可用时间，时间格式 HH:MM
type DayWindow struct {
	Available bool   `json:"available"`
	Start     string `json:"start"`
	End       string `json:"end"`
}

// WeekDays 七天可用时间
type WeekDays struct {
	Monday    DayWindow `json:"monday"`
	Tuesday   DayWindow `json:"tuesday"`
	Wednesday DayWindow `json:"wednesday"`
	Thursday  DayWindow `json:"thursday"`
	Friday    DayWindow `json:"friday"`
	Saturday  DayWindow `json:"saturday"`
	Sunday    DayWindow `json:"sunday"`
}

// SubmitAvailabilityRequest 提交可用时间请求
// 取值校验在 Service 层完成，以返回具体的业务错误
type SubmitAvailabilityRequest struct {
	WeekStart            string   `json:"week_start"`
	Days                 WeekDays `json:"days"`
	PreferredHoursPerDay int      `json:"preferred_hours_per_day"`
	PreferredTimeOfDay   string   `json:"preferred_time_of_day"`
}

// AvailabilityResponse 可用时间响应
type AvailabilityResponse struct {
	ID                   string   `json:"id"`
	UserID               string   `json:"user_id"`
	WeekStart            string   `json:"week_start"`
	Days                 WeekDays `json:"days"`
	PreferredHoursPerDay int      `json:"preferred_hours_per_day"`
	PreferredTimeOfDay   string   `json:"preferred_time_of_day"`
	SubmittedAt          string   `json:"submitted_at"`
}

// SubmitAvailabilityResponse 提交结果
// GenerationQueued=false 不代表提交失败
type SubmitAvailabilityResponse struct {
	Availability     AvailabilityResponse `json:"availability"`
	GenerationQueued bool                 `json:"generation_queued"`
	GenerationJobID  string               `json:"generation_job_id,omitempty"`
}

// AvailabilityStatusResponse 某周可用时间状态
type AvailabilityStatusResponse struct {
	WeekStart       string                `json:"week_start"`
	HasAvailability bool                  `json:"has_availability"`
	Availability    *AvailabilityResponse `json:"availability,omitempty"`
}

// TeamAvailabilityResponse 团队提交进度
type TeamAvailabilityResponse struct {
	WeekStart      string   `json:"week_start"`
	SubmittedCount int      `json:"submitted_count"`
	SubmittedUsers []string `json:"submitted_user_ids"`
}

// ── 周排程 ──

// 任务完成子状态
const (
	TaskStatePending            = "pending"
	TaskStateAwaitingValidation = "awaiting_validation"
	TaskStateCompleted          = "completed"
)

// CompletionResponse 完成记录
type CompletionResponse struct {
	ID                string  `json:"id"`
	TaskID            string  `json:"task_id"`
	UserID            string  `json:"user_id"`
	ScheduledTaskID   string  `json:"scheduled_task_id,omitempty"`
	CompletedByUser   bool    `json:"completed_by_user"`
	ValidatedByLeader *bool   `json:"validated_by_leader"`
	ValidatedBy       *string `json:"validated_by,omitempty"`
	ValidatedAt       string  `json:"validated_at,omitempty"`
	CompletedAt       string  `json:"completed_at"`
}

// ScheduledTaskResponse 排程任务
type ScheduledTaskResponse struct {
	ID              string              `json:"id"`
	TaskID          string              `json:"task_id"`
	Title           string              `json:"title"`
	Description     string              `json:"description,omitempty"`
	Area            string              `json:"area,omitempty"`
	EstimatedHours  float64             `json:"estimated_hours"`
	ScheduledDate   string              `json:"scheduled_date"`
	ScheduledStart  string              `json:"scheduled_start"`
	ScheduledEnd    string              `json:"scheduled_end"`
	IsCollaborative bool                `json:"is_collaborative"`
	Status          string              `json:"status"`
	State           string              `json:"state"`
	Version         int                 `json:"version"`
	Completion      *CompletionResponse `json:"completion,omitempty"`
}

// ScheduleDayResponse 单日排程
type ScheduleDayResponse struct {
	Date    string                  `json:"date"`
	Weekday string                  `json:"weekday"`
	Tasks   []ScheduledTaskResponse `json:"tasks"`
}

// WeeklyScheduleResponse 周排程
type WeeklyScheduleResponse struct {
	WeekStart          string                `json:"week_start"`
	Period             string                `json:"period"`
	Locked             bool                  `json:"locked"`
	Days               []ScheduleDayResponse `json:"days"`
	Total              int                   `json:"total"`
	Completed          int                   `json:"completed"`
	AwaitingValidation int                   `json:"awaiting_validation"`
	ProgressPercent    int                   `json:"progress_percent"`
}

// StatsResponse 全局进度
type StatsResponse struct {
	Total           int64 `json:"total"`
	Completed       int64 `json:"completed"`
	ProgressPercent int   `json:"progress_percent"`
}

// RegenerateRequest 重新生成请求
type RegenerateRequest struct {
	WeekStart string `json:"week_start" binding:"omitempty,datetime=2006-01-02"`
}

// ExportQuery 导出参数
type ExportQuery struct {
	WeekStart string `form:"week_start" binding:"omitempty,datetime=2006-01-02"`
	Format    string `form:"format"     binding:"omitempty,oneof=xlsx ics"`
}

// ── 负责人确认 ──

// ValidationItemResponse 待确认的协作任务
type ValidationItemResponse struct {
	Completion CompletionResponse `json:"completion"`
	TaskTitle  string             `json:"task_title"`
	Area       string             `json:"area,omitempty"`
}

// ValidateRequest 确认请求
type ValidateRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

// ── 生成任务 ──

// GenerationJobResponse 生成任务记录
type GenerationJobResponse struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Status      string `json:"status"`
	Error       string `json:"error,omitempty"`
	WeekStart   string `json:"week_start"`
	AttemptedAt string `json:"attempted_at,omitempty"`
	FinishedAt  string `json:"finished_at,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// RegenerateResponse 重新生成结果
type RegenerateResponse struct {
	JobID     string `json:"job_id"`
	WeekStart string `json:"week_start"`
	Status    string `json:"status"`
}
