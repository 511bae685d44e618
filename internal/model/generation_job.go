package model

import "time"

// 生成任务类型
const (
	JobKindPreview = "preview"
	JobKindWeekly  = "weekly"
)

// 生成任务状态
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
)

// GenerationJob 排程生成任务表，对应 generation_jobs
// UserID 为空表示组织级别的整周生成
type GenerationJob struct {
	JobID          string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"job_id"`
	Kind           string     `gorm:"type:varchar(20);not null"                      json:"kind"`
	UserID         *string    `gorm:"type:uuid"                                      json:"user_id,omitempty"`
	OrganizationID string     `gorm:"type:uuid;not null"                             json:"organization_id"`
	WeekStart      time.Time  `gorm:"type:date;not null"                             json:"week_start"`
	Status         string     `gorm:"type:varchar(20);not null;default:'queued'"     json:"status"`
	Error          string     `gorm:"type:text;not null;default:''"                  json:"error,omitempty"`
	AttemptedAt    *time.Time `json:"attempted_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	CreatedAt      time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt      time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`
}

func (GenerationJob) TableName() string { return "generation_jobs" }
