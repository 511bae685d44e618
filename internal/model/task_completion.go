package model

import "time"

// TaskCompletion 任务完成记录表，对应 task_completions
// ValidatedByLeader 为 nil 表示尚未评估
type TaskCompletion struct {
	CompletionID      string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"completion_id"`
	TaskID            string     `gorm:"type:uuid;not null"                             json:"task_id"`
	UserID            string     `gorm:"type:uuid;not null"                             json:"user_id"`
	OrganizationID    string     `gorm:"type:uuid;not null"                             json:"organization_id"`
	ScheduledTaskID   *string    `gorm:"type:uuid"                                      json:"scheduled_task_id,omitempty"`
	CompletedByUser   bool       `gorm:"not null;default:true"                          json:"completed_by_user"`
	ValidatedByLeader *bool      `json:"validated_by_leader"`
	ValidatedBy       *string    `gorm:"type:uuid"                                      json:"validated_by,omitempty"`
	ValidatedAt       *time.Time `json:"validated_at,omitempty"`
	CompletedAt       time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"completed_at"`
	CreatedAt         time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
	UpdatedAt         time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"updated_at"`

	// 关联
	Task *Task `gorm:"foreignKey:TaskID;references:TaskID" json:"task,omitempty"`
}

func (TaskCompletion) TableName() string { return "task_completions" }

// Validated 是否已通过负责人确认
func (c *TaskCompletion) Validated() bool {
	return c.ValidatedByLeader != nil && *c.ValidatedByLeader
}

// AwaitingValidation 是否已提交但等待负责人确认
func (c *TaskCompletion) AwaitingValidation() bool {
	return c.ValidatedByLeader != nil && !*c.ValidatedByLeader
}

// BelongsTo 完成记录是否对应指定排程行
// 同一任务可能出现在多个周，完成记录只属于提交时的那一行
func (c *TaskCompletion) BelongsTo(scheduledTaskID string) bool {
	return c.ScheduledTaskID != nil && *c.ScheduledTaskID == scheduledTaskID
}
