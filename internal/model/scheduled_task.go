package model

import "time"

// 排程状态
const (
	ScheduledStatusPending   = "pending"
	ScheduledStatusCompleted = "completed"
)

// ScheduledTask 周排程表，对应 scheduled_tasks
// 由排程生成器写入；本服务只修改 status
type ScheduledTask struct {
	ScheduledTaskID string    `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"scheduled_task_id"`
	TaskID          string    `gorm:"type:uuid;not null"                             json:"task_id"`
	UserID          string    `gorm:"type:uuid;not null"                             json:"user_id"`
	OrganizationID  string    `gorm:"type:uuid;not null"                             json:"organization_id"`
	WeekStart       time.Time `gorm:"type:date;not null"                             json:"week_start"`
	ScheduledDate   time.Time `gorm:"type:date;not null"                             json:"scheduled_date"`
	ScheduledStart  string    `gorm:"type:varchar(5);not null"                       json:"scheduled_start"` // HH:MM
	ScheduledEnd    string    `gorm:"type:varchar(5);not null"                       json:"scheduled_end"`
	IsCollaborative bool      `gorm:"not null;default:false"                         json:"is_collaborative"`
	Status          string    `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"` // pending | completed
	VersionedModel

	// 关联
	Task       *Task           `gorm:"foreignKey:TaskID;references:TaskID" json:"task,omitempty"`
	Completion *TaskCompletion `gorm:"-"                                   json:"completion,omitempty"`
}

func (ScheduledTask) TableName() string { return "scheduled_tasks" }
