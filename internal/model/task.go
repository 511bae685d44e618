package model

// Task 任务定义表，对应 tasks
type Task struct {
	TaskID          string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"task_id"`
	OrganizationID  string  `gorm:"type:uuid;not null"                             json:"organization_id"`
	Title           string  `gorm:"type:varchar(200);not null"                     json:"title"`
	Description     string  `gorm:"type:text;not null;default:''"                  json:"description"`
	Area            string  `gorm:"type:varchar(50);not null;default:''"           json:"area"`
	EstimatedHours  float64 `gorm:"type:numeric(4,1);not null;default:1"           json:"estimated_hours"`
	IsCollaborative bool    `gorm:"not null;default:false"                         json:"is_collaborative"`
	AssigneeID      *string `gorm:"type:uuid"                                      json:"assignee_id,omitempty"`
	LeaderID        *string `gorm:"type:uuid"                                      json:"leader_id,omitempty"`
	SoftDeleteModel
}

func (Task) TableName() string { return "tasks" }
