package model

import (
	"time"

	"gorm.io/datatypes"
)

// 时间偏好
const (
	TimeOfDayMorning   = "morning"
	TimeOfDayAfternoon = "afternoon"
	TimeOfDayEvening   = "evening"
	TimeOfDayFlexible  = "flexible"
)

// DayWindow 单日可用时间窗口，时间格式 HH:MM
type DayWindow struct {
	Available bool   `json:"available"`
	Start     string `json:"start,omitempty"`
	End       string `json:"end,omitempty"`
}

// WeekDays 一周七天的可用时间
type WeekDays struct {
	Monday    DayWindow `json:"monday"`
	Tuesday   DayWindow `json:"tuesday"`
	Wednesday DayWindow `json:"wednesday"`
	Thursday  DayWindow `json:"thursday"`
	Friday    DayWindow `json:"friday"`
	Saturday  DayWindow `json:"saturday"`
	Sunday    DayWindow `json:"sunday"`
}

// On 返回指定星期的窗口
func (w WeekDays) On(d time.Weekday) DayWindow {
	switch d {
	case time.Monday:
		return w.Monday
	case time.Tuesday:
		return w.Tuesday
	case time.Wednesday:
		return w.Wednesday
	case time.Thursday:
		return w.Thursday
	case time.Friday:
		return w.Friday
	case time.Saturday:
		return w.Saturday
	default:
		return w.Sunday
	}
}

// Named 按名称列出七天，顺序固定为周一到周日
func (w WeekDays) Named() []NamedDay {
	return []NamedDay{
		{"monday", w.Monday},
		{"tuesday", w.Tuesday},
		{"wednesday", w.Wednesday},
		{"thursday", w.Thursday},
		{"friday", w.Friday},
		{"saturday", w.Saturday},
		{"sunday", w.Sunday},
	}
}

// AnyAvailable 至少一天可用
func (w WeekDays) AnyAvailable() bool {
	for _, d := range w.Named() {
		if d.Window.Available {
			return true
		}
	}
	return false
}

// NamedDay 带名称的单日窗口
type NamedDay struct {
	Name   string
	Window DayWindow
}

// WeeklyAvailability 每周可用时间表，对应 weekly_availabilities
type WeeklyAvailability struct {
	AvailabilityID       string                       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"availability_id"`
	UserID               string                       `gorm:"type:uuid;not null"                             json:"user_id"`
	OrganizationID       string                       `gorm:"type:uuid;not null"                             json:"organization_id"`
	WeekStart            time.Time                    `gorm:"type:date;not null"                             json:"week_start"`
	Days                 datatypes.JSONType[WeekDays] `gorm:"type:jsonb;not null"                            json:"days"`
	PreferredHoursPerDay int                          `gorm:"type:smallint;not null"                         json:"preferred_hours_per_day"`
	PreferredTimeOfDay   string                       `gorm:"type:varchar(20);not null"                      json:"preferred_time_of_day"`
	SubmittedAt          time.Time                    `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"submitted_at"`
	BaseModel
}

func (WeeklyAvailability) TableName() string { return "weekly_availabilities" }
