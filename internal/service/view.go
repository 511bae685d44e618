package service

import (
	"sort"
	"time"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/dto"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/model"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/period"
)

// taskState 排程任务的完成子状态
// status 为权威字段；pending 且存在未确认的完成记录时为 awaiting_validation
func taskState(st *model.ScheduledTask, c *model.TaskCompletion) string {
	if st.Status == model.ScheduledStatusCompleted {
		return dto.TaskStateCompleted
	}
	if c != nil && c.AwaitingValidation() {
		return dto.TaskStateAwaitingValidation
	}
	return dto.TaskStatePending
}

// expectedStatus 由完成记录推导排程状态
func expectedStatus(c *model.TaskCompletion) string {
	if c != nil && c.Validated() {
		return model.ScheduledStatusCompleted
	}
	return model.ScheduledStatusPending
}

func toCompletionResponse(c *model.TaskCompletion) *dto.CompletionResponse {
	if c == nil {
		return nil
	}
	resp := &dto.CompletionResponse{
		ID:                c.CompletionID,
		TaskID:            c.TaskID,
		UserID:            c.UserID,
		CompletedByUser:   c.CompletedByUser,
		ValidatedByLeader: c.ValidatedByLeader,
		ValidatedBy:       c.ValidatedBy,
		ValidatedAt:       formatOptionalTimestamp(c.ValidatedAt),
		CompletedAt:       formatTimestamp(c.CompletedAt),
	}
	if c.ScheduledTaskID != nil {
		resp.ScheduledTaskID = *c.ScheduledTaskID
	}
	return resp
}

func toScheduledTaskResponse(st *model.ScheduledTask, c *model.TaskCompletion) dto.ScheduledTaskResponse {
	resp := dto.ScheduledTaskResponse{
		ID:              st.ScheduledTaskID,
		TaskID:          st.TaskID,
		ScheduledDate:   period.FormatDate(st.ScheduledDate),
		ScheduledStart:  st.ScheduledStart,
		ScheduledEnd:    st.ScheduledEnd,
		IsCollaborative: st.IsCollaborative,
		Status:          st.Status,
		State:           taskState(st, c),
		Version:         st.Version,
		Completion:      toCompletionResponse(c),
	}
	if st.Task != nil {
		resp.Title = st.Task.Title
		resp.Description = st.Task.Description
		resp.Area = st.Task.Area
		resp.EstimatedHours = st.Task.EstimatedHours
	}
	return resp
}

// groupByDay 按日期分组，覆盖业务周七天，组内按开始时间排序
func groupByDay(weekStart time.Time, tasks []dto.ScheduledTaskResponse) []dto.ScheduleDayResponse {
	byDate := make(map[string][]dto.ScheduledTaskResponse)
	for _, t := range tasks {
		byDate[t.ScheduledDate] = append(byDate[t.ScheduledDate], t)
	}

	days := make([]dto.ScheduleDayResponse, 0, 7)
	seen := make(map[string]bool)
	for _, d := range period.Days(weekStart) {
		key := period.FormatDate(d)
		seen[key] = true
		days = append(days, dto.ScheduleDayResponse{
			Date:    key,
			Weekday: d.Weekday().String(),
			Tasks:   sortByStart(byDate[key]),
		})
	}

	// 日期落在本周之外的行单独成组，避免静默丢弃
	var extra []string
	for key := range byDate {
		if !seen[key] {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	for _, key := range extra {
		d, _ := time.Parse("2006-01-02", key)
		days = append(days, dto.ScheduleDayResponse{
			Date:    key,
			Weekday: d.Weekday().String(),
			Tasks:   sortByStart(byDate[key]),
		})
	}
	return days
}

func sortByStart(tasks []dto.ScheduledTaskResponse) []dto.ScheduledTaskResponse {
	if tasks == nil {
		return []dto.ScheduledTaskResponse{}
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		return tasks[i].ScheduledStart < tasks[j].ScheduledStart
	})
	return tasks
}
