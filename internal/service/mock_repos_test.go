package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/generator"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/model"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/repository"
	pkgerrors "github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/errors"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/redis"
)

// ── 内存数据集 ──
// 所有 mock repo 共享同一份数据，Complete/Revert 等写操作同时修改完成记录与排程行

type memStore struct {
	mu sync.Mutex

	tasks       map[string]*model.Task
	avail       map[string]*model.WeeklyAvailability // "user|week" → record
	scheduled   map[string]*model.ScheduledTask
	completions map[string]*model.TaskCompletion // completion_id → record
	jobs        map[string]*model.GenerationJob

	upserts int
	seq     int

	// 注入的错误
	completeErr error
}

func newMemStore() *memStore {
	return &memStore{
		tasks:       make(map[string]*model.Task),
		avail:       make(map[string]*model.WeeklyAvailability),
		scheduled:   make(map[string]*model.ScheduledTask),
		completions: make(map[string]*model.TaskCompletion),
		jobs:        make(map[string]*model.GenerationJob),
	}
}

func (s *memStore) repository() *repository.Repository {
	return &repository.Repository{
		Task:          &mockTaskRepo{s},
		Availability:  &mockAvailabilityRepo{s},
		ScheduledTask: &mockScheduledTaskRepo{s},
		Completion:    &mockCompletionRepo{s},
		GenerationJob: &mockGenerationJobRepo{s},
	}
}

func (s *memStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func availKey(userID string, week time.Time) string {
	return userID + "|" + week.Format("2006-01-02")
}

// completionFor 调用方需持有 mu
func (s *memStore) completionFor(taskID, userID string) *model.TaskCompletion {
	for _, c := range s.completions {
		if c.TaskID == taskID && c.UserID == userID {
			return c
		}
	}
	return nil
}

// openElsewhere 任务是否已排入其他尚未开始的周，调用方需持有 mu
func (s *memStore) openElsewhere(taskID, userID string, weekStart, openAfter time.Time) bool {
	for _, row := range s.scheduled {
		if row.TaskID != taskID || row.UserID != userID || row.WeekStart.Equal(weekStart) {
			continue
		}
		if row.WeekStart.After(openAfter) && row.Status == model.ScheduledStatusPending {
			return true
		}
	}
	return false
}

// ownCompletion 属于该排程行的完成记录，调用方需持有 mu
func (s *memStore) ownCompletion(row *model.ScheduledTask) *model.TaskCompletion {
	c := s.completionFor(row.TaskID, row.UserID)
	if c == nil || !c.BelongsTo(row.ScheduledTaskID) {
		return nil
	}
	return c
}

// setStatus 调用方需持有 mu；版本不一致时返回 ErrOptimisticLock
func (s *memStore) setStatus(st *model.ScheduledTask, status string) error {
	row, ok := s.scheduled[st.ScheduledTaskID]
	if !ok || row.Version != st.Version {
		return pkgerrors.ErrOptimisticLock
	}
	now := time.Now().UTC()
	row.Status = status
	row.Bump(now)
	st.Status = status
	st.Bump(now)
	return nil
}

// seedScheduled 写入一条排程及其任务定义
func (s *memStore) seedScheduled(id, taskID, userID string, week, date time.Time, start, end string, collaborative bool) *model.ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[taskID]; !ok {
		s.tasks[taskID] = &model.Task{
			TaskID:          taskID,
			OrganizationID:  "org-1",
			Title:           "任务 " + taskID,
			EstimatedHours:  1,
			IsCollaborative: collaborative,
		}
	}
	st := &model.ScheduledTask{
		ScheduledTaskID: id,
		TaskID:          taskID,
		UserID:          userID,
		OrganizationID:  "org-1",
		WeekStart:       week,
		ScheduledDate:   date,
		ScheduledStart:  start,
		ScheduledEnd:    end,
		IsCollaborative: collaborative,
		Status:          model.ScheduledStatusPending,
	}
	st.Version = 1
	s.scheduled[id] = st
	return st
}

func (s *memStore) scheduledCopy(id string) *model.ScheduledTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.scheduled[id]
	if !ok {
		return nil
	}
	cp := *row
	return &cp
}

func (s *memStore) completionCopy(taskID, userID string) *model.TaskCompletion {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.completionFor(taskID, userID)
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

// ── Mock TaskRepository ──

type mockTaskRepo struct{ s *memStore }

func (m *mockTaskRepo) GetByID(_ context.Context, id string) (*model.Task, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if t, ok := m.s.tasks[id]; ok {
		cp := *t
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockTaskRepo) ListSchedulable(_ context.Context, organizationID, userID string, weekStart, openAfter time.Time) ([]model.Task, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.Task
	for _, t := range m.s.tasks {
		if t.OrganizationID != organizationID || t.AssigneeID == nil || *t.AssigneeID != userID {
			continue
		}
		if m.s.completionFor(t.TaskID, userID) != nil || m.s.openElsewhere(t.TaskID, userID, weekStart, openAfter) {
			continue
		}
		result = append(result, *t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].EstimatedHours > result[j].EstimatedHours })
	return result, nil
}

// ── Mock AvailabilityRepository ──

type mockAvailabilityRepo struct{ s *memStore }

func (m *mockAvailabilityRepo) Upsert(_ context.Context, a *model.WeeklyAvailability) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.upserts++
	key := availKey(a.UserID, a.WeekStart)
	if old, ok := m.s.avail[key]; ok {
		a.AvailabilityID = old.AvailabilityID
	} else {
		a.AvailabilityID = m.s.nextID("avail")
	}
	cp := *a
	m.s.avail[key] = &cp
	return nil
}

func (m *mockAvailabilityRepo) GetByUserWeek(_ context.Context, userID string, weekStart time.Time) (*model.WeeklyAvailability, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if a, ok := m.s.avail[availKey(userID, weekStart)]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockAvailabilityRepo) ExistsByUserWeek(_ context.Context, userID string, weekStart time.Time) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	_, ok := m.s.avail[availKey(userID, weekStart)]
	return ok, nil
}

func (m *mockAvailabilityRepo) ListByOrgWeek(_ context.Context, organizationID string, weekStart time.Time) ([]model.WeeklyAvailability, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.WeeklyAvailability
	for _, a := range m.s.avail {
		if a.OrganizationID == organizationID && a.WeekStart.Equal(weekStart) {
			result = append(result, *a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].UserID < result[j].UserID })
	return result, nil
}

// ── Mock ScheduledTaskRepository ──

type mockScheduledTaskRepo struct{ s *memStore }

func (m *mockScheduledTaskRepo) GetByID(_ context.Context, id string) (*model.ScheduledTask, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	row, ok := m.s.scheduled[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *row
	if t, ok := m.s.tasks[row.TaskID]; ok {
		tc := *t
		cp.Task = &tc
	}
	return &cp, nil
}

func (m *mockScheduledTaskRepo) ListByUserWeek(_ context.Context, userID string, weekStart time.Time) ([]model.ScheduledTask, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.ScheduledTask
	for _, row := range m.s.scheduled {
		if row.UserID != userID || !row.WeekStart.Equal(weekStart) {
			continue
		}
		cp := *row
		if t, ok := m.s.tasks[row.TaskID]; ok {
			tc := *t
			cp.Task = &tc
		}
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].ScheduledDate.Equal(result[j].ScheduledDate) {
			return result[i].ScheduledDate.Before(result[j].ScheduledDate)
		}
		return result[i].ScheduledStart < result[j].ScheduledStart
	})
	return result, nil
}

func (m *mockScheduledTaskRepo) CountByUser(_ context.Context, userID string) (repository.ProgressCount, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var pc repository.ProgressCount
	for _, row := range m.s.scheduled {
		if row.UserID != userID {
			continue
		}
		pc.Total++
		if row.Status == model.ScheduledStatusCompleted {
			pc.Completed++
		}
	}
	return pc, nil
}

func (m *mockScheduledTaskRepo) UpdateStatus(_ context.Context, st *model.ScheduledTask, status string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.setStatus(st, status)
}

func (m *mockScheduledTaskRepo) ReplacePending(_ context.Context, userID string, weekStart time.Time, rows []model.ScheduledTask) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	kept := make(map[string]bool)
	for id, row := range m.s.scheduled {
		if row.UserID != userID || !row.WeekStart.Equal(weekStart) {
			continue
		}
		if row.Status == model.ScheduledStatusPending && m.s.ownCompletion(row) == nil {
			delete(m.s.scheduled, id)
			continue
		}
		kept[row.TaskID] = true
	}
	for i := range rows {
		if kept[rows[i].TaskID] {
			continue
		}
		cp := rows[i]
		cp.ScheduledTaskID = m.s.nextID("st")
		cp.Version = 1
		m.s.scheduled[cp.ScheduledTaskID] = &cp
	}
	return nil
}

// ── Mock CompletionRepository ──

type mockCompletionRepo struct{ s *memStore }

func (m *mockCompletionRepo) GetByID(_ context.Context, id string) (*model.TaskCompletion, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if c, ok := m.s.completions[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCompletionRepo) GetByTaskUser(_ context.Context, taskID, userID string) (*model.TaskCompletion, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if c := m.s.completionFor(taskID, userID); c != nil {
		cp := *c
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockCompletionRepo) ListByUserTasks(_ context.Context, userID string, taskIDs []string) ([]model.TaskCompletion, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	want := make(map[string]bool, len(taskIDs))
	for _, id := range taskIDs {
		want[id] = true
	}
	var result []model.TaskCompletion
	for _, c := range m.s.completions {
		if c.UserID == userID && want[c.TaskID] {
			result = append(result, *c)
		}
	}
	return result, nil
}

func (m *mockCompletionRepo) ListAwaitingValidation(_ context.Context, organizationID string) ([]model.TaskCompletion, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.TaskCompletion
	for _, c := range m.s.completions {
		if c.OrganizationID != organizationID || !c.AwaitingValidation() {
			continue
		}
		cp := *c
		if t, ok := m.s.tasks[c.TaskID]; ok {
			tc := *t
			cp.Task = &tc
		}
		result = append(result, cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CompletedAt.Before(result[j].CompletedAt) })
	return result, nil
}

func (m *mockCompletionRepo) Complete(_ context.Context, st *model.ScheduledTask, c *model.TaskCompletion, status string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.completeErr != nil {
		return m.s.completeErr
	}
	// 先校验版本，失败时不写完成记录（模拟事务回滚）
	row, ok := m.s.scheduled[st.ScheduledTaskID]
	if !ok || row.Version != st.Version {
		return pkgerrors.ErrOptimisticLock
	}
	if old := m.s.completionFor(c.TaskID, c.UserID); old != nil {
		c.CompletionID = old.CompletionID
	} else {
		c.CompletionID = m.s.nextID("comp")
	}
	cp := *c
	m.s.completions[c.CompletionID] = &cp
	return m.s.setStatus(st, status)
}

func (m *mockCompletionRepo) Revert(_ context.Context, st *model.ScheduledTask) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	row, ok := m.s.scheduled[st.ScheduledTaskID]
	if !ok || row.Version != st.Version {
		return pkgerrors.ErrOptimisticLock
	}
	if old := m.s.ownCompletion(row); old != nil {
		delete(m.s.completions, old.CompletionID)
	}
	return m.s.setStatus(st, model.ScheduledStatusPending)
}

func (m *mockCompletionRepo) Approve(_ context.Context, c *model.TaskCompletion, st *model.ScheduledTask, validatorID string, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.completions[c.CompletionID]
	if !ok || !stored.AwaitingValidation() {
		return pkgerrors.ErrOptimisticLock
	}
	if st != nil {
		if row, ok := m.s.scheduled[st.ScheduledTaskID]; !ok || row.Version != st.Version {
			return pkgerrors.ErrOptimisticLock
		}
	}
	t := true
	stored.ValidatedByLeader = &t
	stored.ValidatedBy = &validatorID
	stored.ValidatedAt = &at
	if st == nil {
		return nil
	}
	return m.s.setStatus(st, model.ScheduledStatusCompleted)
}

func (m *mockCompletionRepo) Reject(_ context.Context, c *model.TaskCompletion, st *model.ScheduledTask) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	stored, ok := m.s.completions[c.CompletionID]
	if !ok || !stored.AwaitingValidation() {
		return pkgerrors.ErrOptimisticLock
	}
	if st != nil {
		if row, ok := m.s.scheduled[st.ScheduledTaskID]; !ok || row.Version != st.Version {
			return pkgerrors.ErrOptimisticLock
		}
	}
	delete(m.s.completions, c.CompletionID)
	if st == nil {
		return nil
	}
	return m.s.setStatus(st, model.ScheduledStatusPending)
}

// ── Mock GenerationJobRepository ──

type mockGenerationJobRepo struct{ s *memStore }

func (m *mockGenerationJobRepo) Create(_ context.Context, job *model.GenerationJob) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if job.JobID == "" {
		job.JobID = m.s.nextID("job")
	}
	job.CreatedAt = time.Now()
	cp := *job
	m.s.jobs[job.JobID] = &cp
	return nil
}

func (m *mockGenerationJobRepo) MarkRunning(_ context.Context, jobID string, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if j, ok := m.s.jobs[jobID]; ok {
		j.Status = model.JobStatusRunning
		j.AttemptedAt = &at
	}
	return nil
}

func (m *mockGenerationJobRepo) MarkFinished(_ context.Context, jobID, status, errMsg string, at time.Time) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if j, ok := m.s.jobs[jobID]; ok {
		j.Status = status
		j.Error = errMsg
		j.FinishedAt = &at
	}
	return nil
}

func (m *mockGenerationJobRepo) ListByUserWeek(_ context.Context, userID string, weekStart time.Time, limit int) ([]model.GenerationJob, error) {
	return m.list(func(j *model.GenerationJob) bool {
		return j.UserID != nil && *j.UserID == userID && j.WeekStart.Equal(weekStart)
	}, limit), nil
}

func (m *mockGenerationJobRepo) ListByOrgWeek(_ context.Context, organizationID string, weekStart time.Time, limit int) ([]model.GenerationJob, error) {
	return m.list(func(j *model.GenerationJob) bool {
		return j.OrganizationID == organizationID && j.WeekStart.Equal(weekStart)
	}, limit), nil
}

func (m *mockGenerationJobRepo) list(match func(*model.GenerationJob) bool, limit int) []model.GenerationJob {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var result []model.GenerationJob
	for _, j := range m.s.jobs {
		if match(j) {
			result = append(result, *j)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].JobID < result[j].JobID })
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result
}

// ── Fake GenerationTrigger ──

type fakeTrigger struct {
	mu       sync.Mutex
	enqueued []generator.Job
	ran      []generator.Job
	queued   bool
	runErr   error
}

func newFakeTrigger() *fakeTrigger {
	return &fakeTrigger{queued: true}
}

func (f *fakeTrigger) Enqueue(_ context.Context, job generator.Job) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enqueued = append(f.enqueued, job)
	return fmt.Sprintf("job-%d", len(f.enqueued)), f.queued
}

func (f *fakeTrigger) Run(_ context.Context, job generator.Job) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ran = append(f.ran, job)
	return fmt.Sprintf("run-%d", len(f.ran)), f.runErr
}

// ── Fake Cache ──

type fakeCache struct {
	mu        sync.Mutex
	data      map[string][]byte
	deleted   []string
	published []interface{}
	failAll   error
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (f *fakeCache) GetJSON(_ context.Context, key string, dst interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	raw, ok := f.data[key]
	if !ok {
		return redis.ErrCacheMiss
	}
	return json.Unmarshal(raw, dst)
}

func (f *fakeCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = raw
	return nil
}

func (f *fakeCache) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	for _, k := range keys {
		delete(f.data, k)
	}
	f.deleted = append(f.deleted, keys...)
	return nil
}

func (f *fakeCache) Publish(_ context.Context, _ string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll != nil {
		return f.failAll
	}
	f.published = append(f.published, payload)
	return nil
}

func (f *fakeCache) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

// ── Fake Locker ──

type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]string
	err      error
	released []string
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]string)}
}

func (f *fakeLocker) AcquireLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", false, f.err
	}
	if _, ok := f.held[key]; ok {
		return "", false, nil
	}
	token := "tok-" + key
	f.held[key] = token
	return token, true, nil
}

func (f *fakeLocker) ReleaseLock(_ context.Context, key, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held[key] == token {
		delete(f.held, key)
	}
	f.released = append(f.released, key)
	return nil
}
