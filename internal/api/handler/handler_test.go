package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/dto"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/internal/service"
	"github.com/zarkojrpajarino-hue/desconocidosselectoscom-sub004/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ═══════════════════════════════════════════════════════════
// Mock Services
// ═══════════════════════════════════════════════════════════

// ── Mock PeriodService ──

type mockPeriodService struct {
	result *dto.PeriodResponse
}

func (m *mockPeriodService) Current(_ context.Context) *dto.PeriodResponse { return m.result }

// ── Mock AvailabilityService ──

type mockAvailabilityService struct {
	submitResult *dto.SubmitAvailabilityResponse
	submitErr    error
	getResult    *dto.AvailabilityResponse
	getErr       error
	has          bool
	hasErr       error
	listResult   *dto.TeamAvailabilityResponse
	listErr      error

	lastCaller dto.Caller
}

func (m *mockAvailabilityService) Submit(_ context.Context, _ *dto.SubmitAvailabilityRequest, caller dto.Caller) (*dto.SubmitAvailabilityResponse, error) {
	m.lastCaller = caller
	return m.submitResult, m.submitErr
}
func (m *mockAvailabilityService) Get(_ context.Context, _ dto.Caller, _ string) (*dto.AvailabilityResponse, error) {
	return m.getResult, m.getErr
}
func (m *mockAvailabilityService) HasAvailability(_ context.Context, _ dto.Caller, _ string) (bool, error) {
	return m.has, m.hasErr
}
func (m *mockAvailabilityService) ListWeek(_ context.Context, _ dto.Caller, _ string) (*dto.TeamAvailabilityResponse, error) {
	return m.listResult, m.listErr
}

// ── Mock ScheduleService ──

type mockScheduleService struct {
	weekResult  *dto.WeeklyScheduleResponse
	weekErr     error
	regenResult *dto.RegenerateResponse
	regenErr    error
	statsResult *dto.StatsResponse
	statsErr    error
	jobsResult  []dto.GenerationJobResponse
	jobsErr     error

	lastWeek string
}

func (m *mockScheduleService) GetWeek(_ context.Context, _ dto.Caller, weekStart string) (*dto.WeeklyScheduleResponse, error) {
	m.lastWeek = weekStart
	return m.weekResult, m.weekErr
}
func (m *mockScheduleService) Regenerate(_ context.Context, _ dto.Caller, weekStart string) (*dto.RegenerateResponse, error) {
	m.lastWeek = weekStart
	return m.regenResult, m.regenErr
}
func (m *mockScheduleService) Stats(_ context.Context, _ dto.Caller) (*dto.StatsResponse, error) {
	return m.statsResult, m.statsErr
}
func (m *mockScheduleService) ListJobs(_ context.Context, _ dto.Caller, _ string) ([]dto.GenerationJobResponse, error) {
	return m.jobsResult, m.jobsErr
}

// ── Mock CompletionService ──

type mockCompletionService struct {
	toggleResult   *dto.ScheduledTaskResponse
	toggleErr      error
	listResult     []dto.ValidationItemResponse
	listErr        error
	validateResult *dto.CompletionResponse
	validateErr    error

	lastID       string
	lastApproved bool
}

func (m *mockCompletionService) MarkComplete(_ context.Context, id string, _ dto.Caller) (*dto.ScheduledTaskResponse, error) {
	m.lastID = id
	return m.toggleResult, m.toggleErr
}
func (m *mockCompletionService) MarkPending(_ context.Context, id string, _ dto.Caller) (*dto.ScheduledTaskResponse, error) {
	m.lastID = id
	return m.toggleResult, m.toggleErr
}
func (m *mockCompletionService) ListPendingValidations(_ context.Context, _ dto.Caller) ([]dto.ValidationItemResponse, error) {
	return m.listResult, m.listErr
}
func (m *mockCompletionService) Validate(_ context.Context, id string, approved bool, _ dto.Caller) (*dto.CompletionResponse, error) {
	m.lastID = id
	m.lastApproved = approved
	return m.validateResult, m.validateErr
}
func (m *mockCompletionService) Reconcile(_ context.Context, _ string, _ string) (int, error) {
	return 0, nil
}

// ── Mock ExportService ──

type mockExportService struct {
	file *service.ExportFile
	err  error

	lastFormat string
}

func (m *mockExportService) ExportWeek(_ context.Context, _ dto.Caller, _, format string) (*service.ExportFile, error) {
	m.lastFormat = format
	return m.file, m.err
}

// ═══════════════════════════════════════════════════════════
// Test Helpers
// ═══════════════════════════════════════════════════════════

func setAuth(c *gin.Context) {
	c.Set("user_id", "test-user-id")
	c.Set("organization_id", "test-org-id")
	c.Set("role", "member")
}

// newRouter 注册单个路由，auth=true 时注入认证信息
func newRouter(method, path string, h gin.HandlerFunc, auth bool) *gin.Engine {
	r := gin.New()
	handlers := []gin.HandlerFunc{}
	if auth {
		handlers = append(handlers, func(c *gin.Context) { setAuth(c); c.Next() })
	}
	handlers = append(handlers, h)
	r.Handle(method, path, handlers...)
	return r
}

func serve(r *gin.Engine, method, target string, body io.Reader) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	r.ServeHTTP(w, req)
	return w
}

func jsonBody(v interface{}) io.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func parseResponse(w *httptest.ResponseRecorder) response.Response {
	var resp response.Response
	json.Unmarshal(w.Body.Bytes(), &resp)
	return resp
}

// ═══════════════════════════════════════════════════════════
// PeriodHandler Tests
// ═══════════════════════════════════════════════════════════

func TestPeriodHandler_Current(t *testing.T) {
	h := NewPeriodHandler(&mockPeriodService{result: &dto.PeriodResponse{Period: "filling", WeekStart: "2026-10-21"}})
	w := serve(newRouter("GET", "/period", h.Current, true), "GET", "/period", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"period":"filling"`) {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

// ═══════════════════════════════════════════════════════════
// AvailabilityHandler Tests
// ═══════════════════════════════════════════════════════════

func TestAvailabilityHandler_Submit_Success(t *testing.T) {
	mock := &mockAvailabilityService{submitResult: &dto.SubmitAvailabilityResponse{GenerationQueued: true}}
	h := NewAvailabilityHandler(mock)

	w := serve(newRouter("PUT", "/availability", h.Submit, true), "PUT", "/availability", jsonBody(dto.SubmitAvailabilityRequest{
		Days:                 dto.WeekDays{Monday: dto.DayWindow{Available: true, Start: "09:00", End: "18:00"}},
		PreferredHoursPerDay: 4,
		PreferredTimeOfDay:   "flexible",
	}))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.lastCaller.OrganizationID != "test-org-id" || mock.lastCaller.UserID != "test-user-id" {
		t.Errorf("caller not propagated: %+v", mock.lastCaller)
	}
}

func TestAvailabilityHandler_Submit_Unauthenticated(t *testing.T) {
	h := NewAvailabilityHandler(&mockAvailabilityService{})
	w := serve(newRouter("PUT", "/availability", h.Submit, false), "PUT", "/availability", jsonBody(dto.SubmitAvailabilityRequest{}))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestAvailabilityHandler_Submit_BadJSON(t *testing.T) {
	h := NewAvailabilityHandler(&mockAvailabilityService{})
	w := serve(newRouter("PUT", "/availability", h.Submit, true), "PUT", "/availability", strings.NewReader("not json"))

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 14001 {
		t.Errorf("expected code 14001, got %d", resp.Code)
	}
}

func TestAvailabilityHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"NoDay", service.ErrNoDaySelected, 400, 14002},
		{"Hours", service.ErrInvalidHoursPerDay, 400, 14003},
		{"TimeOfDay", service.ErrInvalidTimeOfDay, 400, 14004},
		{"Window", service.ErrInvalidDayWindow, 400, 14005},
		{"Closed", service.ErrAvailabilityClosed, 409, 14006},
		{"WeekStart", service.ErrInvalidWeekStart, 400, 10001},
		{"Timeout", context.DeadlineExceeded, 504, 10006},
		{"InternalError", errors.New("unknown"), 500, 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAvailabilityHandler(&mockAvailabilityService{submitErr: tt.err})
			w := serve(newRouter("PUT", "/availability", h.Submit, true), "PUT", "/availability", jsonBody(dto.SubmitAvailabilityRequest{}))

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("expected code %d, got %d", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestAvailabilityHandler_Get(t *testing.T) {
	mock := &mockAvailabilityService{has: false}
	h := NewAvailabilityHandler(mock)
	r := newRouter("GET", "/availability", h.Get, true)

	w := serve(r, "GET", "/availability?week_start=2026-10-21", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"has_availability":false`) {
		t.Fatalf("unexpected response %d: %s", w.Code, w.Body.String())
	}

	mock.has = true
	mock.getResult = &dto.AvailabilityResponse{ID: "a-1", WeekStart: "2026-10-21"}
	w = serve(r, "GET", "/availability?week_start=2026-10-21", nil)
	if !strings.Contains(w.Body.String(), `"has_availability":true`) || !strings.Contains(w.Body.String(), `"id":"a-1"`) {
		t.Errorf("unexpected body: %s", w.Body.String())
	}

	w = serve(r, "GET", "/availability?week_start=21-10-2026", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad date, got %d", w.Code)
	}
}

// ═══════════════════════════════════════════════════════════
// ScheduleHandler Tests
// ═══════════════════════════════════════════════════════════

func TestScheduleHandler_GetWeek(t *testing.T) {
	mock := &mockScheduleService{weekResult: &dto.WeeklyScheduleResponse{WeekStart: "2026-10-21", Total: 3, Completed: 1, ProgressPercent: 33}}
	h := NewScheduleHandler(mock)

	w := serve(newRouter("GET", "/schedule", h.GetWeek, true), "GET", "/schedule?week_start=2026-10-21", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.lastWeek != "2026-10-21" {
		t.Errorf("week_start not propagated: %q", mock.lastWeek)
	}
	if !strings.Contains(w.Body.String(), `"progress_percent":33`) {
		t.Errorf("unexpected body: %s", w.Body.String())
	}
}

func TestScheduleHandler_Regenerate(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"Success", nil, 200, 0},
		{"NotReviewing", service.ErrNotReviewing, 409, 15101},
		{"GenerationFailed", service.ErrGenerationFailed, 502, 15102},
		{"Unavailable", service.ErrGeneratorUnavailable, 503, 15103},
		{"Forbidden", service.ErrPermissionDenied, 403, 10003},
		{"Timeout", context.DeadlineExceeded, 504, 10006},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockScheduleService{regenResult: &dto.RegenerateResponse{JobID: "job-1"}, regenErr: tt.err}
			h := NewScheduleHandler(mock)

			w := serve(newRouter("POST", "/regenerate", h.Regenerate, true), "POST", "/regenerate", nil)
			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("expected code %d, got %d", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestScheduleHandler_Regenerate_WithBody(t *testing.T) {
	mock := &mockScheduleService{regenResult: &dto.RegenerateResponse{}}
	h := NewScheduleHandler(mock)

	w := serve(newRouter("POST", "/regenerate", h.Regenerate, true), "POST", "/regenerate", jsonBody(dto.RegenerateRequest{WeekStart: "2026-10-21"}))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.lastWeek != "2026-10-21" {
		t.Errorf("week_start not propagated: %q", mock.lastWeek)
	}
}

// ═══════════════════════════════════════════════════════════
// CompletionHandler Tests
// ═══════════════════════════════════════════════════════════

func TestCompletionHandler_MarkComplete_Success(t *testing.T) {
	mock := &mockCompletionService{toggleResult: &dto.ScheduledTaskResponse{ID: "st-1", Status: "completed", State: "completed"}}
	h := NewCompletionHandler(mock)

	w := serve(newRouter("POST", "/tasks/:id/complete", h.MarkComplete, true), "POST", "/tasks/st-1/complete", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.lastID != "st-1" {
		t.Errorf("expected id st-1, got %s", mock.lastID)
	}
}

func TestCompletionHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   int
	}{
		{"NotFound", service.ErrScheduledTaskNotFound, 404, 15201},
		{"NotOwner", service.ErrScheduledTaskNotOwner, 403, 15202},
		{"Locked", service.ErrWeekLocked, 423, 15203},
		{"InFlight", service.ErrToggleInFlight, 409, 15204},
		{"Conflict", service.ErrCompletionConflict, 409, 15205},
		{"OtherWeek", service.ErrCompletedInOtherWeek, 409, 15208},
		{"InternalError", errors.New("db down"), 500, 50000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCompletionHandler(&mockCompletionService{toggleErr: tt.err})

			w := serve(newRouter("DELETE", "/tasks/:id/complete", h.MarkPending, true), "DELETE", "/tasks/st-1/complete", nil)
			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			if resp := parseResponse(w); resp.Code != tt.wantCode {
				t.Errorf("expected code %d, got %d", tt.wantCode, resp.Code)
			}
		})
	}
}

func TestCompletionHandler_Validate(t *testing.T) {
	mock := &mockCompletionService{}
	h := NewCompletionHandler(mock)
	r := newRouter("POST", "/validations/:id", h.Validate, true)

	// approved 为必填
	w := serve(r, "POST", "/validations/comp-1", jsonBody(map[string]interface{}{}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without approved, got %d", w.Code)
	}

	w = serve(r, "POST", "/validations/comp-1", jsonBody(map[string]interface{}{"approved": false}))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.lastID != "comp-1" || mock.lastApproved {
		t.Errorf("unexpected call: id=%s approved=%v", mock.lastID, mock.lastApproved)
	}

	mock.validateErr = service.ErrCompletionNotAwaiting
	w = serve(r, "POST", "/validations/comp-1", jsonBody(map[string]interface{}{"approved": true}))
	if w.Code != http.StatusConflict || parseResponse(w).Code != 15207 {
		t.Errorf("expected 409/15207, got %d/%d", w.Code, parseResponse(w).Code)
	}
}

// ═══════════════════════════════════════════════════════════
// ExportHandler Tests
// ═══════════════════════════════════════════════════════════

func TestExportHandler_Success(t *testing.T) {
	mock := &mockExportService{file: &service.ExportFile{
		Buf:         bytes.NewBufferString("BEGIN:VCALENDAR"),
		Filename:    "agenda_2026-10-21.ics",
		ContentType: "text/calendar; charset=utf-8",
	}}
	h := NewExportHandler(mock)

	w := serve(newRouter("GET", "/export", h.ExportWeek, true), "GET", "/export?format=ics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if mock.lastFormat != "ics" {
		t.Errorf("format not propagated: %q", mock.lastFormat)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
		t.Errorf("unexpected content type %s", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "agenda_2026-10-21.ics") {
		t.Errorf("unexpected content disposition %s", cd)
	}
}

func TestExportHandler_InvalidFormat(t *testing.T) {
	h := NewExportHandler(&mockExportService{})
	w := serve(newRouter("GET", "/export", h.ExportWeek, true), "GET", "/export?format=pdf", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestExportHandler_NoSchedule(t *testing.T) {
	h := NewExportHandler(&mockExportService{err: service.ErrExportNoSchedule})
	w := serve(newRouter("GET", "/export", h.ExportWeek, true), "GET", "/export", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
	if resp := parseResponse(w); resp.Code != 16101 {
		t.Errorf("expected code 16101, got %d", resp.Code)
	}
}
