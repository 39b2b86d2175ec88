package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskpilot/core/internal/domain/entities"
	"github.com/taskpilot/core/internal/infrastructure/logger"
	"github.com/taskpilot/core/internal/ports"
)

type testValidator struct {
	validator *validator.Validate
}

func (v *testValidator) Validate(i interface{}) error {
	return v.validator.Struct(i)
}

func newTestEcho() *echo.Echo {
	e := echo.New()
	e.Validator = &testValidator{validator: validator.New()}
	return e
}

// stubTaskService implements ports.TaskService with canned responses.
type stubTaskService struct {
	task    *entities.Task
	tasks   []*entities.Task
	err     error
	created *ports.CreateTaskRequest
}

func (s *stubTaskService) CreateTask(ctx context.Context, req ports.CreateTaskRequest) (*entities.Task, error) {
	s.created = &req
	return s.task, s.err
}

func (s *stubTaskService) GetTask(ctx context.Context, id uuid.UUID) (*entities.Task, error) {
	return s.task, s.err
}

func (s *stubTaskService) UpdateTask(ctx context.Context, id uuid.UUID, req ports.UpdateTaskRequest) (*entities.Task, error) {
	return s.task, s.err
}

func (s *stubTaskService) DeleteTask(ctx context.Context, id uuid.UUID) error {
	return s.err
}

func (s *stubTaskService) ListTasks(ctx context.Context, filter ports.TaskFilter) ([]*entities.Task, int, error) {
	return s.tasks, len(s.tasks), s.err
}

func (s *stubTaskService) ToggleTaskStatus(ctx context.Context, id uuid.UUID) (*entities.Task, error) {
	return s.task, s.err
}

func (s *stubTaskService) ToggleNotifications(ctx context.Context, id uuid.UUID) (*entities.Task, error) {
	return s.task, s.err
}

// stubReminderRunner implements ReminderRunner.
type stubReminderRunner struct {
	resp *ports.TriggerResponse
	err  error
	req  *ports.TriggerRequest
}

func (s *stubReminderRunner) RunTick(ctx context.Context, req ports.TriggerRequest) (*ports.TriggerResponse, error) {
	s.req = &req
	return s.resp, s.err
}

func sampleTask() *entities.Task {
	due := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	return &entities.Task{
		ID:                   uuid.New(),
		Title:                "Pay rent",
		Status:               entities.TaskStatusPending,
		Priority:             entities.PriorityHigh,
		DueDate:              &due,
		NotificationsEnabled: true,
	}
}

func TestCreateTask_Created(t *testing.T) {
	e := newTestEcho()
	task := sampleTask()
	svc := &stubTaskService{task: task}
	h := NewTaskHandler(svc, logger.NewNop())

	body := `{"title":"Pay rent","priority":"high"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.CreateTask(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	require.NotNil(t, svc.created)
	assert.Equal(t, "Pay rent", svc.created.Title)
	assert.Equal(t, entities.PriorityHigh, svc.created.Priority)
}

func TestCreateTask_MissingTitle(t *testing.T) {
	e := newTestEcho()
	h := NewTaskHandler(&stubTaskService{}, logger.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tasks", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.CreateTask(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestGetTask_NotFound(t *testing.T) {
	e := newTestEcho()
	h := NewTaskHandler(&stubTaskService{err: entities.ErrTaskNotFound}, logger.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(uuid.NewString())

	err := h.GetTask(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, httpErr.Code)
}

func TestGetTask_InvalidID(t *testing.T) {
	e := newTestEcho()
	h := NewTaskHandler(&stubTaskService{}, logger.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")

	err := h.GetTask(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestListTasks_InvalidStatus(t *testing.T) {
	e := newTestEcho()
	h := NewTaskHandler(&stubTaskService{}, logger.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/?status=bogus", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.ListTasks(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestListTasks_ReturnsPage(t *testing.T) {
	e := newTestEcho()
	h := NewTaskHandler(&stubTaskService{tasks: []*entities.Task{sampleTask()}}, logger.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/?status=pending&limit=10", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.ListTasks(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ports.PaginatedResponse[*entities.Task]
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, 10, resp.Limit)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Pay rent", resp.Data[0].Title)
}

func TestTrigger_RunsTickWithOverride(t *testing.T) {
	e := newTestEcho()
	runner := &stubReminderRunner{
		resp: &ports.TriggerResponse{TasksChecked: 3, NotificationsSent: 1, Message: "Checked 3 tasks, sent 1 notifications"},
	}
	h := NewNotificationHandler(runner, logger.NewNop())

	body := `{"testMode":true,"settings":{"email":"me@example.com","email_notifications":true}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.Trigger(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, runner.req)
	assert.True(t, runner.req.TestMode)
	require.NotNil(t, runner.req.Settings)
	assert.Equal(t, "me@example.com", runner.req.Settings.Email)

	var resp ports.TriggerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.TasksChecked)
	assert.Equal(t, 1, resp.NotificationsSent)
}

func TestTrigger_NoContactConfigured(t *testing.T) {
	e := newTestEcho()
	runner := &stubReminderRunner{err: entities.ErrNoContactConfigured}
	h := NewNotificationHandler(runner, logger.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.Trigger(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestTriggerCron_UsesStoredSettings(t *testing.T) {
	e := newTestEcho()
	runner := &stubReminderRunner{
		resp: &ports.TriggerResponse{TasksChecked: 0, NotificationsSent: 0, Message: "Checked 0 tasks, sent 0 notifications"},
	}
	h := NewNotificationHandler(runner, logger.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.TriggerCron(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, runner.req)
	assert.False(t, runner.req.TestMode)
	assert.Nil(t, runner.req.Settings)
}

// stubSettingsManager implements SettingsManager.
type stubSettingsManager struct {
	settings *entities.NotificationSettings
	err      error
	updated  *ports.UpdateSettingsRequest
}

func (s *stubSettingsManager) GetSettings(ctx context.Context) (*entities.NotificationSettings, error) {
	return s.settings, s.err
}

func (s *stubSettingsManager) UpdateSettings(ctx context.Context, req ports.UpdateSettingsRequest) (*entities.NotificationSettings, error) {
	s.updated = &req
	return s.settings, s.err
}

func TestUpdateSettings_RejectsBadEmail(t *testing.T) {
	e := newTestEcho()
	h := NewSettingsHandler(&stubSettingsManager{}, logger.NewNop())

	body := `{"email":"not-an-email"}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/settings", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := h.UpdateSettings(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestUpdateSettings_SavesAndReturns(t *testing.T) {
	e := newTestEcho()
	stored := &entities.NotificationSettings{
		Email:              "me@example.com",
		EmailNotifications: true,
		ReminderTimes:      []int{1440, 60},
	}
	mgr := &stubSettingsManager{settings: stored}
	h := NewSettingsHandler(mgr, logger.NewNop())

	body := `{"email":"me@example.com","email_notifications":true,"reminder_times":[60,1440]}`
	req := httptest.NewRequest(http.MethodPut, "/api/v1/settings", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.UpdateSettings(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NotNil(t, mgr.updated)
	assert.Equal(t, []int{60, 1440}, mgr.updated.ReminderTimes)
}
