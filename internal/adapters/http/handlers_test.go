package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskvault/core/internal/application/services"
	"github.com/taskvault/core/internal/domain/entities"
	"github.com/taskvault/core/internal/infrastructure/config"
	"github.com/taskvault/core/internal/infrastructure/crypto"
	"github.com/taskvault/core/internal/infrastructure/logger"
	"github.com/taskvault/core/internal/infrastructure/token"
	"github.com/taskvault/core/internal/ports"
)

// In-memory repositories backing the handler tests.

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]*entities.User
}

func (r *memUserRepo) Create(_ context.Context, user *entities.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return entities.ErrEmailTaken
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, entities.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, email string) (*entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, entities.ErrUserNotFound
}

type memTaskRepo struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*entities.Task
	seq   int
}

func (r *memTaskRepo) Create(_ context.Context, task *entities.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	// Spread creation times so newest-first ordering is deterministic.
	r.seq++
	task.CreatedAt = time.Now().Add(time.Duration(r.seq) * time.Millisecond)
	task.UpdatedAt = task.CreatedAt
	stored := *task
	r.tasks[task.ID] = &stored
	return nil
}

func (r *memTaskRepo) GetByID(_ context.Context, id uuid.UUID) (*entities.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil, entities.ErrTaskNotFound
	}
	copied := *task
	return &copied, nil
}

func (r *memTaskRepo) Update(_ context.Context, task *entities.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[task.ID]; !ok {
		return entities.ErrTaskNotFound
	}
	stored := *task
	r.tasks[task.ID] = &stored
	return nil
}

func (r *memTaskRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tasks[id]; !ok {
		return entities.ErrTaskNotFound
	}
	delete(r.tasks, id)
	return nil
}

func (r *memTaskRepo) matching(filter ports.TaskFilter) []*entities.Task {
	var matched []*entities.Task
	for _, task := range r.tasks {
		if task.UserID != filter.UserID {
			continue
		}
		if filter.Status != nil && task.Status != *filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(task.Title), strings.ToLower(filter.Search)) {
			continue
		}
		copied := *task
		matched = append(matched, &copied)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return matched
}

func (r *memTaskRepo) List(_ context.Context, filter ports.TaskFilter) ([]*entities.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	matched := r.matching(filter)
	offset := filter.Offset()
	if offset >= len(matched) {
		return []*entities.Task{}, nil
	}
	end := offset + filter.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], nil
}

func (r *memTaskRepo) Count(_ context.Context, filter ports.TaskFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int64(len(r.matching(filter))), nil
}

func (r *memTaskRepo) raw(id uuid.UUID) *entities.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return nil
	}
	copied := *task
	return &copied
}

type testValidator struct {
	validator *validator.Validate
}

func (v *testValidator) Validate(i interface{}) error {
	return v.validator.Struct(i)
}

// testEnv wires real services, a real cipher and token service, and
// in-memory repositories behind an echo instance with the production
// routes for auth and tasks.
type testEnv struct {
	echo     *echo.Echo
	tokens   *token.Service
	taskRepo *memTaskRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := logger.NewNop()

	cipher, err := crypto.New([]byte("0123456789abcdef0123456789abcdef"), log)
	require.NoError(t, err)

	tokens := token.NewService(config.JWTConfig{
		Secret:    "test-secret",
		ExpiresIn: 7 * 24 * time.Hour,
		Issuer:    "taskvault-test",
	}, false)

	userRepo := &memUserRepo{users: make(map[uuid.UUID]*entities.User)}
	taskRepo := &memTaskRepo{tasks: make(map[uuid.UUID]*entities.Task)}

	authHandler := NewAuthHandler(services.NewAuthService(userRepo, log), tokens, log)
	taskHandler := NewTaskHandler(services.NewTaskService(taskRepo, cipher, log), tokens, log)

	e := echo.New()
	e.Validator = &testValidator{validator: validator.New()}

	v1 := e.Group("/api/v1")
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)
	auth.POST("/logout", authHandler.Logout)
	auth.GET("/me", authHandler.Me)

	tasks := v1.Group("/tasks")
	tasks.GET("", taskHandler.ListTasks)
	tasks.POST("", taskHandler.CreateTask)
	tasks.GET("/:id", taskHandler.GetTask)
	tasks.PUT("/:id", taskHandler.UpdateTask)
	tasks.DELETE("/:id", taskHandler.DeleteTask)

	return &testEnv{echo: e, tokens: tokens, taskRepo: taskRepo}
}

func (env *testEnv) do(method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	env.echo.ServeHTTP(rec, req)
	return rec
}

// register creates an account and returns its identity cookie.
func (env *testEnv) register(t *testing.T, name, email, password string) *http.Cookie {
	t.Helper()

	body := fmt.Sprintf(`{"name":%q,"email":%q,"password":%q}`, name, email, password)
	rec := env.do(http.MethodPost, "/api/v1/auth/register", body, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == token.CookieName {
			return cookie
		}
	}
	t.Fatal("no identity cookie set")
	return nil
}

func TestRegister_SetsIdentityCookie(t *testing.T) {
	env := newTestEnv(t)

	cookie := env.register(t, "Ann", "ann@x.com", "pw123456")
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)

	claims, ok := env.tokens.Verify(cookie.Value)
	require.True(t, ok)
	assert.Equal(t, "ann@x.com", claims.Email)
}

func TestRegister_ValidationFailures(t *testing.T) {
	env := newTestEnv(t)

	for name, body := range map[string]string{
		"missing name":   `{"email":"a@x.com","password":"pw123456"}`,
		"bad email":      `{"name":"Ann","email":"not-an-email","password":"pw123456"}`,
		"short password": `{"name":"Ann","email":"a@x.com","password":"short"}`,
		"not json":       `title=x`,
	} {
		rec := env.do(http.MethodPost, "/api/v1/auth/register", body, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestRegister_DuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "Ann", "ann@x.com", "pw123456")

	rec := env.do(http.MethodPost, "/api/v1/auth/register",
		`{"name":"Imposter","email":"ANN@X.COM","password":"pw654321"}`, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLogin_Scenario(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "Ann", "ann@x.com", "pw123456")

	rec := env.do(http.MethodPost, "/api/v1/auth/login",
		`{"email":"ann@x.com","password":"wrong"}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/auth/login",
		`{"email":"ann@x.com","password":"pw123456"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var hasCookie bool
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == token.CookieName && cookie.Value != "" {
			hasCookie = true
		}
	}
	assert.True(t, hasCookie, "login must set the identity cookie")

	var resp AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ann@x.com", resp.User.Email)
}

func TestLogout_ClearsCookie(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.register(t, "Ann", "ann@x.com", "pw123456")

	rec := env.do(http.MethodPost, "/api/v1/auth/logout", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	cleared := rec.Result().Cookies()
	require.NotEmpty(t, cleared)
	assert.Empty(t, cleared[0].Value)
	assert.Equal(t, -1, cleared[0].MaxAge)
}

func TestMe_ReturnsClaims(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.register(t, "Ann", "ann@x.com", "pw123456")

	rec := env.do(http.MethodGet, "/api/v1/auth/me", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ann@x.com")

	rec = env.do(http.MethodGet, "/api/v1/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestTasks_RequireAuthentication(t *testing.T) {
	env := newTestEnv(t)

	for _, probe := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/tasks"},
		{http.MethodPost, "/api/v1/tasks"},
		{http.MethodPut, "/api/v1/tasks/" + uuid.NewString()},
		{http.MethodDelete, "/api/v1/tasks/" + uuid.NewString()},
	} {
		rec := env.do(probe.method, probe.path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s", probe.method, probe.path)

		bad := &http.Cookie{Name: token.CookieName, Value: "garbage"}
		rec = env.do(probe.method, probe.path, "", bad)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "%s %s with bad token", probe.method, probe.path)
	}
}

func TestCreateTask_ScenarioWithEncryptionAtRest(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.register(t, "Ann", "ann@x.com", "pw123456")

	rec := env.do(http.MethodPost, "/api/v1/tasks",
		`{"title":"Buy milk","description":"2% organic"}`, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Buy milk", resp.Task.Title)
	assert.Equal(t, "2% organic", resp.Task.Description)
	assert.Equal(t, entities.TaskStatusTodo, resp.Task.Status)

	stored := env.taskRepo.raw(resp.Task.ID)
	require.NotNil(t, stored)
	assert.Equal(t, 2, strings.Count(stored.Description, ":"))
	assert.NotContains(t, stored.Description, "2% organic")

	// Reading it back restores the cleartext.
	rec = env.do(http.MethodGet, "/api/v1/tasks/"+resp.Task.ID.String(), "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "2% organic")
}

func TestCreateTask_Validation(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.register(t, "Ann", "ann@x.com", "pw123456")

	for name, body := range map[string]string{
		"missing title": `{"description":"x"}`,
		"long title":    fmt.Sprintf(`{"title":%q}`, strings.Repeat("t", 201)),
		"bad status":    `{"title":"ok","status":"archived"}`,
		"long body":     fmt.Sprintf(`{"title":"ok","description":%q}`, strings.Repeat("d", 2001)),
	} {
		rec := env.do(http.MethodPost, "/api/v1/tasks", body, cookie)
		assert.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestTasks_CrossOwnerIsolation(t *testing.T) {
	env := newTestEnv(t)
	annCookie := env.register(t, "Ann", "ann@x.com", "pw123456")
	bobCookie := env.register(t, "Bob", "bob@x.com", "pw123456")

	rec := env.do(http.MethodPost, "/api/v1/tasks",
		`{"title":"Ann private","description":"secret"}`, annCookie)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	taskID := created.Task.ID.String()

	// Bob cannot read, update or delete Ann's task.
	rec = env.do(http.MethodGet, "/api/v1/tasks/"+taskID, "", bobCookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPut, "/api/v1/tasks/"+taskID, `{"status":"done"}`, bobCookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodDelete, "/api/v1/tasks/"+taskID, "", bobCookie)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Bob's listing never surfaces Ann's task.
	rec = env.do(http.MethodGet, "/api/v1/tasks", "", bobCookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "Ann private")

	// A missing id stays a 404, distinct from the 403 above.
	rec = env.do(http.MethodDelete, "/api/v1/tasks/"+uuid.NewString(), "", bobCookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateTask_PartialPatch(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.register(t, "Ann", "ann@x.com", "pw123456")

	rec := env.do(http.MethodPost, "/api/v1/tasks",
		`{"title":"Buy milk","description":"2% organic"}`, cookie)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	taskID := created.Task.ID.String()

	// Status-only patch leaves title and description unchanged.
	rec = env.do(http.MethodPut, "/api/v1/tasks/"+taskID, `{"status":"done"}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated TaskResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Buy milk", updated.Task.Title)
	assert.Equal(t, "2% organic", updated.Task.Description)
	assert.Equal(t, entities.TaskStatusDone, updated.Task.Status)

	// Explicit empty description clears it without error.
	rec = env.do(http.MethodPut, "/api/v1/tasks/"+taskID, `{"description":""}`, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Empty(t, updated.Task.Description)

	// Empty title is rejected.
	rec = env.do(http.MethodPut, "/api/v1/tasks/"+taskID, `{"title":""}`, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTasks_PaginationAndFilters(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.register(t, "Ann", "ann@x.com", "pw123456")

	for i := 0; i < 7; i++ {
		status := "todo"
		if i%2 == 1 {
			status = "done"
		}
		body := fmt.Sprintf(`{"title":"task %d","status":%q}`, i, status)
		rec := env.do(http.MethodPost, "/api/v1/tasks", body, cookie)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	var resp TaskListResponse
	rec := env.do(http.MethodGet, "/api/v1/tasks?page=1&limit=3", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Tasks, 3)
	assert.EqualValues(t, 7, resp.Pagination.Total)
	assert.EqualValues(t, 3, resp.Pagination.TotalPages)
	assert.Equal(t, 3, resp.Pagination.Limit)

	// Newest first: the last created task leads page one.
	assert.Equal(t, "task 6", resp.Tasks[0].Title)

	// The final page holds the remainder.
	rec = env.do(http.MethodGet, "/api/v1/tasks?page=3&limit=3", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Tasks, 1)

	// Status filter.
	rec = env.do(http.MethodGet, "/api/v1/tasks?status=done", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 3, resp.Pagination.Total)
	for _, task := range resp.Tasks {
		assert.Equal(t, entities.TaskStatusDone, task.Status)
	}

	// Title search, case-insensitive.
	rec = env.do(http.MethodGet, "/api/v1/tasks?search=TASK+6", "", cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 1, resp.Pagination.Total)

	// Unknown status is a 400.
	rec = env.do(http.MethodGet, "/api/v1/tasks?status=archived", "", cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
