package handler

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/internal/repository/memory"
	"github.com/noah-isme/learnhub-api/internal/service"
	"github.com/noah-isme/learnhub-api/pkg/jobs"
	"github.com/noah-isme/learnhub-api/pkg/storage"
)

type apiHarness struct {
	t       *testing.T
	router  *gin.Engine
	store   *memory.Store
	metrics *service.MetricsService
	queue   *jobs.Queue
}

// newAPIHarness wires the production router over the in-memory store with a real audit queue.
func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewStore()
	metrics := service.NewMetricsService()
	gate := service.NewGate(nil)
	validate := validator.New()
	signer := storage.NewSignedURLSigner("media-secret", time.Minute, "/api/media")

	worker := service.NewAuditWorker(store.Activities(), metrics, nil)
	queue := jobs.NewQueue("audit", worker.Handle, jobs.QueueConfig{Workers: 2, BufferSize: 64, OnDrop: worker.Dropped})
	queue.Start(context.Background())
	t.Cleanup(queue.Stop)
	audit := service.NewAuditRecorder(queue, worker, nil)

	auth := service.NewAuthService(store.Users(), validate, nil, service.AuthConfig{
		Secret: "secret", Expiration: time.Hour, Issuer: "learnhub-test", BcryptCost: bcrypt.MinCost,
	})
	courses := service.NewCourseService(service.CourseServiceDeps{
		Courses: store.Courses(), Users: store.Users(), Enrollments: store.Enrollments(),
		Gate: gate, Audit: audit, Signer: signer, Validator: validate,
	})
	enrollments := service.NewEnrollmentService(store.Enrollments(), store.Courses(), gate, audit, nil, metrics, nil)
	activities := service.NewActivityService(store.Activities(), gate, nil, nil, metrics, nil, service.ActivityExportConfig{})

	router := NewRouter(RouterConfig{APIPrefix: "/api", QueryTimeout: 5 * time.Second}, Dependencies{
		Resolver:    auth,
		Gate:        gate,
		Auth:        auth,
		Courses:     courses,
		Enrollments: enrollments,
		Activities:  activities,
		Media:       signer,
		Metrics:     metrics,
		Store:       store,
	})
	return &apiHarness{t: t, router: router, store: store, metrics: metrics, queue: queue}
}

func (h *apiHarness) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	h.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(h.t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *apiHarness) register(name string, role models.UserRole) string {
	h.t.Helper()
	w := h.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": name, "email": name + "@example.com", "password": "secret1", "role": string(role),
	})
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	var env struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Data.Token
}

// admin seeds an admin account directly, since self-registration never grants the role.
func (h *apiHarness) admin() string {
	h.t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(h.t, err)
	require.NoError(h.t, h.store.Users().Create(context.Background(), &models.User{
		Name: "root", Email: "root@example.com", PasswordHash: string(hash), Role: models.RoleAdmin,
	}))
	w := h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "root@example.com", "password": "secret1"})
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())
	var env struct {
		Data models.LoginResponse `json:"data"`
	}
	require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Data.Token
}

func (h *apiHarness) flushAudit() {
	h.t.Helper()
	h.queue.Stop()
}

func dataOf[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return env.Data
}

func codeOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Error.Code
}

func TestMarketplaceOverHTTP(t *testing.T) {
	h := newAPIHarness(t)
	teacher := h.register("tina", models.RoleTeacher)
	student := h.register("sam", "")
	admin := h.admin()

	w := h.do(http.MethodPost, "/api/courses", student, map[string]interface{}{"title": "Nope", "description": "d", "category": "c"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodPost, "/api/courses", teacher, map[string]interface{}{"title": "C1", "description": "d", "category": "c", "price": 10})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	course := dataOf[models.Course](t, w)
	assert.Equal(t, 0, course.EnrolledCount)

	w = h.do(http.MethodPost, "/api/courses/"+course.ID+"/enroll", student, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = h.do(http.MethodPost, "/api/courses/"+course.ID+"/enroll", student, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ALREADY_ENROLLED", codeOf(t, w))

	w = h.do(http.MethodPost, "/api/courses/"+course.ID+"/enroll", teacher, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodPost, "/api/courses/missing/enroll", student, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(http.MethodGet, "/api/courses/"+course.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, dataOf[models.Course](t, w).EnrolledCount)

	w = h.do(http.MethodGet, "/api/courses/enrolled/me", student, nil)
	require.Equal(t, http.StatusOK, w.Code)
	enrolled := dataOf[[]models.EnrolledCourse](t, w)
	require.Len(t, enrolled, 1)
	assert.Equal(t, course.ID, enrolled[0].Course.ID)

	w = h.do(http.MethodPost, "/api/courses", admin, map[string]interface{}{"title": "Admin course", "description": "d", "category": "c"})
	require.Equal(t, http.StatusCreated, w.Code)

	h.flushAudit()

	w = h.do(http.MethodGet, "/api/activities", student, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = h.do(http.MethodGet, "/api/activities", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "TOKEN_MISSING", codeOf(t, w))

	w = h.do(http.MethodGet, "/api/activities", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	entries := dataOf[[]models.ActivityEntry](t, w)
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActionEnrollCourse, entries[0].Action)
	assert.Equal(t, models.ActionCreateCourse, entries[1].Action)

	w = h.do(http.MethodGet, "/api/activities/export", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="activity_logs.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, 3, strings.Count(w.Body.String(), "\n"))
	records, err := csv.NewReader(strings.NewReader(w.Body.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Time", "User Name", "User Email", "Role", "Action", "Details"}, records[0])
	assert.Equal(t, "sam", records[1][1])

	w = h.do(http.MethodGet, "/api/activities/export?format=xml", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	snapshot := h.metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.EnrollmentsCreated)
	assert.Equal(t, uint64(3), snapshot.AuditWritten)
	assert.Zero(t, snapshot.AuditDropped)
}

func TestMediaLinkOverHTTP(t *testing.T) {
	h := newAPIHarness(t)
	teacher := h.register("tina", models.RoleTeacher)
	student := h.register("sam", models.RoleStudent)

	w := h.do(http.MethodPost, "/api/courses", teacher, map[string]interface{}{"title": "C1", "description": "d", "category": "c"})
	require.Equal(t, http.StatusCreated, w.Code)
	course := dataOf[models.Course](t, w)

	w = h.do(http.MethodPost, "/api/courses/"+course.ID+"/sections", teacher, map[string]interface{}{"title": "Intro", "videoUrl": "https://cdn.example/intro.mp4"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "https://cdn.example/intro.mp4", dataOf[models.Course](t, w).Sections[0].MediaRef)

	w = h.do(http.MethodGet, "/api/courses/"+course.ID+"/sections/0/media", student, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodPost, "/api/courses/"+course.ID+"/enroll", student, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = h.do(http.MethodGet, "/api/courses/"+course.ID+"/sections/0/media", student, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	link := dataOf[map[string]string](t, w)["url"]
	require.True(t, strings.HasPrefix(link, "/api/media/"))

	w = h.do(http.MethodGet, link, "", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://cdn.example/intro.mp4", w.Header().Get("Location"))
}

func TestAuthOverHTTP(t *testing.T) {
	h := newAPIHarness(t)
	token := h.register("tina", models.RoleTeacher)

	w := h.do(http.MethodPost, "/api/auth/register", "", map[string]string{"name": "x", "email": "tina@example.com", "password": "secret1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = h.do(http.MethodPost, "/api/auth/register", "", map[string]string{"name": "x", "email": "x@example.com", "password": "secret1", "role": "admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "tina@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", codeOf(t, w))

	w = h.do(http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	me := dataOf[models.Identity](t, w)
	assert.Equal(t, models.RoleTeacher, me.Role)
	assert.Equal(t, "tina", me.DisplayName)

	w = h.do(http.MethodGet, "/api/auth/me", token+"x", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "TOKEN_INVALID", codeOf(t, w))
}

func TestOperationalEndpoints(t *testing.T) {
	h := newAPIHarness(t)

	w := h.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = h.do(http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "http_requests_total")

	student := h.register("sam", models.RoleStudent)
	w = h.do(http.MethodGet, "/api/admin/stats", student, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
