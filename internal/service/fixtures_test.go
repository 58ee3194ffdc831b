package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/internal/repository/memory"
	"github.com/noah-isme/learnhub-api/pkg/storage"
)

type testEnv struct {
	store       *memory.Store
	metrics     *MetricsService
	gate        *Gate
	auth        *AuthService
	audit       *AuditRecorder
	courses     *CourseService
	enrollments *EnrollmentService
	activities  *ActivityService
}

// newTestEnv wires every service over one in-memory store. Audit records are written inline so
// tests can read them back immediately.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := memory.NewStore()
	metrics := NewMetricsService()
	gate := NewGate(nil)
	validate := validator.New()
	worker := NewAuditWorker(store.Activities(), metrics, nil)
	audit := NewAuditRecorder(nil, worker, nil)

	env := &testEnv{store: store, metrics: metrics, gate: gate, audit: audit}
	env.auth = NewAuthService(store.Users(), validate, nil, AuthConfig{
		Secret:     "test-secret",
		Expiration: time.Hour,
		Issuer:     "learnhub-test",
		BcryptCost: bcrypt.MinCost,
	})
	env.courses = NewCourseService(CourseServiceDeps{
		Courses:     store.Courses(),
		Users:       store.Users(),
		Enrollments: store.Enrollments(),
		Gate:        gate,
		Audit:       audit,
		Signer:      storage.NewSignedURLSigner("media-secret", time.Minute, "/api/media"),
		Validator:   validate,
	})
	env.enrollments = NewEnrollmentService(store.Enrollments(), store.Courses(), gate, audit, nil, metrics, nil)
	env.activities = NewActivityService(store.Activities(), gate, nil, nil, metrics, nil, ActivityExportConfig{})
	return env
}

func (e *testEnv) user(t *testing.T, name string, role models.UserRole) models.Identity {
	t.Helper()
	user := &models.User{Name: name, Email: name + "@example.com", PasswordHash: "x", Role: role}
	require.NoError(t, e.store.Users().Create(context.Background(), user))
	return user.Identity()
}

func price(v float64) *float64 { return &v }

func strPtr(s string) *string { return &s }
