package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/internal/repository"
	appErrors "github.com/noah-isme/learnhub-api/pkg/errors"
)

type enrollmentRepository interface {
	Enroll(ctx context.Context, enrollment *models.Enrollment) error
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrolledCourse, error)
}

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

// EnrollmentService maintains the enrollment ledger.
type EnrollmentService struct {
	repo    enrollmentRepository
	courses courseReader
	gate    *Gate
	audit   activityRecorder
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(repo enrollmentRepository, courses courseReader, gate *Gate, audit activityRecorder, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gate == nil {
		gate = NewGate(nil)
	}
	if audit == nil {
		audit = NewAuditRecorder(nil, nil, logger)
	}
	return &EnrollmentService{repo: repo, courses: courses, gate: gate, audit: audit, cache: cache, metrics: metrics, logger: logger}
}

// Enroll adds the caller to a course exactly once. A repeat attempt fails with ALREADY_ENROLLED
// and writes nothing; the audit record follows only a committed enrollment.
func (s *EnrollmentService) Enroll(ctx context.Context, actor models.Identity, courseID, sourceAddress string) (*models.Enrollment, error) {
	if err := s.gate.Require(actor, CapabilityEnroll); err != nil {
		return nil, err
	}
	courseID = strings.TrimSpace(courseID)
	if courseID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course id is required")
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordEnrollment(EnrollResultNotFound)
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		s.metrics.RecordEnrollment(EnrollResultFailed)
		return nil, storeFailure(err, "failed to load course")
	}

	enrollment := &models.Enrollment{StudentID: actor.ID, CourseID: course.ID}
	if err := s.repo.Enroll(ctx, enrollment); err != nil {
		switch {
		case errors.Is(err, repository.ErrAlreadyExists):
			s.metrics.RecordEnrollment(EnrollResultConflict)
			return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "already enrolled in this course")
		case errors.Is(err, sql.ErrNoRows):
			s.metrics.RecordEnrollment(EnrollResultNotFound)
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		default:
			s.metrics.RecordEnrollment(EnrollResultFailed)
			return nil, storeFailure(err, "failed to enroll")
		}
	}

	s.metrics.RecordEnrollment(EnrollResultCreated)
	s.audit.Record(ctx, actor.ID, models.ActionEnrollCourse, fmt.Sprintf("Enrolled in course: %s", course.Title), sourceAddress)
	s.cache.Invalidate(context.WithoutCancel(ctx), catalogCachePattern)
	s.logger.Debug("enrollment created", zap.String("student_id", actor.ID), zap.String("course_id", course.ID))
	return enrollment, nil
}

// ListEnrolled returns the caller's enrollments with a snapshot of each course.
func (s *EnrollmentService) ListEnrolled(ctx context.Context, actor models.Identity) ([]models.EnrolledCourse, error) {
	if err := s.gate.Require(actor, CapabilityReadCatalog); err != nil {
		return nil, err
	}
	items, err := s.repo.ListByStudent(ctx, actor.ID)
	if err != nil {
		return nil, storeFailure(err, "failed to list enrollments")
	}
	return items, nil
}
