package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/learnhub-api/internal/dto"
	"github.com/noah-isme/learnhub-api/internal/models"
	appErrors "github.com/noah-isme/learnhub-api/pkg/errors"
)

const (
	catalogCachePrefix  = "catalog:"
	catalogCachePattern = catalogCachePrefix + "*"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
	AppendSection(ctx context.Context, courseID string, section models.Section) error
}

type ownerLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type enrollmentLookup interface {
	Exists(ctx context.Context, studentID, courseID string) (bool, error)
	CountByCourse(ctx context.Context, courseIDs []string) (map[string]int, error)
}

type activityRecorder interface {
	Record(ctx context.Context, actorID string, action models.ActivityAction, details, sourceAddress string)
}

type mediaSigner interface {
	Generate(courseID string, section int, mediaRef string) (string, time.Time, error)
}

// CourseService implements the catalog and its audited mutations.
type CourseService struct {
	courses     courseRepository
	users       ownerLookup
	enrollments enrollmentLookup
	gate        *Gate
	audit       activityRecorder
	cache       *CacheService
	signer      mediaSigner
	validator   *validator.Validate
	logger      *zap.Logger
}

// CourseServiceDeps groups the collaborators of CourseService.
type CourseServiceDeps struct {
	Courses     courseRepository
	Users       ownerLookup
	Enrollments enrollmentLookup
	Gate        *Gate
	Audit       activityRecorder
	Cache       *CacheService
	Signer      mediaSigner
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// NewCourseService constructs the service.
func NewCourseService(deps CourseServiceDeps) *CourseService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Gate == nil {
		deps.Gate = NewGate(nil)
	}
	if deps.Audit == nil {
		deps.Audit = NewAuditRecorder(nil, nil, deps.Logger)
	}
	return &CourseService{
		courses:     deps.Courses,
		users:       deps.Users,
		enrollments: deps.Enrollments,
		gate:        deps.Gate,
		audit:       deps.Audit,
		cache:       deps.Cache,
		signer:      deps.Signer,
		validator:   deps.Validator,
		logger:      deps.Logger,
	}
}

// List returns the public catalog, optionally narrowed by a title keyword.
func (s *CourseService) List(ctx context.Context, keyword string) ([]models.Course, error) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	key := catalogCachePrefix + "list:" + keyword

	// Cached rows may predate an enrollment that committed while they were being filled, so the
	// enrolled count is always read from the ledger.
	var cached []models.Course
	if s.cache.Get(ctx, key, &cached) {
		if err := s.overlayCounts(ctx, cached); err != nil {
			return nil, err
		}
		return cached, nil
	}

	courses, err := s.courses.List(ctx, models.CourseFilter{Keyword: keyword})
	if err != nil {
		return nil, storeFailure(err, "failed to list courses")
	}
	s.cache.Set(ctx, key, courses, 0)
	return courses, nil
}

// Get returns one course.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	return s.load(ctx, id)
}

// ListOwned returns the caller's own courses.
func (s *CourseService) ListOwned(ctx context.Context, actor models.Identity) ([]models.Course, error) {
	if err := s.gate.Require(actor, CapabilityAuthorCourses); err != nil {
		return nil, err
	}
	courses, err := s.courses.List(ctx, models.CourseFilter{OwnerID: actor.ID})
	if err != nil {
		return nil, storeFailure(err, "failed to list courses")
	}
	return courses, nil
}

// Create adds a course owned by the caller. Admins may create on behalf of another author.
func (s *CourseService) Create(ctx context.Context, actor models.Identity, req dto.CreateCourseRequest, sourceAddress string) (*models.Course, error) {
	if err := s.gate.Require(actor, CapabilityAuthorCourses); err != nil {
		return nil, err
	}
	req.Normalize()
	if err := s.validator.Struct(req); err != nil {
		return nil, validationFailure(err, "invalid course payload")
	}

	ownerID := actor.ID
	if req.OwnerID != "" && req.OwnerID != actor.ID {
		if actor.Role != models.RoleAdmin {
			return nil, appErrors.ErrForbidden
		}
		if err := s.checkAuthor(ctx, req.OwnerID); err != nil {
			return nil, err
		}
		ownerID = req.OwnerID
	}

	course := req.Course(ownerID)
	if err := s.courses.Create(ctx, &course); err != nil {
		return nil, storeFailure(err, "failed to create course")
	}

	s.audit.Record(ctx, actor.ID, models.ActionCreateCourse, fmt.Sprintf("Created course: %s", course.Title), sourceAddress)
	s.invalidateCatalog(ctx)
	return s.load(ctx, course.ID)
}

// Update applies a partial update. Only the owner or an admin may update.
func (s *CourseService) Update(ctx context.Context, actor models.Identity, id string, req dto.UpdateCourseRequest, sourceAddress string) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationFailure(err, "invalid course payload")
	}
	course, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.RequireOwner(actor, CapabilityAuthorCourses, course.OwnerID); err != nil {
		return nil, err
	}
	if req.Empty() {
		return course, nil
	}

	req.Patch().Apply(course)
	if err := s.courses.Update(ctx, course); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, storeFailure(err, "failed to update course")
	}

	s.audit.Record(ctx, actor.ID, models.ActionUpdateCourse, fmt.Sprintf("Updated course: %s", course.Title), sourceAddress)
	s.invalidateCatalog(ctx)
	return s.load(ctx, id)
}

// Delete removes a course. Its enrollment ledger entries are kept.
func (s *CourseService) Delete(ctx context.Context, actor models.Identity, id, sourceAddress string) error {
	course, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.gate.RequireOwner(actor, CapabilityAuthorCourses, course.OwnerID); err != nil {
		return err
	}
	if err := s.courses.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return storeFailure(err, "failed to delete course")
	}

	s.audit.Record(ctx, actor.ID, models.ActionDeleteCourse, fmt.Sprintf("Deleted course: %s", course.Title), sourceAddress)
	s.invalidateCatalog(ctx)
	return nil
}

// AddSection appends a section to the course.
func (s *CourseService) AddSection(ctx context.Context, actor models.Identity, id string, in dto.SectionInput, sourceAddress string) (*models.Course, error) {
	if err := s.validator.Struct(in); err != nil {
		return nil, validationFailure(err, "invalid section payload")
	}
	section := in.Section()
	if section.Title == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "section title is required")
	}
	course, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.RequireOwner(actor, CapabilityAuthorCourses, course.OwnerID); err != nil {
		return nil, err
	}
	if err := s.courses.AppendSection(ctx, id, section); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, storeFailure(err, "failed to add section")
	}

	s.audit.Record(ctx, actor.ID, models.ActionAddSection, fmt.Sprintf("Added section %q to course: %s", section.Title, course.Title), sourceAddress)
	s.invalidateCatalog(ctx)
	return s.load(ctx, id)
}

// MediaLink returns a signed, expiring link to a section's media. Free sections are open to any
// authenticated caller; others need an enrollment, ownership or the admin role.
func (s *CourseService) MediaLink(ctx context.Context, actor models.Identity, id string, index int) (*dto.MediaLinkResponse, error) {
	if err := s.gate.Require(actor, CapabilityReadCatalog); err != nil {
		return nil, err
	}
	course, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(course.Sections) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
	}
	section := course.Sections[index]
	if section.MediaRef == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "section has no media")
	}

	if !section.IsFree && actor.Role != models.RoleAdmin && actor.ID != course.OwnerID {
		enrolled, err := s.enrollments.Exists(ctx, actor.ID, course.ID)
		if err != nil {
			return nil, storeFailure(err, "failed to check enrollment")
		}
		if !enrolled {
			return nil, appErrors.ErrForbidden
		}
	}

	link, expiresAt, err := s.signer.Generate(course.ID, index, section.MediaRef)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign media link")
	}
	return &dto.MediaLinkResponse{URL: link, ExpiresAt: expiresAt.UTC().Format(time.RFC3339)}, nil
}

func (s *CourseService) load(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, storeFailure(err, "failed to load course")
	}
	return course, nil
}

func (s *CourseService) checkAuthor(ctx context.Context, ownerID string) error {
	owner, err := s.users.FindByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, "owner does not exist")
		}
		return storeFailure(err, "failed to load owner")
	}
	if !s.gate.Can(owner.Role, CapabilityAuthorCourses) {
		return appErrors.Clone(appErrors.ErrValidation, "owner cannot author courses")
	}
	return nil
}

func (s *CourseService) overlayCounts(ctx context.Context, courses []models.Course) error {
	if len(courses) == 0 {
		return nil
	}
	ids := make([]string, len(courses))
	for i := range courses {
		ids[i] = courses[i].ID
	}
	counts, err := s.enrollments.CountByCourse(ctx, ids)
	if err != nil {
		return storeFailure(err, "failed to count enrollments")
	}
	for i := range courses {
		courses[i].EnrolledCount = counts[courses[i].ID]
	}
	return nil
}

func (s *CourseService) invalidateCatalog(ctx context.Context) {
	s.cache.Invalidate(context.WithoutCancel(ctx), catalogCachePattern)
}
