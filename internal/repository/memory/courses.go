package memory

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/learnhub-api/internal/models"
)

type courseRecord struct {
	course models.Course
	seq    uint64
}

// CourseRepository is the in-memory catalog.
type CourseRepository struct {
	store *Store
}

// List returns courses newest first, narrowed by keyword and owner.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	keyword := strings.ToLower(strings.TrimSpace(filter.Keyword))

	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]courseRecord, 0, len(s.courses))
	for _, rec := range s.courses {
		if keyword != "" && !strings.Contains(strings.ToLower(rec.course.Title), keyword) {
			continue
		}
		if filter.OwnerID != "" && rec.course.OwnerID != filter.OwnerID {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].seq > records[j].seq })

	courses := make([]models.Course, 0, len(records))
	for _, rec := range records {
		courses = append(courses, s.snapshot(rec.course))
	}
	return courses, nil
}

// FindByID returns a course or sql.ErrNoRows.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	course := s.snapshot(rec.course)
	return &course, nil
}

// Create inserts a course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	if course.Sections == nil {
		course.Sections = models.SectionList{}
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *course
	stored.Sections = cloneSections(course.Sections)
	stored.Owner = nil
	stored.EnrolledCount = 0
	s.courses[course.ID] = courseRecord{course: stored, seq: s.next()}
	return nil
}

// Update persists the mutable fields of an existing course.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.courses[course.ID]
	if !ok {
		return sql.ErrNoRows
	}
	course.UpdatedAt = time.Now().UTC()
	rec.course.Title = course.Title
	rec.course.Description = course.Description
	rec.course.Category = course.Category
	rec.course.Price = course.Price
	rec.course.UpdatedAt = course.UpdatedAt
	s.courses[course.ID] = rec
	return nil
}

// Delete removes a course; its ledger entries are retained.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.courses, id)
	return nil
}

// AppendSection appends a section under the write lock.
func (r *CourseRepository) AppendSection(ctx context.Context, courseID string, section models.Section) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.courses[courseID]
	if !ok {
		return sql.ErrNoRows
	}
	rec.course.Sections = append(cloneSections(rec.course.Sections), section)
	rec.course.UpdatedAt = time.Now().UTC()
	s.courses[courseID] = rec
	return nil
}

// snapshot copies a stored course and fills derived fields. Callers hold a lock.
func (s *Store) snapshot(stored models.Course) models.Course {
	course := stored
	course.Sections = cloneSections(stored.Sections)
	course.EnrolledCount = s.enrolledCount(stored.ID)
	if owner, ok := s.users[stored.OwnerID]; ok {
		course.Owner = &models.UserSummary{ID: owner.user.ID, Name: owner.user.Name, Email: owner.user.Email}
	}
	return course
}

func cloneSections(in models.SectionList) models.SectionList {
	out := make(models.SectionList, len(in))
	copy(out, in)
	return out
}
