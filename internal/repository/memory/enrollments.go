package memory

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/internal/repository"
)

type enrollmentRecord struct {
	enrollment models.Enrollment
	seq        uint64
}

// EnrollmentRepository is the in-memory ledger.
type EnrollmentRepository struct {
	store *Store
}

// Enroll checks the course and inserts the entry under one write lock, so the pair stays unique
// under concurrent callers.
func (r *EnrollmentRepository) Enroll(ctx context.Context, enrollment *models.Enrollment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Completed == nil {
		enrollment.Completed = pq.StringArray{}
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[enrollment.CourseID]; !ok {
		return sql.ErrNoRows
	}
	key := enrollmentKey{studentID: enrollment.StudentID, courseID: enrollment.CourseID}
	if _, exists := s.enrollments[key]; exists {
		return repository.ErrAlreadyExists
	}
	stored := *enrollment
	stored.Completed = append(pq.StringArray{}, enrollment.Completed...)
	s.enrollments[key] = enrollmentRecord{enrollment: stored, seq: s.next()}
	return nil
}

// Exists reports whether the pair has a ledger entry.
func (r *EnrollmentRepository) Exists(ctx context.Context, studentID, courseID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.enrollments[enrollmentKey{studentID: studentID, courseID: courseID}]
	return ok, nil
}

// ListByStudent returns the student's entries newest first, skipping deleted courses.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrolledCourse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []enrollmentRecord
	for key, rec := range s.enrollments {
		if key.studentID != studentID {
			continue
		}
		if _, ok := s.courses[key.courseID]; !ok {
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].seq > records[j].seq })

	result := make([]models.EnrolledCourse, 0, len(records))
	for _, rec := range records {
		e := rec.enrollment
		e.Completed = append(pq.StringArray{}, rec.enrollment.Completed...)
		result = append(result, models.EnrolledCourse{
			Enrollment: e,
			Progress:   e.Progress(),
			Course:     s.snapshot(s.courses[e.CourseID].course),
		})
	}
	return result, nil
}

// Count returns the number of ledger entries for a course, including deleted courses.
func (r *EnrollmentRepository) Count(courseID string) int {
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enrolledCount(courseID)
}

// CountByCourse returns live ledger counts for the given courses.
func (r *EnrollmentRepository) CountByCourse(ctx context.Context, courseIDs []string) (map[string]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[string]int, len(courseIDs))
	for _, id := range courseIDs {
		counts[id] = s.enrolledCount(id)
	}
	return counts, nil
}
