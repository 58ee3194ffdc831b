package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/learnhub-api/internal/models"
)

// EnrollmentRepository persists the enrollment ledger.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

// Enroll appends a ledger entry in one transaction. A missing course yields sql.ErrNoRows and an
// existing (student, course) entry yields ErrAlreadyExists; neither leaves any write behind.
func (r *EnrollmentRepository) Enroll(ctx context.Context, enrollment *models.Enrollment) (err error) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = time.Now().UTC()
	}
	if enrollment.Completed == nil {
		enrollment.Completed = pq.StringArray{}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin enrollment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// FOR SHARE keeps the course from being deleted until the ledger entry commits.
	var courseID string
	if err = tx.GetContext(ctx, &courseID, `SELECT id FROM courses WHERE id = $1 FOR SHARE`, enrollment.CourseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("lock course: %w", err)
	}

	const insertQuery = `INSERT INTO enrollments (id, student_id, course_id, enrolled_at, completed_sections, is_completed)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (student_id, course_id) DO NOTHING RETURNING id`
	var insertedID string
	if err = tx.QueryRowxContext(ctx, insertQuery,
		enrollment.ID, enrollment.StudentID, enrollment.CourseID, enrollment.EnrolledAt, enrollment.Completed, enrollment.IsCompleted,
	).Scan(&insertedID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrAlreadyExists
			return err
		}
		return fmt.Errorf("insert enrollment: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit enrollment: %w", err)
	}
	return nil
}

// Exists reports whether the student holds a ledger entry for the course.
func (r *EnrollmentRepository) Exists(ctx context.Context, studentID, courseID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, studentID, courseID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}

type enrolledCourseRow struct {
	models.Enrollment
	CourseTitle       string             `db:"course_title"`
	CourseDescription string             `db:"course_description"`
	CourseCategory    string             `db:"course_category"`
	CoursePrice       float64            `db:"course_price"`
	CourseOwnerID     string             `db:"course_owner_id"`
	CourseSections    models.SectionList `db:"course_sections"`
	CourseCreatedAt   time.Time          `db:"course_created_at"`
	CourseUpdatedAt   time.Time          `db:"course_updated_at"`
	EnrolledCount     int                `db:"enrolled_count"`
	OwnerName         *string            `db:"owner_name"`
	OwnerEmail        *string            `db:"owner_email"`
}

func (row enrolledCourseRow) toModel() models.EnrolledCourse {
	detail := models.CourseDetail{
		Course: models.Course{
			ID:            row.CourseID,
			Title:         row.CourseTitle,
			Description:   row.CourseDescription,
			Category:      row.CourseCategory,
			Price:         row.CoursePrice,
			OwnerID:       row.CourseOwnerID,
			Sections:      row.CourseSections,
			EnrolledCount: row.EnrolledCount,
			CreatedAt:     row.CourseCreatedAt,
			UpdatedAt:     row.CourseUpdatedAt,
		},
		OwnerName:  row.OwnerName,
		OwnerEmail: row.OwnerEmail,
	}
	return models.EnrolledCourse{
		Enrollment: row.Enrollment,
		Progress:   row.Enrollment.Progress(),
		Course:     detail.Resolve(),
	}
}

// ListByStudent returns the student's ledger entries, newest first, with a snapshot of each
// course. Entries whose course has been deleted are skipped.
func (r *EnrollmentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.EnrolledCourse, error) {
	const query = `SELECT e.id, e.student_id, e.course_id, e.enrolled_at, e.completed_sections, e.is_completed,
c.title AS course_title, c.description AS course_description, c.category AS course_category, c.price AS course_price,
c.owner_id AS course_owner_id, c.sections AS course_sections, c.created_at AS course_created_at, c.updated_at AS course_updated_at,
(SELECT COUNT(*) FROM enrollments x WHERE x.course_id = c.id) AS enrolled_count,
u.name AS owner_name, u.email AS owner_email
FROM enrollments e
JOIN courses c ON c.id = e.course_id
LEFT JOIN users u ON u.id = c.owner_id
WHERE e.student_id = $1
ORDER BY e.enrolled_at DESC, e.id`
	var rows []enrolledCourseRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID); err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	result := make([]models.EnrolledCourse, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toModel())
	}
	return result, nil
}

// CountByCourse returns live ledger counts for the given courses. Courses without entries are
// reported as zero.
func (r *EnrollmentRepository) CountByCourse(ctx context.Context, courseIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(courseIDs))
	ids := make([]string, 0, len(courseIDs))
	for _, id := range courseIDs {
		counts[id] = 0
		if validID(id) {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return counts, nil
	}

	const query = `SELECT course_id, COUNT(*) AS total FROM enrollments WHERE course_id = ANY($1::uuid[]) GROUP BY course_id`
	var rows []struct {
		CourseID string `db:"course_id"`
		Total    int    `db:"total"`
	}
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("count enrollments: %w", err)
	}
	for _, row := range rows {
		counts[row.CourseID] = row.Total
	}
	return counts, nil
}
