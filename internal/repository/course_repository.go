package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/learnhub-api/internal/models"
)

// The enrolled count is always derived from the ledger, never stored.
const courseSelect = `SELECT c.id, c.title, c.description, c.category, c.price, c.owner_id, c.sections, c.created_at, c.updated_at,
(SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id) AS enrolled_count,
u.name AS owner_name, u.email AS owner_email
FROM courses c
LEFT JOIN users u ON u.id = c.owner_id`

// likeEscaper makes a keyword match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// CourseRepository manages catalog persistence.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns catalog courses newest first, narrowed by keyword and owner.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error) {
	var conditions []string
	var args []interface{}

	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		conditions = append(conditions, fmt.Sprintf(`LOWER(c.title) LIKE $%d ESCAPE '\'`, len(args)+1))
		args = append(args, "%"+likeEscaper.Replace(strings.ToLower(keyword))+"%")
	}
	if filter.OwnerID != "" {
		conditions = append(conditions, fmt.Sprintf("c.owner_id = $%d", len(args)+1))
		args = append(args, filter.OwnerID)
	}

	query := courseSelect
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY c.created_at DESC, c.id"

	var rows []models.CourseDetail
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	courses := make([]models.Course, 0, len(rows))
	for i := range rows {
		courses = append(courses, rows[i].Resolve())
	}
	return courses, nil
}

// FindByID returns a course with its owner summary and live enrolled count.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	if !validID(id) {
		return nil, sql.ErrNoRows
	}
	query := courseSelect + ` WHERE c.id = $1`
	var row models.CourseDetail
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find course: %w", err)
	}
	course := row.Resolve()
	return &course, nil
}

// Create inserts a course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
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

	const query = `INSERT INTO courses (id, title, description, category, price, owner_id, sections, created_at, updated_at)
VALUES (:id, :title, :description, :category, :price, :owner_id, :sections, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update persists the mutable course fields. Missing rows yield sql.ErrNoRows.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, description = :description, category = :category, price = :price, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, course)
	if err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return expectAffected(res, "update course")
}

// Delete removes a course. Ledger rows referencing it are retained.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return expectAffected(res, "delete course")
}

// AppendSection atomically appends a section to the course's ordered list.
func (r *CourseRepository) AppendSection(ctx context.Context, courseID string, section models.Section) error {
	payload, err := json.Marshal([]models.Section{section})
	if err != nil {
		return fmt.Errorf("encode section: %w", err)
	}
	const query = `UPDATE courses SET sections = sections || $2::jsonb, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, courseID, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("append section: %w", err)
	}
	return expectAffected(res, "append section")
}

func expectAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
