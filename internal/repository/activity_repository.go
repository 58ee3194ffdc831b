package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/learnhub-api/internal/models"
)

// ActivityRepository stores the append-only audit trail.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Create appends a record. Replaying a record with the same id is a no-op so retries cannot duplicate it.
func (r *ActivityRepository) Create(ctx context.Context, log *models.ActivityLog) error {
	const query = `INSERT INTO activity_logs (id, actor_id, action, details, source_address, created_at)
VALUES (:id, :actor_id, :action, :details, :source_address, :created_at)
ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("insert activity log: %w", err)
	}
	return nil
}

type activityRow struct {
	models.ActivityLog
	ActorName  *string `db:"actor_name"`
	ActorEmail *string `db:"actor_email"`
	ActorRole  *string `db:"actor_role"`
}

// ListWithActors returns every record newest first, joined with the actor's current account.
func (r *ActivityRepository) ListWithActors(ctx context.Context) ([]models.ActivityEntry, error) {
	const query = `SELECT a.id, a.actor_id, a.action, a.details, a.source_address, a.created_at,
u.name AS actor_name, u.email AS actor_email, u.role AS actor_role
FROM activity_logs a
LEFT JOIN users u ON u.id = a.actor_id
ORDER BY a.created_at DESC, a.id DESC`
	var rows []activityRow
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list activity logs: %w", err)
	}
	entries := make([]models.ActivityEntry, 0, len(rows))
	for _, row := range rows {
		entry := models.ActivityEntry{ActivityLog: row.ActivityLog}
		if row.ActorName != nil && row.ActorRole != nil {
			entry.Actor = &models.ActivityActor{
				ID:    row.ActorID,
				Name:  *row.ActorName,
				Email: deref(row.ActorEmail),
				Role:  models.UserRole(*row.ActorRole),
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
