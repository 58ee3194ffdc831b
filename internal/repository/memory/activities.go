package memory

import (
	"context"
	"sort"

	"github.com/noah-isme/learnhub-api/internal/models"
)

type activityRecord struct {
	log models.ActivityLog
	seq uint64
}

// ActivityRepository is the in-memory audit trail. Records are never changed once stored.
type ActivityRepository struct {
	store *Store
}

// Create appends a record; replaying an existing id is a no-op.
func (r *ActivityRepository) Create(ctx context.Context, log *models.ActivityLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.activities[log.ID]; exists {
		return nil
	}
	s.activities[log.ID] = activityRecord{log: *log, seq: s.next()}
	return nil
}

// ListWithActors returns every record newest first, joined with the actor's current account.
func (r *ActivityRepository) ListWithActors(ctx context.Context) ([]models.ActivityEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]activityRecord, 0, len(s.activities))
	for _, rec := range s.activities {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.log.CreatedAt.Equal(b.log.CreatedAt) {
			return a.log.CreatedAt.After(b.log.CreatedAt)
		}
		return a.seq > b.seq
	})

	entries := make([]models.ActivityEntry, 0, len(records))
	for _, rec := range records {
		entry := models.ActivityEntry{ActivityLog: rec.log}
		if actor, ok := s.users[rec.log.ActorID]; ok {
			entry.Actor = &models.ActivityActor{
				ID:    actor.user.ID,
				Name:  actor.user.Name,
				Email: actor.user.Email,
				Role:  actor.user.Role,
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
