package memory

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/internal/repository"
)

type userRecord struct {
	user models.User
}

// UserRepository is the in-memory account store.
type UserRepository struct {
	store *Store
}

// Create inserts an account; a taken email yields repository.ErrAlreadyExists.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.emails[user.Email]; taken {
		return repository.ErrAlreadyExists
	}
	if _, taken := s.users[user.ID]; taken {
		return repository.ErrAlreadyExists
	}
	s.users[user.ID] = userRecord{user: *user}
	s.emails[user.Email] = user.ID
	return nil
}

// FindByEmail returns an account by email or sql.ErrNoRows.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, sql.ErrNoRows
	}
	user := s.users[id].user
	return &user, nil
}

// FindByID returns an account by id or sql.ErrNoRows.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := r.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	user := rec.user
	return &user, nil
}

// Delete removes an account. Used to exercise unresolvable actors.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	delete(s.emails, rec.user.Email)
	delete(s.users, id)
	return nil
}

// SetRole changes an account's role in place. There is no API for this; it exists so tests can
// observe that audit visibility follows the actor's current role.
func (r *UserRepository) SetRole(ctx context.Context, id string, role models.UserRole) error {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	rec.user.Role = role
	rec.user.UpdatedAt = time.Now().UTC()
	s.users[id] = rec
	return nil
}
