// Package memory keeps every repository in process memory. It backs STORE_DRIVER=memory and the
// concurrency tests, and mirrors the constraint semantics of the Postgres schema.
package memory

import (
	"context"
	"sync"
)

// Store is the shared state behind the in-memory repositories.
type Store struct {
	mu  sync.RWMutex
	seq uint64

	users       map[string]userRecord
	emails      map[string]string
	courses     map[string]courseRecord
	enrollments map[enrollmentKey]enrollmentRecord
	activities  map[string]activityRecord
}

type enrollmentKey struct {
	studentID string
	courseID  string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:       make(map[string]userRecord),
		emails:      make(map[string]string),
		courses:     make(map[string]courseRecord),
		enrollments: make(map[enrollmentKey]enrollmentRecord),
		activities:  make(map[string]activityRecord),
	}
}

// Users returns the account repository.
func (s *Store) Users() *UserRepository { return &UserRepository{store: s} }

// Courses returns the catalog repository.
func (s *Store) Courses() *CourseRepository { return &CourseRepository{store: s} }

// Enrollments returns the ledger repository.
func (s *Store) Enrollments() *EnrollmentRepository { return &EnrollmentRepository{store: s} }

// Activities returns the audit trail repository.
func (s *Store) Activities() *ActivityRepository { return &ActivityRepository{store: s} }

// Ping always succeeds.
func (s *Store) Ping(ctx context.Context) error { return ctx.Err() }

// next returns a monotonically increasing insertion sequence. Callers hold the write lock.
func (s *Store) next() uint64 {
	s.seq++
	return s.seq
}

// enrolledCount counts ledger entries for a course. Callers hold a lock.
func (s *Store) enrolledCount(courseID string) int {
	n := 0
	for key := range s.enrollments {
		if key.courseID == courseID {
			n++
		}
	}
	return n
}
