package repository

import (
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrAlreadyExists reports a write rejected by a uniqueness constraint.
var ErrAlreadyExists = errors.New("record already exists")

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// validID reports whether id can address a UUID primary key. Lookups with anything else are
// answered as not found instead of letting Postgres reject the cast.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
