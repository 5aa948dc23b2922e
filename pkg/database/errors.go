package database

import (
	"errors"

	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// UniqueViolation reports whether err is a Postgres unique_violation and, if so,
// the name of the violated constraint.
func UniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// IsUniqueViolation is a shorthand when the constraint name is irrelevant.
func IsUniqueViolation(err error) bool {
	_, ok := UniqueViolation(err)
	return ok
}
