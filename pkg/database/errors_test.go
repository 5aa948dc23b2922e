package database

import (
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestUniqueViolation(t *testing.T) {
	err := fmt.Errorf("insert member: %w", &pq.Error{Code: "23505", Constraint: "group_members_student_id_key"})
	constraint, ok := UniqueViolation(err)
	assert.True(t, ok)
	assert.Equal(t, "group_members_student_id_key", constraint)

	assert.False(t, IsUniqueViolation(&pq.Error{Code: "23503"}))
	assert.False(t, IsUniqueViolation(fmt.Errorf("plain")))
	assert.False(t, IsUniqueViolation(nil))
}
