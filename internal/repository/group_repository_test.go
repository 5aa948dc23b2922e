package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	"github.com/noah-isme/capstone-hub-api/pkg/database"
)

var groupRowColumns = []string{"id", "name", "description", "max_members", "created_by", "supervisor_id", "created_at", "updated_at"}

func TestGroupRepositoryCreateInTransaction(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO groups").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO group_members").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	group := &models.Group{Name: "Team A", Description: "desc", MaxMembers: 4, CreatedBy: "s1"}
	require.NoError(t, repo.Create(context.Background(), tx, group))
	require.NoError(t, repo.AddMember(context.Background(), tx, &models.GroupMember{GroupID: group.ID, StudentID: "s1", Role: models.MemberRoleLeader}))
	require.NoError(t, tx.Commit())

	assert.NotEmpty(t, group.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryAddMemberUniqueViolation(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectExec("INSERT INTO group_members").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "group_members_student_id_key"})

	err := repo.AddMember(context.Background(), nil, &models.GroupMember{GroupID: "g1", StudentID: "s1", Role: models.MemberRoleMember})
	require.Error(t, err)
	constraint, ok := database.UniqueViolation(err)
	assert.True(t, ok)
	assert.Equal(t, "group_members_student_id_key", constraint)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryLockByID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM groups WHERE id = $1 FOR UPDATE")).
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows(groupRowColumns).AddRow("g1", "Team A", "desc", 4, "s1", nil, now, now))

	group, err := repo.LockByID(context.Background(), nil, "g1")
	require.NoError(t, err)
	assert.Equal(t, 4, group.MaxMembers)
	assert.Nil(t, group.SupervisorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryFindMembershipNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM group_members WHERE student_id = $1")).
		WithArgs("s9").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindMembership(context.Background(), nil, "s9")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryCountMembers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM group_members WHERE group_id = $1")).
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	total, err := repo.CountMembers(context.Background(), nil, "g1")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryRemoveMemberMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM group_members WHERE group_id = $1 AND student_id = $2")).
		WithArgs("g1", "s2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, repo.RemoveMember(context.Background(), "g1", "s2"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositorySetSupervisor(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE groups SET supervisor_id = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("g1", "sup1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetSupervisor(context.Background(), nil, "g1", "sup1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGroupRepositoryListMembers(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewGroupRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM group_members m JOIN users u ON u.id = m.student_id")).
		WithArgs("g1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "group_id", "student_id", "role", "joined_at", "name", "email"}).
			AddRow("m1", "g1", "s1", "LEADER", now, "Lead", "lead@example.com").
			AddRow("m2", "g1", "s2", "MEMBER", now, "Mem", "mem@example.com"))

	members, err := repo.ListMembers(context.Background(), "g1")
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, models.MemberRoleLeader, members[0].Role)
	assert.Equal(t, "Mem", members[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
