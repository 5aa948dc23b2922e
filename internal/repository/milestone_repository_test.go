package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/capstone-hub-api/internal/models"
)

var milestoneRowColumns = []string{"id", "project_id", "title", "description", "deadline", "status", "order_index", "created_at", "updated_at"}

func TestMilestoneRepositoryListByProjectOrdered(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMilestoneRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM milestones WHERE project_id = $1 ORDER BY order_index ASC")).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows(milestoneRowColumns).
			AddRow("m1", "p1", "Proposal", "d", now.Add(24*time.Hour), "PENDING", 0, now, now).
			AddRow("m2", "p1", "Prototype", "d", now.Add(48*time.Hour), "SUBMITTED", 1, now, now))

	list, err := repo.ListByProject(context.Background(), nil, "p1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.MilestoneSubmitted, list[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMilestoneRepositoryDeleteShiftsOrder(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMilestoneRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM milestones WHERE id = $1")).
		WithArgs("m2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET order_index = order_index - 1")).
		WithArgs("p1", 1, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	require.NoError(t, repo.Delete(context.Background(), tx, &models.Milestone{ID: "m2", ProjectID: "p1", OrderIndex: 1}))
	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMilestoneRepositorySetStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMilestoneRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE milestones SET status = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("m1", "COMPLETED", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SetStatus(context.Background(), nil, "m1", models.MilestoneCompleted))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMilestoneRepositoryCreateDefaultsStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMilestoneRepository(db)

	mock.ExpectExec("INSERT INTO milestones").WillReturnResult(sqlmock.NewResult(1, 1))

	milestone := &models.Milestone{ProjectID: "p1", Title: "Proposal", Deadline: time.Now().Add(time.Hour)}
	require.NoError(t, repo.Create(context.Background(), nil, milestone))
	assert.Equal(t, models.MilestonePending, milestone.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}
