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

var submissionRowColumns = []string{"id", "milestone_id", "submitted_by", "file_key", "file_url", "content_type", "size_bytes", "notes", "grade", "created_at", "updated_at"}

func TestSubmissionRepositoryListByMilestones(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE milestone_id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(submissionRowColumns).
			AddRow("sub1", "m1", "s1", "submissions/a.pdf", "/files/submissions/a.pdf", "application/pdf", 10, nil, 0, now, now))

	list, err := repo.ListByMilestones(context.Background(), []string{"m1", "m2"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.NotNil(t, list[0].Grade)
	assert.Equal(t, 0, *list[0].Grade)
	assert.Nil(t, list[0].Notes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryListByMilestonesEmpty(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	list, err := repo.ListByMilestones(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepositoryCreateAndReview(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSubmissionRepository(db)

	mock.ExpectExec("INSERT INTO submissions").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE submissions SET notes").WillReturnResult(sqlmock.NewResult(0, 1))

	sub := &models.Submission{MilestoneID: "m1", SubmittedBy: "s1", FileKey: "k", FileURL: "u", ContentType: "application/pdf", SizeBytes: 3}
	require.NoError(t, repo.Create(context.Background(), nil, sub))
	grade := 0
	sub.Grade = &grade
	require.NoError(t, repo.UpdateReview(context.Background(), nil, sub))
	assert.NoError(t, mock.ExpectationsWereMet())
}
