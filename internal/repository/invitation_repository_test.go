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

func TestInvitationRepositoryInsertReportsCodeCollision(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInvitationRepository(db)

	expires := time.Now().Add(7 * 24 * time.Hour)
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (code) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "g1", "s1", "s2", "ABCDEFGHJK", "PENDING", expires, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (code) DO NOTHING")).
		WithArgs(sqlmock.AnyArg(), "g1", "s1", "s2", "LMNPQRSTUV", "PENDING", expires, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	inv := &models.GroupInvitation{GroupID: "g1", SentBy: "s1", ReceivedBy: "s2", Code: "ABCDEFGHJK", ExpiresAt: expires}
	inserted, err := repo.Insert(context.Background(), nil, inv)
	require.NoError(t, err)
	assert.False(t, inserted)

	inv.Code = "LMNPQRSTUV"
	inserted, err = repo.Insert(context.Background(), nil, inv)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationRepositoryConsumeIsConditional(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInvitationRepository(db)

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND used_at IS NULL AND status = 'PENDING'")).
		WithArgs("inv1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("WHERE id = $1 AND used_at IS NULL AND status = 'PENDING'")).
		WithArgs("inv1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Consume(context.Background(), nil, "inv1", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Consume(context.Background(), nil, "inv1", now)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationRepositoryExpireStale(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInvitationRepository(db)

	now := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE group_invitations SET status = 'EXPIRED'")).
		WithArgs("g1", "s2", now).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := repo.ExpireStale(context.Background(), nil, "g1", "s2", now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvitationRepositoryFindByCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewInvitationRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM group_invitations WHERE code = $1")).
		WithArgs("ABCDEFGHJK").
		WillReturnRows(sqlmock.NewRows([]string{"id", "group_id", "sent_by", "received_by", "code", "status", "expires_at", "used_at", "created_at"}).
			AddRow("inv1", "g1", "s1", "s2", "ABCDEFGHJK", "PENDING", now.Add(time.Hour), nil, now))

	inv, err := repo.FindByCode(context.Background(), nil, "ABCDEFGHJK")
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, inv.Status)
	assert.Nil(t, inv.UsedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
