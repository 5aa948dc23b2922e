package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/capstone-hub-api/internal/models"
)

// InvitationRepository persists group invitation codes.
type InvitationRepository struct {
	db *sqlx.DB
}

// NewInvitationRepository constructs the repository.
func NewInvitationRepository(db *sqlx.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

func (r *InvitationRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Insert stores the invitation unless its code is already taken. It reports
// false on a code collision so the caller can draw a new code.
func (r *InvitationRepository) Insert(ctx context.Context, exec sqlx.ExtContext, inv *models.GroupInvitation) (bool, error) {
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.Status == "" {
		inv.Status = models.InvitationPending
	}
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO group_invitations (id, group_id, sent_by, received_by, code, status, expires_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (code) DO NOTHING`
	res, err := r.exec(exec).ExecContext(ctx, query, inv.ID, inv.GroupID, inv.SentBy, inv.ReceivedBy, inv.Code, inv.Status, inv.ExpiresAt, inv.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert invitation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert invitation rows affected: %w", err)
	}
	return affected == 1, nil
}

// ExpireStale flips PENDING invitations for the pair that are past expiry.
func (r *InvitationRepository) ExpireStale(ctx context.Context, exec sqlx.ExtContext, groupID, receivedBy string, now time.Time) (int64, error) {
	const query = `UPDATE group_invitations SET status = 'EXPIRED'
WHERE group_id = $1 AND received_by = $2 AND status = 'PENDING' AND expires_at <= $3`
	res, err := r.exec(exec).ExecContext(ctx, query, groupID, receivedBy, now)
	if err != nil {
		return 0, fmt.Errorf("expire stale invitations: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire stale invitations rows affected: %w", err)
	}
	return affected, nil
}

// FindByCode returns an invitation by its code.
func (r *InvitationRepository) FindByCode(ctx context.Context, exec sqlx.ExtContext, code string) (*models.GroupInvitation, error) {
	const query = `SELECT id, group_id, sent_by, received_by, code, status, expires_at, used_at, created_at
FROM group_invitations WHERE code = $1`
	var inv models.GroupInvitation
	if err := sqlx.GetContext(ctx, r.exec(exec), &inv, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find invitation by code: %w", err)
	}
	return &inv, nil
}

// Consume marks a pending unused invitation accepted. It reports false when
// the row was already consumed or expired.
func (r *InvitationRepository) Consume(ctx context.Context, exec sqlx.ExtContext, id string, usedAt time.Time) (bool, error) {
	const query = `UPDATE group_invitations SET status = 'ACCEPTED', used_at = $2
WHERE id = $1 AND used_at IS NULL AND status = 'PENDING'`
	res, err := r.exec(exec).ExecContext(ctx, query, id, usedAt)
	if err != nil {
		return false, fmt.Errorf("consume invitation: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consume invitation rows affected: %w", err)
	}
	return affected == 1, nil
}
