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

const supervisorRequestColumns = `id, group_id, supervisor_id, requested_by, message, status, created_at, updated_at`

// SupervisorRequestRepository persists supervision requests.
type SupervisorRequestRepository struct {
	db *sqlx.DB
}

// NewSupervisorRequestRepository constructs the repository.
func NewSupervisorRequestRepository(db *sqlx.DB) *SupervisorRequestRepository {
	return &SupervisorRequestRepository{db: db}
}

func (r *SupervisorRequestRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a request. The partial unique index rejects a second open
// request for the same group and supervisor.
func (r *SupervisorRequestRepository) Create(ctx context.Context, req *models.SupervisorRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.SupervisorRequestPending
	}
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	const query = `INSERT INTO supervisor_requests (id, group_id, supervisor_id, requested_by, message, status, created_at, updated_at)
VALUES (:id, :group_id, :supervisor_id, :requested_by, :message, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, req); err != nil {
		return fmt.Errorf("create supervisor request: %w", err)
	}
	return nil
}

// LockByID loads a request holding a row lock until the transaction ends.
func (r *SupervisorRequestRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.SupervisorRequest, error) {
	const query = `SELECT ` + supervisorRequestColumns + ` FROM supervisor_requests WHERE id = $1 FOR UPDATE`
	var req models.SupervisorRequest
	if err := sqlx.GetContext(ctx, r.exec(exec), &req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock supervisor request: %w", err)
	}
	return &req, nil
}

// UpdateStatus records the decision on a request.
func (r *SupervisorRequestRepository) UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SupervisorRequestStatus) error {
	const query = `UPDATE supervisor_requests SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.exec(exec).ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update supervisor request status: %w", err)
	}
	return requireAffected(res, "update supervisor request status")
}

// ListPendingForSupervisor returns the open requests addressed to supervisorID.
func (r *SupervisorRequestRepository) ListPendingForSupervisor(ctx context.Context, supervisorID string) ([]models.SupervisorRequestDetail, error) {
	const query = `SELECT sr.id, sr.group_id, sr.supervisor_id, sr.requested_by, sr.message, sr.status, sr.created_at, sr.updated_at,
       g.name AS group_name, g.description AS group_description, u.name AS requester_name
FROM supervisor_requests sr
JOIN groups g ON g.id = sr.group_id
JOIN users u ON u.id = sr.requested_by
WHERE sr.supervisor_id = $1 AND sr.status = 'PENDING'
ORDER BY sr.created_at DESC`
	var requests []models.SupervisorRequestDetail
	if err := r.db.SelectContext(ctx, &requests, query, supervisorID); err != nil {
		return nil, fmt.Errorf("list pending supervisor requests: %w", err)
	}
	return requests, nil
}

// CountPending returns the number of undecided requests.
func (r *SupervisorRequestRepository) CountPending(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM supervisor_requests WHERE status = 'PENDING'`); err != nil {
		return 0, fmt.Errorf("count pending supervisor requests: %w", err)
	}
	return total, nil
}
