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

const milestoneColumns = `id, project_id, title, description, deadline, status, order_index, created_at, updated_at`

// MilestoneRepository persists project milestones.
type MilestoneRepository struct {
	db *sqlx.DB
}

// NewMilestoneRepository constructs the repository.
func NewMilestoneRepository(db *sqlx.DB) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

func (r *MilestoneRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// ListByProject returns a project's milestones ordered by order_index.
func (r *MilestoneRepository) ListByProject(ctx context.Context, exec sqlx.ExtContext, projectID string) ([]models.Milestone, error) {
	const query = `SELECT ` + milestoneColumns + ` FROM milestones WHERE project_id = $1 ORDER BY order_index ASC`
	var milestones []models.Milestone
	if err := sqlx.SelectContext(ctx, r.exec(exec), &milestones, query, projectID); err != nil {
		return nil, fmt.Errorf("list milestones: %w", err)
	}
	return milestones, nil
}

// FindByID returns a milestone by identifier.
func (r *MilestoneRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Milestone, error) {
	const query = `SELECT ` + milestoneColumns + ` FROM milestones WHERE id = $1`
	var milestone models.Milestone
	if err := sqlx.GetContext(ctx, r.exec(exec), &milestone, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find milestone: %w", err)
	}
	return &milestone, nil
}

// LockByID loads a milestone holding a row lock until the transaction ends.
func (r *MilestoneRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Milestone, error) {
	const query = `SELECT ` + milestoneColumns + ` FROM milestones WHERE id = $1 FOR UPDATE`
	var milestone models.Milestone
	if err := sqlx.GetContext(ctx, r.exec(exec), &milestone, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock milestone: %w", err)
	}
	return &milestone, nil
}

// Create inserts a milestone.
func (r *MilestoneRepository) Create(ctx context.Context, exec sqlx.ExtContext, milestone *models.Milestone) error {
	if milestone.ID == "" {
		milestone.ID = uuid.NewString()
	}
	if milestone.Status == "" {
		milestone.Status = models.MilestonePending
	}
	now := time.Now().UTC()
	milestone.CreatedAt = now
	milestone.UpdatedAt = now
	const query = `INSERT INTO milestones (id, project_id, title, description, deadline, status, order_index, created_at, updated_at)
VALUES (:id, :project_id, :title, :description, :deadline, :status, :order_index, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, milestone); err != nil {
		return fmt.Errorf("create milestone: %w", err)
	}
	return nil
}

// Update writes title, description, deadline and status.
func (r *MilestoneRepository) Update(ctx context.Context, exec sqlx.ExtContext, milestone *models.Milestone) error {
	milestone.UpdatedAt = time.Now().UTC()
	const query = `UPDATE milestones SET title = :title, description = :description, deadline = :deadline, status = :status, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, milestone); err != nil {
		return fmt.Errorf("update milestone: %w", err)
	}
	return nil
}

// SetStatus writes only the status of a milestone.
func (r *MilestoneRepository) SetStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.MilestoneStatus) error {
	const query = `UPDATE milestones SET status = $2, updated_at = $3 WHERE id = $1`
	res, err := r.exec(exec).ExecContext(ctx, query, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set milestone status: %w", err)
	}
	return requireAffected(res, "set milestone status")
}

// Delete removes a milestone and closes the gap it leaves in order_index.
// The unique order constraint is deferred, so the shift is safe mid-transaction.
func (r *MilestoneRepository) Delete(ctx context.Context, exec sqlx.ExtContext, milestone *models.Milestone) error {
	target := r.exec(exec)
	res, err := target.ExecContext(ctx, `DELETE FROM milestones WHERE id = $1`, milestone.ID)
	if err != nil {
		return fmt.Errorf("delete milestone: %w", err)
	}
	if err := requireAffected(res, "delete milestone"); err != nil {
		return err
	}
	const shift = `UPDATE milestones SET order_index = order_index - 1, updated_at = $3 WHERE project_id = $1 AND order_index > $2`
	if _, err := target.ExecContext(ctx, shift, milestone.ProjectID, milestone.OrderIndex, time.Now().UTC()); err != nil {
		return fmt.Errorf("shift milestone order: %w", err)
	}
	return nil
}
