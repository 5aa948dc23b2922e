package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/capstone-hub-api/internal/models"
)

const submissionColumns = `id, milestone_id, submitted_by, file_key, file_url, content_type, size_bytes, notes, grade, created_at, updated_at`

// SubmissionRepository persists milestone submissions.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

func (r *SubmissionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a submission row.
func (r *SubmissionRepository) Create(ctx context.Context, exec sqlx.ExtContext, submission *models.Submission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	submission.CreatedAt = now
	submission.UpdatedAt = now
	const query = `INSERT INTO submissions (id, milestone_id, submitted_by, file_key, file_url, content_type, size_bytes, notes, grade, created_at, updated_at)
VALUES (:id, :milestone_id, :submitted_by, :file_key, :file_url, :content_type, :size_bytes, :notes, :grade, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// LockByID loads a submission holding a row lock until the transaction ends.
func (r *SubmissionRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Submission, error) {
	const query = `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1 FOR UPDATE`
	var submission models.Submission
	if err := sqlx.GetContext(ctx, r.exec(exec), &submission, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock submission: %w", err)
	}
	return &submission, nil
}

// FindByKey returns the submission owning a stored blob key.
func (r *SubmissionRepository) FindByKey(ctx context.Context, key string) (*models.Submission, error) {
	var submission models.Submission
	if err := r.db.GetContext(ctx, &submission, `SELECT `+submissionColumns+` FROM submissions WHERE file_key = $1`, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find submission by key: %w", err)
	}
	return &submission, nil
}

// ListByMilestones returns submissions for the milestones, oldest first.
func (r *SubmissionRepository) ListByMilestones(ctx context.Context, milestoneIDs []string) ([]models.Submission, error) {
	if len(milestoneIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT ` + submissionColumns + ` FROM submissions WHERE milestone_id = ANY($1) ORDER BY created_at ASC`
	var submissions []models.Submission
	if err := r.db.SelectContext(ctx, &submissions, query, pq.Array(milestoneIDs)); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// UpdateReview writes notes and grade.
func (r *SubmissionRepository) UpdateReview(ctx context.Context, exec sqlx.ExtContext, submission *models.Submission) error {
	submission.UpdatedAt = time.Now().UTC()
	const query = `UPDATE submissions SET notes = :notes, grade = :grade, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, submission); err != nil {
		return fmt.Errorf("update submission review: %w", err)
	}
	return nil
}
