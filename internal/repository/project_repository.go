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

const projectColumns = `id, group_id, title, description, technologies, start_date, end_date, created_at, updated_at`

// ProjectRepository persists group projects.
type ProjectRepository struct {
	db *sqlx.DB
}

// NewProjectRepository constructs the repository.
func NewProjectRepository(db *sqlx.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a project. UNIQUE(group_id) rejects a second project per group.
func (r *ProjectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	if project.Technologies == nil {
		project.Technologies = []string{}
	}
	now := time.Now().UTC()
	project.CreatedAt = now
	project.UpdatedAt = now
	const query = `INSERT INTO projects (id, group_id, title, description, technologies, start_date, end_date, created_at, updated_at)
VALUES (:id, :group_id, :title, :description, :technologies, :start_date, :end_date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, project); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// FindByID returns a project by identifier.
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*models.Project, error) {
	var project models.Project
	if err := r.db.GetContext(ctx, &project, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find project: %w", err)
	}
	return &project, nil
}

// FindByGroup returns the project owned by a group.
func (r *ProjectRepository) FindByGroup(ctx context.Context, groupID string) (*models.Project, error) {
	var project models.Project
	if err := r.db.GetContext(ctx, &project, `SELECT `+projectColumns+` FROM projects WHERE group_id = $1`, groupID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find project by group: %w", err)
	}
	return &project, nil
}

// List returns all projects, or only those supervised by supervisorID when set.
func (r *ProjectRepository) List(ctx context.Context, supervisorID *string) ([]models.Project, error) {
	var (
		projects []models.Project
		err      error
	)
	if supervisorID == nil {
		err = r.db.SelectContext(ctx, &projects, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC`)
	} else {
		const query = `SELECT p.id, p.group_id, p.title, p.description, p.technologies, p.start_date, p.end_date, p.created_at, p.updated_at
FROM projects p JOIN groups g ON g.id = p.group_id
WHERE g.supervisor_id = $1 ORDER BY p.created_at DESC`
		err = r.db.SelectContext(ctx, &projects, query, *supervisorID)
	}
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return projects, nil
}

// Update writes the mutable project fields.
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = time.Now().UTC()
	const query = `UPDATE projects SET title = :title, description = :description, technologies = :technologies,
start_date = :start_date, end_date = :end_date, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, project); err != nil {
		return fmt.Errorf("update project: %w", err)
	}
	return nil
}

// Delete removes a project and, by cascade, its milestones and submissions.
func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return requireAffected(res, "delete project")
}

const projectScopeQuery = `SELECT p.id AS project_id, p.group_id, g.name AS group_name, g.supervisor_id, g.created_by AS leader_id, p.created_at
FROM projects p JOIN groups g ON g.id = p.group_id
WHERE p.id = $1`

// Scope returns the ownership facts used for access checks.
func (r *ProjectRepository) Scope(ctx context.Context, exec sqlx.ExtContext, projectID string) (*models.ProjectScope, error) {
	var scope models.ProjectScope
	if err := sqlx.GetContext(ctx, r.exec(exec), &scope, projectScopeQuery, projectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("load project scope: %w", err)
	}
	return &scope, nil
}

// LockScope is Scope with the project row locked, serialising milestone edits.
func (r *ProjectRepository) LockScope(ctx context.Context, exec sqlx.ExtContext, projectID string) (*models.ProjectScope, error) {
	var scope models.ProjectScope
	if err := sqlx.GetContext(ctx, r.exec(exec), &scope, projectScopeQuery+` FOR UPDATE OF p`, projectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock project scope: %w", err)
	}
	return &scope, nil
}
