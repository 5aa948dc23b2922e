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

const groupColumns = `id, name, description, max_members, created_by, supervisor_id, created_at, updated_at`

// GroupRepository persists groups and their memberships.
type GroupRepository struct {
	db *sqlx.DB
}

// NewGroupRepository constructs the repository.
func NewGroupRepository(db *sqlx.DB) *GroupRepository {
	return &GroupRepository{db: db}
}

func (r *GroupRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a group row.
func (r *GroupRepository) Create(ctx context.Context, exec sqlx.ExtContext, group *models.Group) error {
	if group.ID == "" {
		group.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	const query = `INSERT INTO groups (id, name, description, max_members, created_by, supervisor_id, created_at, updated_at)
VALUES (:id, :name, :description, :max_members, :created_by, :supervisor_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, group); err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

// FindByID returns a group by identifier.
func (r *GroupRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Group, error) {
	const query = `SELECT ` + groupColumns + ` FROM groups WHERE id = $1`
	var group models.Group
	if err := sqlx.GetContext(ctx, r.exec(exec), &group, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find group: %w", err)
	}
	return &group, nil
}

// LockByID loads a group holding a row lock until the transaction ends.
func (r *GroupRepository) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Group, error) {
	const query = `SELECT ` + groupColumns + ` FROM groups WHERE id = $1 FOR UPDATE`
	var group models.Group
	if err := sqlx.GetContext(ctx, r.exec(exec), &group, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock group: %w", err)
	}
	return &group, nil
}

// Update writes name, description and capacity.
func (r *GroupRepository) Update(ctx context.Context, exec sqlx.ExtContext, group *models.Group) error {
	group.UpdatedAt = time.Now().UTC()
	const query = `UPDATE groups SET name = :name, description = :description, max_members = :max_members, updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, group); err != nil {
		return fmt.Errorf("update group: %w", err)
	}
	return nil
}

// SetSupervisor assigns the group's supervisor.
func (r *GroupRepository) SetSupervisor(ctx context.Context, exec sqlx.ExtContext, groupID, supervisorID string) error {
	const query = `UPDATE groups SET supervisor_id = $2, updated_at = $3 WHERE id = $1`
	res, err := r.exec(exec).ExecContext(ctx, query, groupID, supervisorID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set group supervisor: %w", err)
	}
	return requireAffected(res, "set group supervisor")
}

// Delete removes a group. Memberships, invitations, chat and project cascade.
func (r *GroupRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete group: %w", err)
	}
	return requireAffected(res, "delete group")
}

// List returns every group with its member count.
func (r *GroupRepository) List(ctx context.Context) ([]models.GroupSummary, error) {
	const query = `SELECT g.id, g.name, g.description, g.max_members, g.created_by, g.supervisor_id, g.created_at, g.updated_at,
       (SELECT COUNT(*) FROM group_members m WHERE m.group_id = g.id) AS member_count
FROM groups g ORDER BY g.created_at DESC`
	var groups []models.GroupSummary
	if err := r.db.SelectContext(ctx, &groups, query); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// ListBySupervisor returns the groups supervised by supervisorID.
func (r *GroupRepository) ListBySupervisor(ctx context.Context, supervisorID string) ([]models.Group, error) {
	const query = `SELECT ` + groupColumns + ` FROM groups WHERE supervisor_id = $1 ORDER BY created_at ASC`
	var groups []models.Group
	if err := r.db.SelectContext(ctx, &groups, query, supervisorID); err != nil {
		return nil, fmt.Errorf("list supervised groups: %w", err)
	}
	return groups, nil
}

// AddMember inserts a membership. UNIQUE(student_id) rejects a second group.
func (r *GroupRepository) AddMember(ctx context.Context, exec sqlx.ExtContext, member *models.GroupMember) error {
	if member.ID == "" {
		member.ID = uuid.NewString()
	}
	if member.JoinedAt.IsZero() {
		member.JoinedAt = time.Now().UTC()
	}
	const query = `INSERT INTO group_members (id, group_id, student_id, role, joined_at) VALUES (:id, :group_id, :student_id, :role, :joined_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, member); err != nil {
		return fmt.Errorf("add group member: %w", err)
	}
	return nil
}

// RemoveMember deletes the student's membership in groupID.
func (r *GroupRepository) RemoveMember(ctx context.Context, groupID, studentID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = $1 AND student_id = $2`, groupID, studentID)
	if err != nil {
		return fmt.Errorf("remove group member: %w", err)
	}
	return requireAffected(res, "remove group member")
}

// FindMembership returns the single membership held by a student.
func (r *GroupRepository) FindMembership(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.GroupMember, error) {
	const query = `SELECT id, group_id, student_id, role, joined_at FROM group_members WHERE student_id = $1`
	var member models.GroupMember
	if err := sqlx.GetContext(ctx, r.exec(exec), &member, query, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find membership: %w", err)
	}
	return &member, nil
}

// CountMembers returns the number of members in a group.
func (r *GroupRepository) CountMembers(ctx context.Context, exec sqlx.ExtContext, groupID string) (int, error) {
	var total int
	if err := sqlx.GetContext(ctx, r.exec(exec), &total, `SELECT COUNT(*) FROM group_members WHERE group_id = $1`, groupID); err != nil {
		return 0, fmt.Errorf("count group members: %w", err)
	}
	return total, nil
}

// ListMembers returns memberships joined with student profiles, leader first.
func (r *GroupRepository) ListMembers(ctx context.Context, groupID string) ([]models.GroupMemberDetail, error) {
	const query = `SELECT m.id, m.group_id, m.student_id, m.role, m.joined_at, u.name, u.email
FROM group_members m JOIN users u ON u.id = m.student_id
WHERE m.group_id = $1
ORDER BY CASE WHEN m.role = 'LEADER' THEN 0 ELSE 1 END, m.joined_at ASC`
	var members []models.GroupMemberDetail
	if err := r.db.SelectContext(ctx, &members, query, groupID); err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	return members, nil
}

func requireAffected(res sql.Result, op string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
