package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	appErrors "github.com/noah-isme/capstone-hub-api/pkg/errors"
)

type membershipFinder interface {
	FindMembership(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.GroupMember, error)
}

type projectScopeRepository interface {
	Scope(ctx context.Context, exec sqlx.ExtContext, projectID string) (*models.ProjectScope, error)
	LockScope(ctx context.Context, exec sqlx.ExtContext, projectID string) (*models.ProjectScope, error)
}

var errAccessDenied = appErrors.Clone(appErrors.ErrForbidden, "Access denied")

// canManageProject allows admins and the supervisor assigned to the project's group.
func canManageProject(actor models.Identity, scope *models.ProjectScope) error {
	if actor.Is(models.RoleAdmin) || (actor.Is(models.RoleSupervisor) && scope.SupervisedBy(actor.ID)) {
		return nil
	}
	return errAccessDenied
}

// canReadProject extends canManageProject to members of the owning group.
func canReadProject(ctx context.Context, members membershipFinder, exec sqlx.ExtContext, actor models.Identity, scope *models.ProjectScope) error {
	if canManageProject(actor, scope) == nil {
		return nil
	}
	if !actor.Is(models.RoleStudent) {
		return errAccessDenied
	}
	return requireMember(ctx, members, exec, actor, scope.GroupID)
}

func requireMember(ctx context.Context, members membershipFinder, exec sqlx.ExtContext, actor models.Identity, groupID string) error {
	membership, err := members.FindMembership(ctx, exec, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errAccessDenied
		}
		return internalError(err, "failed to check membership")
	}
	if membership.GroupID != groupID {
		return errAccessDenied
	}
	return nil
}
