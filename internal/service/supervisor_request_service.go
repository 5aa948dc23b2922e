package service

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	"github.com/noah-isme/capstone-hub-api/pkg/database"
	appErrors "github.com/noah-isme/capstone-hub-api/pkg/errors"
	"github.com/noah-isme/capstone-hub-api/pkg/sanitize"
)

type supervisorRequestRepository interface {
	Create(ctx context.Context, req *models.SupervisorRequest) error
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.SupervisorRequest, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.SupervisorRequestStatus) error
	ListPendingForSupervisor(ctx context.Context, supervisorID string) ([]models.SupervisorRequestDetail, error)
}

type supervisedGroupRepository interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Group, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Group, error)
	SetSupervisor(ctx context.Context, exec sqlx.ExtContext, groupID, supervisorID string) error
	FindMembership(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.GroupMember, error)
}

// SupervisorRequestService links supervisors to groups through requests.
type SupervisorRequestService struct {
	requests  supervisorRequestRepository
	groups    supervisedGroupRepository
	users     userFinder
	tx        txProvider
	notifier  notifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSupervisorRequestService constructs the workflow service.
func NewSupervisorRequestService(requests supervisorRequestRepository, groups supervisedGroupRepository, users userFinder, tx txProvider, n notifier, validate *validator.Validate, logger *zap.Logger) *SupervisorRequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if n == nil {
		n = noopNotifier{}
	}
	return &SupervisorRequestService{requests: requests, groups: groups, users: users, tx: tx, notifier: n, validator: validate, logger: logger}
}

// Request asks a supervisor to supervise the actor's group.
func (s *SupervisorRequestService) Request(ctx context.Context, actor models.Identity, req models.CreateSupervisorRequest) (*models.SupervisorRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid supervisor request payload")
	}
	group, err := s.groups.FindByID(ctx, nil, req.GroupID)
	if err != nil {
		return nil, lookupError(err, "Group not found", "failed to load group")
	}
	membership, err := s.groups.FindMembership(ctx, nil, actor.ID)
	if err != nil {
		return nil, lookupError(err, "Only the group leader can request a supervisor", "failed to load membership")
	}
	if membership.GroupID != group.ID || membership.Role != models.MemberRoleLeader {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Only the group leader can request a supervisor")
	}
	supervisor, err := s.users.FindByID(ctx, req.SupervisorID)
	if err != nil {
		return nil, lookupError(err, "Supervisor not found", "failed to load supervisor")
	}
	if supervisor.Role != models.RoleSupervisor {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Supervisor not found")
	}

	request := &models.SupervisorRequest{
		GroupID:      group.ID,
		SupervisorID: supervisor.ID,
		RequestedBy:  actor.ID,
		Message:      sanitize.OptionalText(req.Message),
		Status:       models.SupervisorRequestPending,
	}
	if err := s.requests.Create(ctx, request); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "A request for this supervisor already exists")
		}
		return nil, internalError(err, "failed to create supervisor request")
	}

	s.notifier.Notify(ctx, supervisor.ID, fmt.Sprintf("You have got a new request from this group %q.", group.Name))
	return request, nil
}

// Accept assigns the actor as supervisor of the requesting group.
func (s *SupervisorRequestService) Accept(ctx context.Context, actor models.Identity, requestID string) (*models.SupervisorRequest, error) {
	return s.decide(ctx, actor, requestID, models.SupervisorRequestAccepted)
}

// Reject declines a pending request.
func (s *SupervisorRequestService) Reject(ctx context.Context, actor models.Identity, requestID string) (*models.SupervisorRequest, error) {
	return s.decide(ctx, actor, requestID, models.SupervisorRequestRejected)
}

func (s *SupervisorRequestService) decide(ctx context.Context, actor models.Identity, requestID string, status models.SupervisorRequestStatus) (*models.SupervisorRequest, error) {
	var (
		request *models.SupervisorRequest
		notices []pendingNotice
	)
	err := inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		locked, err := s.requests.LockByID(ctx, tx, requestID)
		if err != nil {
			return lookupError(err, "Request not found", "failed to load supervisor request")
		}
		request = locked
		if request.SupervisorID != actor.ID {
			return appErrors.Clone(appErrors.ErrForbidden, "This request is not addressed to you")
		}
		if request.Status != models.SupervisorRequestPending {
			return appErrors.Clone(appErrors.ErrConflict, "Request has already been handled")
		}
		group, err := s.groups.LockByID(ctx, tx, request.GroupID)
		if err != nil {
			return lookupError(err, "Group not found", "failed to load group")
		}
		if err := s.requests.UpdateStatus(ctx, tx, request.ID, status); err != nil {
			return internalError(err, "failed to update supervisor request")
		}
		request.Status = status

		verb := "rejected"
		if status == models.SupervisorRequestAccepted {
			if err := s.groups.SetSupervisor(ctx, tx, group.ID, actor.ID); err != nil {
				return internalError(err, "failed to assign supervisor")
			}
			verb = "accepted"
		}
		notices = append(notices, pendingNotice{
			userID:  request.RequestedBy,
			message: fmt.Sprintf("%s has %s your supervision request for the group %q.", actor.Name, verb, group.Name),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("supervisor request decided",
		zap.String("request_id", request.ID),
		zap.String("status", string(status)),
		zap.String("supervisor_id", actor.ID),
	)
	flushNotices(ctx, s.notifier, notices)
	return request, nil
}

// ListPending returns the actor's undecided requests.
func (s *SupervisorRequestService) ListPending(ctx context.Context, actor models.Identity) ([]models.SupervisorRequestDetail, error) {
	requests, err := s.requests.ListPendingForSupervisor(ctx, actor.ID)
	if err != nil {
		return nil, internalError(err, "failed to list supervisor requests")
	}
	if requests == nil {
		requests = []models.SupervisorRequestDetail{}
	}
	return requests, nil
}
