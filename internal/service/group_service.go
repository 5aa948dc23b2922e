package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	"github.com/noah-isme/capstone-hub-api/pkg/database"
	appErrors "github.com/noah-isme/capstone-hub-api/pkg/errors"
	"github.com/noah-isme/capstone-hub-api/pkg/sanitize"
)

const (
	invitationTTL      = 7 * 24 * time.Hour
	invitationCodeLen  = 10
	invitationAttempts = 5
	// Crockford-style alphabet without I, L, O, U: 32 symbols, 50 bits per code.
	invitationAlphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
)

type groupRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, group *models.Group) error
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Group, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Group, error)
	Update(ctx context.Context, exec sqlx.ExtContext, group *models.Group) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]models.GroupSummary, error)
	AddMember(ctx context.Context, exec sqlx.ExtContext, member *models.GroupMember) error
	RemoveMember(ctx context.Context, groupID, studentID string) error
	FindMembership(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.GroupMember, error)
	CountMembers(ctx context.Context, exec sqlx.ExtContext, groupID string) (int, error)
	ListMembers(ctx context.Context, groupID string) ([]models.GroupMemberDetail, error)
}

type invitationRepository interface {
	Insert(ctx context.Context, exec sqlx.ExtContext, inv *models.GroupInvitation) (bool, error)
	ExpireStale(ctx context.Context, exec sqlx.ExtContext, groupID, receivedBy string, now time.Time) (int64, error)
	FindByCode(ctx context.Context, exec sqlx.ExtContext, code string) (*models.GroupInvitation, error)
	Consume(ctx context.Context, exec sqlx.ExtContext, id string, usedAt time.Time) (bool, error)
}

type chatCreator interface {
	Create(ctx context.Context, exec sqlx.ExtContext, chat *models.GroupChat) error
	FindByGroup(ctx context.Context, groupID string) (*models.GroupChat, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// GroupServiceParams wires the group lifecycle dependencies.
type GroupServiceParams struct {
	Groups      groupRepository
	Invitations invitationRepository
	Chats       chatCreator
	Users       userFinder
	Tx          txProvider
	Notifier    notifier
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// GroupService manages group formation, invitations and membership.
type GroupService struct {
	groups      groupRepository
	invitations invitationRepository
	chats       chatCreator
	users       userFinder
	tx          txProvider
	notifier    notifier
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
	newCode     func() (string, error)
}

// NewGroupService constructs a GroupService.
func NewGroupService(params GroupServiceParams) *GroupService {
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Notifier == nil {
		params.Notifier = noopNotifier{}
	}
	return &GroupService{
		groups:      params.Groups,
		invitations: params.Invitations,
		chats:       params.Chats,
		users:       params.Users,
		tx:          params.Tx,
		notifier:    params.Notifier,
		validator:   params.Validator,
		logger:      params.Logger,
		now:         func() time.Time { return time.Now().UTC() },
		newCode:     generateInvitationCode,
	}
}

// Create forms a group led by the actor, together with its leader membership
// and chat room.
func (s *GroupService) Create(ctx context.Context, actor models.Identity, req models.CreateGroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid group payload")
	}
	if _, err := s.groups.FindMembership(ctx, nil, actor.ID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "You are already a member of a group")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, internalError(err, "failed to check membership")
	}

	maxMembers := models.DefaultGroupMembers
	if req.MaxMembers != nil {
		maxMembers = *req.MaxMembers
	}
	group := &models.Group{
		Name:        sanitize.Text(req.Name),
		Description: sanitize.Text(req.Description),
		MaxMembers:  maxMembers,
		CreatedBy:   actor.ID,
	}

	err := inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if err := s.groups.Create(ctx, tx, group); err != nil {
			return internalError(err, "failed to create group")
		}
		leader := &models.GroupMember{GroupID: group.ID, StudentID: actor.ID, Role: models.MemberRoleLeader}
		if err := s.groups.AddMember(ctx, tx, leader); err != nil {
			if database.IsUniqueViolation(err) {
				return appErrors.Clone(appErrors.ErrConflict, "You are already a member of a group")
			}
			return internalError(err, "failed to add group leader")
		}
		if err := s.chats.Create(ctx, tx, &models.GroupChat{GroupID: group.ID}); err != nil {
			return internalError(err, "failed to create group chat")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("group created", zap.String("group_id", group.ID), zap.String("leader_id", actor.ID))
	return group, nil
}

// MyGroup returns the actor's group with members, supervisor and chat.
func (s *GroupService) MyGroup(ctx context.Context, actor models.Identity) (*models.GroupDetail, error) {
	membership, err := s.groups.FindMembership(ctx, nil, actor.ID)
	if err != nil {
		return nil, lookupError(err, "User is not a member of any group", "failed to load membership")
	}
	return s.Detail(ctx, membership.GroupID)
}

// Detail loads a group with members, supervisor and chat id.
func (s *GroupService) Detail(ctx context.Context, groupID string) (*models.GroupDetail, error) {
	group, err := s.groups.FindByID(ctx, nil, groupID)
	if err != nil {
		return nil, lookupError(err, "Group not found", "failed to load group")
	}
	members, err := s.groups.ListMembers(ctx, group.ID)
	if err != nil {
		return nil, internalError(err, "failed to load group members")
	}
	detail := &models.GroupDetail{Group: *group, Members: members}
	if group.SupervisorID != nil {
		supervisor, err := s.users.FindByID(ctx, *group.SupervisorID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, internalError(err, "failed to load supervisor")
		}
		if supervisor != nil {
			detail.Supervisor = &models.UserSummary{ID: supervisor.ID, Email: supervisor.Email, Name: supervisor.Name}
		}
	}
	chat, err := s.chats.FindByGroup(ctx, group.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, internalError(err, "failed to load group chat")
	}
	if chat != nil {
		detail.ChatID = chat.ID
	}
	return detail, nil
}

// List returns every group with member counts.
func (s *GroupService) List(ctx context.Context) ([]models.GroupSummary, error) {
	groups, err := s.groups.List(ctx)
	if err != nil {
		return nil, internalError(err, "failed to list groups")
	}
	return groups, nil
}

// Invite issues a single-use join code from the group leader to a student.
func (s *GroupService) Invite(ctx context.Context, actor models.Identity, groupID, targetID string) (*models.GroupInvitation, error) {
	group, err := s.groups.FindByID(ctx, nil, groupID)
	if err != nil {
		return nil, lookupError(err, "Group not found", "failed to load group")
	}
	target, err := s.users.FindByID(ctx, targetID)
	if err != nil {
		return nil, lookupError(err, "User not found", "failed to load user")
	}
	if err := s.requireLeader(ctx, nil, actor, group.ID, "Only the group leader can invite members"); err != nil {
		return nil, err
	}

	var invitation *models.GroupInvitation
	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		locked, err := s.groups.LockByID(ctx, tx, group.ID)
		if err != nil {
			return lookupError(err, "Group not found", "failed to lock group")
		}
		group = locked
		count, err := s.groups.CountMembers(ctx, tx, group.ID)
		if err != nil {
			return internalError(err, "failed to count members")
		}
		if count >= group.MaxMembers {
			return appErrors.Clone(appErrors.ErrConflict, "Group has reached its member limit")
		}
		if target.Role != models.RoleStudent {
			return appErrors.Clone(appErrors.ErrConflict, "Only students can be added to groups")
		}
		if _, err := s.groups.FindMembership(ctx, tx, target.ID); err == nil {
			return appErrors.Clone(appErrors.ErrConflict, "User is already a member in a group")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return internalError(err, "failed to check membership")
		}

		now := s.now()
		if _, err := s.invitations.ExpireStale(ctx, tx, group.ID, target.ID, now); err != nil {
			return internalError(err, "failed to expire stale invitations")
		}

		inv := &models.GroupInvitation{
			GroupID:    group.ID,
			SentBy:     actor.ID,
			ReceivedBy: target.ID,
			Status:     models.InvitationPending,
			ExpiresAt:  now.Add(invitationTTL),
			CreatedAt:  now,
		}
		for attempt := 0; attempt < invitationAttempts; attempt++ {
			code, err := s.newCode()
			if err != nil {
				return internalError(err, "failed to generate invitation code")
			}
			inv.Code = code
			inserted, err := s.invitations.Insert(ctx, tx, inv)
			if err != nil {
				if database.IsUniqueViolation(err) {
					return appErrors.Clone(appErrors.ErrConflict, "User already has an invitation")
				}
				return internalError(err, "failed to create invitation")
			}
			if inserted {
				invitation = inv
				return nil
			}
			s.logger.Warn("invitation code collision", zap.Int("attempt", attempt+1))
		}
		return internalError(fmt.Errorf("no free code after %d attempts", invitationAttempts), "failed to allocate invitation code")
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, target.ID, fmt.Sprintf("You have been invited to join the group %q. Use code: %s", group.Name, invitation.Code))
	return invitation, nil
}

// Redeem adds the actor to the group an invitation code points at.
func (s *GroupService) Redeem(ctx context.Context, actor models.Identity, req models.RedeemInvitationRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid invitation code")
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	inv, err := s.invitations.FindByCode(ctx, nil, code)
	if err != nil {
		return nil, lookupError(err, "Invalid invitation code", "failed to load invitation")
	}
	if inv.Used() {
		return nil, appErrors.Clone(appErrors.ErrConflict, "Invitation code already used")
	}
	if inv.Expired(s.now()) {
		return nil, appErrors.Clone(appErrors.ErrConflict, "Invitation code expired")
	}
	if inv.ReceivedBy != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "This invitation is not for you")
	}

	var group *models.Group
	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		locked, err := s.groups.LockByID(ctx, tx, inv.GroupID)
		if err != nil {
			return lookupError(err, "Group not found", "failed to lock group")
		}
		group = locked
		count, err := s.groups.CountMembers(ctx, tx, group.ID)
		if err != nil {
			return internalError(err, "failed to count members")
		}
		if count >= group.MaxMembers {
			return appErrors.Clone(appErrors.ErrConflict, "Group has reached its member limit")
		}
		if _, err := s.groups.FindMembership(ctx, tx, actor.ID); err == nil {
			return appErrors.Clone(appErrors.ErrConflict, "You are already a member of a group")
		} else if !errors.Is(err, sql.ErrNoRows) {
			return internalError(err, "failed to check membership")
		}
		consumed, err := s.invitations.Consume(ctx, tx, inv.ID, s.now())
		if err != nil {
			return internalError(err, "failed to consume invitation")
		}
		if !consumed {
			return appErrors.Clone(appErrors.ErrConflict, "Invitation code already used")
		}
		member := &models.GroupMember{GroupID: group.ID, StudentID: actor.ID, Role: models.MemberRoleMember}
		if err := s.groups.AddMember(ctx, tx, member); err != nil {
			if database.IsUniqueViolation(err) {
				return appErrors.Clone(appErrors.ErrConflict, "You are already a member of a group")
			}
			return internalError(err, "failed to add member")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, inv.SentBy, fmt.Sprintf("%s has accepted your invitation to join the group.", actor.Name))
	return group, nil
}

// RemoveMember lets the leader remove another member.
func (s *GroupService) RemoveMember(ctx context.Context, actor models.Identity, groupID, targetID string) error {
	group, err := s.groups.FindByID(ctx, nil, groupID)
	if err != nil {
		return lookupError(err, "Group not found", "failed to load group")
	}
	if err := s.requireLeader(ctx, nil, actor, group.ID, "Only the group leader can remove members"); err != nil {
		return err
	}
	if targetID == actor.ID {
		return appErrors.Clone(appErrors.ErrBadRequest, "The group leader cannot be removed")
	}
	if err := s.groups.RemoveMember(ctx, group.ID, targetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrBadRequest, "User is not a member of the group")
		}
		return internalError(err, "failed to remove member")
	}
	return nil
}

// Update lets the leader rename the group or change its capacity.
func (s *GroupService) Update(ctx context.Context, actor models.Identity, groupID string, req models.UpdateGroupRequest) (*models.Group, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid group payload")
	}

	var group *models.Group
	err := inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		locked, err := s.groups.LockByID(ctx, tx, groupID)
		if err != nil {
			return lookupError(err, "Group not found", "failed to load group")
		}
		group = locked
		if err := s.requireLeader(ctx, tx, actor, group.ID, "Only the group leader can update the group"); err != nil {
			return err
		}
		if req.Name != nil {
			group.Name = sanitize.Text(*req.Name)
		}
		if req.Description != nil {
			group.Description = sanitize.Text(*req.Description)
		}
		if req.MaxMembers != nil {
			count, err := s.groups.CountMembers(ctx, tx, group.ID)
			if err != nil {
				return internalError(err, "failed to count members")
			}
			if *req.MaxMembers < count {
				return appErrors.Clone(appErrors.ErrConflict, "Group already has more members than the new limit")
			}
			group.MaxMembers = *req.MaxMembers
		}
		if err := s.groups.Update(ctx, tx, group); err != nil {
			return internalError(err, "failed to update group")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// Delete removes a group. Only its leader or an admin may do so.
func (s *GroupService) Delete(ctx context.Context, actor models.Identity, groupID string) error {
	group, err := s.groups.FindByID(ctx, nil, groupID)
	if err != nil {
		return lookupError(err, "Group not found", "failed to load group")
	}
	if !actor.Is(models.RoleAdmin) {
		if err := s.requireLeader(ctx, nil, actor, group.ID, "Only the group leader can delete the group"); err != nil {
			return err
		}
	}
	if err := s.groups.Delete(ctx, group.ID); err != nil {
		return lookupError(err, "Group not found", "failed to delete group")
	}
	s.logger.Info("group deleted", zap.String("group_id", group.ID), zap.String("actor_id", actor.ID))
	return nil
}

// requireLeader fails with Forbidden unless actor leads groupID.
func (s *GroupService) requireLeader(ctx context.Context, exec sqlx.ExtContext, actor models.Identity, groupID, message string) error {
	membership, err := s.groups.FindMembership(ctx, exec, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrForbidden, message)
		}
		return internalError(err, "failed to check membership")
	}
	if membership.GroupID != groupID || membership.Role != models.MemberRoleLeader {
		return appErrors.Clone(appErrors.ErrForbidden, message)
	}
	return nil
}

func generateInvitationCode() (string, error) {
	var b strings.Builder
	b.Grow(invitationCodeLen)
	max := big.NewInt(int64(len(invitationAlphabet)))
	for i := 0; i < invitationCodeLen; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(invitationAlphabet[n.Int64()])
	}
	return b.String(), nil
}
