package models

import "time"

// MemberRole distinguishes the group leader from other members.
type MemberRole string

const (
	MemberRoleLeader MemberRole = "LEADER"
	MemberRoleMember MemberRole = "MEMBER"
)

// Group bounds for max_members.
const (
	MinGroupMembers     = 3
	MaxGroupMembers     = 6
	DefaultGroupMembers = 4
)

// Group represents a student project group.
type Group struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Description  string    `db:"description" json:"description"`
	MaxMembers   int       `db:"max_members" json:"maxMembers"`
	CreatedBy    string    `db:"created_by" json:"createdBy"`
	SupervisorID *string   `db:"supervisor_id" json:"supervisorId,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// GroupMember is a membership row.
type GroupMember struct {
	ID        string     `db:"id" json:"id"`
	GroupID   string     `db:"group_id" json:"groupId"`
	StudentID string     `db:"student_id" json:"studentId"`
	Role      MemberRole `db:"role" json:"role"`
	JoinedAt  time.Time  `db:"joined_at" json:"joinedAt"`
}

// GroupMemberDetail is a membership joined with the student's profile.
type GroupMemberDetail struct {
	GroupMember
	Name  string `db:"name" json:"name"`
	Email string `db:"email" json:"email"`
}

// GroupSummary is a group row with its member count.
type GroupSummary struct {
	Group
	MemberCount int `db:"member_count" json:"memberCount"`
}

// GroupDetail aggregates a group with members, supervisor and chat.
type GroupDetail struct {
	Group
	Members    []GroupMemberDetail `json:"members"`
	Supervisor *UserSummary        `json:"supervisor,omitempty"`
	ChatID     string              `json:"chatId,omitempty"`
}

// Leader returns the leader membership when present.
func (d *GroupDetail) Leader() *GroupMemberDetail {
	for i := range d.Members {
		if d.Members[i].Role == MemberRoleLeader {
			return &d.Members[i]
		}
	}
	return nil
}

// CreateGroupRequest is the payload for forming a group.
type CreateGroupRequest struct {
	Name        string `json:"name" validate:"required,min=3,max=120"`
	Description string `json:"description" validate:"required,max=2000"`
	MaxMembers  *int   `json:"maxMembers" validate:"omitempty,min=3,max=6"`
}

// UpdateGroupRequest is the payload for partial group updates.
type UpdateGroupRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=3,max=120"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	MaxMembers  *int    `json:"maxMembers" validate:"omitempty,min=3,max=6"`
}

// InvitationStatus tracks the lifecycle of an invitation code.
type InvitationStatus string

const (
	InvitationPending  InvitationStatus = "PENDING"
	InvitationAccepted InvitationStatus = "ACCEPTED"
	InvitationExpired  InvitationStatus = "EXPIRED"
)

// GroupInvitation is a single-use join code addressed to one student.
type GroupInvitation struct {
	ID         string           `db:"id" json:"id"`
	GroupID    string           `db:"group_id" json:"groupId"`
	SentBy     string           `db:"sent_by" json:"sentBy"`
	ReceivedBy string           `db:"received_by" json:"receivedBy"`
	Code       string           `db:"code" json:"code"`
	Status     InvitationStatus `db:"status" json:"status"`
	ExpiresAt  time.Time        `db:"expires_at" json:"expiresAt"`
	UsedAt     *time.Time       `db:"used_at" json:"usedAt,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"createdAt"`
}

// Expired reports whether the invitation is past its expiry at now.
func (i *GroupInvitation) Expired(now time.Time) bool {
	return i.Status == InvitationExpired || !now.Before(i.ExpiresAt)
}

// Used reports whether the invitation has been redeemed.
func (i *GroupInvitation) Used() bool {
	return i.UsedAt != nil || i.Status == InvitationAccepted
}

// RedeemInvitationRequest carries the code a student redeems.
type RedeemInvitationRequest struct {
	Code string `json:"code" validate:"required,min=6,max=32"`
}
