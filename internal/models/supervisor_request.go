package models

import "time"

// SupervisorRequestStatus tracks the decision on a supervision request.
type SupervisorRequestStatus string

const (
	SupervisorRequestPending  SupervisorRequestStatus = "PENDING"
	SupervisorRequestAccepted SupervisorRequestStatus = "ACCEPTED"
	SupervisorRequestRejected SupervisorRequestStatus = "REJECTED"
)

// SupervisorRequest asks a supervisor to take on a group.
type SupervisorRequest struct {
	ID           string                  `db:"id" json:"id"`
	GroupID      string                  `db:"group_id" json:"groupId"`
	SupervisorID string                  `db:"supervisor_id" json:"supervisorId"`
	RequestedBy  string                  `db:"requested_by" json:"requestedBy"`
	Message      *string                 `db:"message" json:"message,omitempty"`
	Status       SupervisorRequestStatus `db:"status" json:"status"`
	CreatedAt    time.Time               `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time               `db:"updated_at" json:"updatedAt"`
}

// SupervisorRequestDetail is a request joined with its group's name.
type SupervisorRequestDetail struct {
	SupervisorRequest
	GroupName        string `db:"group_name" json:"groupName"`
	GroupDescription string `db:"group_description" json:"groupDescription"`
	RequesterName    string `db:"requester_name" json:"requesterName"`
}

// CreateSupervisorRequest is the payload for asking a supervisor.
type CreateSupervisorRequest struct {
	GroupID      string  `json:"groupId" validate:"required,uuid"`
	SupervisorID string  `json:"supervisorId" validate:"required,uuid"`
	Message      *string `json:"message" validate:"omitempty,max=1000"`
}
