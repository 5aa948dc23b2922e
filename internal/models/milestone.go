package models

import "time"

// MilestoneStatus is the progress state of a milestone.
type MilestoneStatus string

const (
	MilestonePending   MilestoneStatus = "PENDING"
	MilestoneSubmitted MilestoneStatus = "SUBMITTED"
	MilestoneReviewed  MilestoneStatus = "REVIEWED"
	MilestoneCompleted MilestoneStatus = "COMPLETED"
)

var milestoneRank = map[MilestoneStatus]int{
	MilestonePending:   0,
	MilestoneSubmitted: 1,
	MilestoneReviewed:  2,
	MilestoneCompleted: 3,
}

// Valid reports whether the status is known.
func (s MilestoneStatus) Valid() bool {
	_, ok := milestoneRank[s]
	return ok
}

// Before reports whether s precedes other in the progress order.
func (s MilestoneStatus) Before(other MilestoneStatus) bool {
	return milestoneRank[s] < milestoneRank[other]
}

// Advance returns next when it moves forward from s, otherwise s.
func (s MilestoneStatus) Advance(next MilestoneStatus) MilestoneStatus {
	if s.Before(next) {
		return next
	}
	return s
}

// Milestone is a deadline-bearing checkpoint within a project.
type Milestone struct {
	ID          string          `db:"id" json:"id"`
	ProjectID   string          `db:"project_id" json:"projectId"`
	Title       string          `db:"title" json:"title"`
	Description string          `db:"description" json:"description"`
	Deadline    time.Time       `db:"deadline" json:"deadline"`
	Status      MilestoneStatus `db:"status" json:"status"`
	OrderIndex  int             `db:"order_index" json:"orderIndex"`
	CreatedAt   time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updatedAt"`
}

// MilestoneWithWork is a milestone together with its submissions.
type MilestoneWithWork struct {
	Milestone
	Submissions []Submission `json:"submissions"`
}

// CreateMilestoneRequest is the payload for scheduling a milestone.
type CreateMilestoneRequest struct {
	Title       string    `json:"title" validate:"required,min=3,max=200"`
	Description string    `json:"description" validate:"required,max=5000"`
	Deadline    time.Time `json:"deadline" validate:"required"`
}

// UpdateMilestoneRequest is the payload for partial milestone updates.
type UpdateMilestoneRequest struct {
	Title       *string          `json:"title" validate:"omitempty,min=3,max=200"`
	Description *string          `json:"description" validate:"omitempty,max=5000"`
	Deadline    *time.Time       `json:"deadline"`
	Status      *MilestoneStatus `json:"status" validate:"omitempty,oneof=PENDING SUBMITTED REVIEWED COMPLETED"`
}
