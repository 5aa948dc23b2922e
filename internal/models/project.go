package models

import (
	"time"

	"github.com/lib/pq"
)

// Project is the single capstone project owned by a group.
type Project struct {
	ID           string         `db:"id" json:"id"`
	GroupID      string         `db:"group_id" json:"groupId"`
	Title        string         `db:"title" json:"title"`
	Description  string         `db:"description" json:"description"`
	Technologies pq.StringArray `db:"technologies" json:"technologies"`
	StartDate    *time.Time     `db:"start_date" json:"startDate,omitempty"`
	EndDate      *time.Time     `db:"end_date" json:"endDate,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updatedAt"`
}

// ProjectScope identifies who may see a project's milestones and submissions.
type ProjectScope struct {
	ProjectID    string    `db:"project_id"`
	GroupID      string    `db:"group_id"`
	GroupName    string    `db:"group_name"`
	SupervisorID *string   `db:"supervisor_id"`
	LeaderID     string    `db:"leader_id"`
	CreatedAt    time.Time `db:"created_at"`
}

// SupervisedBy reports whether userID supervises the project's group.
func (s *ProjectScope) SupervisedBy(userID string) bool {
	return s.SupervisorID != nil && *s.SupervisorID == userID
}

// ProjectDetail aggregates a project with its milestones.
type ProjectDetail struct {
	Project
	GroupName  string              `json:"groupName"`
	Milestones []MilestoneWithWork `json:"milestones"`
}

// CreateProjectRequest is the payload for registering a project.
type CreateProjectRequest struct {
	GroupID      string     `json:"groupId" validate:"required,uuid"`
	Title        string     `json:"title" validate:"required,min=3,max=200"`
	Description  string     `json:"description" validate:"required,max=5000"`
	Technologies []string   `json:"technologies" validate:"omitempty,max=20,dive,required,max=60"`
	StartDate    *time.Time `json:"startDate"`
	EndDate      *time.Time `json:"endDate"`
}

// UpdateProjectRequest is the payload for partial project updates.
type UpdateProjectRequest struct {
	Title        *string    `json:"title" validate:"omitempty,min=3,max=200"`
	Description  *string    `json:"description" validate:"omitempty,max=5000"`
	Technologies []string   `json:"technologies" validate:"omitempty,max=20,dive,required,max=60"`
	StartDate    *time.Time `json:"startDate"`
	EndDate      *time.Time `json:"endDate"`
}

// ReportFormat names a grade report output format.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportLink is returned after a grade report is generated.
type ReportLink struct {
	URL       string    `json:"url"`
	Format    string    `json:"format"`
	ExpiresAt time.Time `json:"expiresAt"`
}
