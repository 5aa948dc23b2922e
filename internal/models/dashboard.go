package models

// AdminDashboard summarises platform-wide activity.
type AdminDashboard struct {
	Students            int            `json:"students"`
	Supervisors         int            `json:"supervisors"`
	PendingRequests     int            `json:"pendingRequests"`
	Groups              []GroupProject `json:"groups"`
	UnseenNotifications int            `json:"unseenNotifications"`
}

// GroupProject pairs a group with its project, if any.
type GroupProject struct {
	GroupSummary
	Project *Project `json:"project,omitempty"`
}

// SupervisorDashboard lists the caller's supervised work.
type SupervisorDashboard struct {
	Groups          []SupervisedGroup         `json:"groups"`
	PendingRequests []SupervisorRequestDetail `json:"pendingRequests"`
}

// SupervisedGroup is a supervised group with its project tree.
type SupervisedGroup struct {
	Group      Group               `json:"group"`
	Project    *Project            `json:"project,omitempty"`
	Milestones []MilestoneWithWork `json:"milestones"`
}

// StudentDashboard shows the caller's group and project progress.
type StudentDashboard struct {
	Group               *GroupDetail        `json:"group,omitempty"`
	Project             *Project            `json:"project,omitempty"`
	Milestones          []MilestoneWithWork `json:"milestones"`
	UnseenNotifications int                 `json:"unseenNotifications"`
}
