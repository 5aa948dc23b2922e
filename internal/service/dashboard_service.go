package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	appErrors "github.com/noah-isme/capstone-hub-api/pkg/errors"
)

type roleCounter interface {
	CountByRole(ctx context.Context) (map[models.UserRole]int, error)
}

type dashboardRequestRepository interface {
	CountPending(ctx context.Context) (int, error)
	ListPendingForSupervisor(ctx context.Context, supervisorID string) ([]models.SupervisorRequestDetail, error)
}

type dashboardGroupRepository interface {
	List(ctx context.Context) ([]models.GroupSummary, error)
	ListBySupervisor(ctx context.Context, supervisorID string) ([]models.Group, error)
}

type dashboardProjectRepository interface {
	List(ctx context.Context, supervisorID *string) ([]models.Project, error)
	FindByGroup(ctx context.Context, groupID string) (*models.Project, error)
}

type milestoneLister interface {
	ListByProject(ctx context.Context, exec sqlx.ExtContext, projectID string) ([]models.Milestone, error)
}

type unseenCounter interface {
	CountUnseen(ctx context.Context, userID string) (int, error)
}

type myGroupLoader interface {
	MyGroup(ctx context.Context, actor models.Identity) (*models.GroupDetail, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL time.Duration
}

// DashboardService composes the per-role dashboards.
type DashboardService struct {
	users         roleCounter
	requests      dashboardRequestRepository
	groups        dashboardGroupRepository
	projects      dashboardProjectRepository
	milestones    milestoneLister
	submissions   submissionLister
	notifications unseenCounter
	myGroup       myGroupLoader
	cache         *CacheService
	logger        *zap.Logger
	cfg           DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Users         roleCounter
	Requests      dashboardRequestRepository
	Groups        dashboardGroupRepository
	Projects      dashboardProjectRepository
	Milestones    milestoneLister
	Submissions   submissionLister
	Notifications unseenCounter
	MyGroup       myGroupLoader
	Cache         *CacheService
	Logger        *zap.Logger
	Config        DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		users:         params.Users,
		requests:      params.Requests,
		groups:        params.Groups,
		projects:      params.Projects,
		milestones:    params.Milestones,
		submissions:   params.Submissions,
		notifications: params.Notifications,
		myGroup:       params.MyGroup,
		cache:         params.Cache,
		logger:        logger,
		cfg:           cfg,
	}
}

// Admin returns platform totals and indicates cache utilisation.
func (s *DashboardService) Admin(ctx context.Context, actor models.Identity) (*models.AdminDashboard, bool, error) {
	key := DashboardKey(models.RoleAdmin, actor.ID)
	var cached models.AdminDashboard
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	counts, err := s.users.CountByRole(ctx)
	if err != nil {
		return nil, false, internalError(err, "failed to count users")
	}
	pending, err := s.requests.CountPending(ctx)
	if err != nil {
		return nil, false, internalError(err, "failed to count supervisor requests")
	}
	groups, err := s.groups.List(ctx)
	if err != nil {
		return nil, false, internalError(err, "failed to list groups")
	}
	projects, err := s.projects.List(ctx, nil)
	if err != nil {
		return nil, false, internalError(err, "failed to list projects")
	}
	unseen, err := s.notifications.CountUnseen(ctx, actor.ID)
	if err != nil {
		return nil, false, internalError(err, "failed to count notifications")
	}

	byGroup := make(map[string]*models.Project, len(projects))
	for i := range projects {
		byGroup[projects[i].GroupID] = &projects[i]
	}
	summary := &models.AdminDashboard{
		Students:            counts[models.RoleStudent],
		Supervisors:         counts[models.RoleSupervisor],
		PendingRequests:     pending,
		Groups:              make([]models.GroupProject, 0, len(groups)),
		UnseenNotifications: unseen,
	}
	for _, group := range groups {
		summary.Groups = append(summary.Groups, models.GroupProject{GroupSummary: group, Project: byGroup[group.ID]})
	}

	s.cache.Set(ctx, key, summary, s.cfg.CacheTTL)
	return summary, false, nil
}

// Supervisor returns the caller's supervised groups and open requests.
func (s *DashboardService) Supervisor(ctx context.Context, actor models.Identity) (*models.SupervisorDashboard, bool, error) {
	key := DashboardKey(models.RoleSupervisor, actor.ID)
	var cached models.SupervisorDashboard
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	groups, err := s.groups.ListBySupervisor(ctx, actor.ID)
	if err != nil {
		return nil, false, internalError(err, "failed to list supervised groups")
	}
	summary := &models.SupervisorDashboard{
		Groups:          make([]models.SupervisedGroup, 0, len(groups)),
		PendingRequests: []models.SupervisorRequestDetail{},
	}
	for _, group := range groups {
		project, milestones, err := s.projectTree(ctx, group.ID)
		if err != nil {
			return nil, false, err
		}
		summary.Groups = append(summary.Groups, models.SupervisedGroup{Group: group, Project: project, Milestones: milestones})
	}
	pending, err := s.requests.ListPendingForSupervisor(ctx, actor.ID)
	if err != nil {
		return nil, false, internalError(err, "failed to list supervisor requests")
	}
	if pending != nil {
		summary.PendingRequests = pending
	}

	s.cache.Set(ctx, key, summary, s.cfg.CacheTTL)
	return summary, false, nil
}

// Student returns the caller's group, project progress and unseen count.
// A student without a group gets an empty dashboard rather than an error.
func (s *DashboardService) Student(ctx context.Context, actor models.Identity) (*models.StudentDashboard, bool, error) {
	key := DashboardKey(models.RoleStudent, actor.ID)
	var cached models.StudentDashboard
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	summary := &models.StudentDashboard{Milestones: []models.MilestoneWithWork{}}
	group, err := s.myGroup.MyGroup(ctx, actor)
	switch {
	case err == nil:
		summary.Group = group
		project, milestones, err := s.projectTree(ctx, group.ID)
		if err != nil {
			return nil, false, err
		}
		summary.Project = project
		summary.Milestones = milestones
	case errors.Is(err, appErrors.ErrNotFound):
	default:
		return nil, false, err
	}

	unseen, err := s.notifications.CountUnseen(ctx, actor.ID)
	if err != nil {
		return nil, false, internalError(err, "failed to count notifications")
	}
	summary.UnseenNotifications = unseen

	s.cache.Set(ctx, key, summary, s.cfg.CacheTTL)
	return summary, false, nil
}

// projectTree loads a group's project with its milestones and submissions.
func (s *DashboardService) projectTree(ctx context.Context, groupID string) (*models.Project, []models.MilestoneWithWork, error) {
	project, err := s.projects.FindByGroup(ctx, groupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, []models.MilestoneWithWork{}, nil
		}
		return nil, nil, internalError(err, "failed to load project")
	}
	milestones, err := s.milestones.ListByProject(ctx, nil, project.ID)
	if err != nil {
		return nil, nil, internalError(err, "failed to list milestones")
	}
	withWork, err := attachSubmissions(ctx, s.submissions, milestones)
	if err != nil {
		return nil, nil, err
	}
	return project, withWork, nil
}
