package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	"github.com/noah-isme/capstone-hub-api/pkg/database"
	appErrors "github.com/noah-isme/capstone-hub-api/pkg/errors"
	"github.com/noah-isme/capstone-hub-api/pkg/sanitize"
)

type projectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	FindByID(ctx context.Context, id string) (*models.Project, error)
	FindByGroup(ctx context.Context, groupID string) (*models.Project, error)
	List(ctx context.Context, supervisorID *string) ([]models.Project, error)
	Update(ctx context.Context, project *models.Project) error
	Delete(ctx context.Context, id string) error
	Scope(ctx context.Context, exec sqlx.ExtContext, projectID string) (*models.ProjectScope, error)
}

type projectGroupRepository interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Group, error)
	FindMembership(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.GroupMember, error)
}

// ProjectService manages the single project each group works on.
type ProjectService struct {
	projects    projectRepository
	groups      projectGroupRepository
	milestones  reportMilestoneRepository
	submissions submissionLister
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewProjectService constructs a ProjectService.
func NewProjectService(projects projectRepository, groups projectGroupRepository, milestones reportMilestoneRepository, submissions submissionLister, validate *validator.Validate, logger *zap.Logger) *ProjectService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ProjectService{projects: projects, groups: groups, milestones: milestones, submissions: submissions, validator: validate, logger: logger}
}

// Create registers the project of the actor's group.
func (s *ProjectService) Create(ctx context.Context, actor models.Identity, req models.CreateProjectRequest) (*models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid project payload")
	}
	if err := checkProjectDates(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	group, err := s.groups.FindByID(ctx, nil, req.GroupID)
	if err != nil {
		return nil, lookupError(err, "Group not found", "failed to load group")
	}
	membership, err := s.groups.FindMembership(ctx, nil, actor.ID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, internalError(err, "failed to load membership")
	}
	if membership == nil || membership.GroupID != group.ID || membership.Role != models.MemberRoleLeader {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Only group leader can create projects")
	}

	project := &models.Project{
		GroupID:      group.ID,
		Title:        sanitize.Text(req.Title),
		Description:  sanitize.Text(req.Description),
		Technologies: sanitizeList(req.Technologies),
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "A project for this group already exists")
		}
		return nil, internalError(err, "failed to create project")
	}
	s.logger.Info("project created", zap.String("project_id", project.ID), zap.String("group_id", group.ID))
	return project, nil
}

// MyProject returns the project of the actor's group.
func (s *ProjectService) MyProject(ctx context.Context, actor models.Identity) (*models.ProjectDetail, error) {
	membership, err := s.groups.FindMembership(ctx, nil, actor.ID)
	if err != nil {
		return nil, lookupError(err, "Project not found for your group", "failed to load membership")
	}
	project, err := s.projects.FindByGroup(ctx, membership.GroupID)
	if err != nil {
		return nil, lookupError(err, "Project not found for your group", "failed to load project")
	}
	scope, err := s.projects.Scope(ctx, nil, project.ID)
	if err != nil {
		return nil, lookupError(err, "Project not found for your group", "failed to load project")
	}
	return s.detail(ctx, project, scope)
}

// List returns every project for admins and the supervised ones for supervisors.
func (s *ProjectService) List(ctx context.Context, actor models.Identity) ([]models.Project, error) {
	var filter *string
	if !actor.Is(models.RoleAdmin) {
		if !actor.Is(models.RoleSupervisor) {
			return nil, errAccessDenied
		}
		filter = &actor.ID
	}
	projects, err := s.projects.List(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list projects")
	}
	if projects == nil {
		projects = []models.Project{}
	}
	return projects, nil
}

// Get returns a project with its milestones and submissions.
func (s *ProjectService) Get(ctx context.Context, actor models.Identity, projectID string) (*models.ProjectDetail, error) {
	scope, err := s.projects.Scope(ctx, nil, projectID)
	if err != nil {
		return nil, lookupError(err, "Project not found", "failed to load project")
	}
	if err := canReadProject(ctx, s.groups, nil, actor, scope); err != nil {
		return nil, err
	}
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, lookupError(err, "Project not found", "failed to load project")
	}
	return s.detail(ctx, project, scope)
}

// Update edits a project. Supervisors may not, and students must lead the group.
func (s *ProjectService) Update(ctx context.Context, actor models.Identity, projectID string, req models.UpdateProjectRequest) (*models.Project, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid project payload")
	}
	if actor.Is(models.RoleSupervisor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Supervisors cannot update projects")
	}
	scope, err := s.projects.Scope(ctx, nil, projectID)
	if err != nil {
		return nil, lookupError(err, "Project not found", "failed to load project")
	}
	if !actor.Is(models.RoleAdmin) && scope.LeaderID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "Only the group leader can update the project")
	}
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, lookupError(err, "Project not found", "failed to load project")
	}

	if req.Title != nil {
		project.Title = sanitize.Text(*req.Title)
	}
	if req.Description != nil {
		project.Description = sanitize.Text(*req.Description)
	}
	if req.Technologies != nil {
		project.Technologies = sanitizeList(req.Technologies)
	}
	if req.StartDate != nil {
		project.StartDate = req.StartDate
	}
	if req.EndDate != nil {
		project.EndDate = req.EndDate
	}
	if err := checkProjectDates(project.StartDate, project.EndDate); err != nil {
		return nil, err
	}
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, internalError(err, "failed to update project")
	}
	return project, nil
}

// Delete removes a project and everything scheduled under it.
func (s *ProjectService) Delete(ctx context.Context, actor models.Identity, projectID string) error {
	scope, err := s.projects.Scope(ctx, nil, projectID)
	if err != nil {
		return lookupError(err, "Project not found", "failed to load project")
	}
	if !actor.Is(models.RoleAdmin) && scope.LeaderID != actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "Only the group leader can delete the project")
	}
	if err := s.projects.Delete(ctx, projectID); err != nil {
		return lookupError(err, "Project not found", "failed to delete project")
	}
	s.logger.Info("project deleted", zap.String("project_id", projectID), zap.String("actor_id", actor.ID))
	return nil
}

func (s *ProjectService) detail(ctx context.Context, project *models.Project, scope *models.ProjectScope) (*models.ProjectDetail, error) {
	milestones, err := s.milestones.ListByProject(ctx, nil, project.ID)
	if err != nil {
		return nil, internalError(err, "failed to load milestones")
	}
	work, err := attachSubmissions(ctx, s.submissions, milestones)
	if err != nil {
		return nil, err
	}
	return &models.ProjectDetail{Project: *project, GroupName: scope.GroupName, Milestones: work}, nil
}

func checkProjectDates(start, end *time.Time) error {
	if start != nil && end != nil && !end.After(*start) {
		return appErrors.Clone(appErrors.ErrBadRequest, "End date must be after start date")
	}
	return nil
}

func sanitizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if cleaned := sanitize.Text(v); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}
