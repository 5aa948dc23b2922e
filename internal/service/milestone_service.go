package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	appErrors "github.com/noah-isme/capstone-hub-api/pkg/errors"
	"github.com/noah-isme/capstone-hub-api/pkg/sanitize"
)

type milestoneRepository interface {
	ListByProject(ctx context.Context, exec sqlx.ExtContext, projectID string) ([]models.Milestone, error)
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Milestone, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Milestone, error)
	Create(ctx context.Context, exec sqlx.ExtContext, milestone *models.Milestone) error
	Update(ctx context.Context, exec sqlx.ExtContext, milestone *models.Milestone) error
	Delete(ctx context.Context, exec sqlx.ExtContext, milestone *models.Milestone) error
}

type submissionLister interface {
	ListByMilestones(ctx context.Context, milestoneIDs []string) ([]models.Submission, error)
}

// MilestoneService schedules milestones with strictly increasing deadlines.
type MilestoneService struct {
	projects    projectScopeRepository
	milestones  milestoneRepository
	submissions submissionLister
	members     membershipFinder
	tx          txProvider
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewMilestoneService constructs a MilestoneService.
func NewMilestoneService(projects projectScopeRepository, milestones milestoneRepository, submissions submissionLister, members membershipFinder, tx txProvider, validate *validator.Validate, logger *zap.Logger) *MilestoneService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &MilestoneService{
		projects:    projects,
		milestones:  milestones,
		submissions: submissions,
		members:     members,
		tx:          tx,
		validator:   validate,
		logger:      logger,
	}
}

// Create appends a milestone whose deadline follows every existing one.
func (s *MilestoneService) Create(ctx context.Context, actor models.Identity, projectID string, req models.CreateMilestoneRequest) (*models.Milestone, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid milestone payload")
	}

	var milestone *models.Milestone
	err := inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		scope, err := s.projects.LockScope(ctx, tx, projectID)
		if err != nil {
			return lookupError(err, "Project not found", "failed to load project")
		}
		if err := canManageProject(actor, scope); err != nil {
			return err
		}
		existing, err := s.milestones.ListByProject(ctx, tx, scope.ProjectID)
		if err != nil {
			return internalError(err, "failed to load milestones")
		}

		floor := scope.CreatedAt
		if n := len(existing); n > 0 {
			floor = existing[n-1].Deadline
		}
		deadline := req.Deadline.UTC()
		if !deadline.After(floor) {
			return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("Milestone deadline must be after %s", floor.UTC().Format(time.RFC3339)))
		}

		milestone = &models.Milestone{
			ProjectID:   scope.ProjectID,
			Title:       sanitize.Text(req.Title),
			Description: sanitize.Text(req.Description),
			Deadline:    deadline,
			Status:      models.MilestonePending,
			OrderIndex:  len(existing),
		}
		if err := s.milestones.Create(ctx, tx, milestone); err != nil {
			return internalError(err, "failed to create milestone")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("milestone created",
		zap.String("milestone_id", milestone.ID),
		zap.String("project_id", projectID),
		zap.Int("order_index", milestone.OrderIndex),
	)
	return milestone, nil
}

// Update edits a milestone, keeping its deadline between its neighbours and
// its status moving forward only.
func (s *MilestoneService) Update(ctx context.Context, actor models.Identity, projectID, milestoneID string, req models.UpdateMilestoneRequest) (*models.Milestone, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid milestone payload")
	}

	var milestone *models.Milestone
	err := inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		scope, err := s.lockOwned(ctx, tx, actor, projectID)
		if err != nil {
			return err
		}
		milestone, err = s.lockMilestone(ctx, tx, scope.ProjectID, milestoneID)
		if err != nil {
			return err
		}

		if req.Title != nil {
			milestone.Title = sanitize.Text(*req.Title)
		}
		if req.Description != nil {
			milestone.Description = sanitize.Text(*req.Description)
		}
		if req.Deadline != nil {
			siblings, err := s.milestones.ListByProject(ctx, tx, scope.ProjectID)
			if err != nil {
				return internalError(err, "failed to load milestones")
			}
			deadline := req.Deadline.UTC()
			if err := checkDeadlineWindow(siblings, milestone.OrderIndex, scope.CreatedAt, deadline); err != nil {
				return err
			}
			milestone.Deadline = deadline
		}
		if req.Status != nil {
			if req.Status.Before(milestone.Status) {
				return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("Milestone status cannot move back from %s to %s", milestone.Status, *req.Status))
			}
			milestone.Status = *req.Status
		}

		if err := s.milestones.Update(ctx, tx, milestone); err != nil {
			return internalError(err, "failed to update milestone")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return milestone, nil
}

// Delete removes a milestone and closes the gap in the order.
func (s *MilestoneService) Delete(ctx context.Context, actor models.Identity, projectID, milestoneID string) error {
	return inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		scope, err := s.lockOwned(ctx, tx, actor, projectID)
		if err != nil {
			return err
		}
		milestone, err := s.lockMilestone(ctx, tx, scope.ProjectID, milestoneID)
		if err != nil {
			return err
		}
		if err := s.milestones.Delete(ctx, tx, milestone); err != nil {
			return lookupError(err, "Milestone not found", "failed to delete milestone")
		}
		return nil
	})
}

// List returns the project's milestones in order with their submissions.
func (s *MilestoneService) List(ctx context.Context, actor models.Identity, projectID string) ([]models.MilestoneWithWork, error) {
	scope, err := s.readableScope(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	milestones, err := s.milestones.ListByProject(ctx, nil, scope.ProjectID)
	if err != nil {
		return nil, internalError(err, "failed to load milestones")
	}
	return s.withWork(ctx, milestones)
}

// Get returns a single milestone with its submissions.
func (s *MilestoneService) Get(ctx context.Context, actor models.Identity, projectID, milestoneID string) (*models.MilestoneWithWork, error) {
	scope, err := s.readableScope(ctx, actor, projectID)
	if err != nil {
		return nil, err
	}
	milestone, err := s.milestones.FindByID(ctx, nil, milestoneID)
	if err != nil {
		return nil, lookupError(err, "Milestone not found", "failed to load milestone")
	}
	if milestone.ProjectID != scope.ProjectID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Milestone not found")
	}
	items, err := s.withWork(ctx, []models.Milestone{*milestone})
	if err != nil {
		return nil, err
	}
	return &items[0], nil
}

func (s *MilestoneService) readableScope(ctx context.Context, actor models.Identity, projectID string) (*models.ProjectScope, error) {
	scope, err := s.projects.Scope(ctx, nil, projectID)
	if err != nil {
		return nil, lookupError(err, "Project not found", "failed to load project")
	}
	if err := canReadProject(ctx, s.members, nil, actor, scope); err != nil {
		return nil, err
	}
	return scope, nil
}

func (s *MilestoneService) lockOwned(ctx context.Context, tx *sqlx.Tx, actor models.Identity, projectID string) (*models.ProjectScope, error) {
	scope, err := s.projects.LockScope(ctx, tx, projectID)
	if err != nil {
		return nil, lookupError(err, "Project not found", "failed to load project")
	}
	if err := canManageProject(actor, scope); err != nil {
		return nil, err
	}
	return scope, nil
}

func (s *MilestoneService) lockMilestone(ctx context.Context, tx *sqlx.Tx, projectID, milestoneID string) (*models.Milestone, error) {
	milestone, err := s.milestones.LockByID(ctx, tx, milestoneID)
	if err != nil {
		return nil, lookupError(err, "Milestone not found", "failed to load milestone")
	}
	if milestone.ProjectID != projectID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "Milestone not found")
	}
	return milestone, nil
}

func (s *MilestoneService) withWork(ctx context.Context, milestones []models.Milestone) ([]models.MilestoneWithWork, error) {
	return attachSubmissions(ctx, s.submissions, milestones)
}

// attachSubmissions pairs each milestone with its submissions in one query.
func attachSubmissions(ctx context.Context, lister submissionLister, milestones []models.Milestone) ([]models.MilestoneWithWork, error) {
	ids := make([]string, len(milestones))
	for i, m := range milestones {
		ids[i] = m.ID
	}
	submissions, err := lister.ListByMilestones(ctx, ids)
	if err != nil {
		return nil, internalError(err, "failed to load submissions")
	}
	byMilestone := make(map[string][]models.Submission, len(milestones))
	for _, sub := range submissions {
		byMilestone[sub.MilestoneID] = append(byMilestone[sub.MilestoneID], sub)
	}
	out := make([]models.MilestoneWithWork, len(milestones))
	for i, m := range milestones {
		work := byMilestone[m.ID]
		if work == nil {
			work = []models.Submission{}
		}
		out[i] = models.MilestoneWithWork{Milestone: m, Submissions: work}
	}
	return out, nil
}

// checkDeadlineWindow requires deadline to sit strictly between the milestone's
// neighbours by order index. The first milestone is bounded below by floor.
func checkDeadlineWindow(siblings []models.Milestone, orderIndex int, floor, deadline time.Time) error {
	lower := floor
	var upper *time.Time
	for i := range siblings {
		switch siblings[i].OrderIndex {
		case orderIndex - 1:
			lower = siblings[i].Deadline
		case orderIndex + 1:
			upper = &siblings[i].Deadline
		}
	}
	if !deadline.After(lower) {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("Milestone deadline must be after %s", lower.UTC().Format(time.RFC3339)))
	}
	if upper != nil && !deadline.Before(*upper) {
		return appErrors.Clone(appErrors.ErrForbidden, fmt.Sprintf("Milestone deadline must be before %s", upper.UTC().Format(time.RFC3339)))
	}
	return nil
}
