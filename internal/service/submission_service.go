package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	appErrors "github.com/noah-isme/capstone-hub-api/pkg/errors"
	"github.com/noah-isme/capstone-hub-api/pkg/sanitize"
)

const (
	// DefaultMaxUploadBytes bounds a single uploaded file.
	DefaultMaxUploadBytes int64 = 1 << 20
	// MaxFilesPerSlot bounds the parts accepted per multipart field.
	MaxFilesPerSlot = 3
)

var allowedUploadTypes = map[models.UploadSlot][]string{
	models.UploadSlotFiles:  {"application/pdf"},
	models.UploadSlotImages: {"image/jpeg", "image/png"},
}

type submissionRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, submission *models.Submission) error
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Submission, error)
	FindByKey(ctx context.Context, key string) (*models.Submission, error)
	ListByMilestones(ctx context.Context, milestoneIDs []string) ([]models.Submission, error)
	UpdateReview(ctx context.Context, exec sqlx.ExtContext, submission *models.Submission) error
}

type milestoneStatusRepository interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Milestone, error)
	LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Milestone, error)
	SetStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.MilestoneStatus) error
}

type blobStore interface {
	Put(key string, data []byte) (string, error)
	Open(key string) (*os.File, error)
	Delete(key string) error
}

// SubmissionServiceParams wires the submission workflow dependencies.
type SubmissionServiceParams struct {
	Submissions    submissionRepository
	Milestones     milestoneStatusRepository
	Projects       projectScopeRepository
	Members        membershipFinder
	Blobs          blobStore
	Tx             txProvider
	Notifier       notifier
	Validator      *validator.Validate
	Logger         *zap.Logger
	MaxUploadBytes int64
}

// SubmissionService accepts milestone deliverables and records their review.
type SubmissionService struct {
	submissions submissionRepository
	milestones  milestoneStatusRepository
	projects    projectScopeRepository
	members     membershipFinder
	blobs       blobStore
	tx          txProvider
	notifier    notifier
	validator   *validator.Validate
	logger      *zap.Logger
	maxBytes    int64
}

// NewSubmissionService constructs a SubmissionService.
func NewSubmissionService(params SubmissionServiceParams) *SubmissionService {
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Notifier == nil {
		params.Notifier = noopNotifier{}
	}
	if params.MaxUploadBytes <= 0 {
		params.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &SubmissionService{
		submissions: params.Submissions,
		milestones:  params.Milestones,
		projects:    params.Projects,
		members:     params.Members,
		blobs:       params.Blobs,
		tx:          params.Tx,
		notifier:    params.Notifier,
		validator:   params.Validator,
		logger:      params.Logger,
		maxBytes:    params.MaxUploadBytes,
	}
}

type acceptedUpload struct {
	upload models.Upload
	mime   *mimetype.MIME
}

// validateUploads sniffs every part and rejects the whole batch on the first
// violation, before anything is stored.
func (s *SubmissionService) validateUploads(uploads []models.Upload) ([]acceptedUpload, error) {
	if len(uploads) == 0 {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "No files uploaded")
	}
	perSlot := map[models.UploadSlot]int{}
	accepted := make([]acceptedUpload, 0, len(uploads))
	for _, upload := range uploads {
		allowed, ok := allowedUploadTypes[upload.Slot]
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrBadRequest, fmt.Sprintf("Unexpected upload field %q", upload.Slot))
		}
		perSlot[upload.Slot]++
		if perSlot[upload.Slot] > MaxFilesPerSlot {
			return nil, appErrors.Clone(appErrors.ErrBadRequest, fmt.Sprintf("At most %d files are allowed in %q", MaxFilesPerSlot, upload.Slot))
		}
		if len(upload.Data) == 0 {
			return nil, appErrors.Clone(appErrors.ErrBadRequest, fmt.Sprintf("File %q is empty", upload.Filename))
		}
		if int64(len(upload.Data)) > s.maxBytes {
			return nil, appErrors.Clone(appErrors.ErrBadRequest, fmt.Sprintf("File %q exceeds the %d byte limit", upload.Filename, s.maxBytes))
		}
		detected := mimetype.Detect(upload.Data)
		if !mimeAllowed(detected, allowed) {
			return nil, appErrors.Clone(appErrors.ErrBadRequest, fmt.Sprintf("File %q has type %s, expected %s", upload.Filename, detected.String(), strings.Join(allowed, " or ")))
		}
		accepted = append(accepted, acceptedUpload{upload: upload, mime: detected})
	}
	return accepted, nil
}

// Submit stores the uploaded files and records one submission per file.
func (s *SubmissionService) Submit(ctx context.Context, actor models.Identity, milestoneID string, uploads []models.Upload) ([]models.Submission, error) {
	accepted, err := s.validateUploads(uploads)
	if err != nil {
		return nil, err
	}
	milestone, err := s.milestones.FindByID(ctx, nil, milestoneID)
	if err != nil {
		return nil, lookupError(err, "Milestone not found", "failed to load milestone")
	}
	scope, err := s.projects.Scope(ctx, nil, milestone.ProjectID)
	if err != nil {
		return nil, lookupError(err, "Project not found", "failed to load project")
	}
	if err := requireMember(ctx, s.members, nil, actor, scope.GroupID); err != nil {
		return nil, err
	}

	written := make([]string, 0, len(accepted))
	cleanup := func() {
		for _, key := range written {
			if err := s.blobs.Delete(key); err != nil {
				s.logger.Warn("failed to remove orphaned upload", zap.String("key", key), zap.Error(err))
			}
		}
	}

	submissions := make([]models.Submission, 0, len(accepted))
	for _, item := range accepted {
		key := fmt.Sprintf("submissions/%s/%s%s", milestone.ID, uuid.NewString(), item.mime.Extension())
		url, err := s.blobs.Put(key, item.upload.Data)
		if err != nil {
			cleanup()
			return nil, internalError(err, "failed to store upload")
		}
		written = append(written, key)
		submissions = append(submissions, models.Submission{
			MilestoneID: milestone.ID,
			SubmittedBy: actor.ID,
			FileKey:     key,
			FileURL:     url,
			ContentType: item.mime.String(),
			SizeBytes:   int64(len(item.upload.Data)),
		})
	}

	err = inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		locked, err := s.milestones.LockByID(ctx, tx, milestone.ID)
		if err != nil {
			return lookupError(err, "Milestone not found", "failed to load milestone")
		}
		for i := range submissions {
			if err := s.submissions.Create(ctx, tx, &submissions[i]); err != nil {
				return internalError(err, "failed to record submission")
			}
		}
		if next := locked.Status.Advance(models.MilestoneSubmitted); next != locked.Status {
			if err := s.milestones.SetStatus(ctx, tx, locked.ID, next); err != nil {
				return internalError(err, "failed to update milestone status")
			}
		}
		return nil
	})
	if err != nil {
		cleanup()
		return nil, err
	}

	s.logger.Info("submission received",
		zap.String("milestone_id", milestone.ID),
		zap.String("student_id", actor.ID),
		zap.Int("files", len(submissions)),
	)
	if scope.SupervisorID != nil {
		s.notifier.Notify(ctx, *scope.SupervisorID, fmt.Sprintf("Group %q submitted work for milestone %q.", scope.GroupName, milestone.Title))
	}
	return submissions, nil
}

// List returns the submissions of a milestone.
func (s *SubmissionService) List(ctx context.Context, actor models.Identity, milestoneID string) ([]models.Submission, error) {
	milestone, err := s.milestones.FindByID(ctx, nil, milestoneID)
	if err != nil {
		return nil, lookupError(err, "Milestone not found", "failed to load milestone")
	}
	scope, err := s.projects.Scope(ctx, nil, milestone.ProjectID)
	if err != nil {
		return nil, lookupError(err, "Project not found", "failed to load project")
	}
	if err := canReadProject(ctx, s.members, nil, actor, scope); err != nil {
		return nil, err
	}
	submissions, err := s.submissions.ListByMilestones(ctx, []string{milestone.ID})
	if err != nil {
		return nil, internalError(err, "failed to list submissions")
	}
	if submissions == nil {
		submissions = []models.Submission{}
	}
	return submissions, nil
}

// Grade records review notes and a grade. Non-empty notes move the milestone
// to REVIEWED and any grade, zero included, moves it to COMPLETED.
func (s *SubmissionService) Grade(ctx context.Context, actor models.Identity, submissionID string, req models.GradeSubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid grading payload")
	}

	var (
		submission *models.Submission
		notices    []pendingNotice
	)
	err := inTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		locked, err := s.submissions.LockByID(ctx, tx, submissionID)
		if err != nil {
			return lookupError(err, "Submission not found", "failed to load submission")
		}
		submission = locked
		milestone, err := s.milestones.LockByID(ctx, tx, submission.MilestoneID)
		if err != nil {
			return lookupError(err, "Milestone not found", "failed to load milestone")
		}
		scope, err := s.projects.Scope(ctx, tx, milestone.ProjectID)
		if err != nil {
			return lookupError(err, "Project not found", "failed to load project")
		}
		if err := canManageProject(actor, scope); err != nil {
			return err
		}

		next := milestone.Status
		if req.Notes != nil {
			submission.Notes = sanitize.OptionalText(req.Notes)
			if *submission.Notes != "" {
				next = next.Advance(models.MilestoneReviewed)
			}
		}
		if req.Grade != nil {
			grade := *req.Grade
			submission.Grade = &grade
			next = next.Advance(models.MilestoneCompleted)
		}

		if err := s.submissions.UpdateReview(ctx, tx, submission); err != nil {
			return internalError(err, "failed to save review")
		}
		if next != milestone.Status {
			if err := s.milestones.SetStatus(ctx, tx, milestone.ID, next); err != nil {
				return internalError(err, "failed to update milestone status")
			}
		}
		notices = append(notices, pendingNotice{
			userID:  submission.SubmittedBy,
			message: fmt.Sprintf("Your submission for milestone %q has been reviewed.", milestone.Title),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	flushNotices(ctx, s.notifier, notices)
	return submission, nil
}

// OpenFile returns a stored upload after checking the caller may read its project.
func (s *SubmissionService) OpenFile(ctx context.Context, actor models.Identity, key string) (*os.File, *models.Submission, error) {
	key = strings.TrimPrefix(key, "/")
	submission, err := s.submissions.FindByKey(ctx, key)
	if err != nil {
		return nil, nil, lookupError(err, "File not found", "failed to load file")
	}
	milestone, err := s.milestones.FindByID(ctx, nil, submission.MilestoneID)
	if err != nil {
		return nil, nil, lookupError(err, "File not found", "failed to load milestone")
	}
	scope, err := s.projects.Scope(ctx, nil, milestone.ProjectID)
	if err != nil {
		return nil, nil, lookupError(err, "File not found", "failed to load project")
	}
	if err := canReadProject(ctx, s.members, nil, actor, scope); err != nil {
		return nil, nil, err
	}
	file, err := s.blobs.Open(key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "File not found")
		}
		return nil, nil, internalError(err, "failed to open file")
	}
	return file, submission, nil
}

func mimeAllowed(detected *mimetype.MIME, allowed []string) bool {
	for _, candidate := range allowed {
		if detected.Is(candidate) {
			return true
		}
	}
	return false
}
