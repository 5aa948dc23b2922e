package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	appErrors "github.com/noah-isme/capstone-hub-api/pkg/errors"
	"github.com/noah-isme/capstone-hub-api/pkg/export"
	"github.com/noah-isme/capstone-hub-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type reportRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

type reportProjectRepository interface {
	FindByID(ctx context.Context, id string) (*models.Project, error)
	Scope(ctx context.Context, exec sqlx.ExtContext, projectID string) (*models.ProjectScope, error)
}

type reportMilestoneRepository interface {
	ListByProject(ctx context.Context, exec sqlx.ExtContext, projectID string) ([]models.Milestone, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportService renders project grade reports and hands out signed download links.
type ExportService struct {
	projects    reportProjectRepository
	milestones  reportMilestoneRepository
	submissions submissionLister
	storage     fileStorage
	renderers   map[models.ReportFormat]reportRenderer
	signer      *storage.SignedURLSigner
	logger      *zap.Logger
	cfg         ExportConfig
	now         func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(projects reportProjectRepository, milestones reportMilestoneRepository, submissions submissionLister, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		projects:    projects,
		milestones:  milestones,
		submissions: submissions,
		storage:     store,
		renderers: map[models.ReportFormat]reportRenderer{
			models.ReportFormatCSV: export.NewCSVExporter(),
			models.ReportFormatPDF: export.NewPDFExporter(),
		},
		signer: signer,
		logger: logger,
		cfg:    cfg,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GradeReport renders the project's milestones and grades and stores the file.
func (s *ExportService) GradeReport(ctx context.Context, actor models.Identity, projectID string, format models.ReportFormat) (*models.ReportLink, error) {
	if format == "" {
		format = models.ReportFormatCSV
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, fmt.Sprintf("Unsupported report format %q", format))
	}
	scope, err := s.projects.Scope(ctx, nil, projectID)
	if err != nil {
		return nil, lookupError(err, "Project not found", "failed to load project")
	}
	if err := canManageProject(actor, scope); err != nil {
		return nil, err
	}
	project, err := s.projects.FindByID(ctx, projectID)
	if err != nil {
		return nil, lookupError(err, "Project not found", "failed to load project")
	}

	dataset, err := s.buildGradeDataset(ctx, project, scope)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, internalError(err, "failed to render report")
	}

	relPath, err := s.storage.Save(s.buildFilename(project.ID, format), payload)
	if err != nil {
		return nil, internalError(err, "failed to store report")
	}
	token, expiresAt, err := s.signer.Generate(actor.ID, relPath)
	if err != nil {
		return nil, internalError(err, "failed to sign report link")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	s.logger.Info("grade report generated",
		zap.String("project_id", project.ID),
		zap.String("format", string(format)),
		zap.String("path", relPath),
	)
	return &models.ReportLink{
		URL:       fmt.Sprintf("%s/exports/%s", prefix, token),
		Format:    string(format),
		ExpiresAt: expiresAt,
	}, nil
}

// Download resolves a signed token to the stored report.
func (s *ExportService) Download(token string) (*os.File, string, string, error) {
	link, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, "", "", appErrors.Clone(appErrors.ErrForbidden, "Download link expired")
		}
		return nil, "", "", appErrors.Clone(appErrors.ErrForbidden, "Invalid download link")
	}
	file, err := s.storage.Open(link.Key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, "", "", appErrors.Clone(appErrors.ErrNotFound, "Report no longer available")
		}
		return nil, "", "", internalError(err, "failed to open report")
	}
	contentType := "application/octet-stream"
	if renderer, ok := s.renderers[models.ReportFormat(strings.TrimPrefix(path.Ext(link.Key), "."))]; ok {
		contentType = renderer.ContentType()
	}
	return file, path.Base(link.Key), contentType, nil
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(projectID string, format models.ReportFormat) string {
	timestamp := s.now().Format("20060102_150405")
	return fmt.Sprintf("grades_%s_%s.%s", sanitizeFilename(projectID), timestamp, format)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func (s *ExportService) buildGradeDataset(ctx context.Context, project *models.Project, scope *models.ProjectScope) (export.Dataset, error) {
	milestones, err := s.milestones.ListByProject(ctx, nil, project.ID)
	if err != nil {
		return export.Dataset{}, internalError(err, "failed to load milestones")
	}
	work, err := attachSubmissions(ctx, s.submissions, milestones)
	if err != nil {
		return export.Dataset{}, err
	}

	rows := make([][]string, 0, len(work))
	graded := 0
	for _, m := range work {
		grade, notes := latestReview(m.Submissions)
		if grade != "" {
			graded++
		}
		rows = append(rows, []string{
			strconv.Itoa(m.OrderIndex + 1),
			m.Title,
			m.Deadline.UTC().Format("2006-01-02"),
			string(m.Status),
			strconv.Itoa(len(m.Submissions)),
			grade,
			notes,
		})
	}
	return export.Dataset{
		Title: fmt.Sprintf("Grade report: %s", project.Title),
		Summary: []string{
			fmt.Sprintf("Group: %s", scope.GroupName),
			fmt.Sprintf("Milestones: %d, graded: %d", len(work), graded),
			fmt.Sprintf("Generated: %s", s.now().Format(time.RFC3339)),
		},
		Headers: []string{"#", "Milestone", "Deadline", "Status", "Submissions", "Grade", "Notes"},
		Rows:    rows,
	}, nil
}

// latestReview returns the most recent grade and notes among submissions.
func latestReview(submissions []models.Submission) (string, string) {
	var grade, notes string
	for _, sub := range submissions {
		if sub.Grade != nil {
			grade = strconv.Itoa(*sub.Grade)
		}
		if sub.Notes != nil && *sub.Notes != "" {
			notes = *sub.Notes
		}
	}
	return grade, notes
}
