package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	appErrors "github.com/noah-isme/capstone-hub-api/pkg/errors"
)

type fakeProjectService struct {
	updated models.UpdateProjectRequest
}

func (f *fakeProjectService) Create(_ context.Context, _ models.Identity, req models.CreateProjectRequest) (*models.Project, error) {
	return &models.Project{ID: "p1", Title: req.Title}, nil
}

func (f *fakeProjectService) MyProject(context.Context, models.Identity) (*models.ProjectDetail, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "Project not found")
}

func (f *fakeProjectService) List(context.Context, models.Identity) ([]models.Project, error) {
	return []models.Project{{ID: "p1"}}, nil
}

func (f *fakeProjectService) Get(_ context.Context, _ models.Identity, id string) (*models.ProjectDetail, error) {
	return &models.ProjectDetail{Project: models.Project{ID: id}, Milestones: []models.MilestoneWithWork{}}, nil
}

func (f *fakeProjectService) Update(_ context.Context, actor models.Identity, id string, req models.UpdateProjectRequest) (*models.Project, error) {
	if actor.Role == models.RoleSupervisor {
		return nil, appErrors.ErrForbidden
	}
	f.updated = req
	return &models.Project{ID: id}, nil
}

func (f *fakeProjectService) Delete(context.Context, models.Identity, string) error { return nil }

type fakeReportService struct {
	format models.ReportFormat
}

func (f *fakeReportService) GradeReport(_ context.Context, _ models.Identity, projectID string, format models.ReportFormat) (*models.ReportLink, error) {
	if format != models.ReportFormatCSV && format != models.ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrBadRequest, "Unsupported report format")
	}
	f.format = format
	return &models.ReportLink{URL: "/api/v1/exports/tok", Format: string(format), ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func TestProjectHandlerGetAndMyProject(t *testing.T) {
	h := NewProjectHandler(&fakeProjectService{}, &fakeReportService{})

	c, rec := newTestContext(http.MethodGet, "/projects/p9", "", adminActor, gin.Param{Key: "id", Value: "p9"})
	h.Get(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), `"id":"p9"`)

	c, rec = newTestContext(http.MethodGet, "/projects/my-project", "", studentActor)
	h.MyProject(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProjectHandlerUpdateForbiddenForSupervisor(t *testing.T) {
	svc := &fakeProjectService{}
	h := NewProjectHandler(svc, &fakeReportService{})

	c, rec := newTestContext(http.MethodPatch, "/projects/p1", `{"title":"New"}`, supervisorActor, gin.Param{Key: "id", Value: "p1"})
	h.Update(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	c, rec = newTestContext(http.MethodPatch, "/projects/p1", `{"title":"New"}`, studentActor, gin.Param{Key: "id", Value: "p1"})
	h.Update(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.updated.Title)
	assert.Equal(t, "New", *svc.updated.Title)
}

func TestProjectHandlerReportFormat(t *testing.T) {
	reports := &fakeReportService{}
	h := NewProjectHandler(&fakeProjectService{}, reports)

	c, rec := newTestContext(http.MethodGet, "/projects/p1/report", "", supervisorActor, gin.Param{Key: "id", Value: "p1"})
	h.Report(c)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, models.ReportFormatCSV, reports.format)

	c, rec = newTestContext(http.MethodGet, "/projects/p1/report?format=PDF", "", supervisorActor, gin.Param{Key: "id", Value: "p1"})
	h.Report(c)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, models.ReportFormatPDF, reports.format)

	c, rec = newTestContext(http.MethodGet, "/projects/p1/report?format=xlsx", "", supervisorActor, gin.Param{Key: "id", Value: "p1"})
	h.Report(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
