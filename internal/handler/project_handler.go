package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	"github.com/noah-isme/capstone-hub-api/pkg/response"
)

type projectService interface {
	Create(ctx context.Context, actor models.Identity, req models.CreateProjectRequest) (*models.Project, error)
	MyProject(ctx context.Context, actor models.Identity) (*models.ProjectDetail, error)
	List(ctx context.Context, actor models.Identity) ([]models.Project, error)
	Get(ctx context.Context, actor models.Identity, projectID string) (*models.ProjectDetail, error)
	Update(ctx context.Context, actor models.Identity, projectID string, req models.UpdateProjectRequest) (*models.Project, error)
	Delete(ctx context.Context, actor models.Identity, projectID string) error
}

type reportService interface {
	GradeReport(ctx context.Context, actor models.Identity, projectID string, format models.ReportFormat) (*models.ReportLink, error)
}

// ProjectHandler exposes project endpoints and grade report export.
type ProjectHandler struct {
	service projectService
	reports reportService
}

// NewProjectHandler constructs the handler.
func NewProjectHandler(svc projectService, reports reportService) *ProjectHandler {
	return &ProjectHandler{service: svc, reports: reports}
}

// Create godoc
// @Summary Register the group's project
// @Tags Projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateProjectRequest true "Project payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /projects [post]
func (h *ProjectHandler) Create(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	var req models.CreateProjectRequest
	if !bindJSON(c, &req, "invalid project payload") {
		return
	}
	project, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, project, "Project created successfully")
}

// MyProject godoc
// @Summary The caller's group project
// @Tags Projects
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /projects/my-project [get]
func (h *ProjectHandler) MyProject(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	project, err := h.service.MyProject(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, project)
}

// List godoc
// @Summary List projects visible to the caller
// @Tags Projects
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /projects [get]
func (h *ProjectHandler) List(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	projects, err := h.service.List(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, projects)
}

// Get godoc
// @Summary Project detail with milestones
// @Tags Projects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /projects/{id} [get]
func (h *ProjectHandler) Get(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	project, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, project)
}

// Update godoc
// @Summary Update a project
// @Tags Projects
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param payload body models.UpdateProjectRequest true "Project changes"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /projects/{id} [patch]
func (h *ProjectHandler) Update(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	var req models.UpdateProjectRequest
	if !bindJSON(c, &req, "invalid project payload") {
		return
	}
	project, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, project, "Project updated successfully")
}

// Delete godoc
// @Summary Delete a project
// @Tags Projects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /projects/{id} [delete]
func (h *ProjectHandler) Delete(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, nil, "Project deleted successfully")
}

// Report godoc
// @Summary Generate a grade report
// @Description Renders milestones and grades as CSV or PDF and returns a signed download link.
// @Tags Projects
// @Produce json
// @Security BearerAuth
// @Param id path string true "Project ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /projects/{id}/report [get]
func (h *ProjectHandler) Report(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	format := models.ReportFormat(strings.ToLower(c.DefaultQuery("format", string(models.ReportFormatCSV))))
	link, err := h.reports.GradeReport(c.Request.Context(), actor, c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, link, "Report generated")
}
