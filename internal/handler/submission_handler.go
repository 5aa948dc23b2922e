package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	appErrors "github.com/noah-isme/capstone-hub-api/pkg/errors"
	"github.com/noah-isme/capstone-hub-api/pkg/response"
)

// multipartOverhead leaves room for boundaries and part headers.
const multipartOverhead = 1 << 20

type submissionService interface {
	Submit(ctx context.Context, actor models.Identity, milestoneID string, uploads []models.Upload) ([]models.Submission, error)
	List(ctx context.Context, actor models.Identity, milestoneID string) ([]models.Submission, error)
	Grade(ctx context.Context, actor models.Identity, submissionID string, req models.GradeSubmissionRequest) (*models.Submission, error)
	OpenFile(ctx context.Context, actor models.Identity, key string) (*os.File, *models.Submission, error)
}

// SubmissionHandler exposes milestone uploads, grading and file retrieval.
type SubmissionHandler struct {
	service        submissionService
	maxUploadBytes int64
	maxFiles       int
}

// NewSubmissionHandler constructs the handler. maxUploadBytes bounds a single
// file; maxFiles bounds the number of parts across all upload fields.
func NewSubmissionHandler(svc submissionService, maxUploadBytes int64, maxFiles int) *SubmissionHandler {
	return &SubmissionHandler{service: svc, maxUploadBytes: maxUploadBytes, maxFiles: maxFiles}
}

// Submit godoc
// @Summary Upload work for a milestone
// @Description Accepts up to three PDFs in "files" and up to three JPEG/PNG images in "images".
// @Tags Submissions
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param milestoneId path string true "Milestone ID"
// @Param files formData file false "PDF documents"
// @Param images formData file false "Images"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /milestones/{milestoneId}/submissions [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	limit := h.maxUploadBytes*int64(h.maxFiles) + multipartOverhead
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "Upload too large"))
			return
		}
		response.Error(c, appErrors.Clone(appErrors.ErrBadRequest, "Invalid multipart payload"))
		return
	}
	defer func() { _ = form.RemoveAll() }()

	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	uploads := make([]models.Upload, 0)
	for _, field := range fields {
		for _, header := range form.File[field] {
			upload, err := h.readPart(models.UploadSlot(field), header)
			if err != nil {
				response.Error(c, err)
				return
			}
			uploads = append(uploads, upload)
		}
	}

	submissions, err := h.service.Submit(c.Request.Context(), actor, c.Param("milestoneId"), uploads)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submissions, "Files uploaded successfully")
}

// readPart buffers at most one byte past the per-file limit so the service
// can reject oversize files without reading them whole.
func (h *SubmissionHandler) readPart(slot models.UploadSlot, header *multipart.FileHeader) (models.Upload, error) {
	file, err := header.Open()
	if err != nil {
		return models.Upload{}, appErrors.Clone(appErrors.ErrBadRequest, fmt.Sprintf("Unreadable upload %q", header.Filename))
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, h.maxUploadBytes+1))
	if err != nil {
		return models.Upload{}, appErrors.Clone(appErrors.ErrBadRequest, fmt.Sprintf("Unreadable upload %q", header.Filename))
	}
	return models.Upload{Slot: slot, Filename: header.Filename, Data: data}, nil
}

// List godoc
// @Summary Submissions for a milestone
// @Tags Submissions
// @Produce json
// @Security BearerAuth
// @Param milestoneId path string true "Milestone ID"
// @Success 200 {object} response.Envelope
// @Router /milestones/{milestoneId}/submissions [get]
func (h *SubmissionHandler) List(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	submissions, err := h.service.List(c.Request.Context(), actor, c.Param("milestoneId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, submissions)
}

// Grade godoc
// @Summary Review a submission
// @Description Sets notes and/or a grade. A grade completes the milestone; notes alone mark it reviewed.
// @Tags Submissions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Submission ID"
// @Param payload body models.GradeSubmissionRequest true "Review payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /submissions/{id} [patch]
func (h *SubmissionHandler) Grade(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	var req models.GradeSubmissionRequest
	if !bindJSON(c, &req, "invalid review payload") {
		return
	}
	submission, err := h.service.Grade(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, submission, "Submission reviewed successfully")
}

// File godoc
// @Summary Download a submitted file
// @Tags Submissions
// @Produce octet-stream
// @Security BearerAuth
// @Param key path string true "Stored file key"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{key} [get]
func (h *SubmissionHandler) File(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	file, submission, err := h.service.OpenFile(c.Request.Context(), actor, c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()
	serveFile(c, file, path.Base(submission.FileKey), submission.ContentType, submission.CreatedAt)
}

func serveFile(c *gin.Context, file *os.File, name, contentType string, modTime time.Time) {
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
	c.Header("Cache-Control", "private, max-age=0")
	http.ServeContent(c.Writer, c.Request, name, modTime, file)
}
