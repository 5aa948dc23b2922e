package handler

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/capstone-hub-api/pkg/response"
)

type reportDownloader interface {
	Download(token string) (*os.File, string, string, error)
}

// ExportHandler serves generated reports behind signed links.
type ExportHandler struct {
	service reportDownloader
}

// NewExportHandler constructs the handler.
func NewExportHandler(svc reportDownloader) *ExportHandler {
	return &ExportHandler{service: svc}
}

// Download godoc
// @Summary Download a generated report
// @Tags Projects
// @Produce octet-stream
// @Param token path string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	file, name, contentType, err := h.service.Download(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), file)
}
