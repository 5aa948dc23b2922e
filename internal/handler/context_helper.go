package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/capstone-hub-api/internal/middleware"
	"github.com/noah-isme/capstone-hub-api/internal/models"
	appErrors "github.com/noah-isme/capstone-hub-api/pkg/errors"
	"github.com/noah-isme/capstone-hub-api/pkg/response"
)

// currentIdentity returns the caller or writes 401 when the gate did not run.
func currentIdentity(c *gin.Context) (models.Identity, bool) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Identity{}, false
	}
	return identity, true
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}

func pagingFromQuery(c *gin.Context) models.Paging {
	var paging models.Paging
	paging.Page, _ = strconv.Atoi(c.Query("page"))
	paging.Limit, _ = strconv.Atoi(c.Query("limit"))
	return paging
}
