package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/capstone-hub-api/internal/middleware"
	"github.com/noah-isme/capstone-hub-api/internal/models"
)

type fakeDashboardService struct {
	hit   bool
	err   error
	actor models.Identity
}

func (f *fakeDashboardService) Admin(_ context.Context, actor models.Identity) (*models.AdminDashboard, bool, error) {
	f.actor = actor
	return &models.AdminDashboard{Students: 4, Supervisors: 2}, f.hit, f.err
}

func (f *fakeDashboardService) Supervisor(_ context.Context, actor models.Identity) (*models.SupervisorDashboard, bool, error) {
	f.actor = actor
	return &models.SupervisorDashboard{}, f.hit, f.err
}

func (f *fakeDashboardService) Student(_ context.Context, actor models.Identity) (*models.StudentDashboard, bool, error) {
	f.actor = actor
	return &models.StudentDashboard{}, f.hit, f.err
}

func TestDashboardHandlerSetsCacheHeader(t *testing.T) {
	svc := &fakeDashboardService{hit: true}
	h := NewDashboardHandler(svc)

	c, rec := newTestContext(http.MethodGet, "/admin-dashboard", "", adminActor)
	h.Admin(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HIT", rec.Header().Get(middleware.CacheHeader))
	assert.Contains(t, string(decodeEnvelope(t, rec).Data), `"students":4`)
	assert.Equal(t, "adm-1", svc.actor.ID)

	svc.hit = false
	c, rec = newTestContext(http.MethodGet, "/student-dashboard", "", studentActor)
	h.Student(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get(middleware.CacheHeader))
}

func TestDashboardHandlerHidesInternalErrors(t *testing.T) {
	h := NewDashboardHandler(&fakeDashboardService{err: errors.New("pq: connection refused")})

	c, rec := newTestContext(http.MethodGet, "/supervisor-dashboard", "", supervisorActor)
	h.Supervisor(c)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
	assert.Empty(t, rec.Header().Get(middleware.CacheHeader))
}
