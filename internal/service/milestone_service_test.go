package service

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	appErrors "github.com/noah-isme/capstone-hub-api/pkg/errors"
)

type memScopes map[string]*models.ProjectScope

func (m memScopes) Scope(ctx context.Context, exec sqlx.ExtContext, projectID string) (*models.ProjectScope, error) {
	scope, ok := m[projectID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *scope
	return &clone, nil
}

func (m memScopes) LockScope(ctx context.Context, exec sqlx.ExtContext, projectID string) (*models.ProjectScope, error) {
	return m.Scope(ctx, exec, projectID)
}

type memMilestones struct {
	seq        int
	milestones map[string]*models.Milestone
	statuses   []models.MilestoneStatus
}

func newMemMilestones() *memMilestones {
	return &memMilestones{milestones: map[string]*models.Milestone{}}
}

func (m *memMilestones) ListByProject(ctx context.Context, exec sqlx.ExtContext, projectID string) ([]models.Milestone, error) {
	var out []models.Milestone
	for _, ms := range m.milestones {
		if ms.ProjectID == projectID {
			out = append(out, *ms)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *memMilestones) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Milestone, error) {
	ms, ok := m.milestones[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *ms
	return &clone, nil
}

func (m *memMilestones) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Milestone, error) {
	return m.FindByID(ctx, exec, id)
}

func (m *memMilestones) Create(ctx context.Context, exec sqlx.ExtContext, milestone *models.Milestone) error {
	m.seq++
	milestone.ID = fmt.Sprintf("ms-%d", m.seq)
	clone := *milestone
	m.milestones[milestone.ID] = &clone
	return nil
}

func (m *memMilestones) Update(ctx context.Context, exec sqlx.ExtContext, milestone *models.Milestone) error {
	clone := *milestone
	m.milestones[milestone.ID] = &clone
	return nil
}

func (m *memMilestones) SetStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.MilestoneStatus) error {
	ms, ok := m.milestones[id]
	if !ok {
		return sql.ErrNoRows
	}
	ms.Status = status
	m.statuses = append(m.statuses, status)
	return nil
}

func (m *memMilestones) Delete(ctx context.Context, exec sqlx.ExtContext, milestone *models.Milestone) error {
	if _, ok := m.milestones[milestone.ID]; !ok {
		return sql.ErrNoRows
	}
	delete(m.milestones, milestone.ID)
	for _, ms := range m.milestones {
		if ms.ProjectID == milestone.ProjectID && ms.OrderIndex > milestone.OrderIndex {
			ms.OrderIndex--
		}
	}
	return nil
}

type stubSubmissionLister struct {
	submissions []models.Submission
}

func (s *stubSubmissionLister) ListByMilestones(ctx context.Context, ids []string) ([]models.Submission, error) {
	wanted := map[string]bool{}
	for _, id := range ids {
		wanted[id] = true
	}
	var out []models.Submission
	for _, sub := range s.submissions {
		if wanted[sub.MilestoneID] {
			out = append(out, sub)
		}
	}
	return out, nil
}

var projectStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type milestoneFixture struct {
	svc        *MilestoneService
	milestones *memMilestones
	groups     *memGroups
	mock       sqlmock.Sqlmock
	sup        models.Identity
	admin      models.Identity
}

func newMilestoneFixture(t *testing.T) *milestoneFixture {
	db, mock := newTxDB(t)
	supervisorID := "sup"
	scopes := memScopes{
		"p1": {ProjectID: "p1", GroupID: "g1", GroupName: "Team Atlas", SupervisorID: &supervisorID, LeaderID: "alice", CreatedAt: projectStart},
	}
	groups := newMemGroups()
	groups.members = append(groups.members,
		models.GroupMember{GroupID: "g1", StudentID: "alice", Role: models.MemberRoleLeader},
		models.GroupMember{GroupID: "g2", StudentID: "zed", Role: models.MemberRoleLeader},
	)
	milestones := newMemMilestones()
	submissions := &stubSubmissionLister{submissions: []models.Submission{{ID: "s1", MilestoneID: "ms-1"}}}
	svc := NewMilestoneService(scopes, milestones, submissions, groups, db, nil, nil)
	return &milestoneFixture{
		svc:        svc,
		milestones: milestones,
		groups:     groups,
		mock:       mock,
		sup:        models.Identity{ID: "sup", Role: models.RoleSupervisor},
		admin:      models.Identity{ID: "root", Role: models.RoleAdmin},
	}
}

func (f *milestoneFixture) create(t *testing.T, title string, deadline time.Time) *models.Milestone {
	t.Helper()
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	ms, err := f.svc.Create(context.Background(), f.sup, "p1", models.CreateMilestoneRequest{Title: title, Description: "d", Deadline: deadline})
	require.NoError(t, err)
	return ms
}

func (f *milestoneFixture) expectFailedTx() {
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
}

func day(n int) time.Time {
	return projectStart.AddDate(0, 0, n)
}

func TestMilestoneCreateEnforcesIncreasingDeadlines(t *testing.T) {
	f := newMilestoneFixture(t)

	first := f.create(t, "Proposal", day(10))
	second := f.create(t, "Prototype", day(20))
	assert.Equal(t, 0, first.OrderIndex)
	assert.Equal(t, 1, second.OrderIndex)
	assert.Equal(t, models.MilestonePending, second.Status)

	for _, deadline := range []time.Time{day(20), day(15), projectStart} {
		f.expectFailedTx()
		_, err := f.svc.Create(context.Background(), f.sup, "p1", models.CreateMilestoneRequest{Title: "Late", Description: "d", Deadline: deadline})
		assert.ErrorIs(t, err, appErrors.ErrForbidden, deadline.String())
	}
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestMilestoneCreateFirstMustFollowProjectStart(t *testing.T) {
	f := newMilestoneFixture(t)

	f.expectFailedTx()
	_, err := f.svc.Create(context.Background(), f.admin, "p1", models.CreateMilestoneRequest{Title: "Early", Description: "d", Deadline: projectStart.Add(-time.Hour)})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	_, err = f.svc.Create(context.Background(), f.admin, "p1", models.CreateMilestoneRequest{Title: "Kickoff", Description: "d", Deadline: projectStart.Add(time.Hour)})
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestMilestoneCreateAccess(t *testing.T) {
	f := newMilestoneFixture(t)

	for _, actor := range []models.Identity{
		{ID: "other-sup", Role: models.RoleSupervisor},
		{ID: "alice", Role: models.RoleStudent},
	} {
		f.expectFailedTx()
		_, err := f.svc.Create(context.Background(), actor, "p1", models.CreateMilestoneRequest{Title: "Proposal", Description: "d", Deadline: day(5)})
		assert.ErrorIs(t, err, appErrors.ErrForbidden, actor.ID)
	}

	f.expectFailedTx()
	_, err := f.svc.Create(context.Background(), f.sup, "missing", models.CreateMilestoneRequest{Title: "Proposal", Description: "d", Deadline: day(5)})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestMilestoneUpdateKeepsDeadlineBetweenNeighbours(t *testing.T) {
	f := newMilestoneFixture(t)
	f.create(t, "One", day(10))
	middle := f.create(t, "Two", day(20))
	f.create(t, "Three", day(30))

	for _, deadline := range []time.Time{day(10), day(5), day(30), day(31)} {
		f.expectFailedTx()
		d := deadline
		_, err := f.svc.Update(context.Background(), f.sup, "p1", middle.ID, models.UpdateMilestoneRequest{Deadline: &d})
		assert.ErrorIs(t, err, appErrors.ErrForbidden, deadline.String())
	}

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	moved := day(25)
	updated, err := f.svc.Update(context.Background(), f.sup, "p1", middle.ID, models.UpdateMilestoneRequest{Deadline: &moved})
	require.NoError(t, err)
	assert.True(t, updated.Deadline.Equal(moved))

	list, err := f.svc.List(context.Background(), f.admin, "p1")
	require.NoError(t, err)
	for i := 1; i < len(list); i++ {
		assert.True(t, list[i-1].Deadline.Before(list[i].Deadline))
	}
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestMilestoneUpdateStatusNeverRegresses(t *testing.T) {
	f := newMilestoneFixture(t)
	ms := f.create(t, "One", day(10))

	reviewed := models.MilestoneReviewed
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	_, err := f.svc.Update(context.Background(), f.sup, "p1", ms.ID, models.UpdateMilestoneRequest{Status: &reviewed})
	require.NoError(t, err)

	pending := models.MilestonePending
	f.expectFailedTx()
	_, err = f.svc.Update(context.Background(), f.sup, "p1", ms.ID, models.UpdateMilestoneRequest{Status: &pending})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, models.MilestoneReviewed, f.milestones.milestones[ms.ID].Status)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestMilestoneDeleteKeepsOrderDense(t *testing.T) {
	f := newMilestoneFixture(t)
	first := f.create(t, "One", day(10))
	f.create(t, "Two", day(20))
	third := f.create(t, "Three", day(30))

	f.expectFailedTx()
	err := f.svc.Delete(context.Background(), models.Identity{ID: "alice", Role: models.RoleStudent}, "p1", first.ID)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	require.NoError(t, f.svc.Delete(context.Background(), f.sup, "p1", first.ID))
	assert.Equal(t, 1, f.milestones.milestones[third.ID].OrderIndex)

	f.expectFailedTx()
	err = f.svc.Delete(context.Background(), f.sup, "p1", first.ID)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestMilestoneReadAccess(t *testing.T) {
	f := newMilestoneFixture(t)
	ms := f.create(t, "One", day(10))

	for _, actor := range []models.Identity{
		f.admin,
		f.sup,
		{ID: "alice", Role: models.RoleStudent},
	} {
		got, err := f.svc.Get(context.Background(), actor, "p1", ms.ID)
		require.NoError(t, err, actor.ID)
		assert.Len(t, got.Submissions, 1)
	}

	for _, actor := range []models.Identity{
		{ID: "zed", Role: models.RoleStudent},
		{ID: "nobody", Role: models.RoleStudent},
		{ID: "other-sup", Role: models.RoleSupervisor},
	} {
		_, err := f.svc.List(context.Background(), actor, "p1")
		assert.ErrorIs(t, err, appErrors.ErrForbidden, actor.ID)
	}

	_, err := f.svc.Get(context.Background(), f.admin, "p1", "ms-404")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestCheckDeadlineWindow(t *testing.T) {
	siblings := []models.Milestone{
		{OrderIndex: 0, Deadline: day(10)},
		{OrderIndex: 1, Deadline: day(20)},
	}
	assert.NoError(t, checkDeadlineWindow(siblings, 1, projectStart, day(11)))
	assert.NoError(t, checkDeadlineWindow(siblings, 0, projectStart, day(19)))
	assert.Error(t, checkDeadlineWindow(siblings, 0, projectStart, day(20)))
	assert.Error(t, checkDeadlineWindow(siblings, 0, projectStart, projectStart))
}
