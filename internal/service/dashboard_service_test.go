package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/capstone-hub-api/internal/models"
)

func (m *memRequests) CountPending(ctx context.Context) (int, error) {
	total := 0
	for _, req := range m.requests {
		if req.Status == models.SupervisorRequestPending {
			total++
		}
	}
	return total, nil
}

type stubCounts struct {
	roles  map[models.UserRole]int
	unseen map[string]int
}

func (s stubCounts) CountByRole(ctx context.Context) (map[models.UserRole]int, error) {
	return s.roles, nil
}

func (s stubCounts) CountUnseen(ctx context.Context, userID string) (int, error) {
	return s.unseen[userID], nil
}

type dashboardFixture struct {
	svc      *DashboardService
	cache    *memCache
	groups   *memGroups
	projects *memProjects
	groupID  string
}

func newDashboardFixture(t *testing.T) *dashboardFixture {
	groups := newMemGroups()
	supervisorID := "sup"
	groupID := "group-atlas"
	groups.groups[groupID] = &models.Group{ID: groupID, Name: "Team Atlas", CreatedBy: "alice", SupervisorID: &supervisorID}
	groups.groups["group-orphan"] = &models.Group{ID: "group-orphan", Name: "Team Orphan", CreatedBy: "dave"}
	groups.members = append(groups.members,
		models.GroupMember{GroupID: groupID, StudentID: "alice", Role: models.MemberRoleLeader},
		models.GroupMember{GroupID: groupID, StudentID: "bob", Role: models.MemberRoleMember},
		models.GroupMember{GroupID: "group-orphan", StudentID: "dave", Role: models.MemberRoleLeader},
	)
	groups.chats[groupID] = &models.GroupChat{ID: "chat-atlas", GroupID: groupID}

	projects := newMemProjects(groups)
	projects.projects["p1"] = &models.Project{ID: "p1", GroupID: groupID, Title: "Smart Campus", CreatedAt: projectStart}

	milestones := newMemMilestones()
	milestones.milestones["ms-1"] = &models.Milestone{ID: "ms-1", ProjectID: "p1", Title: "Proposal", Deadline: day(10), Status: models.MilestoneSubmitted}
	milestones.milestones["ms-2"] = &models.Milestone{ID: "ms-2", ProjectID: "p1", Title: "Prototype", Deadline: day(40), OrderIndex: 1, Status: models.MilestonePending}
	submissions := &stubSubmissionLister{submissions: []models.Submission{{ID: "s1", MilestoneID: "ms-1", SubmittedBy: "alice"}}}

	requests := &memRequests{requests: map[string]*models.SupervisorRequest{
		"r1": {ID: "r1", GroupID: "group-orphan", SupervisorID: "sup", Status: models.SupervisorRequestPending},
		"r2": {ID: "r2", GroupID: "group-orphan", SupervisorID: "sup2", Status: models.SupervisorRequestRejected},
	}}
	counts := stubCounts{
		roles:  map[models.UserRole]int{models.RoleStudent: 3, models.RoleSupervisor: 2, models.RoleAdmin: 1},
		unseen: map[string]int{"alice": 2, "root": 1},
	}
	groupSvc := NewGroupService(GroupServiceParams{
		Groups:      groups,
		Invitations: memInvitations{groups},
		Chats:       memChats{groups},
		Users:       newStubUsers(&models.User{ID: "sup", Name: "Dr. Ada", Email: "ada@example.com", Role: models.RoleSupervisor}),
	})

	cache := newMemCache()
	svc := NewDashboardService(DashboardServiceParams{
		Users:         counts,
		Requests:      requests,
		Groups:        groups,
		Projects:      projects,
		Milestones:    milestones,
		Submissions:   submissions,
		Notifications: counts,
		MyGroup:       groupSvc,
		Cache:         NewCacheService(cache, nil, time.Minute, zap.NewNop(), true),
		Logger:        zap.NewNop(),
	})
	return &dashboardFixture{svc: svc, cache: cache, groups: groups, projects: projects, groupID: groupID}
}

func TestDashboardAdminComposesAndCaches(t *testing.T) {
	f := newDashboardFixture(t)
	admin := models.Identity{ID: "root", Role: models.RoleAdmin}

	result, hit, err := f.svc.Admin(context.Background(), admin)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3, result.Students)
	assert.Equal(t, 2, result.Supervisors)
	assert.Equal(t, 1, result.PendingRequests)
	assert.Equal(t, 1, result.UnseenNotifications)
	require.Len(t, result.Groups, 2)
	for _, g := range result.Groups {
		if g.ID == f.groupID {
			require.NotNil(t, g.Project)
			assert.Equal(t, "p1", g.Project.ID)
			assert.Equal(t, 2, g.MemberCount)
		} else {
			assert.Nil(t, g.Project)
		}
	}

	cached, hit, err := f.svc.Admin(context.Background(), admin)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, result.Students, cached.Students)
	assert.Len(t, cached.Groups, 2)
	assert.Contains(t, f.cache.store, "dash:ADMIN:root")
}

func TestDashboardSupervisorShowsSupervisedWork(t *testing.T) {
	f := newDashboardFixture(t)
	sup := models.Identity{ID: "sup", Role: models.RoleSupervisor}

	result, hit, err := f.svc.Supervisor(context.Background(), sup)
	require.NoError(t, err)
	assert.False(t, hit)
	require.Len(t, result.Groups, 1)
	group := result.Groups[0]
	assert.Equal(t, f.groupID, group.Group.ID)
	require.NotNil(t, group.Project)
	require.Len(t, group.Milestones, 2)
	assert.Equal(t, "Proposal", group.Milestones[0].Title)
	assert.Len(t, group.Milestones[0].Submissions, 1)
	assert.Empty(t, group.Milestones[1].Submissions)
	require.Len(t, result.PendingRequests, 1)
	assert.Equal(t, "r1", result.PendingRequests[0].ID)

	other, _, err := f.svc.Supervisor(context.Background(), models.Identity{ID: "sup2", Role: models.RoleSupervisor})
	require.NoError(t, err)
	assert.NotNil(t, other.Groups)
	assert.Empty(t, other.Groups)
	assert.NotNil(t, other.PendingRequests)
}

func TestDashboardStudent(t *testing.T) {
	f := newDashboardFixture(t)

	result, hit, err := f.svc.Student(context.Background(), models.Identity{ID: "alice", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.False(t, hit)
	require.NotNil(t, result.Group)
	assert.Len(t, result.Group.Members, 2)
	assert.Equal(t, "chat-atlas", result.Group.ChatID)
	require.NotNil(t, result.Group.Supervisor)
	assert.Equal(t, "Dr. Ada", result.Group.Supervisor.Name)
	require.NotNil(t, result.Project)
	assert.Len(t, result.Milestones, 2)
	assert.Equal(t, 2, result.UnseenNotifications)

	_, hit, err = f.svc.Student(context.Background(), models.Identity{ID: "alice", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.True(t, hit)
}

func TestDashboardStudentWithoutGroupOrProject(t *testing.T) {
	f := newDashboardFixture(t)

	lone, _, err := f.svc.Student(context.Background(), models.Identity{ID: "erin", Role: models.RoleStudent})
	require.NoError(t, err)
	assert.Nil(t, lone.Group)
	assert.Nil(t, lone.Project)
	assert.NotNil(t, lone.Milestones)
	assert.Empty(t, lone.Milestones)

	noProject, _, err := f.svc.Student(context.Background(), models.Identity{ID: "dave", Role: models.RoleStudent})
	require.NoError(t, err)
	require.NotNil(t, noProject.Group)
	assert.Nil(t, noProject.Project)
	assert.Empty(t, noProject.Milestones)
}
