package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/capstone-hub-api/internal/models"
)

func newTxDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

type sentNotice struct {
	userID  string
	message string
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []sentNotice
}

func (n *recordingNotifier) Notify(ctx context.Context, userID, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentNotice{userID: userID, message: message})
}

type stubUsers struct {
	users map[string]*models.User
}

func newStubUsers(users ...*models.User) *stubUsers {
	s := &stubUsers{users: map[string]*models.User{}}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *stubUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

// memGroups keeps groups, memberships, invitations and chats in memory and
// mimics the unique indexes of the real schema.
type memGroups struct {
	seq         int
	groups      map[string]*models.Group
	members     []models.GroupMember
	invitations map[string]*models.GroupInvitation
	chats       map[string]*models.GroupChat
	deleted     []string
	takenCodes  map[string]bool
}

func newMemGroups() *memGroups {
	return &memGroups{
		groups:      map[string]*models.Group{},
		invitations: map[string]*models.GroupInvitation{},
		chats:       map[string]*models.GroupChat{},
		takenCodes:  map[string]bool{},
	}
}

func (m *memGroups) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%d", prefix, m.seq)
}

func (m *memGroups) Create(ctx context.Context, exec sqlx.ExtContext, group *models.Group) error {
	group.ID = m.nextID("group")
	clone := *group
	m.groups[group.ID] = &clone
	return nil
}

func (m *memGroups) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Group, error) {
	g, ok := m.groups[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *g
	return &clone, nil
}

func (m *memGroups) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Group, error) {
	return m.FindByID(ctx, exec, id)
}

func (m *memGroups) Update(ctx context.Context, exec sqlx.ExtContext, group *models.Group) error {
	if _, ok := m.groups[group.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *group
	m.groups[group.ID] = &clone
	return nil
}

func (m *memGroups) SetSupervisor(ctx context.Context, exec sqlx.ExtContext, groupID, supervisorID string) error {
	g, ok := m.groups[groupID]
	if !ok {
		return sql.ErrNoRows
	}
	g.SupervisorID = &supervisorID
	return nil
}

func (m *memGroups) Delete(ctx context.Context, id string) error {
	if _, ok := m.groups[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.groups, id)
	kept := m.members[:0]
	for _, member := range m.members {
		if member.GroupID != id {
			kept = append(kept, member)
		}
	}
	m.members = kept
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memGroups) List(ctx context.Context) ([]models.GroupSummary, error) {
	out := make([]models.GroupSummary, 0, len(m.groups))
	for _, g := range m.groups {
		out = append(out, models.GroupSummary{Group: *g, MemberCount: m.count(g.ID)})
	}
	return out, nil
}

func (m *memGroups) ListBySupervisor(ctx context.Context, supervisorID string) ([]models.Group, error) {
	var out []models.Group
	for _, g := range m.groups {
		if g.SupervisorID != nil && *g.SupervisorID == supervisorID {
			out = append(out, *g)
		}
	}
	return out, nil
}

func (m *memGroups) AddMember(ctx context.Context, exec sqlx.ExtContext, member *models.GroupMember) error {
	for _, existing := range m.members {
		if existing.StudentID == member.StudentID {
			return &pq.Error{Code: "23505", Constraint: "group_members_student_id_key"}
		}
		if member.Role == models.MemberRoleLeader && existing.GroupID == member.GroupID && existing.Role == models.MemberRoleLeader {
			return &pq.Error{Code: "23505", Constraint: "group_members_one_leader"}
		}
	}
	member.ID = m.nextID("member")
	member.JoinedAt = time.Now().UTC()
	m.members = append(m.members, *member)
	return nil
}

func (m *memGroups) RemoveMember(ctx context.Context, groupID, studentID string) error {
	for i, member := range m.members {
		if member.GroupID == groupID && member.StudentID == studentID {
			m.members = append(m.members[:i], m.members[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (m *memGroups) FindMembership(ctx context.Context, exec sqlx.ExtContext, studentID string) (*models.GroupMember, error) {
	for _, member := range m.members {
		if member.StudentID == studentID {
			clone := member
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memGroups) CountMembers(ctx context.Context, exec sqlx.ExtContext, groupID string) (int, error) {
	return m.count(groupID), nil
}

func (m *memGroups) ListMembers(ctx context.Context, groupID string) ([]models.GroupMemberDetail, error) {
	var out []models.GroupMemberDetail
	for _, member := range m.members {
		if member.GroupID == groupID {
			out = append(out, models.GroupMemberDetail{GroupMember: member})
		}
	}
	return out, nil
}

func (m *memGroups) count(groupID string) int {
	n := 0
	for _, member := range m.members {
		if member.GroupID == groupID {
			n++
		}
	}
	return n
}

func (m *memGroups) leaders(groupID string) int {
	n := 0
	for _, member := range m.members {
		if member.GroupID == groupID && member.Role == models.MemberRoleLeader {
			n++
		}
	}
	return n
}

// invitation store

type memInvitations struct {
	*memGroups
}

func (m memInvitations) Insert(ctx context.Context, exec sqlx.ExtContext, inv *models.GroupInvitation) (bool, error) {
	if m.takenCodes[inv.Code] {
		return false, nil
	}
	for _, existing := range m.invitations {
		if existing.GroupID == inv.GroupID && existing.ReceivedBy == inv.ReceivedBy && existing.Status == models.InvitationPending {
			return false, &pq.Error{Code: "23505", Constraint: "group_invitations_pending_idx"}
		}
	}
	inv.ID = m.nextID("inv")
	m.takenCodes[inv.Code] = true
	clone := *inv
	m.invitations[inv.ID] = &clone
	return true, nil
}

func (m memInvitations) ExpireStale(ctx context.Context, exec sqlx.ExtContext, groupID, receivedBy string, now time.Time) (int64, error) {
	var n int64
	for _, inv := range m.invitations {
		if inv.GroupID == groupID && inv.ReceivedBy == receivedBy && inv.Status == models.InvitationPending && !now.Before(inv.ExpiresAt) {
			inv.Status = models.InvitationExpired
			n++
		}
	}
	return n, nil
}

func (m memInvitations) FindByCode(ctx context.Context, exec sqlx.ExtContext, code string) (*models.GroupInvitation, error) {
	for _, inv := range m.invitations {
		if inv.Code == code {
			clone := *inv
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m memInvitations) Consume(ctx context.Context, exec sqlx.ExtContext, id string, usedAt time.Time) (bool, error) {
	inv, ok := m.invitations[id]
	if !ok || inv.UsedAt != nil || inv.Status != models.InvitationPending {
		return false, nil
	}
	inv.UsedAt = &usedAt
	inv.Status = models.InvitationAccepted
	return true, nil
}

// chat store

type memChats struct {
	*memGroups
}

func (m memChats) Create(ctx context.Context, exec sqlx.ExtContext, chat *models.GroupChat) error {
	chat.ID = m.nextID("chat")
	clone := *chat
	m.chats[chat.GroupID] = &clone
	return nil
}

func (m memChats) FindByGroup(ctx context.Context, groupID string) (*models.GroupChat, error) {
	chat, ok := m.chats[groupID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *chat
	return &clone, nil
}
