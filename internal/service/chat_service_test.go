package service

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	appErrors "github.com/noah-isme/capstone-hub-api/pkg/errors"
)

type memMessages struct {
	memChats
	messages []models.ChatMessage
	clock    time.Time
}

func (m *memMessages) CreateMessage(ctx context.Context, msg *models.ChatMessage) error {
	m.clock = m.clock.Add(time.Second)
	msg.ID = fmt.Sprintf("msg-%d", len(m.messages)+1)
	msg.CreatedAt = m.clock
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *memMessages) ListMessages(ctx context.Context, chatID string, limit, offset int) ([]models.ChatMessage, int, error) {
	var in []models.ChatMessage
	for _, msg := range m.messages {
		if msg.ChatID == chatID {
			in = append(in, msg)
		}
	}
	sort.Slice(in, func(i, j int) bool { return in[i].CreatedAt.After(in[j].CreatedAt) })
	total := len(in)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return in[offset:end], total, nil
}

func newChatFixture(t *testing.T) (*ChatService, *memMessages) {
	groups := newMemGroups()
	groups.groups["g1"] = &models.Group{ID: "g1", Name: "Team Atlas", CreatedBy: "alice"}
	groups.groups["g2"] = &models.Group{ID: "g2", Name: "Team Borealis", CreatedBy: "carol"}
	groups.members = append(groups.members,
		models.GroupMember{GroupID: "g1", StudentID: "alice", Role: models.MemberRoleLeader},
		models.GroupMember{GroupID: "g1", StudentID: "bob", Role: models.MemberRoleMember},
		models.GroupMember{GroupID: "g2", StudentID: "carol", Role: models.MemberRoleLeader},
	)
	groups.chats["g1"] = &models.GroupChat{ID: "chat-1", GroupID: "g1"}
	store := &memMessages{memChats: memChats{groups}, clock: time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)}
	return NewChatService(store, groups, nil, nil), store
}

func TestChatPostSanitizesAndStores(t *testing.T) {
	svc, store := newChatFixture(t)

	msg, err := svc.Post(context.Background(), alice, "g1", models.PostMessageRequest{Content: "  <b>Standup</b> at <script>alert(1)</script>9  "})
	require.NoError(t, err)
	assert.Equal(t, "Standup at 9", msg.Content)
	assert.Equal(t, "chat-1", msg.ChatID)
	assert.Equal(t, alice.ID, msg.SenderID)
	require.Len(t, store.messages, 1)

	_, err = svc.Post(context.Background(), alice, "g1", models.PostMessageRequest{Content: "<i></i>"})
	assert.ErrorIs(t, err, appErrors.ErrBadRequest)

	_, err = svc.Post(context.Background(), alice, "g1", models.PostMessageRequest{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
	assert.Len(t, store.messages, 1)
}

func TestChatMembersOnly(t *testing.T) {
	svc, _ := newChatFixture(t)

	_, err := svc.Post(context.Background(), carol, "g1", models.PostMessageRequest{Content: "hi"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Messages(context.Background(), carol, "g1", models.Paging{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Messages(context.Background(), alice, "missing", models.Paging{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Messages(context.Background(), carol, "g2", models.Paging{})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestChatMessagesPageChronologically(t *testing.T) {
	svc, _ := newChatFixture(t)
	for i := 1; i <= 5; i++ {
		sender := alice
		if i%2 == 0 {
			sender = bob
		}
		_, err := svc.Post(context.Background(), sender, "g1", models.PostMessageRequest{Content: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
	}

	page, err := svc.Messages(context.Background(), bob, "g1", models.Paging{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "m4", page.Messages[0].Content)
	assert.Equal(t, "m5", page.Messages[1].Content)
	assert.Equal(t, models.PageMeta{Total: 5, Page: 1, Limit: 2, TotalPages: 3, HasMore: true}, page.Meta)

	last, err := svc.Messages(context.Background(), bob, "g1", models.Paging{Page: 3, Limit: 2})
	require.NoError(t, err)
	require.Len(t, last.Messages, 1)
	assert.Equal(t, "m1", last.Messages[0].Content)
	assert.False(t, last.Meta.HasMore)

	defaults, err := svc.Messages(context.Background(), bob, "g1", models.Paging{})
	require.NoError(t, err)
	assert.Equal(t, 20, defaults.Meta.Limit)
	assert.Len(t, defaults.Messages, 5)
}
