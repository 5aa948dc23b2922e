package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMilestoneStatusAdvance(t *testing.T) {
	assert.Equal(t, MilestoneSubmitted, MilestonePending.Advance(MilestoneSubmitted))
	assert.Equal(t, MilestoneCompleted, MilestoneCompleted.Advance(MilestoneReviewed))
	assert.Equal(t, MilestoneReviewed, MilestoneReviewed.Advance(MilestoneSubmitted))
	assert.Equal(t, MilestoneCompleted, MilestoneSubmitted.Advance(MilestoneCompleted))
	assert.True(t, MilestonePending.Before(MilestoneReviewed))
	assert.False(t, MilestoneStatus("DONE").Valid())
}

func TestNewPageMeta(t *testing.T) {
	meta := NewPageMeta(21, 2, 10)
	assert.Equal(t, 3, meta.TotalPages)
	assert.True(t, meta.HasMore)

	meta = NewPageMeta(0, 1, 10)
	assert.Equal(t, 0, meta.TotalPages)
	assert.False(t, meta.HasMore)
}

func TestPagingNormalize(t *testing.T) {
	p := Paging{Page: 0, Limit: 500}.Normalize(10, 100)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 100, p.Limit)
	assert.Equal(t, 0, p.Offset())

	p = Paging{Page: 3}.Normalize(20, 100)
	assert.Equal(t, 20, p.Limit)
	assert.Equal(t, 40, p.Offset())
}

func TestInvitationState(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	inv := &GroupInvitation{Status: InvitationPending, ExpiresAt: now.Add(time.Hour)}
	assert.False(t, inv.Expired(now))
	assert.False(t, inv.Used())

	assert.True(t, inv.Expired(now.Add(time.Hour)))

	used := now
	inv.UsedAt = &used
	assert.True(t, inv.Used())
}

func TestGroupDetailLeader(t *testing.T) {
	detail := &GroupDetail{Members: []GroupMemberDetail{
		{GroupMember: GroupMember{StudentID: "m", Role: MemberRoleMember}},
		{GroupMember: GroupMember{StudentID: "l", Role: MemberRoleLeader}},
	}}
	assert.Equal(t, "l", detail.Leader().StudentID)
	assert.Nil(t, (&GroupDetail{}).Leader())
}
