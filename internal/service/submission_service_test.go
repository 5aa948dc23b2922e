package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/capstone-hub-api/internal/models"
	appErrors "github.com/noah-isme/capstone-hub-api/pkg/errors"
	"github.com/noah-isme/capstone-hub-api/pkg/storage"
)

var (
	pdfBytes  = append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("0"), 64)...)
	pngBytes  = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 32)...)
	jpegBytes = append([]byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}, bytes.Repeat([]byte{0}, 32)...)
)

type memSubmissions struct {
	seq         int
	submissions map[string]*models.Submission
	createErr   error
}

func (m *memSubmissions) Create(ctx context.Context, exec sqlx.ExtContext, submission *models.Submission) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.seq++
	submission.ID = fmt.Sprintf("sub-%d", m.seq)
	clone := *submission
	m.submissions[submission.ID] = &clone
	return nil
}

func (m *memSubmissions) LockByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Submission, error) {
	sub, ok := m.submissions[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *sub
	return &clone, nil
}

func (m *memSubmissions) FindByKey(ctx context.Context, key string) (*models.Submission, error) {
	for _, sub := range m.submissions {
		if sub.FileKey == key {
			clone := *sub
			return &clone, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *memSubmissions) ListByMilestones(ctx context.Context, ids []string) ([]models.Submission, error) {
	var out []models.Submission
	for _, sub := range m.submissions {
		for _, id := range ids {
			if sub.MilestoneID == id {
				out = append(out, *sub)
			}
		}
	}
	return out, nil
}

func (m *memSubmissions) UpdateReview(ctx context.Context, exec sqlx.ExtContext, submission *models.Submission) error {
	clone := *submission
	m.submissions[submission.ID] = &clone
	return nil
}

type submissionFixture struct {
	svc         *SubmissionService
	submissions *memSubmissions
	milestones  *memMilestones
	mock        sqlmock.Sqlmock
	notifier    *recordingNotifier
	dir         string
	milestoneID string
	sup         models.Identity
	student     models.Identity
}

func newSubmissionFixture(t *testing.T) *submissionFixture {
	db, mock := newTxDB(t)
	dir := t.TempDir()
	blobs, err := storage.NewLocalStorage(dir, "/api/v1/files")
	require.NoError(t, err)

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
	milestones.milestones["ms-1"] = &models.Milestone{ID: "ms-1", ProjectID: "p1", Title: "Proposal", Deadline: day(10), Status: models.MilestonePending}

	submissions := &memSubmissions{submissions: map[string]*models.Submission{}}
	notifier := &recordingNotifier{}
	svc := NewSubmissionService(SubmissionServiceParams{
		Submissions: submissions,
		Milestones:  milestones,
		Projects:    scopes,
		Members:     groups,
		Blobs:       blobs,
		Tx:          db,
		Notifier:    notifier,
	})
	return &submissionFixture{
		svc:         svc,
		submissions: submissions,
		milestones:  milestones,
		mock:        mock,
		notifier:    notifier,
		dir:         dir,
		milestoneID: "ms-1",
		sup:         models.Identity{ID: "sup", Role: models.RoleSupervisor},
		student:     models.Identity{ID: "alice", Role: models.RoleStudent},
	}
}

func (f *submissionFixture) storedFiles(t *testing.T) int {
	t.Helper()
	count := 0
	err := filepath.Walk(f.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			count++
		}
		return nil
	})
	require.NoError(t, err)
	return count
}

func (f *submissionFixture) submit(t *testing.T, uploads ...models.Upload) []models.Submission {
	t.Helper()
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	subs, err := f.svc.Submit(context.Background(), f.student, f.milestoneID, uploads)
	require.NoError(t, err)
	return subs
}

func TestSubmitStoresFilesAndAdvancesMilestone(t *testing.T) {
	f := newSubmissionFixture(t)

	subs := f.submit(t,
		models.Upload{Slot: models.UploadSlotFiles, Filename: "report.pdf", Data: pdfBytes},
		models.Upload{Slot: models.UploadSlotImages, Filename: "shot.png", Data: pngBytes},
		models.Upload{Slot: models.UploadSlotImages, Filename: "photo.jpg", Data: jpegBytes},
	)
	require.Len(t, subs, 3)
	assert.Equal(t, "application/pdf", subs[0].ContentType)
	assert.Equal(t, "image/png", subs[1].ContentType)
	assert.Equal(t, "image/jpeg", subs[2].ContentType)
	assert.Contains(t, subs[0].FileURL, "/api/v1/files/submissions/ms-1/")
	assert.Equal(t, 3, f.storedFiles(t))
	assert.Len(t, f.submissions.submissions, 3)
	assert.Equal(t, models.MilestoneSubmitted, f.milestones.milestones["ms-1"].Status)
	require.Len(t, f.notifier.sent, 1)
	assert.Equal(t, "sup", f.notifier.sent[0].userID)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSubmitRejectsBadUploadsBeforeStoring(t *testing.T) {
	f := newSubmissionFixture(t)
	big := append(append([]byte{}, pdfBytes...), bytes.Repeat([]byte("x"), int(DefaultMaxUploadBytes))...)

	cases := map[string][]models.Upload{
		"none":           nil,
		"oversized":      {{Slot: models.UploadSlotFiles, Filename: "big.pdf", Data: big}},
		"image as doc":   {{Slot: models.UploadSlotFiles, Filename: "fake.pdf", Data: pngBytes}},
		"pdf as image":   {{Slot: models.UploadSlotImages, Filename: "fake.png", Data: pdfBytes}},
		"text":           {{Slot: models.UploadSlotFiles, Filename: "notes.pdf", Data: []byte("just some text")}},
		"unknown field":  {{Slot: "archive", Filename: "a.pdf", Data: pdfBytes}},
		"empty":          {{Slot: models.UploadSlotFiles, Filename: "empty.pdf"}},
		"mixed bad last": {{Slot: models.UploadSlotFiles, Filename: "ok.pdf", Data: pdfBytes}, {Slot: models.UploadSlotImages, Filename: "bad.png", Data: []byte("nope")}},
		"too many": {
			{Slot: models.UploadSlotFiles, Filename: "1.pdf", Data: pdfBytes},
			{Slot: models.UploadSlotFiles, Filename: "2.pdf", Data: pdfBytes},
			{Slot: models.UploadSlotFiles, Filename: "3.pdf", Data: pdfBytes},
			{Slot: models.UploadSlotFiles, Filename: "4.pdf", Data: pdfBytes},
		},
	}
	for name, uploads := range cases {
		_, err := f.svc.Submit(context.Background(), f.student, f.milestoneID, uploads)
		assert.ErrorIs(t, err, appErrors.ErrBadRequest, name)
	}
	_, err := f.svc.Submit(context.Background(), f.student, f.milestoneID, nil)
	assert.Contains(t, err.Error(), "No files uploaded")

	assert.Equal(t, 0, f.storedFiles(t))
	assert.Empty(t, f.submissions.submissions)
	assert.Equal(t, models.MilestonePending, f.milestones.milestones["ms-1"].Status)
}

func TestSubmitAccess(t *testing.T) {
	f := newSubmissionFixture(t)
	upload := []models.Upload{{Slot: models.UploadSlotFiles, Filename: "r.pdf", Data: pdfBytes}}

	_, err := f.svc.Submit(context.Background(), models.Identity{ID: "zed", Role: models.RoleStudent}, f.milestoneID, upload)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = f.svc.Submit(context.Background(), f.student, "ms-404", upload)
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.Equal(t, 0, f.storedFiles(t))
}

func TestSubmitRemovesBlobsWhenTransactionFails(t *testing.T) {
	f := newSubmissionFixture(t)
	f.submissions.createErr = errors.New("insert failed")

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err := f.svc.Submit(context.Background(), f.student, f.milestoneID, []models.Upload{
		{Slot: models.UploadSlotFiles, Filename: "r.pdf", Data: pdfBytes},
		{Slot: models.UploadSlotImages, Filename: "s.png", Data: pngBytes},
	})
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	assert.Equal(t, 0, f.storedFiles(t))
	assert.Empty(t, f.notifier.sent)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSubmitDoesNotRegressReviewedMilestone(t *testing.T) {
	f := newSubmissionFixture(t)
	f.milestones.milestones["ms-1"].Status = models.MilestoneReviewed

	f.submit(t, models.Upload{Slot: models.UploadSlotFiles, Filename: "v2.pdf", Data: pdfBytes})
	assert.Equal(t, models.MilestoneReviewed, f.milestones.milestones["ms-1"].Status)
	assert.Empty(t, f.milestones.statuses)
}

func TestGradeTransitions(t *testing.T) {
	notes := "Solid start"
	blank := "   "
	zero := 0
	ninety := 90

	cases := []struct {
		name string
		req  models.GradeSubmissionRequest
		want models.MilestoneStatus
	}{
		{"notes only", models.GradeSubmissionRequest{Notes: &notes}, models.MilestoneReviewed},
		{"blank notes", models.GradeSubmissionRequest{Notes: &blank}, models.MilestoneSubmitted},
		{"zero grade", models.GradeSubmissionRequest{Grade: &zero}, models.MilestoneCompleted},
		{"grade and notes", models.GradeSubmissionRequest{Notes: &notes, Grade: &ninety}, models.MilestoneCompleted},
		{"nothing", models.GradeSubmissionRequest{}, models.MilestoneSubmitted},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newSubmissionFixture(t)
			subs := f.submit(t, models.Upload{Slot: models.UploadSlotFiles, Filename: "r.pdf", Data: pdfBytes})

			f.mock.ExpectBegin()
			f.mock.ExpectCommit()
			graded, err := f.svc.Grade(context.Background(), f.sup, subs[0].ID, tc.req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, f.milestones.milestones["ms-1"].Status)
			if tc.req.Grade != nil {
				require.NotNil(t, graded.Grade)
				assert.Equal(t, *tc.req.Grade, *graded.Grade)
			}
			require.NoError(t, f.mock.ExpectationsWereMet())
		})
	}
}

func TestGradeNeverRegressesCompletedMilestone(t *testing.T) {
	f := newSubmissionFixture(t)
	subs := f.submit(t, models.Upload{Slot: models.UploadSlotFiles, Filename: "r.pdf", Data: pdfBytes})
	f.milestones.milestones["ms-1"].Status = models.MilestoneCompleted

	notes := "Late remark"
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	_, err := f.svc.Grade(context.Background(), f.sup, subs[0].ID, models.GradeSubmissionRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, models.MilestoneCompleted, f.milestones.milestones["ms-1"].Status)
	require.Len(t, f.notifier.sent, 2)
	assert.Equal(t, "alice", f.notifier.sent[1].userID)
}

func TestGradeAccess(t *testing.T) {
	f := newSubmissionFixture(t)
	subs := f.submit(t, models.Upload{Slot: models.UploadSlotFiles, Filename: "r.pdf", Data: pdfBytes})
	grade := 70

	for _, actor := range []models.Identity{
		{ID: "other", Role: models.RoleSupervisor},
		f.student,
	} {
		f.mock.ExpectBegin()
		f.mock.ExpectRollback()
		_, err := f.svc.Grade(context.Background(), actor, subs[0].ID, models.GradeSubmissionRequest{Grade: &grade})
		assert.ErrorIs(t, err, appErrors.ErrForbidden, actor.ID)
	}

	f.mock.ExpectBegin()
	f.mock.ExpectRollback()
	_, err := f.svc.Grade(context.Background(), f.sup, "sub-404", models.GradeSubmissionRequest{Grade: &grade})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	tooHigh := 101
	_, err = f.svc.Grade(context.Background(), f.sup, subs[0].ID, models.GradeSubmissionRequest{Grade: &tooHigh})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	f.mock.ExpectBegin()
	f.mock.ExpectCommit()
	_, err = f.svc.Grade(context.Background(), models.Identity{ID: "root", Role: models.RoleAdmin}, subs[0].ID, models.GradeSubmissionRequest{Grade: &grade})
	require.NoError(t, err)
	require.NoError(t, f.mock.ExpectationsWereMet())
}

func TestSubmissionListAndOpenFile(t *testing.T) {
	f := newSubmissionFixture(t)
	subs := f.submit(t, models.Upload{Slot: models.UploadSlotFiles, Filename: "r.pdf", Data: pdfBytes})

	list, err := f.svc.List(context.Background(), f.sup, f.milestoneID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	_, err = f.svc.List(context.Background(), models.Identity{ID: "zed", Role: models.RoleStudent}, f.milestoneID)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	file, sub, err := f.svc.OpenFile(context.Background(), f.student, "/"+subs[0].FileKey)
	require.NoError(t, err)
	defer file.Close()
	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, data)
	assert.Equal(t, subs[0].ID, sub.ID)

	_, _, err = f.svc.OpenFile(context.Background(), models.Identity{ID: "zed", Role: models.RoleStudent}, subs[0].FileKey)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, _, err = f.svc.OpenFile(context.Background(), f.student, "submissions/unknown.pdf")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
