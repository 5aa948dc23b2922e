package models

import "time"

// UploadSlot names the multipart field a file arrived in.
type UploadSlot string

const (
	UploadSlotFiles  UploadSlot = "files"
	UploadSlotImages UploadSlot = "images"
)

// Submission is one stored file delivered against a milestone.
type Submission struct {
	ID          string    `db:"id" json:"id"`
	MilestoneID string    `db:"milestone_id" json:"milestoneId"`
	SubmittedBy string    `db:"submitted_by" json:"submittedBy"`
	FileKey     string    `db:"file_key" json:"-"`
	FileURL     string    `db:"file_url" json:"fileUrl"`
	ContentType string    `db:"content_type" json:"contentType"`
	SizeBytes   int64     `db:"size_bytes" json:"sizeBytes"`
	Notes       *string   `db:"notes" json:"notes,omitempty"`
	Grade       *int      `db:"grade" json:"grade,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// Upload is a buffered multipart part awaiting validation.
type Upload struct {
	Slot     UploadSlot
	Filename string
	Data     []byte
}

// GradeSubmissionRequest carries review notes and a grade; nil means absent.
type GradeSubmissionRequest struct {
	Notes *string `json:"notes" validate:"omitempty,max=5000"`
	Grade *int    `json:"grade" validate:"omitempty,min=0,max=100"`
}
