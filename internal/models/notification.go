package models

import "time"

// Notification is an in-app message delivered to one user.
type Notification struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	Message   string    `db:"message" json:"message"`
	Seen      bool      `db:"seen" json:"seen"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// NotificationPage is a paged notification listing.
type NotificationPage struct {
	Notifications []Notification `json:"notifications"`
	Meta          PageMeta       `json:"meta"`
}
