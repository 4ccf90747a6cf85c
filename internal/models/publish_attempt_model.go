package models

import "time"

type PublishAttempt struct {
	ID              int64     `db:"id" json:"id"`
	PostID          int64     `db:"post_id" json:"post_id"`
	UserID          string    `db:"user_id" json:"user_id"`
	Platform        string    `db:"platform" json:"platform"`
	SocialAccountID *int64    `db:"social_account_id" json:"social_account_id,omitempty"`
	Status          string    `db:"status" json:"status"`
	RemoteID        string    `db:"remote_id" json:"remote_id,omitempty"`
	ErrorMessage    string    `db:"error_message" json:"error_message,omitempty"`
	AttemptedAt     time.Time `db:"attempted_at" json:"attempted_at"`
}
