package service

import (
	"errors"

	"github.com/maheshrc27/postpilot/internal/models"
)

var (
	ErrPostNotFound        = errors.New("post not found")
	ErrNoActiveAccounts    = errors.New("No active social accounts found")
	ErrPublishInProgress   = errors.New("a publish for this post is already in progress")
	ErrFlowExpired         = errors.New("connection flow expired or already used")
	ErrUnsupportedPlatform = errors.New("unsupported platform")
	ErrAccountNotFound     = errors.New("social account not found")
	ErrInvalidPost         = errors.New("invalid post")
	ErrInvalidRequest      = errors.New("invalid request")
)

const reconnectTip = "Reconnect your account."

// CredentialError means the account or its vault entry is missing or
// unusable. The fix is always to reconnect.
type CredentialError struct {
	Platform models.Platform
	Message  string
	Err      error
}

func (e *CredentialError) Error() string {
	return e.Message + ". " + reconnectTip
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}
