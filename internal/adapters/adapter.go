// Package adapters submits one message to one social platform and normalizes
// the platform's failures into a PlatformError.
package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/maheshrc27/postpilot/internal/models"
)

const defaultTimeout = 30 * time.Second

// Message is what gets published. ImageURL is optional except on Instagram.
type Message struct {
	Text     string
	ImageURL string
}

func (m Message) HasImage() bool {
	return m.ImageURL != ""
}

// Publisher publishes to a single platform. Implementations make no retries.
type Publisher interface {
	Platform() models.Platform
	Publish(ctx context.Context, creds models.Credentials, msg Message) (remoteID string, err error)
}

// PlatformError is the normalized failure of one publish attempt.
type PlatformError struct {
	Platform models.Platform
	Code     int
	Message  string
	Tip      string
	Err      error
}

func (e *PlatformError) Error() string {
	if e.Tip == "" {
		return e.Message
	}
	return e.Message + ". " + e.Tip
}

func (e *PlatformError) Unwrap() error {
	return e.Err
}

// networkError wraps a request construction or transport failure.
func networkError(platform models.Platform, err error) *PlatformError {
	return &PlatformError{
		Platform: platform,
		Message:  fmt.Sprintf("Network error: %s", err.Error()),
		Err:      err,
	}
}

// AsPlatformError returns err as a PlatformError, wrapping foreign errors.
func AsPlatformError(platform models.Platform, err error) *PlatformError {
	var pe *PlatformError
	if errors.As(err, &pe) {
		return pe
	}
	return &PlatformError{Platform: platform, Message: err.Error(), Err: err}
}

// Registry is the closed set of publishers, one per platform.
type Registry struct {
	publishers map[models.Platform]Publisher
}

func NewRegistry(publishers ...Publisher) *Registry {
	r := &Registry{publishers: make(map[models.Platform]Publisher, len(publishers))}
	for _, p := range publishers {
		r.publishers[p.Platform()] = p
	}
	return r
}

func (r *Registry) Get(platform models.Platform) (Publisher, bool) {
	p, ok := r.publishers[platform]
	return p, ok
}

func newHTTPClient(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: defaultTimeout}
}
