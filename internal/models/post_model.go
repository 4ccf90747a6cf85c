package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type Post struct {
	ID                 int64           `db:"id" json:"id"`
	UserID             string          `db:"user_id" json:"user_id"`
	Caption            string          `db:"caption" json:"caption"`
	Hashtags           []string        `db:"hashtags" json:"hashtags"`
	MediaURL           string          `db:"media_url" json:"media_url,omitempty"`
	ScheduledAt        *time.Time      `db:"scheduled_at" json:"scheduled_at,omitempty"`
	Timezone           string          `db:"timezone" json:"timezone"`
	Status             string          `db:"status" json:"status"` // draft, scheduled, published, partially_published, failed
	TargetPlatforms    []string        `db:"target_platforms" json:"target_platforms"`
	PublishedPlatforms []string        `db:"published_platforms" json:"published_platforms"`
	PlatformResults    PlatformResults `db:"platform_results" json:"platform_results"`
	ErrorMessage       *string         `db:"error_message" json:"error_message"`
	Version            int64           `db:"version" json:"version"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
	PostedAt           *time.Time      `db:"posted_at" json:"posted_at,omitempty"`
	UpdatedAt          time.Time       `db:"updated_at" json:"updated_at"`
}

const (
	PostStatusDraft              = "draft"
	PostStatusScheduled          = "scheduled"
	PostStatusPublished          = "published"
	PostStatusPartiallyPublished = "partially_published"
	PostStatusFailed             = "failed"
)

const (
	ResultStatusPending = "pending"
	ResultStatusSuccess = "success"
	ResultStatusFailed  = "failed"
)

type PlatformResult struct {
	Status      string     `json:"status"`
	PostID      string     `json:"post_id,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	AttemptedAt *time.Time `json:"attempted_at,omitempty"`
}

// PlatformResults is keyed by normalized platform name. Twitter results live
// under both "twitter" and "x".
type PlatformResults map[string]PlatformResult

// Record stores r for p under every key p is queryable by.
func (pr PlatformResults) Record(p Platform, r PlatformResult) {
	for _, key := range p.ResultKeys() {
		pr[key] = r
	}
}

// Get looks p up under any of its keys.
func (pr PlatformResults) Get(p Platform) (PlatformResult, bool) {
	for _, key := range p.ResultKeys() {
		if r, ok := pr[key]; ok {
			return r, true
		}
	}
	return PlatformResult{}, false
}

func (pr PlatformResults) Succeeded(p Platform) bool {
	r, ok := pr.Get(p)
	return ok && r.Status == ResultStatusSuccess
}

func (pr PlatformResults) Value() (driver.Value, error) {
	if pr == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(pr)
}

func (pr *PlatformResults) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*pr = PlatformResults{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("platform_results: unsupported column type")
	}

	results := PlatformResults{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &results); err != nil {
			return err
		}
	}
	*pr = results
	return nil
}

// Targets returns the parsed target platforms, dropping unknown names and
// duplicates while keeping the order.
func (p *Post) Targets() []Platform {
	return ParsePlatforms(p.TargetPlatforms)
}

// MergePublished adds platform to the published list if it isn't there yet.
func (p *Post) MergePublished(platform Platform) {
	for _, name := range p.PublishedPlatforms {
		if name == platform.String() {
			return
		}
	}
	p.PublishedPlatforms = append(p.PublishedPlatforms, platform.String())
}

// Message is the text sent to platforms: caption followed by hashtags.
func (p *Post) Message() string {
	return ComposeMessage(p.Caption, p.Hashtags)
}
