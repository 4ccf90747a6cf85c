package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

type SocialAccount struct {
	ID              int64           `db:"id" json:"id"`
	UserID          string          `db:"user_id" json:"user_id"`
	Platform        string          `db:"platform" json:"platform"`
	AccountID       string          `db:"account_id" json:"account_id"`
	AccountUsername string          `db:"account_username" json:"account_username"`
	IsActive        bool            `db:"is_active" json:"is_active"`
	Metadata        AccountMetadata `db:"metadata" json:"metadata"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// AccountMetadata holds platform specific details, e.g. the Facebook page id
// or the Mastodon instance URL.
type AccountMetadata map[string]string

func (m AccountMetadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

func (m *AccountMetadata) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*m = AccountMetadata{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("metadata: unsupported column type")
	}

	meta := AccountMetadata{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
	}
	*m = meta
	return nil
}

const (
	MetadataPageID      = "page_id"
	MetadataPageName    = "page_name"
	MetadataInstanceURL = "instance_url"
	MetadataChatID      = "chat_id"
)

// VaultEntry is the secret material of one social account. Token fields are
// stored encrypted.
type VaultEntry struct {
	ID              int64      `db:"id" json:"-"`
	SocialAccountID int64      `db:"social_account_id" json:"-"`
	AccessToken     string     `db:"access_token" json:"-"`
	Secret          string     `db:"secret" json:"-"`
	ExpiresAt       *time.Time `db:"expires_at" json:"-"`
	CreatedAt       time.Time  `db:"created_at" json:"-"`
	UpdatedAt       time.Time  `db:"updated_at" json:"-"`
}

// Credentials are the decrypted secrets an adapter needs for one publish.
type Credentials struct {
	AccountID   string
	AccessToken string
	Secret      string
	Metadata    AccountMetadata
}

// ExpiringCredential pairs an account with its vault entry for token refresh.
type ExpiringCredential struct {
	Account SocialAccount
	Vault   VaultEntry
}
