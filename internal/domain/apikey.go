package domain

import "time"

// APIKeyStatus tracks whether a credential record may still be used to
// authenticate provider calls.
type APIKeyStatus string

const (
	APIKeyActive   APIKeyStatus = "active"
	APIKeyRevoked  APIKeyStatus = "revoked"
	APIKeyInvalid  APIKeyStatus = "invalid" // provider rejected it at last use
)

// APIKey is a per-user credential record for a named provider (§3). The
// Secret field is the Secrets-Manager reference, never the plaintext
// value; plaintext only ever exists inside the Provider Adapter Layer's
// process memory for the duration of a single call.
type APIKey struct {
	ID         string       `gorm:"primaryKey;size:36" json:"id"`
	OwnerID    string       `gorm:"index;size:64" json:"owner_id"`
	Provider   string       `gorm:"size:64" json:"provider"` // exact-string match to an adapters.Registry key
	BaseURL    string       `gorm:"size:512" json:"base_url,omitempty"`
	SecretRef  string       `gorm:"size:512" json:"-"` // secretsmanager ARN/name, never serialized
	Status     APIKeyStatus `gorm:"size:16" json:"status"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// String never includes SecretRef or any resolved secret material — the
// APIKey must never be surfaced verbatim beyond the Provider Adapter Layer.
func (k APIKey) String() string {
	return k.Provider + ":" + k.ID
}
