package models

import "github.com/google/uuid"

// ModerationMode controls whether new comments post immediately or wait for
// a moderator.
type ModerationMode string

const (
	ModerationNone ModerationMode = "none"
	ModerationPre  ModerationMode = "pre"
	ModerationPost ModerationMode = "post"
)

// TurnstileEnforcement controls which requests must pass bot verification.
type TurnstileEnforcement string

const (
	TurnstileNone       TurnstileEnforcement = "none"
	TurnstileAnonymous  TurnstileEnforcement = "anonymous"
	TurnstileUnverified TurnstileEnforcement = "unverified"
	TurnstileAll        TurnstileEnforcement = "all"
)

// SiteSettings holds the per-tenant configuration embedded in Site.
type SiteSettings struct {
	ModerationMode      ModerationMode       `json:"moderation_mode"`
	EnabledAuthMethods  []string             `json:"enabled_auth_methods"`
	AllowedOrigins      []string             `json:"allowed_origins"`
	RateLimitOverrides  map[string]int       `json:"rate_limit_overrides,omitempty"`
	TurnstileEnforce    TurnstileEnforcement `json:"turnstile_enforcement"`
	PostingDisabled     bool                 `json:"posting_disabled"`
	AnonymousPosting    bool                 `json:"anonymous_posting"`
	MaxCommentLength    int                  `json:"max_comment_length"`
}

// Site is a tenant. Persisted as a JSON blob at site:{id}:config.
type Site struct {
	ID            uuid.UUID    `json:"id"`
	Name          string       `json:"name"`
	Domain        string       `json:"domain"`
	APIKeyPublic  string       `json:"api_key_public"`
	APIKeySecret  string       `json:"api_key_secret"`
	Settings      SiteSettings `json:"settings"`
}

// DefaultSettings returns the settings a freshly created site starts with.
func DefaultSettings() SiteSettings {
	return SiteSettings{
		ModerationMode:     ModerationNone,
		EnabledAuthMethods: []string{"email", "anonymous"},
		AllowedOrigins:     nil,
		TurnstileEnforce:   TurnstileNone,
		PostingDisabled:    false,
		AnonymousPosting:   false,
		MaxCommentLength:   10000,
	}
}
