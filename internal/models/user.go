package models

import (
	"time"

	"github.com/google/uuid"
)

// Role is a tagged sum type resolved by set membership under a site:
// blocked ≺ user ≺ moderator ≺ admin.
type Role string

const (
	RoleBlocked   Role = "blocked"
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// rank orders roles for "at least" comparisons (IsAtLeast).
func (r Role) rank() int {
	switch r {
	case RoleBlocked:
		return 0
	case RoleUser:
		return 1
	case RoleModerator:
		return 2
	case RoleAdmin:
		return 3
	default:
		return 1
	}
}

// IsAtLeast reports whether r grants at least the privilege of other.
func (r Role) IsAtLeast(other Role) bool { return r.rank() >= other.rank() }

// AuthProvider tags how a user's identity was established.
type AuthProvider string

const (
	ProviderEmail     AuthProvider = "email"
	ProviderPhone     AuthProvider = "phone"
	ProviderEthereum  AuthProvider = "ethereum"
	ProviderSolana    AuthProvider = "solana"
	ProviderOAuth     AuthProvider = "oauth"
	ProviderAnonymous AuthProvider = "anonymous"
)

// User is stored as a Redis hash at user:{id}.
type User struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	AvatarURL      string    `json:"avatar_url,omitempty"`
	Karma          int64     `json:"karma"`
	CreatedAt      time.Time `json:"created_at"`
	EmailVerified  bool      `json:"email_verified"`
	PhoneVerified  bool      `json:"phone_verified"`
	ShadowBanned   bool      `json:"shadow_banned"`
	SocialLinks    []string  `json:"social_links,omitempty"`
	TotalComments  int64     `json:"total_comments"`
	PasswordHash   string    `json:"-"`
}

// Identity is the minimal contract an external credential flow (OAuth, OTP,
// web3-signature) must satisfy to hand a verified principal to the core:
// given a credential, produce a user identity.
type Identity struct {
	UserID   uuid.UUID
	Provider AuthProvider
	// NewUser is true the first time this credential is seen and the core
	// must provision a User record for it.
	NewUser bool
}

// Session is stored as a Redis hash with TTL at session:{sid}.
type Session struct {
	ID        string    `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	SiteID    uuid.UUID `json:"site_id"`
	CreatedAt time.Time `json:"created_at"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
}

// Report is appended to site:{id}:reports.
type Report struct {
	ReporterID uuid.UUID `json:"reporter_id"`
	PageID     uuid.UUID `json:"page_id"`
	CommentID  uuid.UUID `json:"comment_id"`
	Reason     string    `json:"reason"`
	Details    string    `json:"details,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// DedupeKey identifies a reporter+comment+reason tuple so the index keeper
// can reject duplicate open reports (SPEC_FULL.md supplemented feature).
func (r Report) DedupeKey() string {
	return shortHash(r.ReporterID.String(), r.CommentID.String(), r.Reason)
}
