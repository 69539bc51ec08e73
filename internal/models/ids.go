// Package models contains the domain types shared by every core subsystem:
// sites, users, the page tree, votes, roles, and the JSON-RPC envelope.
package models

import (
	"crypto/sha1" //nolint:gosec // UUIDv5 is defined over SHA-1 by RFC 4122.
	"encoding/hex"

	"github.com/google/uuid"
)

// Sentinel author ids used by the tombstone and anonymous-post rules.
// Fixed UUIDs so they compare equal across processes without a shared
// counter.
var (
	DeletedUserSentinel   = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	AnonymousUserSentinel = uuid.MustParse("00000000-0000-0000-0000-000000000002")
)

// NewUserID mints a time-ordered UUIDv7 user id.
func NewUserID() uuid.UUID {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails on entropy exhaustion; fall back to v4 rather
		// than panic in a hot path.
		return uuid.New()
	}
	return id
}

// NewCommentID mints a UUIDv7 comment id.
func NewCommentID() uuid.UUID {
	return NewUserID()
}

// PageID derives the deterministic UUIDv5 page identifier from a site id and
// page URL: page_id = UUIDv5(site_id, page_url).
func PageID(siteID uuid.UUID, pageURL string) uuid.UUID {
	return uuid.NewSHA1(siteID, []byte(pageURL))
}

// shortHash is used for deterministic report de-duplication keys.
func shortHash(parts ...string) string {
	h := sha1.New() //nolint:gosec // non-cryptographic de-dup key
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
