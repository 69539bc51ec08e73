package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/usethreadkit/threadkit/internal/apperr"
)

const oauthStateTTL = 10 * time.Minute

// OAuthProvider is the external collaborator for one browser-facing OAuth
// identity provider: it owns the redirect URL construction and the
// authorization-code-for-profile exchange. Provider implementations live
// outside the core; the core only forwards a state token and consumes the
// resulting (subject, name, email).
type OAuthProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (subject, name, email string, err error)
}

// oauthState is what IssueState stores against a random token: enough to
// resume the browser flow at the callback without trusting client-supplied
// site/redirect parameters.
type oauthState struct {
	SiteID   uuid.UUID `json:"site_id"`
	ReturnTo string    `json:"return_to"`
}

// OAuth resolves the `GET /auth/{provider}` and `GET /auth/{provider}/
// callback` browser routes against a set of injected per-provider
// collaborators, mirroring Web3's nonce-then-verify shape.
type OAuth struct {
	rdb       *redis.Client
	providers map[string]OAuthProvider
}

func NewOAuth(rdb *redis.Client, providers map[string]OAuthProvider) *OAuth {
	return &OAuth{rdb: rdb, providers: providers}
}

// Provider looks up a registered provider by its path segment (e.g.
// "github", "google").
func (o *OAuth) Provider(name string) (OAuthProvider, bool) {
	p, ok := o.providers[name]
	return p, ok
}

// IssueState mints a one-time token binding this browser flow to a site and
// post-login redirect target, so the callback doesn't have to trust
// client-controlled query parameters for either.
func (o *OAuth) IssueState(ctx context.Context, siteID uuid.UUID, returnTo string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", apperr.Internal(err)
	}
	state := hex.EncodeToString(buf)

	raw, err := json.Marshal(oauthState{SiteID: siteID, ReturnTo: returnTo})
	if err != nil {
		return "", apperr.Internal(err)
	}
	if err := o.rdb.Set(ctx, oauthStateKey(state), raw, oauthStateTTL).Err(); err != nil {
		return "", apperr.Internal(err)
	}
	return state, nil
}

// ConsumeState validates and deletes a state token, returning the site and
// return-to URL IssueState bound it to. A missing or expired token fails
// with Unauthorized — the callback arrived too late, was replayed, or never
// had a matching IssueState call.
func (o *OAuth) ConsumeState(ctx context.Context, state string) (uuid.UUID, string, error) {
	raw, err := o.rdb.Get(ctx, oauthStateKey(state)).Bytes()
	if err == redis.Nil {
		return uuid.Nil, "", apperr.Unauthorized("oauth state expired or invalid")
	}
	if err != nil {
		return uuid.Nil, "", apperr.Internal(err)
	}

	var s oauthState
	if err := json.Unmarshal(raw, &s); err != nil {
		return uuid.Nil, "", apperr.Internal(err)
	}
	o.rdb.Del(ctx, oauthStateKey(state))
	return s.SiteID, s.ReturnTo, nil
}

func oauthStateKey(state string) string { return "oauthstate:" + state }
