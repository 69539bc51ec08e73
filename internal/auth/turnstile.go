package auth

import (
	"context"

	"github.com/usethreadkit/threadkit/internal/apperr"
	"github.com/usethreadkit/threadkit/internal/models"
)

// Verifier is the external Turnstile collaborator: given a token, report
// whether the challenge passed. Implementations live outside this module
// (an HTTP call to Cloudflare's siteverify endpoint).
type Verifier interface {
	Verify(ctx context.Context, token string) (bool, error)
}

// RequestContext is the subset of a posting request Turnstile enforcement
// needs to decide whether a challenge token is required at all.
type RequestContext struct {
	HasUser       bool
	EmailVerified bool
	PhoneVerified bool
	Token         string
}

// EnforceTurnstile decides whether rc satisfies site's enforcement level,
// verifying rc.Token against v when a challenge is required.
//
// "unverified" requires a user with a verified email or phone, distinct
// from "anonymous" (any request lacking a user at all): an authenticated
// but unverified user still needs to pass the challenge under this level.
func EnforceTurnstile(ctx context.Context, v Verifier, site *models.Site, rc RequestContext) error {
	required := false
	switch site.Settings.TurnstileEnforce {
	case models.TurnstileNone:
		required = false
	case models.TurnstileAnonymous:
		required = !rc.HasUser
	case models.TurnstileUnverified:
		required = !rc.HasUser || !(rc.EmailVerified || rc.PhoneVerified)
	case models.TurnstileAll:
		required = true
	}
	if !required {
		return nil
	}

	if rc.Token == "" {
		return apperr.Forbidden("turnstile verification required")
	}
	ok, err := v.Verify(ctx, rc.Token)
	if err != nil {
		return apperr.Unavailable("turnstile verification unavailable", 2)
	}
	if !ok {
		return apperr.Forbidden("turnstile verification failed")
	}
	return nil
}
