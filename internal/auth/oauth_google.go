package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/usethreadkit/threadkit/internal/apperr"
)

// GoogleProvider implements OAuthProvider against Google's OAuth2
// authorization-code flow. No oauth2 client library appears anywhere in
// the retrieval pack, so the exchange is two plain HTTP calls rather than a
// fabricated dependency: POST the code to the token endpoint, then GET the
// profile with the resulting access token.
type GoogleProvider struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	HTTPClient   *http.Client
}

func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{ClientID: clientID, ClientSecret: clientSecret, RedirectURL: redirectURL, HTTPClient: http.DefaultClient}
}

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// AuthURL builds the redirect target for the user's browser.
func (g *GoogleProvider) AuthURL(state string) string {
	q := url.Values{
		"client_id":     {g.ClientID},
		"redirect_uri":  {g.RedirectURL},
		"response_type": {"code"},
		"scope":         {"openid email profile"},
		"state":         {state},
	}
	return googleAuthURL + "?" + q.Encode()
}

// Exchange trades an authorization code for an access token, then fetches
// the profile it's authorized to see.
func (g *GoogleProvider) Exchange(ctx context.Context, code string) (subject, name, email string, err error) {
	form := url.Values{
		"client_id":     {g.ClientID},
		"client_secret": {g.ClientSecret},
		"code":          {code},
		"redirect_uri":  {g.RedirectURL},
		"grant_type":    {"authorization_code"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, googleTokenURL, nil)
	if err != nil {
		return "", "", "", apperr.Internal(err)
	}
	req.URL.RawQuery = form.Encode()

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := g.doJSON(req, &tokenResp); err != nil {
		return "", "", "", err
	}
	if tokenResp.AccessToken == "" {
		return "", "", "", apperr.Unauthorized("google token exchange returned no access token")
	}

	profileReq, err := http.NewRequestWithContext(ctx, http.MethodGet, googleUserinfoURL, nil)
	if err != nil {
		return "", "", "", apperr.Internal(err)
	}
	profileReq.Header.Set("Authorization", "Bearer "+tokenResp.AccessToken)

	var profile struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := g.doJSON(profileReq, &profile); err != nil {
		return "", "", "", err
	}
	if profile.ID == "" {
		return "", "", "", apperr.Unauthorized("google profile lookup returned no subject id")
	}
	return profile.ID, profile.Name, profile.Email, nil
}

func (g *GoogleProvider) doJSON(req *http.Request, out any) error {
	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return apperr.Unavailable("google oauth endpoint unreachable", 2)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperr.Internal(err)
	}
	if resp.StatusCode != http.StatusOK {
		return apperr.Unauthorized(fmt.Sprintf("google oauth request failed: %s", body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return apperr.Internal(err)
	}
	return nil
}
