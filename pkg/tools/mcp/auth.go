package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/rhuss/mcpchat/pkg/logging"
)

// AuthProvider supplies authentication headers for MCP server connections.
type AuthProvider interface {
	// GetHeaders returns the HTTP headers to include in MCP requests.
	GetHeaders(ctx context.Context) (map[string]string, error)
}

// NewAuthProvider returns the provider selected by cfg.Type, or nil when no
// dynamic authentication is configured.
func NewAuthProvider(cfg AuthConfig) (AuthProvider, error) {
	switch cfg.Type {
	case "":
		return nil, nil
	case "oauth_client_credentials":
		return NewOAuthClientCredentials(cfg.TokenURL, cfg.ClientID, cfg.ClientSecret, cfg.Scopes), nil
	case "jwt":
		if cfg.SigningKey == "" {
			return nil, fmt.Errorf("jwt auth requires a signing key")
		}
		return NewJWTAuth(cfg.SigningKey, cfg.Issuer, cfg.Subject, cfg.Audience, cfg.TokenTTL), nil
	default:
		return nil, fmt.Errorf("unsupported auth type %q", cfg.Type)
	}
}

// tokenCache holds one bearer token and the point at which it should be
// replaced. Refresh happens at 80% of the token lifetime.
type tokenCache struct {
	token     string
	expiry    time.Time
	refreshAt time.Time
}

func (c *tokenCache) fresh(now time.Time) bool {
	return c.token != "" && now.Before(c.refreshAt)
}

func (c *tokenCache) valid(now time.Time) bool {
	return c.token != "" && now.Before(c.expiry)
}

func (c *tokenCache) store(token string, now time.Time, lifetime time.Duration) {
	c.token = token
	c.expiry = now.Add(lifetime)
	c.refreshAt = now.Add(time.Duration(float64(lifetime) * 0.8))
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// OAuthClientCredentialsAuth obtains access tokens via OAuth 2.0 client_credentials grant.
// If a proactive refresh fails but the cached token is still valid, the cached token is used.
type OAuthClientCredentialsAuth struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string

	mu         sync.Mutex
	cache      tokenCache
	httpClient *http.Client
	nowFunc    func() time.Time
}

// tokenResponse represents the JSON response from an OAuth 2.0 token endpoint.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// NewOAuthClientCredentials creates an OAuthClientCredentialsAuth provider.
func NewOAuthClientCredentials(tokenURL, clientID, clientSecret string, scopes []string) *OAuthClientCredentialsAuth {
	return &OAuthClientCredentialsAuth{
		TokenURL:     tokenURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Scopes:       scopes,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		nowFunc:      time.Now,
	}
}

// GetHeaders returns an Authorization header with a cached or freshly
// acquired bearer token.
func (a *OAuthClientCredentialsAuth) GetHeaders(ctx context.Context) (map[string]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.nowFunc()
	if a.cache.fresh(now) {
		return bearer(a.cache.token), nil
	}

	token, expiresIn, err := a.fetchToken(ctx)
	if err != nil {
		if a.cache.valid(now) {
			logging.Log("tools", "oauth refresh failed, using cached token", "error", err)
			return bearer(a.cache.token), nil
		}
		return nil, fmt.Errorf("acquiring OAuth token: %w", err)
	}

	a.cache.store(token, now, time.Duration(expiresIn)*time.Second)
	return bearer(token), nil
}

// fetchToken performs the OAuth 2.0 client_credentials grant request.
func (a *OAuthClientCredentialsAuth) fetchToken(ctx context.Context) (string, int, error) {
	data := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {a.ClientID},
		"client_secret": {a.ClientSecret},
	}
	if len(a.Scopes) > 0 {
		data.Set("scope", strings.Join(a.Scopes, " "))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", 0, fmt.Errorf("parsing token response: %w", err)
	}

	if tokenResp.AccessToken == "" {
		return "", 0, fmt.Errorf("token response missing access_token")
	}

	return tokenResp.AccessToken, tokenResp.ExpiresIn, nil
}

// JWTAuth mints short-lived HS256 bearer tokens signed with a shared key,
// for tool servers that authenticate clients by verifying the signature
// rather than running a token endpoint.
type JWTAuth struct {
	key      []byte
	issuer   string
	subject  string
	audience string
	ttl      time.Duration

	mu      sync.Mutex
	cache   tokenCache
	nowFunc func() time.Time
}

// NewJWTAuth creates a JWTAuth provider. A zero ttl defaults to five minutes.
func NewJWTAuth(signingKey, issuer, subject, audience string, ttl time.Duration) *JWTAuth {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &JWTAuth{
		key:      []byte(signingKey),
		issuer:   issuer,
		subject:  subject,
		audience: audience,
		ttl:      ttl,
		nowFunc:  time.Now,
	}
}

// GetHeaders returns an Authorization header carrying a signed token,
// re-signing once 80% of the token lifetime has elapsed.
func (a *JWTAuth) GetHeaders(_ context.Context) (map[string]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.nowFunc()
	if a.cache.fresh(now) {
		return bearer(a.cache.token), nil
	}

	claims := jwtlib.RegisteredClaims{
		Issuer:    a.issuer,
		Subject:   a.subject,
		IssuedAt:  jwtlib.NewNumericDate(now),
		NotBefore: jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(a.ttl)),
		ID:        uuid.NewString(),
	}
	if a.audience != "" {
		claims.Audience = jwtlib.ClaimStrings{a.audience}
	}

	signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.key)
	if err != nil {
		return nil, fmt.Errorf("signing JWT: %w", err)
	}

	a.cache.store(signed, now, a.ttl)
	return bearer(signed), nil
}
