// Package authcache implements the OAuth2 client-credentials token cache
// (§4.7): acquisition, expiry-aware reuse, and manual invalidation, shared
// across all calls in the process. Grounded on the teacher's
// Options/Connect construction shape (internal/mqttclient.Client) for the
// cache's own lifecycle, and on dittofs's jwt_service.go for the optional
// JWT-exp fallback when a token response omits expires_in.
package authcache

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

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/voxswitch/ivr-engine/internal/engineerr"
	"github.com/voxswitch/ivr-engine/internal/telephony"
)

// expirySkew is the safety margin subtracted from a token's reported
// lifetime; a token is considered valid iff expires_at - skew > now.
const expirySkew = 60 * time.Second

// defaultExpiresIn is used when a token response omits expires_in and the
// access token does not parse as a JWT with an exp claim.
const defaultExpiresIn = 3600 * time.Second

// Options configures client-credentials acquisition.
type Options struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string

	// BasicAuth, when true, sends client_id:client_secret as HTTP Basic
	// auth instead of form fields (the common client-credentials variant).
	BasicAuth bool

	HTTPClient telephony.HTTPDoer
	Log        zerolog.Logger
}

// Cache is the process-wide token cache. Safe for concurrent use; all calls
// sharing a Cache reuse the same token until it nears expiry.
type Cache struct {
	opts Options
	log  zerolog.Logger

	mu          sync.Mutex
	accessToken string
	tokenType   string
	expiresAt   time.Time
}

// New creates a Cache. Configure may be called again later to change
// endpoint/credentials (e.g. on a config hot reload).
func New(opts Options) *Cache {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	return &Cache{opts: opts, log: opts.Log.With().Str("component", "authcache").Logger()}
}

// Configure replaces the cache's options and clears any cached token, since
// a credential/endpoint change invalidates whatever is currently cached.
func (c *Cache) Configure(opts Options) {
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}
	c.mu.Lock()
	c.opts = opts
	c.accessToken = ""
	c.mu.Unlock()
}

// IsAuthenticated reports whether a currently valid token is cached.
func (c *Cache) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.validLocked()
}

func (c *Cache) validLocked() bool {
	return c.accessToken != "" && time.Now().Before(c.expiresAt.Add(-expirySkew))
}

// GetAccessToken returns the cached token iff it is still valid and
// forceRefresh is false; otherwise it acquires a new one.
func (c *Cache) GetAccessToken(ctx context.Context, forceRefresh bool) (string, error) {
	c.mu.Lock()
	if !forceRefresh && c.validLocked() {
		tok := c.accessToken
		c.mu.Unlock()
		return tok, nil
	}
	c.mu.Unlock()
	return c.authenticate(ctx, forceRefresh)
}

// GetAuthHeader returns the "<type> <token>" value ready to attach as the
// Authorization header.
func (c *Cache) GetAuthHeader(ctx context.Context) (string, error) {
	tok, err := c.GetAccessToken(ctx, false)
	if err != nil {
		return "", err
	}
	c.mu.Lock()
	tokenType := c.tokenType
	c.mu.Unlock()
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return tokenType + " " + tok, nil
}

// Authenticate is an alias for GetAccessToken(ctx, false), kept as a
// separate name per the operations list in §4.7.
func (c *Cache) Authenticate(ctx context.Context) (string, error) {
	return c.GetAccessToken(ctx, false)
}

// SetAccessToken installs a token directly (e.g. supplied out-of-band by an
// API handler), stripping surrounding double quotes. expiresIn defaults to
// defaultExpiresIn when <= 0.
func (c *Cache) SetAccessToken(token string, expiresIn time.Duration) {
	token = strings.Trim(token, `"`)
	if expiresIn <= 0 {
		expiresIn = defaultExpiresIn
	}
	c.mu.Lock()
	c.accessToken = token
	c.tokenType = "Bearer"
	c.expiresAt = time.Now().Add(expiresIn)
	c.mu.Unlock()
}

// ClearToken invalidates the cached token unconditionally.
func (c *Cache) ClearToken() {
	c.mu.Lock()
	c.accessToken = ""
	c.mu.Unlock()
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	Token            string `json:"token"`
	TokenType        string `json:"token_type"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// authenticate performs the POST and installs the result. The critical
// section (check expiry → request → install) is covered by mu for the
// duration of the whole call so a spurious double-fetch under contention is
// tolerable (both writes install a valid token) but never overlaps with a
// reader that would observe a half-updated cache.
func (c *Cache) authenticate(ctx context.Context, force bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !force && c.validLocked() {
		return c.accessToken, nil
	}

	opts := c.opts
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	if opts.Scope != "" {
		form.Set("scope", opts.Scope)
	}
	if !opts.BasicAuth {
		form.Set("client_id", opts.ClientID)
		form.Set("client_secret", opts.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", engineerr.Wrap(engineerr.KindTokenEndpointUnreachable, err, "build token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if opts.BasicAuth {
		req.SetBasicAuth(opts.ClientID, opts.ClientSecret)
	}

	resp, err := opts.HTTPClient.Do(req)
	if err != nil {
		return "", engineerr.Wrap(engineerr.KindTokenEndpointUnreachable, err, opts.TokenURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", engineerr.Wrap(engineerr.KindTokenEndpointUnreachable, err, "read token response")
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", engineerr.Wrap(engineerr.KindTokenEndpointUnreachable, err, "parse token response")
	}

	if tr.Error != "" {
		msg := tr.Error
		if tr.ErrorDescription != "" {
			msg = fmt.Sprintf("%s: %s", tr.Error, tr.ErrorDescription)
		}
		return "", engineerr.New(engineerr.KindTokenEndpointRejected, msg)
	}

	token := tr.AccessToken
	if token == "" {
		token = tr.Token
	}
	if token == "" {
		return "", engineerr.New(engineerr.KindTokenEndpointRejected, "response had no access_token or token field")
	}

	tokenType := tr.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	lifetime := time.Duration(tr.ExpiresIn) * time.Second
	if tr.ExpiresIn <= 0 {
		if exp, ok := jwtExpiry(token); ok {
			lifetime = time.Until(exp)
		} else {
			lifetime = defaultExpiresIn
		}
	}

	c.accessToken = strings.Trim(token, `"`)
	c.tokenType = tokenType
	c.expiresAt = time.Now().Add(lifetime)

	c.log.Debug().Time("expires_at", c.expiresAt).Msg("acquired access token")
	return c.accessToken, nil
}

// jwtExpiry attempts to parse token as a JWT and read its exp claim,
// without verifying the signature — the engine doesn't hold the issuer's
// key, it only needs the expiry for cache bookkeeping.
func jwtExpiry(token string) (time.Time, bool) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	_, _, err := parser.ParseUnverified(token, claims)
	if err != nil {
		return time.Time{}, false
	}
	expVal, ok := claims["exp"]
	if !ok {
		return time.Time{}, false
	}
	switch v := expVal.(type) {
	case float64:
		return time.Unix(int64(v), 0), true
	default:
		return time.Time{}, false
	}
}
