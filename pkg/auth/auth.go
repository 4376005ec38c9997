// Package auth obtains and caches the provider's short-lived bearer token.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"redgifs-dl-go/pkg/logging"

	"golang.org/x/sync/singleflight"
)

// Doer abstracts HTTP execution for testability.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// state is the cached token. Shared across requests for the life of the
// process; safe to lose at any time, it is an optimization only.
type state struct {
	token  string
	expiry time.Time
}

// Authenticator caches a temporary bearer token from the provider's auth
// endpoint. Token never returns an error: an unobtainable token is an empty
// string, and callers proceed unauthenticated.
type Authenticator struct {
	client    Doer
	log       *logging.Logger
	authURL   string
	userAgent string
	origin    string
	ttl       time.Duration

	mu      sync.Mutex
	cached  state
	refresh singleflight.Group

	// now is stubbed in tests
	now func() time.Time
}

// New creates an Authenticator.
// origin is the provider's site origin (e.g. "https://www.redgifs.com"),
// sent as Referer/Origin because the auth endpoint checks for them.
func New(client Doer, log *logging.Logger, authURL, userAgent, origin string, ttl time.Duration) *Authenticator {
	return &Authenticator{
		client:    client,
		log:       log.WithComponent("auth"),
		authURL:   authURL,
		userAgent: userAgent,
		origin:    origin,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Token returns the cached token if still inside its TTL, refreshing it
// otherwise. Returns "" when no token can be obtained; some resolution
// strategies work unauthenticated, so this is not an error.
func (a *Authenticator) Token(ctx context.Context) string {
	a.mu.Lock()
	if a.cached.token != "" && a.now().Before(a.cached.expiry) {
		token := a.cached.token
		a.mu.Unlock()
		return token
	}
	a.mu.Unlock()

	// Collapse concurrent refreshes; a duplicate fetch would be harmless
	// but wasteful.
	v, _, _ := a.refresh.Do("token", func() (interface{}, error) {
		return a.fetchToken(ctx), nil
	})
	return v.(string)
}

// Invalidate discards the cached token. Called the moment a request using
// it fails with an authorization error, forcing re-acquisition before retry.
func (a *Authenticator) Invalidate() {
	a.mu.Lock()
	a.cached = state{}
	a.mu.Unlock()
}

func (a *Authenticator) fetchToken(ctx context.Context) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.authURL, nil)
	if err != nil {
		a.log.Error("building auth request failed", "error", err)
		return ""
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", a.origin+"/")
	req.Header.Set("Origin", a.origin)

	resp, err := a.client.Do(req)
	if err != nil {
		a.log.Warn("auth endpoint unreachable", "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		a.log.Warn("auth endpoint rejected request", "status", resp.StatusCode)
		return ""
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Token == "" {
		a.log.Warn("auth response unparseable", "error", err)
		return ""
	}

	a.mu.Lock()
	a.cached = state{token: body.Token, expiry: a.now().Add(a.ttl)}
	a.mu.Unlock()

	a.log.Debug("token refreshed", "expires_in", a.ttl.String())
	return body.Token
}

// String implements fmt.Stringer without leaking the token value.
func (a *Authenticator) String() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cached.token == "" {
		return "authenticator(no token)"
	}
	return fmt.Sprintf("authenticator(token cached, expires %s)", a.cached.expiry.Format(time.RFC3339))
}
