// Package delivery re-serves resolved asset URLs to the end client, working
// around CORS/referrer restrictions on the origin CDN.
package delivery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"redgifs-dl-go/pkg/logging"
	"redgifs-dl-go/pkg/resolver"
	"redgifs-dl-go/pkg/types"
	"redgifs-dl-go/pkg/urlutil"
)

// Doer abstracts HTTP execution for testability.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TokenSource supplies the provider bearer token for API-subdomain fetches.
type TokenSource interface {
	Token(ctx context.Context) string
}

// Upstream is a successfully opened remote asset. The body is the live
// upstream stream; it must be piped, not materialized, since assets may be
// tens of megabytes of video.
type Upstream struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Proxy opens remote assets with retry-with-alternate-header and
// retry-with-alternate-URL recovery.
type Proxy struct {
	client         Doer
	tokens         TokenSource
	log            *logging.Logger
	providerDomain string
	userAgent      string
	variants       []resolver.URLVariant

	filesCDNRe *regexp.Regexp
}

// New creates a delivery proxy. variants is the same permutation table the
// construction strategy uses; it feeds the alternate-URL fallback.
func New(client Doer, tokens TokenSource, log *logging.Logger, providerDomain, userAgent string, variants []resolver.URLVariant) *Proxy {
	return &Proxy{
		client:         client,
		tokens:         tokens,
		log:            log.WithComponent("delivery"),
		providerDomain: providerDomain,
		userAgent:      userAgent,
		variants:       variants,
		filesCDNRe: regexp.MustCompile(
			`^https://files\.` + regexp.QuoteMeta(providerDomain) + `/([a-zA-Z0-9]+?)(?:-hd|-sd|-mobile|-poster)?\.(mp4|jpg)`,
		),
	}
}

// headerSet mutates an outbound request's headers. Attempts are an explicit
// ordered list so the number and order of header permutations tried is
// visible and testable.
type headerSet struct {
	name  string
	apply func(req *http.Request)
}

// Open fetches the asset, trying header sets in order and then alternate
// host variants. The URL is validated as absolute before any fetch is
// attempted; unparseable input never reaches the network.
func (p *Proxy) Open(ctx context.Context, assetURL, rangeHeader string) (*Upstream, error) {
	parsed, err := url.Parse(assetURL)
	if err != nil || !parsed.IsAbs() || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return nil, types.InputError("asset url must be an absolute http(s) URL")
	}

	attempts := []headerSet{
		{"full", p.fullHeaders(assetURL)},
		{"minimal", p.minimalHeaders()},
	}

	var lastStatus int
	for _, attempt := range attempts {
		up, status, err := p.tryFetch(ctx, assetURL, rangeHeader, attempt)
		if err == nil && up != nil {
			return up, nil
		}
		if status != 0 {
			lastStatus = status
		}
		p.log.Debug("fetch attempt failed",
			"url", assetURL, "headers", attempt.name, "status", status, "error", err,
		)
	}

	// Some content predates the current CDN layout; if the URL looks like a
	// files-CDN asset, retry the same content across the historical
	// host/suffix permutations.
	for _, altURL := range p.alternateURLs(assetURL) {
		up, status, err := p.tryFetch(ctx, altURL, rangeHeader, headerSet{"minimal", p.minimalHeaders()})
		if err == nil && up != nil {
			p.log.Info("alternate host succeeded", "original", assetURL, "alternate", altURL)
			return up, nil
		}
		if status != 0 {
			lastStatus = status
		}
	}

	return nil, &types.UpstreamError{
		URL:        assetURL,
		StatusCode: lastStatus,
		Suggestion: "try a different quality option",
	}
}

// tryFetch performs one attempt. A non-2xx response is drained and closed;
// the status is reported so exhaustion errors can carry it.
func (p *Proxy) tryFetch(ctx context.Context, assetURL, rangeHeader string, hs headerSet) (*Upstream, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return nil, 0, err
	}
	hs.apply(req)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		return nil, resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode)
	}

	return &Upstream{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
	}, resp.StatusCode, nil
}

// fullHeaders is the browser-shaped header set. Provider hosts get matching
// Referer/Origin, and the API subdomain additionally gets the bearer token.
func (p *Proxy) fullHeaders(assetURL string) func(req *http.Request) {
	return func(req *http.Request) {
		req.Header.Set("User-Agent", p.userAgent)
		req.Header.Set("Accept", "*/*")
		if urlutil.BelongsToDomain(assetURL, p.providerDomain) {
			origin := "https://www." + p.providerDomain
			req.Header.Set("Referer", origin+"/")
			req.Header.Set("Origin", origin)
			if strings.HasPrefix(urlutil.Host(assetURL), "api.") {
				if token := p.tokens.Token(req.Context()); token != "" {
					req.Header.Set("Authorization", "Bearer "+token)
				}
			}
		}
	}
}

// minimalHeaders is the bare set some CDN edges require; they reject the
// full browser set.
func (p *Proxy) minimalHeaders() func(req *http.Request) {
	return func(req *http.Request) {
		req.Header.Set("User-Agent", p.userAgent)
		req.Header.Set("Accept", "*/*")
	}
}

// alternateURLs derives the content ID from a files-CDN URL and maps it
// across the variant table, skipping the URL that already failed. Returns
// nil for URLs outside the files-CDN pattern.
func (p *Proxy) alternateURLs(assetURL string) []string {
	m := p.filesCDNRe.FindStringSubmatch(assetURL)
	if m == nil {
		return nil
	}
	id := types.ContentID(strings.ToLower(m[1]))
	ext := "." + m[2]

	var alternates []string
	for _, v := range p.variants {
		if v.Ext != ext {
			continue
		}
		candidate := v.URL(id)
		if candidate == assetURL {
			continue
		}
		alternates = append(alternates, candidate)
	}
	return alternates
}

// passthroughHeaders are copied from the upstream response unchanged.
var passthroughHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
	"Last-Modified",
	"ETag",
}

// WriteDownload streams an opened upstream to the client, forcing the
// caller-supplied filename. The body is piped through, never buffered.
func WriteDownload(w http.ResponseWriter, up *Upstream, filename string) error {
	defer up.Body.Close()

	for _, key := range passthroughHeaders {
		if v := up.Header.Get(key); v != "" {
			w.Header().Set(key, v)
		}
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Cache-Control", "no-cache")

	w.WriteHeader(up.StatusCode)
	_, err := io.Copy(w, up.Body)
	return err
}
