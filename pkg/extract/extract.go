// Package extract parses user-supplied URLs into normalized content IDs.
package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"redgifs-dl-go/pkg/types"
	"redgifs-dl-go/pkg/urlutil"
)

// ErrNoContentID is returned when a URL is on the provider's domain but
// matches none of the known path shapes.
var ErrNoContentID = fmt.Errorf("%w: could not extract content ID from URL", types.ErrInput)

// ErrWrongDomain is returned for URLs outside the provider's domain. The
// check runs before any pattern matching so the later proxy step can never
// be pointed at an arbitrary host.
var ErrWrongDomain = fmt.Errorf("%w: URL is not a provider URL", types.ErrInput)

// Accepted path shapes, in priority order. The first match wins.
var idPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^/watch/([a-zA-Z0-9]+)`),
	regexp.MustCompile(`^/gifs/detail/([a-zA-Z0-9]+)`),
	regexp.MustCompile(`^/ifr/([a-zA-Z0-9]+)`),
	regexp.MustCompile(`^/([a-zA-Z0-9]+)/?$`),
}

// Extractor derives content IDs for one provider domain.
type Extractor struct {
	domain string
}

// New creates an Extractor for the given provider domain (e.g. "redgifs.com").
func New(domain string) *Extractor {
	return &Extractor{domain: strings.ToLower(domain)}
}

// ContentID extracts the normalized content ID from a raw URL string.
// Any accepted URL form naming the same content yields the same ID: the
// captured segment is case-folded to lowercase. Patterns run against the
// parsed path only, so query values and the hostname can never be captured.
func (e *Extractor) ContentID(rawURL string) (types.ContentID, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", ErrWrongDomain
	}

	// Accept scheme-less input like "redgifs.com/watch/abc".
	candidate := rawURL
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}

	parsed, err := url.Parse(candidate)
	if err != nil || !urlutil.BelongsToDomain(candidate, e.domain) {
		return "", ErrWrongDomain
	}

	for _, pattern := range idPatterns {
		if m := pattern.FindStringSubmatch(parsed.Path); m != nil {
			id := strings.ToLower(m[1])
			if isReservedSegment(id) {
				continue
			}
			return types.ContentID(id), nil
		}
	}
	return "", ErrNoContentID
}

// isReservedSegment filters path segments that look like IDs but are site
// navigation, so the bare trailing-segment form does not misfire.
func isReservedSegment(s string) bool {
	switch s {
	case "watch", "gifs", "detail", "ifr", "browse", "users", "niches":
		return true
	}
	return false
}
