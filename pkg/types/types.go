// Package types defines core domain types used throughout the application.
package types

// ContentID is the normalized identifier for one piece of upstream content,
// derived once from a user-supplied URL. Always lowercase alphanumeric.
type ContentID string

// Capitalized returns the ID with its first letter upper-cased. Legacy CDN
// hosts expect this form in the path segment.
func (id ContentID) Capitalized() string {
	s := string(id)
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}

// AssetKind identifies what a descriptor points at.
type AssetKind string

const (
	AssetVideo     AssetKind = "video"
	AssetCover     AssetKind = "cover"
	AssetThumbnail AssetKind = "thumbnail"
	AssetAudio     AssetKind = "audio"
)

// AssetDescriptor is one candidate downloadable file. Descriptors are
// produced in bulk by the resolver and never mutated afterwards; only their
// order within a ResolutionResult changes (by ranking).
type AssetDescriptor struct {
	Kind         AssetKind `json:"type"`
	URL          string    `json:"url"`
	Filename     string    `json:"filename"`
	Quality      string    `json:"quality"`
	HasAudio     bool      `json:"hasAudio"`
	HasWatermark bool      `json:"hasWatermark"`
	Preferred    bool      `json:"preferred"`
}

// ResolutionResult is the aggregate returned for one resolution request.
// It is never cached or stored between requests.
type ResolutionResult struct {
	ContentID ContentID         `json:"videoId"`
	Title     string            `json:"title"`
	Duration  float64           `json:"duration"`
	Views     int64             `json:"views"`
	Likes     int64             `json:"likes"`
	HasAudio  bool              `json:"hasAudio"`
	Downloads []AssetDescriptor `json:"downloads"`
}
