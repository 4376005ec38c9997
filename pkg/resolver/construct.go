package resolver

import (
	"context"

	"redgifs-dl-go/pkg/types"
)

// CaseRule selects the ID form a CDN host expects in its path segment.
type CaseRule int

const (
	// CaseLower keeps the normalized all-lowercase ID (current hosts).
	CaseLower CaseRule = iota
	// CaseCapitalized upper-cases the first letter (legacy hosts).
	CaseCapitalized
)

// URLVariant is one historically observed CDN host + naming convention.
// The construction strategy and the delivery proxy's alternate-URL fallback
// both consume the same table, so there is exactly one place the observed
// permutations live.
type URLVariant struct {
	Host     string
	Suffix   string
	Ext      string
	CaseRule CaseRule
	Quality  string
	Kind     types.AssetKind
}

// URL synthesizes the candidate URL for a content ID.
func (v URLVariant) URL(id types.ContentID) string {
	segment := string(id)
	if v.CaseRule == CaseCapitalized {
		segment = id.Capitalized()
	}
	return "https://" + v.Host + "/" + segment + v.Suffix + v.Ext
}

// DefaultVariantTable returns the descending-priority list of host/suffix
// permutations the provider has historically served assets from, for the
// given provider domain.
func DefaultVariantTable(domain string) []URLVariant {
	files := "files." + domain
	return []URLVariant{
		{files, "", ".mp4", CaseLower, "HD", types.AssetVideo},
		{files, "-hd", ".mp4", CaseLower, "HD", types.AssetVideo},
		{files, "-sd", ".mp4", CaseLower, "SD", types.AssetVideo},
		{files, "-mobile", ".mp4", CaseLower, "Mobile", types.AssetVideo},
		{"thumbs4." + domain, "-mobile", ".mp4", CaseCapitalized, "Mobile", types.AssetVideo},
		{"thumbs3." + domain, "-mobile", ".mp4", CaseCapitalized, "Mobile", types.AssetVideo},
		{"thumbs2." + domain, "-mobile", ".mp4", CaseCapitalized, "Mobile", types.AssetVideo},
		{"thumbs2." + domain, "", ".mp4", CaseCapitalized, "HD", types.AssetVideo},
		{files, "-poster", ".jpg", CaseLower, "Standard", types.AssetCover},
		{"thumbs2." + domain, "-poster", ".jpg", CaseCapitalized, "Standard", types.AssetCover},
		{"thumbs4." + domain, "-poster", ".jpg", CaseCapitalized, "Standard", types.AssetCover},
		{"thumbs2." + domain, "-mobile", ".jpg", CaseCapitalized, "Standard", types.AssetThumbnail},
	}
}

// constructStrategy synthesizes likely CDN URLs from the content ID alone.
// No URL is verified to exist; the client or the delivery proxy discovers
// validity at fetch time. Because it takes no network dependency it always
// produces a non-empty list, which is why it must terminate the chain.
type constructStrategy struct {
	table []URLVariant
}

func newConstructStrategy(table []URLVariant) *constructStrategy {
	return &constructStrategy{table: table}
}

func (s *constructStrategy) Name() string { return "construct" }

func (s *constructStrategy) Resolve(_ context.Context, id types.ContentID) (*types.ResolutionResult, error) {
	downloads := make([]types.AssetDescriptor, 0, len(s.table))
	first := true

	for _, v := range s.table {
		switch v.Kind {
		case types.AssetVideo:
			downloads = append(downloads, videoDescriptor(id, v.URL(id), v.Quality, true, first))
			first = false
		case types.AssetCover:
			downloads = append(downloads, coverDescriptor(id, v.URL(id)))
		case types.AssetThumbnail:
			downloads = append(downloads, thumbnailDescriptor(id, v.URL(id)))
		}
	}

	return &types.ResolutionResult{
		ContentID: id,
		Title:     "RedGifs Video " + string(id),
		HasAudio:  true,
		Downloads: downloads,
	}, nil
}
