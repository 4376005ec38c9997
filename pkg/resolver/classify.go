package resolver

import (
	"regexp"
	"strings"

	"redgifs-dl-go/pkg/types"
)

// Watermark/audio classification policy for provider asset URLs.
//
// URLs served from the "files" CDN host, or following the -hd/-sd/-mobile
// naming convention, carry audio and no watermark. Embed-style URLs carry
// audio but may be watermarked, so they are only used as a last resort.

var qualitySuffixRe = regexp.MustCompile(`-(hd|sd|mobile)\.`)

func isCleanAssetURL(urlStr string) bool {
	lower := strings.ToLower(urlStr)
	if strings.Contains(lower, "://files.") {
		return true
	}
	return qualitySuffixRe.MatchString(lower)
}

func isEmbedURL(urlStr string) bool {
	lower := strings.ToLower(urlStr)
	return strings.Contains(lower, "/ifr/") || strings.Contains(lower, "embed")
}

// videoDescriptor builds a video AssetDescriptor for the given URL under the
// classification policy above.
func videoDescriptor(id types.ContentID, urlStr, quality string, hasAudio, preferred bool) types.AssetDescriptor {
	return types.AssetDescriptor{
		Kind:         types.AssetVideo,
		URL:          urlStr,
		Filename:     string(id) + "_video.mp4",
		Quality:      quality,
		HasAudio:     hasAudio,
		HasWatermark: !isCleanAssetURL(urlStr),
		Preferred:    preferred,
	}
}

func coverDescriptor(id types.ContentID, urlStr string) types.AssetDescriptor {
	return types.AssetDescriptor{
		Kind:     types.AssetCover,
		URL:      urlStr,
		Filename: string(id) + "_cover.jpg",
		Quality:  "Standard",
	}
}

func thumbnailDescriptor(id types.ContentID, urlStr string) types.AssetDescriptor {
	return types.AssetDescriptor{
		Kind:     types.AssetThumbnail,
		URL:      urlStr,
		Filename: string(id) + "_thumb.jpg",
		Quality:  "Standard",
	}
}
