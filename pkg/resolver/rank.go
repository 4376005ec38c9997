package resolver

import (
	"sort"
	"strings"

	"redgifs-dl-go/pkg/types"
)

// Rank orders descriptors by the fixed preference policy. The sort is
// stable and the comparator applies tie-breaks in this sequence, first
// discriminating rule wins:
//
//  1. preferred before non-preferred
//  2. no watermark before watermarked
//  3. has audio before silent
//  4. video before non-video
//  5. MP4 before HLS: the MP4 path is a pure pipe, while HLS needs
//     whole-file assembly before delivery
//
// A descriptor with no signal on an attribute counts as the falsy value for
// that comparison. This ordering decides which descriptor a "pick best
// automatically" flow chooses.
func Rank(descriptors []types.AssetDescriptor) []types.AssetDescriptor {
	ranked := make([]types.AssetDescriptor, len(descriptors))
	copy(ranked, descriptors)

	sort.SliceStable(ranked, func(i, j int) bool {
		return rankLess(ranked[i], ranked[j])
	})
	return ranked
}

func rankLess(a, b types.AssetDescriptor) bool {
	if a.Preferred != b.Preferred {
		return a.Preferred
	}
	if a.HasWatermark != b.HasWatermark {
		return !a.HasWatermark
	}
	if a.HasAudio != b.HasAudio {
		return a.HasAudio
	}
	aVideo, bVideo := a.Kind == types.AssetVideo, b.Kind == types.AssetVideo
	if aVideo != bVideo {
		return aVideo
	}
	aHLS, bHLS := isHLSURL(a.URL), isHLSURL(b.URL)
	if aHLS != bHLS {
		return bHLS
	}
	return false
}

func isHLSURL(urlStr string) bool {
	return strings.Contains(strings.ToLower(urlStr), ".m3u8")
}
