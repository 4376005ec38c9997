package resolver

import (
	"math/rand"
	"reflect"
	"testing"

	"redgifs-dl-go/pkg/types"
)

func TestRank_PreferredFirst(t *testing.T) {
	descriptors := []types.AssetDescriptor{
		{Kind: types.AssetCover, URL: "https://files.example.com/a-poster.jpg"},
		{Kind: types.AssetVideo, URL: "https://files.example.com/a-sd.mp4", HasAudio: true},
		{Kind: types.AssetVideo, URL: "https://files.example.com/a-hd.mp4", HasAudio: true, Preferred: true},
	}

	ranked := Rank(descriptors)

	if !ranked[0].Preferred {
		t.Errorf("first descriptor = %+v, want the preferred one", ranked[0])
	}
	if ranked[0].URL != "https://files.example.com/a-hd.mp4" {
		t.Errorf("first URL = %q, want the hd video", ranked[0].URL)
	}
}

func TestRank_WatermarkedLast(t *testing.T) {
	descriptors := []types.AssetDescriptor{
		{Kind: types.AssetVideo, URL: "https://example.com/embed/a", HasAudio: true, HasWatermark: true},
		{Kind: types.AssetVideo, URL: "https://files.example.com/a-sd.mp4", HasAudio: true},
	}

	ranked := Rank(descriptors)

	if ranked[0].HasWatermark {
		t.Error("watermarked descriptor ranked before clean one")
	}
}

func TestRank_AudioBeforeSilent(t *testing.T) {
	descriptors := []types.AssetDescriptor{
		{Kind: types.AssetVideo, URL: "https://files.example.com/a-silent.mp4"},
		{Kind: types.AssetVideo, URL: "https://files.example.com/a-sd.mp4", HasAudio: true},
	}

	ranked := Rank(descriptors)

	if !ranked[0].HasAudio {
		t.Error("silent descriptor ranked before audio-bearing one")
	}
}

func TestRank_MP4BeforeHLS(t *testing.T) {
	descriptors := []types.AssetDescriptor{
		{Kind: types.AssetVideo, URL: "https://files.example.com/a.m3u8", HasAudio: true},
		{Kind: types.AssetVideo, URL: "https://files.example.com/a.mp4", HasAudio: true},
	}

	ranked := Rank(descriptors)

	if ranked[0].URL != "https://files.example.com/a.mp4" {
		t.Errorf("first URL = %q, want the mp4", ranked[0].URL)
	}
}

func TestRank_DoesNotMutateInput(t *testing.T) {
	descriptors := []types.AssetDescriptor{
		{Kind: types.AssetCover, URL: "https://files.example.com/a-poster.jpg"},
		{Kind: types.AssetVideo, URL: "https://files.example.com/a-hd.mp4", Preferred: true},
	}
	original := make([]types.AssetDescriptor, len(descriptors))
	copy(original, descriptors)

	Rank(descriptors)

	if !reflect.DeepEqual(descriptors, original) {
		t.Error("Rank mutated its input slice")
	}
}

// Ranking must be a deterministic function of descriptor attributes, not of
// input order. The fixture is fully discriminated by the comparator so every
// permutation has exactly one valid ordering.
func TestRank_DeterministicUnderShuffle(t *testing.T) {
	fixture := []types.AssetDescriptor{
		{Kind: types.AssetVideo, URL: "https://files.example.com/a-hd.mp4", HasAudio: true, Preferred: true},
		{Kind: types.AssetVideo, URL: "https://files.example.com/a-sd.mp4", HasAudio: true},
		{Kind: types.AssetVideo, URL: "https://files.example.com/a.m3u8", HasAudio: true},
		{Kind: types.AssetVideo, URL: "https://files.example.com/a-silent.mp4"},
		{Kind: types.AssetCover, URL: "https://files.example.com/a-poster.jpg"},
		{Kind: types.AssetVideo, URL: "https://example.com/embed/a", HasAudio: true, HasWatermark: true},
	}

	expected := Rank(fixture)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		shuffled := make([]types.AssetDescriptor, len(fixture))
		copy(shuffled, fixture)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})

		ranked := Rank(shuffled)
		if !reflect.DeepEqual(ranked, expected) {
			t.Fatalf("shuffle %d produced different ranking:\ngot  %+v\nwant %+v", i, ranked, expected)
		}
	}
}
