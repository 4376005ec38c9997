package resolver

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"redgifs-dl-go/pkg/logging"
	"redgifs-dl-go/pkg/types"
)

func testLogger() *logging.Logger {
	return logging.New("error", false, io.Discard)
}

// stubStrategy is a scripted chain member.
type stubStrategy struct {
	name  string
	res   *types.ResolutionResult
	err   error
	calls int
}

func (s *stubStrategy) Name() string { return s.name }

func (s *stubStrategy) Resolve(_ context.Context, _ types.ContentID) (*types.ResolutionResult, error) {
	s.calls++
	return s.res, s.err
}

// blockingStrategy waits for context cancellation, simulating a hung upstream.
type blockingStrategy struct{ calls int }

func (s *blockingStrategy) Name() string { return "blocking" }

func (s *blockingStrategy) Resolve(ctx context.Context, _ types.ContentID) (*types.ResolutionResult, error) {
	s.calls++
	<-ctx.Done()
	return nil, ctx.Err()
}

func resultWith(downloads ...types.AssetDescriptor) *types.ResolutionResult {
	return &types.ResolutionResult{
		ContentID: "abc123",
		Title:     "RedGifs Video abc123",
		Downloads: downloads,
	}
}

func TestResolver_FirstStrategyWins(t *testing.T) {
	first := &stubStrategy{name: "first", res: resultWith(
		types.AssetDescriptor{Kind: types.AssetVideo, URL: "https://files.example.com/abc123-hd.mp4", Preferred: true},
	)}
	second := &stubStrategy{name: "second"}

	r := NewWithStrategies(time.Second, testLogger(), first, second)

	res, err := r.Resolve(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	if len(res.Downloads) != 1 {
		t.Fatalf("got %d descriptors, want 1", len(res.Downloads))
	}
	if second.calls != 0 {
		t.Error("second strategy should not run when the first succeeds")
	}
}

func TestResolver_FallsThroughOnError(t *testing.T) {
	first := &stubStrategy{name: "first", err: errors.New("upstream said no")}
	second := &stubStrategy{name: "second", res: resultWith(
		types.AssetDescriptor{Kind: types.AssetVideo, URL: "https://files.example.com/abc123-sd.mp4"},
	)}

	r := NewWithStrategies(time.Second, testLogger(), first, second)

	res, err := r.Resolve(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	if first.calls != 1 || second.calls != 1 {
		t.Errorf("calls = %d/%d, want 1/1", first.calls, second.calls)
	}
	if res.Downloads[0].URL != "https://files.example.com/abc123-sd.mp4" {
		t.Errorf("result came from the wrong strategy: %+v", res.Downloads[0])
	}
}

func TestResolver_FallsThroughOnEmptyResult(t *testing.T) {
	// A parseable response with zero usable descriptors counts the same as a
	// failure.
	first := &stubStrategy{name: "first", res: resultWith()}
	second := &stubStrategy{name: "second", res: resultWith(
		types.AssetDescriptor{Kind: types.AssetVideo, URL: "https://files.example.com/abc123.mp4"},
	)}

	r := NewWithStrategies(time.Second, testLogger(), first, second)

	if _, err := r.Resolve(context.Background(), "abc123"); err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	if second.calls != 1 {
		t.Error("chain did not continue past an empty result")
	}
}

func TestResolver_Exhaustion(t *testing.T) {
	first := &stubStrategy{name: "first", err: errors.New("down")}
	second := &stubStrategy{name: "second", err: errors.New("also down")}

	r := NewWithStrategies(time.Second, testLogger(), first, second)

	_, err := r.Resolve(context.Background(), "abc123")
	if !errors.Is(err, types.ErrResolutionFailed) {
		t.Fatalf("Resolve() error = %v, want ErrResolutionFailed", err)
	}
	// The message must give the caller something actionable.
	for _, want := range []string{"abc123", "private", "deleted"} {
		if !contains(err.Error(), want) {
			t.Errorf("error %q should mention %q", err.Error(), want)
		}
	}
}

func TestResolver_StrategyTimeoutBoundsHungUpstream(t *testing.T) {
	hung := &blockingStrategy{}
	backstop := &stubStrategy{name: "backstop", res: resultWith(
		types.AssetDescriptor{Kind: types.AssetVideo, URL: "https://files.example.com/abc123.mp4"},
	)}

	r := NewWithStrategies(20*time.Millisecond, testLogger(), hung, backstop)

	start := time.Now()
	res, err := r.Resolve(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	if res == nil || backstop.calls != 1 {
		t.Fatal("chain did not fall through past the hung strategy")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("resolution took %v, timeout did not bound the hung strategy", elapsed)
	}
}

func TestResolver_RanksResult(t *testing.T) {
	// Strategy emits the preferred descriptor last; the resolver must rank it
	// to the front.
	s := &stubStrategy{name: "s", res: resultWith(
		types.AssetDescriptor{Kind: types.AssetCover, URL: "https://files.example.com/abc123-poster.jpg"},
		types.AssetDescriptor{Kind: types.AssetVideo, URL: "https://files.example.com/abc123-hd.mp4", HasAudio: true, Preferred: true},
	)}

	r := NewWithStrategies(time.Second, testLogger(), s)

	res, err := r.Resolve(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	if !res.Downloads[0].Preferred {
		t.Errorf("first descriptor %+v, want the preferred video", res.Downloads[0])
	}
}

func contains(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
