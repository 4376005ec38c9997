package resolver

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"redgifs-dl-go/pkg/types"
)

// countingTokens is a scripted TokenSource recording auth traffic.
type countingTokens struct {
	token       string
	tokenCalls  int32
	invalidated int32
}

func (c *countingTokens) Token(_ context.Context) string {
	atomic.AddInt32(&c.tokenCalls, 1)
	return c.token
}

func (c *countingTokens) Invalidate() {
	atomic.AddInt32(&c.invalidated, 1)
}

const v2Body = `{"gif":{"id":"abc123","duration":12.5,"views":100,"likes":7,"hasAudio":true,
	"urls":{"hd":"https://files.redgifs.com/abc123-hd.mp4",
	        "sd":"https://files.redgifs.com/abc123-sd.mp4",
	        "poster":"https://files.redgifs.com/abc123-poster.jpg",
	        "thumbnail":"https://files.redgifs.com/abc123-mobile.jpg"}}}`

func TestAPIStrategy_V2Shape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/gifs/abc123" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, v2Body)
	}))
	defer srv.Close()

	tokens := &countingTokens{token: "tok"}
	s := newAPIStrategy(srv.Client(), tokens, srv.URL, "test-agent", "https://www.redgifs.com", testLogger())

	res, err := s.Resolve(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}

	if res.ContentID != "abc123" || res.Duration != 12.5 || res.Views != 100 || res.Likes != 7 || !res.HasAudio {
		t.Errorf("metadata not carried through: %+v", res)
	}

	if len(res.Downloads) != 4 {
		t.Fatalf("got %d descriptors, want 4: %+v", len(res.Downloads), res.Downloads)
	}

	hd := res.Downloads[0]
	if hd.Kind != types.AssetVideo || hd.Quality != "HD" || !hd.Preferred || hd.HasWatermark {
		t.Errorf("hd descriptor = %+v, want preferred clean HD video", hd)
	}
	if hd.Filename != "abc123_video.mp4" {
		t.Errorf("hd filename = %q, want %q", hd.Filename, "abc123_video.mp4")
	}
}

func TestAPIStrategy_Reauth401(t *testing.T) {
	var apiHits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/gifs/abc123" {
			http.NotFound(w, r)
			return
		}
		// First call: token rejected. Second call: success.
		if atomic.AddInt32(&apiHits, 1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, v2Body)
	}))
	defer srv.Close()

	tokens := &countingTokens{token: "stale"}
	s := newAPIStrategy(srv.Client(), tokens, srv.URL, "test-agent", "https://www.redgifs.com", testLogger())

	res, err := s.Resolve(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	if len(res.Downloads) == 0 {
		t.Fatal("expected descriptors after re-auth")
	}

	if got := atomic.LoadInt32(&tokens.invalidated); got != 1 {
		t.Errorf("token invalidated %d times, want exactly 1", got)
	}
	// One token fetch for the rejected call, one for the retry.
	if got := atomic.LoadInt32(&tokens.tokenCalls); got != 2 {
		t.Errorf("token source consulted %d times, want 2", got)
	}
	if got := atomic.LoadInt32(&apiHits); got != 2 {
		t.Errorf("metadata endpoint hit %d times, want 2", got)
	}
}

func TestAPIStrategy_FallsBackToV1GfyShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/gifs/abc123":
			http.NotFound(w, r)
		case "/v1/gifs/abc123":
			fmt.Fprint(w, `{"gfyItem":{"gfyId":"AbC123",
				"mp4Url":"https://thumbs2.redgifs.com/AbC123.mp4",
				"posterUrl":"https://thumbs2.redgifs.com/AbC123-poster.jpg",
				"numFrames":300,"frameRate":30,"views":5,"hasAudio":true}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tokens := &countingTokens{}
	s := newAPIStrategy(srv.Client(), tokens, srv.URL, "test-agent", "https://www.redgifs.com", testLogger())

	res, err := s.Resolve(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}

	if res.Duration != 10 {
		t.Errorf("duration = %v, want 10 (numFrames/frameRate)", res.Duration)
	}
	if len(res.Downloads) != 2 {
		t.Fatalf("got %d descriptors, want video + cover: %+v", len(res.Downloads), res.Downloads)
	}
	if res.Downloads[0].Kind != types.AssetVideo || res.Downloads[1].Kind != types.AssetCover {
		t.Errorf("descriptor kinds = %q, %q", res.Downloads[0].Kind, res.Downloads[1].Kind)
	}
}

func TestAPIStrategy_NoUsableURLs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	tokens := &countingTokens{}
	s := newAPIStrategy(srv.Client(), tokens, srv.URL, "test-agent", "https://www.redgifs.com", testLogger())

	res, err := s.Resolve(context.Background(), "abc123")
	if res != nil && len(res.Downloads) > 0 {
		t.Errorf("expected no descriptors, got %+v", res.Downloads)
	}
	if err == nil {
		t.Error("expected an error describing the exhausted endpoints")
	}
}

func TestAPIStrategy_SendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, v2Body)
	}))
	defer srv.Close()

	tokens := &countingTokens{token: "tok-1"}
	s := newAPIStrategy(srv.Client(), tokens, srv.URL, "test-agent", "https://www.redgifs.com", testLogger())

	if _, err := s.Resolve(context.Background(), "abc123"); err != nil {
		t.Fatalf("Resolve() unexpected error: %v", err)
	}
	if gotAuth != "Bearer tok-1" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer tok-1")
	}
}
