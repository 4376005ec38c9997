package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"redgifs-dl-go/pkg/logging"
	"redgifs-dl-go/pkg/types"
)

// apiStrategy queries the provider's versioned metadata endpoints, newest
// first. The upstream has returned different field names and nesting across
// versions, so each known shape gets its own adapter normalizing to one
// upstreamGif record; the rest of the pipeline never sees the raw shapes.
type apiStrategy struct {
	client    Doer
	tokens    TokenSource
	baseURL   string
	userAgent string
	origin    string
	log       *logging.Logger
}

func newAPIStrategy(client Doer, tokens TokenSource, baseURL, userAgent, origin string, log *logging.Logger) *apiStrategy {
	return &apiStrategy{
		client:    client,
		tokens:    tokens,
		baseURL:   baseURL,
		userAgent: userAgent,
		origin:    origin,
		log:       log.WithComponent("api-strategy"),
	}
}

func (s *apiStrategy) Name() string { return "api" }

// upstreamGif is the normalized metadata record all response shapes adapt to.
type upstreamGif struct {
	ID       string
	Duration float64
	Views    int64
	Likes    int64
	HasAudio bool
	URLs     map[string]string
}

func (s *apiStrategy) Resolve(ctx context.Context, id types.ContentID) (*types.ResolutionResult, error) {
	endpoints := []string{
		s.baseURL + "/v2/gifs/" + string(id),
		s.baseURL + "/v1/gifs/" + string(id),
	}

	var lastErr error
	reauthed := false

	for _, endpoint := range endpoints {
		gif, status, err := s.fetch(ctx, endpoint)

		// A rejected token is recovered once for the whole chain:
		// invalidate, re-acquire synchronously, retry the call.
		if status == http.StatusUnauthorized && !reauthed {
			reauthed = true
			s.tokens.Invalidate()
			s.log.Debug("token rejected, re-authenticating", "endpoint", endpoint)
			gif, status, err = s.fetch(ctx, endpoint)
		}

		if err != nil {
			lastErr = err
			continue
		}
		if gif == nil {
			lastErr = fmt.Errorf("metadata endpoint %s: status %d or missing asset map", endpoint, status)
			continue
		}

		result := s.buildResult(id, gif)
		if len(result.Downloads) == 0 {
			// Response parsed but held no usable asset URLs; counts as
			// zero descriptors, chain continues.
			lastErr = fmt.Errorf("metadata for %s held no usable asset URLs", id)
			continue
		}
		return result, nil
	}

	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

// fetch performs one authenticated metadata call. A nil gif with nil error
// means the response was readable but not adaptable.
func (s *apiStrategy) fetch(ctx context.Context, endpoint string) (*upstreamGif, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", s.origin+"/")
	req.Header.Set("Origin", s.origin)
	if token := s.tokens.Token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}

	for _, adapt := range shapeAdapters {
		if gif := adapt(body); gif != nil {
			return gif, resp.StatusCode, nil
		}
	}
	return nil, resp.StatusCode, nil
}

// shapeAdapters, newest shape first. Each returns nil when the body is not
// in its shape.
var shapeAdapters = []func([]byte) *upstreamGif{
	adaptV2Shape,
	adaptGfyShape,
}

// adaptV2Shape handles the current envelope: {"gif": {..., "urls": {...}}}.
func adaptV2Shape(body []byte) *upstreamGif {
	var envelope struct {
		Gif *struct {
			ID       string            `json:"id"`
			Duration float64           `json:"duration"`
			Views    int64             `json:"views"`
			Likes    int64             `json:"likes"`
			HasAudio bool              `json:"hasAudio"`
			URLs     map[string]string `json:"urls"`
		} `json:"gif"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Gif == nil || len(envelope.Gif.URLs) == 0 {
		return nil
	}
	g := envelope.Gif
	return &upstreamGif{
		ID:       g.ID,
		Duration: g.Duration,
		Views:    g.Views,
		Likes:    g.Likes,
		HasAudio: g.HasAudio,
		URLs:     g.URLs,
	}
}

// adaptGfyShape handles the legacy v1 envelope with flat URL fields:
// {"gfyItem": {"gfyId": ..., "mp4Url": ..., "posterUrl": ...}}.
func adaptGfyShape(body []byte) *upstreamGif {
	var envelope struct {
		GfyItem *struct {
			GfyID     string  `json:"gfyId"`
			Mp4URL    string  `json:"mp4Url"`
			MobileURL string  `json:"mobileUrl"`
			PosterURL string  `json:"posterUrl"`
			ThumbURL  string  `json:"thumb100PosterUrl"`
			Views     int64   `json:"views"`
			Likes     int64   `json:"likes"`
			HasAudio  bool    `json:"hasAudio"`
			NumFrames float64 `json:"numFrames"`
			FrameRate float64 `json:"frameRate"`
		} `json:"gfyItem"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.GfyItem == nil {
		return nil
	}
	g := envelope.GfyItem

	urls := make(map[string]string)
	if g.Mp4URL != "" {
		urls["hd"] = g.Mp4URL
	}
	if g.MobileURL != "" {
		urls["mobile"] = g.MobileURL
	}
	if g.PosterURL != "" {
		urls["poster"] = g.PosterURL
	}
	if g.ThumbURL != "" {
		urls["thumbnail"] = g.ThumbURL
	}
	if len(urls) == 0 {
		return nil
	}

	var duration float64
	if g.FrameRate > 0 {
		duration = g.NumFrames / g.FrameRate
	}
	return &upstreamGif{
		ID:       g.GfyID,
		Duration: duration,
		Views:    g.Views,
		Likes:    g.Likes,
		HasAudio: g.HasAudio,
		URLs:     urls,
	}
}

// buildResult maps the normalized asset-URL map to descriptors.
func (s *apiStrategy) buildResult(id types.ContentID, gif *upstreamGif) *types.ResolutionResult {
	var downloads []types.AssetDescriptor

	if u := gif.URLs["hd"]; u != "" {
		downloads = append(downloads, videoDescriptor(id, u, "HD", gif.HasAudio, true))
	}
	if u := gif.URLs["sd"]; u != "" {
		downloads = append(downloads, videoDescriptor(id, u, "SD", gif.HasAudio, false))
	}
	if u := gif.URLs["mobile"]; u != "" {
		downloads = append(downloads, videoDescriptor(id, u, "Mobile", gif.HasAudio, false))
	}
	if u := gif.URLs["silent"]; u != "" {
		downloads = append(downloads, videoDescriptor(id, u, "Silent", false, false))
	}
	// Embed-style URL: audio-bearing but possibly watermarked, last resort.
	for _, key := range []string{"embed", "html"} {
		if u := gif.URLs[key]; u != "" && isEmbedURL(u) {
			d := videoDescriptor(id, u, "Embed", true, false)
			d.HasWatermark = true
			downloads = append(downloads, d)
		}
	}
	if u := gif.URLs["poster"]; u != "" {
		downloads = append(downloads, coverDescriptor(id, u))
	}
	for _, key := range []string{"thumbnail", "vthumbnail"} {
		if u := gif.URLs[key]; u != "" {
			downloads = append(downloads, thumbnailDescriptor(id, u))
		}
	}

	title := gif.ID
	if title == "" {
		title = string(id)
	}
	return &types.ResolutionResult{
		ContentID: id,
		Title:     "RedGifs Video " + title,
		Duration:  gif.Duration,
		Views:     gif.Views,
		Likes:     gif.Likes,
		HasAudio:  gif.HasAudio,
		Downloads: downloads,
	}
}
