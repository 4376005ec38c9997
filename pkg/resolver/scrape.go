package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"redgifs-dl-go/pkg/logging"
	"redgifs-dl-go/pkg/types"

	"github.com/PuerkitoBio/goquery"
)

// scrapeStrategy fetches the watch page and mines it for asset URLs.
// Structured extraction from the embedded JSON-LD blob is tried first; it is
// strictly more reliable than regex over raw HTML. Regex is the fallback.
type scrapeStrategy struct {
	client    Doer
	userAgent string
	origin    string
	log       *logging.Logger
}

func newScrapeStrategy(client Doer, userAgent, origin string, log *logging.Logger) *scrapeStrategy {
	return &scrapeStrategy{
		client:    client,
		userAgent: userAgent,
		origin:    origin,
		log:       log.WithComponent("scrape-strategy"),
	}
}

func (s *scrapeStrategy) Name() string { return "scrape" }

var (
	mp4URLRe   = regexp.MustCompile(`"(https://[^"]*\.mp4[^"]*)"`)
	posterRe   = regexp.MustCompile(`"(https://[^"]*poster[^"]*\.jpg[^"]*)"`)
	hasAudioRe = regexp.MustCompile(`hasAudio["']?\s*:\s*(true|false)`)
)

func (s *scrapeStrategy) Resolve(ctx context.Context, id types.ContentID) (*types.ResolutionResult, error) {
	pageURL := s.origin + "/watch/" + string(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("DNT", "1")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching watch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("watch page returned status %d", resp.StatusCode)
	}

	html, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading watch page: %w", err)
	}

	if res := s.fromStructuredBlob(id, html); res != nil {
		s.log.Debug("extracted from structured blob", "content_id", string(id))
		return res, nil
	}
	return s.fromRawHTML(id, string(html)), nil
}

// jsonLDVideo is the VideoObject subset of the page's ld+json blob.
type jsonLDVideo struct {
	Type         string `json:"@type"`
	Name         string `json:"name"`
	ContentURL   string `json:"contentUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

// fromStructuredBlob parses the ld+json script the provider embeds in every
// watch page. Returns nil when the blob is absent or unparseable, in which
// case the caller falls back to regex extraction.
func (s *scrapeStrategy) fromStructuredBlob(id types.ContentID, html []byte) *types.ResolutionResult {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(html)))
	if err != nil {
		return nil
	}

	var video *jsonLDVideo
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		var v jsonLDVideo
		if err := json.Unmarshal([]byte(sel.Text()), &v); err != nil {
			return true
		}
		if v.Type == "VideoObject" && v.ContentURL != "" {
			video = &v
			return false
		}
		return true
	})
	if video == nil {
		return nil
	}

	hasAudio := scrapedHasAudio(string(html), video.ContentURL)
	downloads := []types.AssetDescriptor{
		videoDescriptor(id, video.ContentURL, scrapedQuality(video.ContentURL), hasAudio, true),
	}
	if video.ThumbnailURL != "" {
		downloads = append(downloads, coverDescriptor(id, video.ThumbnailURL))
	}

	title := video.Name
	if title == "" {
		title = "RedGifs Video " + string(id)
	}
	return &types.ResolutionResult{
		ContentID: id,
		Title:     title,
		HasAudio:  hasAudio,
		Downloads: downloads,
	}
}

// fromRawHTML is the regex fallback: quoted mp4 URLs (preferring quality
// hints) plus a best-effort poster match.
func (s *scrapeStrategy) fromRawHTML(id types.ContentID, html string) *types.ResolutionResult {
	matches := mp4URLRe.FindAllStringSubmatch(html, -1)
	if len(matches) == 0 {
		return nil
	}

	videoURL := matches[0][1]
	for _, m := range matches {
		lower := strings.ToLower(m[1])
		if strings.Contains(lower, "-hd") {
			videoURL = m[1]
			break
		}
		if strings.Contains(lower, "-sd") {
			videoURL = m[1]
		}
	}

	hasAudio := scrapedHasAudio(html, videoURL)
	downloads := []types.AssetDescriptor{
		videoDescriptor(id, videoURL, scrapedQuality(videoURL), hasAudio, true),
	}
	if m := posterRe.FindStringSubmatch(html); m != nil {
		downloads = append(downloads, coverDescriptor(id, m[1]))
	}

	return &types.ResolutionResult{
		ContentID: id,
		Title:     "RedGifs Video " + string(id),
		HasAudio:  hasAudio,
		Downloads: downloads,
	}
}

// scrapedHasAudio sources the audio flag from whatever signal the page
// offers: an explicit hasAudio field, else a safe default of true for
// inherently audio-bearing container formats.
func scrapedHasAudio(html, videoURL string) bool {
	if m := hasAudioRe.FindStringSubmatch(html); m != nil {
		return m[1] == "true"
	}
	return strings.Contains(strings.ToLower(videoURL), ".mp4")
}

func scrapedQuality(videoURL string) string {
	lower := strings.ToLower(videoURL)
	switch {
	case strings.Contains(lower, "-sd"):
		return "SD"
	case strings.Contains(lower, "-mobile"):
		return "Mobile"
	default:
		return "HD"
	}
}
