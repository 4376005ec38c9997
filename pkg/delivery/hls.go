package delivery

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"redgifs-dl-go/pkg/logging"
	"redgifs-dl-go/pkg/urlutil"

	retry "github.com/avast/retry-go/v4"
	"github.com/grafov/m3u8"
)

// Assembler downloads a segmented HLS stream and concatenates it into one
// buffer, emulating a single-file download. The output is a best-effort
// concatenation of the raw segment bytes: playable, but not a conformant
// remuxed MP4 (no container metadata is rewritten).
type Assembler struct {
	client    Doer
	userAgent string
	log       *logging.Logger
}

// NewAssembler creates an HLS assembler.
func NewAssembler(client Doer, userAgent string, log *logging.Logger) *Assembler {
	return &Assembler{
		client:    client,
		userAgent: userAgent,
		log:       log.WithComponent("hls-assembler"),
	}
}

const segmentRetries = 3

// Assemble fetches the manifest, resolves every segment reference against
// the manifest's base path, downloads the segments sequentially, and
// concatenates them in manifest order. Any segment failure aborts the whole
// assembly; a truncated video is never returned.
func (a *Assembler) Assemble(ctx context.Context, manifestURL string) ([]byte, error) {
	return a.assemble(ctx, manifestURL, true)
}

func (a *Assembler) assemble(ctx context.Context, manifestURL string, allowMaster bool) ([]byte, error) {
	manifest, err := a.fetchBytes(ctx, manifestURL)
	if err != nil {
		return nil, fmt.Errorf("fetching manifest: %w", err)
	}

	playlist, listType, err := m3u8.DecodeFrom(bytes.NewReader(manifest), true)
	if err != nil {
		// Not a well-formed playlist; fall back to treating every
		// non-comment line as a segment reference.
		return a.concatSegments(ctx, manifestURL, lineRefs(manifest))
	}

	switch listType {
	case m3u8.MASTER:
		if !allowMaster {
			return nil, fmt.Errorf("manifest %s: nested master playlist", manifestURL)
		}
		master := playlist.(*m3u8.MasterPlaylist)
		variant := bestVariant(master)
		if variant == nil {
			return nil, fmt.Errorf("manifest %s: master playlist with no variants", manifestURL)
		}
		variantURL := urlutil.ResolveURL(variant.URI, manifestURL)
		a.log.Debug("selected variant", "bandwidth", variant.Bandwidth, "url", variantURL)
		return a.assemble(ctx, variantURL, false)

	case m3u8.MEDIA:
		media := playlist.(*m3u8.MediaPlaylist)
		var refs []string
		for _, seg := range media.Segments {
			if seg == nil {
				continue
			}
			refs = append(refs, seg.URI)
		}
		return a.concatSegments(ctx, manifestURL, refs)

	default:
		return nil, fmt.Errorf("manifest %s: unknown playlist type", manifestURL)
	}
}

// bestVariant picks the highest-bandwidth variant; the assembler emulates a
// full-quality download, not adaptive playback.
func bestVariant(master *m3u8.MasterPlaylist) *m3u8.Variant {
	var best *m3u8.Variant
	for _, v := range master.Variants {
		if v == nil {
			continue
		}
		if best == nil || v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	return best
}

// lineRefs extracts every non-comment, non-empty line as a segment reference.
func lineRefs(manifest []byte) []string {
	var refs []string
	scanner := bufio.NewScanner(bytes.NewReader(manifest))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		refs = append(refs, line)
	}
	return refs
}

func (a *Assembler) concatSegments(ctx context.Context, manifestURL string, refs []string) ([]byte, error) {
	if len(refs) == 0 {
		return nil, fmt.Errorf("manifest %s: no segments", manifestURL)
	}

	var out bytes.Buffer
	for i, ref := range refs {
		segmentURL := urlutil.ResolveURL(ref, manifestURL)

		data, err := retry.DoWithData(
			func() ([]byte, error) { return a.fetchBytes(ctx, segmentURL) },
			retry.Context(ctx),
			retry.Attempts(segmentRetries),
			retry.Delay(200*time.Millisecond),
			retry.LastErrorOnly(true),
		)
		if err != nil {
			return nil, fmt.Errorf("segment %d/%d (%s): %w", i+1, len(refs), segmentURL, err)
		}
		out.Write(data)
	}

	a.log.Debug("assembly complete", "segments", len(refs), "bytes", out.Len())
	return out.Bytes(), nil
}

func (a *Assembler) fetchBytes(ctx context.Context, urlStr string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// IsHLS reports whether an asset URL points at a segmented stream that
// needs assembly rather than a direct pipe.
func IsHLS(urlStr string) bool {
	return strings.Contains(strings.ToLower(urlStr), ".m3u8")
}
