// Package api provides the HTTP handlers for the download API.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"

	"redgifs-dl-go/pkg/appctx"
	"redgifs-dl-go/pkg/delivery"
	"redgifs-dl-go/pkg/logging"
	"redgifs-dl-go/pkg/types"

	"golang.org/x/sync/errgroup"
)

// batchFanout bounds concurrent resolutions for one batch request so a large
// list cannot hammer the upstream API.
const batchFanout = 3

// maxBatchSize caps one batch request.
const maxBatchSize = 20

// Handlers contains all API handlers.
type Handlers struct {
	ctx *appctx.Context
	log *logging.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(ctx *appctx.Context) *Handlers {
	return &Handlers{
		ctx: ctx,
		log: ctx.Log.WithComponent("api"),
	}
}

// RegisterRoutes registers all API routes.
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/download", h.handleDownload)
	mux.HandleFunc("POST /{$}", h.handleDownload)
	mux.HandleFunc("POST /api/batch", h.handleBatch)
	mux.HandleFunc("GET /proxy-download", h.handleProxyDownload)
	mux.HandleFunc("GET /proxy-image", h.handleProxyImage)
	mux.HandleFunc("GET /api/info", h.handleAPIInfo)

	// Non-POST hits on the download endpoints get a JSON 405 instead of the
	// mux's plain-text default.
	mux.HandleFunc("/{$}", h.handleMethodNotAllowed)
	mux.HandleFunc("/api/download", h.handleMethodNotAllowed)
	mux.HandleFunc("/api/batch", h.handleMethodNotAllowed)
}

// downloadResponse is the success envelope for a single resolution.
type downloadResponse struct {
	Success bool `json:"success"`
	*types.ResolutionResult
}

// handleDownload resolves one URL into ranked download descriptors.
func (h *Handlers) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		h.writeError(w, http.StatusBadRequest, "url field is required")
		return
	}

	result, err := h.resolveURL(r, req.URL)
	if err != nil {
		h.writeResolutionError(w, req.URL, err)
		return
	}

	h.writeJSON(w, http.StatusOK, downloadResponse{Success: true, ResolutionResult: result})
}

// batchItem is one per-URL result in a batch response. Failures are carried
// inline; one bad URL never fails the whole batch.
type batchItem struct {
	URL     string `json:"url"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	*types.ResolutionResult
}

// handleBatch resolves several URLs with bounded concurrency.
func (h *Handlers) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URLs []string `json:"urls"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.URLs) == 0 {
		h.writeError(w, http.StatusBadRequest, "urls field is required")
		return
	}
	if len(req.URLs) > maxBatchSize {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("at most %d urls per batch", maxBatchSize))
		return
	}

	items := make([]batchItem, len(req.URLs))
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(batchFanout)

	for i, rawURL := range req.URLs {
		g.Go(func() error {
			items[i] = batchItem{URL: rawURL}

			id, err := h.ctx.Extractor.ContentID(rawURL)
			if err != nil {
				items[i].Error = err.Error()
				return nil
			}
			result, err := h.ctx.Resolver.Resolve(ctx, id)
			if err != nil {
				items[i].Error = err.Error()
				return nil
			}
			items[i].Success = true
			items[i].ResolutionResult = result
			return nil
		})
	}
	g.Wait()

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"results": items,
	})
}

// handleProxyDownload streams an asset to the client under a forced filename.
// Segmented streams are assembled into one file first; direct assets are piped.
func (h *Handlers) handleProxyDownload(w http.ResponseWriter, r *http.Request) {
	assetURL := r.URL.Query().Get("url")
	if assetURL == "" {
		h.writeError(w, http.StatusBadRequest, "url parameter required")
		return
	}
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		filename = path.Base(strings.SplitN(assetURL, "?", 2)[0])
	}

	if delivery.IsHLS(assetURL) {
		data, err := h.ctx.Assembler.Assemble(r.Context(), assetURL)
		if err != nil {
			h.log.Error("hls assembly failed", "url", assetURL, "error", err)
			h.writeErrorDetails(w, http.StatusBadGateway, "failed to assemble stream", err.Error())
			return
		}

		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.Header().Set("Cache-Control", "no-cache")
		w.Write(data)
		return
	}

	up, err := h.ctx.Delivery.Open(r.Context(), assetURL, r.Header.Get("Range"))
	if err != nil {
		h.writeDeliveryError(w, assetURL, err)
		return
	}

	if err := delivery.WriteDownload(w, up, filename); err != nil {
		// Headers are already sent; nothing left to do but log.
		h.log.Debug("client disconnected mid-stream", "url", assetURL, "error", err)
	}
}

// handleProxyImage proxies cover/thumbnail images. Anything that is not an
// image is refused so the endpoint cannot be used as a general proxy.
func (h *Handlers) handleProxyImage(w http.ResponseWriter, r *http.Request) {
	assetURL := r.URL.Query().Get("url")
	if assetURL == "" {
		h.writeError(w, http.StatusBadRequest, "url parameter required")
		return
	}

	up, err := h.ctx.Delivery.Open(r.Context(), assetURL, "")
	if err != nil {
		h.writeDeliveryError(w, assetURL, err)
		return
	}
	defer up.Body.Close()

	contentType := up.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		h.writeError(w, http.StatusBadGateway, "upstream did not return an image")
		return
	}

	w.Header().Set("Content-Type", contentType)
	if v := up.Header.Get("Content-Length"); v != "" {
		w.Header().Set("Content-Length", v)
	}
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(up.StatusCode)
	io.Copy(w, up.Body)
}

// handleAPIInfo returns server status as JSON.
func (h *Handlers) handleAPIInfo(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "running",
		"version":  "1.0.0",
		"provider": h.ctx.Config.ProviderDomain,
	})
}

func (h *Handlers) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// resolveURL runs the extract-then-resolve pipeline for one raw URL.
func (h *Handlers) resolveURL(r *http.Request, rawURL string) (*types.ResolutionResult, error) {
	id, err := h.ctx.Extractor.ContentID(rawURL)
	if err != nil {
		return nil, err
	}
	return h.ctx.Resolver.Resolve(r.Context(), id)
}

// writeResolutionError maps pipeline errors onto the HTTP taxonomy. Unknown
// errors are logged with detail and surfaced as a generic 500.
func (h *Handlers) writeResolutionError(w http.ResponseWriter, rawURL string, err error) {
	var upErr *types.UpstreamError
	switch {
	case errors.Is(err, types.ErrInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, types.ErrResolutionFailed):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &upErr):
		h.writeErrorDetails(w, http.StatusBadGateway, upErr.Error(), upErr.Suggestion)
	default:
		h.log.Error("resolution failed unexpectedly", "url", rawURL, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeDeliveryError maps delivery proxy errors: bad input is the caller's
// fault, everything else is an upstream failure.
func (h *Handlers) writeDeliveryError(w http.ResponseWriter, assetURL string, err error) {
	var upErr *types.UpstreamError
	switch {
	case errors.Is(err, types.ErrInput):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &upErr):
		h.log.Warn("upstream fetch exhausted", "url", assetURL, "status", upErr.StatusCode)
		h.writeErrorDetails(w, http.StatusBadGateway, upErr.Error(), upErr.Suggestion)
	default:
		h.log.Error("delivery failed unexpectedly", "url", assetURL, "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// Helper methods

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handlers) writeErrorDetails(w http.ResponseWriter, status int, message, details string) {
	body := map[string]string{"error": message}
	if details != "" {
		body["details"] = details
	}
	h.writeJSON(w, status, body)
}
