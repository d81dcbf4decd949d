package api

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/maltedev/tcg-price-scraper/internal/diagnostics"
	"github.com/maltedev/tcg-price-scraper/internal/models"
)

const (
	serviceName    = "tcgplayer-scraper"
	serviceVersion = "1.1.0"
)

// Service is the scraping facade served over HTTP.
type Service interface {
	FetchLastSoldOnce(ctx context.Context, url string) (*models.LastSoldResult, error)
	FetchSalesSnapshot(ctx context.Context, url string) (*models.SalesSnapshotResult, error)
	FetchActiveListings(ctx context.Context, productID string) (*models.ActiveListingsResult, error)
	FetchPagesInProduct(ctx context.Context, productID string) (*models.PagesResult, error)
	FetchActiveListingsInPage(ctx context.Context, productID string, page int) (*models.ListingsPageResult, error)
	LoginOnly(ctx context.Context) (*models.LoginResult, error)
	Visit(ctx context.Context, url string) (*models.VisitResult, error)
	Cookies(ctx context.Context) ([]models.CookieInfo, error)
	LocalStorage(ctx context.Context) ([]models.LocalStorageEntry, error)
	ProxyIP(ctx context.Context) (*models.ProxyIPResult, error)
	Trace(ctx context.Context, url string) (*models.TraceResult, error)
	MyAccount(ctx context.Context) (*models.AccountResult, error)
	CapturePriceGraph(ctx context.Context, url string) (*models.GraphCaptureResult, error)
}

// ArtifactResolver maps a requested artifact path to a readable file.
type ArtifactResolver interface {
	Resolve(requested string) (string, error)
}

// HistoryReader lists stored sale observations. It is optional.
type HistoryReader interface {
	Recent(ctx context.Context, url string, limit int) ([]models.SaleObservation, error)
}

type Handlers struct {
	scraper   Service
	artifacts ArtifactResolver
	history   HistoryReader
	logger    *slog.Logger
}

func NewHandlers(scraper Service, artifacts ArtifactResolver, history HistoryReader, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		scraper:   scraper,
		artifacts: artifacts,
		history:   history,
		logger:    logger.With("component", "api"),
	}
}

// URLRequest is the body of the page-level endpoints.
type URLRequest struct {
	URL string `json:"url"`
}

func (h *Handlers) Root(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"ok":      true,
		"service": serviceName,
		"version": serviceVersion,
	})
}

func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// LastSold handles POST /last-sold.
func (h *Handlers) LastSold(w http.ResponseWriter, r *http.Request) {
	url, ok := h.decodeURL(w, r)
	if !ok {
		return
	}

	res, err := h.scraper.FetchLastSoldOnce(r.Context(), url)
	h.respondResult(w, "last sold", res, err)
}

// SalesSnapshot handles POST /sales-snapshot.
func (h *Handlers) SalesSnapshot(w http.ResponseWriter, r *http.Request) {
	url, ok := h.decodeURL(w, r)
	if !ok {
		return
	}

	res, err := h.scraper.FetchSalesSnapshot(r.Context(), url)
	h.respondResult(w, "sales snapshot", res, err)
}

// PriceGraph handles POST /price-graph. The chart image stays on disk; the
// response carries its path.
func (h *Handlers) PriceGraph(w http.ResponseWriter, r *http.Request) {
	url, ok := h.decodeURL(w, r)
	if !ok {
		return
	}

	res, err := h.scraper.CapturePriceGraph(r.Context(), url)
	h.respondResult(w, "price graph", res, err)
}

func (h *Handlers) ActiveListings(w http.ResponseWriter, r *http.Request) {
	res, err := h.scraper.FetchActiveListings(r.Context(), chi.URLParam(r, "productID"))
	h.respondResult(w, "active listings", res, err)
}

func (h *Handlers) Pages(w http.ResponseWriter, r *http.Request) {
	res, err := h.scraper.FetchPagesInProduct(r.Context(), chi.URLParam(r, "productID"))
	h.respondResult(w, "pages", res, err)
}

func (h *Handlers) ListingsPage(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "page must be a number")
		return
	}

	res, err := h.scraper.FetchActiveListingsInPage(r.Context(), chi.URLParam(r, "productID"), page)
	h.respondResult(w, "listings page", res, err)
}

// History handles GET /history?url=...&limit=...
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		h.respondError(w, http.StatusNotFound, "price history is not configured")
		return
	}

	url := r.URL.Query().Get("url")
	if url == "" {
		h.respondError(w, http.StatusBadRequest, "missing url")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.respondError(w, http.StatusBadRequest, "limit must be a positive number")
			return
		}
		limit = n
	}

	observations, err := h.history.Recent(r.Context(), url, limit)
	if err != nil {
		h.logger.Error("failed to read price history", "error", err, "url", url)
		h.respondError(w, http.StatusInternalServerError, "failed to read price history")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"url":          url,
		"observations": observations,
	})
}

func (h *Handlers) DebugLogin(w http.ResponseWriter, r *http.Request) {
	res, err := h.scraper.LoginOnly(r.Context())
	h.respondResult(w, "login", res, err)
}

func (h *Handlers) DebugVisit(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		h.respondError(w, http.StatusBadRequest, "missing url")
		return
	}

	res, err := h.scraper.Visit(r.Context(), url)
	h.respondResult(w, "visit", res, err)
}

func (h *Handlers) DebugCookies(w http.ResponseWriter, r *http.Request) {
	cookies, err := h.scraper.Cookies(r.Context())
	if err != nil {
		h.logger.Error("failed to read cookies", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to read cookies")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"count":   len(cookies),
		"cookies": cookies,
	})
}

func (h *Handlers) DebugLocalStorage(w http.ResponseWriter, r *http.Request) {
	entries, err := h.scraper.LocalStorage(r.Context())
	if err != nil {
		h.logger.Error("failed to read local storage", "error", err)
		h.respondError(w, http.StatusInternalServerError, "failed to read local storage")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{
		"count":   len(entries),
		"entries": entries,
	})
}

func (h *Handlers) DebugProxyIP(w http.ResponseWriter, r *http.Request) {
	res, err := h.scraper.ProxyIP(r.Context())
	h.respondResult(w, "proxy ip", res, err)
}

func (h *Handlers) DebugTrace(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		h.respondError(w, http.StatusBadRequest, "missing url")
		return
	}

	res, err := h.scraper.Trace(r.Context(), url)
	h.respondResult(w, "trace", res, err)
}

func (h *Handlers) DebugMyAccount(w http.ResponseWriter, r *http.Request) {
	res, err := h.scraper.MyAccount(r.Context())
	h.respondResult(w, "my account", res, err)
}

// DebugArtifact serves a captured screenshot or DOM file. Only files inside
// the diagnostics directory are reachable.
func (h *Handlers) DebugArtifact(w http.ResponseWriter, r *http.Request) {
	requested := r.URL.Query().Get("path")
	if requested == "" {
		h.respondError(w, http.StatusBadRequest, "missing path")
		return
	}

	path, err := h.artifacts.Resolve(requested)
	switch {
	case errors.Is(err, diagnostics.ErrOutsideDir):
		h.respondError(w, http.StatusBadRequest, "invalid path")
		return
	case errors.Is(err, fs.ErrNotExist):
		h.respondError(w, http.StatusNotFound, "not found")
		return
	case err != nil:
		h.logger.Error("failed to resolve artifact", "error", err, "path", requested)
		h.respondError(w, http.StatusInternalServerError, "failed to resolve artifact")
		return
	}

	http.ServeFile(w, r, path)
}

func (h *Handlers) decodeURL(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req URLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return "", false
	}
	if req.URL == "" {
		h.respondError(w, http.StatusBadRequest, "missing url")
		return "", false
	}
	return req.URL, true
}

// respondResult writes an operation result. Operational failures are part of
// the payload and still answer 200; only an engine failure is a 500.
func (h *Handlers) respondResult(w http.ResponseWriter, op string, data any, err error) {
	if err != nil {
		h.logger.Error("operation failed", "op", op, "error", err)
		h.respondError(w, http.StatusInternalServerError, "browser unavailable")
		return
	}
	h.respondJSON(w, http.StatusOK, data)
}

// Helper methods
func (h *Handlers) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handlers) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
