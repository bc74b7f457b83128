package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/shubham-shewale/market-beat/pkg/models"
)

// Market is the read side of the store.
type Market interface {
	GetAll() []models.Asset
	GetByID(id string) (models.Asset, bool)
	LastUpdated() int64
}

// Feed is the control side of the scheduler.
type Feed interface {
	Start(ctx context.Context)
	Stop()
	Running() bool
}

type MarketResponse struct {
	Assets      []models.Asset `json:"assets"`
	LastUpdated int64          `json:"last_updated"`
}

type FeedResponse struct {
	Running bool `json:"running"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	market Market
	feed   Feed
	logger *zap.Logger
	// base outlives the request so a started feed keeps running
	base context.Context
}

func NewHandler(base context.Context, market Market, feed Feed, logger *zap.Logger) *Handler {
	return &Handler{market: market, feed: feed, logger: logger, base: base}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Route("/assets", func(r chi.Router) {
		r.Get("/", h.listAssets)
		r.Get("/{id}", h.getAsset)
	})

	r.Route("/feed", func(r chi.Router) {
		r.Get("/", h.feedStatus)
		r.Post("/start", h.startFeed)
		r.Post("/stop", h.stopFeed)
	})
	return r
}

func (h *Handler) listAssets(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, MarketResponse{
		Assets:      h.market.GetAll(),
		LastUpdated: h.market.LastUpdated(),
	})
}

func (h *Handler) getAsset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	asset, ok := h.market.GetByID(id)
	if !ok {
		h.writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown asset: " + id})
		return
	}
	h.writeJSON(w, http.StatusOK, asset)
}

func (h *Handler) feedStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, FeedResponse{Running: h.feed.Running()})
}

func (h *Handler) startFeed(w http.ResponseWriter, r *http.Request) {
	h.feed.Start(h.base)
	h.writeJSON(w, http.StatusAccepted, FeedResponse{Running: h.feed.Running()})
}

func (h *Handler) stopFeed(w http.ResponseWriter, r *http.Request) {
	h.feed.Stop()
	h.writeJSON(w, http.StatusAccepted, FeedResponse{Running: h.feed.Running()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Response encode failed", zap.Error(err))
	}
}
