// Package handler serves the registry snapshot and read-only food and
// location views over HTTP.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"foodvote/internal/bank"
	"foodvote/internal/bank/loader"
	dErrors "foodvote/pkg/domain-errors"
	"foodvote/pkg/platform/httputil"
	"foodvote/pkg/requestcontext"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks VoteCounter

// Snapshots yields the registry snapshot in service.
type Snapshots interface {
	Current() *loader.Snapshot
}

// VoteCounter reads current vote counts.
type VoteCounter interface {
	Counts(ctx context.Context, ids []uint32) (map[uint32]int64, error)
}

// Handler wires registry endpoints.
type Handler struct {
	snapshots Snapshots
	votes     VoteCounter
	logger    *slog.Logger
}

// New constructs a registry handler.
func New(snapshots Snapshots, votes VoteCounter, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{snapshots: snapshots, votes: votes, logger: logger}
}

// Register mounts registry endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/registry", h.HandleSnapshot)
	r.Get("/registry/stats", h.HandleStats)
	r.Get("/foods/{id}", h.HandleFood)
	r.Get("/locations/{id}/menu", h.HandleMenu)
}

// HandleSnapshot handles GET /registry. Clients fetch the snapshot to learn
// the food ID order for their vote bitmaps, so it must never be served stale
// from a cache without revalidation.
func (h *Handler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.current(w)
	if !ok {
		return
	}
	etag := `"` + snap.Checksum + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "no-cache")
	if match := r.Header.Get("If-None-Match"); match != "" && etagMatches(match, etag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", bank.ContentType(snap.Raw))
	w.Header().Set("Content-Length", strconv.Itoa(len(snap.Raw)))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(snap.Raw)
	}
}

// StatsResponse summarizes the registry in service.
type StatsResponse struct {
	Foods          int    `json:"foods"`
	Locations      int    `json:"locations"`
	NextFoodID     uint32 `json:"next_food_id"`
	NextLocationID uint32 `json:"next_location_id"`
	MenuDate       string `json:"menu_date,omitempty"`
	Checksum       string `json:"checksum"`
	UpdatedAt      string `json:"updated_at,omitempty"`
	LoadedAt       string `json:"loaded_at"`
}

// HandleStats handles GET /registry/stats.
func (h *Handler) HandleStats(w http.ResponseWriter, _ *http.Request) {
	snap, ok := h.current(w)
	if !ok {
		return
	}
	st := snap.Registry.Stats()
	resp := StatsResponse{
		Foods:          st.Foods,
		Locations:      st.Locations,
		NextFoodID:     st.NextFoodID,
		NextLocationID: st.NextLocationID,
		MenuDate:       st.MenuDate,
		Checksum:       snap.Checksum,
		LoadedAt:       snap.LoadedAt.UTC().Format(time.RFC3339),
	}
	if !st.UpdatedAt.IsZero() {
		resp.UpdatedAt = st.UpdatedAt.UTC().Format(time.RFC3339)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// FoodResponse is a food with its current vote count.
type FoodResponse struct {
	ID       uint32 `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Votes    int64  `json:"votes"`
}

// HandleFood handles GET /foods/{id}.
func (h *Handler) HandleFood(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	snap, ok := h.current(w)
	if !ok {
		return
	}
	food, found := snap.Food(id)
	if !found {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("food %d not found", id)))
		return
	}

	counts, err := h.votes.Counts(ctx, []uint32{id})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to read vote count",
			"request_id", requestcontext.RequestID(ctx),
			"food_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, FoodResponse{
		ID:       food.ID,
		Name:     food.Name,
		Location: food.Location,
		Votes:    counts[id],
	})
}

// MenuResponse lists the foods served today at a location.
type MenuResponse struct {
	LocationID uint32   `json:"location_id"`
	Location   string   `json:"location"`
	Date       string   `json:"date,omitempty"`
	FoodIDs    []uint32 `json:"food_ids"`
}

// HandleMenu handles GET /locations/{id}/menu.
func (h *Handler) HandleMenu(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	snap, ok := h.current(w)
	if !ok {
		return
	}
	loc, found := snap.Location(id)
	if !found {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, fmt.Sprintf("location %d not found", id)))
		return
	}

	resp := MenuResponse{LocationID: loc.ID, Location: loc.Name, FoodIDs: []uint32{}}
	if menu := snap.Registry.Today; menu != nil {
		resp.Date = menu.Date
		resp.FoodIDs = menu.FoodsAt(loc.ID)
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) current(w http.ResponseWriter) (*loader.Snapshot, bool) {
	snap := h.snapshots.Current()
	if snap == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnavailable, "registry not loaded"))
		return nil, false
	}
	return snap, true
}

func parseID(raw string) (uint32, error) {
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, dErrors.New(dErrors.CodeBadRequest, fmt.Sprintf("invalid id %q", raw))
	}
	return uint32(id), nil
}

func etagMatches(header, etag string) bool {
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}
