package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/certen-labs/fedbridge/pkg/store"
)

// swapReader is the narrow swap-store surface the HTTP API needs —
// read-only, matching this package's no-write-paths rule.
type swapReader interface {
	Get(ctx context.Context, id uuid.UUID) (*store.Swap, error)
	GetByNonce(ctx context.Context, direction store.Direction, nonce int64) (*store.Swap, error)
	ListByStatus(ctx context.Context, direction store.Direction, status store.Status) ([]*store.Swap, error)
}

// SwapHandlers serves read-only lookups over recorded swaps, for
// operators and for the counterparty side of a transfer to check
// progress without a database credential.
type SwapHandlers struct {
	swaps swapReader
}

// NewSwapHandlers returns SwapHandlers backed by swaps.
func NewSwapHandlers(swaps swapReader) *SwapHandlers {
	return &SwapHandlers{swaps: swaps}
}

// HandleGetSwap serves GET /api/swaps/{id}, {id} being either a swap
// UUID or, prefixed with its direction, a nonce (e.g.
// "eth_to_scrt:42").
func (h *SwapHandlers) HandleGetSwap(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/api/swaps/")
	if key == "" {
		writeError(w, http.StatusBadRequest, "missing swap identifier")
		return
	}

	var (
		swap *store.Swap
		err  error
	)
	if direction, nonceStr, ok := strings.Cut(key, ":"); ok {
		nonce, parseErr := strconv.ParseInt(nonceStr, 10, 64)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid nonce")
			return
		}
		swap, err = h.swaps.GetByNonce(r.Context(), store.Direction(direction), nonce)
	} else {
		id, parseErr := uuid.Parse(key)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid swap id")
			return
		}
		swap, err = h.swaps.Get(r.Context(), id)
	}

	if errors.Is(err, store.ErrSwapNotFound) {
		writeError(w, http.StatusNotFound, "swap not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load swap")
		return
	}

	writeJSON(w, http.StatusOK, swap)
}

// HandleListSwaps serves GET /api/swaps?direction=...&status=...,
// listing swaps in a given pipeline stage for operator dashboards.
func (h *SwapHandlers) HandleListSwaps(w http.ResponseWriter, r *http.Request) {
	direction := store.Direction(r.URL.Query().Get("direction"))
	status := store.Status(r.URL.Query().Get("status"))
	if direction == "" || status == "" {
		writeError(w, http.StatusBadRequest, "direction and status query parameters are required")
		return
	}

	swaps, err := h.swaps.ListByStatus(r.Context(), direction, status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list swaps")
		return
	}
	writeJSON(w, http.StatusOK, swaps)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

var (
	_ swapReader = (*store.SwapStore)(nil)
	_ swapReader = (*store.MemorySwapStore)(nil)
)
