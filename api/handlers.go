// Package api serves the small HTTP surface next to the websocket
// endpoints: game-auth token minting and duel history.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"duel-game-server/auth"
	"duel-game-server/storage"
	"duel-game-server/store"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	Verifier  *auth.Verifier
	KV        *store.KV
	DuelStore *storage.Store
}

// NewHandler creates a new API handler with the given dependencies.
func NewHandler(verifier *auth.Verifier, kv *store.KV, duels *storage.Store) *Handler {
	return &Handler{Verifier: verifier, KV: kv, DuelStore: duels}
}

// Register installs the API routes.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /gam/api/v1/get_auth_token/{$}", h.GetAuthToken)
	mux.HandleFunc("GET /gam/api/v1/history/{$}", h.History)
}

// GetAuthToken mints a single-use game-auth token for the user proven
// by the directory cookie pair. The token is consumed on the first
// game websocket attach.
func (h *Handler) GetAuthToken(w http.ResponseWriter, r *http.Request) {
	username, err := h.Verifier.UsernameFromRequest(r)
	if err != nil {
		slog.Debug("auth token request rejected", "tag", "api", "err", err)
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}

	token, err := h.KV.GenerateGameToken(r.Context(), username)
	if err != nil {
		slog.Error("minting game token", "tag", "api", "username", username, "err", err)
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, map[string]string{"token": token})
}

// History returns the authenticated user's duel history.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	username, err := h.Verifier.UsernameFromRequest(r)
	if err != nil {
		http.Error(w, "authorization required", http.StatusUnauthorized)
		return
	}

	records, err := h.DuelStore.ListByUsername(r.Context(), username)
	if err != nil {
		slog.Error("loading duel history", "tag", "api", "username", username, "err", err)
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []storage.DuelRecord{}
	}
	writeJSON(w, records)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "tag", "api", "err", err)
	}
}
