package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rocketscienceinc/tictactoe-arena/internal/session"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

type statsResponse struct {
	session.Snapshot
	GamesArchived *int64 `json:"games_archived,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func pingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

func (that *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "statsHandler")

	response := statsResponse{Snapshot: that.coordinator.Snapshot()}

	if that.archive != nil {
		archived, err := that.archive.GamesPlayed(r.Context())
		if err != nil {
			log.Warn("failed to read archived games", "error", err)
		} else {
			response.GamesArchived = &archived
		}
	}

	that.writeJSON(w, http.StatusOK, response)
}

func (that *Server) gamesHandler(w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "gamesHandler")

	if that.archive == nil {
		that.writeJSON(w, http.StatusNotFound, errorResponse{Error: "game archive is disabled"})
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			that.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive number"})
			return
		}

		limit = min(parsed, maxHistoryLimit)
	}

	results, err := that.archive.History(r.Context(), limit)
	if err != nil {
		log.Error("failed to read game history", "error", err)
		that.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read game history"})
		return
	}

	that.writeJSON(w, http.StatusOK, results)
}

func (that *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		that.logger.Error("failed to write response", "error", err)
	}
}
