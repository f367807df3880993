package httpapi

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/serenata/internal/domain/playlist"
)

type playlistHandler struct {
	provider playlist.Provider
}

// get serves GET /api/playlist/{slug}: the record as stored, 404 for an
// unknown slug, 500 when the file cannot be read or parsed.
func (h *playlistHandler) get(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	rec, err := h.provider.Get(r.Context(), slug)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, rec)
	case errors.Is(err, playlist.ErrNotFound), errors.Is(err, playlist.ErrInvalidSlug):
		writeError(w, http.StatusNotFound, "playlist not found")
	default:
		log.Error().Err(err).Str("slug", slug).Msg("Failed to load playlist")
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
