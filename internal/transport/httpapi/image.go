package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/serenata/internal/domain/artwork"
)

// imageHandler serves /api/image?url=/covers/1.jpg&w=48, a downscaled JPEG
// of a local cover or photo.
func imageHandler(resizer *artwork.Resizer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		urlPath := q.Get("url")
		width, err := strconv.Atoi(q.Get("w"))
		if urlPath == "" || err != nil || width <= 0 {
			writeError(w, http.StatusBadRequest, "url and positive w are required")
			return
		}

		path, err := resizer.Resize(urlPath, width)
		switch {
		case errors.Is(err, artwork.ErrNotFound), errors.Is(err, artwork.ErrInvalidPath):
			writeError(w, http.StatusNotFound, "image not found")
			return
		case err != nil:
			log.Error().Err(err).Str("url", urlPath).Msg("Failed to resize image")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		w.Header().Set("Content-Type", "image/jpeg")
		w.Header().Set("Cache-Control", "public, max-age=86400")
		http.ServeFile(w, r, path)
	}
}
