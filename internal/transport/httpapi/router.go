// Package httpapi provides the REST surface: playlist records, resized
// images, health and version, plus the SPA and Socket.io mounts.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/edumarques81/serenata/internal/domain/artwork"
	"github.com/edumarques81/serenata/internal/domain/playlist"
	"github.com/edumarques81/serenata/internal/version"
)

// Lister is implemented by providers that can enumerate their slugs.
type Lister interface {
	Slugs() ([]string, error)
}

// Config wires the router's collaborators.
type Config struct {
	Provider playlist.Provider
	// Socket serves /socket.io/ when set.
	Socket http.Handler
	// Health reports the audio output's health; nil means always healthy.
	Health func() error
	// StaticDir serves a built SPA when set.
	StaticDir string
	// Images serves resized covers and photos when set.
	Images *artwork.Resizer
}

// NewRouter builds the HTTP handler.
func NewRouter(cfg Config) http.Handler {
	r := mux.NewRouter()
	r.Use(loggingMiddleware)

	if cfg.Socket != nil {
		r.PathPrefix("/socket.io/").Handler(cfg.Socket)
	}

	h := &playlistHandler{provider: cfg.Provider}
	r.HandleFunc("/api/playlist/{slug}", h.get).Methods(http.MethodGet)
	if lister, ok := cfg.Provider.(Lister); ok {
		r.HandleFunc("/api/playlists", listHandler(lister)).Methods(http.MethodGet)
	}

	r.HandleFunc("/health", healthHandler(cfg.Health)).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, version.GetInfo())
	}).Methods(http.MethodGet)

	if cfg.Images != nil {
		r.HandleFunc("/api/image", imageHandler(cfg.Images)).Methods(http.MethodGet)
	}

	if cfg.StaticDir != "" {
		log.Info().Str("dir", cfg.StaticDir).Msg("Serving static files")
		r.PathPrefix("/").Handler(spaHandler(cfg.StaticDir))
	}

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(r)
}

func healthHandler(check func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			if err := check(); err != nil {
				log.Warn().Err(err).Msg("Health check failed")
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "error", "mpd": "disconnected"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func listHandler(lister Lister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slugs, err := lister.Slugs()
		if err != nil {
			log.Error().Err(err).Msg("Failed to list playlists")
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if slugs == nil {
			slugs = []string{}
		}
		writeJSON(w, http.StatusOK, map[string][]string{"slugs": slugs})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
