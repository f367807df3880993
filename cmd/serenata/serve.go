package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/edumarques81/serenata/internal/clock"
	"github.com/edumarques81/serenata/internal/domain/artwork"
	"github.com/edumarques81/serenata/internal/domain/playback"
	"github.com/edumarques81/serenata/internal/domain/playlist"
	"github.com/edumarques81/serenata/internal/domain/session"
	"github.com/edumarques81/serenata/internal/infra/mpd"
	"github.com/edumarques81/serenata/internal/transport/httpapi"
	"github.com/edumarques81/serenata/internal/transport/socketio"
	"github.com/edumarques81/serenata/internal/version"
)

const (
	widgetPage = "page"
	widgetMPD  = "mpd"
)

type serveConfig struct {
	port        string
	dataDir     string
	staticDir   string
	imageCache  string
	widget      string
	mpdHost     string
	mpdPort     int
	mpdPassword string
	maxExternal int
	watch       bool
}

func newServeCmd() *cobra.Command {
	cfg := serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and Socket.io server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.widget != widgetPage && cfg.widget != widgetMPD {
				return fmt.Errorf("unknown widget %q (want %s or %s)", cfg.widget, widgetPage, widgetMPD)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.port, "port", "3001", "HTTP server port")
	f.StringVar(&cfg.dataDir, "data", "data", "Directory holding <slug>.json records")
	f.StringVar(&cfg.staticDir, "static", "", "Directory to serve static files from (optional)")
	f.StringVar(&cfg.imageCache, "image-cache", filepath.Join(os.TempDir(), "serenata-images"), "Directory for resized images")
	f.StringVar(&cfg.widget, "widget", widgetPage, "Audio output: page (browser player) or mpd (jukebox)")
	f.StringVar(&cfg.mpdHost, "mpd-host", "localhost", "MPD host")
	f.IntVar(&cfg.mpdPort, "mpd-port", 6600, "MPD port")
	f.StringVar(&cfg.mpdPassword, "mpd-password", "", "MPD password")
	f.IntVar(&cfg.maxExternal, "max-external", 0, "Maximum concurrent non-local pages (0 = unlimited)")
	f.BoolVar(&cfg.watch, "watch", true, "Reload records when files in the data directory change")

	return cmd
}

func runServer(ctx context.Context, cfg serveConfig) error {
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().Msgf("  %s", version.GetInfo().String())
	log.Info().Msg("  Romantic Presentation Server")
	log.Info().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Info().
		Str("port", cfg.port).
		Str("data", cfg.dataDir).
		Str("widget", cfg.widget).
		Int("max_external", cfg.maxExternal).
		Msg("Configuration")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	provider := playlist.NewFileProvider(cfg.dataDir)
	if cfg.watch {
		if err := provider.Watch(ctx); err != nil {
			return err
		}
		defer provider.Close()
	}

	var (
		newWidget playback.WidgetFactory
		health    func() error
	)
	if cfg.widget == widgetMPD {
		log.Info().Str("mpd_host", cfg.mpdHost).Int("mpd_port", cfg.mpdPort).
			Bool("password_set", cfg.mpdPassword != "").Msg("Using MPD output")

		mpdClient := mpd.NewClient(cfg.mpdHost, cfg.mpdPort, cfg.mpdPassword)
		if err := mpdClient.Connect(); err != nil {
			return err
		}
		defer mpdClient.Close()

		output := mpd.NewOutput(mpdClient)
		events, err := mpdClient.Watch(ctx, "player")
		if err != nil {
			return err
		}
		go output.Run(ctx, events)

		newWidget = output.NewWidget
		health = mpdClient.Ping
	}

	manager := session.NewManager(provider, session.Options{Clock: clock.New()})
	defer manager.CloseAll()

	socketServer, err := socketio.NewServer(manager, socketio.Options{
		MaxExternal: cfg.maxExternal,
		NewWidget:   newWidget,
	})
	if err != nil {
		return fmt.Errorf("failed to create Socket.io server: %w", err)
	}
	defer socketServer.Close()

	provider.OnChange(socketServer.PlaylistChanged)

	var images *artwork.Resizer
	if cfg.staticDir != "" {
		images = artwork.NewResizer(cfg.staticDir, cfg.imageCache)
	}

	server := &http.Server{
		Addr: net.JoinHostPort("", cfg.port),
		Handler: httpapi.NewRouter(httpapi.Config{
			Provider:  provider,
			Socket:    socketServer,
			Health:    health,
			StaticDir: cfg.staticDir,
			Images:    images,
		}),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Starting HTTP server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
	log.Info().Msg("Server stopped")
	return nil
}
