// Package socketio provides the Socket.io server for page communication.
package socketio

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"

	"github.com/edumarques81/serenata/internal/domain/playback"
	"github.com/edumarques81/serenata/internal/domain/session"
)

// DefaultPushWindow is the debounce window for state pushes.
const DefaultPushWindow = 50 * time.Millisecond

// Options configures the server.
type Options struct {
	// MaxExternal caps concurrent non-loopback pages. Zero means unlimited.
	MaxExternal int
	// PushWindow is the debounce window for state pushes.
	PushWindow time.Duration
	// NewWidget replaces the page-hosted widget, e.g. with server-side MPD
	// output. Nil keeps playback in the browser.
	NewWidget playback.WidgetFactory
}

// Server handles Socket.io connections and events.
type Server struct {
	io      *socket.Server
	manager *session.Manager
	limiter *ConnectionLimiter
	opts    Options

	mu      sync.RWMutex
	clients map[string]*pageClient
	sockets map[string]*socket.Socket
}

// NewServer creates a new Socket.io server.
func NewServer(manager *session.Manager, opts Options) (*Server, error) {
	if opts.PushWindow <= 0 {
		opts.PushWindow = DefaultPushWindow
	}

	sopts := socket.DefaultServerOptions()
	sopts.SetPingTimeout(20 * time.Second)
	sopts.SetPingInterval(25 * time.Second)
	sopts.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	s := &Server{
		io:      socket.NewServer(nil, sopts),
		manager: manager,
		opts:    opts,
		clients: make(map[string]*pageClient),
		sockets: make(map[string]*socket.Socket),
	}
	if opts.MaxExternal > 0 {
		s.limiter = NewConnectionLimiter(opts.MaxExternal)
	}

	s.setupHandlers()

	return s, nil
}

// setupHandlers registers the connection handler.
func (s *Server) setupHandlers() {
	s.io.On("connection", func(clients ...any) {
		client := clients[0].(*socket.Socket)
		clientID := string(client.Id())
		addr := remoteIP(client.Handshake().Address)

		log.Info().Str("id", clientID).Str("addr", addr).Msg("Page connected")

		pc := newPageClient(clientID, func(ev string, args ...any) {
			client.Emit(ev, args...)
		}, s.manager, s.opts)

		s.mu.Lock()
		s.clients[clientID] = pc
		s.sockets[clientID] = client
		s.mu.Unlock()

		if s.limiter != nil {
			if _, evicted := s.limiter.TryAdd(clientID, addr); evicted != "" {
				s.evict(evicted)
			}
		}

		client.On("disconnect", func(args ...any) {
			reason := ""
			if len(args) > 0 {
				if r, ok := args[0].(string); ok {
					reason = r
				}
			}
			log.Info().Str("id", clientID).Str("reason", reason).Msg("Page disconnected")
			s.dropClient(clientID)
		})

		pc.emit("pushServerInfo", GetServerInfo(s.opts.NewWidget != nil))

		for _, name := range pageEventNames() {
			event := name
			client.On(event, func(args ...any) {
				pc.dispatch(event, args)
			})
		}
	})
}

// evict disconnects a page pushed out by the connection limiter.
func (s *Server) evict(clientID string) {
	s.mu.RLock()
	sock := s.sockets[clientID]
	pc := s.clients[clientID]
	s.mu.RUnlock()

	if sock == nil {
		return
	}
	log.Info().Str("id", clientID).Msg("Evicting oldest external page")
	if pc != nil {
		pc.emit("pushError", errorPayload{Error: "connection limit reached", Code: "evicted"})
	}
	sock.Disconnect(true)
}

func (s *Server) dropClient(clientID string) {
	s.mu.Lock()
	pc := s.clients[clientID]
	delete(s.clients, clientID)
	delete(s.sockets, clientID)
	s.mu.Unlock()

	if s.limiter != nil {
		s.limiter.Remove(clientID)
	}
	if pc != nil {
		pc.close()
	}
}

// PlaylistChanged tells every page showing slug that its record changed on
// disk, so the page can reopen its session.
func (s *Server) PlaylistChanged(slug string) {
	s.mu.RLock()
	var pages []*pageClient
	for _, pc := range s.clients {
		if sess := pc.currentSession(); sess != nil && sess.Slug == slug {
			pages = append(pages, pc)
		}
	}
	s.mu.RUnlock()

	if len(pages) == 0 {
		return
	}
	log.Info().Str("slug", slug).Int("pages", len(pages)).Msg("Playlist changed")
	for _, pc := range pages {
		pc.emit("pushPlaylistChanged", map[string]any{"slug": slug})
	}
}

// ClientCount returns the number of connected pages.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// ServeHTTP implements http.Handler for the Socket.io server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.io.ServeHandler(nil).ServeHTTP(w, r)
}

// Close closes the Socket.io server.
func (s *Server) Close() error {
	s.mu.Lock()
	pages := make([]*pageClient, 0, len(s.clients))
	for _, pc := range s.clients {
		pages = append(pages, pc)
	}
	s.clients = make(map[string]*pageClient)
	s.sockets = make(map[string]*socket.Socket)
	s.mu.Unlock()

	for _, pc := range pages {
		pc.close()
	}
	s.io.Close(nil)
	return nil
}

// remoteIP strips a port from a handshake address.
func remoteIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
