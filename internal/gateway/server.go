package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	"github.com/MrWong99/salutespeech-gateway/pkg/wyoming"
)

// shutdownGrace bounds how long the WebSocket HTTP server waits for its own
// shutdown before sessions are cancelled.
const shutdownGrace = 5 * time.Second

// Server accepts connections on one listen URI and runs a [Handler] session
// per connection. Supported schemes are tcp://host:port, unix:///path and
// ws://host:port/path.
type Server struct {
	handler *Handler
	uri     *url.URL

	ln    net.Listener
	ready atomic.Bool

	// mu guards draining so no session is added once Serve waits on wg.
	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
}

// NewServer validates uri and returns an unstarted Server.
func NewServer(uri string, h *Handler) (*Server, error) {
	if h == nil {
		return nil, errors.New("gateway: handler must not be nil")
	}
	u, err := ParseListenURI(uri)
	if err != nil {
		return nil, err
	}
	return &Server{handler: h, uri: u}, nil
}

// ParseListenURI parses and validates a listen URI.
func ParseListenURI(uri string) (*url.URL, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("gateway: parse listen uri %q: %w", uri, err)
	}
	switch u.Scheme {
	case "tcp", "ws":
		if u.Host == "" {
			return nil, fmt.Errorf("gateway: listen uri %q: missing host:port", uri)
		}
	case "unix":
		if u.Path == "" {
			return nil, fmt.Errorf("gateway: listen uri %q: missing socket path", uri)
		}
	default:
		return nil, fmt.Errorf("gateway: listen uri %q: unsupported scheme %q", uri, u.Scheme)
	}
	return u, nil
}

// Listen binds the listener. It must be called before [Server.Serve].
func (s *Server) Listen() error {
	network, addr := "tcp", s.uri.Host
	if s.uri.Scheme == "unix" {
		network, addr = "unix", s.uri.Path
		if err := os.Remove(addr); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("gateway: remove stale socket: %w", err)
		}
	}
	ln, err := net.Listen(network, addr)
	if err != nil {
		return fmt.Errorf("gateway: listen %s: %w", s.uri, err)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound address. Valid after [Server.Listen].
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Close releases the listener of a server that was never served. Closing an
// already closed listener is not an error.
func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// Ready reports whether the server is accepting connections.
func (s *Server) Ready() bool {
	return s.ready.Load()
}

// Serve accepts connections until ctx is cancelled, then closes the listener,
// cancels all sessions and waits for them to finish.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		return errors.New("gateway: Serve called before Listen")
	}
	slog.Info("gateway listening", "uri", s.uri.String(), "addr", s.ln.Addr().String())
	s.ready.Store(true)
	defer s.ready.Store(false)

	var err error
	if s.uri.Scheme == "ws" {
		err = s.serveWebSocket(ctx)
	} else {
		err = s.serveStream(ctx)
	}
	s.drain()
	return err
}

// track registers a new session. It reports false once the server drains.
func (s *Server) track() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draining {
		return false
	}
	s.wg.Add(1)
	return true
}

// drain refuses further sessions and waits for the running ones.
func (s *Server) drain() {
	s.mu.Lock()
	s.draining = true
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Server) serveStream(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.ln.Close() })
	defer stop()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("gateway: accept: %w", err)
		}
		if !s.track() {
			_ = conn.Close()
			return nil
		}
		go func() {
			defer s.wg.Done()
			defer conn.Close()
			s.serveConn(ctx, conn, conn.RemoteAddr().String())
		}()
	}
}

func (s *Server) serveWebSocket(ctx context.Context) error {
	path := s.uri.Path
	if path == "" {
		path = "/"
	}
	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			slog.Warn("gateway: websocket accept failed", "remote", r.RemoteAddr, "err", err)
			return
		}
		if !s.track() {
			_ = c.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}
		defer s.wg.Done()
		c.SetReadLimit(wyoming.MaxHeaderBytes + wyoming.MaxDataBytes + wyoming.MaxPayloadBytes)
		nc := websocket.NetConn(ctx, c, websocket.MessageBinary)
		defer nc.Close()
		s.serveConn(ctx, nc, r.RemoteAddr)
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(s.ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("gateway: websocket server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	}
}

func (s *Server) serveConn(ctx context.Context, conn net.Conn, remote string) {
	log := slog.With("remote", remote)
	log.Debug("client connected")
	if err := s.handler.Serve(ctx, conn); err != nil {
		log.Warn("session ended with error", "err", err)
		return
	}
	log.Debug("client disconnected")
}
