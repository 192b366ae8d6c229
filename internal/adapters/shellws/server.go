package shellws

import (
	"DeskRelay/internal/core/ports"
	"DeskRelay/internal/shared/config"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	handshakeTimeout = 10 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// Server hosts the loopback websocket endpoint the desktop shell dials.
// It owns the connection, performs the hello/welcome handshake, and
// exposes the attached controller through ports.ControllerProvider.
type Server struct {
	cfg      *config.RelayConfig
	log      zerolog.Logger
	upgrader websocket.Upgrader
	listener net.Listener
	httpSrv  *http.Server

	connMu sync.Mutex
	conn   *websocket.Conn

	ctrlMu sync.RWMutex
	ctrl   *controller
}

var _ ports.ControllerProvider = (*Server)(nil) // Ensure compliance

// NewServer validates the listen address and binds it. Serving begins
// with Start.
func NewServer(cfg *config.RelayConfig, baseLogger *zerolog.Logger) (*Server, error) {
	log := baseLogger.With().Str("component", "shell_ws").Logger()

	if err := validateLoopback(cfg.ListenAddr); err != nil {
		return nil, err
	}

	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		log.Error().Err(err).Str("addr", cfg.ListenAddr).Msg("Failed to bind shell endpoint")
		return nil, err
	}

	return &Server{
		cfg:      cfg,
		log:      log,
		listener: listener,
		upgrader: websocket.Upgrader{
			// Loopback only; the hello token gates access, not the
			// Origin header the shell happens to send.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}, nil
}

// validateLoopback rejects listen addresses that would expose the
// endpoint beyond the local machine.
func validateLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid listen address %q: %w", addr, err)
	}
	if host == "localhost" {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("shell endpoint must bind a loopback address, got %q", addr)
	}
	return nil
}

// Addr returns the bound listen address, useful when the configured
// port is 0.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Controller returns the attached shell controller, or nil before the
// first completed handshake. Reconnects keep the same controller.
func (s *Server) Controller() ports.ShellController {
	s.ctrlMu.RLock()
	defer s.ctrlMu.RUnlock()
	if s.ctrl == nil {
		return nil
	}
	return s.ctrl
}

// Start serves the endpoint until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/shell", s.handleShell)
	s.httpSrv = &http.Server{Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	s.log.Info().Str("addr", s.Addr()).Msg("Shell endpoint listening")

	select {
	case <-ctx.Done():
		s.shutdown()
		return nil
	case err := <-errCh:
		s.log.Error().Err(err).Msg("Shell endpoint failed")
		return err
	}
}

// shutdown stops the HTTP server, drops the live connection, and closes
// the worker channel so consumers see the end of the stream.
func (s *Server) shutdown() {
	s.log.Info().Msg("Shutting down shell endpoint...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		s.log.Error().Err(err).Msg("Shell endpoint shutdown error")
	}

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	s.ctrlMu.RLock()
	if s.ctrl != nil {
		s.ctrl.closeWorker()
	}
	s.ctrlMu.RUnlock()

	s.log.Info().Msg("Shell endpoint stopped")
}

// handleShell upgrades the connection, runs the handshake, and then
// pumps frames until the connection dies.
func (s *Server) handleShell(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("Shell upgrade failed")
		return
	}

	if err := s.handshake(conn); err != nil {
		s.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("Shell handshake failed")
		conn.Close()
		return
	}

	s.attach(conn)
	s.readLoop(conn)
}

// handshake expects a hello frame (with the shared token when one is
// configured) and answers with welcome.
func (s *Server) handshake(conn *websocket.Conn) error {
	if err := conn.SetReadDeadline(time.Now().Add(handshakeTimeout)); err != nil {
		return err
	}
	defer conn.SetReadDeadline(time.Time{})

	var hello helloFrame
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if hello.Type != frameHello {
		return fmt.Errorf("expected hello frame, got %q", hello.Type)
	}
	if s.cfg.ShellToken != "" && hello.Token != s.cfg.ShellToken {
		return errors.New("hello token mismatch")
	}

	return conn.WriteJSON(welcomeFrame{Type: frameWelcome})
}

// attach swaps in the new connection. The controller is created on the
// first attach and survives reconnects, so wiring done against it stays
// valid.
func (s *Server) attach(conn *websocket.Conn) {
	s.connMu.Lock()
	old := s.conn
	s.conn = conn
	s.connMu.Unlock()

	if old != nil {
		old.Close()
		s.log.Info().Msg("Shell reconnected, previous connection dropped")
	}

	s.ctrlMu.Lock()
	if s.ctrl == nil {
		s.ctrl = newController(s)
		s.log.Info().Msg("Shell controller attached")
	}
	s.ctrlMu.Unlock()
}

// readLoop forwards inbound frames to the controller until the
// connection errors out.
func (s *Server) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.connMu.Lock()
			current := s.conn == conn
			if current {
				s.conn = nil
			}
			s.connMu.Unlock()

			if current {
				s.log.Info().Err(err).Msg("Shell connection closed")
			}
			return
		}

		s.ctrlMu.RLock()
		ctrl := s.ctrl
		s.ctrlMu.RUnlock()
		if ctrl != nil {
			ctrl.handleFrame(data)
		}
	}
}

// send writes a frame to the current connection. gorilla allows one
// concurrent writer, hence the lock.
func (s *Server) send(frame interface{}) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn == nil {
		return errors.New("shell is not connected")
	}
	return s.conn.WriteJSON(frame)
}
