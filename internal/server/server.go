package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/msgsrv/internal/config"
	"github.com/muurk/msgsrv/internal/discovery"
	"github.com/muurk/msgsrv/internal/logging"
	"github.com/muurk/msgsrv/internal/pool"
	"github.com/muurk/msgsrv/internal/protocol"
	"github.com/muurk/msgsrv/internal/registry"
	"go.uber.org/zap"
)

// ErrServerStopped is returned by Run once the server has been stopped.
var ErrServerStopped = errors.New("server: stopped")

// ErrServerRunning is returned by Run when the accept loop is already running.
var ErrServerRunning = errors.New("server: already running")

// Server accepts client connections and services them on a bounded worker pool.
type Server struct {
	config   *config.Config
	framing  protocol.Framing
	listener *net.TCPListener

	wsListener net.Listener
	wsServer   *http.Server
	upgrader   websocket.Upgrader

	pool     *pool.Pool
	registry *registry.Registry

	// admitMu orders admission against Stop: a connection that saw the
	// running flag set is registered and scheduled before the flag drops.
	admitMu sync.RWMutex

	started  atomic.Bool
	running  atomic.Bool
	stopping atomic.Bool
	stopped  atomic.Bool
	done     chan struct{}
}

// New binds the listeners described by cfg. It does not accept connections
// until Run is called. A nil cfg uses config.Default.
func New(cfg *config.Config) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l, err := net.Listen("tcp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s: %w", cfg.Address, err)
	}
	tcpListener, ok := l.(*net.TCPListener)
	if !ok {
		_ = l.Close()
		return nil, fmt.Errorf("unexpected listener type %T", l)
	}

	s := &Server{
		config:   cfg,
		framing:  cfg.FramingMode(),
		listener: tcpListener,
		pool:     pool.New(cfg.PoolSize),
		registry: registry.New(),
		done:     make(chan struct{}),
	}

	if cfg.WebSocket.Address != "" {
		if err := s.bindWebSocket(); err != nil {
			_ = tcpListener.Close()
			s.pool.Close()
			return nil, err
		}
	}

	logging.Info("Server listening for connections",
		zap.String("addr", s.Addr()),
		zap.Int("pool_size", cfg.PoolSize),
		zap.String("framing", string(s.framing)),
	)
	return s, nil
}

// Run accepts connections until Stop is called. Each accepted connection is
// registered and handed to the worker pool.
func (s *Server) Run() error {
	if s.stopped.Load() {
		return ErrServerStopped
	}
	if !s.started.CompareAndSwap(false, true) {
		return ErrServerRunning
	}
	defer close(s.done)

	s.running.Store(true)
	logging.Info("Server is running", zap.String("addr", s.Addr()))

	if s.wsServer != nil {
		go s.serveWebSocket()
	}

	if s.config.Advertise.Enabled {
		adv, err := discovery.Advertise(s.config.Advertise.Instance, s.port(), s.advertiseText())
		if err != nil {
			logging.Warn("Failed to advertise service", zap.Error(err))
		} else {
			defer adv.Shutdown()
		}
	}

	err := s.acceptLoop()

	logging.Info("Server stopped.")
	s.closeListeners()
	s.pool.Close()
	return err
}

func (s *Server) acceptLoop() error {
	for s.running.Load() {
		if err := s.listener.SetDeadline(time.Now().Add(s.config.PollInterval)); err != nil {
			return fmt.Errorf("failed to set accept deadline: %w", err)
		}

		conn, err := s.listener.AcceptTCP()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				// No pending connection.
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				s.running.Store(false)
				s.stopped.Store(true)
				return fmt.Errorf("listener closed: %w", err)
			}
			logging.Error("Error accepting connection", zap.Error(err))
			continue
		}

		s.accept(newTCPStream(conn, s.framing, s.config.ReadBufferSize))
	}
	return nil
}

// accept registers st and schedules it on the pool. Connections arriving
// after the running flag dropped are closed without being serviced.
func (s *Server) accept(st stream) {
	c := newConn(st, s.config.IdleTimeout)
	logging.LogConnection(c.RemoteAddr(), "connection_accepted")

	s.admitMu.RLock()
	defer s.admitMu.RUnlock()

	if !s.running.Load() {
		_ = c.Close()
		logging.LogConnection(c.RemoteAddr(), "connection_rejected")
		return
	}

	s.registry.Insert(c)
	if err := s.pool.Execute(func() { s.serve(c) }); err != nil {
		logging.Error("Failed to schedule connection",
			zap.String("remote_addr", c.RemoteAddr()),
			zap.Error(err),
		)
		s.registry.Remove(c)
		_ = c.Close()
	}
}

// serve runs on a pool worker for the lifetime of one connection.
func (s *Server) serve(c *Conn) {
	remoteAddr := c.RemoteAddr()

	defer func() {
		s.registry.Remove(c)
		_ = c.Close()
		logging.LogConnection(remoteAddr, "connection_closed")
	}()

	for s.running.Load() {
		if err := c.Handle(); err != nil {
			if errors.Is(err, errPeerClosed) {
				logging.Info("Client disconnected", zap.String("remote_addr", remoteAddr))
			} else if !s.running.Load() {
				logging.Info("Connection interrupted by shutdown",
					zap.String("remote_addr", remoteAddr),
					zap.Error(err),
				)
			} else {
				logging.Error("Error handling client",
					zap.String("remote_addr", remoteAddr),
					zap.Error(err),
				)
			}
			return
		}
	}
}

// Stop notifies every connected client, stops the accept loop and waits for
// all connection workers to finish. Calling Stop on a server that is not
// running logs a warning and returns.
func (s *Server) Stop() {
	if !s.running.Load() || !s.stopping.CompareAndSwap(false, true) {
		logging.Warn("Server was already stopped or not running")
		return
	}

	logging.Info("Server stopping", zap.Int("active_connections", s.registry.Len()))

	s.NotifyClientsOfShutdown()

	s.admitMu.Lock()
	s.running.Store(false)
	s.stopped.Store(true)
	s.admitMu.Unlock()

	s.join()

	logging.Info("Shutdown complete")
	logging.Sync()
}

// join waits for the pool to go idle. With a drain timeout, connections still
// blocked in a read once the timeout expires are interrupted.
func (s *Server) join() {
	if s.config.DrainTimeout <= 0 {
		s.pool.Join()
		return
	}

	joined := make(chan struct{})
	go func() {
		s.pool.Join()
		close(joined)
	}()

	select {
	case <-joined:
		return
	case <-time.After(s.config.DrainTimeout):
		n := s.registry.Interrupt()
		logging.Warn("Drain timeout reached, interrupting connections",
			zap.Duration("drain_timeout", s.config.DrainTimeout),
			zap.Int("connections", n),
		)
	}
	<-joined
}

// NotifyClientsOfShutdown writes the shutdown notice to every registered
// connection and returns how many writes succeeded.
func (s *Server) NotifyClientsOfShutdown() int {
	payload, err := protocol.EncodeResponse(protocol.ShutdownNotice())
	if err != nil {
		logging.Error("Failed to encode shutdown notice", zap.Error(err))
		return 0
	}

	sent, failed := s.registry.Broadcast(payload)
	logging.Info("Notified clients of shutdown",
		zap.Int("sent", sent),
		zap.Int("failed", failed),
	)
	return sent
}

// Addr returns the TCP listener address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// WebSocketAddr returns the WebSocket listener address, or "" when the
// gateway is disabled.
func (s *Server) WebSocketAddr() string {
	if s.wsListener == nil {
		return ""
	}
	return s.wsListener.Addr().String()
}

// ActiveConnections returns the number of registered connections.
func (s *Server) ActiveConnections() int {
	return s.registry.Len()
}

// Running reports whether the accept loop is running.
func (s *Server) Running() bool {
	return s.running.Load()
}

// Done is closed when Run returns.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

func (s *Server) closeListeners() {
	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		logging.Error("Error closing listener", zap.Error(err))
	}

	if s.wsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		defer cancel()
		if err := s.wsServer.Shutdown(ctx); err != nil {
			logging.Error("Error closing WebSocket listener", zap.Error(err))
		}
	}
}

func (s *Server) port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

func (s *Server) advertiseText() []string {
	txt := []string{"framing=" + string(s.framing)}
	if s.wsListener != nil {
		txt = append(txt, "ws_path="+s.config.WebSocket.Path)
		if tcpAddr, ok := s.wsListener.Addr().(*net.TCPAddr); ok {
			txt = append(txt, fmt.Sprintf("ws_port=%d", tcpAddr.Port))
		}
	}
	return txt
}
