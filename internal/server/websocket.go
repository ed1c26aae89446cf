package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/msgsrv/internal/logging"
	"go.uber.org/zap"
)

// Time allowed to complete the HTTP upgrade request
const readHeaderTimeout = 5 * time.Second

func (s *Server) bindWebSocket() error {
	addr := s.config.WebSocket.Address

	l, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind WebSocket listener %s: %w", addr, err)
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  s.config.ReadBufferSize,
		WriteBufferSize: s.config.ReadBufferSize,
		// Any origin is accepted.
		CheckOrigin: func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc(s.config.WebSocket.Path, s.handleWebSocket)

	s.wsListener = l
	s.wsServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return nil
}

func (s *Server) serveWebSocket() {
	logging.Info("WebSocket gateway listening",
		zap.String("addr", s.WebSocketAddr()),
		zap.String("path", s.config.WebSocket.Path),
	)

	if err := s.wsServer.Serve(s.wsListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Error("WebSocket gateway failed", zap.Error(err))
	}
}

// handleWebSocket upgrades the request and hands the connection to the
// same pool and registry as TCP clients.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if !s.running.Load() {
		http.Error(w, "server is shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		logging.Warn("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}
	conn.SetReadLimit(int64(s.config.ReadBufferSize))

	logging.LogConnection(conn.RemoteAddr().String(), "websocket_upgraded")
	s.accept(&wsStream{conn: conn})
}

// wsStream carries one message per WebSocket data frame.
type wsStream struct {
	conn *websocket.Conn
}

func (s *wsStream) ReadFrame() ([]byte, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) ||
			errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return data, nil
}

func (s *wsStream) WriteFrame(payload []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, payload)
}

func (s *wsStream) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

func (s *wsStream) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func (s *wsStream) Close() error {
	return s.conn.Close()
}
