package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/muurk/msgsrv/internal/logging"
	"github.com/muurk/msgsrv/internal/protocol"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second
)

// errPeerClosed is returned by Handle when the peer closed the connection
// cleanly. It ends the serve loop without a response.
var errPeerClosed = errors.New("peer closed connection")

// stream is a message-oriented transport: one ReadFrame returns one request.
type stream interface {
	ReadFrame() ([]byte, error)
	WriteFrame(payload []byte) error
	SetReadDeadline(t time.Time) error
	RemoteAddr() net.Addr
	Close() error
}

// Conn is a client connection being serviced by the server.
// Writes are serialized so a shutdown broadcast never interleaves with a response.
type Conn struct {
	stream      stream
	remoteAddr  string
	idleTimeout time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newConn(st stream, idleTimeout time.Duration) *Conn {
	return &Conn{
		stream:      st,
		remoteAddr:  st.RemoteAddr().String(),
		idleTimeout: idleTimeout,
	}
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.remoteAddr
}

// Handle reads one request, dispatches it and writes the response.
// It returns errPeerClosed when the peer has gone away.
func (c *Conn) Handle() error {
	if c.idleTimeout > 0 {
		if err := c.stream.SetReadDeadline(time.Now().Add(c.idleTimeout)); err != nil {
			return fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	data, err := c.stream.ReadFrame()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return errPeerClosed
		}
		return fmt.Errorf("read failed: %w", err)
	}

	resp := protocol.Dispatch(c.remoteAddr, data)

	payload, err := protocol.EncodeResponse(resp)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", resp, err)
	}

	logging.LogMessage(c.remoteAddr, "sent", resp.Kind(), payload)
	return c.WriteMessage(payload)
}

// WriteMessage frames payload and writes it to the peer.
func (c *Conn) WriteMessage(payload []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.stream.WriteFrame(payload); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// SetReadDeadline bounds the current or next read.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.stream.SetReadDeadline(t)
}

// Close closes the underlying stream. Safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.stream.Close()
	})
	return c.closeErr
}

// tcpStream carries messages over a TCP connection using the configured framing.
type tcpStream struct {
	conn    *net.TCPConn
	reader  protocol.FrameReader
	framing protocol.Framing
}

func newTCPStream(conn *net.TCPConn, framing protocol.Framing, maxSize int) *tcpStream {
	return &tcpStream{
		conn:    conn,
		reader:  protocol.NewFrameReader(conn, framing, maxSize),
		framing: framing,
	}
}

func (s *tcpStream) ReadFrame() ([]byte, error) {
	return s.reader.ReadFrame()
}

func (s *tcpStream) WriteFrame(payload []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	_, err := s.conn.Write(protocol.AppendFrame(nil, s.framing, payload))
	return err
}

func (s *tcpStream) SetReadDeadline(t time.Time) error {
	return s.conn.SetReadDeadline(t)
}

func (s *tcpStream) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

func (s *tcpStream) Close() error {
	return s.conn.Close()
}
