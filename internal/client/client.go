package client

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/msgsrv/internal/logging"
	"github.com/muurk/msgsrv/internal/protocol"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single request/response exchange.
const DefaultTimeout = 5 * time.Second

// ErrEmptyMessage is returned when an empty payload would be sent over raw
// framing, where it cannot be told apart from no data at all.
var ErrEmptyMessage = errors.New("client: empty message cannot be sent with raw framing")

// ServerError is an ErrorResponse returned by the server.
type ServerError struct {
	Content string
}

func (e *ServerError) Error() string {
	return "server error: " + e.Content
}

// IsShutdown reports whether the server is shutting down.
func (e *ServerError) IsShutdown() bool {
	return e.Content == protocol.ShutdownText
}

// UnexpectedResponseError is returned when the server answers with a
// different response kind than the request called for.
type UnexpectedResponseError struct {
	Want string
	Got  protocol.Response
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected response: want %s, got %s", e.Want, e.Got)
}

// Options configures a client connection.
type Options struct {
	Framing        protocol.Framing // Must match the server (default raw)
	Timeout        time.Duration    // Per exchange (default DefaultTimeout)
	MaxMessageSize int              // Largest accepted response (default protocol.DefaultMaxMessageSize)
}

func (o Options) withDefaults() Options {
	if o.Framing == "" {
		o.Framing = protocol.FramingRaw
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = protocol.DefaultMaxMessageSize
	}
	return o
}

// transport moves whole messages.
type transport interface {
	ReadFrame() ([]byte, error)
	WriteFrame(payload []byte) error
	SetDeadline(t time.Time) error
	Close() error
}

// Client is a connection to a msgsrv server. It is not safe for concurrent use.
type Client struct {
	transport transport
	framing   protocol.Framing
	timeout   time.Duration
	addr      string
}

// Dial connects to a server over TCP.
func Dial(addr string, opts Options) (*Client, error) {
	opts = opts.withDefaults()
	if _, err := protocol.ParseFraming(string(opts.Framing)); err != nil {
		return nil, err
	}

	conn, err := net.DialTimeout("tcp", addr, opts.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	logging.Debug("Connected", zap.String("addr", addr), zap.String("framing", string(opts.Framing)))
	return &Client{
		transport: &tcpTransport{
			conn:    conn,
			reader:  protocol.NewFrameReader(conn, opts.Framing, opts.MaxMessageSize),
			framing: opts.Framing,
		},
		framing: opts.Framing,
		timeout: opts.Timeout,
		addr:    addr,
	}, nil
}

// DialWebSocket connects to a server's WebSocket gateway, e.g.
// "ws://localhost:8081/ws". opts.Framing is ignored.
func DialWebSocket(url string, opts Options) (*Client, error) {
	opts = opts.withDefaults()

	dialer := websocket.Dialer{HandshakeTimeout: opts.Timeout}
	conn, resp, err := dialer.Dial(url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to %s: %w (HTTP %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	conn.SetReadLimit(int64(opts.MaxMessageSize))

	logging.Debug("Connected", zap.String("url", url))
	return &Client{
		transport: &wsTransport{conn: conn},
		timeout:   opts.Timeout,
		addr:      url,
	}, nil
}

// Addr returns the address the client dialed.
func (c *Client) Addr() string {
	return c.addr
}

// Send encodes and writes one request.
func (c *Client) Send(req protocol.Request) error {
	payload, err := protocol.EncodeRequest(req)
	if err != nil {
		return err
	}
	return c.SendRaw(payload)
}

// SendRaw writes payload as one message without encoding it.
func (c *Client) SendRaw(payload []byte) error {
	if len(payload) == 0 && c.framing == protocol.FramingRaw {
		return ErrEmptyMessage
	}
	if err := c.transport.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return err
	}

	logging.LogMessage(c.addr, "sent", "request", payload)
	if err := c.transport.WriteFrame(payload); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// ReceiveRaw reads one message without decoding it.
func (c *Client) ReceiveRaw() ([]byte, error) {
	if err := c.transport.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return nil, err
	}

	data, err := c.transport.ReadFrame()
	if err != nil {
		return nil, fmt.Errorf("read failed: %w", err)
	}
	logging.LogMessage(c.addr, "received", "response", data)
	return data, nil
}

// Receive reads and decodes one response.
func (c *Client) Receive() (protocol.Response, error) {
	data, err := c.ReceiveRaw()
	if err != nil {
		return nil, err
	}
	return protocol.DecodeResponse(data)
}

// Do sends req and waits for its response.
func (c *Client) Do(req protocol.Request) (protocol.Response, error) {
	if err := c.Send(req); err != nil {
		return nil, err
	}
	return c.Receive()
}

// Echo asks the server to echo content back.
func (c *Client) Echo(content string) (string, error) {
	resp, err := c.Do(&protocol.EchoRequest{Content: content})
	if err != nil {
		return "", err
	}

	switch r := resp.(type) {
	case *protocol.EchoResponse:
		return r.Content, nil
	case *protocol.ErrorResponse:
		return "", &ServerError{Content: r.Content}
	default:
		return "", &UnexpectedResponseError{Want: "echo", Got: resp}
	}
}

// Add asks the server for a + b.
func (c *Client) Add(a, b int32) (int32, error) {
	resp, err := c.Do(&protocol.AddRequest{A: a, B: b})
	if err != nil {
		return 0, err
	}

	switch r := resp.(type) {
	case *protocol.AddResponse:
		return r.Result, nil
	case *protocol.ErrorResponse:
		return 0, &ServerError{Content: r.Content}
	default:
		return 0, &UnexpectedResponseError{Want: "add", Got: resp}
	}
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.transport.Close()
}

type tcpTransport struct {
	conn    net.Conn
	reader  protocol.FrameReader
	framing protocol.Framing
}

func (t *tcpTransport) ReadFrame() ([]byte, error) {
	return t.reader.ReadFrame()
}

func (t *tcpTransport) WriteFrame(payload []byte) error {
	_, err := t.conn.Write(protocol.AppendFrame(nil, t.framing, payload))
	return err
}

func (t *tcpTransport) SetDeadline(deadline time.Time) error {
	return t.conn.SetDeadline(deadline)
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) ReadFrame() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	return data, err
}

func (t *wsTransport) WriteFrame(payload []byte) error {
	return t.conn.WriteMessage(websocket.BinaryMessage, payload)
}

func (t *wsTransport) SetDeadline(deadline time.Time) error {
	if err := t.conn.SetReadDeadline(deadline); err != nil {
		return err
	}
	return t.conn.SetWriteDeadline(deadline)
}

func (t *wsTransport) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = t.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return t.conn.Close()
}
