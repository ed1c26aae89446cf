package server

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/muurk/msgsrv/internal/client"
	"github.com/muurk/msgsrv/internal/config"
	"github.com/muurk/msgsrv/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 3 * time.Second

type testServer struct {
	*Server
	runErr chan error
}

// startServer runs a server on an ephemeral port and stops it when the test ends.
func startServer(t *testing.T, mutate func(cfg *config.Config)) *testServer {
	t.Helper()

	cfg := config.Default()
	cfg.Address = "127.0.0.1:0"
	cfg.PollInterval = 10 * time.Millisecond
	cfg.DrainTimeout = time.Second
	if mutate != nil {
		mutate(cfg)
	}

	srv, err := New(cfg)
	require.NoError(t, err)

	ts := &testServer{Server: srv, runErr: make(chan error, 1)}
	go func() { ts.runErr <- srv.Run() }()
	require.Eventually(t, srv.Running, waitFor, 5*time.Millisecond)

	t.Cleanup(func() {
		srv.Stop()
		select {
		case <-srv.Done():
		case <-time.After(waitFor):
			t.Error("Run did not return after Stop")
		}
	})
	return ts
}

func (ts *testServer) dial(t *testing.T) *client.Client {
	t.Helper()
	c, err := client.Dial(ts.Addr(), client.Options{
		Framing: ts.framing,
		Timeout: waitFor,
	})
	require.NoError(t, err)
	return c
}

func TestEcho(t *testing.T) {
	ts := startServer(t, nil)
	c := ts.dial(t)
	defer c.Close()

	for _, content := range []string{"hello", "", "héllo wörld ✓", "Bad Request!"} {
		got, err := c.Echo(content)
		require.NoError(t, err)
		assert.Equal(t, content, got)
	}
}

func TestAdd(t *testing.T) {
	ts := startServer(t, nil)
	c := ts.dial(t)
	defer c.Close()

	tests := []struct {
		a, b, want int32
	}{
		{10, 20, 30},
		{-5, 5, 0},
		{0, 0, 0},
		{-100, -23, -123},
		{math.MaxInt32, 1, math.MinInt32},
	}

	for _, tt := range tests {
		got, err := c.Add(tt.a, tt.b)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "Add(%d, %d)", tt.a, tt.b)
	}
}

func TestBadRequest(t *testing.T) {
	ts := startServer(t, nil)
	c := ts.dial(t)
	defer c.Close()

	require.NoError(t, c.SendRaw([]byte{0xDE, 0xAD, 0xBE, 0xEF}))
	resp, err := c.Receive()
	require.NoError(t, err)
	assert.Equal(t, protocol.BadRequest(), resp)

	// The connection stays usable after a bad request.
	got, err := c.Echo("still here")
	require.NoError(t, err)
	assert.Equal(t, "still here", got)
}

func TestSequentialRequests(t *testing.T) {
	ts := startServer(t, nil)
	c := ts.dial(t)
	defer c.Close()

	for i := 0; i < 20; i++ {
		if i%2 == 0 {
			want := fmt.Sprintf("message %d", i)
			got, err := c.Echo(want)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		} else {
			got, err := c.Add(int32(i), int32(i*10))
			require.NoError(t, err)
			assert.Equal(t, int32(i*11), got)
		}
	}
}

func TestConcurrentConnections(t *testing.T) {
	ts := startServer(t, nil)

	const conns = 10
	var wg sync.WaitGroup
	for n := 0; n < conns; n++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			c, err := client.Dial(ts.Addr(), client.Options{Timeout: waitFor})
			if !assert.NoError(t, err) {
				return
			}
			defer c.Close()

			for i := 0; i < 20; i++ {
				want := fmt.Sprintf("conn %d request %d", n, i)
				got, err := c.Echo(want)
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, want, got)
			}
		}(n)
	}
	wg.Wait()
}

func TestRegistryTracksLiveConnections(t *testing.T) {
	ts := startServer(t, nil)

	clients := make([]*client.Client, 5)
	for i := range clients {
		clients[i] = ts.dial(t)
		_, err := clients[i].Echo("ping")
		require.NoError(t, err)
	}
	assert.Equal(t, 5, ts.ActiveConnections())

	require.NoError(t, clients[0].Close())
	require.NoError(t, clients[1].Close())
	require.Eventually(t, func() bool { return ts.ActiveConnections() == 3 }, waitFor, 5*time.Millisecond)

	for _, c := range clients[2:] {
		require.NoError(t, c.Close())
	}
	require.Eventually(t, func() bool { return ts.ActiveConnections() == 0 }, waitFor, 5*time.Millisecond)
}

func TestPoolBoundsConcurrentConnections(t *testing.T) {
	ts := startServer(t, func(cfg *config.Config) { cfg.PoolSize = 1 })

	first := ts.dial(t)
	_, err := first.Echo("first")
	require.NoError(t, err)

	second, err := client.Dial(ts.Addr(), client.Options{Timeout: 500 * time.Millisecond})
	require.NoError(t, err)
	defer second.Close()

	// The only worker is busy with the first connection.
	_, err = second.Echo("second")
	require.Error(t, err)
	require.Eventually(t, func() bool { return ts.ActiveConnections() == 2 }, waitFor, 5*time.Millisecond)

	require.NoError(t, first.Close())

	resp, err := second.Receive()
	require.NoError(t, err)
	assert.Equal(t, &protocol.EchoResponse{Content: "second"}, resp)
}

func TestStopNotifiesClients(t *testing.T) {
	ts := startServer(t, func(cfg *config.Config) { cfg.DrainTimeout = 0 })

	clients := make([]*client.Client, 3)
	for i := range clients {
		clients[i] = ts.dial(t)
		_, err := clients[i].Echo("ping")
		require.NoError(t, err)
	}

	stopped := make(chan struct{})
	go func() {
		ts.Stop()
		close(stopped)
	}()

	for _, c := range clients {
		resp, err := c.Receive()
		require.NoError(t, err)
		assert.Equal(t, protocol.ShutdownNotice(), resp)
		require.NoError(t, c.Close())
	}

	select {
	case <-stopped:
	case <-time.After(waitFor):
		t.Fatal("Stop did not return after clients disconnected")
	}

	assert.False(t, ts.Running())
	assert.Equal(t, 0, ts.ActiveConnections())

	select {
	case err := <-ts.runErr:
		assert.NoError(t, err)
	case <-time.After(waitFor):
		t.Fatal("Run did not return after Stop")
	}

	// Nothing is served once the server has stopped.
	_, err := net.DialTimeout("tcp", ts.Addr(), 200*time.Millisecond)
	assert.Error(t, err)
}

func TestStopIsIdempotent(t *testing.T) {
	ts := startServer(t, func(cfg *config.Config) { cfg.DrainTimeout = 100 * time.Millisecond })

	c := ts.dial(t)
	defer c.Close()
	_, err := c.Echo("ping")
	require.NoError(t, err)

	// The client never disconnects; the drain timeout releases its worker.
	ts.Stop()
	ts.Stop()
	assert.Equal(t, 0, ts.NotifyClientsOfShutdown())

	resp, err := c.Receive()
	require.NoError(t, err)
	assert.Equal(t, protocol.ShutdownNotice(), resp)

	_, err = c.Receive()
	assert.Error(t, err, "only one shutdown notice should be delivered")
}

func TestStopBeforeRun(t *testing.T) {
	cfg := config.Default()
	cfg.Address = "127.0.0.1:0"
	cfg.PollInterval = 10 * time.Millisecond

	srv, err := New(cfg)
	require.NoError(t, err)

	srv.Stop()
	assert.False(t, srv.Running())

	go func() { _ = srv.Run() }()
	require.Eventually(t, srv.Running, waitFor, 5*time.Millisecond)

	srv.Stop()
	<-srv.Done()
}

func TestRunAfterStop(t *testing.T) {
	ts := startServer(t, nil)

	assert.ErrorIs(t, ts.Run(), ErrServerRunning)

	ts.Stop()
	<-ts.Done()
	assert.ErrorIs(t, ts.Run(), ErrServerStopped)
}

func TestNewBindError(t *testing.T) {
	ts := startServer(t, nil)

	cfg := config.Default()
	cfg.Address = ts.Addr()
	_, err := New(cfg)
	assert.Error(t, err)

	cfg.Address = "localhost"
	_, err = New(cfg)
	var vErr *config.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestIdleTimeout(t *testing.T) {
	ts := startServer(t, func(cfg *config.Config) { cfg.IdleTimeout = 100 * time.Millisecond })

	c := ts.dial(t)
	defer c.Close()
	_, err := c.Echo("ping")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return ts.ActiveConnections() == 0 }, waitFor, 10*time.Millisecond)

	_, err = c.Receive()
	assert.Error(t, err)
}

func TestDelimitedFramingPipelining(t *testing.T) {
	ts := startServer(t, func(cfg *config.Config) { cfg.Framing = string(protocol.FramingDelimited) })
	c := ts.dial(t)
	defer c.Close()

	// Both requests may arrive in a single read.
	require.NoError(t, c.Send(&protocol.EchoRequest{Content: "one"}))
	require.NoError(t, c.Send(&protocol.AddRequest{A: 2, B: 3}))
	require.NoError(t, c.Send(&protocol.UnrecognizedRequest{}))

	resp, err := c.Receive()
	require.NoError(t, err)
	assert.Equal(t, &protocol.EchoResponse{Content: "one"}, resp)

	resp, err = c.Receive()
	require.NoError(t, err)
	assert.Equal(t, &protocol.AddResponse{Result: 5}, resp)

	resp, err = c.Receive()
	require.NoError(t, err)
	assert.Equal(t, protocol.BadRequest(), resp)
}

func TestWebSocketGateway(t *testing.T) {
	ts := startServer(t, func(cfg *config.Config) {
		cfg.WebSocket.Address = "127.0.0.1:0"
		cfg.DrainTimeout = 0
	})
	require.NotEmpty(t, ts.WebSocketAddr())

	c, err := client.DialWebSocket("ws://"+ts.WebSocketAddr()+config.DefaultWebSocketPath, client.Options{Timeout: waitFor})
	require.NoError(t, err)

	got, err := c.Echo("over websocket")
	require.NoError(t, err)
	assert.Equal(t, "over websocket", got)

	sum, err := c.Add(40, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(42), sum)

	// WebSocket and TCP clients share one registry.
	tcp := ts.dial(t)
	defer tcp.Close()
	_, err = tcp.Echo("ping")
	require.NoError(t, err)
	assert.Equal(t, 2, ts.ActiveConnections())

	stopped := make(chan struct{})
	go func() {
		ts.Stop()
		close(stopped)
	}()

	resp, err := c.Receive()
	require.NoError(t, err)
	assert.Equal(t, protocol.ShutdownNotice(), resp)
	require.NoError(t, c.Close())

	resp, err = tcp.Receive()
	require.NoError(t, err)
	assert.Equal(t, protocol.ShutdownNotice(), resp)
	require.NoError(t, tcp.Close())

	select {
	case <-stopped:
	case <-time.After(waitFor):
		t.Fatal("Stop did not return")
	}
}

func TestStopDuringInFlightRequests(t *testing.T) {
	ts := startServer(t, func(cfg *config.Config) {
		cfg.Framing = string(protocol.FramingDelimited)
		cfg.DrainTimeout = 200 * time.Millisecond
	})

	clients := make([]*client.Client, 4)
	for i := range clients {
		clients[i] = ts.dial(t)
		defer clients[i].Close()
	}
	require.Eventually(t, func() bool { return ts.ActiveConnections() == len(clients) }, waitFor, 5*time.Millisecond)

	for i, c := range clients {
		require.NoError(t, c.Send(&protocol.EchoRequest{Content: fmt.Sprintf("req-%d", i)}))
	}
	ts.Stop()

	// Each client sees its response, the shutdown notice, or both, and
	// nothing else. Delimited framing keeps the two apart on the wire.
	for i, c := range clients {
		want := &protocol.EchoResponse{Content: fmt.Sprintf("req-%d", i)}

		var got []protocol.Response
		for {
			resp, err := c.Receive()
			if err != nil {
				break
			}
			got = append(got, resp)
		}

		require.NotEmpty(t, got, "client %d received nothing", i)
		for _, resp := range got {
			if resp.Kind() == "echo" {
				assert.Equal(t, want, resp)
				continue
			}
			assert.Equal(t, protocol.ShutdownNotice(), resp)
		}
	}
	assert.Equal(t, 0, ts.ActiveConnections())
}

func TestStopRacingNewConnections(t *testing.T) {
	ts := startServer(t, func(cfg *config.Config) { cfg.DrainTimeout = 200 * time.Millisecond })

	done := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				conn, err := net.DialTimeout("tcp", ts.Addr(), 100*time.Millisecond)
				if err != nil {
					time.Sleep(time.Millisecond)
					continue
				}
				_ = conn.Close()
			}
		}()
	}

	time.Sleep(50 * time.Millisecond)
	ts.Stop()

	// Every connection admitted before the flag dropped has been serviced.
	assert.Equal(t, 0, ts.ActiveConnections())
	assert.Equal(t, 0, ts.pool.Active())
	assert.Equal(t, 0, ts.pool.Queued())

	close(done)
	wg.Wait()
	assert.Equal(t, 0, ts.ActiveConnections())
}

func TestRunAfterListenerClosed(t *testing.T) {
	cfg := config.Default()
	cfg.Address = "127.0.0.1:0"
	cfg.PollInterval = 10 * time.Millisecond

	srv, err := New(cfg)
	require.NoError(t, err)

	runErr := make(chan error, 1)
	go func() { runErr <- srv.Run() }()
	require.Eventually(t, srv.Running, waitFor, 5*time.Millisecond)

	require.NoError(t, srv.listener.Close())

	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, net.ErrClosed)
	case <-time.After(waitFor):
		t.Fatal("Run did not return after the listener closed")
	}
	assert.False(t, srv.Running())
	assert.ErrorIs(t, srv.Run(), ErrServerStopped)
}

// brokenStream delivers one request and fails every write.
type brokenStream struct {
	mu     sync.Mutex
	read   bool
	closed bool
}

func (b *brokenStream) ReadFrame() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.read {
		return nil, io.EOF
	}
	b.read = true
	return protocol.EncodeRequest(&protocol.EchoRequest{Content: "ping"})
}

func (b *brokenStream) WriteFrame([]byte) error {
	return errors.New("broken pipe")
}

func (b *brokenStream) SetReadDeadline(time.Time) error { return nil }

func (b *brokenStream) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 45123}
}

func (b *brokenStream) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func TestWriteFailureDeregistersConnection(t *testing.T) {
	cfg := config.Default()
	cfg.Address = "127.0.0.1:0"

	srv, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		srv.closeListeners()
		srv.pool.Close()
	})
	srv.running.Store(true)

	st := &brokenStream{}
	c := newConn(st, 0)
	srv.registry.Insert(c)
	require.Equal(t, 1, srv.ActiveConnections())

	srv.serve(c)

	assert.Equal(t, 0, srv.ActiveConnections())
	st.mu.Lock()
	defer st.mu.Unlock()
	assert.True(t, st.read, "request should have been read")
	assert.True(t, st.closed, "connection should be closed after a failed write")
}
