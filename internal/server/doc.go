// Package server implements the msgsrv connection server.
//
// A Server owns a TCP listener, a bounded worker pool and a registry of live
// connections. The accept loop polls the listener with a short deadline so it
// can observe the running flag; every accepted connection is registered and
// then handed to the pool, where one worker services it until the peer
// disconnects, an I/O error occurs, or the server stops.
//
// # Request Handling
//
// Each iteration of a connection's loop reads one message, decodes it as a
// ClientMessage and writes exactly one ServerMessage back:
//   - EchoMessage: echoed unchanged
//   - AddRequest: AddResponse with a + b (int32, wrapping)
//   - anything else: ErrorMessage "Bad Request!"
//
// Message boundaries follow the configured framing. With "raw" framing one
// read is one message; "delimited" framing prefixes every message with its
// varint length.
//
// # WebSocket Gateway
//
// When websocket.address is set, the same handlers are served over
// WebSocket at websocket.path. Each binary message carries one request.
// WebSocket clients share the worker pool and registry with TCP clients.
//
// # Usage Example
//
//	srv, err := server.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	go func() {
//	    <-ctx.Done()
//	    srv.Stop()
//	}()
//
//	if err := srv.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// Stop performs, in order:
//  1. Send "Server is shutting down." to every registered connection
//  2. Clear the running flag, ending the accept loop and each connection loop
//  3. Wait for every worker to finish
//
// A connection blocked in a read is released when its peer disconnects. With
// drain_timeout set, connections still blocked after the timeout have their
// read interrupted. Stop on a server that is not running only logs a warning.
//
// # Thread Safety
//
// Stop, NotifyClientsOfShutdown and the accessors are safe to call from any
// goroutine while Run is executing.
package server
