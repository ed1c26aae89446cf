// Package logging provides structured logging for the msgsrv server and client.
//
// This package wraps a global zap logger with convenience functions for the
// logging patterns used throughout the server: connection lifecycle events,
// protocol message dumps, and general leveled output.
//
// # Log Levels
//
//   - Debug: hex dumps of requests and responses, poll loop details
//   - Info: connection events, lifecycle transitions
//   - Warn: non-fatal issues (failed shutdown notifications, repeated stop)
//   - Error: accept failures, connection I/O failures
//
// # Configuration
//
// Initialize logging at startup:
//
//	if err := logging.Initialize("debug"); err != nil {
//	    log.Fatal(err)
//	}
//	defer logging.Sync()
//
// An empty level falls back to the MSGSRV_LOG_LEVEL environment variable; if
// that is empty too the logger is a no-op, which keeps client commands quiet.
//
// # Connection Logging
//
//	logging.LogConnection(remoteAddr, "connection_accepted")
//	logging.LogConnection(remoteAddr, "connection_closed")
//
// # Thread Safety
//
// All logging functions are safe for concurrent use.
package logging
