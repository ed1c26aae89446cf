// Package ui provides terminal UI components for the msgsrv CLI.
//
// Output uses Lipgloss for styled boxes and Bubble Tea for the live progress
// bar of long-running commands. Components follow a "run once and exit"
// pattern: they render output but never ask for input.
//
// # Components
//
//   - Header: command banner showing the operation and its parameters
//   - Result: success, warning and failure boxes with key/value details
//   - RenderResponse: a decoded server response with its raw bytes
//   - ProgressModel / RunWithProgress: progress bar for client bench
//
// # Logging Integration
//
// Logging is controlled by the MSGSRV_LOG_LEVEL environment variable or the
// --log-level flag. When unset, zap logging is silent so the styled output
// is displayed cleanly.
package ui
