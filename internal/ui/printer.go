package ui

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/muurk/msgsrv/internal/protocol"
)

// Printer provides methods for printing UI components to a writer.
type Printer struct {
	out   io.Writer
	width int
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used.
func NewPrinter(w io.Writer) *Printer {
	if w == nil {
		w = os.Stdout
	}
	return &Printer{
		out:   w,
		width: GetTerminalWidth(),
	}
}

// Width returns the current terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// SetWidth overrides the detected terminal width.
func (p *Printer) SetWidth(width int) *Printer {
	p.width = width
	return p
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box
func (p *Printer) PrintHeader(title, command string, params map[string]string) {
	p.Println(NewHeader(title, command, params).SetWidth(p.width).Render())
	p.Newline()
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details map[string]string) {
	p.Println(NewSuccessResult(title, details).SetWidth(p.width).Render())
}

// PrintWarning prints a warning result box
func (p *Printer) PrintWarning(title string, details map[string]string) {
	p.Println(NewWarningResult(title, details).SetWidth(p.width).Render())
}

// PrintFailure prints an error result box with troubleshooting tips
func (p *Printer) PrintFailure(title string, err error, troubleshooting []string) {
	p.Println(NewFailureResult(title, err, troubleshooting).SetWidth(p.width).Render())
}

// PrintResponse prints a decoded server response and the raw bytes it came from.
func (p *Printer) PrintResponse(resp protocol.Response, raw []byte) {
	p.Println(RenderResponse(resp, raw, p.width))
}

// RenderResponse renders a server response as a result box.
// A shutdown notice renders as a warning, any other error response as a failure.
func RenderResponse(resp protocol.Response, raw []byte, width int) string {
	details := map[string]string{
		"Response": resp.String(),
		"Bytes":    fmt.Sprintf("%d", len(raw)),
	}
	if len(raw) > 0 {
		details["Raw"] = HexDumpStyle.Render(fmt.Sprintf("% x", raw))
	}

	var result *Result
	switch r := resp.(type) {
	case *protocol.EchoResponse:
		details["Content"] = fmt.Sprintf("%q", r.Content)
		result = NewSuccessResult("Echo received", details)
	case *protocol.AddResponse:
		details["Result"] = fmt.Sprintf("%d", r.Result)
		result = NewSuccessResult("Sum received", details)
	case *protocol.ErrorResponse:
		if r.Content == protocol.ShutdownText {
			result = NewWarningResult("Server is shutting down", details)
		} else {
			result = NewFailureResult("Server rejected request", errors.New(r.Content), []string{
				"Check that --framing matches the server",
				"Run with --log-level debug to see the bytes sent",
			})
			result.Details = details
		}
	default:
		result = NewWarningResult("Unexpected response", details)
	}

	return result.SetWidth(width).Render()
}
