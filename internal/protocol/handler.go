package protocol

import (
	"encoding/hex"

	"github.com/muurk/msgsrv/internal/logging"
	"go.uber.org/zap"
)

// Dispatch decodes one encoded request and returns the response to send.
// It never fails: undecodable input and unknown variants are answered with
// the bad-request ErrorResponse.
func Dispatch(remoteAddr string, data []byte) Response {
	logging.LogMessage(remoteAddr, "received", "request", data)

	req, err := DecodeRequest(data)
	if err != nil {
		logging.Error("Failed to decode message",
			zap.String("remote_addr", remoteAddr),
			zap.Int("length", len(data)),
			zap.String("hex", hex.EncodeToString(data)),
			zap.Error(err),
		)
		return handleBadRequest(remoteAddr)
	}

	return Handle(remoteAddr, req)
}

// Handle routes a decoded request to its handler.
func Handle(remoteAddr string, req Request) Response {
	switch r := req.(type) {
	case *EchoRequest:
		return handleEcho(remoteAddr, r)
	case *AddRequest:
		return handleAdd(remoteAddr, r)
	default:
		logging.Error("Bad Request!",
			zap.String("remote_addr", remoteAddr),
			zap.String("request", req.String()),
		)
		return handleBadRequest(remoteAddr)
	}
}

func handleEcho(remoteAddr string, req *EchoRequest) Response {
	logging.Info("Received Echo Request",
		zap.String("remote_addr", remoteAddr),
		zap.String("content", req.Content),
	)
	return &EchoResponse{Content: req.Content}
}

// handleAdd sums with int32 wrap-around; overflow is not reported.
func handleAdd(remoteAddr string, req *AddRequest) Response {
	logging.Info("Received Add Request",
		zap.String("remote_addr", remoteAddr),
		zap.Int32("a", req.A),
		zap.Int32("b", req.B),
	)
	return &AddResponse{Result: req.A + req.B}
}

func handleBadRequest(remoteAddr string) Response {
	logging.Debug("Answering with bad request response",
		zap.String("remote_addr", remoteAddr),
	)
	return BadRequest()
}
