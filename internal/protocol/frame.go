package protocol

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"
)

// Framing selects how encoded messages are delimited on a byte stream.
type Framing string

const (
	// FramingRaw treats the bytes returned by one read as one message.
	// Messages split across reads or coalesced into one read are not
	// supported in this mode.
	FramingRaw Framing = "raw"

	// FramingDelimited prefixes every message with its length as a uvarint,
	// the same layout protobuf uses for delimited streams.
	FramingDelimited Framing = "delimited"
)

// DefaultMaxMessageSize is the read buffer size used by the raw framing and
// the largest message accepted by the delimited framing.
const DefaultMaxMessageSize = 512

var (
	// ErrMessageTooLarge is returned when a delimited frame announces a
	// length above the configured maximum.
	ErrMessageTooLarge = errors.New("protocol: message too large")

	// ErrUnknownFraming is returned for framing names other than raw and delimited.
	ErrUnknownFraming = errors.New("protocol: unknown framing")
)

// ParseFraming validates a framing name. The empty string selects FramingRaw.
func ParseFraming(name string) (Framing, error) {
	switch Framing(name) {
	case "", FramingRaw:
		return FramingRaw, nil
	case FramingDelimited:
		return FramingDelimited, nil
	default:
		return "", fmt.Errorf("%w: %q (expected %q or %q)", ErrUnknownFraming, name, FramingRaw, FramingDelimited)
	}
}

// FrameReader reads encoded messages off a byte stream. ReadFrame returns
// io.EOF when the peer closed the stream cleanly between messages.
type FrameReader interface {
	ReadFrame() ([]byte, error)
}

// NewFrameReader returns a FrameReader for the given framing. maxSize bounds
// a single message; values <= 0 select DefaultMaxMessageSize.
func NewFrameReader(r io.Reader, framing Framing, maxSize int) FrameReader {
	if maxSize <= 0 {
		maxSize = DefaultMaxMessageSize
	}
	if framing == FramingDelimited {
		return &delimitedReader{r: bufio.NewReaderSize(r, maxSize+binary.MaxVarintLen64), max: maxSize}
	}
	return &rawReader{r: r, buf: make([]byte, maxSize)}
}

type rawReader struct {
	r   io.Reader
	buf []byte
}

func (rr *rawReader) ReadFrame() ([]byte, error) {
	n, err := rr.r.Read(rr.buf)
	if n > 0 {
		// A trailing error is reported by the next read.
		frame := make([]byte, n)
		copy(frame, rr.buf[:n])
		return frame, nil
	}
	if err == nil {
		err = io.EOF
	}
	return nil, err
}

type delimitedReader struct {
	r   *bufio.Reader
	max int
}

func (dr *delimitedReader) ReadFrame() ([]byte, error) {
	size, err := binary.ReadUvarint(dr.r)
	if err != nil {
		// io.EOF only when no byte of the prefix was read.
		return nil, err
	}
	if size > uint64(dr.max) {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrMessageTooLarge, size, dr.max)
	}

	frame := make([]byte, size)
	if _, err := io.ReadFull(dr.r, frame); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("failed to read frame payload: %w", err)
	}
	return frame, nil
}

// AppendFrame appends payload to dst using the given framing.
func AppendFrame(dst []byte, framing Framing, payload []byte) []byte {
	if framing == FramingDelimited {
		dst = protowire.AppendVarint(dst, uint64(len(payload)))
	}
	return append(dst, payload...)
}
