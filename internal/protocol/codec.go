package protocol

import (
	"fmt"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

// DecodeError describes why a byte buffer is not a valid message.
type DecodeError struct {
	Offset int    // Byte offset where decoding stopped
	Reason string // Human-readable cause
	Err    error  // Underlying protowire error, if any
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode failed at offset %d: %s: %v", e.Offset, e.Reason, e.Err)
	}
	return fmt.Sprintf("decode failed at offset %d: %s", e.Offset, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeRequest serializes a request as a ClientMessage.
// An *UnrecognizedRequest encodes to an empty message.
func EncodeRequest(req Request) ([]byte, error) {
	switch r := req.(type) {
	case *EchoRequest:
		return appendMessage(nil, fieldClientEcho, appendString(nil, fieldContent, r.Content)), nil
	case *AddRequest:
		var body []byte
		body = appendInt32(body, fieldA, r.A)
		body = appendInt32(body, fieldB, r.B)
		return appendMessage(nil, fieldClientAdd, body), nil
	case *UnrecognizedRequest:
		return []byte{}, nil
	default:
		return nil, fmt.Errorf("cannot encode request of type %T", req)
	}
}

// EncodeResponse serializes a response as a ServerMessage.
func EncodeResponse(resp Response) ([]byte, error) {
	switch r := resp.(type) {
	case *EchoResponse:
		return appendMessage(nil, fieldServerEcho, appendString(nil, fieldContent, r.Content)), nil
	case *AddResponse:
		return appendMessage(nil, fieldServerAdd, appendInt32(nil, fieldResult, r.Result)), nil
	case *ErrorResponse:
		return appendMessage(nil, fieldServerError, appendString(nil, fieldContent, r.Content)), nil
	default:
		return nil, fmt.Errorf("cannot encode response of type %T", resp)
	}
}

// schema maps the field numbers of one message onto their wire types.
// Fields missing from the schema are skipped.
type schema map[protowire.Number]protowire.Type

var (
	clientMessageSchema = schema{fieldClientEcho: protowire.BytesType, fieldClientAdd: protowire.BytesType}
	serverMessageSchema = schema{
		fieldServerEcho:  protowire.BytesType,
		fieldServerAdd:   protowire.BytesType,
		fieldServerError: protowire.BytesType,
	}
	contentSchema     = schema{fieldContent: protowire.BytesType}
	addRequestSchema  = schema{fieldA: protowire.VarintType, fieldB: protowire.VarintType}
	addResponseSchema = schema{fieldResult: protowire.VarintType}
)

// DecodeRequest parses a ClientMessage. Unknown fields are skipped and the
// last variant present wins. A message without a known variant decodes to
// *UnrecognizedRequest.
func DecodeRequest(data []byte) (Request, error) {
	var req Request = &UnrecognizedRequest{}

	err := walkFields(data, 0, clientMessageSchema, func(num protowire.Number, value []byte, offset int) error {
		switch num {
		case fieldClientEcho:
			content, err := decodeContent(value, offset)
			if err != nil {
				return err
			}
			req = &EchoRequest{Content: content}
		case fieldClientAdd:
			add := &AddRequest{}
			err := walkFields(value, offset, addRequestSchema, func(num protowire.Number, v []byte, off int) error {
				n, err := decodeInt32(v, off)
				if err != nil {
					return err
				}
				if num == fieldA {
					add.A = n
				} else {
					add.B = n
				}
				return nil
			})
			if err != nil {
				return err
			}
			req = add
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// DecodeResponse parses a ServerMessage. A message without a known variant
// is reported as a DecodeError since the server never sends one.
func DecodeResponse(data []byte) (Response, error) {
	var resp Response

	err := walkFields(data, 0, serverMessageSchema, func(num protowire.Number, value []byte, offset int) error {
		switch num {
		case fieldServerEcho:
			content, err := decodeContent(value, offset)
			if err != nil {
				return err
			}
			resp = &EchoResponse{Content: content}
		case fieldServerAdd:
			add := &AddResponse{}
			err := walkFields(value, offset, addResponseSchema, func(_ protowire.Number, v []byte, off int) error {
				n, err := decodeInt32(v, off)
				if err != nil {
					return err
				}
				add.Result = n
				return nil
			})
			if err != nil {
				return err
			}
			resp = add
		case fieldServerError:
			content, err := decodeContent(value, offset)
			if err != nil {
				return err
			}
			resp = &ErrorResponse{Content: content}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, &DecodeError{Offset: len(data), Reason: "server message carries no known variant"}
	}
	return resp, nil
}

// fieldFunc receives one known field. For length-delimited fields value is
// the payload without its length prefix; for varints it is the raw varint.
type fieldFunc func(num protowire.Number, value []byte, offset int) error

// walkFields iterates over the fields of one message, calling fn for every
// field listed in s. Offsets are reported relative to the outermost buffer.
func walkFields(data []byte, base int, s schema, fn fieldFunc) error {
	pos := 0
	for pos < len(data) {
		num, typ, n := protowire.ConsumeTag(data[pos:])
		if n < 0 {
			return &DecodeError{Offset: base + pos, Reason: "invalid field tag", Err: protowire.ParseError(n)}
		}
		tagEnd := pos + n

		m := protowire.ConsumeFieldValue(num, typ, data[tagEnd:])
		if m < 0 {
			return &DecodeError{Offset: base + tagEnd, Reason: "invalid field value", Err: protowire.ParseError(m)}
		}
		start := pos
		raw := data[tagEnd : tagEnd+m]
		pos = tagEnd + m

		want, known := s[num]
		if !known {
			continue
		}
		if typ != want {
			return &DecodeError{
				Offset: base + start,
				Reason: fmt.Sprintf("field %d has wire type %d, want %d", num, typ, want),
			}
		}

		value := raw
		valueOffset := base + tagEnd
		if typ == protowire.BytesType {
			payload, k := protowire.ConsumeBytes(raw)
			if k < 0 {
				return &DecodeError{Offset: valueOffset, Reason: "invalid length prefix", Err: protowire.ParseError(k)}
			}
			valueOffset += k - len(payload)
			value = payload
		}
		if err := fn(num, value, valueOffset); err != nil {
			return err
		}
	}
	return nil
}

// decodeContent extracts the content string of an EchoMessage or ErrorMessage.
func decodeContent(data []byte, base int) (string, error) {
	var content string
	err := walkFields(data, base, contentSchema, func(_ protowire.Number, value []byte, offset int) error {
		if !utf8.Valid(value) {
			return &DecodeError{Offset: offset, Reason: "string field contains invalid UTF-8"}
		}
		content = string(value)
		return nil
	})
	return content, err
}

func decodeInt32(raw []byte, offset int) (int32, error) {
	v, n := protowire.ConsumeVarint(raw)
	if n < 0 {
		return 0, &DecodeError{Offset: offset, Reason: "invalid varint", Err: protowire.ParseError(n)}
	}
	return int32(v), nil
}

func appendMessage(b []byte, num protowire.Number, body []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, body)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	// int32 values are sign-extended to 64 bits on the wire.
	return protowire.AppendVarint(b, uint64(int64(v)))
}
