package protocol

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestEncodeRequestWireBytes(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want []byte
	}{
		{
			name: "echo",
			req:  &EchoRequest{Content: "hi"},
			want: []byte{0x0a, 0x04, 0x0a, 0x02, 'h', 'i'},
		},
		{
			name: "echo with empty content",
			req:  &EchoRequest{},
			want: []byte{0x0a, 0x00},
		},
		{
			name: "add",
			req:  &AddRequest{A: 10, B: 20},
			want: []byte{0x12, 0x04, 0x08, 0x0a, 0x10, 0x14},
		},
		{
			name: "add with negative operand is sign extended",
			req:  &AddRequest{A: -1},
			want: []byte{0x12, 0x0b, 0x08, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01},
		},
		{
			name: "unrecognized",
			req:  &UnrecognizedRequest{},
			want: []byte{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeRequest(tt.req)
			if err != nil {
				t.Fatalf("EncodeRequest() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("EncodeRequest() = % x, want % x", got, tt.want)
			}
		})
	}
}

func TestEncodeResponseBadRequest(t *testing.T) {
	got, err := EncodeResponse(BadRequest())
	if err != nil {
		t.Fatalf("EncodeResponse() error = %v", err)
	}
	want := append([]byte{0x1a, 0x0e, 0x0a, 0x0c}, []byte(BadRequestText)...)
	if !bytes.Equal(got, want) {
		t.Errorf("EncodeResponse() = % x, want % x", got, want)
	}
}

func TestDecodeRequest(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    string
		wantErr bool
	}{
		{
			name: "echo",
			data: []byte{0x0a, 0x07, 0x0a, 0x05, 'h', 'e', 'l', 'l', 'o'},
			want: `EchoRequest{content="hello"}`,
		},
		{
			name: "add",
			data: []byte{0x12, 0x04, 0x08, 0x0a, 0x10, 0x14},
			want: "AddRequest{a=10, b=20}",
		},
		{
			name: "add with missing operands defaults to zero",
			data: []byte{0x12, 0x00},
			want: "AddRequest{a=0, b=0}",
		},
		{
			name: "empty message",
			data: []byte{},
			want: "UnrecognizedRequest{}",
		},
		{
			name: "only unknown fields",
			data: []byte{0x20, 0x01, 0x2a, 0x01, 0x00},
			want: "UnrecognizedRequest{}",
		},
		{
			name: "unknown field before echo is skipped",
			data: []byte{0x20, 0x05, 0x0a, 0x03, 0x0a, 0x01, 'x'},
			want: `EchoRequest{content="x"}`,
		},
		{
			name: "last variant wins",
			data: []byte{0x0a, 0x03, 0x0a, 0x01, 'x', 0x12, 0x02, 0x08, 0x01},
			want: "AddRequest{a=1, b=0}",
		},
		{
			name:    "deadbeef",
			data:    []byte{0xde, 0xad, 0xbe, 0xef},
			wantErr: true,
		},
		{
			name:    "truncated length",
			data:    []byte{0x0a, 0x05, 0x0a},
			wantErr: true,
		},
		{
			name:    "echo field with varint wire type",
			data:    []byte{0x08, 0x01},
			wantErr: true,
		},
		{
			name:    "invalid utf-8",
			data:    []byte{0x0a, 0x03, 0x0a, 0x01, 0xff},
			wantErr: true,
		},
		{
			name:    "add operand with bytes wire type",
			data:    []byte{0x12, 0x03, 0x0a, 0x01, 0x00},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeRequest(tt.data)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("DecodeRequest() = %v, want error", got)
				}
				var decodeErr *DecodeError
				if !errors.As(err, &decodeErr) {
					t.Errorf("DecodeRequest() error = %T, want *DecodeError", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeRequest() error = %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("DecodeRequest() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestRequestRoundTrip(t *testing.T) {
	requests := []Request{
		&EchoRequest{Content: "Hello, World!"},
		&EchoRequest{Content: "héllo wörld ✓"},
		&AddRequest{A: math.MaxInt32, B: math.MinInt32},
		&AddRequest{A: -7, B: 3},
	}

	for _, req := range requests {
		data, err := EncodeRequest(req)
		if err != nil {
			t.Fatalf("EncodeRequest(%s) error = %v", req, err)
		}
		got, err := DecodeRequest(data)
		if err != nil {
			t.Fatalf("DecodeRequest(%s) error = %v", req, err)
		}
		if got.String() != req.String() {
			t.Errorf("round trip = %s, want %s", got, req)
		}
	}
}

func TestResponseRoundTrip(t *testing.T) {
	responses := []Response{
		&EchoResponse{Content: "How are you?"},
		&AddResponse{Result: 30},
		&AddResponse{Result: -2},
		BadRequest(),
		ShutdownNotice(),
	}

	for _, resp := range responses {
		data, err := EncodeResponse(resp)
		if err != nil {
			t.Fatalf("EncodeResponse(%s) error = %v", resp, err)
		}
		got, err := DecodeResponse(data)
		if err != nil {
			t.Fatalf("DecodeResponse(%s) error = %v", resp, err)
		}
		if got.String() != resp.String() {
			t.Errorf("round trip = %s, want %s", got, resp)
		}
	}
}

func TestDecodeResponseWithoutVariant(t *testing.T) {
	if _, err := DecodeResponse([]byte{}); err == nil {
		t.Error("DecodeResponse(empty) should fail")
	}
}
