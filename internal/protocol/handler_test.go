package protocol

import (
	"math"
	"testing"
)

func TestDispatch(t *testing.T) {
	mustEncode := func(req Request) []byte {
		data, err := EncodeRequest(req)
		if err != nil {
			t.Fatalf("EncodeRequest() error = %v", err)
		}
		return data
	}

	tests := []struct {
		name string
		data []byte
		want Response
	}{
		{
			name: "echo returns identical content",
			data: mustEncode(&EchoRequest{Content: "Hello, World!"}),
			want: &EchoResponse{Content: "Hello, World!"},
		},
		{
			name: "add",
			data: mustEncode(&AddRequest{A: 10, B: 20}),
			want: &AddResponse{Result: 30},
		},
		{
			name: "add wraps on overflow",
			data: mustEncode(&AddRequest{A: math.MaxInt32, B: 1}),
			want: &AddResponse{Result: math.MinInt32},
		},
		{
			name: "undecodable bytes",
			data: []byte{0xde, 0xad, 0xbe, 0xef},
			want: BadRequest(),
		},
		{
			name: "message without variant",
			data: []byte{0x20, 0x01},
			want: BadRequest(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Dispatch("127.0.0.1:9000", tt.data)
			if got.String() != tt.want.String() {
				t.Errorf("Dispatch() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestHandleUnrecognized(t *testing.T) {
	got := Handle("127.0.0.1:9000", &UnrecognizedRequest{})
	errResp, ok := got.(*ErrorResponse)
	if !ok {
		t.Fatalf("Handle() = %T, want *ErrorResponse", got)
	}
	if errResp.Content != BadRequestText {
		t.Errorf("content = %q, want %q", errResp.Content, BadRequestText)
	}
}
