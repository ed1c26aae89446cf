package protocol

import "fmt"

// Reserved ErrorResponse texts.
const (
	BadRequestText = "Bad Request!"
	ShutdownText   = "Server is shutting down."
)

// Field numbers of the ClientMessage oneof.
const (
	fieldClientEcho = 1
	fieldClientAdd  = 2
)

// Field numbers of the ServerMessage oneof.
const (
	fieldServerEcho  = 1
	fieldServerAdd   = 2
	fieldServerError = 3
)

// Field numbers inside the variant messages.
const (
	fieldContent = 1 // EchoMessage.content, ErrorMessage.content
	fieldA       = 1 // AddRequest.a
	fieldB       = 2 // AddRequest.b
	fieldResult  = 1 // AddResponse.result
)

// Request is a decoded client message. The concrete type is one of
// *EchoRequest, *AddRequest or *UnrecognizedRequest.
type Request interface {
	Kind() string
	String() string
	isRequest()
}

// Response is a server message. The concrete type is one of
// *EchoResponse, *AddResponse or *ErrorResponse.
type Response interface {
	Kind() string
	String() string
	isResponse()
}

// EchoRequest asks the server to send Content back unchanged.
type EchoRequest struct {
	Content string
}

func (*EchoRequest) isRequest() {}
func (*EchoRequest) Kind() string { return "echo" }
func (r *EchoRequest) String() string { return fmt.Sprintf("EchoRequest{content=%q}", r.Content) }

// AddRequest asks the server for A + B.
type AddRequest struct {
	A int32
	B int32
}

func (*AddRequest) isRequest() {}
func (*AddRequest) Kind() string { return "add" }
func (r *AddRequest) String() string { return fmt.Sprintf("AddRequest{a=%d, b=%d}", r.A, r.B) }

// UnrecognizedRequest is a well-formed ClientMessage that carries no known
// variant, e.g. an empty message or one made only of unknown fields.
type UnrecognizedRequest struct{}

func (*UnrecognizedRequest) isRequest() {}
func (*UnrecognizedRequest) Kind() string { return "unrecognized" }
func (*UnrecognizedRequest) String() string { return "UnrecognizedRequest{}" }

// EchoResponse carries the content of the EchoRequest it answers.
type EchoResponse struct {
	Content string
}

func (*EchoResponse) isResponse() {}
func (*EchoResponse) Kind() string { return "echo" }
func (r *EchoResponse) String() string { return fmt.Sprintf("EchoResponse{content=%q}", r.Content) }

// AddResponse carries the wrapped int32 sum.
type AddResponse struct {
	Result int32
}

func (*AddResponse) isResponse() {}
func (*AddResponse) Kind() string { return "add" }
func (r *AddResponse) String() string { return fmt.Sprintf("AddResponse{result=%d}", r.Result) }

// ErrorResponse reports a bad request or a shutdown.
type ErrorResponse struct {
	Content string
}

func (*ErrorResponse) isResponse() {}
func (*ErrorResponse) Kind() string { return "error" }
func (r *ErrorResponse) String() string { return fmt.Sprintf("ErrorResponse{content=%q}", r.Content) }

// BadRequest returns the fixed response for undecodable or unknown requests.
func BadRequest() *ErrorResponse {
	return &ErrorResponse{Content: BadRequestText}
}

// ShutdownNotice returns the response broadcast to clients on shutdown.
func ShutdownNotice() *ErrorResponse {
	return &ErrorResponse{Content: ShutdownText}
}
