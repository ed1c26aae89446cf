// Package protocol implements the msgsrv request/response protocol.
//
// This package handles encoding, decoding and framing of the binary messages
// exchanged between clients and the server, and dispatching decoded requests
// to their handlers.
//
// # Wire Format
//
// Messages use the protobuf wire format and are compatible with this schema:
//
//	message EchoMessage  { string content = 1; }
//	message AddRequest   { int32 a = 1; int32 b = 2; }
//	message AddResponse  { int32 result = 1; }
//	message ErrorMessage { string content = 1; }
//
//	message ClientMessage {
//	    oneof message {
//	        EchoMessage echo_message = 1;
//	        AddRequest  add_request  = 2;
//	    }
//	}
//
//	message ServerMessage {
//	    oneof message {
//	        EchoMessage  echo_message  = 1;
//	        AddResponse  add_response  = 2;
//	        ErrorMessage error_message = 3;
//	    }
//	}
//
// Unknown fields are skipped and the last variant present wins. Truncated
// input, wire-type mismatches on known fields, and invalid UTF-8 strings are
// decode errors.
//
// # Framing
//
// Two framings are supported:
//   - raw: one read of up to 512 bytes is one message (default)
//   - delimited: each message is preceded by its length as a uvarint
//
// # Handlers
//
//   - EchoRequest: answered with an EchoResponse carrying the same content
//   - AddRequest: answered with AddResponse{result = a + b}, wrapping on overflow
//   - anything else, including undecodable bytes: ErrorResponse{"Bad Request!"}
//
// # Usage Example
//
//	payload, _ := protocol.EncodeRequest(&protocol.AddRequest{A: 10, B: 20})
//	resp := protocol.Dispatch("127.0.0.1:5000", payload)
//	fmt.Println(resp) // AddResponse{result=30}
package protocol
