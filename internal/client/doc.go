// Package client implements a msgsrv client over TCP or the WebSocket gateway.
//
// A Client performs one request/response exchange at a time:
//
//	c, err := client.Dial("localhost:8080", client.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	sum, err := c.Add(10, 20) // 30
//
// Error responses from the server surface as *ServerError. During shutdown
// the server may answer any request with the shutdown notice; check
// ServerError.IsShutdown to tell it apart from a bad request.
//
// Bench drives concurrent load against a server and verifies every answer.
package client
