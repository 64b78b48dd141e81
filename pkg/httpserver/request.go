// Package httpserver implements a small HTTP/1.x server on top of raw
// non-blocking sockets and a single poll loop, with a worker pool taking
// ownership of clients between the socket-watching main goroutine and the
// goroutines that actually parse and answer requests.
package httpserver

import (
	"fmt"

	"github.com/jespajo/votemap/pkg/container"
)

// Method is an HTTP request method. Only GET is actually routable; every
// other method (including POST, kept here for data-model completeness)
// gets a 501.
type Method int

const (
	MethodUnknown Method = iota
	MethodGET
	MethodPOST
)

// Request is a parsed HTTP request.
type Request struct {
	Method  Method
	Path    string
	Query   *container.Map[string, string] // insertion-ordered, mirrors the original's string_dict
	Params  *container.Map[string, string] // named captures from the matched route pattern
	Version string                          // "HTTP/1.0" or "HTTP/1.1"

	keepAliveHeader string // lowercased Connection header value, if any
}

// Response is what a handler produces for the server to write back to the
// client.
type Response struct {
	Status  int
	Headers map[string]string
	Body    []byte
}

// NewResponse builds a Response holding body (not a copy of it) and a
// Content-Type header set.
func NewResponse(status int, contentType string, body []byte) *Response {
	return &Response{
		Status:  status,
		Headers: map[string]string{"Content-Type": contentType},
		Body:    body,
	}
}

func statusText(code int) string {
	switch code {
	case 200:
		return "OK"
	case 400:
		return "Bad Request"
	case 404:
		return "Not Found"
	case 413:
		return "Payload Too Large"
	case 500:
		return "Internal Server Error"
	case 501:
		return "Not Implemented"
	case 505:
		return "HTTP Version Not Supported"
	default:
		return "Unknown"
	}
}

func statusLine(version string, code int) string {
	return fmt.Sprintf("%s %d %s\r\n", version, code, statusText(code))
}

// Handler answers a matched Request.
type Handler func(req *Request) *Response

// Route pairs a whole-path regex pattern with a Handler, evaluated in
// registration order the way the original's route table is (a first
// matching regex wins).
type Route struct {
	Method  Method
	Pattern string
	Handler Handler

	compiled compiledMatcher
}
