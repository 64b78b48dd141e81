package httpserver

import (
	"strings"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/jespajo/votemap/pkg/memctx"
)

// newTestClientPair returns a Client backed by one end of a unix socket
// pair, and the other end's fd for the test to drive directly. This
// exercises processClient's real non-blocking read/write syscalls without
// needing the full accept/poll loop.
func newTestClientPair(t *testing.T) (*Client, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		t.Fatalf("set nonblock: %v", err)
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		t.Fatalf("set nonblock: %v", err)
	}
	ctx := memctx.New()
	t.Cleanup(func() {
		unix.Close(fds[1])
		ctx.Free()
	})
	return newClient(ctx, fds[0]), fds[1]
}

func newTestServer(t *testing.T) *Server {
	s := NewServer(DefaultConfig())
	if err := s.AddRoute(MethodGET, `/hello`, func(req *Request) *Response {
		return NewResponse(200, "text/plain", []byte("hi\n"))
	}); err != nil {
		t.Fatalf("AddRoute: %v", err)
	}
	return s
}

func readAll(t *testing.T, fd int) string {
	t.Helper()
	var out []byte
	buf := make([]byte, 4096)
	for {
		n, err := unix.Read(fd, buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err == unix.EAGAIN || n == 0 {
			break
		}
		if err != nil {
			break
		}
	}
	return string(out)
}

func TestProcessClientServesMatchedRoute(t *testing.T) {
	s := newTestServer(t)
	c, peer := newTestClientPair(t)

	req := "GET /hello HTTP/1.1\r\nHost: x\r\n\r\n"
	if _, err := unix.Write(peer, []byte(req)); err != nil {
		t.Fatalf("write: %v", err)
	}

	s.processClient(c)

	out := readAll(t, peer)
	if !strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("unexpected response head: %q", out)
	}
	if !strings.HasSuffix(out, "hi\n") {
		t.Fatalf("unexpected response body in: %q", out)
	}
	if c.phase != parsingRequest {
		t.Fatalf("expected keep-alive to reset phase to parsingRequest, got %v", c.phase)
	}
}

func TestProcessClientServes404ForUnmatchedRoute(t *testing.T) {
	s := newTestServer(t)
	c, peer := newTestClientPair(t)

	req := "GET /nope HTTP/1.1\r\n\r\n"
	unix.Write(peer, []byte(req))

	s.processClient(c)

	out := readAll(t, peer)
	if !strings.HasPrefix(out, "HTTP/1.1 404 Not Found\r\n") {
		t.Fatalf("unexpected response head: %q", out)
	}
}

func TestProcessClientConnectionCloseEndsKeepAlive(t *testing.T) {
	s := newTestServer(t)
	c, peer := newTestClientPair(t)

	req := "GET /hello HTTP/1.1\r\nConnection: close\r\n\r\n"
	unix.Write(peer, []byte(req))

	s.processClient(c)

	if c.phase != readyToClose {
		t.Fatalf("expected readyToClose after Connection: close, got %v", c.phase)
	}
}

func TestProcessClientHTTP10DefaultsToClose(t *testing.T) {
	s := newTestServer(t)
	c, peer := newTestClientPair(t)

	req := "GET /hello HTTP/1.0\r\n\r\n"
	unix.Write(peer, []byte(req))

	s.processClient(c)

	out := readAll(t, peer)
	if !strings.HasPrefix(out, "HTTP/1.0 200 OK\r\n") {
		t.Fatalf("unexpected response head: %q", out)
	}
	if c.phase != readyToClose {
		t.Fatalf("expected HTTP/1.0 to default to close, got phase %v", c.phase)
	}
}

func TestProcessClientIncompleteRequestWaitsForMore(t *testing.T) {
	s := newTestServer(t)
	c, peer := newTestClientPair(t)

	unix.Write(peer, []byte("GET /hello HTTP/1.1\r\n"))
	s.processClient(c)
	if c.phase != parsingRequest {
		t.Fatalf("expected to stay in parsingRequest, got %v", c.phase)
	}

	unix.Write(peer, []byte("\r\n"))
	s.processClient(c)
	if c.phase != parsingRequest {
		t.Fatalf("expected keep-alive reset after completing the request, got %v", c.phase)
	}

	out := readAll(t, peer)
	if !strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n") {
		t.Fatalf("unexpected response head: %q", out)
	}
}
