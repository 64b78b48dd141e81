package httpserver

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestCompileRouteRejectsBadPattern(t *testing.T) {
	if _, err := compileRoute(`(unterminated`); err == nil {
		t.Fatalf("expected an error for an unterminated group")
	}
}

func TestRouteMatchLiteralPath(t *testing.T) {
	m, err := compileRoute(`/things`)
	if err != nil {
		t.Fatalf("compileRoute: %v", err)
	}
	if _, ok := m.match("/things"); !ok {
		t.Fatalf("expected /things to match")
	}
	if _, ok := m.match("/things/extra"); ok {
		t.Fatalf("expected /things/extra not to match a whole-path pattern")
	}
}

func TestRouteMatchNamedCapture(t *testing.T) {
	m, err := compileRoute(`/users/(?<id>[0-9]+)`)
	if err != nil {
		t.Fatalf("compileRoute: %v", err)
	}
	params, ok := m.match("/users/42")
	if !ok {
		t.Fatalf("expected /users/42 to match")
	}
	if v, _ := params.Get("id"); v != "42" {
		t.Errorf("got id=%q, want 42", v)
	}
}

func TestRouteMatchMultipleNamedCaptures(t *testing.T) {
	m, err := compileRoute(`/repos/(?<owner>[^/]+)/(?<name>[^/]+)`)
	if err != nil {
		t.Fatalf("compileRoute: %v", err)
	}
	params, ok := m.match("/repos/jespajo/votemap")
	if !ok {
		t.Fatalf("expected path to match")
	}
	owner, _ := params.Get("owner")
	name, _ := params.Get("name")
	if owner != "jespajo" || name != "votemap" {
		t.Errorf("got owner=%q name=%q", owner, name)
	}
}

func TestRouteMatchNoMatchReturnsFalse(t *testing.T) {
	m, err := compileRoute(`/users/[0-9]+`)
	if err != nil {
		t.Fatalf("compileRoute: %v", err)
	}
	if _, ok := m.match("/users/abc"); ok {
		t.Fatalf("expected no match for non-numeric id")
	}
}

func TestServerAddRouteOrderingFirstMatchWins(t *testing.T) {
	s := NewServer(DefaultConfig())
	calledFirst := false
	if err := s.AddRoute(MethodGET, `/(?<any>.+)`, func(req *Request) *Response {
		calledFirst = true
		return NewResponse(200, "text/plain", nil)
	}); err != nil {
		t.Fatalf("AddRoute: %v", err)
	}
	if err := s.AddRoute(MethodGET, `/specific`, func(req *Request) *Response {
		t.Fatalf("second route should never be reached")
		return nil
	}); err != nil {
		t.Fatalf("AddRoute: %v", err)
	}

	c, peer := newTestClientPair(t)
	if _, err := unix.Write(peer, []byte("GET /specific HTTP/1.1\r\n\r\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	s.processClient(c)
	if !calledFirst {
		t.Fatalf("expected the first registered route to match")
	}
}
