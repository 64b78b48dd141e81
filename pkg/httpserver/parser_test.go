package httpserver

import "testing"

func TestParseSimpleGET(t *testing.T) {
	raw := "GET /hello HTTP/1.1\r\nHost: example.com\r\n\r\n"
	req, result, err := parseRequest([]byte(raw))
	if result != parseOK {
		t.Fatalf("got result %v, err %v", result, err)
	}
	if req.Path != "/hello" {
		t.Errorf("got path %q, want /hello", req.Path)
	}
	if req.Version != "HTTP/1.1" {
		t.Errorf("got version %q, want HTTP/1.1", req.Version)
	}
}

func TestParseIncompleteRequest(t *testing.T) {
	raw := "GET /hello HTTP/1.1\r\nHost: example.com\r\n"
	_, result, _ := parseRequest([]byte(raw))
	if result != parseIncomplete {
		t.Fatalf("got %v, want parseIncomplete", result)
	}
}

func TestParseQueryString(t *testing.T) {
	raw := "GET /search?q=hello+world&lang=en HTTP/1.1\r\n\r\n"
	req, result, _ := parseRequest([]byte(raw))
	if result != parseOK {
		t.Fatalf("expected parseOK, got %v", result)
	}
	if v, _ := req.Query.Get("q"); v != "hello world" {
		t.Errorf("got q=%q, want %q", v, "hello world")
	}
	if v, _ := req.Query.Get("lang"); v != "en" {
		t.Errorf("got lang=%q, want en", v)
	}
}

func TestParseQueryStringPreservesInsertionOrder(t *testing.T) {
	raw := "GET /search?z=1&a=2&m=3 HTTP/1.1\r\n\r\n"
	req, result, _ := parseRequest([]byte(raw))
	if result != parseOK {
		t.Fatalf("expected parseOK, got %v", result)
	}
	var keys []string
	req.Query.Each(func(k, v string) { keys = append(keys, k) })
	want := []string{"z", "a", "m"}
	if len(keys) != len(want) {
		t.Fatalf("got keys %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("got keys %v, want %v", keys, want)
			break
		}
	}
}

func TestParsePercentEncodedPath(t *testing.T) {
	raw := "GET /a%20b HTTP/1.1\r\n\r\n"
	req, result, _ := parseRequest([]byte(raw))
	if result != parseOK {
		t.Fatalf("expected parseOK, got %v", result)
	}
	if req.Path != "/a b" {
		t.Errorf("got path %q, want %q", req.Path, "/a b")
	}
}

func TestParseUnsupportedMethod(t *testing.T) {
	raw := "POST /hello HTTP/1.1\r\n\r\n"
	_, result, err := parseRequest([]byte(raw))
	if result != parseError {
		t.Fatalf("expected parseError, got %v", result)
	}
	se, ok := err.(*statusError)
	if !ok || se.code != 501 {
		t.Errorf("got %v, want a 501 statusError", err)
	}
}

func TestParseUnsupportedVersion(t *testing.T) {
	raw := "GET /hello HTTP/2.0\r\n\r\n"
	_, result, err := parseRequest([]byte(raw))
	if result != parseError {
		t.Fatalf("expected parseError, got %v", result)
	}
	se, ok := err.(*statusError)
	if !ok || se.code != 505 {
		t.Errorf("got %v, want a 505 statusError", err)
	}
}

func TestParseConnectionHeader(t *testing.T) {
	raw := "GET / HTTP/1.1\r\nConnection: close\r\n\r\n"
	req, result, _ := parseRequest([]byte(raw))
	if result != parseOK {
		t.Fatalf("expected parseOK, got %v", result)
	}
	if req.keepAliveHeader != "close" {
		t.Errorf("got %q, want close", req.keepAliveHeader)
	}
}

func TestHeaderTooLarge(t *testing.T) {
	big := make([]byte, maxHeaderBytes+100)
	for i := range big {
		big[i] = 'a'
	}
	raw := append([]byte("GET / HTTP/1.1\r\nX-Big: "), big...)
	_, result, err := parseRequest(raw)
	if result != parseError {
		t.Fatalf("expected parseError, got %v", result)
	}
	se, ok := err.(*statusError)
	if !ok || se.code != 413 {
		t.Errorf("got %v, want a 413 statusError", err)
	}
}
