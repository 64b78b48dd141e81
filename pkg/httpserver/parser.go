package httpserver

import (
	"errors"
	"strings"

	"github.com/jespajo/votemap/pkg/container"
)

// parseResult is what parseRequest reports after looking at however much
// of a connection's bytes have arrived so far.
type parseResult int

const (
	parseIncomplete parseResult = iota // need more bytes
	parseOK
	parseError // req is nil, the returned *statusError's code names the response to send
)

// parseError values carry a status code via this sentinel-wrapping type so
// parseRequest can report a specific response status without a second
// return value threaded through every call site.
type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string { return e.msg }

var errIncomplete = errors.New("httpserver: incomplete request")

const maxHeaderBytes = 1 << 15 // 32 KiB header-size cap

// parseRequest looks for a complete request line + headers (terminated by
// a blank line) within buf. It returns parseIncomplete if the terminator
// hasn't arrived yet, and otherwise a parsed Request or a *statusError
// describing the response to send instead.
func parseRequest(buf []byte) (*Request, parseResult, error) {
	headerEnd := findHeaderEnd(buf)
	if headerEnd < 0 {
		if len(buf) > maxHeaderBytes {
			return nil, parseError, &statusError{code: 413, msg: "request header too large"}
		}
		return nil, parseIncomplete, nil
	}

	lines := strings.Split(string(buf[:headerEnd]), "\r\n")
	if len(lines) == 0 || lines[0] == "" {
		return nil, parseError, &statusError{code: 400, msg: "empty request line"}
	}

	req, err := parseRequestLine(lines[0])
	if err != nil {
		return nil, parseError, err
	}

	keepAliveHeader := ""
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:colon]))
		val := strings.TrimSpace(line[colon+1:])
		if key == "connection" {
			keepAliveHeader = strings.ToLower(val)
		}
	}

	req.keepAliveHeader = keepAliveHeader
	return req, parseOK, nil
}

// findHeaderEnd returns the index where the "\r\n\r\n" terminating the
// request's header block starts, or -1 if it hasn't arrived yet.
func findHeaderEnd(buf []byte) int {
	for i := 0; i+3 < len(buf); i++ {
		if buf[i] == '\r' && buf[i+1] == '\n' && buf[i+2] == '\r' && buf[i+3] == '\n' {
			return i
		}
	}
	return -1
}

func parseRequestLine(line string) (*Request, error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return nil, &statusError{code: 400, msg: "malformed request line"}
	}
	method, target, version := parts[0], parts[1], parts[2]

	if method != "GET" {
		return nil, &statusError{code: 501, msg: "unsupported method " + method}
	}

	switch version {
	case "HTTP/1.0", "HTTP/1.1":
	default:
		return nil, &statusError{code: 505, msg: "unsupported HTTP version " + version}
	}

	path, query, err := parseTarget(target)
	if err != nil {
		return nil, err
	}

	return &Request{
		Method:  MethodGET,
		Path:    path,
		Query:   query,
		Version: version,
	}, nil
}

// parseTarget splits a request target into its decoded path and query
// dict, percent-decoding both along the way. The query dict preserves the
// order its keys appeared on the wire, mirroring the original's
// insertion-ordered string_dict rather than an unordered Go map.
func parseTarget(target string) (string, *container.Map[string, string], error) {
	rawPath := target
	rawQuery := ""
	if i := strings.IndexByte(target, '?'); i >= 0 {
		rawPath = target[:i]
		rawQuery = target[i+1:]
	}

	path, err := percentDecode(rawPath)
	if err != nil {
		return "", nil, &statusError{code: 400, msg: "malformed URI"}
	}

	query := container.NewMap[string, string](container.StringHash)
	if rawQuery != "" {
		for _, pair := range strings.Split(rawQuery, "&") {
			if pair == "" {
				continue
			}
			key, val := pair, ""
			if i := strings.IndexByte(pair, '='); i >= 0 {
				key, val = pair[:i], pair[i+1:]
			}
			dk, err := percentDecode(key)
			if err != nil {
				return "", nil, &statusError{code: 400, msg: "malformed URI"}
			}
			dv, err := percentDecode(val)
			if err != nil {
				return "", nil, &statusError{code: 400, msg: "malformed URI"}
			}
			query.Set(dk, dv)
		}
	}

	return path, query, nil
}

func percentDecode(s string) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '+':
			b.WriteByte(' ')
		case '%':
			if i+2 >= len(s) {
				return "", errors.New("httpserver: truncated percent-escape")
			}
			hi, ok1 := hexVal(s[i+1])
			lo, ok2 := hexVal(s[i+2])
			if !ok1 || !ok2 {
				return "", errors.New("httpserver: invalid percent-escape")
			}
			b.WriteByte(byte(hi<<4 | lo))
			i += 2
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String(), nil
}

func hexVal(c byte) (int, bool) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), true
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10, true
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10, true
	default:
		return 0, false
	}
}

// encodeQueryString re-encodes a request's query dict back to text, used
// only for the access-log line printed after a reply is fully sent. Ranging
// over q.Each visits entries in the order they were parsed off the wire.
func encodeQueryString(q *container.Map[string, string]) string {
	if q == nil || q.Len() == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteByte('?')
	first := true
	q.Each(func(k, v string) {
		if !first {
			b.WriteByte('&')
		}
		first = false
		b.WriteString(k)
		if v != "" {
			b.WriteByte('=')
			b.WriteString(v)
		}
	})
	return b.String()
}
