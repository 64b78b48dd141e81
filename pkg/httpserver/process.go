package httpserver

import (
	"fmt"
	"log"
	"strings"

	"golang.org/x/sys/unix"
)

// processClient does one unit of work for a Client: depending on its
// phase, that's either reading and parsing as much of a request as is
// available, or writing as much of a response as the socket will accept.
// Finishing a phase can fall straight into the next one within the same
// call, mirroring the original single-pass-per-dispatch worker.
func (s *Server) processClient(c *Client) {
	if c.phase == parsingRequest {
		if !s.readAndParse(c) {
			return
		}
	}
	if c.phase == sendingReply {
		s.send(c)
	}
}

// readAndParse reads whatever is available from c's socket, growing its
// buffer as needed, then tries to parse a complete request out of it. It
// returns true if the client is now ready to move to sendingReply.
func (s *Server) readAndParse(c *Client) bool {
	for {
		c.growBuf(4096)
		n, err := unix.Read(c.fd, c.buf[c.bufLen:])
		if n > 0 {
			c.bufLen += n
		}
		if n == 0 {
			c.phase = readyToClose
			return false
		}
		if err != nil {
			if err == unix.EAGAIN {
				break
			}
			c.phase = readyToClose
			return false
		}
	}

	req, result, err := parseRequest(c.buf[:c.bufLen])
	switch result {
	case parseIncomplete:
		return false
	case parseError:
		se, _ := err.(*statusError)
		code := 400
		if se != nil {
			code = se.code
		}
		c.resp = NewResponse(code, "text/plain", []byte(statusText(code)+"\n"))
		c.req = &Request{Version: "HTTP/1.1"}
		s.finishHandling(c)
		return true
	}

	c.req = req
	s.route(c)
	s.finishHandling(c)
	return true
}

func (s *Server) route(c *Client) {
	for _, r := range s.routes {
		if r.Method != c.req.Method {
			continue
		}
		params, ok := r.compiled.match(c.req.Path)
		if !ok {
			continue
		}
		c.req.Params = params
		c.resp = r.Handler(c.req)
		return
	}
	c.resp = Serve404(c.req)
}

// finishHandling serialises c.resp into a header buffer and sets up the
// sendingReply phase.
func (s *Server) finishHandling(c *Client) {
	resp := c.resp
	version := c.req.Version
	if version == "" {
		version = "HTTP/1.1"
	}

	defaultKeepAlive := version == "HTTP/1.1"
	keepAlive := defaultKeepAlive
	switch c.req.keepAliveHeader {
	case "close":
		keepAlive = false
	case "keep-alive":
		keepAlive = true
	}
	c.keepAlive = keepAlive

	var b strings.Builder
	b.WriteString(statusLine(version, resp.Status))
	if keepAlive != defaultKeepAlive {
		if keepAlive {
			b.WriteString("Connection: keep-alive\r\n")
		} else {
			b.WriteString("Connection: close\r\n")
		}
	}
	b.WriteString(fmt.Sprintf("Content-Length: %d\r\n", len(resp.Body)))
	for k, v := range resp.Headers {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(v)
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")

	header := b.String()
	c.headerBuf = c.ctx.Alloc(len(header) + len(resp.Body))
	copy(c.headerBuf, header)
	copy(c.headerBuf[len(header):], resp.Body)
	c.sent = 0
	c.phase = sendingReply
}

func (s *Server) send(c *Client) {
	for c.sent < len(c.headerBuf) {
		n, err := unix.Write(c.fd, c.headerBuf[c.sent:])
		if n > 0 {
			c.sent += n
		}
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			c.phase = readyToClose
			return
		}
	}

	if s.cfg.Verbose {
		log.Printf("[%d] %s %s%s\n", c.resp.Status, methodName(c.req.Method), c.req.Path, encodeQueryString(c.req.Query))
	}

	if c.keepAlive {
		c.ctx.Reset()
		c.init()
	} else {
		c.phase = readyToClose
	}
}

func methodName(m Method) string {
	switch m {
	case MethodGET:
		return "GET"
	case MethodPOST:
		return "POST"
	default:
		return "?"
	}
}
