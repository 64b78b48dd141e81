package httpserver

import (
	"time"

	"github.com/jespajo/votemap/pkg/memctx"
)

// phase is where a Client sits in its request/response cycle. Ownership of
// a Client moves between the main poll loop and a worker goroutine
// strictly at phase transitions: the main loop owns a Client whenever it's
// waiting on socket readiness (parsingRequest, sendingReply); a worker
// owns it for the duration of one processClient call.
type phase int

const (
	parsingRequest phase = iota + 1
	sendingReply
	readyToClose
)

// Client is one accepted connection's state, including a memory context
// scoped to the connection's lifetime so a keep-alive reset can release
// every allocation the last request/response cycle made without touching
// the underlying buffers.
type Client struct {
	ctx       *memctx.Context
	fd        int
	startTime time.Time

	phase phase

	buf    []byte
	bufLen int

	req  *Request
	resp *Response

	headerBuf []byte
	sent      int

	keepAlive bool
}

func newClient(ctx *memctx.Context, fd int) *Client {
	c := &Client{ctx: ctx, fd: fd}
	c.init()
	return c
}

// init resets a Client to be ready to parse a new request, either for its
// first request or after a keep-alive cycle's reset.
func (c *Client) init() {
	c.phase = parsingRequest
	c.startTime = time.Now()
	c.buf = nil
	c.bufLen = 0
	c.req = nil
	c.resp = nil
	c.headerBuf = nil
	c.sent = 0
	c.keepAlive = false
}

// growBuf ensures c.buf can hold at least bufLen+extra bytes.
func (c *Client) growBuf(extra int) {
	need := c.bufLen + extra
	if len(c.buf) >= need {
		return
	}
	newSize := 4096
	if len(c.buf) > 0 {
		newSize = len(c.buf)
	}
	for newSize < need {
		newSize *= 2
	}
	if c.buf == nil {
		c.buf = c.ctx.Alloc(newSize)
	} else {
		c.buf = c.ctx.Resize(c.buf, newSize)
	}
}

// pollEvents reports which poll events the main loop should watch this
// client's fd for, given its current phase.
func (c *Client) pollEvents() int16 {
	switch c.phase {
	case parsingRequest:
		return pollIn
	case sendingReply:
		return pollOut
	default:
		return 0
	}
}
