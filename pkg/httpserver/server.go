package httpserver

import (
	"log"
	"os"
	"os/signal"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"github.com/jespajo/votemap/pkg/container"
	"github.com/jespajo/votemap/pkg/memctx"
)

// Server runs the accept/poll loop and dispatches accepted connections to
// a fixed worker pool.
type Server struct {
	cfg    Config
	routes []*Route

	rootCtx *memctx.Context
	queue   *clientQueue

	listenFD int
	sigR     int
	sigW     int
	doneR    int
	doneW    int

	clients  *container.Map[int, *Client] // fd -> client; touched only by the main goroutine
	inFlight map[int]bool                 // fd currently owned by a worker
}

// NewServer builds a Server. Call AddRoute to register handlers, then Run
// to start serving.
func NewServer(cfg Config) *Server {
	return &Server{
		cfg:      cfg,
		rootCtx:  memctx.New(),
		queue:    newClientQueue(64),
		clients:  container.NewMap[int, *Client](container.IntHash),
		inFlight: make(map[int]bool),
	}
}

// AddRoute compiles pattern (matched against the whole request path) and
// registers handler for it. Routes are tried in registration order.
func (s *Server) AddRoute(method Method, pattern string, handler Handler) error {
	m, err := compileRoute(pattern)
	if err != nil {
		return err
	}
	s.routes = append(s.routes, &Route{Method: method, Pattern: pattern, Handler: handler, compiled: m})
	return nil
}

// Run binds the listening socket and blocks, serving requests until SIGINT
// is received and every in-flight connection has drained.
func (s *Server) Run() error {
	fd, err := listenSocket(s.cfg.Port)
	if err != nil {
		log.Fatalf("httpserver: listen on port %d: %v", s.cfg.Port, err)
	}
	s.listenFD = fd

	if s.sigR, s.sigW, err = makeSelfPipe(); err != nil {
		log.Fatalf("httpserver: signal pipe: %v", err)
	}
	if s.doneR, s.doneW, err = makeSelfPipe(); err != nil {
		log.Fatalf("httpserver: worker-done pipe: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		unix.Write(s.sigW, []byte{1})
	}()

	var wg sync.WaitGroup
	for i := 0; i < s.cfg.WorkerCount; i++ {
		wg.Add(1)
		go s.workerLoop(&wg)
	}

	s.mainLoop()

	s.queue.closeQueue()
	wg.Wait()
	closeFD(s.listenFD)
	return nil
}

func (s *Server) workerLoop(wg *sync.WaitGroup) {
	defer wg.Done()
	for {
		c, ok := s.queue.pop()
		if !ok {
			return
		}
		s.processClient(c)
		var b [4]byte
		putUint32(b[:], uint32(c.fd))
		unix.Write(s.doneW, b[:])
	}
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func (s *Server) mainLoop() {
	shouldStop := false

	for {
		if shouldStop && s.clients.Len() == 0 {
			return
		}

		fds := s.buildPollFds(shouldStop)
		timeout := -1
		if s.clients.Len() > 0 {
			timeout = 500
		}

		n, err := pollFds(fds, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			log.Printf("httpserver: poll: %v", err)
			continue
		}
		if n > 0 {
			s.handleReadyFds(fds, &shouldStop)
		}

		s.sweepTimeouts(shouldStop)
	}
}

func (s *Server) buildPollFds(stopping bool) []unix.PollFd {
	fds := make([]unix.PollFd, 0, 2+s.clients.Len())
	fds = append(fds, unix.PollFd{Fd: int32(s.sigR), Events: pollIn})
	fds = append(fds, unix.PollFd{Fd: int32(s.doneR), Events: pollIn})
	if !stopping {
		fds = append(fds, unix.PollFd{Fd: int32(s.listenFD), Events: pollIn})
	}
	s.clients.Each(func(fd int, c *Client) {
		if s.inFlight[fd] {
			return
		}
		fds = append(fds, unix.PollFd{Fd: int32(fd), Events: c.pollEvents()})
	})
	return fds
}

func (s *Server) handleReadyFds(fds []unix.PollFd, shouldStop *bool) {
	for _, pfd := range fds {
		if pfd.Revents == 0 {
			continue
		}
		fd := int(pfd.Fd)
		switch fd {
		case s.sigR:
			drainPipe(s.sigR)
			*shouldStop = true
		case s.doneR:
			s.handleWorkerDone()
		case s.listenFD:
			s.acceptLoop()
		default:
			s.handleClientEvent(fd, pfd.Revents)
		}
	}
}

func drainPipe(fd int) {
	var buf [256]byte
	for {
		n, err := unix.Read(fd, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (s *Server) handleWorkerDone() {
	var buf [256]byte
	for {
		n, err := unix.Read(s.doneR, buf[:])
		if n <= 0 || err != nil {
			return
		}
		for i := 0; i+4 <= n; i += 4 {
			fd := int(getUint32(buf[i : i+4]))
			delete(s.inFlight, fd)
			c, ok := s.clients.Get(fd)
			if !ok {
				continue
			}
			if c.phase == readyToClose {
				s.closeClient(c)
			}
		}
	}
}

func (s *Server) acceptLoop() {
	for {
		fd, err := acceptConn(s.listenFD)
		if err != nil {
			return
		}
		childCtx := memctx.NewChild(s.rootCtx)
		c := newClient(childCtx, fd)
		s.clients.Set(fd, c)
	}
}

func (s *Server) handleClientEvent(fd int, revents int16) {
	c, ok := s.clients.Get(fd)
	if !ok {
		return
	}
	if revents&pollErr != 0 {
		s.closeClient(c)
		return
	}
	s.inFlight[fd] = true
	s.queue.push(c)
}

func (s *Server) closeClient(c *Client) {
	closeFD(c.fd)
	s.clients.Delete(c.fd)
	delete(s.inFlight, c.fd)
	c.ctx.Free()
}

func (s *Server) sweepTimeouts(stopping bool) {
	budget := maxAge
	if stopping {
		budget = drainMaxAge
	}
	now := time.Now()

	var expired []*Client
	s.clients.Each(func(fd int, c *Client) {
		if s.inFlight[fd] {
			return
		}
		if now.Sub(c.startTime) > budget {
			expired = append(expired, c)
		}
	})
	for _, c := range expired {
		s.closeClient(c)
	}
}
