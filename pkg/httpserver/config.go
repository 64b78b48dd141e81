package httpserver

import "time"

const (
	backlogSize = 32

	// maxAge is how long a connection may stay open, counted from its
	// accept or its last keep-alive reset, before the timeout sweep closes
	// it during normal operation.
	maxAge = 15 * time.Second
	// drainMaxAge is the shorter age budget applied once the server is
	// shutting down and trying to drain connections quickly.
	drainMaxAge = 1 * time.Second
)

// Config holds the handful of tunables this server exposes. Unlike a
// flag/env-driven configuration surface, the only externally configurable
// value the original program has is the listen port, so Config stays
// small and is built with explicit defaults rather than a parsing
// framework.
type Config struct {
	// Port is the TCP port to listen on. Default: 6008.
	Port int

	// Verbose enables a per-request access log line.
	Verbose bool

	// WorkerCount is how many goroutines process requests concurrently.
	// Default: 2, matching the original's NUM_WORKER_THREADS.
	WorkerCount int
}

// DefaultConfig returns the server's default configuration.
func DefaultConfig() Config {
	return Config{
		Port:        6008,
		Verbose:     true,
		WorkerCount: 2,
	}
}
