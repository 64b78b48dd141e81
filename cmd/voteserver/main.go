// Command voteserver starts the HTTP server, binding to 0.0.0.0 on an
// optional positional port argument (default 6008).
package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/jespajo/votemap/pkg/httpserver"
)

func main() {
	cfg := httpserver.DefaultConfig()

	if len(os.Args) > 1 {
		port, err := strconv.Atoi(os.Args[1])
		if err != nil || port <= 0 || port > 65535 {
			fmt.Fprintf(os.Stderr, "usage: %s [port]\n", os.Args[0])
			os.Exit(1)
		}
		cfg.Port = port
	}

	srv := httpserver.NewServer(cfg)

	if err := srv.AddRoute(httpserver.MethodGET, `/`, func(req *httpserver.Request) *httpserver.Response {
		return httpserver.NewResponse(200, "text/plain", []byte("votemap server\n"))
	}); err != nil {
		log.Fatalf("voteserver: %v", err)
	}
	if err := srv.AddRoute(httpserver.MethodGET, `/static/(?<path>.+)`, httpserver.ServeFileInsecurely("static")); err != nil {
		log.Fatalf("voteserver: %v", err)
	}

	log.Printf("voteserver: listening on 0.0.0.0:%d", cfg.Port)
	if err := srv.Run(); err != nil {
		log.Fatalf("voteserver: %v", err)
	}
}
