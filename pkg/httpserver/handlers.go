package httpserver

import (
	"os"
	"path/filepath"
	"strings"
)

// Serve404 is the fallback handler used when no route matches a request.
func Serve404(req *Request) *Response {
	return NewResponse(404, "text/plain", []byte("404 Not Found\n"))
}

var insecureContentTypes = map[string]string{
	".html": "text/html",
	".js":   "application/javascript",
	".json": "application/json",
	".css":  "text/css",
	".ttf":  "font/ttf",
	".svg":  "image/svg+xml",
	".png":  "image/png",
}

// ServeFileInsecurely reads a file relative to root named by the route's
// "path" capture and serves it with a content type guessed from its
// extension. It performs no path-traversal protection whatsoever — the
// name says so on purpose, exactly as the handler it's grounded on warns
// in its own source.
func ServeFileInsecurely(root string) Handler {
	return func(req *Request) *Response {
		name, ok := "", false
		if req.Params != nil {
			name, ok = req.Params.Get("path")
		}
		if !ok {
			name = strings.TrimPrefix(req.Path, "/")
		}
		full := filepath.Join(root, name)
		data, err := os.ReadFile(full)
		if err != nil {
			return Serve404(req)
		}
		ct := insecureContentTypes[filepath.Ext(full)]
		if ct == "" {
			ct = "application/octet-stream"
		}
		return NewResponse(200, ct, data)
	}
}
