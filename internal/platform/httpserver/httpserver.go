package httpserver

import (
	"net/http"
	"time"
)

// New builds an HTTP server with sane defaults for the registry front end.
// Transfer commands block on store commit latency, so the write timeout
// leaves room for the bounded retry cycle.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
}
