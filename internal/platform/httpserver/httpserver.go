// Package httpserver constructs the process's http.Server.
package httpserver

import (
	"net/http"
	"time"
)

// New builds the server with the timeouts this service can tolerate.
// ReadHeaderTimeout guards against slowloris clients. There is deliberately no
// WriteTimeout: scan and verification event streams stay open until the run
// reaches its terminal event, and per-route timeouts cover everything else.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}
