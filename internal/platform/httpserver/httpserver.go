// Package httpserver builds the process HTTP server.
package httpserver

import (
	"net/http"
	"time"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 15 * time.Second
	// registry lookups may take up to GSIS_TIMEOUT
	writeTimeout = 45 * time.Second
	idleTimeout  = 2 * time.Minute
)

// New builds an HTTP server with bounded timeouts.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}
}
