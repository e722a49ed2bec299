package httpserver

import (
	"net/http"
	"time"
)

// New builds the API server. Settlement calls finish fast, so the timeouts
// are tight; slow-loris protection comes from the header timeout.
func New(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
