package httpserver

import (
	"net/http"

	"underwriter/internal/platform/config"
)

// New builds the HTTP server from the server settings.
func New(cfg config.Server, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
