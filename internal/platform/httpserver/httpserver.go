package httpserver

import (
	"net/http"
	"time"

	"warish/internal/platform/config"
)

// New builds the API server. The write timeout must cover certificate
// rendering plus the storage upload, so it comes from config; the read side
// is bounded by the upload size limit.
func New(cfg config.Server, handler http.Handler) *http.Server {
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 60 * time.Second
	}
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       2 * writeTimeout,
	}
}
