package cli

// This file contains the HTTP server answering the hosting platform's
// liveness probe and exposing metrics.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/chattigo/autobot/cli/metrics"
)

func newHealthHandler(collector *metrics.Collector) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	if collector != nil {
		mux.Handle("/metrics", collector.Handler())
	}
	return mux
}

type healthServer struct {
	logger zerolog.Logger
	server *http.Server
}

func newHealthServer(logger zerolog.Logger, port int, collector *metrics.Collector) *healthServer {
	return &healthServer{
		logger: logger,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newHealthHandler(collector),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves in the background. Errors after start-up are logged.
func (h *healthServer) Start() {
	go func() {
		h.logger.Info().Str("addr", h.server.Addr).Msg("Health endpoint listening")
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error().Err(err).Msg("Health endpoint stopped")
		}
	}()
}

func (h *healthServer) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}
