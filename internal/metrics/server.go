package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hetulpatel/crossarb/internal/logging"
)

// Handler serves /healthz, /metrics and /status. status may be nil; its
// result is written as JSON.
func Handler(reg *prometheus.Registry, status func() any) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	var h http.Handler
	if reg != nil {
		h = promhttp.HandlerFor(reg, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			ErrorHandling:     promhttp.ContinueOnError,
		})
	} else {
		h = promhttp.Handler()
	}
	mux.Handle("/metrics", h)

	mux.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var body any = map[string]string{"status": "starting"}
		if status != nil {
			if s := status(); s != nil {
				body = s
			}
		}
		if err := json.NewEncoder(w).Encode(body); err != nil {
			logging.Errorf("[metrics] encode status: %v", err)
		}
	})
	return mux
}

// Serve runs the metrics server until ctx is done. An empty addr disables it.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, status func() any) {
	if addr == "" {
		logging.Infof("[metrics] disabled: empty addr")
		return
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(reg, status),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logging.Infof("[metrics] listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Errorf("[metrics] server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Warnf("[metrics] shutdown error: %v", err)
		}
	}()
}
