package prometheus

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nfcemu/nfcemu/pkg/metrics"
)

// StartServer serves the registered metrics over HTTP at /metrics on
// addr (e.g. ":9090") until ctx is cancelled. Returns nil immediately if
// metrics are disabled.
func StartServer(ctx context.Context, addr string, logf func(format string, args ...any)) error {
	if !metrics.IsEnabled() {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if logf != nil {
			logf("metrics server listening on %s", addr)
		}
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics: start server: %w", err)
	default:
		return nil
	}
}
