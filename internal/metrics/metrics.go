package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var ActionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "reply4me_actions_total",
	Help: "Write actions issued against the platform",
}, []string{"action", "result"})

var GatewayRetryCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "reply4me_gateway_retries_total",
	Help: "Gateway retries by operation and cause (rate_limit, transient)",
}, []string{"op", "kind"})

var JobRunCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "reply4me_job_runs_total",
	Help: "Scheduled job invocations by outcome",
}, []string{"job", "result"})

var JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "reply4me_job_duration_sec",
	Help:    "Duration of scheduled job invocations",
	Buckets: prometheus.ExponentialBuckets(0.1, 4, 8),
}, []string{"job"})

var HourlyQuotaUsed = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "reply4me_hourly_quota_used",
	Help: "Replies consumed in the current hourly window",
})

var MentionCursor = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "reply4me_mention_cursor",
	Help: "Last processed mention id (as a float, for trend only)",
})

var Followers = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "reply4me_followers",
	Help: "Follower count observed at the last rollup",
})

// Serve exposes /metrics on addr until ctx is done. An empty addr disables it.
func Serve(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("metrics listener starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
