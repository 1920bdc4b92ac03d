package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	NotificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_notifications_total",
		Help: "New-post notifications by outcome",
	}, []string{"status"})

	DigestEmailsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_digest_emails_total",
		Help: "Weekly digest emails by outcome",
	}, []string{"status"})

	CacheInvalidations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_cache_invalidations_total",
		Help: "Cache evictions triggered by post writes",
	}, []string{"status"})

	RateLimitRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "portal_rate_limit_rejections_total",
		Help: "News submissions rejected by the daily limit",
	})

	DispatchTasksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_dispatch_tasks_total",
		Help: "Notification dispatch tasks by stage and outcome",
	}, []string{"stage", "status"})

	JobRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_job_runs_total",
		Help: "Scheduled job runs",
	}, []string{"job", "status"})

	JobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portal_job_duration_seconds",
		Help:    "Scheduled job duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
)

// MustRegister registers every collector of the portal.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		NotificationsTotal,
		DigestEmailsTotal,
		CacheInvalidations,
		RateLimitRejections,
		DispatchTasksTotal,
		JobRunsTotal,
		JobDuration,
	)
}

// ObserveJob records the outcome and duration of one scheduled run.
func ObserveJob(job string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	JobRunsTotal.WithLabelValues(job, status).Inc()
	JobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// Router exposes /metrics and /healthz.
func Router(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

// StartServer serves Router on addr until ctx is cancelled.
func StartServer(ctx context.Context, logger *slog.Logger, addr string, gatherer prometheus.Gatherer) {
	srv := &http.Server{
		Addr:         addr,
		Handler:      Router(gatherer),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server shutdown failed", "error", err)
		}
	}()

	go func() {
		logger.Info("metrics server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
}
