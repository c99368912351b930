// Package telemetry exposes the server's Prometheus counters.
package telemetry

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Metrics holds the instance-lifetime counters scraped from the metrics
// endpoint.
type Metrics struct {
	registry *prometheus.Registry

	LoginSuccess            prometheus.Counter
	LoginFailure            prometheus.Counter
	SecretFetch             prometheus.Counter
	SecretFetchAccessDenied prometheus.Counter
	SecretSet               prometheus.Counter
	SecretSetAccessDenied   prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		LoginSuccess: factory.NewCounter(prometheus.CounterOpts{
			Name: "simple_secrets_login_success_total",
			Help: "Total number of successful logins in this instance lifetime.",
		}),
		LoginFailure: factory.NewCounter(prometheus.CounterOpts{
			Name: "simple_secrets_login_failure_total",
			Help: "Total number of failed logins in this instance lifetime.",
		}),
		SecretFetch: factory.NewCounter(prometheus.CounterOpts{
			Name: "simple_secrets_secret_fetch_total",
			Help: "Total number of secrets accessed in this instance lifetime.",
		}),
		SecretFetchAccessDenied: factory.NewCounter(prometheus.CounterOpts{
			Name: "simple_secrets_secret_fetch_access_denied_total",
			Help: "Total number of unsuccessful secret access attempts in this instance lifetime due to invalid token.",
		}),
		SecretSet: factory.NewCounter(prometheus.CounterOpts{
			Name: "simple_secrets_secret_set_total",
			Help: "Total number of secrets set in this instance lifetime.",
		}),
		SecretSetAccessDenied: factory.NewCounter(prometheus.CounterOpts{
			Name: "simple_secrets_secret_set_access_denied_total",
			Help: "Total number of unsuccessful secret set attempts in this instance lifetime due to invalid token.",
		}),
	}
}

// Handler serves the registry in Prometheus text format.
func (m *Metrics) Handler(log logrus.FieldLogger) http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog: log,
	})
}

// ListenAndServe runs the metrics endpoint on addr until ctx is done.
func (m *Metrics) ListenAndServe(ctx context.Context, addr string, log logrus.FieldLogger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler(log))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.WithField("address", addr).Info("Starting prometheus exporter")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		server.Close()
		<-errCh
		return nil
	}
}
