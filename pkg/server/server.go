// Package server wires the secret server's storage, auditing, telemetry and
// HTTP endpoints together.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spiffe/go-spiffe/v2/spiffeid"

	"github.com/simple-secrets/simple-secrets/pkg/common/telemetry"
	"github.com/simple-secrets/simple-secrets/pkg/server/audit"
	"github.com/simple-secrets/simple-secrets/pkg/server/auth"
	"github.com/simple-secrets/simple-secrets/pkg/server/datastore"
	"github.com/simple-secrets/simple-secrets/pkg/server/endpoints"
)

const shutdownTimeout = 10 * time.Second

type Config struct {
	// BindAddress and BindPort locate the public API listener.
	BindAddress string
	BindPort    int

	// MetricsAddress and MetricsPort locate the Prometheus exporter.
	MetricsAddress string
	MetricsPort    int

	// SpiffeID is this instance's identity, stamped on audit events.
	SpiffeID spiffeid.ID

	// EtcdClusterMembers are the etcd endpoints backing the datastore.
	EtcdClusterMembers []string

	// TokenTTL bounds the lifetime of issued session tokens.
	TokenTTL time.Duration

	// FluentdForwardAddr is the audit event sink. Empty disables auditing.
	FluentdForwardAddr string

	Log logrus.FieldLogger
}

type Server struct {
	Config Config
}

func New(config Config) *Server {
	return &Server{Config: config}
}

// Run serves the API and metrics endpoints until ctx is done or a listener
// fails.
func (s *Server) Run(ctx context.Context) error {
	log := s.Config.Log

	ds, err := datastore.NewEtcdStore(ctx, datastore.EtcdConfig{
		Endpoints: s.Config.EtcdClusterMembers,
		Log:       log,
	})
	if err != nil {
		return err
	}
	defer ds.Close()

	var recorder audit.Recorder = audit.NopRecorder{}
	if s.Config.FluentdForwardAddr != "" {
		fluentRecorder, err := audit.NewFluentRecorder(s.Config.FluentdForwardAddr, s.Config.SpiffeID.String(), log)
		if err != nil {
			return err
		}
		defer fluentRecorder.Close()
		recorder = fluentRecorder
	}

	metrics := telemetry.New()
	handler := endpoints.New(endpoints.Config{
		DataStore: ds,
		Auth: &auth.Authenticator{
			DataStore: ds,
			TokenTTL:  s.Config.TokenTTL,
		},
		Audit:   recorder,
		Metrics: metrics,
		Log:     log,
	})

	apiServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.Config.BindAddress, s.Config.BindPort),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	recorder.Record(audit.ServerStart,
		fmt.Sprintf("New instance of secret-server started: %s", s.Config.SpiffeID))
	log.WithFields(logrus.Fields{
		"address":   apiServer.Addr,
		"spiffe_id": s.Config.SpiffeID.String(),
	}).Info("Starting secret server")

	errCh := make(chan error, 2)
	go func() {
		err := apiServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()
	go func() {
		metricsAddr := fmt.Sprintf("%s:%d", s.Config.MetricsAddress, s.Config.MetricsPort)
		errCh <- metrics.ListenAndServe(ctx, metricsAddr, log)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Unable to shut down API server cleanly")
	}
	log.Info("Secret server stopped")
	return nil
}
