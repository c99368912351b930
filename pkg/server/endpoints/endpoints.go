// Package endpoints implements the secret server's HTTP API.
package endpoints

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gofrs/uuid/v5"
	"github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"

	"github.com/simple-secrets/simple-secrets/pkg/common/telemetry"
	"github.com/simple-secrets/simple-secrets/pkg/server/audit"
	"github.com/simple-secrets/simple-secrets/pkg/server/auth"
	"github.com/simple-secrets/simple-secrets/pkg/server/datastore"
)

type Config struct {
	DataStore datastore.DataStore
	Auth      *auth.Authenticator
	Audit     audit.Recorder
	Metrics   *telemetry.Metrics
	Log       logrus.FieldLogger
}

type Handler struct {
	c Config
}

func New(c Config) *Handler {
	return &Handler{c: c}
}

// Routes assembles the API router with recovery and request logging
// middleware.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/login", h.login)
	r.Get("/get/{name}", h.fetchSecret)
	r.Post("/set/{name}/{value}", h.setSecret)
	r.Get("/live", h.live)

	recovery := handlers.RecoveryHandler(handlers.RecoveryLogger(h.c.Log))
	return recovery(h.requestLogger(r))
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return handlers.CustomLoggingHandler(io.Discard, next, func(_ io.Writer, p handlers.LogFormatterParams) {
		h.c.Log.WithFields(logrus.Fields{
			"method": p.Request.Method,
			"path":   p.URL.Path,
			"status": p.StatusCode,
			"size":   p.Size,
		}).Debug("Request completed")
	})
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	username, password, ok := r.BasicAuth()
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	token, err := h.c.Auth.Login(r.Context(), username, password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.c.Audit.Record(audit.LoginFailureInvalidPassword,
			fmt.Sprintf("Login failure for user %s due to invalid password", username))
		h.c.Metrics.LoginFailure.Inc()
		w.WriteHeader(http.StatusUnauthorized)
	case err != nil:
		h.c.Log.WithError(err).Error("Unable to create session token")
		h.c.Audit.Record(audit.LoginFailureTokenCreationFailure,
			fmt.Sprintf("Login failure for user %s due to token creation failure", username))
		w.WriteHeader(http.StatusInternalServerError)
	default:
		h.c.Audit.Record(audit.TokenCreated,
			fmt.Sprintf("Session token %s for user %s created", token, username))
		h.c.Audit.Record(audit.LoginSuccess,
			fmt.Sprintf("Login success for user %s", username))
		h.c.Metrics.LoginSuccess.Inc()
		fmt.Fprint(w, token)
	}
}

func (h *Handler) fetchSecret(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	token, ok := queryToken(r)
	if !ok {
		h.c.Audit.Record(audit.SecretFetchFailureNoToken,
			fmt.Sprintf("Secret %s failed fetch, no token entered attempt", name))
		h.c.Metrics.SecretFetchAccessDenied.Inc()
		http.Error(w, "Token required", http.StatusBadRequest)
		return
	}

	username, err := h.c.Auth.ValidateToken(r.Context(), token)
	if err != nil {
		h.c.Audit.Record(audit.SecretFetchFailureInvalidToken,
			fmt.Sprintf("Secret %s failed fetch, invalid token attempt", name))
		h.c.Metrics.SecretFetchAccessDenied.Inc()
		http.Error(w, "Bad token", http.StatusUnauthorized)
		return
	}

	id := secretID(name)
	value, err := h.c.DataStore.Get(r.Context(), secretValueKey(id))
	if err != nil {
		h.c.Log.WithError(err).Error("Unable to fetch secret")
		h.c.Audit.Record(audit.SecretFetchFailureNoExist,
			fmt.Sprintf("Secret %s failed fetch by user %s, does not exist", name, username))
		http.Error(w, "Invalid secret", http.StatusBadRequest)
		return
	}

	h.c.Audit.Record(audit.SecretFetchSuccess,
		fmt.Sprintf("Secret %s UUID %s fetched by user %s", name, id, username))
	h.c.Metrics.SecretFetch.Inc()
	fmt.Fprint(w, value)
}

func (h *Handler) setSecret(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	value := chi.URLParam(r, "value")

	token, ok := queryToken(r)
	if !ok {
		h.c.Audit.Record(audit.SecretCreateFailureNoToken,
			fmt.Sprintf("Secret %s failed set, no token entered attempt", name))
		h.c.Metrics.SecretSetAccessDenied.Inc()
		http.Error(w, "Token required", http.StatusBadRequest)
		return
	}

	username, err := h.c.Auth.ValidateToken(r.Context(), token)
	if err != nil {
		h.c.Audit.Record(audit.SecretCreateFailureInvalidToken,
			fmt.Sprintf("Secret %s failed set, invalid token attempt", name))
		h.c.Metrics.SecretSetAccessDenied.Inc()
		http.Error(w, "Bad token", http.StatusUnauthorized)
		return
	}

	id := secretID(name)
	if err := h.c.DataStore.Set(r.Context(), secretNameKey(id), name); err != nil {
		h.setSecretFailed(w, err, name, username)
		return
	}
	if err := h.c.DataStore.Set(r.Context(), secretValueKey(id), value); err != nil {
		h.setSecretFailed(w, err, name, username)
		return
	}

	h.c.Audit.Record(audit.SecretCreateSuccess,
		fmt.Sprintf("Secret %s set with UUID %s by user %s", name, id, username))
	h.c.Metrics.SecretSet.Inc()
	fmt.Fprint(w, id)
}

func (h *Handler) setSecretFailed(w http.ResponseWriter, err error, name, username string) {
	h.c.Log.WithError(err).Error("Unable to set secret")
	h.c.Audit.Record(audit.SecretCreateFailure,
		fmt.Sprintf("Unable to set secret %s by user %s, internal error", name, username))
	w.WriteHeader(http.StatusInternalServerError)
}

func (h *Handler) live(w http.ResponseWriter, _ *http.Request) {
	fmt.Fprint(w, "OK")
}

// queryToken extracts the session token. An absent query string is
// distinguished from an empty token value, matching the API's contract.
func queryToken(r *http.Request) (string, bool) {
	if r.URL.RawQuery == "" {
		return "", false
	}
	return r.URL.Query().Get("token"), true
}

// secretID maps a secret name onto its storage UUID. The mapping is the
// SHA1-based UUIDv5 of the name in the DNS namespace.
func secretID(name string) string {
	return uuid.NewV5(uuid.NamespaceDNS, name).String()
}

func secretNameKey(id string) string {
	return fmt.Sprintf("/secrets/%s/name", id)
}

func secretValueKey(id string) string {
	return fmt.Sprintf("/secrets/%s/value", id)
}
