// Package audit forwards security-relevant server events to fluentd.
package audit

import (
	"fmt"
	"net"
	"strconv"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/sirupsen/logrus"
)

// Event names one auditable server outcome. The names are part of the
// downstream log pipeline's contract.
type Event string

const (
	ServerStart                      Event = "SERVER_START"
	LoginSuccess                     Event = "LOGIN_SUCCESS"
	LoginFailureInvalidPassword      Event = "LOGIN_FAILURE_INVALID_PASSWORD"
	LoginFailureTokenCreationFailure Event = "LOGIN_FAILURE_TOKEN_CREATION_FAILURE"
	TokenCreated                     Event = "TOKEN_CREATED"
	SecretCreateSuccess              Event = "SECRET_CREATE_SUCCESS"
	SecretCreateFailure              Event = "SECRET_CREATE_FAILURE"
	SecretCreateFailureNoToken       Event = "SECRET_CREATE_FAILURE_NO_TOKEN"
	SecretCreateFailureInvalidToken  Event = "SECRET_CREATE_FAILURE_INVALID_TOKEN"
	SecretFetchSuccess               Event = "SECRET_FETCH_SUCCESS"
	SecretFetchFailureNoToken        Event = "SECRET_FETCH_FAILURE_NO_TOKEN"
	SecretFetchFailureInvalidToken   Event = "SECRET_FETCH_FAILURE_INVALID_TOKEN"
	SecretFetchFailureNoExist        Event = "SECRET_FETCH_FAILURE_NOEXIST"
)

// Recorder records audit events. Recording never blocks request handling.
type Recorder interface {
	Record(event Event, content string)
}

type poster interface {
	Post(tag string, message any) error
}

// FluentRecorder posts events to a fluentd forward endpoint, tagged with
// the server's SPIFFE ID.
type FluentRecorder struct {
	client poster
	tag    string
	log    logrus.FieldLogger
}

// NewFluentRecorder connects to the forward endpoint at addr (host:port).
// Posts are asynchronous so a slow collector cannot stall the API.
func NewFluentRecorder(addr, tag string, log logrus.FieldLogger) (*FluentRecorder, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid fluentd forward address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid fluentd forward port %q: %w", portStr, err)
	}

	client, err := fluent.New(fluent.Config{
		FluentHost: host,
		FluentPort: port,
		Async:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create fluentd client: %w", err)
	}

	return &FluentRecorder{client: client, tag: tag, log: log}, nil
}

func (r *FluentRecorder) Record(event Event, content string) {
	if err := r.client.Post(r.tag, map[string]string{string(event): content}); err != nil {
		r.log.WithError(err).WithField("event", event).Error("Cannot post audit event to fluentd")
	}
}

// Close flushes pending events.
func (r *FluentRecorder) Close() error {
	if c, ok := r.client.(*fluent.Fluent); ok {
		return c.Close()
	}
	return nil
}

// NopRecorder discards events. Used when auditing is disabled.
type NopRecorder struct{}

func (NopRecorder) Record(Event, string) {}
