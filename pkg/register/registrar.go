package register

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultComposeBin is the compose command used to reach the container.
	DefaultComposeBin = "docker-compose"

	// DefaultService is the compose service name running the SPIRE server.
	DefaultService = "spire-server"

	// DefaultServerBin is the spire-server binary path inside the container.
	DefaultServerBin = "/opt/spire/spire-server"
)

// Runner executes a single external command and reports its exit code.
// The returned error covers failures to start the command; a non-zero exit
// is reported through the code, not the error.
type Runner interface {
	Run(ctx context.Context, name string, args []string) (int, error)
}

// ExecRunner runs commands with os/exec, passing output through.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args []string) (int, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err := cmd.Run()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// Registrar issues one `entry create` invocation per record against a
// spire-server container managed by docker-compose.
type Registrar struct {
	ComposeBin string
	Service    string
	ServerBin  string

	Runner Runner
	Log    logrus.FieldLogger
}

// NewRegistrar returns a Registrar with the stock compose command, service
// name and in-container binary path.
func NewRegistrar(log logrus.FieldLogger) *Registrar {
	return &Registrar{
		ComposeBin: DefaultComposeBin,
		Service:    DefaultService,
		ServerBin:  DefaultServerBin,
		Runner:     ExecRunner{},
		Log:        log,
	}
}

// Command returns the exact command line issued for a record. The entry
// create invocation is wrapped in `sh -c` inside the service container.
func (r *Registrar) Command(rec Record) (string, []string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s entry create -parentID %s -spiffeID %s", r.ServerBin, rec.ParentID, rec.SpiffeID)
	for _, sel := range rec.Selectors {
		fmt.Fprintf(&sb, " -selector %s", sel)
	}
	fmt.Fprintf(&sb, " -ttl %d", rec.TTL)

	return r.ComposeBin, []string{"exec", r.Service, "sh", "-c", sb.String()}
}

// Register issues the records strictly in order, one blocking subprocess at
// a time. A failing record does not stop the ones after it; the returned
// code is the exit code of the last invocation.
func (r *Registrar) Register(ctx context.Context, records []Record) int {
	code := 0
	for _, rec := range records {
		name, args := r.Command(rec)
		log := r.Log.WithFields(logrus.Fields{
			"parent_id": rec.ParentID,
			"spiffe_id": rec.SpiffeID,
		})
		log.Info("Creating registration entry")

		var err error
		code, err = r.Runner.Run(ctx, name, args)
		switch {
		case err != nil:
			log.WithError(err).Error("Unable to invoke entry create")
			code = 1
		case code != 0:
			log.WithField("exit_code", code).Error("Entry create exited non-zero")
		}
	}
	return code
}
