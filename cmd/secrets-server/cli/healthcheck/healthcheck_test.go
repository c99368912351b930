package healthcheck

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	common_cli "github.com/simple-secrets/simple-secrets/pkg/common/cli"
)

func newTestCommand() (*healthCheckCommand, *bytes.Buffer, *bytes.Buffer) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	cmd := newHealthCheckCommand(&common_cli.Env{
		Stdout: stdout,
		Stderr: stderr,
	})
	return cmd, stdout, stderr
}

func TestHealthyServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/live", r.URL.Path)
		w.Write([]byte("OK"))
	}))
	defer server.Close()

	cmd, stdout, stderr := newTestCommand()
	code := cmd.Run([]string{"-serverAddr", server.URL})

	assert.Equal(t, 0, code)
	assert.Equal(t, "Server is healthy.\n", stdout.String())
	assert.Empty(t, stderr.String())
}

func TestUnhealthyServer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	cmd, stdout, stderr := newTestCommand()
	code := cmd.Run([]string{"-serverAddr", server.URL})

	assert.Equal(t, 1, code)
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), "Server is unhealthy:")
}

func TestUnreachableServer(t *testing.T) {
	cmd, _, stderr := newTestCommand()
	code := cmd.Run([]string{"-serverAddr", "http://127.0.0.1:1", "-verbose"})

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "unable to determine health")
}

func TestBadFlag(t *testing.T) {
	cmd, _, _ := newTestCommand()
	assert.Equal(t, 1, cmd.Run([]string{"-bogus"}))
}
