package register

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type invocation struct {
	name string
	args []string
}

type fakeRunner struct {
	invocations []invocation

	// exit codes and start errors returned per call, in order. Missing
	// entries default to success.
	codes []int
	errs  []error
}

func (f *fakeRunner) Run(_ context.Context, name string, args []string) (int, error) {
	i := len(f.invocations)
	f.invocations = append(f.invocations, invocation{name: name, args: args})

	code := 0
	if i < len(f.codes) {
		code = f.codes[i]
	}
	var err error
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return code, err
}

func newTestRegistrar(runner Runner) *Registrar {
	log, _ := test.NewNullLogger()
	r := NewRegistrar(log)
	r.Runner = runner
	return r
}

func TestRegisterIssuesExactCommandsInOrder(t *testing.T) {
	runner := new(fakeRunner)
	r := newTestRegistrar(runner)

	code := r.Register(context.Background(), DefaultRecords())
	require.Equal(t, 0, code)
	require.Len(t, runner.invocations, 3)

	for i, inv := range runner.invocations {
		assert.Equal(t, "docker-compose", inv.name)
		require.Len(t, inv.args, 5)
		assert.Equal(t, []string{"exec", "spire-server", "sh", "-c"}, inv.args[:4])

		want := fmt.Sprintf("/opt/spire/spire-server entry create"+
			" -parentID spiffe://example.org/simple-secrets"+
			" -spiffeID spiffe://example.org/simple-secrets%d"+
			" -selector unix:uid:0 -ttl 120", i+1)
		assert.Equal(t, want, inv.args[4])
	}
}

func TestRegisterContinuesAfterFailure(t *testing.T) {
	runner := &fakeRunner{codes: []int{1, 0, 0}}
	r := newTestRegistrar(runner)

	code := r.Register(context.Background(), DefaultRecords())

	// All three commands ran; the aggregate code is the last command's.
	assert.Len(t, runner.invocations, 3)
	assert.Equal(t, 0, code)
}

func TestRegisterReturnsLastExitCode(t *testing.T) {
	runner := &fakeRunner{codes: []int{0, 0, 2}}
	r := newTestRegistrar(runner)

	code := r.Register(context.Background(), DefaultRecords())
	assert.Equal(t, 2, code)
}

func TestRegisterStartFailure(t *testing.T) {
	runner := &fakeRunner{errs: []error{nil, errors.New("compose not found"), nil}}
	r := newTestRegistrar(runner)

	code := r.Register(context.Background(), DefaultRecords())

	// The failed start is logged, later records still run, and the last
	// record's success wins.
	assert.Len(t, runner.invocations, 3)
	assert.Equal(t, 0, code)
}

func TestCommandMultipleSelectors(t *testing.T) {
	r := newTestRegistrar(new(fakeRunner))

	name, args := r.Command(Record{
		ParentID:  "spiffe://example.org/host",
		SpiffeID:  "spiffe://example.org/db",
		Selectors: []string{"unix:uid:0", "unix:gid:1000"},
		TTL:       60,
	})

	assert.Equal(t, "docker-compose", name)
	require.Len(t, args, 5)
	assert.True(t, strings.Contains(args[4], "-selector unix:uid:0 -selector unix:gid:1000"))
}

func TestCommandCustomBinaries(t *testing.T) {
	r := newTestRegistrar(new(fakeRunner))
	r.ComposeBin = "docker compose"
	r.Service = "spire"
	r.ServerBin = "/usr/bin/spire-server"

	name, args := r.Command(DefaultRecords()[0])
	assert.Equal(t, "docker compose", name)
	assert.Equal(t, "spire", args[1])
	assert.True(t, strings.HasPrefix(args[4], "/usr/bin/spire-server entry create "))
}
