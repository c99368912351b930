package audit

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePoster struct {
	tags     []string
	messages []any
	err      error
}

func (f *fakePoster) Post(tag string, message any) error {
	f.tags = append(f.tags, tag)
	f.messages = append(f.messages, message)
	return f.err
}

func TestRecordPostsTaggedEvent(t *testing.T) {
	log, hook := test.NewNullLogger()
	p := new(fakePoster)
	r := &FluentRecorder{client: p, tag: "spiffe://example.org/simple-secrets", log: log}

	r.Record(LoginSuccess, "Login success for user alice")

	require.Len(t, p.tags, 1)
	assert.Equal(t, "spiffe://example.org/simple-secrets", p.tags[0])
	assert.Equal(t, map[string]string{"LOGIN_SUCCESS": "Login success for user alice"}, p.messages[0])
	assert.Empty(t, hook.Entries)
}

func TestRecordLogsPostFailure(t *testing.T) {
	log, hook := test.NewNullLogger()
	p := &fakePoster{err: errors.New("forward endpoint down")}
	r := &FluentRecorder{client: p, tag: "t", log: log}

	r.Record(ServerStart, "starting")

	require.Len(t, hook.Entries, 1)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

func TestNewFluentRecorderBadAddress(t *testing.T) {
	log, _ := test.NewNullLogger()

	_, err := NewFluentRecorder("no-port", "t", log)
	assert.Error(t, err)

	_, err = NewFluentRecorder("localhost:abc", "t", log)
	assert.Error(t, err)
}
