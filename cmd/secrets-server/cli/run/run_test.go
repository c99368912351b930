package run

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlagsDefaults(t *testing.T) {
	c, err := parseFlags([]string{})
	require.NoError(t, err)
	assert.Equal(t, defaultConfigPath, c.Server.ConfigPath)
	assert.Empty(t, c.Server.BindAddress)
	assert.Zero(t, c.Server.BindPort)
}

func TestParseFlags(t *testing.T) {
	c, err := parseFlags([]string{
		"-bindAddress", "127.0.0.1",
		"-bindPort", "4000",
		"-etcdClusterMembers", "http://etcd1:2379,http://etcd2:2379",
		"-logLevel", "DEBUG",
	})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", c.Server.BindAddress)
	assert.Equal(t, 4000, c.Server.BindPort)
	assert.Equal(t, "http://etcd1:2379,http://etcd2:2379", c.Server.EtcdClusterMembers)
	assert.Equal(t, "DEBUG", c.Server.LogLevel)
}

func TestParseFileMissingDefaultPath(t *testing.T) {
	c, err := parseFile(defaultConfigPath)
	require.NoError(t, err)
	assert.Equal(t, &runConfig{}, c)
}

func TestParseFileMissingExplicitPath(t *testing.T) {
	_, err := parseFile(filepath.Join(t.TempDir(), "nope.conf"))
	require.ErrorContains(t, err, "could not find config file")
}

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.conf")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

func TestParseFile(t *testing.T) {
	path := writeConfig(t, `
server {
    bind_address = "10.0.0.5"
    bind_port = 3300
    spiffe_id = "spiffe://example.org/other"
    etcd_cluster_members = "http://etcd:2379"
    token_expiration_secs = 120
    log_level = "WARN"
}
`)

	c, err := parseFile(path)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", c.Server.BindAddress)
	assert.Equal(t, 3300, c.Server.BindPort)
	assert.Equal(t, "spiffe://example.org/other", c.Server.SpiffeID)
	assert.Equal(t, "http://etcd:2379", c.Server.EtcdClusterMembers)
	assert.Equal(t, 120, c.Server.TokenExpirationSecs)
	assert.Equal(t, "WARN", c.Server.LogLevel)
}

func TestParseFileMalformed(t *testing.T) {
	path := writeConfig(t, `server { bind_port = `)
	_, err := parseFile(path)
	require.ErrorContains(t, err, "unable to parse config file")
}

func TestMergePrecedence(t *testing.T) {
	c := newDefaultConfig()

	fileConfig := &runConfig{}
	fileConfig.Server.BindPort = 3300
	fileConfig.Server.LogLevel = "WARN"
	mergeConfig(c, fileConfig)

	cliConfig := &runConfig{}
	cliConfig.Server.LogLevel = "DEBUG"
	mergeConfig(c, cliConfig)

	// File overrode the default; the flag overrode the file; untouched
	// fields keep their defaults.
	assert.Equal(t, 3300, c.Server.BindPort)
	assert.Equal(t, "DEBUG", c.Server.LogLevel)
	assert.Equal(t, defaultBindAddress, c.Server.BindAddress)
	assert.Equal(t, defaultTokenExpirationSecs, c.Server.TokenExpirationSecs)
}

func TestMergeEnv(t *testing.T) {
	t.Setenv("ETCD_CLUSTER_MEMBERS", "http://env-etcd:2379")
	t.Setenv("TOKEN_EXPIRATION_SECS", "900")
	t.Setenv("FLUENTD_FORWARD_ADDR", "collector:24224")

	c := newDefaultConfig()
	mergeEnv(c)

	assert.Equal(t, "http://env-etcd:2379", c.Server.EtcdClusterMembers)
	assert.Equal(t, 900, c.Server.TokenExpirationSecs)
	assert.Equal(t, "collector:24224", c.Server.FluentdForwardAddr)
}

func TestMergeEnvBadExpiration(t *testing.T) {
	t.Setenv("TOKEN_EXPIRATION_SECS", "soon")

	c := newDefaultConfig()
	mergeEnv(c)
	assert.Equal(t, defaultTokenExpirationSecs, c.Server.TokenExpirationSecs)
}

func TestBuildConfig(t *testing.T) {
	c := newDefaultConfig()
	c.Server.EtcdClusterMembers = "http://a:2379,http://b:2379"

	serverConf, logger, err := buildConfig(c)
	require.NoError(t, err)
	require.NotNil(t, logger)

	assert.Equal(t, "spiffe://example.org/simple-secrets", serverConf.SpiffeID.String())
	assert.Equal(t, []string{"http://a:2379", "http://b:2379"}, serverConf.EtcdClusterMembers)
	assert.Equal(t, "0.0.0.0", serverConf.BindAddress)
	assert.Equal(t, 3000, serverConf.BindPort)
}

func TestValidateConfig(t *testing.T) {
	for _, tt := range []struct {
		name    string
		mutate  func(*runConfig)
		wantErr string
	}{
		{
			name:    "bad bind port",
			mutate:  func(c *runConfig) { c.Server.BindPort = -1 },
			wantErr: "bind_port",
		},
		{
			name:    "bad metrics port",
			mutate:  func(c *runConfig) { c.Server.MetricsPort = 70000 },
			wantErr: "metrics_port",
		},
		{
			name:    "bad token expiration",
			mutate:  func(c *runConfig) { c.Server.TokenExpirationSecs = 0 },
			wantErr: "token_expiration_secs",
		},
		{
			name:    "no etcd members",
			mutate:  func(c *runConfig) { c.Server.EtcdClusterMembers = "" },
			wantErr: "etcd cluster member",
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			c := newDefaultConfig()
			tt.mutate(c)
			err := validateConfig(c)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestBuildConfigBadSpiffeID(t *testing.T) {
	c := newDefaultConfig()
	c.Server.SpiffeID = "not-a-spiffe-id"

	_, _, err := buildConfig(c)
	require.ErrorContains(t, err, "invalid spiffe_id")
}
