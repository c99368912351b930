package run

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hashicorp/hcl"
	"github.com/sirupsen/logrus"
	"github.com/spiffe/go-spiffe/v2/spiffeid"

	"github.com/simple-secrets/simple-secrets/pkg/common/log"
	"github.com/simple-secrets/simple-secrets/pkg/server"
)

const (
	defaultConfigPath          = "conf/server/server.conf"
	defaultBindAddress         = "0.0.0.0"
	defaultBindPort            = 3000
	defaultMetricsAddress      = "127.0.0.1"
	defaultMetricsPort         = 3001
	defaultSpiffeID            = "spiffe://example.org/simple-secrets"
	defaultEtcdClusterMembers  = "http://localhost:2379"
	defaultTokenExpirationSecs = 600
	defaultFluentdForwardAddr  = "127.0.0.1:24224"
	defaultLogLevel            = "INFO"
)

// runConfig represents available configurables for file and CLI options
type runConfig struct {
	Server serverConfig `hcl:"server"`
}

type serverConfig struct {
	BindAddress         string `hcl:"bind_address"`
	BindPort            int    `hcl:"bind_port"`
	MetricsAddress      string `hcl:"metrics_address"`
	MetricsPort         int    `hcl:"metrics_port"`
	SpiffeID            string `hcl:"spiffe_id"`
	EtcdClusterMembers  string `hcl:"etcd_cluster_members"`
	TokenExpirationSecs int    `hcl:"token_expiration_secs"`
	FluentdForwardAddr  string `hcl:"fluentd_forward_addr"`
	LogFile             string `hcl:"log_file"`
	LogLevel            string `hcl:"log_level"`
	LogFormat           string `hcl:"log_format"`
	ConfigPath          string
}

type RunCLI struct{}

func (*RunCLI) Synopsis() string {
	return "Runs the secret server"
}

func (*RunCLI) Help() string {
	_, err := parseFlags([]string{"-h"})
	return err.Error()
}

func (*RunCLI) Run(args []string) int {
	cliConfig, err := parseFlags(args)
	if err != nil {
		fmt.Println(err.Error())
		return 1
	}

	fileConfig, err := parseFile(cliConfig.Server.ConfigPath)
	if err != nil {
		fmt.Println(err.Error())
		return 1
	}

	c := newDefaultConfig()
	mergeConfig(c, fileConfig)
	mergeConfig(c, cliConfig)
	mergeEnv(c)

	serverConf, logger, err := buildConfig(c)
	if err != nil {
		fmt.Println(err.Error())
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.New(serverConf).Run(ctx); err != nil {
		logger.Error(err.Error())
		return 1
	}
	return 0
}

func parseFlags(args []string) (*runConfig, error) {
	flags := flag.NewFlagSet("run", flag.ContinueOnError)
	c := &runConfig{}

	flags.StringVar(&c.Server.ConfigPath, "config", defaultConfigPath, "Path to an HCL config file")
	flags.StringVar(&c.Server.BindAddress, "bindAddress", "", "IP address the API listens on")
	flags.IntVar(&c.Server.BindPort, "bindPort", 0, "Port the API listens on")
	flags.StringVar(&c.Server.MetricsAddress, "metricsAddress", "", "IP address the metrics endpoint listens on")
	flags.IntVar(&c.Server.MetricsPort, "metricsPort", 0, "Port the metrics endpoint listens on")
	flags.StringVar(&c.Server.SpiffeID, "spiffeID", "", "SPIFFE ID of this server instance")
	flags.StringVar(&c.Server.EtcdClusterMembers, "etcdClusterMembers", "", "Comma-separated etcd endpoint URLs")
	flags.IntVar(&c.Server.TokenExpirationSecs, "tokenExpirationSecs", 0, "Session token lifetime in seconds")
	flags.StringVar(&c.Server.FluentdForwardAddr, "fluentdForwardAddr", "", "host:port of the fluentd forward endpoint")
	flags.StringVar(&c.Server.LogFile, "logFile", "", "File to write logs to")
	flags.StringVar(&c.Server.LogLevel, "logLevel", "", "DEBUG, INFO, WARN or ERROR")
	flags.StringVar(&c.Server.LogFormat, "logFormat", "", "Log format: TEXT or JSON")

	return c, flags.Parse(args)
}

func parseFile(filePath string) (*runConfig, error) {
	c := &runConfig{}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		// The stock config path is optional; an explicitly requested file
		// must exist.
		if filePath == defaultConfigPath {
			return c, nil
		}
		p, absErr := filepath.Abs(filePath)
		if absErr != nil {
			p = filePath
		}
		return nil, fmt.Errorf("could not find config file %s: please use the -config flag", p)
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	if err := hcl.Decode(c, string(data)); err != nil {
		return nil, fmt.Errorf("unable to parse config file %s: %w", filePath, err)
	}
	return c, nil
}

func newDefaultConfig() *runConfig {
	return &runConfig{
		Server: serverConfig{
			BindAddress:         defaultBindAddress,
			BindPort:            defaultBindPort,
			MetricsAddress:      defaultMetricsAddress,
			MetricsPort:         defaultMetricsPort,
			SpiffeID:            defaultSpiffeID,
			EtcdClusterMembers:  defaultEtcdClusterMembers,
			TokenExpirationSecs: defaultTokenExpirationSecs,
			FluentdForwardAddr:  defaultFluentdForwardAddr,
			LogLevel:            defaultLogLevel,
		},
	}
}

// mergeConfig overlays set fields of overlay onto c.
func mergeConfig(c, overlay *runConfig) {
	if overlay.Server.BindAddress != "" {
		c.Server.BindAddress = overlay.Server.BindAddress
	}
	if overlay.Server.BindPort != 0 {
		c.Server.BindPort = overlay.Server.BindPort
	}
	if overlay.Server.MetricsAddress != "" {
		c.Server.MetricsAddress = overlay.Server.MetricsAddress
	}
	if overlay.Server.MetricsPort != 0 {
		c.Server.MetricsPort = overlay.Server.MetricsPort
	}
	if overlay.Server.SpiffeID != "" {
		c.Server.SpiffeID = overlay.Server.SpiffeID
	}
	if overlay.Server.EtcdClusterMembers != "" {
		c.Server.EtcdClusterMembers = overlay.Server.EtcdClusterMembers
	}
	if overlay.Server.TokenExpirationSecs != 0 {
		c.Server.TokenExpirationSecs = overlay.Server.TokenExpirationSecs
	}
	if overlay.Server.FluentdForwardAddr != "" {
		c.Server.FluentdForwardAddr = overlay.Server.FluentdForwardAddr
	}
	if overlay.Server.LogFile != "" {
		c.Server.LogFile = overlay.Server.LogFile
	}
	if overlay.Server.LogLevel != "" {
		c.Server.LogLevel = overlay.Server.LogLevel
	}
	if overlay.Server.LogFormat != "" {
		c.Server.LogFormat = overlay.Server.LogFormat
	}
}

// mergeEnv applies the environment variables that the original deployment
// tooling sets. They take precedence over file and flag values.
func mergeEnv(c *runConfig) {
	if val := os.Getenv("ETCD_CLUSTER_MEMBERS"); val != "" {
		c.Server.EtcdClusterMembers = val
	}
	if val := os.Getenv("TOKEN_EXPIRATION_SECS"); val != "" {
		if secs, err := strconv.Atoi(val); err == nil {
			c.Server.TokenExpirationSecs = secs
		}
	}
	if val := os.Getenv("FLUENTD_FORWARD_ADDR"); val != "" {
		c.Server.FluentdForwardAddr = val
	}
}

func buildConfig(c *runConfig) (server.Config, logrus.FieldLogger, error) {
	logger, err := log.NewLogger(c.Server.LogLevel, c.Server.LogFormat, c.Server.LogFile)
	if err != nil {
		return server.Config{}, nil, fmt.Errorf("could not start logger: %w", err)
	}

	if err := validateConfig(c); err != nil {
		return server.Config{}, nil, err
	}

	id, err := spiffeid.FromString(c.Server.SpiffeID)
	if err != nil {
		return server.Config{}, nil, fmt.Errorf("invalid spiffe_id: %w", err)
	}

	return server.Config{
		BindAddress:        c.Server.BindAddress,
		BindPort:           c.Server.BindPort,
		MetricsAddress:     c.Server.MetricsAddress,
		MetricsPort:        c.Server.MetricsPort,
		SpiffeID:           id,
		EtcdClusterMembers: strings.Split(c.Server.EtcdClusterMembers, ","),
		TokenTTL:           time.Duration(c.Server.TokenExpirationSecs) * time.Second,
		FluentdForwardAddr: c.Server.FluentdForwardAddr,
		Log:                logger,
	}, logger, nil
}

func validateConfig(c *runConfig) error {
	if c.Server.BindPort <= 0 || c.Server.BindPort > 65535 {
		return errors.New("bind_port must be between 1 and 65535")
	}
	if c.Server.MetricsPort <= 0 || c.Server.MetricsPort > 65535 {
		return errors.New("metrics_port must be between 1 and 65535")
	}
	if c.Server.TokenExpirationSecs <= 0 {
		return errors.New("token_expiration_secs must be positive")
	}
	if c.Server.EtcdClusterMembers == "" {
		return errors.New("at least one etcd cluster member is required")
	}
	return nil
}
