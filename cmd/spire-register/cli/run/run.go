package run

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/hashicorp/hcl"
	"github.com/hashicorp/hcl/hcl/ast"

	"github.com/simple-secrets/simple-secrets/pkg/common/log"
	"github.com/simple-secrets/simple-secrets/pkg/register"
)

const (
	defaultConfigPath = "conf/register/register.conf"
	defaultLogLevel   = "INFO"
)

// runConfig represents available configurables for file and CLI options
type runConfig struct {
	Register registerConfig
	Entries  []entryConfig
}

type registerConfig struct {
	ComposeBin string `hcl:"compose_bin"`
	Service    string `hcl:"service"`
	ServerBin  string `hcl:"server_bin"`
	LogFile    string `hcl:"log_file"`
	LogLevel   string `hcl:"log_level"`
	LogFormat  string `hcl:"log_format"`
	ConfigPath string
}

type entryConfig struct {
	ParentID  string   `hcl:"parent_id"`
	SpiffeID  string   `hcl:"spiffe_id"`
	Selectors []string `hcl:"selectors"`
	TTL       int      `hcl:"ttl"`
}

type RunCLI struct{}

func (*RunCLI) Synopsis() string {
	return "Creates the workload registration entries on the SPIRE server"
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

	fileConfig, err := parseFile(cliConfig.Register.ConfigPath)
	if err != nil {
		fmt.Println(err.Error())
		return 1
	}

	c := newDefaultConfig()
	mergeConfig(c, fileConfig)
	mergeConfig(c, cliConfig)

	logger, err := log.NewLogger(c.Register.LogLevel, c.Register.LogFormat, c.Register.LogFile)
	if err != nil {
		fmt.Println(err.Error())
		return 1
	}

	records := records(c)
	for _, record := range records {
		if err := record.Validate(); err != nil {
			logger.Error(err.Error())
			return 1
		}
	}

	registrar := register.NewRegistrar(logger)
	registrar.ComposeBin = c.Register.ComposeBin
	registrar.Service = c.Register.Service
	registrar.ServerBin = c.Register.ServerBin

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return registrar.Register(ctx, records)
}

func parseFlags(args []string) (*runConfig, error) {
	flags := flag.NewFlagSet("run", flag.ContinueOnError)
	c := &runConfig{}

	flags.StringVar(&c.Register.ConfigPath, "config", defaultConfigPath, "Path to an HCL config file")
	flags.StringVar(&c.Register.ComposeBin, "composeBin", "", "Compose command used to reach the container")
	flags.StringVar(&c.Register.Service, "service", "", "Compose service name running the SPIRE server")
	flags.StringVar(&c.Register.ServerBin, "serverBin", "", "spire-server binary path inside the container")
	flags.StringVar(&c.Register.LogFile, "logFile", "", "File to write logs to")
	flags.StringVar(&c.Register.LogLevel, "logLevel", "", "DEBUG, INFO, WARN or ERROR")
	flags.StringVar(&c.Register.LogFormat, "logFormat", "", "Log format: TEXT or JSON")

	return c, flags.Parse(args)
}

func parseFile(filePath string) (*runConfig, error) {
	c := &runConfig{}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		// Without a config file the stock entries are registered.
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
	hclTree, err := hcl.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("unable to parse config file %s: %w", filePath, err)
	}
	list, ok := hclTree.Node.(*ast.ObjectList)
	if !ok {
		return nil, fmt.Errorf("unable to parse config file %s: root is not an object list", filePath)
	}

	if items := list.Filter("register").Items; len(items) > 0 {
		if err := hcl.DecodeObject(&c.Register, items[0]); err != nil {
			return nil, fmt.Errorf("unable to parse register block in %s: %w", filePath, err)
		}
	}

	// The decoder cannot expand repeated blocks holding list values into a
	// slice of structs in one pass, so each entry block is decoded on its own.
	for _, item := range list.Filter("entry").Items {
		e := entryConfig{}
		if err := hcl.DecodeObject(&e, item); err != nil {
			return nil, fmt.Errorf("unable to parse entry block in %s: %w", filePath, err)
		}
		c.Entries = append(c.Entries, e)
	}

	return c, nil
}

func newDefaultConfig() *runConfig {
	return &runConfig{
		Register: registerConfig{
			ComposeBin: register.DefaultComposeBin,
			Service:    register.DefaultService,
			ServerBin:  register.DefaultServerBin,
			LogLevel:   defaultLogLevel,
		},
	}
}

// mergeConfig overlays set fields of overlay onto c.
func mergeConfig(c, overlay *runConfig) {
	if overlay.Register.ComposeBin != "" {
		c.Register.ComposeBin = overlay.Register.ComposeBin
	}
	if overlay.Register.Service != "" {
		c.Register.Service = overlay.Register.Service
	}
	if overlay.Register.ServerBin != "" {
		c.Register.ServerBin = overlay.Register.ServerBin
	}
	if overlay.Register.LogFile != "" {
		c.Register.LogFile = overlay.Register.LogFile
	}
	if overlay.Register.LogLevel != "" {
		c.Register.LogLevel = overlay.Register.LogLevel
	}
	if overlay.Register.LogFormat != "" {
		c.Register.LogFormat = overlay.Register.LogFormat
	}
	if len(overlay.Entries) > 0 {
		c.Entries = overlay.Entries
	}
}

// records returns the configured registration entries, falling back to the
// stock set when the config names none.
func records(c *runConfig) []register.Record {
	if len(c.Entries) == 0 {
		return register.DefaultRecords()
	}

	records := make([]register.Record, 0, len(c.Entries))
	for _, e := range c.Entries {
		records = append(records, register.Record{
			ParentID:  e.ParentID,
			SpiffeID:  e.SpiffeID,
			Selectors: e.Selectors,
			TTL:       e.TTL,
		})
	}
	return records
}
