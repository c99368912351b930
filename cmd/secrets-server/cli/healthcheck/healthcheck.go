package healthcheck

import (
	"errors"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/mitchellh/cli"

	common_cli "github.com/simple-secrets/simple-secrets/pkg/common/cli"
)

const defaultServerAddr = "http://localhost:3000"

func NewHealthCheckCommand() cli.Command {
	return newHealthCheckCommand(common_cli.DefaultEnv)
}

func newHealthCheckCommand(env *common_cli.Env) *healthCheckCommand {
	return &healthCheckCommand{
		env: env,
	}
}

type healthCheckCommand struct {
	env *common_cli.Env

	serverAddr string
	verbose    bool
}

func (c *healthCheckCommand) Synopsis() string {
	return "Determines secret server health status"
}

func (c *healthCheckCommand) Help() string {
	// ignoring parsing errors since "-h" is always supported by the flags package
	_ = c.parseFlags([]string{"-h"})
	return ""
}

func (c *healthCheckCommand) Run(args []string) int {
	if err := c.parseFlags(args); err != nil {
		return 1
	}
	if err := c.run(); err != nil {
		// Ignore error since a failure to write to stderr cannot very well be
		// reported
		_ = c.env.ErrPrintf("Server is unhealthy: %v\n", err)
		return 1
	}
	if err := c.env.Println("Server is healthy."); err != nil {
		return 1
	}
	return 0
}

func (c *healthCheckCommand) parseFlags(args []string) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	fs.SetOutput(c.env.Stderr)
	fs.StringVar(&c.serverAddr, "serverAddr", defaultServerAddr, "Base URL of the secret server")
	fs.BoolVar(&c.verbose, "verbose", false, "Print verbose information")
	return fs.Parse(args)
}

func (c *healthCheckCommand) run() error {
	if c.verbose {
		_ = c.env.Printf("Checking server health...\n")
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(c.serverAddr + "/live")
	if err != nil {
		if c.verbose {
			_ = c.env.ErrPrintf("Failed to check health: %v\n", err)
		}
		return errors.New("unable to determine health")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("server returned status %q", resp.Status)
	}
	return nil
}
