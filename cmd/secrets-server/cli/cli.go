package cli

import (
	"log"

	"github.com/mitchellh/cli"
	"github.com/simple-secrets/simple-secrets/cmd/secrets-server/cli/healthcheck"
	"github.com/simple-secrets/simple-secrets/cmd/secrets-server/cli/run"
)

func Run(args []string) int {
	c := cli.NewCLI("secrets-server", "0.1.0")
	c.Args = args
	c.Commands = map[string]cli.CommandFactory{
		"run": func() (cli.Command, error) {
			return &run.RunCLI{}, nil
		},
		"healthcheck": func() (cli.Command, error) {
			return healthcheck.NewHealthCheckCommand(), nil
		},
	}

	exitStatus, err := c.Run()
	if err != nil {
		log.Println(err)
	}
	return exitStatus
}
