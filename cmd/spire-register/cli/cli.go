package cli

import (
	"log"

	"github.com/mitchellh/cli"
	"github.com/simple-secrets/simple-secrets/cmd/spire-register/cli/run"
)

func Run(args []string) int {
	c := cli.NewCLI("spire-register", "0.1.0")
	c.Args = args
	c.Commands = map[string]cli.CommandFactory{
		"run": func() (cli.Command, error) {
			return &run.RunCLI{}, nil
		},
	}

	exitStatus, err := c.Run()
	if err != nil {
		log.Println(err)
	}
	return exitStatus
}
