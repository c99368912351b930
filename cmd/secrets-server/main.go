package main

import (
	"os"

	"github.com/simple-secrets/simple-secrets/cmd/secrets-server/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
