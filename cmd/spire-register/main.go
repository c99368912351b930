package main

import (
	"os"

	"github.com/simple-secrets/simple-secrets/cmd/spire-register/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
