package main

import (
	"fmt"
	"os"

	"github.com/roach88/keyflow/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "keyflow: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
