package main

import (
	"fmt"
	"os"

	"github.com/roach88/profilebus/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "profilebus: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
