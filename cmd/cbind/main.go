// Command cbind generates host-language bindings for C++ libraries.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/cbind/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
