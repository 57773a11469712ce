// Package main is the entry point for the sharedvars command.
package main

import (
	"fmt"
	"os"

	"github.com/ASHISH26940/sharedvars/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "sharedvars: %v\n", err)
		os.Exit(1)
	}
}
