// Package main is the entry point for the onboard CLI application.
package main

import (
	"fmt"
	"os"

	"github.com/danielolaszy/onboard/cmd"
)

// main executes the root command and exits non-zero on a fatal error. The
// error is already in the log; it is echoed to stderr for the operator.
func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
