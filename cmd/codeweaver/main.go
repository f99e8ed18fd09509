// Package main is the entry point for the codeweaver CLI.
package main

import (
	"fmt"
	"os"

	"github.com/imyousuf/CodeWeaver/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
