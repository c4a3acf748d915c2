// Package main is the entry point for the answerdesk server and CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/answerdesk/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
