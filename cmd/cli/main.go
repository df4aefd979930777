// Package main is the entry point for the meetctl CLI.
// The CLI submits recordings to a meetscribe server and reads back the results.
package main

import (
	"os"

	"meetscribe/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
