// Package main is the entry point for the recruitmate CLI.
package main

import "github.com/recruitmate/recruitmate-cli/internal/cli"

func main() {
	cli.Execute()
}
