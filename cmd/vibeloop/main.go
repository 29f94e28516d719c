// Package main is the single-binary entrypoint for VibeLoop.
package main

import "github.com/vibeloop/vibeloop/internal/cli"

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cli.Execute(version)
}
