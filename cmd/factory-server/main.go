// Package main is the entry point of the factory simulation server.
// Wiring lives in internal/cli.
package main

import "github.com/MRamiBalles/factorysim/internal/cli"

func main() {
	cli.Execute()
}
