// Package main is the entry point for the library catalog server.
//
// MAIN PACKAGE IN GO:
// The main package should be kept minimal — its job is to:
// 1. Read configuration (flags, env vars, .env, catalog.yaml)
// 2. Create dependencies (logger, storage)
// 3. Start the application
//
// All actual logic lives in imported packages (internal/server, internal/handler, etc.).
//
// COMMANDS:
//
//	catalog            same as "catalog serve"
//	catalog serve      run the HTTP server
//	catalog seed       insert sample books into an empty catalog
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
