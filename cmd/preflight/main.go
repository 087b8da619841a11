package main

import (
	"fmt"
	"os"

	"github.com/preflight-sh/preflight/internal/plugin"
	"github.com/preflight-sh/preflight/internal/plugins"
	"github.com/preflight-sh/preflight/internal/plugins/service"
)

func main() {
	registry := plugin.NewRegistry()
	if err := plugins.RegisterAll(registry, service.Redis()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register requirement plugins: %v\n", err)
		os.Exit(1)
	}

	if err := newRootCmd(registry).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
