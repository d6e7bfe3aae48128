// Package main runs a one-shot health check against a koth service.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/louisbranch/koth/internal/cmd/probe"
	"github.com/louisbranch/koth/internal/platform/config"
)

func main() {
	cfg, err := probe.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := probe.Run(context.Background(), cfg, os.Stdout); err != nil {
		config.Exitf("probe: %v", err)
	}
}
