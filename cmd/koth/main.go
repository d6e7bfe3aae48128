// Package main starts the koth service process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	kothcmd "github.com/louisbranch/koth/internal/cmd/koth"
)

var version = "dev"

func main() {
	cfg, err := kothcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[KOTH] ")
	if !cfg.NoBanner {
		if err := kothcmd.Banner(os.Stdout, version); err != nil {
			log.Printf("write banner: %v", err)
		}
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := kothcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
