package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	kingdomcmd "github.com/louisbranch/kingdom/internal/cmd/kingdom"
	"github.com/louisbranch/kingdom/internal/platform/config"
)

// main runs one kingdom check from the command line.
func main() {
	cfg, err := kingdomcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := kingdomcmd.Run(ctx, cfg, os.Stdout); err != nil {
		config.Exitf("kingdom: %v", err)
	}
}
