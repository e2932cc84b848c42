// Package main starts the standalone sweep process lifecycle.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	sweepcmd "github.com/louisbranch/stylematch/internal/cmd/sweep"
	"github.com/louisbranch/stylematch/internal/platform/config"
)

func main() {
	cfg, err := sweepcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	log.SetPrefix("[SWEEP] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sweepcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to run sweeper: %v", err)
	}
}
