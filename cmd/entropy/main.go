// Package main runs go test with a reproducible seed.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/entropy/internal/cmd/entropy"
	platformcmd "github.com/louisbranch/entropy/internal/platform/cmd"
	"github.com/louisbranch/entropy/internal/platform/config"
)

func main() {
	cfg, err := entropy.ParseConfig(flag.CommandLine, os.Args[1:], os.LookupEnv)
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceEntropy, func(ctx context.Context) error {
		return entropy.Run(ctx, cfg, os.Stdout, os.Stderr)
	})
	stop()
	config.Exit(err)
}
