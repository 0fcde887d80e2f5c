package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/and-elf/layered-queue-driver-sub000/internal/app/config"
	"github.com/and-elf/layered-queue-driver-sub000/internal/app/runtime"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the driver until interrupted",
	RunE:  runDriver,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDriver(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rt, err := runtime.New(cfg)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return rt.Run(ctx)
}
