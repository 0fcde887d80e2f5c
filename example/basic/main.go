package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	lqd "github.com/and-elf/layered-queue-driver-sub000"
)

func main() {
	cfg, err := lqd.LoadConfig("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	rt, err := lqd.New(cfg)
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("driver exited: %v", err)
	}
}
