package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	lqd "github.com/and-elf/layered-queue-driver-sub000"
)

// stdoutDispatcher prints every output event batch instead of putting it
// on a wire. Useful for bench setups without a bus attached.
type stdoutDispatcher struct{}

func (stdoutDispatcher) Name() string { return "stdout" }

func (stdoutDispatcher) Dispatch(events []lqd.OutputEvent) error {
	for _, evt := range events {
		fmt.Printf("%s target=0x%X device=%d value=%d ts=%d\n",
			evt.Type, evt.TargetID, evt.DeviceIndex, evt.Value, evt.Timestamp)
	}
	return nil
}

func main() {
	cfg, err := lqd.LoadConfig("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	rt, err := lqd.New(cfg, lqd.WithDispatcher(stdoutDispatcher{}))
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("driver exited: %v", err)
	}
}
