package main

import (
	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "lqd",
	Short: "Layered signal queue driver",
	Long: `lqd runs the layered signal processing driver: it collects raw samples
from serial and OPC UA sources, pushes them through the remap, merge,
scale and monitoring stages, and dispatches the resulting output events.

Snapshots and Prometheus metrics are served over HTTP while the driver
is running.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "./data/config.yaml", "Path to driver configuration file")
}
