package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/and-elf/layered-queue-driver-sub000/internal/app/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a configuration file without starting the driver",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if _, err := cfg.Engine.Build(); err != nil {
		return err
	}
	fmt.Printf("config %s looks good\n", cfgPath)
	return nil
}
