package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/and-elf/layered-queue-driver-sub000/internal/domain"
)

var snapshotURL string

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Fetch and print the current signal table from a running driver",
	RunE:  runSnapshot,
}

func init() {
	snapshotCmd.Flags().StringVar(&snapshotURL, "url", "http://localhost:9100/snapshots", "Snapshot endpoint of a running driver")
	rootCmd.AddCommand(snapshotCmd)
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(snapshotURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("snapshot endpoint returned %s", resp.Status)
	}

	var snaps []domain.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snaps); err != nil {
		return fmt.Errorf("decode snapshots: %w", err)
	}

	for _, s := range snaps {
		fmt.Printf("%3d  value=%-11d status=%-12s ts=%d\n", s.Index, s.Value, s.Status, s.Timestamp)
	}
	return nil
}
