// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/stickctl/pkg/vesc"
	"github.com/spf13/cobra"
)

var (
	pingCount    int
	pingInterval time.Duration
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test the link with firmware version round trips",
	Long: `Send firmware version requests and report the round-trip time of each.

Works over a local serial port or a WebSocket bridge. This is useful for
verifying:
  - the port or bridge connection is established
  - HTTP Basic authentication works (bridge only)
  - the motor unit answers with valid, checksummed frames
  - the round trip fits inside the link timeout

Exit codes:
  0 - All pings successful
  1 - One or more pings failed/timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
	pingCmd.Flags().DurationVar(&pingInterval, "interval", 100*time.Millisecond, "Delay between pings")
}

func runPing(cmd *cobra.Command, args []string) error {
	_, log, link, connInfo, err := setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer link.Close()
	defer log.Sync()

	fmt.Printf("Stickctl - Link Ping Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %v per ping\n", link.Timeout())
	fmt.Printf("Count: %d pings\n\n", pingCount)

	successCount := 0
	var total time.Duration

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		start := time.Now()
		resp, err := link.Request(vesc.NewFirmwareVersionCommand())
		rtt := time.Since(start)

		switch {
		case errors.Is(err, vesc.ErrTimeout):
			fmt.Printf("TIMEOUT (no response in %v)\n", link.Timeout())
		case err != nil:
			fmt.Printf("FAILED: %v\n", err)
		default:
			fw, perr := vesc.ParseFirmwareVersion(resp)
			if perr != nil {
				fmt.Printf("BAD RESPONSE: %v\n", perr)
				break
			}
			fmt.Printf("firmware %s, rtt=%v\n", fw, rtt.Round(100*time.Microsecond))
			successCount++
			total += rtt
		}

		if i < pingCount {
			time.Sleep(pingInterval)
		}
	}

	failCount := pingCount - successCount
	fmt.Printf("\n--- Ping statistics ---\n")
	var loss float64
	if pingCount > 0 {
		loss = float64(failCount) / float64(pingCount) * 100
	}
	fmt.Printf("%d pings sent, %d responses received, %.0f%% packet loss\n",
		pingCount, successCount, loss)
	if successCount > 0 {
		fmt.Printf("average rtt %v\n", (total / time.Duration(successCount)).Round(100*time.Microsecond))
	}

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
