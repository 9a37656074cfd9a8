// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/stickctl/pkg/vesc"
	"github.com/spf13/cobra"
)

var (
	valuesJSON  bool
	valuesWatch time.Duration
)

var valuesCmd = &cobra.Command{
	Use:   "values",
	Short: "Read realtime values from the motor unit",
	Long: `Request the realtime values block once and print it.

With --watch the request repeats at the given period until interrupted, and a
link statistics summary is printed on exit.

Exit codes:
  0 - Values received
  1 - Request failed (timeout, checksum or malformed response)
  2 - Connection error`,
	RunE: runValues,
}

func init() {
	rootCmd.AddCommand(valuesCmd)
	valuesCmd.Flags().BoolVar(&valuesJSON, "json", false, "Print values as JSON")
	valuesCmd.Flags().DurationVar(&valuesWatch, "watch", 0, "Repeat at this period (e.g. 500ms)")
}

func runValues(cmd *cobra.Command, args []string) error {
	_, log, link, connInfo, err := setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer link.Close()
	defer log.Sync()

	if !valuesJSON {
		fmt.Printf("Connection: %s\n\n", connInfo)
	}

	if valuesWatch <= 0 {
		if err := printValues(link); err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
			os.Exit(1)
		}
		return nil
	}

	ctx, stop := signalContext()
	defer stop()

	ticker := time.NewTicker(valuesWatch)
	defer ticker.Stop()
	for {
		if err := printValues(link); err != nil {
			fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		}
		select {
		case <-ctx.Done():
			fmt.Print("\n" + link.Statistics().String())
			return nil
		case <-ticker.C:
		}
	}
}

func printValues(link requester) error {
	resp, err := link.Request(vesc.NewGetValuesCommand())
	if err != nil {
		return err
	}
	v, err := vesc.ParseValues(resp)
	if err != nil {
		return err
	}

	if valuesJSON {
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("[%s] values\n", time.Now().Format("15:04:05.000"))
	fmt.Print(vesc.FormatValues(v))
	return nil
}
