// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/Thermoquad/stickctl/pkg/vesc"
	"github.com/spf13/cobra"
)

var fwVersionCmd = &cobra.Command{
	Use:   "fw_version",
	Short: "Read the motor unit firmware version",
	Long: `Request the firmware version and print it as major.minor.

Exit codes:
  0 - Version received
  1 - Request failed
  2 - Connection error`,
	RunE: runFwVersion,
}

func init() {
	rootCmd.AddCommand(fwVersionCmd)
}

func runFwVersion(cmd *cobra.Command, args []string) error {
	_, log, link, _, err := setup()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer link.Close()
	defer log.Sync()

	resp, err := link.Request(vesc.NewFirmwareVersionCommand())
	if err == nil {
		var fw vesc.FirmwareVersion
		if fw, err = vesc.ParseFirmwareVersion(resp); err == nil {
			fmt.Println(fw)
			return nil
		}
	}

	fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
	os.Exit(1)
	return nil
}
