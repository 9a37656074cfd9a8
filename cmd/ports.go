// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/stickctl/pkg/transport"
	"github.com/spf13/cobra"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List serial ports",
	Long: `List the serial devices found on this host.

USB adapters are shown with their vendor and product ids, which helps telling
the motor unit's adapter apart from other devices.`,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := transport.ListPorts()
	if err != nil {
		return err
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}

	for _, p := range ports {
		if !p.IsUSB {
			fmt.Println(p.Name)
			continue
		}
		fmt.Printf("%s  USB %s:%s", p.Name, p.VID, p.PID)
		if p.Product != "" {
			fmt.Printf("  %s", p.Product)
		}
		if p.SerialNumber != "" {
			fmt.Printf("  serial=%s", p.SerialNumber)
		}
		fmt.Println()
	}
	return nil
}
