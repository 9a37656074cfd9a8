// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"log"

	"github.com/Thermoquad/stickctl/pkg/transport"
	"github.com/Thermoquad/stickctl/pkg/vesc"
	"github.com/spf13/cobra"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display frames on the wire in human-readable format",
	Long: `Passively decode and display frames as they arrive, without sending anything.

Point it at a tap on the UART between another controller and the motor unit,
or at a bridge that mirrors the traffic. Each frame is shown with timestamp,
command and decoded payload. Rejected frames are dumped as hex. Bytes outside
frames are counted and reported when the decoder resynchronizes.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Stickctl - Raw Frame Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := vesc.NewDecoder()
	buf := make([]byte, 128)

	for {
		n, err := conn.Read(buf)
		if err != nil {
			// A closed bridge does not come back
			if errors.Is(err, transport.ErrConnectionClosed) {
				if decoder.InFrame() {
					fmt.Printf("(partial frame at close: %s)\n", vesc.FormatHex(decoder.GetRawBytes()))
				}
				log.Printf("Connection closed")
				return nil
			}
			log.Printf("Read error: %v", err)
			continue
		}

		for i := 0; i < n; i++ {
			frame, err := decoder.DecodeByte(buf[i])
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				fmt.Printf("  raw: %s\n", vesc.FormatHex(decoder.Rejected()))
				continue
			}
			if frame == nil {
				continue
			}
			if skipped := decoder.Skipped(); skipped > 0 {
				fmt.Printf("(skipped %d bytes outside frames)\n", skipped)
			}
			fmt.Print(vesc.FormatFrame(frame))
		}
	}
}
