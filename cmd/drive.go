// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/Thermoquad/stickctl/pkg/vesc"
	"github.com/spf13/cobra"
)

// Resend period while holding; well inside the motor unit's command timeout
const driveResendInterval = 100 * time.Millisecond

var driveHold time.Duration

var driveCmd = &cobra.Command{
	Use:   "drive",
	Short: "Send a single drive command to the motor unit",
	Long: `Bench commands that drive the motor unit directly, bypassing the buttons.

Without --hold the command is sent once; the motor unit's own command timeout
stops the motor shortly afterwards. With --hold the command is re-sent together
with a keepalive every 100ms for the given duration (or until Ctrl+C), then
zero current is commanded.

Examples:
  stickctl drive current 5 --hold 3s --port /dev/ttyUSB0
  stickctl drive brake 10 --port /dev/ttyUSB0
  stickctl drive duty 0.15 --hold 2s --port /dev/ttyUSB0
  stickctl drive rpm 3000 --hold 5s --port /dev/ttyUSB0`,
}

func init() {
	rootCmd.AddCommand(driveCmd)
	driveCmd.PersistentFlags().DurationVar(&driveHold, "hold", 0, "Keep driving for this long, then command zero current")

	driveCmd.AddCommand(
		newDriveSubcommand("current", "Set motor current in amps", "<amps>", vesc.NewSetCurrentCommand),
		newDriveSubcommand("brake", "Set brake current in amps", "<amps>", vesc.NewSetBrakeCurrentCommand),
		newDriveSubcommand("duty", "Set duty cycle (-1.0 to 1.0)", "<duty>", vesc.NewSetDutyCommand),
		newDriveSubcommand("rpm", "Set electrical RPM", "<erpm>", func(v float64) []byte {
			return vesc.NewSetRPMCommand(int32(math.Max(math.MinInt32, math.Min(math.MaxInt32, v))))
		}),
	)
}

func newDriveSubcommand(name, short, arg string, build func(float64) []byte) *cobra.Command {
	return &cobra.Command{
		Use:   name + " " + arg,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			value, err := strconv.ParseFloat(args[0], 64)
			if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
				return fmt.Errorf("invalid value %q", args[0])
			}
			return runDrive(name, value, build(value))
		},
	}
}

func runDrive(name string, value float64, payload []byte) error {
	_, log, link, connInfo, err := setup()
	if err != nil {
		return err
	}
	defer link.Close()
	defer log.Sync()

	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Sending %s %g\n", name, value)

	if err := link.Send(payload); err != nil {
		return fmt.Errorf("send %s: %w", name, err)
	}
	if driveHold <= 0 {
		return nil
	}

	ctx, stop := signalContext()
	defer stop()

	deadline := time.NewTimer(driveHold)
	defer deadline.Stop()
	ticker := time.NewTicker(driveResendInterval)
	defer ticker.Stop()

	failures := 0
hold:
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("Interrupted\n")
			break hold
		case <-deadline.C:
			break hold
		case <-ticker.C:
			if err := link.Send(payload); err != nil {
				failures++
				log.Debugw("resend failed", "command", name, "error", err)
				continue
			}
			if err := link.Send(vesc.NewAliveCommand()); err != nil {
				log.Debugw("keepalive failed", "error", err)
			}
		}
	}

	if failures > 0 {
		fmt.Printf("%d resends failed\n", failures)
	}
	fmt.Printf("Commanding zero current\n")
	if err := link.Send(vesc.NewSetCurrentCommand(0)); err != nil {
		return fmt.Errorf("send zero current: %w", err)
	}
	return nil
}
