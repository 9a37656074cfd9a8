// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runVirtualButtons bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the handheld controller",
	Long: `Run the controller until interrupted.

Three tasks run side by side:
  - telemetry: requests realtime values every telemetry.interval and sends a
    keepalive after each successful poll
  - control:   samples the buttons every control.interval, commands the
    matching current and handles the emergency stop
  - publish:   forwards telemetry and control state to MQTT (only when
    mqtt.broker is configured)

Holding slow, medium and fast together for the hold dwell latches an emergency
stop. Release everything, then press and release slow, medium and fast in that
order to leave it.

On SIGINT or SIGTERM the controller commands zero current before exiting.

With --virtual-buttons (or gpio.enabled: false) no GPIO is touched and the
buttons stay released, which is useful for telemetry and publishing only.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runVirtualButtons, "virtual-buttons", false, "Simulate the button panel instead of using GPIO")
}

func runRun(cmd *cobra.Command, args []string) error {
	s, err := newSession(runVirtualButtons)
	if err != nil {
		return err
	}
	defer s.Close()

	fmt.Printf("Stickctl - Controller\n")
	fmt.Printf("Connection: %s\n", s.connInfo)
	if s.Virtual() {
		fmt.Printf("Buttons: virtual (released)\n")
	}
	if s.publisher != nil {
		fmt.Printf("Publishing: %s -> %s (%s)\n", s.cfg.MQTT.Broker, s.cfg.MQTT.Topic, s.cfg.MQTT.Encoding)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signalContext()
	defer stop()

	if err := s.Run(ctx); err != nil {
		return err
	}
	s.log.Infow("controller stopped", "mode", s.Machine().State().Mode.String())
	return nil
}
