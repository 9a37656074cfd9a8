// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Interactive bench console with keyboard buttons",
	Long: `Run the controller with the button panel on the keyboard and watch it live.

The same telemetry, control and publish tasks as 'run' are started, but the
slow, medium and fast buttons are simulated:
  1, 2, 3  toggle slow, medium and fast
  a        press all three (hold for the dwell to latch the emergency stop)
  r        release all
  q        quit (zero current is commanded on the way out)

The screen shows the control mode, level and commanded current, the indicator
outputs, the latest realtime values from the motor unit and link statistics.
Log output is shown in the event pane instead of the terminal.

Supports both serial and WebSocket connections.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	sink := &programWriter{}
	logSink = sink

	s, err := newSession(true)
	if err != nil {
		return err
	}
	defer s.Close()

	m := initialMonitorModel(s.connInfo, s.Machine(), s.Store(), s.indicators, s.link.Statistics(), s.buttons)
	p := tea.NewProgram(m)
	sink.attach(p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	_, tuiErr := p.Run()

	// Stop the tasks and wait for the zero current command
	cancel()
	runErr := <-done

	if tuiErr != nil {
		return fmt.Errorf("TUI error: %w", tuiErr)
	}
	return runErr
}
