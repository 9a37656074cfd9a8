// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"

	"github.com/Thermoquad/stickctl/pkg/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	configPath string
	logLevel   string

	// logSink replaces stderr as the log destination when set
	logSink io.Writer
)

var rootCmd = &cobra.Command{
	Use:   "stickctl",
	Short: "Handheld motor-unit controller",
	Long: `Stickctl - Drives a VESC-style motor unit from three power buttons.

The controller polls the motor unit for realtime values, maps the slow, medium
and fast buttons to a commanded current, and latches an emergency stop when all
three buttons are held together. Bench commands talk to the motor unit directly.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

Settings not given as flags come from --config (YAML) or the built-in defaults.

For WebSocket authentication, the password is read from the STICKCTL_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.`,
	Version:      "1.0.0",
	SilenceUsage: true,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 0, "Baud rate (serial only, default 115200)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads --config and applies connection flags on top
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}

	if portName != "" {
		cfg.Serial.Port = portName
	}
	if baudRate > 0 {
		cfg.Serial.Baud = baudRate
	}
	if wsURL != "" {
		cfg.Bridge.URL = wsURL
	}
	if wsUsername != "" {
		cfg.Bridge.Username = wsUsername
	}
	if wsNoSSLVerify {
		cfg.Bridge.NoSSLVerify = true
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

// newLogger builds the console logger used by every component. Logs go to
// stderr so command output on stdout stays clean, or to sink when given.
func newLogger(level string, sink io.Writer) (*zap.SugaredLogger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	if sink != nil {
		enc := zap.NewDevelopmentEncoderConfig()
		enc.TimeKey = ""
		core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(sink), lvl)
		return zap.New(core).Sugar(), nil
	}

	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	zc.Development = false
	zc.DisableStacktrace = true
	zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Sugar(), nil
}
