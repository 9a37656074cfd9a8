// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/Thermoquad/stickctl/pkg/config"
	"github.com/Thermoquad/stickctl/pkg/transport"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// GetPassword retrieves password from environment or prompts user
func GetPassword() (string, error) {
	if pw := os.Getenv("STICKCTL_PASSWORD"); pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, "Password: ")

	passwordBytes, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		// Fallback to regular input if terminal functions fail
		reader := bufio.NewReader(os.Stdin)
		password, err := reader.ReadString('\n')
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		fmt.Fprintln(os.Stderr)
		return strings.TrimSpace(password), nil
	}

	fmt.Fprintln(os.Stderr)
	return string(passwordBytes), nil
}

// OpenConnection opens the raw byte stream to the motor unit, either through
// a WebSocket bridge or a local serial port. The bridge wins when both are set.
func OpenConnection(cfg config.Config) (io.ReadWriteCloser, string, error) {
	if cfg.Bridge.URL != "" {
		password := ""
		if cfg.Bridge.Username != "" {
			var err error
			password, err = GetPassword()
			if err != nil {
				return nil, "", err
			}
		}

		conn, err := transport.DialWebSocket(cfg.Bridge.URL, cfg.Bridge.Username, password, cfg.Bridge.NoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("WebSocket: %s", cfg.Bridge.URL), nil
	}

	if cfg.Serial.Port != "" {
		conn, err := transport.OpenSerial(cfg.Serial.Port, cfg.Serial.Baud)
		if err != nil {
			return nil, "", err
		}
		return conn, fmt.Sprintf("Serial: %s @ %d baud", cfg.Serial.Port, cfg.Serial.Baud), nil
	}

	return nil, "", fmt.Errorf("either --port or --url must be specified")
}

// OpenLink opens the connection and wraps it in a request/response link
func OpenLink(cfg config.Config, log *zap.SugaredLogger) (*transport.Link, string, error) {
	conn, connInfo, err := OpenConnection(cfg)
	if err != nil {
		return nil, "", err
	}
	return transport.NewLink(conn, cfg.Serial.Timeout, log.Named("link")), connInfo, nil
}

// setup loads configuration, builds the logger and opens the link. Errors
// here are start-up failures and end the command.
func setup() (config.Config, *zap.SugaredLogger, *transport.Link, string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, nil, nil, "", err
	}
	log, err := newLogger(cfg.Log.Level, logSink)
	if err != nil {
		return cfg, nil, nil, "", err
	}
	link, connInfo, err := OpenLink(cfg, log)
	if err != nil {
		_ = log.Sync()
		return cfg, nil, nil, "", err
	}
	return cfg, log, link, connInfo, nil
}
