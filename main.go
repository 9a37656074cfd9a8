// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Stickctl - Handheld motor-unit controller
//
// Drives a VESC-style motor unit over UART from three power buttons, with an
// emergency-stop interlock and bench tools for the serial link.

package main

import (
	"os"

	"github.com/Thermoquad/stickctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
