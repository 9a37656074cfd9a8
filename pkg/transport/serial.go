// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// DefaultBaudRate matches the motor unit's UART configuration
const DefaultBaudRate = 115200

// serialReadPoll lets the reader notice Close without a pending byte
const serialReadPoll = 10 * time.Millisecond

// OpenSerial opens a serial port at 8N1 with no flow control
func OpenSerial(portName string, baudRate int) (io.ReadWriteCloser, error) {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}

	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(serialReadPoll); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", portName, err)
	}

	return port, nil
}

// PortInfo describes a serial device found on the host
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// ListPorts enumerates serial devices, with USB details where available
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		// Fall back to plain names when detailed enumeration is unsupported
		names, nerr := serial.GetPortsList()
		if nerr != nil {
			return nil, fmt.Errorf("failed to list serial ports: %w", nerr)
		}
		ports := make([]PortInfo, len(names))
		for i, name := range names {
			ports[i] = PortInfo{Name: name}
		}
		return ports, nil
	}

	ports := make([]PortInfo, len(details))
	for i, d := range details {
		ports[i] = PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		}
	}
	return ports, nil
}
