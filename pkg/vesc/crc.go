// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package vesc

import "github.com/sigurn/crc16"

// The motor unit uses CRC-16 with polynomial 0x1021, zero initial value,
// no reflection and no final xor (the XMODEM parameter set).
var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// Checksum computes the frame checksum over a payload
func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}
