// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package crc16arc implements the CRC-16/ARC checksum used by DSMR P1 smart
// meter telegrams.
//
// Parameters:
//
//	Polynomial:      0x8005
//	Initial value:   0x0000
//	Input reflected: yes
//	Result reflected: yes
//	Final XOR value: 0x0000
//
// The engine is table driven. The table is built in the non-reflected form and
// reflection is applied to each input byte and to both result bytes.
package crc16arc

import "errors"

// CRC-16/ARC configuration
const (
	Polynomial = 0x8005
	Initial    = 0x0000
	FinalXOR   = 0x0000
)

// Size is the length of a CRC-16 checksum in bytes.
const Size = 2

// ErrLength is returned when a caller asks for more bytes than the buffer holds.
var ErrLength = errors.New("crc16arc: length out of range")
