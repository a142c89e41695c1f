// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package crc16arc

import "sync"

// Table holds the partial CRC for every possible leading byte.
type Table [256]uint16

var (
	defaultTable     *Table
	defaultTableOnce sync.Once
)

// InitTable builds a new lookup table for Polynomial.
// Every call returns a table with identical contents.
func InitTable() *Table {
	t := new(Table)
	for i := 0; i < 256; i++ {
		var crc uint16
		c := uint16(i<<8) & 0xFFFF

		for j := 0; j < 8; j++ {
			if (crc^c)&0x8000 != 0 {
				crc = ((crc << 1) & 0xFFFF) ^ Polynomial
			} else {
				crc = (crc << 1) & 0xFFFF
			}
			c = (c << 1) & 0xFFFF
		}
		t[i] = crc
	}
	return t
}

// sharedTable returns the process-wide table, building it on first use.
func sharedTable() *Table {
	defaultTableOnce.Do(func() {
		defaultTable = InitTable()
	})
	return defaultTable
}

// DefaultTable returns a copy of the table used by Sum and Checksum.
func DefaultTable() Table {
	return *sharedTable()
}
