// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package crc16arc

import "fmt"

// Calculate computes the CRC-16/ARC checksum of data using tab.
func Calculate(tab *Table, data []byte) uint16 {
	crc := uint16(Initial)
	for _, b := range data {
		idx := byte(crc>>8) ^ Reflect8(b)
		crc = ((crc << 8) & 0xFF00) ^ tab[idx]
	}

	// FinalXOR is zero for ARC; the XOR is kept so the byte layout matches
	// the other members of the family.
	lsb := Reflect8(byte(crc&0x00FF)) ^ byte(FinalXOR&0x00FF)
	msb := Reflect8(byte((crc&0xFF00)>>8)) ^ byte((FinalXOR&0xFF00)>>8)

	// Result reflected: the reflected low byte becomes the high byte.
	return uint16(lsb)<<8 + uint16(msb)
}

// Checksum computes the CRC-16/ARC checksum over the first length bytes of data.
// It returns an error wrapping ErrLength if length is negative or larger than
// the buffer.
func Checksum(data []byte, length int) (uint16, error) {
	if length < 0 || length > len(data) {
		return 0, fmt.Errorf("%w: %d (buffer holds %d bytes)", ErrLength, length, len(data))
	}
	return Calculate(sharedTable(), data[:length]), nil
}

// Sum computes the CRC-16/ARC checksum of the whole buffer.
func Sum(data []byte) uint16 {
	return Calculate(sharedTable(), data)
}

// AppendSum appends the checksum of data to dst in big-endian order.
func AppendSum(dst, data []byte) []byte {
	crc := Sum(data)
	return append(dst, byte(crc>>8), byte(crc&0xFF))
}
