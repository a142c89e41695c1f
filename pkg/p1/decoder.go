// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package p1

import (
	"fmt"

	"github.com/Thermoquad/meterstat/pkg/crc16arc"
)

// Decoder implements the P1 telegram decoder state machine
type Decoder struct {
	state     int
	buffer    []byte // '/' through '!' inclusive
	crc       uint16
	crcDigits int
	skipped   int  // Bytes seen outside a telegram
	trailer   int  // Line terminator bytes still expected after a telegram
}

// NewDecoder creates a new telegram decoder
func NewDecoder() *Decoder {
	return &Decoder{
		state:  stateIdle,
		buffer: make([]byte, 0, MaxTelegramSize),
	}
}

// Reset resets the decoder state to idle
func (d *Decoder) Reset() {
	d.state = stateIdle
	d.buffer = d.buffer[:0]
	d.crc = 0
	d.crcDigits = 0
	d.trailer = 0
}

// finish returns the decoder to idle after a telegram's last byte, expecting
// up to trailer more bytes of its CR/LF
func (d *Decoder) finish(trailer int) {
	d.Reset()
	d.trailer = trailer
}

// Skipped returns the number of bytes discarded outside of telegrams.
// The CR/LF that terminates a telegram is not counted.
func (d *Decoder) Skipped() int {
	return d.skipped
}

// GetRawBytes returns the bytes accumulated for the telegram in progress
func (d *Decoder) GetRawBytes() []byte {
	return d.buffer
}

// start begins a new telegram with the given start byte
func (d *Decoder) start() {
	d.Reset()
	d.buffer = append(d.buffer, StartByte)
	d.state = stateBody
}

// DecodeByte processes a single byte through the decoder state machine
// Returns a completed telegram, or nil if the telegram is incomplete
// Returns an error if decoding fails
func (d *Decoder) DecodeByte(b byte) (*Telegram, error) {
	switch d.state {
	case stateIdle:
		if b == StartByte {
			d.start()
			return nil, nil
		}
		if d.trailer > 0 && (b == '\r' || b == '\n') {
			d.trailer--
			return nil, nil
		}
		d.trailer = 0
		d.skipped++
		return nil, nil

	case stateBody:
		if b == StartByte {
			// Previous telegram was cut short; resynchronize on this one
			d.start()
			return nil, ErrUnexpectedStart
		}
		if len(d.buffer) >= MaxTelegramSize {
			d.Reset()
			return nil, fmt.Errorf("%w (max %d bytes)", ErrOverflow, MaxTelegramSize)
		}
		d.buffer = append(d.buffer, b)
		if b == EndByte {
			d.state = stateCRC
		}
		return nil, nil

	case stateCRC:
		if b == '\r' || b == '\n' {
			if d.crcDigits == 0 {
				// Legacy telegram without CRC
				telegram := NewTelegram(d.buffer, 0, false)
				trailer := 0
				if b == '\r' {
					trailer = 1
				}
				d.finish(trailer)
				return telegram, nil
			}
			digits := d.crcDigits
			d.Reset()
			return nil, fmt.Errorf("%w: CRC truncated after %d digits", ErrInvalidCRCDigit, digits)
		}
		if b == StartByte {
			d.start()
			return nil, ErrUnexpectedStart
		}

		v, ok := hexValue(b)
		if !ok {
			d.Reset()
			return nil, fmt.Errorf("%w: 0x%02X", ErrInvalidCRCDigit, b)
		}
		d.crc = d.crc<<4 | uint16(v)
		d.crcDigits++
		if d.crcDigits < CRCDigits {
			return nil, nil
		}

		// Telegram complete - validate CRC
		calculated := crc16arc.Sum(d.buffer)
		received := d.crc
		if calculated != received {
			d.finish(2)
			return nil, &CRCError{Calculated: calculated, Received: received}
		}

		telegram := NewTelegram(d.buffer, received, true)
		d.finish(2)
		return telegram, nil

	default:
		state := d.state
		d.Reset()
		return nil, fmt.Errorf("invalid state: %d", state)
	}
}

// Decode feeds every byte of data through the decoder, calling fn for each
// completed telegram or decode error
func (d *Decoder) Decode(data []byte, fn func(*Telegram, error)) {
	for _, b := range data {
		telegram, err := d.DecodeByte(b)
		if err != nil || telegram != nil {
			fn(telegram, err)
		}
	}
}

// hexValue converts an ASCII hex digit to its value
func hexValue(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	}
	return 0, false
}
