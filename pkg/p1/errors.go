// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package p1

import (
	"errors"
	"fmt"
)

// Decoder errors
var (
	ErrOverflow         = errors.New("telegram exceeds max size")
	ErrUnexpectedStart  = errors.New("unexpected start byte inside telegram")
	ErrInvalidCRCDigit  = errors.New("invalid CRC digit")
	ErrMissingDelimiter = errors.New("telegram must start with '/' and end with '!'")
)

// CRCError reports a telegram whose trailing CRC does not match its contents
type CRCError struct {
	Calculated uint16
	Received   uint16
}

// Error implements the error interface
func (e *CRCError) Error() string {
	return fmt.Sprintf("CRC mismatch: expected 0x%04X, got 0x%04X", e.Calculated, e.Received)
}

// ParseError reports a telegram line that is not a valid COSEM object
type ParseError struct {
	Line   int
	Text   string
	Reason string
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Reason, e.Text)
}
