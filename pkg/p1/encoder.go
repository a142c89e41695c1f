// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package p1

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/Thermoquad/meterstat/pkg/crc16arc"
)

// FormatCRC renders a CRC the way it is transmitted after '!'
func FormatCRC(crc uint16) string {
	return fmt.Sprintf("%04X", crc)
}

// Seal appends the CRC and line terminator to a telegram body.
// The body must start with '/' and end with '!'.
func Seal(body []byte) ([]byte, error) {
	if len(body) < 2 || body[0] != StartByte || body[len(body)-1] != EndByte {
		return nil, ErrMissingDelimiter
	}
	if len(body) > MaxTelegramSize {
		return nil, fmt.Errorf("%w: %d bytes (max %d)", ErrOverflow, len(body), MaxTelegramSize)
	}

	crc := crc16arc.Sum(body)

	out := make([]byte, 0, len(body)+CRCDigits+2)
	out = append(out, body...)
	out = append(out, FormatCRC(crc)...)
	out = append(out, '\r', '\n')
	return out, nil
}

// Encode builds a complete telegram from a header and objects, including CRC
func Encode(header string, objects []Object) ([]byte, error) {
	var sb strings.Builder
	sb.WriteByte(StartByte)
	sb.WriteString(header)
	sb.WriteString("\r\n\r\n")
	for _, o := range objects {
		if !ValidOBIS(o.OBIS) {
			return nil, fmt.Errorf("invalid OBIS reference %q", o.OBIS)
		}
		sb.WriteString(o.String())
		sb.WriteString("\r\n")
	}
	sb.WriteByte(EndByte)

	return Seal([]byte(sb.String()))
}

// MustEncode is like Encode but panics on error
func MustEncode(header string, objects []Object) []byte {
	data, err := Encode(header, objects)
	if err != nil {
		panic(fmt.Sprintf("p1: encode error: %v", err))
	}
	return data
}

// ExtractBody returns the portion of data from the first '/' through the
// following '!', ignoring any CRC already present
func ExtractBody(data []byte) ([]byte, error) {
	start := bytes.IndexByte(data, StartByte)
	if start < 0 {
		return nil, ErrMissingDelimiter
	}
	end := bytes.IndexByte(data[start:], EndByte)
	if end < 0 {
		return nil, ErrMissingDelimiter
	}
	return data[start : start+end+1], nil
}
