// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package p1

import (
	"strings"
	"time"
)

// Value is a single parenthesised group of a COSEM object, e.g. "(001234.567*kWh)"
type Value struct {
	Value string
	Unit  string
}

// String renders the value the way it appears on the wire
func (v Value) String() string {
	if v.Unit == "" {
		return "(" + v.Value + ")"
	}
	return "(" + v.Value + "*" + v.Unit + ")"
}

// Object is a COSEM object line: an OBIS reference followed by one or more values
type Object struct {
	OBIS   string
	Values []Value
}

// String renders the object as a telegram line without line terminator
func (o Object) String() string {
	var sb strings.Builder
	sb.WriteString(o.OBIS)
	for _, v := range o.Values {
		sb.WriteString(v.String())
	}
	return sb.String()
}

// Value returns the first value of the object, or an empty Value
func (o Object) Value() Value {
	if len(o.Values) == 0 {
		return Value{}
	}
	return o.Values[0]
}

// Telegram represents a decoded P1 telegram
type Telegram struct {
	raw       []byte // '/' through '!' inclusive
	header    string
	objects   []Object
	parseErrs []*ParseError
	crc       uint16
	hasCRC    bool
	timestamp time.Time
}

// NewTelegram creates a telegram from its raw bytes ('/' through '!') and parses its objects
func NewTelegram(raw []byte, crc uint16, hasCRC bool) *Telegram {
	t := &Telegram{
		raw:       append([]byte(nil), raw...),
		crc:       crc,
		hasCRC:    hasCRC,
		timestamp: time.Now(),
	}
	t.header, t.objects, t.parseErrs = ParseObjects(t.raw)
	return t
}

// Raw returns the telegram bytes from '/' through '!' inclusive
func (t *Telegram) Raw() []byte {
	return t.raw
}

// Header returns the meter identification line without the leading '/'
func (t *Telegram) Header() string {
	return t.header
}

// Objects returns the parsed COSEM objects in telegram order
func (t *Telegram) Objects() []Object {
	return t.objects
}

// ParseErrors returns the lines that could not be parsed
func (t *Telegram) ParseErrors() []*ParseError {
	return t.parseErrs
}

// Object returns the first object with the given OBIS reference
func (t *Telegram) Object(obis string) (Object, bool) {
	for _, o := range t.objects {
		if o.OBIS == obis {
			return o, true
		}
	}
	return Object{}, false
}

// Version returns the P1 version reported by the meter, if present
func (t *Telegram) Version() (string, bool) {
	if o, ok := t.Object(ObisVersion); ok {
		return o.Value().Value, true
	}
	if o, ok := t.Object(ObisVersionBelgium); ok {
		return o.Value().Value, true
	}
	return "", false
}

// CRC returns the CRC received with the telegram
func (t *Telegram) CRC() uint16 {
	return t.crc
}

// HasCRC returns false for legacy telegrams that end without a CRC
func (t *Telegram) HasCRC() bool {
	return t.hasCRC
}

// Timestamp returns the telegram's decode timestamp
func (t *Telegram) Timestamp() time.Time {
	return t.timestamp
}
