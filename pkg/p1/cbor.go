// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package p1

import (
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Record is the archived form of a telegram
type Record struct {
	Timestamp time.Time           `cbor:"0,keyasint"`
	Header    string              `cbor:"1,keyasint"`
	CRC       uint16              `cbor:"2,keyasint"`
	HasCRC    bool                `cbor:"3,keyasint"`
	Objects   map[string][]string `cbor:"4,keyasint"`
	Raw       []byte              `cbor:"5,keyasint,omitempty"`
}

var (
	recordEncMode cbor.EncMode
	recordDecMode cbor.DecMode
)

func init() {
	var err error
	recordEncMode, err = cbor.EncOptions{
		Sort: cbor.SortCanonical,
		Time: cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(err)
	}
	recordDecMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
}

// NewRecord converts a telegram to its archived form.
// Values keep their unit suffix ("001234.567*kWh").
func NewRecord(t *Telegram, includeRaw bool) *Record {
	r := &Record{
		Timestamp: t.Timestamp(),
		Header:    t.Header(),
		CRC:       t.CRC(),
		HasCRC:    t.HasCRC(),
		Objects:   make(map[string][]string, len(t.Objects())),
	}
	for _, o := range t.Objects() {
		values := make([]string, 0, len(o.Values))
		for _, v := range o.Values {
			if v.Unit != "" {
				values = append(values, v.Value+"*"+v.Unit)
			} else {
				values = append(values, v.Value)
			}
		}
		r.Objects[o.OBIS] = values
	}
	if includeRaw {
		r.Raw = append([]byte(nil), t.Raw()...)
	}
	return r
}

// MarshalRecord encodes a telegram as a CBOR record
func MarshalRecord(t *Telegram, includeRaw bool) ([]byte, error) {
	data, err := recordEncMode.Marshal(NewRecord(t, includeRaw))
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR record: %w", err)
	}
	return data, nil
}

// UnmarshalRecord decodes a CBOR record
func UnmarshalRecord(data []byte) (*Record, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty CBOR record")
	}
	var r Record
	if err := recordDecMode.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to decode CBOR record: %w", err)
	}
	return &r, nil
}

// NewRecordDecoder returns a decoder for a stream of concatenated CBOR records
func NewRecordDecoder(r io.Reader) *cbor.Decoder {
	return recordDecMode.NewDecoder(r)
}
