// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package p1

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// sampleBody is a Kaifa DSMR 4.2 telegram body ('/' through '!')
const sampleBody = "/KFM5KAIFA-METER\r\n\r\n" +
	"1-3:0.2.8(42)\r\n" +
	"0-0:1.0.0(161113205757W)\r\n" +
	"0-0:96.1.1(3960221976967177082151037881335713)\r\n" +
	"1-0:1.8.1(001581.123*kWh)\r\n" +
	"1-0:1.8.2(001435.706*kWh)\r\n" +
	"1-0:2.8.1(000000.000*kWh)\r\n" +
	"1-0:2.8.2(000000.000*kWh)\r\n" +
	"0-0:96.14.0(0002)\r\n" +
	"1-0:1.7.0(02.027*kW)\r\n" +
	"1-0:2.7.0(00.000*kW)\r\n" +
	"0-0:96.7.21(00015)\r\n" +
	"1-0:32.7.0(229.0*V)\r\n" +
	"0-1:24.1.0(003)\r\n" +
	"0-1:24.2.1(161129200000W)(00981.443*m3)\r\n" +
	"!"

const sampleCRC = 0x4709

const sampleTelegram = sampleBody + "4709\r\n"

// legacyTelegram is a DSMR 2.2 telegram with a continuation line and no CRC
const legacyTelegram = "/ISk5MT382-1004\r\n\r\n" +
	"0-0:96.1.1(4B414C37303035313039363132313132)\r\n" +
	"1-0:1.8.1(00185.000*kWh)\r\n" +
	"0-1:24.3.0(121030140000)(00)(60)(1)(0-1:24.2.1)(m3)\r\n" +
	"(00001.001)\r\n" +
	"!\r\n"

// decodeAll feeds data through a fresh decoder and collects results
func decodeAll(data string) ([]*Telegram, []error) {
	var telegrams []*Telegram
	var errs []error
	NewDecoder().Decode([]byte(data), func(t *Telegram, err error) {
		if err != nil {
			errs = append(errs, err)
			return
		}
		telegrams = append(telegrams, t)
	})
	return telegrams, errs
}

// ============================================================
// Decoder Tests
// ============================================================

func TestDecoder_ValidTelegram(t *testing.T) {
	telegrams, errs := decodeAll(sampleTelegram)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(telegrams) != 1 {
		t.Fatalf("expected 1 telegram, got %d", len(telegrams))
	}

	tg := telegrams[0]
	if tg.CRC() != sampleCRC {
		t.Errorf("CRC: expected 0x%04X, got 0x%04X", sampleCRC, tg.CRC())
	}
	if !tg.HasCRC() {
		t.Error("HasCRC should be true")
	}
	if tg.Header() != "KFM5KAIFA-METER" {
		t.Errorf("Header: got %q", tg.Header())
	}
	if string(tg.Raw()) != sampleBody {
		t.Errorf("Raw bytes should span '/' through '!'")
	}
	if len(tg.Objects()) != 14 {
		t.Errorf("expected 14 objects, got %d", len(tg.Objects()))
	}
	if len(tg.ParseErrors()) != 0 {
		t.Errorf("unexpected parse errors: %v", tg.ParseErrors())
	}
}

func TestDecoder_LowercaseCRC(t *testing.T) {
	telegrams, errs := decodeAll(sampleBody + "4709")
	if len(errs) != 0 || len(telegrams) != 1 {
		t.Fatalf("expected 1 telegram, got %d (errors %v)", len(telegrams), errs)
	}

	data := strings.Replace(sampleBody, "KAIFA", "Kaifa", 1)
	body := []byte(data)
	sealed, err := Seal(body)
	if err != nil {
		t.Fatalf("Seal error: %v", err)
	}
	lower := strings.ToLower(string(sealed[len(body):]))
	telegrams, errs = decodeAll(data + lower)
	if len(errs) != 0 || len(telegrams) != 1 {
		t.Errorf("lowercase CRC digits should be accepted (errors %v)", errs)
	}
}

func TestDecoder_CRCMismatch(t *testing.T) {
	corrupted := strings.Replace(sampleTelegram, "001581.123", "001581.124", 1)
	telegrams, errs := decodeAll(corrupted)
	if len(telegrams) != 0 {
		t.Fatalf("corrupted telegram should not decode")
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %v", errs)
	}

	var crcErr *CRCError
	if !errors.As(errs[0], &crcErr) {
		t.Fatalf("expected *CRCError, got %T: %v", errs[0], errs[0])
	}
	if crcErr.Received != sampleCRC {
		t.Errorf("Received: expected 0x%04X, got 0x%04X", sampleCRC, crcErr.Received)
	}
	if crcErr.Calculated == sampleCRC {
		t.Error("Calculated CRC should differ from received")
	}
}

func TestDecoder_LegacyTelegram(t *testing.T) {
	telegrams, errs := decodeAll(legacyTelegram)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(telegrams) != 1 {
		t.Fatalf("expected 1 telegram, got %d", len(telegrams))
	}

	tg := telegrams[0]
	if tg.HasCRC() {
		t.Error("legacy telegram should not have a CRC")
	}

	gas, ok := tg.Object(ObisGasLegacy)
	if !ok {
		t.Fatalf("missing %s", ObisGasLegacy)
	}
	if len(gas.Values) != 7 {
		t.Fatalf("expected continuation line merged (7 values), got %d", len(gas.Values))
	}
	if gas.Values[6].Value != "00001.001" {
		t.Errorf("continuation value: got %q", gas.Values[6].Value)
	}
}

func TestDecoder_SkipsNoiseBeforeStart(t *testing.T) {
	d := NewDecoder()
	var got *Telegram
	d.Decode([]byte("\x00\xffgarbage"+sampleTelegram), func(tg *Telegram, err error) {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got = tg
	})
	if got == nil {
		t.Fatal("telegram after noise should decode")
	}
	if d.Skipped() != 9 {
		t.Errorf("Skipped: expected 9, got %d", d.Skipped())
	}
}

func TestDecoder_SkippedIgnoresLineTerminators(t *testing.T) {
	legacy := "/ISk5MT382-1004\r\n\r\n1-0:1.8.1(00185.000*kWh)\r\n!\r\n"
	corrupted := sampleBody + "0000\r\n"

	d := NewDecoder()
	d.Decode([]byte(sampleTelegram+sampleTelegram+legacy+corrupted+"\r\nxy"+sampleTelegram), func(*Telegram, error) {})

	// Only the stray CRLF and "xy" are noise
	if d.Skipped() != 4 {
		t.Errorf("Skipped: expected 4, got %d", d.Skipped())
	}
}

func TestDecoder_UnexpectedStartResyncs(t *testing.T) {
	telegrams, errs := decodeAll("/TRUNCATED\r\n1-0:1.8.1(0" + sampleTelegram)
	if len(errs) != 1 || !errors.Is(errs[0], ErrUnexpectedStart) {
		t.Fatalf("expected ErrUnexpectedStart, got %v", errs)
	}
	if len(telegrams) != 1 {
		t.Fatalf("decoder should resync on the second start byte")
	}
}

func TestDecoder_InvalidCRCDigit(t *testing.T) {
	_, errs := decodeAll(sampleBody + "47G9\r\n")
	if len(errs) != 1 || !errors.Is(errs[0], ErrInvalidCRCDigit) {
		t.Fatalf("expected ErrInvalidCRCDigit, got %v", errs)
	}

	_, errs = decodeAll(sampleBody + "47\r\n")
	if len(errs) != 1 || !errors.Is(errs[0], ErrInvalidCRCDigit) {
		t.Fatalf("truncated CRC: expected ErrInvalidCRCDigit, got %v", errs)
	}
}

func TestDecoder_Overflow(t *testing.T) {
	d := NewDecoder()
	d.DecodeByte(StartByte)

	var err error
	for i := 0; i < MaxTelegramSize && err == nil; i++ {
		_, err = d.DecodeByte('x')
	}
	if !errors.Is(err, ErrOverflow) {
		t.Fatalf("expected ErrOverflow, got %v", err)
	}
	if len(d.GetRawBytes()) != 0 {
		t.Error("decoder should reset after overflow")
	}
}

func TestDecoder_BackToBack(t *testing.T) {
	telegrams, errs := decodeAll(sampleTelegram + sampleTelegram + legacyTelegram)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if len(telegrams) != 3 {
		t.Errorf("expected 3 telegrams, got %d", len(telegrams))
	}
}

// ============================================================
// Parser Tests
// ============================================================

func TestParseObjects_Values(t *testing.T) {
	_, objects, errs := ParseObjects([]byte(sampleBody))
	if len(errs) != 0 {
		t.Fatalf("unexpected parse errors: %v", errs)
	}

	want := []Object{
		{OBIS: "1-0:1.7.0", Values: []Value{{Value: "02.027", Unit: "kW"}}},
		{OBIS: "1-0:2.7.0", Values: []Value{{Value: "00.000", Unit: "kW"}}},
	}
	var got []Object
	for _, o := range objects {
		if o.OBIS == ObisPowerDelivered || o.OBIS == ObisPowerReturned {
			got = append(got, o)
		}
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("objects mismatch (-want +got):\n%s", diff)
	}

	var gas Object
	for _, o := range objects {
		if o.OBIS == ObisGasDelivered {
			gas = o
		}
	}
	wantGas := []Value{{Value: "161129200000W"}, {Value: "00981.443", Unit: "m3"}}
	if diff := cmp.Diff(wantGas, gas.Values); diff != "" {
		t.Errorf("gas values mismatch (-want +got):\n%s", diff)
	}
}

func TestParseObjects_MalformedLines(t *testing.T) {
	body := "/TEST\r\n\r\n" +
		"1-3:0.2.8(50)\r\n" +
		"garbage\r\n" +
		"1-0:1.8.1(0001.000*kWh\r\n" +
		"1-0:1.8(0001.000*kWh)\r\n" +
		"(continued)\r\n" +
		"!"

	header, objects, errs := ParseObjects([]byte(body))
	if header != "TEST" {
		t.Errorf("header: got %q", header)
	}
	if len(objects) != 1 {
		t.Errorf("expected 1 valid object, got %d", len(objects))
	}

	reasons := []string{}
	for _, e := range errs {
		reasons = append(reasons, e.Reason)
	}
	want := []string{"missing value", "unterminated value", "invalid OBIS reference"}
	if diff := cmp.Diff(want, reasons); diff != "" {
		t.Errorf("parse errors mismatch (-want +got):\n%s", diff)
	}
}

func TestParseObjects_OrphanContinuation(t *testing.T) {
	_, _, errs := ParseObjects([]byte("/TEST\r\n\r\n(orphan)\r\n!"))
	if len(errs) != 1 || errs[0].Reason != "continuation without object" {
		t.Errorf("expected orphan continuation error, got %v", errs)
	}
}

func TestValidOBIS(t *testing.T) {
	tests := []struct {
		obis string
		want bool
	}{
		{"1-0:1.8.1", true},
		{"0-0:96.14.0", true},
		{"0-1:24.2.1", true},
		{"1-3:0.2.8", true},
		{"", false},
		{"1-0:1.8", false},
		{"1-0:1.8.1.2", false},
		{"1:0-1.8.1", false},
		{"1-0:1.8.", false},
		{"1-0:1234.8.1", false},
		{"a-0:1.8.1", false},
	}
	for _, tt := range tests {
		if got := ValidOBIS(tt.obis); got != tt.want {
			t.Errorf("ValidOBIS(%q) = %v, want %v", tt.obis, got, tt.want)
		}
	}
}

func TestTelegram_Version(t *testing.T) {
	tg := NewTelegram([]byte(sampleBody), sampleCRC, true)
	v, ok := tg.Version()
	if !ok || v != "42" {
		t.Errorf("Version() = %q, %v; want \"42\", true", v, ok)
	}

	be := NewTelegram([]byte("/FLU5\r\n\r\n0-0:96.1.4(50217)\r\n!"), 0, true)
	v, ok = be.Version()
	if !ok || v != "50217" {
		t.Errorf("Belgian Version() = %q, %v; want \"50217\", true", v, ok)
	}

	legacy := NewTelegram([]byte("/X\r\n\r\n1-0:1.8.1(1*kWh)\r\n!"), 0, false)
	if _, ok := legacy.Version(); ok {
		t.Error("telegram without version object should report ok=false")
	}
}

// ============================================================
// Encoder Tests
// ============================================================

func TestSeal(t *testing.T) {
	sealed, err := Seal([]byte(sampleBody))
	if err != nil {
		t.Fatalf("Seal error: %v", err)
	}
	if string(sealed) != sampleTelegram {
		t.Errorf("Seal mismatch: got tail %q", sealed[len(sampleBody):])
	}
}

func TestSeal_RequiresDelimiters(t *testing.T) {
	for _, body := range []string{"", "/", "!", "no delimiters", "/missing end", "missing start!"} {
		if _, err := Seal([]byte(body)); !errors.Is(err, ErrMissingDelimiter) {
			t.Errorf("Seal(%q) should fail with ErrMissingDelimiter, got %v", body, err)
		}
	}
}

func TestEncode_DecodesBack(t *testing.T) {
	objects := []Object{
		{OBIS: ObisVersion, Values: []Value{{Value: "50"}}},
		{OBIS: ObisDeliveredTariff1, Values: []Value{{Value: "000123.456", Unit: "kWh"}}},
		{OBIS: ObisGasDelivered, Values: []Value{{Value: "200101000000W"}, {Value: "00012.345", Unit: "m3"}}},
	}
	wire, err := Encode("TST5TEST-METER", objects)
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}

	telegrams, errs := decodeAll(string(wire))
	if len(errs) != 0 || len(telegrams) != 1 {
		t.Fatalf("encoded telegram should decode (errors %v)", errs)
	}
	if diff := cmp.Diff(objects, telegrams[0].Objects()); diff != "" {
		t.Errorf("objects mismatch (-want +got):\n%s", diff)
	}
	if telegrams[0].Header() != "TST5TEST-METER" {
		t.Errorf("header: got %q", telegrams[0].Header())
	}
}

func TestEncode_InvalidOBIS(t *testing.T) {
	_, err := Encode("X", []Object{{OBIS: "bogus", Values: []Value{{Value: "1"}}}})
	if err == nil {
		t.Error("Encode should reject invalid OBIS references")
	}
}

func TestExtractBody(t *testing.T) {
	body, err := ExtractBody([]byte("noise" + sampleTelegram))
	if err != nil {
		t.Fatalf("ExtractBody error: %v", err)
	}
	if string(body) != sampleBody {
		t.Errorf("ExtractBody returned %q", body)
	}

	if _, err := ExtractBody([]byte("/no end")); !errors.Is(err, ErrMissingDelimiter) {
		t.Errorf("expected ErrMissingDelimiter, got %v", err)
	}
}

// ============================================================
// Validator Tests
// ============================================================

func anomalyTypes(errs []ValidationError) []AnomalyType {
	types := []AnomalyType{}
	for _, e := range errs {
		types = append(types, e.Type)
	}
	return types
}

func TestValidateTelegram_Valid(t *testing.T) {
	tg := NewTelegram([]byte(sampleBody), sampleCRC, true)
	if errs := ValidateTelegram(tg); len(errs) != 0 {
		t.Errorf("expected no validation errors, got %v", errs)
	}
}

func TestValidateTelegram_Anomalies(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		hasCRC bool
		want   []AnomalyType
	}{
		{
			name:   "legacy without CRC",
			body:   "/X\r\n\r\n1-0:1.8.1(1*kWh)\r\n!",
			hasCRC: false,
			want:   []AnomalyType{AnomalyMissingCRC},
		},
		{
			name:   "missing version",
			body:   "/X\r\n\r\n1-0:1.8.1(1*kWh)\r\n!",
			hasCRC: true,
			want:   []AnomalyType{AnomalyMissingVersion},
		},
		{
			name:   "duplicate object",
			body:   "/X\r\n\r\n1-3:0.2.8(50)\r\n1-0:1.8.1(1*kWh)\r\n1-0:1.8.1(2*kWh)\r\n!",
			hasCRC: true,
			want:   []AnomalyType{AnomalyDuplicateObject},
		},
		{
			name:   "empty",
			body:   "/\r\n!",
			hasCRC: true,
			want:   []AnomalyType{AnomalyMissingHeader, AnomalyNoObjects},
		},
		{
			name:   "malformed line",
			body:   "/X\r\n\r\n1-3:0.2.8(50)\r\nbroken\r\n!",
			hasCRC: true,
			want:   []AnomalyType{AnomalyMalformedLine},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tg := NewTelegram([]byte(tt.body), 0, tt.hasCRC)
			if diff := cmp.Diff(tt.want, anomalyTypes(ValidateTelegram(tg))); diff != "" {
				t.Errorf("anomalies mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_Update(t *testing.T) {
	s := NewStatistics()
	valid := NewTelegram([]byte(sampleBody), sampleCRC, true)
	legacy := NewTelegram([]byte("/X\r\n\r\n1-0:1.8.1(1*kWh)\r\n!"), 0, false)

	s.Update(valid, nil, ValidateTelegram(valid))
	s.Update(legacy, nil, ValidateTelegram(legacy))
	s.Update(nil, &CRCError{Calculated: 1, Received: 2}, nil)
	s.Update(nil, ErrOverflow, nil)

	if s.TotalTelegrams != 4 {
		t.Errorf("TotalTelegrams: expected 4, got %d", s.TotalTelegrams)
	}
	if s.ValidTelegrams != 1 {
		t.Errorf("ValidTelegrams: expected 1, got %d", s.ValidTelegrams)
	}
	if s.CRCErrors != 1 {
		t.Errorf("CRCErrors: expected 1, got %d", s.CRCErrors)
	}
	if s.DecodeErrors != 1 {
		t.Errorf("DecodeErrors: expected 1, got %d", s.DecodeErrors)
	}
	if s.MissingCRC != 1 || s.Anomalies != 1 {
		t.Errorf("MissingCRC/Anomalies: expected 1/1, got %d/%d", s.MissingCRC, s.Anomalies)
	}
	if s.ErrorCount() != 3 {
		t.Errorf("ErrorCount: expected 3, got %d", s.ErrorCount())
	}

	out := s.String()
	for _, want := range []string{"Total Telegrams:", "CRC Errors:", "Missing CRC:"} {
		if !strings.Contains(out, want) {
			t.Errorf("String() missing %q:\n%s", want, out)
		}
	}

	s.Reset()
	if s.TotalTelegrams != 0 || s.CRCErrors != 0 {
		t.Error("Reset should clear counters")
	}
}

func TestStatistics_WrappedCRCError(t *testing.T) {
	s := NewStatistics()
	wrapped := errors.Join(errors.New("reading port"), &CRCError{})
	s.Update(nil, wrapped, nil)
	if s.CRCErrors != 1 {
		t.Errorf("wrapped CRC errors should be classified as CRC errors")
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatTelegram(t *testing.T) {
	tg := NewTelegram([]byte(sampleBody), sampleCRC, true)
	out := FormatTelegram(tg)

	for _, want := range []string{"KFM5KAIFA-METER", "v42", "crc=0x4709", "Power delivered", "02.027 kW", "00981.443 m3"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatTelegram missing %q:\n%s", want, out)
		}
	}

	legacy := NewTelegram([]byte("/X\r\n\r\n1-0:1.8.1(1*kWh)\r\n!"), 0, false)
	if !strings.Contains(FormatTelegram(legacy), "crc=none") {
		t.Error("legacy telegram should format with crc=none")
	}
}

func TestFormatObisName(t *testing.T) {
	if FormatObisName(ObisVoltageL1) != "Voltage L1" {
		t.Errorf("unexpected name %q", FormatObisName(ObisVoltageL1))
	}
	if FormatObisName("9-9:9.9.9") != "UNKNOWN" {
		t.Error("unknown OBIS should format as UNKNOWN")
	}
}

// ============================================================
// CBOR Record Tests
// ============================================================

func TestRecord_RoundTrip(t *testing.T) {
	tg := NewTelegram([]byte(sampleBody), sampleCRC, true)
	data, err := MarshalRecord(tg, true)
	if err != nil {
		t.Fatalf("MarshalRecord error: %v", err)
	}

	r, err := UnmarshalRecord(data)
	if err != nil {
		t.Fatalf("UnmarshalRecord error: %v", err)
	}

	want := NewRecord(tg, true)
	if diff := cmp.Diff(want, r); diff != "" {
		t.Errorf("record mismatch (-want +got):\n%s", diff)
	}
	if got := r.Objects[ObisDeliveredTariff1]; len(got) != 1 || got[0] != "001581.123*kWh" {
		t.Errorf("unexpected tariff 1 values %v", got)
	}
}

func TestUnmarshalRecord_Empty(t *testing.T) {
	if _, err := UnmarshalRecord(nil); err == nil {
		t.Error("expected error for empty record")
	}
	if _, err := UnmarshalRecord([]byte{0xFF}); err == nil {
		t.Error("expected error for invalid CBOR")
	}
}

func TestRecordDecoder_Stream(t *testing.T) {
	tg := NewTelegram([]byte(sampleBody), sampleCRC, true)
	one, _ := MarshalRecord(tg, false)
	stream := append(append([]byte{}, one...), one...)

	dec := NewRecordDecoder(strings.NewReader(string(stream)))
	count := 0
	for {
		var r Record
		if err := dec.Decode(&r); err != nil {
			break
		}
		count++
	}
	if count != 2 {
		t.Errorf("expected 2 records in stream, got %d", count)
	}
}
