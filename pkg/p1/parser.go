// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package p1

import "strings"

// ParseObjects splits a telegram body into its identification header and
// COSEM objects. Malformed lines are reported but do not stop parsing.
// A line that starts with '(' continues the previous object, as DSMR 2.2 gas
// readings do.
func ParseObjects(raw []byte) (header string, objects []Object, errs []*ParseError) {
	lines := strings.Split(string(raw), "\n")

	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		lineNo := i + 1

		switch {
		case line == "":
			continue

		case i == 0 && line[0] == StartByte:
			header = line[1:]
			continue

		case line[0] == EndByte:
			// '!' terminates the body
			return header, objects, errs

		case line[0] == '(':
			if len(objects) == 0 {
				errs = append(errs, &ParseError{Line: lineNo, Text: line, Reason: "continuation without object"})
				continue
			}
			values, reason := parseValues(line)
			if reason != "" {
				errs = append(errs, &ParseError{Line: lineNo, Text: line, Reason: reason})
				continue
			}
			last := &objects[len(objects)-1]
			last.Values = append(last.Values, values...)
			continue
		}

		open := strings.IndexByte(line, '(')
		if open < 0 {
			errs = append(errs, &ParseError{Line: lineNo, Text: line, Reason: "missing value"})
			continue
		}

		obis := line[:open]
		if !ValidOBIS(obis) {
			errs = append(errs, &ParseError{Line: lineNo, Text: line, Reason: "invalid OBIS reference"})
			continue
		}

		values, reason := parseValues(line[open:])
		if reason != "" {
			errs = append(errs, &ParseError{Line: lineNo, Text: line, Reason: reason})
			continue
		}

		objects = append(objects, Object{OBIS: obis, Values: values})
	}

	return header, objects, errs
}

// parseValues parses a run of "(...)" groups. It returns a non-empty reason on failure.
func parseValues(s string) ([]Value, string) {
	var values []Value
	for len(s) > 0 {
		if s[0] != '(' {
			return nil, "unexpected text between values"
		}
		end := strings.IndexByte(s, ')')
		if end < 0 {
			return nil, "unterminated value"
		}

		group := s[1:end]
		v := Value{Value: group}
		if star := strings.IndexByte(group, '*'); star >= 0 {
			v.Value = group[:star]
			v.Unit = group[star+1:]
		}
		values = append(values, v)
		s = s[end+1:]
	}
	return values, ""
}

// ValidOBIS reports whether s has the form A-B:C.D.E with decimal groups
func ValidOBIS(s string) bool {
	// Separators in order after each numeric group
	seps := []byte{'-', ':', '.', '.', 0}
	group := 0
	digits := 0

	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			digits++
			if digits > 3 {
				return false
			}
			continue
		}
		if digits == 0 || group >= len(seps)-1 || c != seps[group] {
			return false
		}
		group++
		digits = 0
	}

	return group == len(seps)-1 && digits > 0
}
