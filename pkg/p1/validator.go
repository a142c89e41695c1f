// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package p1

import "fmt"

// AnomalyType represents different types of telegram anomalies
type AnomalyType int

const (
	AnomalyMissingHeader AnomalyType = iota
	AnomalyMissingVersion
	AnomalyDuplicateObject
	AnomalyMalformedLine
	AnomalyMissingCRC
	AnomalyNoObjects
)

// String returns a short name for the anomaly
func (a AnomalyType) String() string {
	switch a {
	case AnomalyMissingHeader:
		return "MISSING_HEADER"
	case AnomalyMissingVersion:
		return "MISSING_VERSION"
	case AnomalyDuplicateObject:
		return "DUPLICATE_OBJECT"
	case AnomalyMalformedLine:
		return "MALFORMED_LINE"
	case AnomalyMissingCRC:
		return "MISSING_CRC"
	case AnomalyNoObjects:
		return "NO_OBJECTS"
	}
	return "UNKNOWN"
}

// ValidationError represents a telegram validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateTelegram checks telegram structure and detects anomalies
// Returns a slice of validation errors (empty if the telegram is valid)
func ValidateTelegram(t *Telegram) []ValidationError {
	errors := []ValidationError{}

	if t.header == "" {
		errors = append(errors, ValidationError{
			Type:    AnomalyMissingHeader,
			Message: "Telegram has no identification line",
		})
	}

	if len(t.objects) == 0 {
		errors = append(errors, ValidationError{
			Type:    AnomalyNoObjects,
			Message: "Telegram contains no objects",
		})
	}

	if !t.hasCRC {
		errors = append(errors, ValidationError{
			Type:    AnomalyMissingCRC,
			Message: "Telegram has no CRC (DSMR 2.2/3 meter?)",
		})
	} else if _, ok := t.Version(); !ok && len(t.objects) > 0 {
		// DSMR 4+ telegrams always carry a version object
		errors = append(errors, ValidationError{
			Type:    AnomalyMissingVersion,
			Message: fmt.Sprintf("Telegram has no version object (%s)", ObisVersion),
		})
	}

	seen := make(map[string]bool, len(t.objects))
	for _, o := range t.objects {
		if seen[o.OBIS] {
			errors = append(errors, ValidationError{
				Type:    AnomalyDuplicateObject,
				Message: fmt.Sprintf("Duplicate object %s", o.OBIS),
				Details: map[string]interface{}{"obis": o.OBIS},
			})
		}
		seen[o.OBIS] = true
	}

	for _, pe := range t.parseErrs {
		errors = append(errors, ValidationError{
			Type:    AnomalyMalformedLine,
			Message: fmt.Sprintf("Malformed line %d: %s", pe.Line, pe.Reason),
			Details: map[string]interface{}{"line": pe.Line, "text": pe.Text},
		})
	}

	return errors
}
