// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package p1

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks telegram statistics and error rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalTelegrams uint64
	ValidTelegrams uint64
	CRCErrors      uint64
	DecodeErrors   uint64
	Malformed      uint64
	Anomalies      uint64
	MissingCRC     uint64
	MissingVersion uint64
	Duplicates     uint64

	// Rates (calculated)
	TelegramRate float64 // telegrams/sec
	ErrorRate    float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update updates statistics based on a telegram and its errors
func (s *Statistics) Update(telegram *Telegram, decodeErr error, validationErrors []ValidationError) {
	s.TotalTelegrams++
	s.LastUpdateTime = time.Now()

	if decodeErr != nil {
		var crcErr *CRCError
		if errors.As(decodeErr, &crcErr) {
			s.CRCErrors++
		} else {
			// Framing, overflow, bad CRC digits
			s.DecodeErrors++
		}
		return
	}

	if len(validationErrors) == 0 {
		s.ValidTelegrams++
		return
	}

	for _, err := range validationErrors {
		switch err.Type {
		case AnomalyMalformedLine, AnomalyMissingHeader, AnomalyNoObjects:
			s.Malformed++
		case AnomalyMissingCRC:
			s.MissingCRC++
			s.Anomalies++
		case AnomalyMissingVersion:
			s.MissingVersion++
			s.Anomalies++
		case AnomalyDuplicateObject:
			s.Duplicates++
			s.Anomalies++
		}
	}
}

// ErrorCount returns the total number of errors of any kind
func (s *Statistics) ErrorCount() uint64 {
	return s.CRCErrors + s.DecodeErrors + s.Malformed + s.Anomalies
}

// CalculateRates calculates telegram and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.TelegramRate = float64(s.TotalTelegrams) / elapsed
		s.ErrorRate = float64(s.ErrorCount()) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	percent := func(n uint64) float64 {
		if s.TotalTelegrams == 0 {
			return 0
		}
		return float64(n) * 100.0 / float64(s.TotalTelegrams)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Telegrams: %8d\n", s.TotalTelegrams)
	result += fmt.Sprintf("Valid Telegrams: %8d (%.1f%%)\n", s.ValidTelegrams, percent(s.ValidTelegrams))

	if s.CRCErrors > 0 {
		result += fmt.Sprintf("CRC Errors:      %8d (%.1f%%)\n", s.CRCErrors, percent(s.CRCErrors))
	}
	if s.DecodeErrors > 0 {
		result += fmt.Sprintf("Decode Errors:   %8d (%.1f%%)\n", s.DecodeErrors, percent(s.DecodeErrors))
	}
	if s.Malformed > 0 {
		result += fmt.Sprintf("Malformed:       %8d (%.1f%%)\n", s.Malformed, percent(s.Malformed))
	}
	if s.Anomalies > 0 {
		result += fmt.Sprintf("Anomalies:       %8d (%.1f%%)\n", s.Anomalies, percent(s.Anomalies))
		if s.MissingCRC > 0 {
			result += fmt.Sprintf("  Missing CRC:      %5d\n", s.MissingCRC)
		}
		if s.MissingVersion > 0 {
			result += fmt.Sprintf("  Missing Version:  %5d\n", s.MissingVersion)
		}
		if s.Duplicates > 0 {
			result += fmt.Sprintf("  Duplicates:       %5d\n", s.Duplicates)
		}
	}

	result += fmt.Sprintf("Telegram Rate:   %8.2f tgm/sec\n", s.TelegramRate)
	result += fmt.Sprintf("Error Rate:      %8.2f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
