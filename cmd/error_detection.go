// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/Thermoquad/meterstat/pkg/p1"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var errorDetectionCmd = &cobra.Command{
	Use:   "error_detection",
	Short: "Detect and analyze corrupted telegrams and anomalies",
	Long: `Track telegram errors, malformed data, and anomalies with statistics.

This command validates each telegram and detects:
  - CRC errors and decode failures (truncated or oversized telegrams)
  - Malformed object lines and missing identification
  - Anomalies (missing version object, duplicate objects, legacy telegrams without CRC)
  - Statistics and trends (telegram rate, error rate, success rate)

By default, only errors are displayed. Use --show-all to display valid telegrams too.

Telegrams are validated in real-time, with errors highlighted immediately and
periodic statistics summaries displayed at configurable intervals.

Supports both serial and WebSocket connections.`,
	RunE: runErrorDetection,
}

func init() {
	rootCmd.AddCommand(errorDetectionCmd)
	errorDetectionCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all telegrams (not just errors)")
	errorDetectionCmd.Flags().IntVar(&statsInterval, "stats-interval", 30, "Statistics update interval (seconds)")
	errorDetectionCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runErrorDetection(cmd *cobra.Command, args []string) error {
	if statsInterval < 1 {
		return fmt.Errorf("invalid --stats-interval %d", statsInterval)
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	if useTUI {
		return runTUIMode(conn, connInfo)
	}
	return runTextMode(conn, connInfo)
}

// printDecodeError prints a decode error in highlighted format
func printDecodeError(err error) {
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, err)
	fmt.Printf("  >>> TELEGRAM REJECTED <<<\n\n")
}

// printValidationErrors prints validation errors for a telegram
func printValidationErrors(telegram *p1.Telegram, errors []p1.ValidationError) {
	timestamp := telegram.Timestamp().Format("15:04:05.000")

	fmt.Printf("[%s] \033[1;33mVALIDATION ERROR:\033[0m %s\n", timestamp, telegram.Header())
	if telegram.HasCRC() {
		fmt.Printf("  CRC: \033[1;32mOK\033[0m (0x%s)\n", p1.FormatCRC(telegram.CRC()))
	} else {
		fmt.Printf("  CRC: \033[1;33mNONE\033[0m\n")
	}

	for i, err := range errors {
		switch err.Type {
		case p1.AnomalyMalformedLine, p1.AnomalyMissingHeader, p1.AnomalyNoObjects:
			fmt.Printf("  Issue %d: \033[1;31m%s\033[0m\n", i+1, err.Message)
			if text, ok := err.Details["text"].(string); ok {
				fmt.Printf("    %q\n", text)
			}
		default:
			fmt.Printf("  Issue %d: \033[1;33m%s\033[0m\n", i+1, err.Message)
		}
	}

	fmt.Printf("\n")
}

// telegramEvent carries one decoder result from the reader goroutine
type telegramEvent struct {
	telegram         *p1.Telegram
	decodeErr        error
	validationErrors []p1.ValidationError
}

// syncTracker ignores decode errors until the first valid telegram arrives
type syncTracker struct {
	decoder      *p1.Decoder
	synchronized bool
	errorsBefore int
}

// feed decodes data and emits events, reporting synchronization once
func (s *syncTracker) feed(data []byte, onSync func(skipped, errors int), emit func(telegramEvent)) {
	s.decoder.Decode(data, func(telegram *p1.Telegram, decodeErr error) {
		if decodeErr != nil {
			if !s.synchronized {
				// Not synced yet, a partial telegram is expected
				s.errorsBefore++
				return
			}
			emit(telegramEvent{decodeErr: decodeErr})
			return
		}

		if !s.synchronized {
			s.synchronized = true
			onSync(s.decoder.Skipped(), s.errorsBefore)
		}
		emit(telegramEvent{
			telegram:         telegram,
			validationErrors: p1.ValidateTelegram(telegram),
		})
	})
}

// runTUIMode runs error detection in TUI mode
func runTUIMode(conn Connection, connInfo string) error {
	m := initialModel(connInfo, statsInterval, showAll)
	p := tea.NewProgram(m)

	tracker := &syncTracker{decoder: p1.NewDecoder()}

	go func() {
		err := readLoop(conn, func(data []byte) bool {
			tracker.feed(data,
				func(skipped, errors int) { p.Send(syncMsg{skippedBytes: skipped, partialTelegrams: errors}) },
				func(ev telegramEvent) { p.Send(telegramMsg(ev)) },
			)
			return true
		})
		p.Send(connectionClosedMsg{err: err})
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// runTextMode runs error detection in text mode
func runTextMode(conn Connection, connInfo string) error {
	fmt.Printf("Meterstat - Error Detection Mode\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All telegrams\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := p1.NewStatistics()
	tracker := &syncTracker{decoder: p1.NewDecoder()}

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	// Channel for non-blocking reads
	dataChan := make(chan []byte, 10)
	doneChan := make(chan error, 1)
	go func() {
		doneChan <- readLoop(conn, func(data []byte) bool {
			chunk := make([]byte, len(data))
			copy(chunk, data)
			dataChan <- chunk
			return true
		})
	}()

	onSync := func(skipped, errors int) {
		if skipped > 0 || errors > 0 {
			fmt.Printf("[SYNC] Synchronized after skipping %d bytes and %d partial telegrams\n\n", skipped, errors)
		} else {
			fmt.Printf("[SYNC] Synchronized\n\n")
		}
	}

	emit := func(ev telegramEvent) {
		stats.Update(ev.telegram, ev.decodeErr, ev.validationErrors)
		switch {
		case ev.decodeErr != nil:
			printDecodeError(ev.decodeErr)
		case len(ev.validationErrors) > 0:
			printValidationErrors(ev.telegram, ev.validationErrors)
		case showAll:
			fmt.Print(p1.FormatTelegram(ev.telegram))
		}
	}

	for {
		select {
		case data := <-dataChan:
			tracker.feed(data, onSync, emit)

		case err := <-doneChan:
			fmt.Println()
			fmt.Print(stats.String())
			return err

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}
