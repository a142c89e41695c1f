// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/Thermoquad/meterstat/pkg/p1"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	exportOutput     string
	exportCount      int
	exportIncludeRaw bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Record verified telegrams to a CBOR file",
	Long: `Decode telegrams from the connection and append every telegram that passes
its CRC check to a file as a sequence of CBOR records.

Each record holds the decode time, meter header, CRC and all object values
(with units). Use --raw to also store the telegram bytes. Read the file back
with the dump command.

Supports both serial and WebSocket connections.`,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (appended to)")
	exportCmd.Flags().IntVarP(&exportCount, "count", "n", 0, "Stop after N telegrams (0 for no limit)")
	exportCmd.Flags().BoolVar(&exportIncludeRaw, "raw", false, "Include raw telegram bytes in each record")
	exportCmd.MarkFlagRequired("output")
}

// exportTelegram appends one CBOR record to w
func exportTelegram(w io.Writer, telegram *p1.Telegram, includeRaw bool) error {
	data, err := p1.MarshalRecord(telegram, includeRaw)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func runExport(cmd *cobra.Command, args []string) error {
	if exportCount < 0 {
		return fmt.Errorf("invalid --count %d", exportCount)
	}

	f, err := os.OpenFile(exportOutput, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", exportOutput, err)
	}
	defer f.Close()

	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	fmt.Printf("Meterstat - Telegram Export\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Output: %s\n", exportOutput)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := p1.NewDecoder()
	written := 0
	var writeErr error

	err = readLoop(conn, func(data []byte) bool {
		decoder.Decode(data, func(telegram *p1.Telegram, decodeErr error) {
			if writeErr != nil || (exportCount > 0 && written >= exportCount) {
				return
			}
			if decodeErr != nil {
				logrus.WithError(decodeErr).Warn("telegram rejected")
				return
			}
			if err := exportTelegram(f, telegram, exportIncludeRaw); err != nil {
				writeErr = fmt.Errorf("failed to write %s: %w", exportOutput, err)
				return
			}
			written++
			fmt.Printf("[%s] recorded %s (%d)\n", telegram.Timestamp().Format("15:04:05"), telegram.Header(), written)
		})
		return writeErr == nil && (exportCount == 0 || written < exportCount)
	})

	fmt.Printf("\n%d telegrams written to %s\n", written, exportOutput)
	if writeErr != nil {
		return writeErr
	}
	return err
}
