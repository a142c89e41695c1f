// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/Thermoquad/meterstat/pkg/p1"
	"github.com/spf13/cobra"
)

var (
	telegramTestTimeout int
)

var telegramTestCmd = &cobra.Command{
	Use:   "telegram_test",
	Short: "Test connection by waiting for a valid telegram",
	Long: `Wait for a valid P1 telegram on the connection until timeout.

This command connects to a serial port or WebSocket and waits for any telegram
that passes its CRC check. Noise and partial telegrams received before the
first start byte are ignored. Meters send a telegram every 1 to 10 seconds
depending on DSMR version, so the default timeout covers both.

Exit codes:
  0 - Telegram received before timeout
  1 - Timeout reached without receiving a valid telegram
  2 - Connection error`,
	RunE: runTelegramTest,
}

func init() {
	rootCmd.AddCommand(telegramTestCmd)
	telegramTestCmd.Flags().IntVar(&telegramTestTimeout, "timeout", 15, "Timeout in seconds to wait for a telegram")
}

func runTelegramTest(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Meterstat - Telegram Test\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds\n", telegramTestTimeout)
	fmt.Printf("Waiting for valid telegram...\n\n")

	decoder := p1.NewDecoder()

	telegramChan := make(chan *p1.Telegram, 1)
	errChan := make(chan error, 1)

	go func() {
		errors := 0
		found := false
		err := readLoop(conn, func(data []byte) bool {
			var got *p1.Telegram
			decoder.Decode(data, func(telegram *p1.Telegram, decodeErr error) {
				if decodeErr != nil {
					errors++
					return
				}
				if got == nil {
					got = telegram
				}
			})
			if got == nil {
				return true
			}
			if errors > 0 || decoder.Skipped() > 0 {
				fmt.Printf("(skipped %d bytes and %d bad telegrams before sync)\n", decoder.Skipped(), errors)
			}
			found = true
			telegramChan <- got
			return false
		})
		if err == nil && !found {
			err = ErrConnectionClosed
		}
		if err != nil {
			errChan <- err
		}
	}()

	select {
	case telegram := <-telegramChan:
		version, _ := telegram.Version()
		fmt.Printf("SUCCESS: Received valid telegram\n")
		fmt.Printf("  Meter: %s\n", telegram.Header())
		fmt.Printf("  Version: %s\n", version)
		fmt.Printf("  Objects: %d\n", len(telegram.Objects()))
		if telegram.HasCRC() {
			fmt.Printf("  CRC: 0x%s\n", p1.FormatCRC(telegram.CRC()))
		} else {
			fmt.Printf("  CRC: none (legacy telegram)\n")
		}
		os.Exit(0)

	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
		os.Exit(2)

	case <-time.After(time.Duration(telegramTestTimeout) * time.Second):
		fmt.Fprintf(os.Stderr, "TIMEOUT: No valid telegram received within %d seconds\n", telegramTestTimeout)
		os.Exit(1)
	}

	return nil
}
