// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/Thermoquad/meterstat/pkg/p1"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	verifyWatch   bool
	verifyVerbose bool
)

// ErrVerifyFailed is returned when a file contains no telegrams or bad telegrams
var ErrVerifyFailed = errors.New("verification failed")

var verifyCmd = &cobra.Command{
	Use:   "verify FILE",
	Short: "Verify the CRC of every telegram in a capture file",
	Long: `Decode every telegram in a capture file and check its CRC-16/ARC checksum.

Each telegram is reported as OK, LEGACY (no CRC, DSMR 2.2/3), or ERROR, along
with any structural anomalies. The command fails if the file holds no
telegrams or any telegram fails its CRC.

With --watch the file is verified again every time it is written, until
interrupted with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().BoolVarP(&verifyWatch, "watch", "w", false, "Re-verify the file whenever it changes")
	verifyCmd.Flags().BoolVarP(&verifyVerbose, "verbose", "v", false, "Print every decoded object")
}

// verifyData decodes data and reports each telegram to out
func verifyData(out io.Writer, data []byte, verbose bool) (*p1.Statistics, error) {
	stats := p1.NewStatistics()
	decoder := p1.NewDecoder()
	index := 0

	decoder.Decode(data, func(telegram *p1.Telegram, decodeErr error) {
		index++
		if decodeErr != nil {
			stats.Update(nil, decodeErr, nil)
			fmt.Fprintf(out, "#%d ERROR %v\n", index, decodeErr)
			return
		}

		validationErrors := p1.ValidateTelegram(telegram)
		stats.Update(telegram, nil, validationErrors)

		status := "OK"
		crc := p1.FormatCRC(telegram.CRC())
		if !telegram.HasCRC() {
			status = "LEGACY"
			crc = "----"
		}
		fmt.Fprintf(out, "#%d %s %s crc=%s objects=%d\n", index, status, telegram.Header(), crc, len(telegram.Objects()))

		for _, v := range validationErrors {
			if v.Type == p1.AnomalyMissingCRC {
				continue
			}
			fmt.Fprintf(out, "   warning: %s\n", v.Message)
		}
		if verbose {
			fmt.Fprint(out, p1.FormatTelegram(telegram))
		}
	})

	if stats.TotalTelegrams == 0 {
		return stats, fmt.Errorf("%w: no telegrams found", ErrVerifyFailed)
	}
	if stats.CRCErrors+stats.DecodeErrors > 0 {
		return stats, fmt.Errorf("%w: %d CRC errors, %d decode errors", ErrVerifyFailed, stats.CRCErrors, stats.DecodeErrors)
	}
	return stats, nil
}

func verifyFile(out io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	stats, err := verifyData(out, data, verifyVerbose)
	fmt.Fprintf(out, "%d telegrams, %d valid, %d CRC errors, %d decode errors\n",
		stats.TotalTelegrams, stats.ValidTelegrams, stats.CRCErrors, stats.DecodeErrors)
	return err
}

func runVerify(cmd *cobra.Command, args []string) error {
	path := args[0]
	out := cmd.OutOrStdout()

	err := verifyFile(out, path)
	if !verifyWatch {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so editors that replace the file are still seen
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", path, err)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	defer signal.Stop(interrupt)

	target := filepath.Clean(path)
	fmt.Fprintf(out, "\nWatching %s (Ctrl+C to stop)\n", path)

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			fmt.Fprintf(out, "\n--- %s changed ---\n", path)
			if err := verifyFile(out, path); err != nil {
				logrus.WithError(err).Warn("verification failed")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logrus.WithError(err).Warn("watch error")

		case <-interrupt:
			return nil
		}
	}
}
