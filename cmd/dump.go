// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/Thermoquad/meterstat/pkg/p1"
	"github.com/spf13/cobra"
)

var dumpCmd = &cobra.Command{
	Use:   "dump FILE",
	Short: "Print the telegram records in a CBOR export file",
	Long: `Print every record written by the export command.

Each record shows the decode time, meter header, CRC and all object values.`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
}

// dumpRecords prints every CBOR record read from r and returns the count
func dumpRecords(out io.Writer, r io.Reader) (int, error) {
	dec := p1.NewRecordDecoder(r)
	count := 0

	for {
		var rec p1.Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return count, nil
			}
			return count, fmt.Errorf("record %d: %w", count+1, err)
		}
		count++

		crc := "----"
		if rec.HasCRC {
			crc = p1.FormatCRC(rec.CRC)
		}
		fmt.Fprintf(out, "[%s] %s crc=%s\n", rec.Timestamp.Format("2006-01-02 15:04:05.000"), rec.Header, crc)

		obis := make([]string, 0, len(rec.Objects))
		for k := range rec.Objects {
			obis = append(obis, k)
		}
		sort.Strings(obis)
		for _, k := range obis {
			fmt.Fprintf(out, "  %-12s %v\n", k, rec.Objects[k])
		}
	}
}

func runDump(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	count, err := dumpRecords(cmd.OutOrStdout(), f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d records\n", count)
	return nil
}
