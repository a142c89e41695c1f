// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/meterstat/pkg/crc16arc"
	"github.com/spf13/cobra"
)

var tableColumns int

var tableCmd = &cobra.Command{
	Use:   "table",
	Short: "Print the CRC-16/ARC lookup table",
	Long: `Print the 256-entry lookup table used by the CRC-16/ARC engine.

Each row starts with the index of its first entry.`,
	RunE: runTable,
}

func init() {
	rootCmd.AddCommand(tableCmd)
	tableCmd.Flags().IntVar(&tableColumns, "columns", 8, "Entries per row (1-16)")
}

func runTable(cmd *cobra.Command, args []string) error {
	if tableColumns < 1 || tableColumns > 16 {
		return fmt.Errorf("invalid --columns %d (1-16)", tableColumns)
	}

	out := cmd.OutOrStdout()
	tab := crc16arc.InitTable()

	for i, v := range tab {
		if i%tableColumns == 0 {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "0x%02X:", i)
		}
		fmt.Fprintf(out, " 0x%04X", v)
	}
	fmt.Fprintln(out)
	return nil
}
