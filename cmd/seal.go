// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/Thermoquad/meterstat/pkg/p1"
	"github.com/spf13/cobra"
)

var sealCmd = &cobra.Command{
	Use:   "seal [FILE]",
	Short: "Append the CRC to a telegram body",
	Long: `Read a telegram body ('/' through '!') and print it with its CRC-16/ARC
checksum and line terminator appended.

Text before '/' and anything after '!' (including an old CRC) is dropped.
Reads stdin when FILE is omitted or "-". Useful for building test telegrams
after editing values by hand.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSeal,
}

func init() {
	rootCmd.AddCommand(sealCmd)
}

func runSeal(cmd *cobra.Command, args []string) error {
	file := "-"
	if len(args) == 1 {
		file = args[0]
	}

	data, err := readInput(cmd, file, nil)
	if err != nil {
		return err
	}

	body, err := p1.ExtractBody(data)
	if err != nil {
		return err
	}

	sealed, err := p1.Seal(body)
	if err != nil {
		return err
	}

	_, err = cmd.OutOrStdout().Write(sealed)
	return err
}
