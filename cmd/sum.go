// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Thermoquad/meterstat/pkg/crc16arc"
	"github.com/spf13/cobra"
)

var (
	sumFile   string
	sumHex    bool
	sumLength int
)

var sumCmd = &cobra.Command{
	Use:   "sum [text...]",
	Short: "Compute the CRC-16/ARC checksum of text, hex bytes or a file",
	Long: `Compute the CRC-16/ARC checksum of the given input.

Input is taken from, in order of precedence:
  --file PATH   file contents ("-" for stdin)
  arguments     joined with single spaces
  stdin         when neither is given

With --hex the input is decoded as hexadecimal bytes (whitespace ignored).
With --length only the first N bytes are checksummed; asking for more bytes
than the input holds is an error.

Examples:
  meterstat sum 123456789          # 0xBB3D
  meterstat sum --hex "41"         # 0x30C0
  meterstat sum --file telegram.txt --length 380`,
	RunE: runSum,
}

func init() {
	rootCmd.AddCommand(sumCmd)
	sumCmd.Flags().StringVarP(&sumFile, "file", "f", "", "Read input from file (\"-\" for stdin)")
	sumCmd.Flags().BoolVar(&sumHex, "hex", false, "Interpret input as hexadecimal bytes")
	sumCmd.Flags().IntVarP(&sumLength, "length", "l", -1, "Checksum only the first N bytes (-1 for all)")
}

// readInput returns the bytes selected by --file, arguments or stdin
func readInput(cmd *cobra.Command, file string, args []string) ([]byte, error) {
	switch {
	case file == "-":
		return io.ReadAll(cmd.InOrStdin())
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file, err)
		}
		return data, nil
	case len(args) > 0:
		return []byte(strings.Join(args, " ")), nil
	default:
		return io.ReadAll(cmd.InOrStdin())
	}
}

// decodeHex decodes hexadecimal input, ignoring whitespace
func decodeHex(data []byte) ([]byte, error) {
	clean := strings.Join(strings.Fields(string(data)), "")
	out, err := hex.DecodeString(clean)
	if err != nil {
		return nil, fmt.Errorf("invalid hex input: %w", err)
	}
	return out, nil
}

func runSum(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd, sumFile, args)
	if err != nil {
		return err
	}

	if sumHex {
		data, err = decodeHex(data)
		if err != nil {
			return err
		}
	}

	length := sumLength
	if length < 0 {
		length = len(data)
	}

	crc, err := crc16arc.Checksum(data, length)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "0x%04X\n", crc)
	return nil
}
