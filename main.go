// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Meterstat - DSMR P1 Telegram Analyzer
//
// A CLI tool for verifying, monitoring and recording DSMR P1 smart meter
// telegrams protected by CRC-16/ARC.

package main

import (
	"os"

	"github.com/Thermoquad/meterstat/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
