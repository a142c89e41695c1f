// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// Serial connection flags
	portName string
	baudRate int

	// WebSocket connection flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Ambient flags
	configFile string
	logLevel   string
	logFile    string
)

var rootCmd = &cobra.Command{
	Use:   "meterstat",
	Short: "DSMR P1 Telegram Analyzer",
	Long: `Meterstat - A CLI tool for verifying and monitoring DSMR P1 smart meter telegrams.

Telegrams are checked with CRC-16/ARC (polynomial 0x8005, reflected input and
output, initial value and final XOR 0x0000) computed from '/' through '!'.

Offline commands (sum, table, seal, verify, dump) work on strings and files.
Live commands (raw_log, telegram_test, error_detection, export) read from a
meter connection.

Connection modes:
  Serial:    --port /dev/ttyUSB0 [--baud 115200]
  WebSocket: --url ws://host/path [--username user]

For WebSocket authentication, the password is read from the METERSTAT_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Settings may also be loaded from a TOML file with --config. Flags given on the
command line take precedence over the file.`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	// Serial connection flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port device")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only, DSMR 2.2/3 meters use 9600)")

	// WebSocket connection flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	// Configuration and logging
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to a rotating file instead of stderr")
}

// loadSettings applies the configuration file and sets up logging before any command runs
func loadSettings(cmd *cobra.Command, args []string) error {
	if configFile != "" {
		cfg, err := LoadConfig(configFile)
		if err != nil {
			return err
		}
		applyConfig(cmd, cfg)
	}
	return setupLogging(logLevel, logFile)
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
