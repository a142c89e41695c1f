// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/meterstat/pkg/p1"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display telegrams in human-readable format",
	Long: `Continuously decode and display P1 telegrams as they arrive.

Each telegram is shown with timestamp, meter header, version, CRC and every
object with its decoded name. Telegrams failing the CRC are reported as errors.

With --mqtt-broker every verified telegram is also published to MQTT.

Supports both serial and WebSocket connections.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
	addMQTTFlags(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		return err
	}
	defer conn.Close()

	pub, err := startPublisher()
	if err != nil {
		return err
	}
	if pub != nil {
		defer pub.Close()
	}

	fmt.Printf("Meterstat - Raw Telegram Log\n")
	fmt.Printf("Connection: %s\n", connInfo)
	if pub != nil {
		fmt.Printf("Publishing: %s (prefix %s)\n", mqttBroker, mqttTopic)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	decoder := p1.NewDecoder()

	return readLoop(conn, func(data []byte) bool {
		decoder.Decode(data, func(telegram *p1.Telegram, err error) {
			if err != nil {
				fmt.Printf("[ERROR] %v\n", err)
				return
			}
			fmt.Print(p1.FormatTelegram(telegram))

			if pub != nil {
				if err := pub.PublishTelegram(telegram); err != nil {
					logrus.WithError(err).Warn("publish failed")
				}
			}
		})
		return true
	})
}
