// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/meterstat/pkg/publish"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	mqttBroker   string
	mqttUsername string
	mqttClientID string
	mqttTopic    string
	mqttQoS      int
	mqttRetain   bool
	mqttTLS      bool
)

// addMQTTFlags registers the MQTT publishing flags on a command
func addMQTTFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&mqttBroker, "mqtt-broker", "", "Publish telegrams to this MQTT broker (e.g. tcp://localhost:1883)")
	cmd.Flags().StringVar(&mqttUsername, "mqtt-username", "", "MQTT username (password from METERSTAT_MQTT_PASSWORD)")
	cmd.Flags().StringVar(&mqttClientID, "mqtt-client-id", "", "MQTT client ID")
	cmd.Flags().StringVar(&mqttTopic, "mqtt-topic", publish.DefaultTopicPrefix, "MQTT topic prefix")
	cmd.Flags().IntVar(&mqttQoS, "mqtt-qos", 0, "MQTT QoS (0-2)")
	cmd.Flags().BoolVar(&mqttRetain, "mqtt-retain", false, "Retain per-object value messages")
	cmd.Flags().BoolVar(&mqttTLS, "mqtt-tls", false, "Use TLS for the MQTT connection")
}

// startPublisher connects to the configured broker, or returns nil when
// publishing is disabled
func startPublisher() (*publish.Publisher, error) {
	if mqttBroker == "" {
		return nil, nil
	}
	if mqttQoS < 0 || mqttQoS > 2 {
		return nil, fmt.Errorf("invalid --mqtt-qos %d (0-2)", mqttQoS)
	}

	password := ""
	if mqttUsername != "" {
		var err error
		password, err = GetPassword("METERSTAT_MQTT_PASSWORD", "MQTT password: ")
		if err != nil {
			return nil, err
		}
	}

	pub := publish.New(publish.Config{
		Broker:      mqttBroker,
		Username:    mqttUsername,
		Password:    password,
		UseTLS:      mqttTLS,
		ClientID:    mqttClientID,
		TopicPrefix: mqttTopic,
		QoS:         byte(mqttQoS),
		Retain:      mqttRetain,
		Logger:      logrus.StandardLogger(),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := pub.Start(ctx); err != nil {
		return nil, err
	}
	return pub, nil
}
