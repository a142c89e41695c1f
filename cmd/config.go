// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"
)

// SerialConfig holds serial port settings
type SerialConfig struct {
	Port string `toml:"port"`
	Baud int    `toml:"baud"`
}

// WebSocketConfig holds WebSocket bridge settings
type WebSocketConfig struct {
	URL         string `toml:"url"`
	Username    string `toml:"username"`
	NoSSLVerify bool   `toml:"no_ssl_verify"`
}

// MQTTConfig holds MQTT publishing settings
type MQTTConfig struct {
	Broker      string `toml:"broker"`
	Username    string `toml:"username"`
	ClientID    string `toml:"client_id"`
	TopicPrefix string `toml:"topic_prefix"`
	QoS         int    `toml:"qos"`
	Retain      bool   `toml:"retain"`
	TLS         bool   `toml:"tls"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// Config is the layout of the --config TOML file
type Config struct {
	Serial    SerialConfig    `toml:"serial"`
	WebSocket WebSocketConfig `toml:"websocket"`
	MQTT      MQTTConfig      `toml:"mqtt"`
	Log       LogConfig       `toml:"log"`
}

// LoadConfig reads a TOML configuration file. Unknown keys are rejected so
// that typos do not silently fall back to defaults.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return nil, fmt.Errorf("unknown keys in config %s: %s", path, strings.Join(keys, ", "))
	}

	if cfg.MQTT.QoS < 0 || cfg.MQTT.QoS > 2 {
		return nil, fmt.Errorf("invalid mqtt.qos %d in config %s (0-2)", cfg.MQTT.QoS, path)
	}

	return &cfg, nil
}

// applyConfig copies file settings into flag variables the user did not set
func applyConfig(cmd *cobra.Command, cfg *Config) {
	flags := cmd.Flags()

	setString := func(name string, dst *string, value string) {
		if value != "" && !flags.Changed(name) {
			*dst = value
		}
	}
	setBool := func(name string, dst *bool, value bool) {
		if value && !flags.Changed(name) {
			*dst = value
		}
	}

	setString("port", &portName, cfg.Serial.Port)
	if cfg.Serial.Baud > 0 && !flags.Changed("baud") {
		baudRate = cfg.Serial.Baud
	}

	setString("url", &wsURL, cfg.WebSocket.URL)
	setString("username", &wsUsername, cfg.WebSocket.Username)
	setBool("no-ssl-verify", &wsNoSSLVerify, cfg.WebSocket.NoSSLVerify)

	setString("log-level", &logLevel, cfg.Log.Level)
	setString("log-file", &logFile, cfg.Log.File)

	// MQTT flags only exist on commands that publish
	if flags.Lookup("mqtt-broker") != nil {
		setString("mqtt-broker", &mqttBroker, cfg.MQTT.Broker)
		setString("mqtt-username", &mqttUsername, cfg.MQTT.Username)
		setString("mqtt-client-id", &mqttClientID, cfg.MQTT.ClientID)
		setString("mqtt-topic", &mqttTopic, cfg.MQTT.TopicPrefix)
		setBool("mqtt-retain", &mqttRetain, cfg.MQTT.Retain)
		setBool("mqtt-tls", &mqttTLS, cfg.MQTT.TLS)
		if cfg.MQTT.QoS > 0 && !flags.Changed("mqtt-qos") {
			mqttQoS = cfg.MQTT.QoS
		}
	}
}
