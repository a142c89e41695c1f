// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package publish forwards verified P1 telegrams to an MQTT broker.
//
// Each telegram is published raw to "{prefix}/telegram" and every object's
// first value (without unit) to "{prefix}/{obis}", with ':' and '.' in the
// OBIS reference replaced so the topic stays a single level.
package publish

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/Thermoquad/meterstat/pkg/p1"
)

const (
	// DefaultTopicPrefix is the default MQTT topic prefix
	DefaultTopicPrefix = "meterstat"

	publishTimeout = 5 * time.Second
)

// ErrNotConnected is returned when publishing before Start
var ErrNotConnected = errors.New("mqtt publisher not started")

// Config holds the configuration for an MQTT publisher.
type Config struct {
	// Broker is the MQTT broker URL (e.g., "tcp://broker.example.com:1883").
	Broker string
	// Username and Password for MQTT authentication. Leave empty if not required.
	Username string
	Password string
	// UseTLS enables TLS for the MQTT connection.
	UseTLS bool
	// ClientID is the MQTT client identifier (default: "meterstat-<unix time>").
	ClientID string
	// TopicPrefix is prepended to every topic (default: "meterstat").
	TopicPrefix string
	// QoS for published messages (0, 1 or 2).
	QoS byte
	// Retain sets the retained flag on value topics.
	Retain bool
	// Logger is the logger to use. If nil, the logrus standard logger is used.
	Logger logrus.FieldLogger
}

// Message is a single topic/payload pair
type Message struct {
	Topic   string
	Payload []byte
	Retain  bool
}

// Publisher publishes telegrams to MQTT.
type Publisher struct {
	cfg    Config
	log    logrus.FieldLogger
	mu     sync.Mutex
	client paho.Client
}

// New creates a new MQTT publisher with the given configuration.
func New(cfg Config) *Publisher {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	cfg.TopicPrefix = strings.TrimSuffix(cfg.TopicPrefix, "/")
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	return &Publisher{
		cfg: cfg,
		log: cfg.Logger.WithField("component", "mqtt"),
	}
}

// Start connects to the broker. It returns once the first connection attempt
// succeeds, fails, or ctx is done.
func (p *Publisher) Start(ctx context.Context) error {
	if p.cfg.Broker == "" {
		return errors.New("broker URL is required")
	}
	if p.cfg.QoS > 2 {
		return fmt.Errorf("invalid QoS %d", p.cfg.QoS)
	}

	clientID := p.cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("meterstat-%d", time.Now().Unix())
	}

	opts := paho.NewClientOptions().
		AddBroker(p.cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(2 * time.Minute).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetCleanSession(true).
		SetOnConnectHandler(func(paho.Client) {
			p.log.WithField("broker", p.cfg.Broker).Info("connected to broker")
		}).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.WithError(err).Warn("connection to broker lost")
		})

	if p.cfg.Username != "" {
		opts.SetUsername(p.cfg.Username)
	}
	if p.cfg.Password != "" {
		opts.SetPassword(p.cfg.Password)
	}
	if p.cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})
	}

	client := paho.NewClient(opts)
	token := client.Connect()

	select {
	case <-token.Done():
	case <-ctx.Done():
		// Abandon the pending connect and its reconnects
		client.Disconnect(0)
		return ctx.Err()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", p.cfg.Broker, err)
	}

	p.mu.Lock()
	p.client = client
	p.mu.Unlock()
	return nil
}

// Topics builds the messages published for a telegram
func (p *Publisher) Topics(t *p1.Telegram) []Message {
	msgs := make([]Message, 0, len(t.Objects())+1)
	msgs = append(msgs, Message{
		Topic:   p.cfg.TopicPrefix + "/telegram",
		Payload: append([]byte(nil), t.Raw()...),
	})

	for _, o := range t.Objects() {
		msgs = append(msgs, Message{
			Topic:   p.cfg.TopicPrefix + "/" + TopicName(o.OBIS),
			Payload: []byte(o.Value().Value),
			Retain:  p.cfg.Retain,
		})
	}
	return msgs
}

// TopicName converts an OBIS reference into a single topic level,
// e.g. "1-0:1.8.1" becomes "1-0_1_8_1"
func TopicName(obis string) string {
	return strings.NewReplacer(":", "_", ".", "_").Replace(obis)
}

// PublishTelegram publishes a telegram and all of its object values
func (p *Publisher) PublishTelegram(t *p1.Telegram) error {
	p.mu.Lock()
	client := p.client
	p.mu.Unlock()

	if client == nil {
		return ErrNotConnected
	}

	var errs []error
	for _, m := range p.Topics(t) {
		token := client.Publish(m.Topic, p.cfg.QoS, m.Retain, m.Payload)
		if !token.WaitTimeout(publishTimeout) {
			errs = append(errs, fmt.Errorf("publish %s: timeout", m.Topic))
			continue
		}
		if err := token.Error(); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", m.Topic, err))
		}
	}
	return errors.Join(errs...)
}

// Close disconnects from the broker
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Disconnect(250)
		p.client = nil
	}
}
