// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"golang.org/x/term"
)

// Connection is a read-only P1 byte stream. Meters never accept input, so
// nothing is ever written back.
type Connection = io.ReadCloser

// ErrConnectionClosed is returned when the peer closed the connection cleanly
var ErrConnectionClosed = errors.New("connection closed")

// p1Port wraps a serial port. Read errors on a serial line are usually
// transient (framing, parity) and readLoop retries them.
type p1Port struct {
	serial.Port
}

// p1Bridge reads telegram bytes from a WebSocket bridge. Bridges split
// telegrams over text or binary frames at arbitrary points; the frames are
// concatenated into one stream.
type p1Bridge struct {
	conn  *websocket.Conn
	frame io.Reader
	err   error
}

func (b *p1Bridge) Read(p []byte) (int, error) {
	for b.err == nil {
		if b.frame == nil {
			kind, r, err := b.conn.NextReader()
			if err != nil {
				b.err = err
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					b.err = ErrConnectionClosed
				}
				break
			}
			if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
				continue
			}
			b.frame = r
		}

		n, err := b.frame.Read(p)
		if errors.Is(err, io.EOF) {
			b.frame = nil
			err = nil
		}
		if n > 0 || err != nil {
			return n, err
		}
	}
	return 0, b.err
}

func (b *p1Bridge) Close() error {
	return b.conn.Close()
}

// serialMode returns the line settings for a baud rate. DSMR 4/5 meters send
// at 115200 8N1, DSMR 2.2/3 meters at 9600 7E1.
func serialMode(baudRate int) *serial.Mode {
	if baudRate == 9600 {
		return &serial.Mode{
			BaudRate: baudRate,
			DataBits: 7,
			Parity:   serial.EvenParity,
			StopBits: serial.OneStopBit,
		}
	}
	return &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// OpenSerialConnection opens the P1 port on a serial device
func OpenSerialConnection(portName string, baudRate int) (Connection, error) {
	port, err := serial.Open(portName, serialMode(baudRate))
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", portName, err)
	}
	return &p1Port{Port: port}, nil
}

// bridgeRequest validates a bridge URL and builds its handshake headers
func bridgeRequest(rawURL, username, password string) (*url.URL, http.Header, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, nil, fmt.Errorf("unsupported URL scheme: %q (use ws:// or wss://)", u.Scheme)
	}

	req := &http.Request{Header: http.Header{}}
	if username != "" && password != "" {
		req.SetBasicAuth(username, password)
	}
	return u, req.Header, nil
}

// OpenWebSocketConnection connects to a P1 WebSocket bridge, using HTTP Basic
// auth when credentials are given
func OpenWebSocketConnection(rawURL, username, password string, skipSSLVerify bool) (Connection, error) {
	u, headers, err := bridgeRequest(rawURL, username, password)
	if err != nil {
		return nil, err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	if u.Scheme == "wss" {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: skipSSLVerify}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, resp, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("bridge %s refused connection (HTTP %d): %w", u.Host, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to reach bridge %s: %w", u.Host, err)
	}

	return &p1Bridge{conn: conn}, nil
}

// GetPassword returns the value of envVar, or prompts for it on the terminal
func GetPassword(envVar, prompt string) (string, error) {
	if pw, ok := os.LookupEnv(envVar); ok && pw != "" {
		return pw, nil
	}

	fmt.Fprint(os.Stderr, prompt)
	defer fmt.Fprintln(os.Stderr)

	if term.IsTerminal(int(syscall.Stdin)) {
		pw, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(pw), nil
	}

	// Piped input
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// OpenConnection opens the P1 source selected by --url or --port and
// returns it with a one-line description
func OpenConnection() (Connection, string, error) {
	switch {
	case wsURL != "":
		var password string
		if wsUsername != "" {
			var err error
			if password, err = GetPassword("METERSTAT_PASSWORD", "Password: "); err != nil {
				return nil, "", err
			}
		}

		conn, err := OpenWebSocketConnection(wsURL, wsUsername, password, wsNoSSLVerify)
		if err != nil {
			return nil, "", err
		}
		logrus.WithField("url", wsURL).Debug("bridge connected")
		return conn, "WebSocket: " + wsURL, nil

	case portName != "":
		conn, err := OpenSerialConnection(portName, baudRate)
		if err != nil {
			return nil, "", err
		}
		logrus.WithFields(logrus.Fields{"port": portName, "baud": baudRate}).Debug("serial port opened")
		return conn, fmt.Sprintf("Serial: %s @ %d baud", portName, baudRate), nil
	}

	return nil, "", errors.New("either --port or --url must be specified")
}

// readLoop hands each chunk read from conn to fn until the connection closes
// or fn returns false. Serial read errors are logged and retried; any other
// error ends the loop.
func readLoop(conn Connection, fn func([]byte) bool) error {
	_, retry := conn.(*p1Port)
	buf := make([]byte, 512)

	for {
		n, err := conn.Read(buf)
		if n > 0 && !fn(buf[:n]) {
			return nil
		}
		if err == nil {
			continue
		}

		if errors.Is(err, ErrConnectionClosed) || errors.Is(err, io.EOF) {
			logrus.Info("connection closed")
			return nil
		}
		if !retry {
			return err
		}
		logrus.WithError(err).Warn("read error")
	}
}
