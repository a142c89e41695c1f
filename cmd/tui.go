// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/meterstat/pkg/p1"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for info
}

// Latest meter readings
type readingData struct {
	timestamp time.Time
	header    string
	version   string
	rows      [][2]string // name, value
}

// TUI model
type model struct {
	connInfo      string
	statsInterval int
	showAll       bool
	stats         *p1.Statistics
	eventLog      []eventLogEntry
	maxLogEntries int
	synchronized  bool
	skippedBytes  int
	spinner       spinner.Model
	width         int
	height        int
	quitting      bool
	closed        bool
	lastReading   *readingData
}

// Messages
type tickMsg time.Time
type telegramMsg telegramEvent
type syncMsg struct {
	skippedBytes     int
	partialTelegrams int
}
type connectionClosedMsg struct {
	err error
}

// Objects shown in the readings box, in display order
var readingObjects = []string{
	p1.ObisTimestamp,
	p1.ObisDeliveredTariff1,
	p1.ObisDeliveredTariff2,
	p1.ObisReturnedTariff1,
	p1.ObisReturnedTariff2,
	p1.ObisTariffIndicator,
	p1.ObisPowerDelivered,
	p1.ObisPowerReturned,
	p1.ObisVoltageL1,
	p1.ObisCurrentL1,
	p1.ObisGasDelivered,
}

func initialModel(connInfo string, statsInterval int, showAll bool) model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	return model{
		connInfo:      connInfo,
		statsInterval: statsInterval,
		showAll:       showAll,
		stats:         p1.NewStatistics(),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		spinner:       s,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.spinner.Tick,
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			m.stats.Reset()
			m.addLogEntry("Statistics reset", false)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.stats.CalculateRates()
		return m, tickCmd()

	case spinner.TickMsg:
		if m.synchronized {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case syncMsg:
		m.synchronized = true
		m.skippedBytes = msg.skippedBytes
		if msg.skippedBytes > 0 || msg.partialTelegrams > 0 {
			m.addLogEntry(fmt.Sprintf("Synchronized after skipping %d bytes and %d partial telegrams",
				msg.skippedBytes, msg.partialTelegrams), false)
		} else {
			m.addLogEntry("Synchronized", false)
		}

	case connectionClosedMsg:
		m.closed = true
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Connection lost: %v", msg.err), true)
		} else {
			m.addLogEntry("Connection closed", true)
		}

	case telegramMsg:
		m.stats.Update(msg.telegram, msg.decodeErr, msg.validationErrors)

		if msg.decodeErr != nil {
			m.addLogEntry(fmt.Sprintf("DECODE ERROR: %v", msg.decodeErr), true)
			return m, nil
		}

		m.updateReading(msg.telegram)

		if len(msg.validationErrors) > 0 {
			for _, err := range msg.validationErrors {
				m.addLogEntry(fmt.Sprintf("%s: %s", err.Type, err.Message), true)
			}
		} else if m.showAll {
			m.addLogEntry(fmt.Sprintf("%s crc=0x%s (valid)", msg.telegram.Header(), p1.FormatCRC(msg.telegram.CRC())), false)
		}
	}

	return m, nil
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// updateReading extracts the displayed objects from a telegram
func (m *model) updateReading(telegram *p1.Telegram) {
	version, ok := telegram.Version()
	if !ok {
		version = "?"
	}

	reading := &readingData{
		timestamp: telegram.Timestamp(),
		header:    telegram.Header(),
		version:   version,
	}

	for _, obis := range readingObjects {
		o, ok := telegram.Object(obis)
		if !ok || len(o.Values) == 0 {
			continue
		}
		// Gas readings carry the capture time first
		v := o.Values[len(o.Values)-1]
		value := v.Value
		if v.Unit != "" {
			value += " " + v.Unit
		}
		reading.rows = append(reading.rows, [2]string{p1.FormatObisName(obis), value})
	}

	m.lastReading = reading
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	mode := "Errors only"
	if m.showAll {
		mode = "All telegrams"
	}

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("METERSTAT - ERROR DETECTION"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Mode: %s | 'r' reset stats | 'q' quit", m.connInfo, mode)))
	s.WriteString("\n\n")

	// Sync status
	switch {
	case m.closed:
		s.WriteString(errorStyle.Render("✗ Connection closed"))
	case !m.synchronized:
		s.WriteString(m.spinner.View())
		s.WriteString(warningStyle.Render(" Waiting for first telegram..."))
	default:
		s.WriteString(statsValueStyle.Render("✓ Synchronized"))
		if m.skippedBytes > 0 {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (skipped %d bytes)", m.skippedBytes)))
		}
	}
	s.WriteString("\n\n")

	// Statistics
	m.stats.CalculateRates()
	var validPercent, errorPercent float64
	if m.stats.TotalTelegrams > 0 {
		validPercent = float64(m.stats.ValidTelegrams) * 100.0 / float64(m.stats.TotalTelegrams)
		errorPercent = float64(m.stats.ErrorCount()) * 100.0 / float64(m.stats.TotalTelegrams)
	}

	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.TotalTelegrams)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.ValidTelegrams, validPercent)),
		statsLabelStyle.Render("Errors:"), errorStyle.Render(fmt.Sprintf("%d (%.1f%%)", m.stats.ErrorCount(), errorPercent)),
	))

	if m.stats.CRCErrors > 0 || m.stats.DecodeErrors > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s   %s %s\n",
			statsLabelStyle.Render("CRC Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.CRCErrors)),
			statsLabelStyle.Render("Decode Errors:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.DecodeErrors)),
		))
	}

	if m.stats.Malformed > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s\n",
			statsLabelStyle.Render("Malformed:"), errorStyle.Render(fmt.Sprintf("%d", m.stats.Malformed)),
		))
	}

	if m.stats.Anomalies > 0 {
		statsContent.WriteString(fmt.Sprintf("%s %s (%s: %d, %s: %d, %s: %d)\n",
			statsLabelStyle.Render("Anomalies:"), warningStyle.Render(fmt.Sprintf("%d", m.stats.Anomalies)),
			headerStyle.Render("no CRC"), m.stats.MissingCRC,
			headerStyle.Render("no version"), m.stats.MissingVersion,
			headerStyle.Render("duplicates"), m.stats.Duplicates,
		))
	}

	errorRate := statsValueStyle.Render(fmt.Sprintf("%.2f err/s", m.stats.ErrorRate))
	if m.stats.ErrorRate > 0 {
		errorRate = errorStyle.Render(fmt.Sprintf("%.2f err/s", m.stats.ErrorRate))
	}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s",
		statsLabelStyle.Render("Telegram Rate:"), statsValueStyle.Render(fmt.Sprintf("%.2f tgm/s", m.stats.TelegramRate)),
		statsLabelStyle.Render("Error Rate:"), errorRate,
	))

	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Readings section (only shown once a telegram was received)
	if m.lastReading != nil {
		s.WriteString(statsLabelStyle.Render(fmt.Sprintf("Latest Reading (%s, P1 v%s):", m.lastReading.header, m.lastReading.version)))
		s.WriteString("\n")

		readingContent := strings.Builder{}
		for i, row := range m.lastReading.rows {
			if i > 0 {
				readingContent.WriteString("\n")
			}
			readingContent.WriteString(fmt.Sprintf("%s %s",
				statsLabelStyle.Render(fmt.Sprintf("%-20s", row[0]+":")),
				statsValueStyle.Render(row[1]),
			))
		}
		if len(m.lastReading.rows) == 0 {
			readingContent.WriteString(headerStyle.Render("(no known objects)"))
		}

		s.WriteString(boxStyle.Render(readingContent.String()))
		s.WriteString("\n\n")
	}

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 20 // Reserve space for header, stats and readings
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
