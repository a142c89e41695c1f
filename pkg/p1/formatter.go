// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package p1

import (
	"fmt"
	"strings"
)

var obisNames = map[string]string{
	ObisVersion:           "P1 version",
	ObisVersionBelgium:    "P1 version (BE)",
	ObisTimestamp:         "Timestamp",
	ObisEquipmentID:       "Equipment ID",
	ObisDeliveredTariff1:  "Delivered tariff 1",
	ObisDeliveredTariff2:  "Delivered tariff 2",
	ObisReturnedTariff1:   "Returned tariff 1",
	ObisReturnedTariff2:   "Returned tariff 2",
	ObisTariffIndicator:   "Tariff indicator",
	ObisPowerDelivered:    "Power delivered",
	ObisPowerReturned:     "Power returned",
	ObisPowerFailures:     "Power failures",
	ObisLongPowerFailures: "Long power failures",
	ObisVoltageL1:         "Voltage L1",
	ObisVoltageL2:         "Voltage L2",
	ObisVoltageL3:         "Voltage L3",
	ObisCurrentL1:         "Current L1",
	ObisCurrentL2:         "Current L2",
	ObisCurrentL3:         "Current L3",
	ObisTextMessage:       "Text message",
	ObisGasDeviceType:     "Gas device type",
	ObisGasDelivered:      "Gas delivered",
	ObisGasLegacy:         "Gas delivered (legacy)",
}

// FormatObisName returns a human-readable name for an OBIS reference
func FormatObisName(obis string) string {
	if name, ok := obisNames[obis]; ok {
		return name
	}
	return "UNKNOWN"
}

// FormatTelegram formats a telegram for human-readable display
func FormatTelegram(t *Telegram) string {
	var sb strings.Builder

	timestamp := t.Timestamp().Format("15:04:05.000")
	crc := "none"
	if t.HasCRC() {
		crc = "0x" + FormatCRC(t.CRC())
	}
	version, ok := t.Version()
	if !ok {
		version = "?"
	}

	fmt.Fprintf(&sb, "[%s] %s v%s crc=%s objects=%d\n", timestamp, t.Header(), version, crc, len(t.Objects()))

	for _, o := range t.Objects() {
		values := make([]string, 0, len(o.Values))
		for _, v := range o.Values {
			if v.Unit != "" {
				values = append(values, v.Value+" "+v.Unit)
			} else {
				values = append(values, v.Value)
			}
		}
		fmt.Fprintf(&sb, "  %-12s %-22s %s\n", o.OBIS, FormatObisName(o.OBIS), strings.Join(values, ", "))
	}

	for _, pe := range t.ParseErrors() {
		fmt.Fprintf(&sb, "  (unparsed) %v\n", pe)
	}

	return sb.String()
}
