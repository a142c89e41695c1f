// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package p1 decodes and encodes DSMR P1 smart meter telegrams.
//
// A telegram starts with '/', carries an identification line followed by
// COSEM objects, and ends with '!'. DSMR 4 and later append four hexadecimal
// CRC-16/ARC digits computed over everything from '/' through '!' inclusive.
// Older DSMR 2.2 and 3 meters end the telegram with "!\r\n" and no CRC.
package p1

// Telegram framing bytes
const (
	StartByte = '/'
	EndByte   = '!'
)

// Telegram size limits
const (
	MaxTelegramSize = 8192
	CRCDigits       = 4
)

// Well-known OBIS references
const (
	ObisVersion           = "1-3:0.2.8"
	ObisVersionBelgium    = "0-0:96.1.4"
	ObisTimestamp         = "0-0:1.0.0"
	ObisEquipmentID       = "0-0:96.1.1"
	ObisDeliveredTariff1  = "1-0:1.8.1"
	ObisDeliveredTariff2  = "1-0:1.8.2"
	ObisReturnedTariff1   = "1-0:2.8.1"
	ObisReturnedTariff2   = "1-0:2.8.2"
	ObisTariffIndicator   = "0-0:96.14.0"
	ObisPowerDelivered    = "1-0:1.7.0"
	ObisPowerReturned     = "1-0:2.7.0"
	ObisPowerFailures     = "0-0:96.7.21"
	ObisLongPowerFailures = "0-0:96.7.9"
	ObisVoltageL1         = "1-0:32.7.0"
	ObisVoltageL2         = "1-0:52.7.0"
	ObisVoltageL3         = "1-0:72.7.0"
	ObisCurrentL1         = "1-0:31.7.0"
	ObisCurrentL2         = "1-0:51.7.0"
	ObisCurrentL3         = "1-0:71.7.0"
	ObisTextMessage       = "0-0:96.13.0"
	ObisGasDeviceType     = "0-1:24.1.0"
	ObisGasDelivered      = "0-1:24.2.1"
	ObisGasLegacy         = "0-1:24.3.0"
)

// Decoder states
const (
	stateIdle = iota
	stateBody
	stateCRC
)
