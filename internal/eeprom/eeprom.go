// Package eeprom decodes and encodes the mutable console settings
// stored in the Vantage console's EEPROM, and guards the protected
// address range that the driver refuses to write locally.
package eeprom

import (
	"encoding/binary"
	"fmt"
)

// Addresses of the individual EEPROM fields this package understands,
// matching the Vantage Serial Communications Reference Manual's address
// map.
const (
	AddrBarGain          = 0x01
	AddrBarOffset         = 0x03
	AddrBarCal            = 0x05
	AddrHum33             = 0x07
	AddrHum80             = 0x09
	AddrLatitude          = 0x0B
	AddrLongitude         = 0x0D
	AddrElevation         = 0x0F
	AddrTimeZoneIndex     = 0x11
	AddrManualOrAutoDST   = 0x12
	AddrDSTOn             = 0x13
	AddrGMTOffset         = 0x14
	AddrUseGMTOffset      = 0x16
	AddrUsedTransmitters  = 0x17
	AddrRetransmitID      = 0x18
	AddrStationList       = 0x19
	AddrUnitBits          = 0x29
	AddrSetupBits         = 0x2B
	AddrRainSeasonStart   = 0x2C
	AddrArchivePeriod     = 0x2D
	AddrRainStormData     = 325 + 2642
)

// StationListSize is the byte length of the station-list EEPROM field,
// two bytes per possible sensor station (up to 8 stations, 2 bytes each
// for station type and metadata).
const StationListSize = 16

// protectedAddresses is the fixed set of EEPROM addresses the driver
// refuses to write locally: barometer and humidity calibration,
// elevation, and the archive period (changing it without the console's
// own SETPER bookkeeping would desynchronize archive timestamps).
var protectedAddresses = map[uint16]bool{
	0x01: true, 0x02: true, 0x03: true, 0x04: true,
	0x05: true, 0x06: true, 0x07: true, 0x08: true,
	0x09: true, 0x0a: true,
	0x0f: true,
	0x2d: true,
}

// IsProtected reports whether addr is in the protected set; writes to
// it must be refused locally before ever reaching the console.
func IsProtected(addr uint16) bool {
	return protectedAddresses[addr]
}

// latLonScale converts between EEPROM tenths-of-a-degree and decimal
// degrees.
const latLonScale = 10.0

// Position is the console's configured latitude, longitude, and
// elevation.
type Position struct {
	Latitude  float64 // decimal degrees, positive north/east
	Longitude float64
	Elevation int16 // feet
}

// DecodePosition decodes a 6-byte position record (latitude, longitude,
// elevation, each a little-endian int16) starting at offset within buf.
func DecodePosition(buf []byte, offset int) (Position, error) {
	if offset+6 > len(buf) {
		return Position{}, fmt.Errorf("eeprom: position decode out of range at offset %d", offset)
	}
	lat := int16(binary.LittleEndian.Uint16(buf[offset:]))
	lon := int16(binary.LittleEndian.Uint16(buf[offset+2:]))
	elev := int16(binary.LittleEndian.Uint16(buf[offset+4:]))
	return Position{
		Latitude:  float64(lat) / latLonScale,
		Longitude: float64(lon) / latLonScale,
		Elevation: elev,
	}, nil
}

// EncodeLatLon encodes only the latitude/longitude fields of p into a
// 4-byte buffer, matching the console's own encodeLatLon (elevation is
// written back separately since it rarely changes alongside position).
func (p Position) EncodeLatLon() []byte {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint16(buf[0:], uint16(int16(p.Latitude*latLonScale)))
	binary.LittleEndian.PutUint16(buf[2:], uint16(int16(p.Longitude*latLonScale)))
	return buf
}

// DSTMode selects whether daylight saving time is switched automatically
// by the console's time-zone table or manually by the user.
type DSTMode int

const (
	DSTAutomatic DSTMode = iota
	DSTManual
)

// TimeZoneRules is the console's time zone and daylight-saving-time
// configuration.
type TimeZoneRules struct {
	TimeZoneIndex    uint8
	DST              DSTMode
	ManualDSTOn      bool
	GMTOffsetMinutes int
	UseGMTOffset     bool
}

// DecodeTimeZoneRules decodes the 6-byte time-management record
// starting at offset: time zone index, manual/auto DST, DST-on flag,
// a 1/100-hour-scaled GMT offset, and the use-GMT-offset flag.
func DecodeTimeZoneRules(buf []byte, offset int) (TimeZoneRules, error) {
	if offset+6 > len(buf) {
		return TimeZoneRules{}, fmt.Errorf("eeprom: time zone decode out of range at offset %d", offset)
	}
	dst := DSTAutomatic
	if buf[offset+1] == 1 {
		dst = DSTManual
	}
	raw := int16(binary.LittleEndian.Uint16(buf[offset+3:]))
	return TimeZoneRules{
		TimeZoneIndex:    buf[offset],
		DST:              dst,
		ManualDSTOn:      buf[offset+2] == 1,
		GMTOffsetMinutes: int(raw) * 60 / 100,
		UseGMTOffset:     buf[offset+5] == 1,
	}, nil
}

// Encode re-encodes the time zone rules back into a 6-byte record.
func (t TimeZoneRules) Encode() []byte {
	buf := make([]byte, 6)
	buf[0] = t.TimeZoneIndex
	if t.DST == DSTManual {
		buf[1] = 1
	}
	if t.ManualDSTOn {
		buf[2] = 1
	}
	binary.LittleEndian.PutUint16(buf[3:], uint16(int16(t.GMTOffsetMinutes*100/60)))
	if t.UseGMTOffset {
		buf[5] = 1
	}
	return buf
}

// RainBucketSize is the configured rain-collector tip size.
type RainBucketSize int

const (
	RainBucket001In   RainBucketSize = 0 // 0.01 in
	RainBucket02mm    RainBucketSize = 1 // 0.2 mm
	RainBucket001In2  RainBucketSize = 2 // 0.01 in, alternate code (Vue)
)

// Inches returns the rain-bucket size, in inches, for conversion of
// raw click counts into rainfall.
func (r RainBucketSize) Inches() float64 {
	switch r {
	case RainBucket02mm:
		return 0.2 / 25.4
	default:
		return 0.01
	}
}

// SetupBits is the single packed EEPROM byte controlling console-wide
// display and mode options. Per spec.md, editing it requires a
// follow-up NEWSETUP console command to take effect.
type SetupBits struct {
	Is24HourMode     bool
	IsCurrentlyAM    bool
	IsDayMonthOrder  bool
	IsWindCupLarge   bool
	RainBucketSize   RainBucketSize
	IsNorthLatitude  bool
	IsEastLongitude  bool
}

// DecodeSetupBits unpacks a single setup-bits byte.
func DecodeSetupBits(b byte) SetupBits {
	return SetupBits{
		Is24HourMode:    b&0x01 != 0,
		IsCurrentlyAM:   b&0x02 != 0,
		IsDayMonthOrder: b&0x04 != 0,
		IsWindCupLarge:  b&0x08 != 0,
		RainBucketSize:  RainBucketSize((b >> 4) & 0x3),
		IsNorthLatitude: b&0x40 != 0,
		IsEastLongitude: b&0x80 != 0,
	}
}

// Encode packs the setup bits back into a single byte.
func (s SetupBits) Encode() byte {
	var b byte
	if s.Is24HourMode {
		b |= 0x01
	}
	if s.IsCurrentlyAM {
		b |= 0x02
	}
	if s.IsDayMonthOrder {
		b |= 0x04
	}
	if s.IsWindCupLarge {
		b |= 0x08
	}
	b |= byte(s.RainBucketSize&0x3) << 4
	if s.IsNorthLatitude {
		b |= 0x40
	}
	if s.IsEastLongitude {
		b |= 0x80
	}
	return b
}

// StationList is the raw 16-byte EEPROM record describing which sensor
// stations the console is configured to listen to. Each byte packs a
// station's type in bits 0-3 and its repeater/ID bits in 4-7; this
// package treats it opaquely beyond exposing the raw bytes, since
// interpreting individual station types is outside the protocol core.
type StationList [StationListSize]byte

// Config is a point-in-time, immutable snapshot of the console's
// mutable settings. Callers read a snapshot, derive a modified copy,
// and submit the copy for write-back via individual EEBWR commands
// (see the driver's WriteConfig-style helpers); Config itself never
// talks to the serial port.
type Config struct {
	Position             Position
	TimeZone             TimeZoneRules
	Setup                SetupBits
	Stations             StationList
	UsedTransmitters     uint8
	RetransmitID         uint8
	RainSeasonStartMonth int
	ArchivePeriodMinutes int
}

// Decode parses a full 4096-byte EEPROM dump (as returned by GETEE) into
// a Config.
func Decode(dump []byte) (Config, error) {
	if len(dump) < 0x2E {
		return Config{}, fmt.Errorf("eeprom: dump is %d bytes, too short to decode configuration", len(dump))
	}

	pos, err := DecodePosition(dump, AddrLatitude)
	if err != nil {
		return Config{}, err
	}
	// Elevation lives 4 bytes into the same region as lat/lon in the
	// console's layout (AddrElevation == AddrLatitude+4).
	tz, err := DecodeTimeZoneRules(dump, AddrTimeZoneIndex)
	if err != nil {
		return Config{}, err
	}

	var stations StationList
	copy(stations[:], dump[AddrStationList:AddrStationList+StationListSize])

	cfg := Config{
		Position:             pos,
		TimeZone:             tz,
		Setup:                DecodeSetupBits(dump[AddrSetupBits]),
		Stations:             stations,
		UsedTransmitters:     dump[AddrUsedTransmitters],
		RetransmitID:         dump[AddrRetransmitID],
		RainSeasonStartMonth: int(dump[AddrRainSeasonStart]),
		ArchivePeriodMinutes: int(dump[AddrArchivePeriod]),
	}
	return cfg, nil
}
