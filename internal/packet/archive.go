package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/vantagewx/vws/internal/bitfield"
	"github.com/vantagewx/vws/internal/measurement"
)

// ArchiveSize is the fixed on-wire and on-disk size of an archive
// record: no CRC is stored per-record on disk (the archive file is
// un-CRC'd, per spec.md §4.2), but a CRC does frame each record while it
// is in flight inside a DMP/DMPAFT page (see Page in
// internal/transport/archivepage.go).
const ArchiveSize = 52

// archiveWire is the exact 52-byte binary layout of an archive record.
type archiveWire struct {
	Date              uint16
	Time              uint16
	OutTempAvg        int16
	OutTempHigh       int16
	OutTempLow        int16
	RainfallClicks    uint16
	HighRainRate      uint16
	Barometer         uint16
	Solar             uint16
	NumWindSamples    uint16
	InTempAvg         int16
	InHumidity        uint8
	OutHumidity       uint8
	WindSpeedAvg      uint8
	WindSpeedHigh     uint8
	WindDirPrevailing uint8 // 0-15 heading index, or 0xFF if calm
	WindDirHigh       uint8
	UVAvg             uint8
	ETClicks          uint8
	SolarHigh         uint16
	UVHigh            uint8
	ForecastRule      uint8
	SoilTemp          [4]uint8
	LeafTemp          [4]uint8
	SoilMoisture      [4]uint8
	LeafWetness       [4]uint8
	ExtraHumidity     [2]uint8
}

// ArchiveRecord is the decoded form of a 52-byte archive packet.
type ArchiveRecord struct {
	Year, Month, Day   int
	Hour, Minute       int
	OutTempAvg         measurement.Measurement[float64]
	OutTempHigh        measurement.Measurement[float64]
	OutTempLow         measurement.Measurement[float64]
	Rainfall           float64 // inches; clicks scaled by the caller-supplied bucket size
	HighRainRate       float64
	Barometer          measurement.Measurement[float64]
	Solar              measurement.Measurement[float64]
	SolarHigh          measurement.Measurement[float64]
	NumWindSamples     int
	InTempAvg          measurement.Measurement[float64]
	InHumidity         measurement.Measurement[float64]
	OutHumidity        measurement.Measurement[float64]
	WindSpeedAvg       measurement.Measurement[float64]
	WindSpeedHigh      measurement.Measurement[float64]
	WindDirPrevailing  measurement.Measurement[int] // heading index 0-15
	WindDirHigh        measurement.Measurement[int]
	UVAvg              measurement.Measurement[float64]
	UVHigh             measurement.Measurement[float64]
	ET                 float64
	ForecastRule       uint8
}

// Timestamp returns the record's embedded timestamp interpreted in loc
// (typically the station's configured time zone).
func (a ArchiveRecord) Timestamp(loc *time.Location) time.Time {
	return time.Date(a.Year, time.Month(a.Month), a.Day, a.Hour, a.Minute, 0, 0, loc)
}

// IsEmptySlot reports whether buf is an un-written archive slot: the
// console fills unused circular-buffer slots with all 0xFF bytes
// (spec.md §3 archive invariant 3). Such slots must never be decoded or
// appended to the archive file.
func IsEmptySlot(buf []byte) bool {
	for _, b := range buf {
		if b != 0xFF {
			return false
		}
	}
	return true
}

// DecodeArchive decodes a 52-byte archive record. rainBucketInches is
// the station's configured rain-bucket size (commonly 0.01 or 0.02 in);
// rainfall and ET fields are reported by the console in bucket "clicks".
func DecodeArchive(buf []byte, rainBucketInches float64) (ArchiveRecord, error) {
	if len(buf) != ArchiveSize {
		return ArchiveRecord{}, fmt.Errorf("packet: archive buffer is %d bytes, want %d", len(buf), ArchiveSize)
	}

	var w archiveWire
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &w); err != nil {
		return ArchiveRecord{}, fmt.Errorf("packet: decode archive: %w", err)
	}

	year, month, day := bitfield.UnpackArchiveDate(w.Date)
	hour, minute := bitfield.UnpackArchiveTime(w.Time)

	r := ArchiveRecord{
		Year: year, Month: month, Day: day,
		Hour: hour, Minute: minute,
		OutTempAvg:     wrapTemp10(w.OutTempAvg),
		OutTempHigh:    wrapTemp10(w.OutTempHigh),
		OutTempLow:     wrapTemp10(w.OutTempLow),
		Rainfall:       float64(w.RainfallClicks) * rainBucketInches,
		HighRainRate:   float64(w.HighRainRate) * rainBucketInches,
		Barometer:      wrapScaled1000(w.Barometer),
		Solar:          wrapSolar(w.Solar),
		SolarHigh:      wrapSolar(w.SolarHigh),
		NumWindSamples: int(w.NumWindSamples),
		InTempAvg:      wrapTemp10(w.InTempAvg),
		InHumidity:     wrapPercent(w.InHumidity),
		OutHumidity:    wrapPercent(w.OutHumidity),
		WindSpeedAvg:   wrapMph(w.WindSpeedAvg),
		WindSpeedHigh:  wrapMph(w.WindSpeedHigh),
		UVAvg:          wrapUVIndex(w.UVAvg),
		UVHigh:         wrapUVIndex(w.UVHigh),
		ET:             float64(w.ETClicks) * rainBucketInches,
		ForecastRule:   w.ForecastRule,
	}
	if idx, ok := byteValid(w.WindDirPrevailing); ok && idx < 16 {
		r.WindDirPrevailing = measurement.Valid(int(idx))
	}
	if idx, ok := byteValid(w.WindDirHigh); ok && idx < 16 {
		r.WindDirHigh = measurement.Valid(int(idx))
	}
	return r, nil
}

// EncodeArchive re-encodes a decoded record back into a 52-byte record,
// used for round-trip testing and by the archive manager's append path
// when re-emitting records for e.g. a DMPAFT-style dump query.
func EncodeArchive(r ArchiveRecord, rainBucketInches float64) []byte {
	w := archiveWire{
		Date:           bitfield.PackArchiveDate(r.Year, r.Month, r.Day),
		Time:           bitfield.PackArchiveTime(r.Hour, r.Minute),
		OutTempAvg:     encTemp10(r.OutTempAvg),
		OutTempHigh:    encTemp10(r.OutTempHigh),
		OutTempLow:     encTemp10(r.OutTempLow),
		RainfallClicks: clicks(r.Rainfall, rainBucketInches),
		HighRainRate:   clicks(r.HighRainRate, rainBucketInches),
		Barometer:      encScaled1000(r.Barometer),
		Solar:          encSolar(r.Solar),
		SolarHigh:      encSolar(r.SolarHigh),
		NumWindSamples: uint16(r.NumWindSamples),
		InTempAvg:      encTemp10(r.InTempAvg),
		InHumidity:     encPercent(r.InHumidity),
		OutHumidity:    encPercent(r.OutHumidity),
		WindSpeedAvg:   encMph(r.WindSpeedAvg),
		WindSpeedHigh:  encMph(r.WindSpeedHigh),
		UVAvg:          encUV(r.UVAvg),
		UVHigh:         encUV(r.UVHigh),
		ETClicks:       uint8(clicks(r.ET, rainBucketInches)),
		ForecastRule:   r.ForecastRule,
		WindDirPrevailing: sentinelByteFF,
		WindDirHigh:       sentinelByteFF,
	}
	if v, ok := r.WindDirPrevailing.Get(); ok {
		w.WindDirPrevailing = uint8(v)
	}
	if v, ok := r.WindDirHigh.Get(); ok {
		w.WindDirHigh = uint8(v)
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, &w) //nolint:errcheck
	return buf.Bytes()
}

func clicks(inches, bucket float64) uint16 {
	if bucket == 0 {
		return 0
	}
	return uint16(inches/bucket + 0.5)
}

func encTemp10(m measurement.Measurement[float64]) int16 {
	if v, ok := m.Get(); ok {
		return int16(v * 10)
	}
	return sentinelBigInt16Empty
}

func encScaled1000(m measurement.Measurement[float64]) uint16 {
	if v, ok := m.Get(); ok {
		return uint16(v * 1000)
	}
	return sentinelBigInvalid
}

func encSolar(m measurement.Measurement[float64]) uint16 {
	if v, ok := m.Get(); ok {
		return uint16(v)
	}
	return sentinelBigInvalid
}

func encPercent(m measurement.Measurement[float64]) uint8 {
	if v, ok := m.Get(); ok {
		return uint8(v)
	}
	return sentinelByteFF
}

func encMph(m measurement.Measurement[float64]) uint8 {
	if v, ok := m.Get(); ok {
		return uint8(v)
	}
	return sentinelByteFF
}

func encUV(m measurement.Measurement[float64]) uint8 {
	if v, ok := m.Get(); ok {
		return uint8(v * 10)
	}
	return sentinelByteFF
}
