package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/vantagewx/vws/internal/measurement"
)

// HiLowSize is the fixed wire size of a Hi/Low packet: 436 bytes of
// payload plus a 2-byte CRC.
const HiLowSize = 438

// hiLowPayloadSize is the decoded-body size, i.e. HiLowSize minus the CRC.
const hiLowPayloadSize = HiLowSize - 2

// extremeI16Wire models a day/month/year extreme for a signed, /10-scaled
// measurement (temperature, dew point): a daily low and high (each with
// the packed hhmm time it occurred), plus the month's and year's low/high.
type extremeI16Wire struct {
	DayLow      int16
	DayLowTime  uint16
	DayHigh     int16
	DayHighTime uint16
	MonthLow    int16
	MonthHigh   int16
	YearLow     int16
	YearHigh    int16
}

// extremeU8 models a day/month/year extreme for an unsigned percentage
// measurement (humidity).
type extremeU8Wire struct {
	DayLow      uint8
	DayLowTime  uint16
	DayHigh     uint8
	DayHighTime uint16
	MonthLow    uint8
	MonthHigh   uint8
	YearLow     uint8
	YearHigh    uint8
}

// hiOnlyU16 models a day/month/year high-only extreme (rain rate, solar).
type hiOnlyU16Wire struct {
	DayHigh     uint16
	DayHighTime uint16
	MonthHigh   uint16
	YearHigh    uint16
}

type hiLowWire struct {
	Barometer struct {
		DayLow      uint16
		DayLowTime  uint16
		DayHigh     uint16
		DayHighTime uint16
		MonthLow    uint16
		MonthHigh   uint16
	}
	InsideTemp    extremeI16Wire
	InsideHumid   extremeU8Wire
	OutsideTemp   extremeI16Wire
	OutsideHumid  extremeU8Wire
	WindSpeed struct {
		DayHigh     uint8
		DayHighTime uint16
		MonthHigh   uint8
		YearHigh    uint8
	}
	RainRate  hiOnlyU16Wire
	HourRain  uint16 // highest hourly rain total this year; extends RainRate's day/month/year trio
	DewPoint  extremeI16Wire
	Solar     hiOnlyU16Wire
	UV        struct {
		DayHigh     uint8
		DayHighTime uint16
		MonthHigh   uint8
		YearHigh    uint8
	}
	// Reserved preserves the remainder of the 436-byte payload: the
	// console's real Hi/Low packet also itemizes extremes for every
	// extra/soil/leaf sensor, which this decoder does not break out
	// individually. The bytes are round-tripped opaquely so the 438-byte
	// framing invariant (spec.md §3) and CRC always hold even though
	// those channels aren't interpreted.
	Reserved [hiLowPayloadSize - 12 - 16 - 10 - 16 - 10 - 5 - 10 - 16 - 8 - 5]byte
}

// HiLowRecord is the decoded, Measurement-wrapped subset of a Hi/Low
// packet covering the core sensors (outside/inside temperature and
// humidity, barometer, wind speed, rain rate, dew point, solar, UV).
type HiLowRecord struct {
	BarometerDayLow, BarometerDayHigh     measurement.Measurement[float64]
	BarometerMonthLow, BarometerMonthHigh measurement.Measurement[float64]

	InsideTempDayLow, InsideTempDayHigh   measurement.Measurement[float64]
	InsideTempYearLow, InsideTempYearHigh measurement.Measurement[float64]

	OutsideTempDayLow, OutsideTempDayHigh   measurement.Measurement[float64]
	OutsideTempYearLow, OutsideTempYearHigh measurement.Measurement[float64]

	InsideHumidDayLow, InsideHumidDayHigh   measurement.Measurement[float64]
	OutsideHumidDayLow, OutsideHumidDayHigh measurement.Measurement[float64]

	WindSpeedDayHigh, WindSpeedYearHigh measurement.Measurement[float64]

	RainRateDayHigh, RainRateYearHigh measurement.Measurement[float64]

	DewPointDayLow, DewPointDayHigh measurement.Measurement[float64]

	SolarDayHigh, SolarYearHigh measurement.Measurement[float64]
	UVDayHigh, UVYearHigh       measurement.Measurement[float64]

	// rawPayload is retained so the record can be re-encoded for CRC
	// round-trip tests without loss of the unmodeled sensor channels.
	rawPayload []byte
}

// DecodeHiLow decodes a 438-byte CRC-framed Hi/Low packet.
func DecodeHiLow(buf []byte) (HiLowRecord, error) {
	if len(buf) != HiLowSize {
		return HiLowRecord{}, fmt.Errorf("packet: Hi/Low buffer is %d bytes, want %d", len(buf), HiLowSize)
	}
	payload := buf[:hiLowPayloadSize]

	var w hiLowWire
	if err := binary.Read(bytes.NewReader(payload), binary.LittleEndian, &w); err != nil {
		return HiLowRecord{}, fmt.Errorf("packet: decode Hi/Low: %w", err)
	}

	r := HiLowRecord{
		BarometerDayLow:   wrapScaled1000(w.Barometer.DayLow),
		BarometerDayHigh:  wrapScaled1000(w.Barometer.DayHigh),
		BarometerMonthLow: wrapScaled1000(w.Barometer.MonthLow),
		BarometerMonthHigh: wrapScaled1000(w.Barometer.MonthHigh),

		InsideTempDayLow:   wrapTemp10(w.InsideTemp.DayLow),
		InsideTempDayHigh:  wrapTemp10(w.InsideTemp.DayHigh),
		InsideTempYearLow:  wrapTemp10(w.InsideTemp.YearLow),
		InsideTempYearHigh: wrapTemp10(w.InsideTemp.YearHigh),

		OutsideTempDayLow:   wrapTemp10(w.OutsideTemp.DayLow),
		OutsideTempDayHigh:  wrapTemp10(w.OutsideTemp.DayHigh),
		OutsideTempYearLow:  wrapTemp10(w.OutsideTemp.YearLow),
		OutsideTempYearHigh: wrapTemp10(w.OutsideTemp.YearHigh),

		InsideHumidDayLow:   wrapPercent(w.InsideHumid.DayLow),
		InsideHumidDayHigh:  wrapPercent(w.InsideHumid.DayHigh),
		OutsideHumidDayLow:  wrapPercent(w.OutsideHumid.DayLow),
		OutsideHumidDayHigh: wrapPercent(w.OutsideHumid.DayHigh),

		WindSpeedDayHigh:  wrapMph(w.WindSpeed.DayHigh),
		WindSpeedYearHigh: wrapMph(w.WindSpeed.YearHigh),

		RainRateDayHigh:  wrapScaled100(w.RainRate.DayHigh),
		RainRateYearHigh: wrapScaled100(w.RainRate.YearHigh),

		DewPointDayLow:  wrapTemp10(w.DewPoint.DayLow),
		DewPointDayHigh: wrapTemp10(w.DewPoint.DayHigh),

		SolarDayHigh:  wrapSolar(w.Solar.DayHigh),
		SolarYearHigh: wrapSolar(w.Solar.YearHigh),
		UVDayHigh:     wrapUVIndex(w.UV.DayHigh),
		UVYearHigh:    wrapUVIndex(w.UV.YearHigh),

		rawPayload: append([]byte(nil), payload...),
	}
	return r, nil
}

// Encode re-encodes the record using its retained raw payload (the
// fields this decoder doesn't itemize are preserved byte-for-byte),
// for CRC round-trip testing.
func (r HiLowRecord) Encode() []byte {
	return append([]byte(nil), r.rawPayload...)
}
