package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/vantagewx/vws/internal/bitfield"
	"github.com/vantagewx/vws/internal/crc16"
	"github.com/vantagewx/vws/internal/measurement"
)

// LoopSize is the fixed wire size of a LOOP packet: preamble through
// sunset (95 bytes), a trailing LF/CR (2 bytes), and a 2-byte CRC.
const LoopSize = 99

// loopWire is the exact 95-byte binary layout of a LOOP packet's body,
// decoded with encoding/binary the way the teacher's LoopPacket struct
// does. It is unexported because callers should only ever see the
// Measurement-wrapped LoopReading produced by Decode.
type loopWire struct {
	Loop               [3]byte
	LoopOrTrend        int8 // 'P' (0x50) for flavor A, else the 3-hour barometer trend for flavor B
	PacketType         uint8
	NextRecord         uint16
	Barometer          uint16
	InTemp             int16
	InHumidity         uint8
	OutTemp            int16
	WindSpeed          uint8
	WindSpeed10Min     uint8
	WindDir            uint16
	ExtraTemp          [7]uint8
	SoilTemp           [4]uint8
	LeafTemp           [4]uint8
	OutHumidity        uint8
	ExtraHumidity      [7]uint8
	RainRate           uint16
	UV                 uint8
	Solar              uint16
	StormRain          uint16
	StormStart         uint16
	DayRain            uint16
	MonthRain          uint16
	YearRain           uint16
	DayET              uint16
	MonthET            uint16
	YearET             uint16
	SoilMoisture       [4]uint8
	LeafWetness        [4]uint8
	InsideAlarm        uint8
	RainAlarm          uint8
	OutsideAlarm       [2]uint8
	ExtraAlarm         [8]uint8
	SoilLeafAlarm      [4]uint8
	TxBatteryStatus    uint8
	ConsBatteryVoltage uint16
	ForecastIcon       uint8
	ForecastRule       uint8
	Sunrise            uint16
	Sunset             uint16
}

// LoopReading is the decoded, Measurement-wrapped form of a LOOP packet.
type LoopReading struct {
	NextRecord      uint16
	Barometer       measurement.Measurement[float64]
	InsideTemp      measurement.Measurement[float64]
	InsideHumidity  measurement.Measurement[float64]
	OutsideTemp     measurement.Measurement[float64]
	WindSpeed       measurement.Measurement[float64]
	WindSpeed10Min  measurement.Measurement[float64]
	WindDir         measurement.Measurement[float64]
	OutsideHumidity measurement.Measurement[float64]
	RainRate        measurement.Measurement[float64] // raw clicks/hour divided by 100
	UV              measurement.Measurement[float64]
	Solar           measurement.Measurement[float64]
	// StormRain's unit is ambiguous: the console documentation states
	// LOOP reports it in 1/100 inch while LOOP2 reports rain-bucket
	// clicks, but with the common 0.01" bucket the two are numerically
	// identical, so this ambiguity is preserved rather than resolved.
	// See spec.md §9 and DESIGN.md "Open Questions".
	StormRain    measurement.Measurement[float64]
	StormStart   measurement.Measurement[uint16]
	DayRain      measurement.Measurement[float64]
	MonthRain    measurement.Measurement[float64]
	YearRain     measurement.Measurement[float64]
	DayET        measurement.Measurement[float64]
	MonthET      measurement.Measurement[float64]
	YearET       measurement.Measurement[float64]
	Alarms       bitfield.AlarmBits
	ForecastIcon bitfield.ForecastIcons
	ForecastRule uint8
	Sunrise      uint16 // packed hhmm, local station time
	Sunset       uint16

	// ConsoleBatteryVoltage and TxBatteryStatus feed the daily
	// network-status report (internal/netstatus); TxBatteryStatus is
	// the raw per-transmitter low-battery bitmask (bit N set means
	// station N's battery is low), left undecoded here since this
	// single-console gateway doesn't model a multi-transmitter network.
	ConsoleBatteryVoltage measurement.Measurement[float64]
	TxBatteryStatus       uint8
}

// DecodeLoop decodes a 99-byte CRC-framed LOOP packet. It does not
// validate the CRC; callers should check crc16.Verify(buf) first (the
// driver does this before invoking any decoder, per spec.md §4.1).
func DecodeLoop(buf []byte) (LoopReading, error) {
	if len(buf) != LoopSize {
		return LoopReading{}, fmt.Errorf("packet: LOOP buffer is %d bytes, want %d", len(buf), LoopSize)
	}
	if !bytes.HasPrefix(buf, []byte("LOO")) {
		return LoopReading{}, fmt.Errorf("packet: LOOP preamble mismatch: %q", buf[:3])
	}

	var w loopWire
	if err := binary.Read(bytes.NewReader(buf[:95]), binary.LittleEndian, &w); err != nil {
		return LoopReading{}, fmt.Errorf("packet: decode LOOP: %w", err)
	}

	r := LoopReading{
		NextRecord:      w.NextRecord,
		StormStart:      wrapU16(w.StormStart),
		ForecastRule:    w.ForecastRule,
		Sunrise:         w.Sunrise,
		Sunset:          w.Sunset,
		TxBatteryStatus: w.TxBatteryStatus,
	}
	copy(r.Alarms[0:1], []byte{w.InsideAlarm})
	copy(r.Alarms[1:2], []byte{w.RainAlarm})
	copy(r.Alarms[2:4], w.OutsideAlarm[:])
	copy(r.Alarms[4:12], w.ExtraAlarm[:])
	copy(r.Alarms[12:16], w.SoilLeafAlarm[:])
	r.ForecastIcon = bitfield.ForecastIcons(w.ForecastIcon)

	r.Barometer = wrapScaled1000(w.Barometer)
	r.InsideTemp = wrapTemp10(w.InTemp)
	r.InsideHumidity = wrapPercent(w.InHumidity)
	r.OutsideTemp = wrapTemp10(w.OutTemp)
	r.WindSpeed = wrapMph(w.WindSpeed)
	r.WindSpeed10Min = wrapMph(w.WindSpeed10Min)
	r.WindDir = wrapWindDir(w.WindDir)
	r.OutsideHumidity = wrapPercent(w.OutHumidity)
	r.RainRate = wrapScaled100(w.RainRate)
	r.UV = wrapUVIndex(w.UV)
	r.Solar = wrapSolar(w.Solar)
	r.StormRain = wrapScaled100(w.StormRain)
	r.DayRain = wrapScaled100(w.DayRain)
	r.MonthRain = wrapScaled100(w.MonthRain)
	r.YearRain = wrapScaled100(w.YearRain)
	r.DayET = wrapScaled1000(w.DayET)
	r.MonthET = wrapScaled100(w.MonthET)
	r.YearET = wrapScaled100(w.YearET)
	r.ConsoleBatteryVoltage = wrapConsoleBatteryVoltage(w.ConsBatteryVoltage)

	return r, nil
}

// wrapConsoleBatteryVoltage applies the console's documented raw-value
// conversion: voltage = ((raw * 300) / 512) / 100.
func wrapConsoleBatteryVoltage(v uint16) measurement.Measurement[float64] {
	if vv, ok := uint16Valid(v); ok {
		return measurement.Valid(float64(vv) * 300.0 / 512.0 / 100.0)
	}
	return measurement.Invalid[float64]()
}

// encodeLoopWire encodes a raw loopWire struct as a 99-byte CRC-framed
// LOOP packet, to support round-trip testing of the decoder. There is no
// encoder that starts from a decoded LoopReading.
func encodeLoopWire(w loopWire) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, &w) //nolint:errcheck // fixed-size struct, cannot fail
	body := buf.Bytes()
	framed := append(body, '\n', '\r')
	return crc16.Append(framed)
}

func wrapU16(v uint16) measurement.Measurement[uint16] {
	if v, ok := bigValid(v); ok {
		return measurement.Valid(v)
	}
	return measurement.Invalid[uint16]()
}

func wrapScaled1000(v uint16) measurement.Measurement[float64] {
	if vv, ok := bigValid(v); ok {
		return measurement.Valid(float64(vv) / 1000.0)
	}
	return measurement.Invalid[float64]()
}

func wrapScaled100(v uint16) measurement.Measurement[float64] {
	if vv, ok := uint16Valid(v); ok {
		return measurement.Valid(float64(vv) / 100.0)
	}
	return measurement.Invalid[float64]()
}

func wrapTemp10(v int16) measurement.Measurement[float64] {
	if vv, ok := int16Valid(v); ok {
		return measurement.Valid(float64(vv) / 10.0)
	}
	return measurement.Invalid[float64]()
}

func wrapPercent(v uint8) measurement.Measurement[float64] {
	if vv, ok := byteValid(v); ok {
		return measurement.Valid(float64(vv))
	}
	return measurement.Invalid[float64]()
}

func wrapMph(v uint8) measurement.Measurement[float64] {
	if vv, ok := byteValid(v); ok {
		return measurement.Valid(float64(vv))
	}
	return measurement.Invalid[float64]()
}

func wrapWindDir(v uint16) measurement.Measurement[float64] {
	if vv, ok := bigValid(v); ok {
		return measurement.Valid(float64(vv))
	}
	return measurement.Invalid[float64]()
}

func wrapUVIndex(v uint8) measurement.Measurement[float64] {
	if vv, ok := byteValid(v); ok {
		return measurement.Valid(float64(vv) / 10.0)
	}
	return measurement.Invalid[float64]()
}

func wrapSolar(v uint16) measurement.Measurement[float64] {
	if vv, ok := bigValid(v); ok {
		return measurement.Valid(float64(vv))
	}
	return measurement.Invalid[float64]()
}
