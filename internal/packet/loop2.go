package packet

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/vantagewx/vws/internal/crc16"
	"github.com/vantagewx/vws/internal/measurement"
)

// Loop2Size is the fixed wire size of a LOOP2 packet, matching LoopSize:
// 95 bytes of body, a trailing LF/CR, and a 2-byte CRC.
const Loop2Size = 99

// PacketTypeLoop2 is the value of the wire PacketType field that
// discriminates a LOOP2 packet from a LOOP (flavor-A/B) packet.
const PacketTypeLoop2 = 1

// loop2Wire is the 95-byte binary layout of a LOOP2 packet body.
type loop2Wire struct {
	Loop              [3]byte
	BarTrend          int8
	PacketType        uint8
	Reserved1         uint16
	Barometer         uint16
	InTemp            int16
	InHumidity        uint8
	OutTemp           int16
	WindSpeed         uint8
	WindDir           uint16
	WindAvg2Min       uint16
	WindAvg10Min      uint16
	WindGust10Min     uint16
	WindGustDir10Min  uint16
	DewPoint          int16
	OutHumidity       uint8
	HeatIndex         int16
	WindChill         int16
	THSW              int16
	RainRate          uint16
	UV                uint8
	Solar             uint16
	Rain15Min         uint16
	RainHourly        uint16
	RainDaily         uint16
	Rain24Hour        uint16
	BarReductionMeth  uint8
	BarOffset         int16
	BarCalibration    int16
	BarRawReading     uint16
	GraphPointerCurr  uint8
	GraphPointerLast  uint8
	StormRain         uint16
	StormStart        uint16
	GraphDataPointers [10]uint8
	Reserved2         [25]uint8
}

// Loop2Reading is the decoded, Measurement-wrapped form of a LOOP2
// packet.
type Loop2Reading struct {
	Barometer       measurement.Measurement[float64]
	InsideTemp      measurement.Measurement[float64]
	InsideHumidity  measurement.Measurement[float64]
	OutsideTemp     measurement.Measurement[float64]
	WindSpeed       measurement.Measurement[float64]
	WindDir         measurement.Measurement[float64]
	WindAvg2Min     measurement.Measurement[float64]
	WindAvg10Min    measurement.Measurement[float64]
	WindGust10Min   measurement.Measurement[float64]
	WindGustDir     measurement.Measurement[float64]
	DewPoint        measurement.Measurement[float64]
	OutsideHumidity measurement.Measurement[float64]
	HeatIndex       measurement.Measurement[float64]
	WindChill       measurement.Measurement[float64]
	THSW            measurement.Measurement[float64]
	RainRate        measurement.Measurement[float64]
	UV              measurement.Measurement[float64]
	Solar           measurement.Measurement[float64]
	Rain15Min       measurement.Measurement[float64]
	RainHourly      measurement.Measurement[float64]
	RainDaily       measurement.Measurement[float64]
	Rain24Hour      measurement.Measurement[float64]
	// StormRain: see the unit-ambiguity note on LoopReading.StormRain.
	StormRain  measurement.Measurement[float64]
	StormStart measurement.Measurement[uint16]
}

// DecodeLoop2 decodes a 99-byte CRC-framed LOOP2 packet.
func DecodeLoop2(buf []byte) (Loop2Reading, error) {
	if len(buf) != Loop2Size {
		return Loop2Reading{}, fmt.Errorf("packet: LOOP2 buffer is %d bytes, want %d", len(buf), Loop2Size)
	}
	if !bytes.HasPrefix(buf, []byte("LOO")) {
		return Loop2Reading{}, fmt.Errorf("packet: LOOP2 preamble mismatch: %q", buf[:3])
	}

	var w loop2Wire
	if err := binary.Read(bytes.NewReader(buf[:95]), binary.LittleEndian, &w); err != nil {
		return Loop2Reading{}, fmt.Errorf("packet: decode LOOP2: %w", err)
	}
	if w.PacketType != PacketTypeLoop2 {
		return Loop2Reading{}, fmt.Errorf("packet: LOOP2 packet type = %d, want %d", w.PacketType, PacketTypeLoop2)
	}

	r := Loop2Reading{
		Barometer:       wrapScaled1000(w.Barometer),
		InsideTemp:      wrapTemp10(w.InTemp),
		InsideHumidity:  wrapPercent(w.InHumidity),
		OutsideTemp:     wrapTemp10(w.OutTemp),
		WindSpeed:       wrapMph(w.WindSpeed),
		WindDir:         wrapWindDir(w.WindDir),
		WindAvg2Min:     wrapScaled10u(w.WindAvg2Min),
		WindAvg10Min:    wrapScaled10u(w.WindAvg10Min),
		WindGust10Min:   wrapScaled10u(w.WindGust10Min),
		WindGustDir:     wrapWindDir(w.WindGustDir10Min),
		DewPoint:        wrapTemp10(w.DewPoint),
		OutsideHumidity: wrapPercent(w.OutHumidity),
		HeatIndex:       wrapTemp10(w.HeatIndex),
		WindChill:       wrapTemp10(w.WindChill),
		THSW:            wrapTemp10(w.THSW),
		RainRate:        wrapScaled100(w.RainRate),
		UV:              wrapUVIndex(w.UV),
		Solar:           wrapSolar(w.Solar),
		Rain15Min:       wrapScaled100(w.Rain15Min),
		RainHourly:      wrapScaled100(w.RainHourly),
		RainDaily:       wrapScaled100(w.RainDaily),
		Rain24Hour:      wrapScaled100(w.Rain24Hour),
		StormRain:       wrapScaled100(w.StormRain),
		StormStart:      wrapU16(w.StormStart),
	}
	return r, nil
}

func wrapScaled10u(v uint16) measurement.Measurement[float64] {
	if vv, ok := bigValid(v); ok {
		return measurement.Valid(float64(vv) / 10.0)
	}
	return measurement.Invalid[float64]()
}

func encodeLoop2Wire(w loop2Wire) []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, &w) //nolint:errcheck
	body := buf.Bytes()
	framed := append(body, '\n', '\r')
	return crc16.Append(framed)
}
