package packet

import (
	"testing"

	"github.com/vantagewx/vws/internal/crc16"
)

func sampleLoop2Wire() loop2Wire {
	return loop2Wire{
		Loop:             [3]byte{'L', 'O', 'O'},
		BarTrend:         -20,
		PacketType:       PacketTypeLoop2,
		Barometer:        29850,
		InTemp:           705,
		InHumidity:       40,
		OutTemp:          621,
		WindSpeed:        12,
		WindDir:          90,
		WindAvg2Min:      115,
		WindAvg10Min:     98,
		WindGust10Min:    220,
		WindGustDir10Min: 100,
		DewPoint:         480,
		OutHumidity:      55,
		HeatIndex:        630,
		WindChill:        600,
		THSW:             sentinelBigInt16Empty,
		RainRate:         0,
		UV:               0,
		Solar:            sentinelBigInvalid,
		Rain15Min:        0,
		RainHourly:       0,
		RainDaily:        25,
		Rain24Hour:       30,
		StormRain:        0,
		StormStart:       sentinelBigInvalid,
	}
}

func TestDecodeLoop2RoundTrip(t *testing.T) {
	w := sampleLoop2Wire()
	buf := encodeLoop2Wire(w)
	if len(buf) != Loop2Size {
		t.Fatalf("encoded LOOP2 length = %d, want %d", len(buf), Loop2Size)
	}
	if !crc16.Verify(buf) {
		t.Fatal("encoded LOOP2 fails CRC self-check")
	}

	r, err := DecodeLoop2(buf)
	if err != nil {
		t.Fatalf("DecodeLoop2: %v", err)
	}
	if got, ok := r.Barometer.Get(); !ok || got != 29.850 {
		t.Errorf("Barometer = %v,%v want 29.850", got, ok)
	}
	if got, ok := r.WindAvg2Min.Get(); !ok || got != 11.5 {
		t.Errorf("WindAvg2Min = %v,%v want 11.5", got, ok)
	}
	if got, ok := r.WindAvg10Min.Get(); !ok || got != 9.8 {
		t.Errorf("WindAvg10Min = %v,%v want 9.8", got, ok)
	}
	if r.THSW.IsValid() {
		t.Error("THSW should be invalid (sentinel)")
	}
	if r.Solar.IsValid() {
		t.Error("Solar should be invalid (sentinel)")
	}
	if got, ok := r.RainDaily.Get(); !ok || got != 0.25 {
		t.Errorf("RainDaily = %v,%v want 0.25", got, ok)
	}
}

func TestDecodeLoop2RejectsWrongPacketType(t *testing.T) {
	w := sampleLoop2Wire()
	w.PacketType = 0
	buf := encodeLoop2Wire(w)
	if _, err := DecodeLoop2(buf); err == nil {
		t.Fatal("expected error for non-LOOP2 packet type")
	}
}

func TestDecodeLoop2RejectsWrongLength(t *testing.T) {
	if _, err := DecodeLoop2(make([]byte, 10)); err == nil {
		t.Fatal("expected error for wrong-length buffer")
	}
}
