package current

import (
	"testing"
	"time"

	"github.com/vantagewx/vws/internal/measurement"
	"github.com/vantagewx/vws/internal/packet"
	"github.com/vantagewx/vws/internal/wind"
)

func TestApplyLoopMergesFieldsAndTracksDominantWind(t *testing.T) {
	m := NewMerger(wind.NewTracker())
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	snap := m.ApplyLoop(packet.LoopReading{
		OutsideTemp: measurement.Valid(72.0),
		WindSpeed:   measurement.Valid(5.0),
		WindDir:     measurement.Valid(90.0),
	}, at)

	if !snap.Timestamp.Equal(at) {
		t.Errorf("Timestamp = %v, want %v", snap.Timestamp, at)
	}
	if v, ok := snap.OutsideTemp.Get(); !ok || v != 72.0 {
		t.Errorf("OutsideTemp = %v/%v, want 72.0/true", v, ok)
	}
	if snap.DominantWindDirection != "E" {
		t.Errorf("DominantWindDirection = %q, want E", snap.DominantWindDirection)
	}
}

func TestWindSpeedDirectionTakenFromMostRecentPacket(t *testing.T) {
	m := NewMerger(wind.NewTracker())
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	m.ApplyLoop(packet.LoopReading{
		WindSpeed: measurement.Valid(4.0),
		WindDir:   measurement.Valid(10.0),
	}, t0)

	snap := m.ApplyLoop2(packet.Loop2Reading{
		WindSpeed: measurement.Valid(9.0),
		WindDir:   measurement.Valid(200.0),
	}, t0.Add(time.Second))

	if v, _ := snap.WindSpeed.Get(); v != 9.0 {
		t.Errorf("WindSpeed = %v, want 9.0 (from the more recent LOOP2)", v)
	}
	if v, _ := snap.WindDir.Get(); v != 200.0 {
		t.Errorf("WindDir = %v, want 200.0 (from the more recent LOOP2)", v)
	}

	snap = m.ApplyLoop(packet.LoopReading{
		WindSpeed: measurement.Valid(2.0),
		WindDir:   measurement.Valid(15.0),
	}, t0.Add(2*time.Second))
	if v, _ := snap.WindSpeed.Get(); v != 2.0 {
		t.Errorf("WindSpeed = %v, want 2.0 (from the more recent LOOP)", v)
	}
}

func TestApplyLoop2RetainsLoopOnlyFields(t *testing.T) {
	m := NewMerger(wind.NewTracker())
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	m.ApplyLoop(packet.LoopReading{
		DayRain:      measurement.Valid(0.5),
		ForecastRule: 12,
		Sunrise:      600,
		Sunset:       2000,
	}, t0)

	snap := m.ApplyLoop2(packet.Loop2Reading{
		DewPoint: measurement.Valid(55.0),
	}, t0.Add(time.Second))

	if v, _ := snap.DayRain.Get(); v != 0.5 {
		t.Errorf("DayRain = %v, want 0.5 (carried over from LOOP)", v)
	}
	if snap.ForecastRule != 12 {
		t.Errorf("ForecastRule = %d, want 12", snap.ForecastRule)
	}
	if snap.Sunrise != 600 || snap.Sunset != 2000 {
		t.Errorf("Sunrise/Sunset = %d/%d, want 600/2000", snap.Sunrise, snap.Sunset)
	}
	if v, _ := snap.DewPoint.Get(); v != 55.0 {
		t.Errorf("DewPoint = %v, want 55.0", v)
	}
}

func TestCalmWindNotOfferedToTracker(t *testing.T) {
	tracker := wind.NewTracker()
	m := NewMerger(tracker)
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	m.ApplyLoop(packet.LoopReading{
		WindSpeed: measurement.Valid(0.0),
		WindDir:   measurement.Invalid[float64](),
	}, at)

	if _, ok := tracker.Dominant(); ok {
		t.Error("expected no dominant direction from a calm/invalid wind sample")
	}
}
