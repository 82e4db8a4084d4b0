// Package current owns the live-packet pipeline: merging LOOP/LOOP2
// pairs into a published "current weather" snapshot, per spec.md §4.3.
package current

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/vantagewx/vws/internal/bitfield"
	"github.com/vantagewx/vws/internal/forecast"
	"github.com/vantagewx/vws/internal/measurement"
	"github.com/vantagewx/vws/internal/packet"
	"github.com/vantagewx/vws/internal/wind"
)

// CurrentWeather is the merged view of the most recent LOOP and LOOP2
// packets. Fields that exist in both wire packets (wind speed/direction)
// hold whichever packet's value arrived most recently; fields unique to
// one packet type hold that packet's last-seen value regardless of
// which packet triggered the snapshot.
type CurrentWeather struct {
	Timestamp time.Time

	Barometer       measurement.Measurement[float64]
	InsideTemp      measurement.Measurement[float64]
	InsideHumidity  measurement.Measurement[float64]
	OutsideTemp     measurement.Measurement[float64]
	OutsideHumidity measurement.Measurement[float64]

	// WindSpeed and WindDir are overwritten by whichever of LOOP/LOOP2
	// arrived most recently, per spec.md §4.3.
	WindSpeed measurement.Measurement[float64]
	WindDir   measurement.Measurement[float64]

	WindSpeed10Min measurement.Measurement[float64] // LOOP
	WindAvg2Min    measurement.Measurement[float64] // LOOP2
	WindAvg10Min   measurement.Measurement[float64] // LOOP2
	WindGust10Min  measurement.Measurement[float64] // LOOP2
	WindGustDir    measurement.Measurement[float64] // LOOP2

	DewPoint  measurement.Measurement[float64] // LOOP2
	HeatIndex measurement.Measurement[float64] // LOOP2
	WindChill measurement.Measurement[float64] // LOOP2
	THSW      measurement.Measurement[float64] // LOOP2

	RainRate   measurement.Measurement[float64]
	Rain15Min  measurement.Measurement[float64] // LOOP2
	RainHourly measurement.Measurement[float64] // LOOP2
	RainDaily  measurement.Measurement[float64] // LOOP2
	Rain24Hour measurement.Measurement[float64] // LOOP2
	DayRain    measurement.Measurement[float64] // LOOP
	MonthRain  measurement.Measurement[float64] // LOOP
	YearRain   measurement.Measurement[float64] // LOOP

	DayET   measurement.Measurement[float64] // LOOP
	MonthET measurement.Measurement[float64] // LOOP
	YearET  measurement.Measurement[float64] // LOOP

	StormRain  measurement.Measurement[float64]
	StormStart measurement.Measurement[uint16]

	UV    measurement.Measurement[float64]
	Solar measurement.Measurement[float64]

	Alarms       bitfield.AlarmBits
	ForecastIcon bitfield.ForecastIcons
	ForecastRule uint8

	Sunrise uint16 // LOOP, packed hhmm local station time
	Sunset  uint16

	NextRecord uint16 // LOOP

	// DominantWindDirection is the slice name reported by the wind
	// tracker at the time of this snapshot, if any samples are present.
	DominantWindDirection string `json:"dominantWindDirection,omitempty"`
}

// MarshalJSON resolves ForecastRule to its human-readable string via
// internal/forecast at serialization time, per spec.md §1's "the
// decoder stores only the index; the lookup is done at response-
// serialization time."
func (c CurrentWeather) MarshalJSON() ([]byte, error) {
	type alias CurrentWeather
	return json.Marshal(struct {
		alias
		ForecastText string `json:"forecastText"`
	}{
		alias:        alias(c),
		ForecastText: forecast.String(c.ForecastRule),
	})
}

// Merger accumulates LOOP/LOOP2 packets into a single CurrentWeather
// snapshot and feeds the dominant-wind-direction tracker. It is not
// safe for concurrent use from more than the console worker loop that
// owns it, except that its exported methods take a lock so that a
// command-server goroutine can safely read the latest snapshot.
type Merger struct {
	mu      sync.Mutex
	current CurrentWeather
	tracker *wind.Tracker
}

// NewMerger returns a Merger that feeds tracker with every valid wind
// sample it observes.
func NewMerger(tracker *wind.Tracker) *Merger {
	return &Merger{tracker: tracker}
}

// ApplyLoop merges a LOOP packet into the running snapshot and returns
// a copy of the result. Per spec.md §4.3, a LOOP packet on its own does
// not trigger publication; the caller should store/log it but not
// publish it.
func (m *Merger) ApplyLoop(l packet.LoopReading, at time.Time) CurrentWeather {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current.Timestamp = at
	applyLoopFields(&m.current, l)
	m.offerWindLocked(l.WindSpeed, l.WindDir, at)
	return m.snapshotLocked()
}

// applyLoopFields overwrites c's LOOP-sourced fields, including the
// shared wind speed/direction fields (overwritten by whichever of
// LOOP/LOOP2 was applied most recently).
func applyLoopFields(c *CurrentWeather, l packet.LoopReading) {
	c.Barometer = l.Barometer
	c.InsideTemp = l.InsideTemp
	c.InsideHumidity = l.InsideHumidity
	c.OutsideTemp = l.OutsideTemp
	c.OutsideHumidity = l.OutsideHumidity
	c.WindSpeed = l.WindSpeed
	c.WindDir = l.WindDir
	c.WindSpeed10Min = l.WindSpeed10Min
	c.RainRate = l.RainRate
	c.DayRain = l.DayRain
	c.MonthRain = l.MonthRain
	c.YearRain = l.YearRain
	c.DayET = l.DayET
	c.MonthET = l.MonthET
	c.YearET = l.YearET
	c.StormRain = l.StormRain
	c.StormStart = l.StormStart
	c.UV = l.UV
	c.Solar = l.Solar
	c.Alarms = l.Alarms
	c.ForecastIcon = l.ForecastIcon
	c.ForecastRule = l.ForecastRule
	c.Sunrise = l.Sunrise
	c.Sunset = l.Sunset
	c.NextRecord = l.NextRecord
}

// ApplyLoop2 merges a LOOP2 packet into the running snapshot and
// returns a copy of the result. Every LOOP2 triggers publication, per
// spec.md §4.3.
func (m *Merger) ApplyLoop2(l packet.Loop2Reading, at time.Time) CurrentWeather {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current.Timestamp = at
	applyLoop2Fields(&m.current, l)
	m.offerWindLocked(l.WindSpeed, l.WindDir, at)
	return m.snapshotLocked()
}

// applyLoop2Fields overwrites c's LOOP2-sourced fields, including the
// shared wind speed/direction fields.
func applyLoop2Fields(c *CurrentWeather, l packet.Loop2Reading) {
	c.Barometer = l.Barometer
	c.InsideTemp = l.InsideTemp
	c.InsideHumidity = l.InsideHumidity
	c.OutsideTemp = l.OutsideTemp
	c.OutsideHumidity = l.OutsideHumidity
	c.WindSpeed = l.WindSpeed
	c.WindDir = l.WindDir
	c.WindAvg2Min = l.WindAvg2Min
	c.WindAvg10Min = l.WindAvg10Min
	c.WindGust10Min = l.WindGust10Min
	c.WindGustDir = l.WindGustDir
	c.DewPoint = l.DewPoint
	c.HeatIndex = l.HeatIndex
	c.WindChill = l.WindChill
	c.THSW = l.THSW
	c.RainRate = l.RainRate
	c.Rain15Min = l.Rain15Min
	c.RainHourly = l.RainHourly
	c.RainDaily = l.RainDaily
	c.Rain24Hour = l.Rain24Hour
	c.StormRain = l.StormRain
	c.StormStart = l.StormStart
	c.UV = l.UV
	c.Solar = l.Solar
}

// offerWindLocked feeds a valid (speed, direction) pair to the wind
// tracker. A calm reading (zero or invalid speed, or invalid direction)
// is not offered, matching wind.Tracker.AddSample's contract.
func (m *Merger) offerWindLocked(speed, dir measurement.Measurement[float64], at time.Time) {
	if m.tracker == nil {
		return
	}
	s, ok := speed.Get()
	if !ok || s <= 0 {
		return
	}
	d, ok := dir.Get()
	if !ok {
		return
	}
	m.tracker.AddSample(d, at)
}

// snapshotLocked copies the running snapshot and stamps in the current
// dominant wind direction. Callers must hold m.mu.
func (m *Merger) snapshotLocked() CurrentWeather {
	c := m.current
	if m.tracker != nil {
		if slice, ok := m.tracker.Dominant(); ok {
			c.DominantWindDirection = slice.Name
		}
	}
	return c
}

// Snapshot returns a copy of the most recently merged weather, without
// applying a new packet.
func (m *Merger) Snapshot() CurrentWeather {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}
