package suncalc

import (
	"testing"
	"time"
)

func TestCalculateEquinoxDayLengthNearLatitude(t *testing.T) {
	// Near the equator on the September equinox, day and night should be
	// close to equal length, regardless of longitude.
	day := time.Date(2026, time.September, 23, 0, 0, 0, 0, time.UTC)
	times, err := Calculate(day, 0.0, 0.0)
	if err != nil {
		t.Fatal(err)
	}
	dayLength := times.Sunset.Sub(times.Sunrise)
	if dayLength < 11*time.Hour+45*time.Minute || dayLength > 12*time.Hour+15*time.Minute {
		t.Errorf("equatorial equinox day length = %v, want ~12h", dayLength)
	}
}

func TestCalculatePolarNightError(t *testing.T) {
	day := time.Date(2026, time.December, 21, 0, 0, 0, 0, time.UTC)
	if _, err := Calculate(day, 80.0, 0.0); err == nil {
		t.Fatal("expected an error for polar night at 80N on the winter solstice")
	}
}

func TestCrossCheckWithinTolerance(t *testing.T) {
	day := time.Date(2026, time.July, 29, 0, 0, 0, 0, time.UTC)
	times, err := Calculate(day, 40.0, -105.0)
	if err != nil {
		t.Fatal(err)
	}

	sunriseOK, sunsetOK := CrossCheck(times, times.Sunrise.Add(90*time.Second), times.Sunset.Add(-90*time.Second), 2*time.Minute)
	if !sunriseOK || !sunsetOK {
		t.Errorf("expected both checks to pass within tolerance, got sunrise=%v sunset=%v", sunriseOK, sunsetOK)
	}

	sunriseOK, _ = CrossCheck(times, times.Sunrise.Add(time.Hour), times.Sunset, 2*time.Minute)
	if sunriseOK {
		t.Error("expected sunrise check to fail for a 1-hour disagreement")
	}
}
