// Package suncalc independently computes sunrise and sunset times from
// station position and date, for cross-checking against the console's
// own reported sunrise/sunset fields (LOOP packet). This is enrichment
// beyond passive decoding: the console computes sunrise/sunset from its
// configured position too, so an independent calculation lets the
// worker flag a station with a badly configured position or time zone.
package suncalc

import (
	"fmt"
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

func degToRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func radToDeg(rad float64) float64 { return rad * 180.0 / math.Pi }
func fixAngle(a float64) float64   { return a - 360.0*math.Floor(a/360.0) }

// zenithOfficial is the standard sunrise/sunset zenith angle: 90° plus
// atmospheric refraction (34') plus the sun's apparent radius (16').
const zenithOfficial = 90.8333

// Times holds a station's sunrise and sunset for one calendar day.
type Times struct {
	Sunrise time.Time
	Sunset  time.Time
}

// solarCoordinates captures the mean longitude, equation of time, and
// declination at a given instant; shared by the sunrise and sunset
// solves since both derive from the same day's solar position.
type solarCoordinates struct {
	meanLongitude float64 // degrees
	eqOfTimeMin   float64
	declRad       float64 // radians
}

func solarCoordinatesAt(t time.Time) solarCoordinates {
	jd := julian.TimeToJD(t)
	T := (jd - 2451545.0) / 36525.0

	l0 := fixAngle(280.46646 + T*(36000.76983+T*0.0003032))
	m := fixAngle(357.52911 + T*(35999.05029-T*0.0001537))
	e := 0.016708634 - T*(0.000042037+T*0.0000001267)
	c := math.Sin(degToRad(m))*(1.914602-T*(0.004817+T*0.000014)) +
		math.Sin(degToRad(2*m))*(0.019993-T*0.000101) +
		math.Sin(degToRad(3*m))*0.000289
	sunLong := l0 + c
	omega := 125.04 - 1934.136*T
	lambda := sunLong - 0.00569 - 0.00478*math.Sin(degToRad(omega))
	eps0 := 23 + (26+(21.448-T*(46.815+T*(0.00059-T*0.001813)))/60)/60
	declRad := math.Asin(math.Sin(degToRad(eps0)) * math.Sin(degToRad(lambda)))

	y := math.Tan(degToRad(eps0)/2) * math.Tan(degToRad(eps0)/2)
	eqTimeMin := radToDeg(y*math.Sin(degToRad(2*l0))-
		2*e*math.Sin(degToRad(m))+
		4*e*y*math.Sin(degToRad(m))*math.Cos(degToRad(2*l0))-
		0.5*y*y*math.Sin(degToRad(4*l0))-
		1.25*e*e*math.Sin(degToRad(2*m))) * 4

	return solarCoordinates{
		meanLongitude: l0,
		eqOfTimeMin:   eqTimeMin,
		declRad:       declRad,
	}
}

// Calculate computes sunrise and sunset, in UTC, for the calendar date
// of `day` (only its Y/M/D are used) at the given latitude/longitude in
// decimal degrees (positive north/east).
func Calculate(day time.Time, latDeg, lonDeg float64) (Times, error) {
	noon := time.Date(day.Year(), day.Month(), day.Day(), 12, 0, 0, 0, time.UTC)
	sc := solarCoordinatesAt(noon)

	latRad := degToRad(latDeg)
	declRad := sc.declRad

	cosH := (math.Cos(degToRad(zenithOfficial)) - math.Sin(latRad)*math.Sin(declRad)) /
		(math.Cos(latRad) * math.Cos(declRad))
	if cosH < -1 || cosH > 1 {
		return Times{}, fmt.Errorf("suncalc: sun does not rise/set at latitude %.4f on %s (polar day or night)", latDeg, day.Format("2006-01-02"))
	}
	hourAngleDeg := radToDeg(math.Acos(cosH))

	// Solar noon in UTC minutes, corrected for longitude and the
	// equation of time (lonDeg is positive east, so a station east of
	// Greenwich reaches solar noon earlier in UTC).
	solarNoonMin := 720 - 4*lonDeg - sc.eqOfTimeMin

	sunriseMin := solarNoonMin - 4*hourAngleDeg
	sunsetMin := solarNoonMin + 4*hourAngleDeg

	return Times{
		Sunrise: minutesToTime(day, sunriseMin),
		Sunset:  minutesToTime(day, sunsetMin),
	}, nil
}

func minutesToTime(day time.Time, minutesUTC float64) time.Time {
	base := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return base.Add(time.Duration(minutesUTC*float64(time.Minute))).Round(time.Second)
}

// CrossCheck reports whether the console-reported local sunrise/sunset
// (decoded from the LOOP packet's packed hhmm fields, already converted
// to UTC by the caller) agree with the independently computed Times to
// within tolerance. A large disagreement usually means the station's
// configured position or time zone is wrong.
func CrossCheck(computed Times, reportedSunrise, reportedSunset time.Time, tolerance time.Duration) (sunriseOK, sunsetOK bool) {
	sunriseOK = absDuration(computed.Sunrise.Sub(reportedSunrise)) <= tolerance
	sunsetOK = absDuration(computed.Sunset.Sub(reportedSunset)) <= tolerance
	return sunriseOK, sunsetOK
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
