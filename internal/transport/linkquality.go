package transport

import (
	"gonum.org/v1/gonum/floats"
)

// LinkQuality computes the percentage of expected wind samples actually
// received across N archive records, per spec.md §4.1: given the
// archive period and the station's wireless index, the maximum expected
// wind-sample count per record is round(archivePeriodSeconds / ((41 +
// stationIndex) / 16)); link quality is 100 * totalSamples / (N *
// maxPerRecord), clamped to 100 and rounded to 0.1.
func LinkQuality(totalSamples, recordCount int, archivePeriodSeconds, stationIndex int) float64 {
	if recordCount <= 0 {
		return 0
	}
	maxPerRecord := maxWindSamplesPerRecord(archivePeriodSeconds, stationIndex)
	if maxPerRecord <= 0 {
		return 0
	}
	pct := 100 * float64(totalSamples) / float64(recordCount*maxPerRecord)
	if pct > 100 {
		pct = 100
	}
	return floats.Round(pct, 1)
}

// maxWindSamplesPerRecord is the expected maximum wind-sample count for
// a single archive record, derived from the console's per-station
// transmission interval (41 + stationIndex)/16 seconds.
func maxWindSamplesPerRecord(archivePeriodSeconds, stationIndex int) int {
	interval := float64(41+stationIndex) / 16.0
	return int(floats.Round(float64(archivePeriodSeconds)/interval, 0))
}
