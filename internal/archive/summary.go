package archive

import (
	"time"

	"github.com/vantagewx/vws/internal/packet"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// BucketSize is the granularity a SummaryQuery buckets records into.
type BucketSize int

const (
	BucketDay BucketSize = iota
	BucketWeek
	BucketMonth
	BucketYear
)

// BucketSummary aggregates every record falling in one bucket. Empty
// is true for a bucket with no records in range; its other fields are
// then zero values and must be treated as a null marker rather than a
// real zero, per spec.md §4.2 ("empty buckets... are not suppressed").
type BucketSummary struct {
	Start time.Time
	Empty bool

	AvgOutTemp, MinOutTemp, MaxOutTemp float64
	TotalRainfall, MaxRainRate         float64
	AvgHumidity, MinHumidity, MaxHumidity float64
	AvgPressure, MinPressure, MaxPressure float64
	TotalWindRunMiles                     float64
	// DominantWindDir is a histogram index into wind.Slices(), the same
	// 16-slice indexing the live current-weather tracker uses.
	DominantWindDir                       int
	HasDominantWindDir                    bool
	AvgSolar                              float64
	TotalET                               float64
}

// SummaryQuery buckets every record in [start, end] by bucket and
// computes the aggregates spec.md §4.2 names. Buckets with no records
// are still emitted, marked Empty, so callers can distinguish "no data"
// from "zero value".
func (m *Manager) SummaryQuery(start, end time.Time, bucket BucketSize) ([]BucketSummary, error) {
	records, err := m.RangeQuery(start, end)
	if err != nil {
		return nil, err
	}

	buckets := bucketStarts(start, end, bucket)
	byBucket := make(map[time.Time][]packet.ArchiveRecord, len(buckets))
	for _, r := range records {
		ts := r.Timestamp(m.loc)
		b := bucketStart(ts, bucket)
		byBucket[b] = append(byBucket[b], r)
	}

	out := make([]BucketSummary, 0, len(buckets))
	for _, b := range buckets {
		recs := byBucket[b]
		if len(recs) == 0 {
			out = append(out, BucketSummary{Start: b, Empty: true})
			continue
		}
		out = append(out, m.summarizeBucket(b, recs))
	}
	return out, nil
}

func (m *Manager) summarizeBucket(start time.Time, recs []packet.ArchiveRecord) BucketSummary {
	var outTemps, humidities, pressures, solars []float64
	var totalRain, maxRainRate, totalET, windRun float64
	histogram := make([]int, 16)
	haveHistogram := false

	periodHours := m.archivePeriod.Hours()

	for _, r := range recs {
		if v, ok := r.OutTempAvg.Get(); ok {
			outTemps = append(outTemps, v)
		}
		if v, ok := r.OutHumidity.Get(); ok {
			humidities = append(humidities, v)
		}
		if v, ok := r.Barometer.Get(); ok {
			pressures = append(pressures, v)
		}
		if v, ok := r.Solar.Get(); ok {
			solars = append(solars, v)
		}
		totalRain += r.Rainfall
		if r.HighRainRate > maxRainRate {
			maxRainRate = r.HighRainRate
		}
		totalET += r.ET
		if v, ok := r.WindSpeedAvg.Get(); ok {
			windRun += v * periodHours
		}
		if idx, ok := r.WindDirPrevailing.Get(); ok && idx >= 0 && idx < 16 {
			histogram[idx] += r.NumWindSamples
			haveHistogram = true
		}
	}

	s := BucketSummary{
		Start:              start,
		TotalRainfall:      totalRain,
		MaxRainRate:        maxRainRate,
		TotalWindRunMiles:  windRun,
		TotalET:            totalET,
	}
	if len(outTemps) > 0 {
		s.AvgOutTemp = stat.Mean(outTemps, nil)
		s.MinOutTemp = floats.Min(outTemps)
		s.MaxOutTemp = floats.Max(outTemps)
	}
	if len(humidities) > 0 {
		s.AvgHumidity = stat.Mean(humidities, nil)
		s.MinHumidity = floats.Min(humidities)
		s.MaxHumidity = floats.Max(humidities)
	}
	if len(pressures) > 0 {
		s.AvgPressure = stat.Mean(pressures, nil)
		s.MinPressure = floats.Min(pressures)
		s.MaxPressure = floats.Max(pressures)
	}
	if len(solars) > 0 {
		s.AvgSolar = stat.Mean(solars, nil)
	}
	if haveHistogram {
		best, bestCount := 0, -1
		for i, c := range histogram {
			if c > bestCount {
				best, bestCount = i, c
			}
		}
		s.DominantWindDir = best
		s.HasDominantWindDir = true
	}
	return s
}

// bucketStart truncates ts to the start of its bucket. Week buckets
// start on Monday, as ISO 8601 weeks do.
func bucketStart(ts time.Time, bucket BucketSize) time.Time {
	switch bucket {
	case BucketDay:
		return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
	case BucketWeek:
		d := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
		offset := (int(d.Weekday()) + 6) % 7 // days since Monday
		return d.AddDate(0, 0, -offset)
	case BucketMonth:
		return time.Date(ts.Year(), ts.Month(), 1, 0, 0, 0, 0, ts.Location())
	case BucketYear:
		return time.Date(ts.Year(), time.January, 1, 0, 0, 0, 0, ts.Location())
	default:
		return ts
	}
}

// bucketStarts enumerates every bucket start in [start, end], including
// empty ones.
func bucketStarts(start, end time.Time, bucket BucketSize) []time.Time {
	var out []time.Time
	cur := bucketStart(start, bucket)
	for !cur.After(end) {
		out = append(out, cur)
		cur = nextBucket(cur, bucket)
	}
	return out
}

func nextBucket(b time.Time, bucket BucketSize) time.Time {
	switch bucket {
	case BucketDay:
		return b.AddDate(0, 0, 1)
	case BucketWeek:
		return b.AddDate(0, 0, 7)
	case BucketMonth:
		return b.AddDate(0, 1, 0)
	case BucketYear:
		return b.AddDate(1, 0, 0)
	default:
		return b.AddDate(0, 0, 1)
	}
}
