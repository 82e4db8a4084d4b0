package archive

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/vantagewx/vws/internal/measurement"
	"github.com/vantagewx/vws/internal/packet"
)

const testRainBucket = 0.01

func record(year, month, day, hour, minute int, outTemp float64, rain float64) packet.ArchiveRecord {
	return packet.ArchiveRecord{
		Year: year, Month: month, Day: day, Hour: hour, Minute: minute,
		OutTempAvg:        measurement.Valid(outTemp),
		OutTempHigh:       measurement.Valid(outTemp + 1),
		OutTempLow:        measurement.Valid(outTemp - 1),
		Rainfall:          rain,
		HighRainRate:      rain * 4,
		Barometer:         measurement.Valid(29.92),
		OutHumidity:       measurement.Valid(55.0),
		WindSpeedAvg:      measurement.Valid(5.0),
		WindDirPrevailing: measurement.Valid(0),
		NumWindSamples:    10,
		Solar:             measurement.Valid(100.0),
		ET:                0.01,
	}
}

func openTestManager(t *testing.T) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.dat")
	m, err := Open(path, testRainBucket, 5*time.Minute, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

func TestAppendFiltersAtOrBeforeTail(t *testing.T) {
	m := openTestManager(t)

	n, err := m.Append([]packet.ArchiveRecord{
		record(2024, 1, 1, 0, 0, 50, 0),
		record(2024, 1, 1, 0, 5, 51, 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("first Append() = %d records, want 2", n)
	}

	// A second batch with one stale record (<= tail) and two new ones:
	// only the new ones should be written.
	n, err = m.Append([]packet.ArchiveRecord{
		record(2024, 1, 1, 0, 5, 51, 0), // stale, == tail
		record(2024, 1, 1, 0, 10, 52, 0.1),
		record(2024, 1, 1, 0, 15, 53, 0),
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("second Append() = %d records, want 2", n)
	}

	tail, ok := m.NewestStart()
	if !ok {
		t.Fatal("NewestStart() ok = false")
	}
	want := time.Date(2024, 1, 1, 0, 15, 0, 0, time.UTC)
	if !tail.Equal(want) {
		t.Errorf("NewestStart() = %v, want %v", tail, want)
	}
}

func TestRangeQueryBoundsByTimestamp(t *testing.T) {
	m := openTestManager(t)
	_, err := m.Append([]packet.ArchiveRecord{
		record(2024, 1, 1, 0, 0, 50, 0),
		record(2024, 1, 1, 0, 5, 51, 0),
		record(2024, 1, 1, 0, 10, 52, 0),
		record(2024, 1, 1, 0, 15, 53, 0),
	})
	if err != nil {
		t.Fatal(err)
	}

	got, err := m.RangeQuery(
		time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC),
		time.Date(2024, 1, 1, 0, 10, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("RangeQuery() returned %d records, want 2", len(got))
	}
	if got[0].Minute != 5 || got[1].Minute != 10 {
		t.Errorf("RangeQuery() minutes = [%d %d], want [5 10]", got[0].Minute, got[1].Minute)
	}
}

func TestSummaryQueryEmitsEmptyBuckets(t *testing.T) {
	m := openTestManager(t)
	_, err := m.Append([]packet.ArchiveRecord{
		record(2024, 1, 1, 0, 0, 40, 0.1),
		record(2024, 1, 1, 0, 5, 60, 0.2),
	})
	if err != nil {
		t.Fatal(err)
	}

	buckets, err := m.SummaryQuery(
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		BucketDay,
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(buckets) != 2 {
		t.Fatalf("SummaryQuery() returned %d buckets, want 2", len(buckets))
	}
	if buckets[0].Empty {
		t.Error("first bucket should have data")
	}
	if buckets[0].AvgOutTemp != 50 {
		t.Errorf("AvgOutTemp = %v, want 50", buckets[0].AvgOutTemp)
	}
	if buckets[0].MinOutTemp != 40 || buckets[0].MaxOutTemp != 60 {
		t.Errorf("Min/MaxOutTemp = %v/%v, want 40/60", buckets[0].MinOutTemp, buckets[0].MaxOutTemp)
	}
	want := 0.1 + 0.2
	if buckets[0].TotalRainfall < want-1e-9 || buckets[0].TotalRainfall > want+1e-9 {
		t.Errorf("TotalRainfall = %v, want %v", buckets[0].TotalRainfall, want)
	}
	if !buckets[1].Empty {
		t.Error("second bucket should be empty")
	}
}

func TestVerifyReportsNoAnomaliesForWellFormedArchive(t *testing.T) {
	m := openTestManager(t)
	_, err := m.Append([]packet.ArchiveRecord{
		record(2024, 1, 1, 0, 0, 50, 0),
		record(2024, 1, 1, 0, 5, 51, 0),
	})
	if err != nil {
		t.Fatal(err)
	}

	result, err := m.Verify()
	if err != nil {
		t.Fatal(err)
	}
	if result.RecordsChecked != 2 {
		t.Fatalf("RecordsChecked = %d, want 2", result.RecordsChecked)
	}
	if len(result.Anomalies) != 0 {
		t.Errorf("expected no anomalies for well-formed archive, got %v", result.Anomalies)
	}
}
