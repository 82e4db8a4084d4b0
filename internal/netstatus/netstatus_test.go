package netstatus

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestWriterAppendsOneJSONLinePerCall(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	if got, want := w.Path, filepath.Join(dir, "network-status.dat"); got != want {
		t.Fatalf("Path = %q, want %q", got, want)
	}

	first := Status{
		Date:                   "2026-07-28",
		RunID:                  "11111111-1111-1111-1111-111111111111",
		ConsoleVoltage:         4.68,
		WindStationLinkQuality: 97.3,
		StationsBatteryStatus:  []StationStatus{{ID: "0", BatteryGood: true}},
	}
	second := Status{
		Date:                   "2026-07-29",
		RunID:                  "11111111-1111-1111-1111-111111111111",
		ConsoleVoltage:         4.65,
		WindStationLinkQuality: 88.1,
		StationsBatteryStatus:  []StationStatus{{ID: "0", BatteryGood: false}},
	}

	if err := w.Append(first); err != nil {
		t.Fatalf("Append(first): %v", err)
	}
	if err := w.Append(second); err != nil {
		t.Fatalf("Append(second): %v", err)
	}

	f, err := os.Open(w.Path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	var lines []Status
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var s Status
		if err := json.Unmarshal(scanner.Bytes(), &s); err != nil {
			t.Fatalf("unmarshal line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, s)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !reflect.DeepEqual(lines[0], first) {
		t.Errorf("line 0 = %+v, want %+v", lines[0], first)
	}
	if !reflect.DeepEqual(lines[1], second) {
		t.Errorf("line 1 = %+v, want %+v", lines[1], second)
	}
}
