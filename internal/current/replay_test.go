package current

import (
	"testing"
	"time"
)

func TestReplayPairsLoopWithFollowingLoop2(t *testing.T) {
	dir := t.TempDir()
	w, err := NewRingWriter(dir)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Date(2024, 6, 1, 15, 40, 0, 0, time.UTC)
	base := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)
	if err := w.Append("LOOP", testLoopFrame(1), base); err != nil {
		t.Fatal(err)
	}
	if err := w.Append("LOOP2", testLoop2Frame(5), base.Add(time.Second)); err != nil {
		t.Fatal(err)
	}
	if err := w.Append("LOOP", testLoopFrame(2), base.Add(2*time.Second)); err != nil {
		t.Fatal(err)
	}
	if err := w.Append("LOOP2", testLoop2Frame(7), base.Add(3*time.Second)); err != nil {
		t.Fatal(err)
	}

	got, err := Replay(dir, 0, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("Replay() returned %d snapshots, want 2", len(got))
	}
	if v, ok := got[0].WindSpeed.Get(); !ok || v != 5 {
		t.Errorf("first snapshot WindSpeed = %v/%v, want 5/true", v, ok)
	}
	if v, ok := got[1].WindSpeed.Get(); !ok || v != 7 {
		t.Errorf("second snapshot WindSpeed = %v/%v, want 7/true", v, ok)
	}
	// DewPoint is LOOP2-only; confirms the merge pulled LOOP2 fields in too.
	if v, ok := got[0].DewPoint.Get(); !ok || v != 55.0 {
		t.Errorf("DewPoint = %v/%v, want 55.0/true", v, ok)
	}
}

func TestReplayDiscardsOrphansAtFileBoundary(t *testing.T) {
	dir := t.TempDir()
	w, err := NewRingWriter(dir)
	if err != nil {
		t.Fatal(err)
	}

	now := time.Date(2024, 6, 1, 15, 30, 0, 0, time.UTC)
	prevHour := time.Date(2024, 6, 1, 14, 59, 0, 0, time.UTC)
	// Orphan LOOP at the end of the 14:00 file, with no following LOOP2.
	if err := w.Append("LOOP", testLoopFrame(1), prevHour); err != nil {
		t.Fatal(err)
	}
	// Orphan LOOP2 at the start of the 15:00 file, with no preceding LOOP
	// (the LOOP that would have paired with it lives in the 14:00 file).
	curHourOrphan := time.Date(2024, 6, 1, 15, 0, 1, 0, time.UTC)
	if err := w.Append("LOOP2", testLoop2Frame(3), curHourOrphan); err != nil {
		t.Fatal(err)
	}
	// One genuine pair, fully inside the 15:00 file.
	pairAt := time.Date(2024, 6, 1, 15, 1, 0, 0, time.UTC)
	if err := w.Append("LOOP", testLoopFrame(2), pairAt); err != nil {
		t.Fatal(err)
	}
	if err := w.Append("LOOP2", testLoop2Frame(9), pairAt.Add(time.Second)); err != nil {
		t.Fatal(err)
	}

	got, err := Replay(dir, 1, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 {
		t.Fatalf("Replay() returned %d snapshots, want 1 (both boundary orphans discarded)", len(got))
	}
	if v, ok := got[0].WindSpeed.Get(); !ok || v != 9 {
		t.Errorf("WindSpeed = %v/%v, want 9/true", v, ok)
	}
}

func TestReplayRejectsOutOfRangeWindow(t *testing.T) {
	dir := t.TempDir()
	if _, err := Replay(dir, 24, time.Now()); err == nil {
		t.Fatal("expected error for a 24-hour look-back window (max is 23)")
	}
	if _, err := Replay(dir, -1, time.Now()); err == nil {
		t.Fatal("expected error for a negative look-back window")
	}
}
