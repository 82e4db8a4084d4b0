package bitfield

import "testing"

func TestArchiveDateRoundTrip(t *testing.T) {
	cases := []struct{ year, month, day int }{
		{2000, 1, 1},
		{2024, 12, 31},
		{2099, 6, 15},
	}
	for _, c := range cases {
		packed := PackArchiveDate(c.year, c.month, c.day)
		y, m, d := UnpackArchiveDate(packed)
		if y != c.year || m != c.month || d != c.day {
			t.Errorf("round trip %v -> %#x -> %d-%d-%d", c, packed, y, m, d)
		}
	}
}

func TestArchiveTimeRoundTrip(t *testing.T) {
	cases := []struct{ hour, minute int }{
		{0, 0},
		{14, 5},
		{23, 59},
	}
	for _, c := range cases {
		packed := PackArchiveTime(c.hour, c.minute)
		h, m := UnpackArchiveTime(packed)
		if h != c.hour || m != c.minute {
			t.Errorf("round trip %v -> %v -> %d:%d", c, packed, h, m)
		}
	}
	if got := PackArchiveTime(14, 5); got != 1405 {
		t.Fatalf("PackArchiveTime(14,5) = %d, want 1405", got)
	}
}

func TestAlarmBits(t *testing.T) {
	var a AlarmBits
	a[0] = 0b00000101 // bits 0 and 2
	a[1] = 0b00000001 // bit 8

	if !a.IsSet(0) || !a.IsSet(2) || !a.IsSet(8) {
		t.Fatal("expected bits 0, 2, 8 set")
	}
	if a.IsSet(1) || a.IsSet(9) {
		t.Fatal("unexpected bit set")
	}
	got := a.SetBits()
	want := []int{0, 2, 8}
	if len(got) != len(want) {
		t.Fatalf("SetBits() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SetBits() = %v, want %v", got, want)
		}
	}
}

func TestForecastIcons(t *testing.T) {
	f := IconPartlyCloudy | IconRain
	names := f.Names()
	if len(names) != 2 {
		t.Fatalf("Names() = %v, want 2 entries", names)
	}
	if ForecastIcons(0).String() != "none" {
		t.Fatalf("zero icons String() = %q, want none", ForecastIcons(0).String())
	}
}
