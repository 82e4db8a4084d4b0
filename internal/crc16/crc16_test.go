package crc16

import "testing"

func TestChecksumZeroLength(t *testing.T) {
	if got := Checksum(nil); got != 0 {
		t.Fatalf("Checksum(nil) = %#x, want 0", got)
	}
}

func TestAppendVerifyRoundTrip(t *testing.T) {
	cases := [][]byte{
		[]byte("LOO"),
		[]byte{0x01, 0x02, 0x03, 0x04, 0x05},
		make([]byte, 52),
		[]byte("DMPAFT"),
	}
	for _, payload := range cases {
		framed := Append(append([]byte(nil), payload...))
		if !Verify(framed) {
			t.Errorf("Verify(Append(%v)) = false, want true", payload)
		}
	}
}

func TestVerifyDetectsCorruption(t *testing.T) {
	framed := Append([]byte{0xAA, 0xBB, 0xCC})
	framed[0] ^= 0xFF
	if Verify(framed) {
		t.Fatal("Verify should fail on corrupted payload")
	}
}

func TestChecksumKnownVector(t *testing.T) {
	// "123456789" is the standard CRC check string. With the Davis
	// console's initial value of 0 (rather than CCITT-FALSE's usual
	// 0xFFFF) poly 0x1021 produces 0x31C3.
	got := Checksum([]byte("123456789"))
	if got != 0x31C3 {
		t.Fatalf("Checksum(123456789) = %#x, want 0x31c3", got)
	}
}
