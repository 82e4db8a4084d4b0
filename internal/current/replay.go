package current

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/vantagewx/vws/internal/crc16"
	"github.com/vantagewx/vws/internal/packet"
)

// maxReplayHours is the largest look-back window Replay accepts, per
// spec.md §4.3.
const maxReplayHours = 23

type ringRecord struct {
	at  time.Time
	raw []byte // rawPacketSize bytes; kind is recovered from the packet_type field
	loop2 bool
}

// Replay reconstructs CurrentWeather snapshots from the ring files
// under dataDir/loop, covering the last `hours` hours ending at now
// (hours must be in [0, 23]). Each LOOP is paired with the next LOOP2
// that follows it; a LOOP2 with no preceding LOOP, or a trailing LOOP
// with no following LOOP2, is discarded. Because ring files are read in
// hour-of-day order and each is internally append-ordered, at most one
// pair is lost at each file boundary (the orphan half left dangling by
// the boundary), matching spec.md §4.3.
func Replay(dataDir string, hours int, now time.Time) ([]CurrentWeather, error) {
	if hours < 0 || hours > maxReplayHours {
		return nil, fmt.Errorf("current: replay: look-back %d hours out of range [0, %d]", hours, maxReplayHours)
	}
	dir := filepath.Join(dataDir, "loop")

	var out []CurrentWeather
	for i := hours; i >= 0; i-- {
		hour := (((now.Hour() - i) % 24) + 24) % 24
		path := filepath.Join(dir, fmt.Sprintf("LoopPacketArchive_%02d.dat", hour))
		recs, err := readRingFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		out = append(out, pairRecords(recs)...)
	}

	return out, nil
}

// readRingFile reads every well-formed record from a ring file, in
// on-disk (i.e. chronological append) order.
func readRingFile(path string) ([]ringRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []ringRecord
	buf := make([]byte, ringRecordSize)
	for {
		_, err := io.ReadFull(f, buf)
		if err == io.EOF {
			break
		}
		if err != nil {
			if err == io.ErrUnexpectedEOF {
				break // trailing partial record, ignore
			}
			return nil, fmt.Errorf("current: replay: read %s: %w", path, err)
		}

		sec := int64(binary.BigEndian.Uint64(buf[0:8]))
		packetType := int32(binary.BigEndian.Uint32(buf[8:12]))
		raw := make([]byte, rawPacketSize)
		copy(raw, buf[12:])
		out = append(out, ringRecord{
			at:    time.Unix(sec, 0),
			raw:   raw,
			loop2: packetType == packetTypeLoop2,
		})
	}
	return out, nil
}

// pairRecords walks records in order, pairing each LOOP with the next
// LOOP2 that follows it. A LOOP2 with no pending LOOP, or a pending
// LOOP left over when the stream ends, is dropped silently.
func pairRecords(records []ringRecord) []CurrentWeather {
	var out []CurrentWeather
	var pending *packet.LoopReading

	for _, r := range records {
		if !crc16.Verify(r.raw) {
			pending = nil
			continue
		}
		if r.loop2 {
			l2, err := packet.DecodeLoop2(r.raw)
			if err != nil {
				pending = nil
				continue
			}
			if pending == nil {
				continue
			}
			out = append(out, mergeReplay(*pending, l2, r.at))
			pending = nil
			continue
		}

		l, err := packet.DecodeLoop(r.raw)
		if err != nil {
			pending = nil
			continue
		}
		pending = &l
	}
	return out
}

// mergeReplay reconstructs a CurrentWeather the way Merger would have,
// from a historical LOOP/LOOP2 pair, without touching any live wind
// tracker.
func mergeReplay(l packet.LoopReading, l2 packet.Loop2Reading, at time.Time) CurrentWeather {
	var c CurrentWeather
	c.Timestamp = at
	applyLoopFields(&c, l)
	applyLoop2Fields(&c, l2)
	return c
}
