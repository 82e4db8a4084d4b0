package current

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vantagewx/vws/internal/packet"
)

// rawPacketSize is the size of the raw wire packet stored in each ring
// record. spec.md §4.3 names the record layout as
// <time:i64><packet_type:i32><99 bytes of raw packet>; storing the full
// 99-byte LOOP/LOOP2 frame (rather than stripping its trailing CRC and
// LF/CR) lets replay hand the stored bytes straight to packet.DecodeLoop
// / packet.DecodeLoop2 without reconstructing anything.
const rawPacketSize = packet.LoopSize

// ringRecordSize is the on-disk size of one ring record.
const ringRecordSize = 8 + 4 + rawPacketSize

const (
	packetTypeLoop  int32 = 0
	packetTypeLoop2 int32 = 1
)

// ringStaleAge is how old a hour file's mtime must be, relative to the
// record being appended, before the file is truncated instead of
// appended to (it belongs to a previous day at the same hour).
const ringStaleAge = time.Hour

// ringMaxAge bounds how old an hour file may be at startup before it is
// deleted outright.
const ringMaxAge = 24 * time.Hour

// RingWriter appends LOOP/LOOP2 packets to the 24 hourly ring files
// under <data>/loop, per spec.md §4.3.
type RingWriter struct {
	dir string
}

// NewRingWriter returns a RingWriter rooted at dataDir/loop, creating
// the directory if necessary.
func NewRingWriter(dataDir string) (*RingWriter, error) {
	dir := filepath.Join(dataDir, "loop")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("current: ring: mkdir %s: %w", dir, err)
	}
	return &RingWriter{dir: dir}, nil
}

func (w *RingWriter) pathForHour(hour int) string {
	return filepath.Join(w.dir, fmt.Sprintf("LoopPacketArchive_%02d.dat", hour))
}

// PruneStale deletes any ring file whose mtime is more than 24 hours
// before now. Intended to run once at startup.
func (w *RingWriter) PruneStale(now time.Time) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return fmt.Errorf("current: ring: readdir %s: %w", w.dir, err)
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > ringMaxAge {
			if err := os.Remove(filepath.Join(w.dir, e.Name())); err != nil {
				return fmt.Errorf("current: ring: remove %s: %w", e.Name(), err)
			}
		}
	}
	return nil
}

// Append writes one LOOP or LOOP2 frame to the ring file for at's local
// hour. If the file already exists and its mtime is more than an hour
// before at, it is truncated first (it's a stale record from the same
// hour-of-day, one or more days ago); otherwise the record is appended.
func (w *RingWriter) Append(kind string, raw []byte, at time.Time) error {
	if len(raw) != rawPacketSize {
		return fmt.Errorf("current: ring: raw packet is %d bytes, want %d", len(raw), rawPacketSize)
	}
	var packetType int32
	switch kind {
	case "LOOP":
		packetType = packetTypeLoop
	case "LOOP2":
		packetType = packetTypeLoop2
	default:
		return fmt.Errorf("current: ring: unknown packet kind %q", kind)
	}

	path := w.pathForHour(at.Hour())
	truncate := false
	if info, err := os.Stat(path); err == nil {
		if at.Sub(info.ModTime()) > ringStaleAge {
			truncate = true
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("current: ring: stat %s: %w", path, err)
	}

	flags := os.O_WRONLY | os.O_CREATE
	if truncate {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("current: ring: open %s: %w", path, err)
	}
	defer f.Close()

	buf := make([]byte, ringRecordSize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(at.Unix()))
	binary.BigEndian.PutUint32(buf[8:12], uint32(packetType))
	copy(buf[12:], raw)

	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("current: ring: write %s: %w", path, err)
	}
	return nil
}
