// Package archive owns the flat, un-CRC'd archive record file: it is
// the single writer (append, fsync) and serves concurrent read-only
// range and summary queries under a read-write lock, per spec.md §4.2.
package archive

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/vantagewx/vws/internal/packet"
)

// recordSize is the on-disk size of one archive record: no CRC is
// stored (the archive file is un-CRC'd), only the 52-byte decoded wire
// form produced by packet.EncodeArchive.
const recordSize = packet.ArchiveSize

// Manager owns the archive file. Appends are single-writer; range and
// summary queries take a read lock and may run concurrently with each
// other (but not with an append).
type Manager struct {
	mu sync.RWMutex

	path             string
	f                *os.File
	rainBucketInches float64
	loc              *time.Location
	archivePeriod    time.Duration

	haveTail  bool
	tailStamp time.Time
}

// Open opens (creating if necessary) the archive file at path. loc is
// the time zone archive timestamps are interpreted in; rainBucketInches
// and archivePeriod are the station's configured rain-bucket size and
// archive interval, used to decode/encode records and to check
// timestamp alignment during verification.
func Open(path string, rainBucketInches float64, archivePeriod time.Duration, loc *time.Location) (*Manager, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	m := &Manager{
		path:             path,
		f:                f,
		rainBucketInches: rainBucketInches,
		loc:              loc,
		archivePeriod:    archivePeriod,
	}

	count, err := m.recordCount()
	if err != nil {
		f.Close()
		return nil, err
	}
	if count > 0 {
		last, err := m.readAt(count - 1)
		if err != nil {
			f.Close()
			return nil, err
		}
		m.tailStamp = last.Timestamp(loc)
		m.haveTail = true
	}
	return m, nil
}

// Close closes the underlying file.
func (m *Manager) Close() error {
	return m.f.Close()
}

func (m *Manager) recordCount() (int, error) {
	info, err := m.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("archive: stat: %w", err)
	}
	return int(info.Size() / recordSize), nil
}

func (m *Manager) readAt(index int) (packet.ArchiveRecord, error) {
	buf := make([]byte, recordSize)
	if _, err := m.f.ReadAt(buf, int64(index)*recordSize); err != nil {
		return packet.ArchiveRecord{}, fmt.Errorf("archive: read record %d: %w", index, err)
	}
	return packet.DecodeArchive(buf, m.rainBucketInches)
}

// Append writes a batch of records (e.g. as delivered by DMPAFT),
// filtering out any whose timestamp is not strictly greater than the
// current tail, appending the rest in order, and fsyncing once.
// Records are expected to already be in ascending timestamp order
// (transport.DumpAfter guarantees this); Append re-checks regardless
// and skips any record that is not strictly newer than the last one
// written, so the file stays in strictly ascending timestamp order.
func (m *Manager) Append(records []packet.ArchiveRecord) (appended int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.f.Seek(0, os.SEEK_END); err != nil {
		return 0, fmt.Errorf("archive: seek to end: %w", err)
	}

	tail := m.tailStamp
	haveTail := m.haveTail
	for _, r := range records {
		ts := r.Timestamp(m.loc)
		if haveTail && ts.Compare(tail) <= 0 {
			continue
		}
		buf := packet.EncodeArchive(r, m.rainBucketInches)
		if _, err := m.f.Write(buf); err != nil {
			return appended, fmt.Errorf("archive: write record: %w", err)
		}
		tail = ts
		haveTail = true
		appended++
	}
	if appended == 0 {
		return 0, nil
	}
	if err := m.f.Sync(); err != nil {
		return appended, fmt.Errorf("archive: fsync: %w", err)
	}
	m.tailStamp = tail
	m.haveTail = true
	return appended, nil
}

// NewestStart reports the tail timestamp and whether the archive holds
// any records yet.
func (m *Manager) NewestStart() (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tailStamp, m.haveTail
}

// RangeQuery returns every record whose timestamp lies in [start, end].
// It uses a binary search over record offsets (timestamps are strictly
// monotonic on disk, per spec.md §8) to bound the scan to the matching
// window rather than reading the whole file.
func (m *Manager) RangeQuery(start, end time.Time) ([]packet.ArchiveRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count, err := m.recordCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	first, err := m.lowerBound(count, start)
	if err != nil {
		return nil, err
	}

	var out []packet.ArchiveRecord
	for i := first; i < count; i++ {
		r, err := m.readAt(i)
		if err != nil {
			return nil, err
		}
		ts := r.Timestamp(m.loc)
		if ts.After(end) {
			break
		}
		if ts.Before(start) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// lowerBound returns the index of the first record whose timestamp is
// >= start, or count if none qualify.
func (m *Manager) lowerBound(count int, start time.Time) (int, error) {
	lo, hi := 0, count
	for lo < hi {
		mid := (lo + hi) / 2
		r, err := m.readAt(mid)
		if err != nil {
			return 0, err
		}
		if r.Timestamp(m.loc).Before(start) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}
