package transport

import (
	"fmt"
	"time"

	"github.com/vantagewx/vws/internal/bitfield"
	"github.com/vantagewx/vws/internal/crc16"
	"github.com/vantagewx/vws/internal/packet"
)

const (
	pageSize        = 267
	pageSeqCount    = 512
	recordsPerPage  = 5
	pagePadBytes    = 4
	pageResendTries = 3
)

// Page is one decoded 267-byte archive-dump page: a sequence number and
// up to 5 archive records (the last page of a dump may contain fewer
// meaningful records; empty slots are all-0xFF and must be skipped by
// the caller via packet.IsEmptySlot).
type Page struct {
	Sequence int
	Records  [recordsPerPage][]byte // each packet.ArchiveSize raw bytes, still rain-bucket-unscaled
}

// readPage reads and CRC-verifies a single 267-byte archive page,
// requesting a resend (NAK) on CRC failure up to pageResendTries times.
func (l *Link) readPage() (Page, error) {
	var lastErr error
	for try := 1; try <= pageResendTries; try++ {
		buf := make([]byte, pageSize)
		if err := l.readFull(buf, defaultReadTimeout); err != nil {
			lastErr = err
			continue
		}
		if !crc16.Verify(buf) {
			lastErr = fmt.Errorf("transport: archive page CRC mismatch")
			l.write([]byte{nak}) //nolint:errcheck
			continue
		}

		p := Page{Sequence: int(buf[0])}
		for i := 0; i < recordsPerPage; i++ {
			off := 1 + i*packet.ArchiveSize
			p.Records[i] = append([]byte(nil), buf[off:off+packet.ArchiveSize]...)
		}
		if err := l.write([]byte{ack}); err != nil {
			return Page{}, err
		}
		return p, nil
	}
	return Page{}, fmt.Errorf("transport: archive page unreadable after %d tries: %w", pageResendTries, lastErr)
}

// DumpAll issues DMP: a full archive dump of 512 pages. onRecord is
// called for every non-empty record slot, in sequence order; an error
// returned from onRecord aborts the dump.
func (l *Link) DumpAll(onRecord func(raw []byte) error) error {
	if _, err := l.SendACKReplied("DMP", 0); err != nil {
		return fmt.Errorf("transport: DMP: %w", err)
	}

	expectedSeq := -1
	for page := 0; page < pageSeqCount; page++ {
		p, err := l.readPage()
		if err != nil {
			return fmt.Errorf("transport: DMP page %d: %w", page, err)
		}
		if expectedSeq >= 0 && p.Sequence != expectedSeq {
			return fmt.Errorf("transport: DMP sequence mismatch: got %d, want %d", p.Sequence, expectedSeq)
		}
		expectedSeq = (p.Sequence + 1) % pageSeqCount

		for _, rec := range p.Records {
			if packet.IsEmptySlot(rec) {
				continue
			}
			if err := onRecord(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// DumpAfter issues DMPAFT for records strictly newer than since:
// {datestamp, timestamp, CRC}, ACK, then {page count, first-record
// index, CRC}, ACK, then the paged data. newest tracks the
// running high-water mark to defend against the console's circular
// buffer wrapping into the dump window (spec.md §4.1).
func (l *Link) DumpAfter(since time.Time, onRecord func(raw []byte) error) error {
	if _, err := l.SendACKReplied("DMPAFT", 0); err != nil {
		return fmt.Errorf("transport: DMPAFT: %w", err)
	}

	dateStamp := bitfield.PackArchiveDate(since.Year(), int(since.Month()), since.Day())
	timeStamp := bitfield.PackArchiveTime(since.Hour(), since.Minute())

	req := make([]byte, 4)
	req[0] = byte(dateStamp)
	req[1] = byte(dateStamp >> 8)
	req[2] = byte(timeStamp)
	req[3] = byte(timeStamp >> 8)
	req = crc16.Append(req)

	if err := l.write(req); err != nil {
		return err
	}
	ackByte := make([]byte, 1)
	if err := l.readFull(ackByte, defaultReadTimeout); err != nil {
		return err
	}
	if ackByte[0] != ack {
		return fmt.Errorf("transport: DMPAFT request NAKed")
	}

	header := make([]byte, 6)
	if err := l.readFull(header, defaultReadTimeout); err != nil {
		return err
	}
	if !crc16.Verify(header) {
		return fmt.Errorf("transport: DMPAFT header CRC mismatch")
	}
	pageCount := int(header[0]) | int(header[1])<<8
	firstRecord := int(header[2]) | int(header[3])<<8
	if err := l.write([]byte{ack}); err != nil {
		return err
	}

	newest := since
	haveNewest := false
	expectedSeq := -1
	for page := 0; page < pageCount; page++ {
		p, err := l.readPage()
		if err != nil {
			return fmt.Errorf("transport: DMPAFT page %d: %w", page, err)
		}
		if expectedSeq >= 0 && p.Sequence != expectedSeq {
			return fmt.Errorf("transport: DMPAFT sequence mismatch: got %d, want %d", p.Sequence, expectedSeq)
		}
		expectedSeq = (p.Sequence + 1) % pageSeqCount

		start := 0
		if page == 0 {
			start = firstRecord
		}
		for i := start; i < recordsPerPage; i++ {
			rec := p.Records[i]
			if packet.IsEmptySlot(rec) {
				continue
			}
			ts, err := recordTimestamp(rec)
			if err != nil {
				return err
			}
			if ts.Compare(since) <= 0 {
				continue
			}
			if haveNewest && ts.Compare(newest) <= 0 {
				continue // defends against circular-buffer wraparound
			}
			if err := onRecord(rec); err != nil {
				return err
			}
			newest = ts
			haveNewest = true
		}
	}
	return nil
}

func recordTimestamp(raw []byte) (time.Time, error) {
	if len(raw) < 4 {
		return time.Time{}, fmt.Errorf("transport: archive record too short to timestamp")
	}
	dateStamp := uint16(raw[0]) | uint16(raw[1])<<8
	timeStamp := uint16(raw[2]) | uint16(raw[3])<<8
	year, month, day := bitfield.UnpackArchiveDate(dateStamp)
	hour, minute := bitfield.UnpackArchiveTime(timeStamp)
	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC), nil
}
