package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/vantagewx/vws/internal/bitfield"
	"github.com/vantagewx/vws/internal/packet"
	"github.com/vantagewx/vws/internal/suncalc"
	"github.com/vantagewx/vws/internal/transport"
)

// liveIteration streams one LPS batch, merging every LOOP/LOOP2 pair
// into the current-weather pipeline and appending each raw packet to
// the ring archive. It short-circuits early (spec.md §4.5 step 6) when
// the LOOP packet's NextRecord pointer changes, a command is already
// queued, or ctx is cancelled; in the first case it then pulls the new
// archive record via DMPAFT (step 8).
func (l *Loop) liveIteration(ctx context.Context) error {
	baseline, haveBaseline := l.lastNextRecord, l.haveNextRecord
	newRecordReady := false

	shouldContinue := func() bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		return len(l.pending) == 0 && !newRecordReady
	}

	handler := func(p transport.LivePacket) (stop bool) {
		at := time.Now().In(l.cfg.Location)

		switch p.Kind {
		case "LOOP":
			lr, err := packet.DecodeLoop(p.Raw)
			if err != nil {
				l.log.Warnw("failed to decode LOOP packet", "error", err)
				break
			}
			l.merger.ApplyLoop(lr, at)
			if err := l.ring.Append("LOOP", p.Raw, at); err != nil {
				l.log.Warnw("failed to append LOOP to ring", "error", err)
			}
			l.checkSunTimes(lr, at)
			if v, ok := lr.ConsoleBatteryVoltage.Get(); ok {
				l.lastConsoleVoltage = v
			}
			l.lastTxBatteryStatus = lr.TxBatteryStatus
			if !haveBaseline {
				baseline = lr.NextRecord
				haveBaseline = true
			} else if lr.NextRecord != baseline {
				newRecordReady = true
			}

		case "LOOP2":
			l2r, err := packet.DecodeLoop2(p.Raw)
			if err != nil {
				l.log.Warnw("failed to decode LOOP2 packet", "error", err)
				break
			}
			snapshot := l.merger.ApplyLoop2(l2r, at)
			if err := l.ring.Append("LOOP2", p.Raw, at); err != nil {
				l.log.Warnw("failed to append LOOP2 to ring", "error", err)
			}
			if l.publisher != nil {
				if err := l.publisher.Publish(snapshot); err != nil {
					l.log.Warnw("failed to publish current-weather snapshot", "error", err)
				}
			}
		}

		return !shouldContinue()
	}

	if err := l.link.StreamLive(liveBatchSize, shouldContinue, handler); err != nil {
		return err
	}

	l.lastNextRecord = baseline
	l.haveNextRecord = haveBaseline

	if newRecordReady {
		return l.syncArchive()
	}
	return nil
}

// checkSunTimes cross-checks the console's reported sunrise/sunset,
// packed into lr as hhmm local station time, against an independently
// computed value for the station's configured position. It runs at
// most once a day and only when a position was configured, logging a
// warning rather than taking any corrective action: a mismatch usually
// means the console's latitude/longitude/time zone is misconfigured,
// which is an operator problem, not one this daemon can fix.
func (l *Loop) checkSunTimes(lr packet.LoopReading, at time.Time) {
	if l.cfg.Latitude == 0 && l.cfg.Longitude == 0 {
		return
	}
	if at.Sub(l.lastSunCheck) < sunCheckInterval {
		return
	}
	l.lastSunCheck = at

	computed, err := suncalc.Calculate(at, l.cfg.Latitude, l.cfg.Longitude)
	if err != nil {
		l.log.Warnw("sunrise/sunset cross-check skipped", "error", err)
		return
	}

	reportedSunrise := packedHHMMToday(lr.Sunrise, at, l.cfg.Location)
	reportedSunset := packedHHMMToday(lr.Sunset, at, l.cfg.Location)
	sunriseOK, sunsetOK := suncalc.CrossCheck(computed, reportedSunrise, reportedSunset, sunCheckTolerance)
	if !sunriseOK || !sunsetOK {
		l.log.Warnw("console-reported sunrise/sunset disagrees with computed values",
			"reported_sunrise", reportedSunrise, "reported_sunset", reportedSunset,
			"computed_sunrise", computed.Sunrise, "computed_sunset", computed.Sunset,
			"sunrise_ok", sunriseOK, "sunset_ok", sunsetOK)
	}
}

// packedHHMMToday interprets a packed "hhmm" value as a local time on
// the calendar date of at, in loc.
func packedHHMMToday(packed uint16, at time.Time, loc *time.Location) time.Time {
	hour, minute := bitfield.UnpackArchiveTime(packed)
	return time.Date(at.Year(), at.Month(), at.Day(), hour, minute, 0, 0, loc)
}

// syncArchive issues DMPAFT for every record newer than the archive's
// current tail and appends what comes back, per spec.md §4.5 step 8.
func (l *Loop) syncArchive() error {
	since, have := l.archiveM.NewestStart()
	if !have {
		since = time.Time{}
	}

	var records []packet.ArchiveRecord
	err := l.link.DumpAfter(since, func(raw []byte) error {
		rec, err := packet.DecodeArchive(raw, l.cfg.RainBucketInches)
		if err != nil {
			return err
		}
		records = append(records, rec)
		return nil
	})
	if err != nil {
		return fmt.Errorf("worker: archive sync: %w", err)
	}

	if _, err := l.archiveM.Append(records); err != nil {
		return fmt.Errorf("worker: archive append: %w", err)
	}
	return nil
}
