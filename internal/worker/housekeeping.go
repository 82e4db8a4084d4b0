package worker

import (
	"fmt"
	"strconv"
	"time"

	"github.com/vantagewx/vws/internal/eeprom"
	"github.com/vantagewx/vws/internal/netstatus"
	"github.com/vantagewx/vws/internal/storm"
	"github.com/vantagewx/vws/internal/transport"
)

// housekeeping runs the periodic maintenance spec.md §4.5 steps 3-5
// describe: hourly clock sync, 2-hourly storm archive update, daily
// archive verification, daily network-status report. Each check is
// independent and cheap when not due, so it costs nothing to evaluate
// every loop iteration.
func (l *Loop) housekeeping() error {
	now := time.Now().In(l.cfg.Location)

	if now.Sub(l.lastClockSync) >= clockSyncInterval {
		if _, err := l.link.SyncClock(now); err != nil {
			return fmt.Errorf("worker: clock sync: %w", err)
		}
		l.lastClockSync = now
	}

	if now.Sub(l.lastStormSync) >= stormSyncInterval {
		if err := l.syncStormArchive(); err != nil {
			l.log.Warnw("storm archive sync failed", "error", err)
		}
		l.lastStormSync = now
	}

	if now.Sub(l.lastVerify) >= verifyInterval {
		result, err := l.archiveM.Verify()
		if err != nil {
			l.log.Warnw("archive verification failed", "error", err)
		} else {
			l.log.Infow("archive verification complete",
				"records_checked", result.RecordsChecked,
				"anomalies", len(result.Anomalies))
			for _, a := range result.Anomalies {
				l.log.Warnw("archive verification anomaly", "detail", a)
			}
		}
		l.lastVerify = now
	}

	if now.Sub(l.lastNetStatus) >= netStatusInterval {
		if err := l.writeNetworkStatus(now); err != nil {
			l.log.Warnw("network status write failed", "error", err)
		}
		l.lastNetStatus = now
	}

	return nil
}

// writeNetworkStatus appends one day's network-health report to
// network-status.dat: the console's last-reported battery voltage, the
// previous day's wind-station link quality (from the archive records
// that day produced), and this station's battery status decoded from
// the same LOOP telemetry, per VantageStationNetwork.cpp's daily report.
func (l *Loop) writeNetworkStatus(now time.Time) error {
	yesterday := now.AddDate(0, 0, -1)
	start := time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 0, 0, 0, 0, l.cfg.Location)
	end := start.Add(24*time.Hour - time.Second)

	records, err := l.archiveM.RangeQuery(start, end)
	if err != nil {
		return fmt.Errorf("worker: network status archive query: %w", err)
	}

	total := 0
	for _, r := range records {
		total += r.NumWindSamples
	}
	quality := transport.LinkQuality(total, len(records), int(l.cfg.ArchivePeriod.Seconds()), l.cfg.StationIndex)

	batteryGood := l.lastTxBatteryStatus&(1<<uint(l.cfg.StationIndex)) == 0

	status := netstatus.Status{
		Date:                   start.Format("2006-01-02"),
		RunID:                  l.runID.String(),
		ConsoleVoltage:         l.lastConsoleVoltage,
		WindStationLinkQuality: quality,
		StationsBatteryStatus: []netstatus.StationStatus{
			{ID: strconv.Itoa(l.cfg.StationIndex), BatteryGood: batteryGood},
		},
	}
	return l.netstatusW.Append(status)
}

// syncStormArchive reads the console's 24-entry storm ring and appends
// any newly ended storm to the on-disk storm archive, per spec.md §4.5
// step 4.
func (l *Loop) syncStormArchive() error {
	buf, err := l.link.ReadEEPROMRange(eeprom.AddrRainStormData, eeprom.StormRingSize)
	if err != nil {
		return fmt.Errorf("worker: read storm ring: %w", err)
	}
	ring, err := eeprom.DecodeStormRing(buf, l.cfg.RainBucketInches)
	if err != nil {
		return fmt.Errorf("worker: decode storm ring: %w", err)
	}

	newestStart, haveNewest, err := l.stormA.NewestStart()
	if err != nil {
		return fmt.Errorf("worker: storm archive newest start: %w", err)
	}

	newlyEnded := storm.SelectNewlyEnded(ring, newestStart, haveNewest)
	if len(newlyEnded) == 0 {
		return nil
	}
	return l.stormA.Append(newlyEnded)
}
