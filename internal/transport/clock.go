package transport

import (
	"fmt"
	"time"

	"github.com/vantagewx/vws/internal/crc16"
)

// clockSyncThreshold is the minimum drift between console and local
// clock that triggers a SETTIME, per spec.md §4.1/§4.5.
const clockSyncThreshold = 60 * time.Second

// validBaudRates are the only rates the console's BAUD command accepts.
var validBaudRates = map[int]bool{
	1200: true, 2400: true, 4800: true, 9600: true, 14400: true, 19200: true,
}

// GetConsoleTime issues GETTIME and decodes the console's clock into a
// UTC-less local wall time (the console has no notion of time zone).
func (l *Link) GetConsoleTime() (time.Time, error) {
	buf, err := l.SendACKReplied("GETTIME", 6+2)
	if err != nil {
		return time.Time{}, fmt.Errorf("transport: GETTIME: %w", err)
	}
	sec, min, hour, day, month, yearOff := buf[0], buf[1], buf[2], buf[3], buf[4], buf[5]
	return time.Date(1900+int(yearOff), time.Month(month), int(day), int(hour), int(min), int(sec), 0, time.Local), nil
}

// SetConsoleTime issues SETTIME and writes the 6-byte
// {sec,min,hour,day,month,year-1900} payload plus its CRC.
func (l *Link) SetConsoleTime(t time.Time) error {
	if _, err := l.SendACKReplied("SETTIME", 0); err != nil {
		return fmt.Errorf("transport: SETTIME: %w", err)
	}
	payload := []byte{
		byte(t.Second()), byte(t.Minute()), byte(t.Hour()),
		byte(t.Day()), byte(t.Month()), byte(t.Year() - 1900),
	}
	framed := crc16.Append(payload)
	if err := l.write(framed); err != nil {
		return err
	}
	resp := make([]byte, 1)
	if err := l.readFull(resp, defaultReadTimeout); err != nil {
		return err
	}
	if resp[0] != ack {
		return fmt.Errorf("transport: SETTIME payload NAKed")
	}
	return nil
}

// SyncClock reads the console's clock and sets it to localNow if they
// disagree by at least clockSyncThreshold, skipping the update when
// localNow's hour is 1 (to avoid corrupting a DST transition), matching
// spec.md §4.1/§4.5 and the boundary behavior in §8 ("|delta| =
// threshold-1 does nothing; threshold+1 updates").
func (l *Link) SyncClock(localNow time.Time) (updated bool, err error) {
	if localNow.Hour() == 1 {
		return false, nil
	}
	consoleTime, err := l.GetConsoleTime()
	if err != nil {
		return false, err
	}
	delta := localNow.Sub(consoleTime)
	if delta < 0 {
		delta = -delta
	}
	if delta < clockSyncThreshold {
		return false, nil
	}
	if err := l.SetConsoleTime(localNow); err != nil {
		return false, err
	}
	return true, nil
}

// NewSetup issues NEWSETUP, required after any change to the console's
// "setup bits" EEPROM byte so the firmware re-derives its dependent
// state (units, cup size, rain bucket, etc.).
func (l *Link) NewSetup() error {
	_, err := l.SendACKReplied("NEWSETUP", 0)
	if err != nil {
		return fmt.Errorf("transport: NEWSETUP: %w", err)
	}
	return nil
}

// SetBaud issues BAUD to change the console's serial baud rate. Callers
// must reopen the local port at the new rate after this returns.
func (l *Link) SetBaud(rate int) error {
	if !validBaudRates[rate] {
		return fmt.Errorf("transport: invalid baud rate %d", rate)
	}
	_, err := l.SendACKReplied(fmt.Sprintf("BAUD %d", rate), 0)
	if err != nil {
		return fmt.Errorf("transport: BAUD %d: %w", rate, err)
	}
	return nil
}
