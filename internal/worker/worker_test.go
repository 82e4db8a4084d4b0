package worker

import (
	"bytes"
	"encoding/json"
	"net"
	"os"
	"testing"
	"time"

	"github.com/vantagewx/vws/internal/bitfield"
	"github.com/vantagewx/vws/internal/command"
	"github.com/vantagewx/vws/internal/crc16"
	vwslog "github.com/vantagewx/vws/internal/log"
	"github.com/vantagewx/vws/internal/netstatus"
	"github.com/vantagewx/vws/internal/packet"
	"github.com/vantagewx/vws/internal/transport"
)

func newTestLoop(t *testing.T) *Loop {
	t.Helper()
	dir := t.TempDir()
	cfg := Config{
		Device:           "fake",
		Baud:             19200,
		DataDir:          dir,
		RainBucketInches: 0.01,
		ArchivePeriod:    5 * time.Minute,
		Location:         time.UTC,
	}
	l, err := New(cfg, vwslog.Discard())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestOfferAcceptsRecognizedCommand(t *testing.T) {
	l := newTestLoop(t)

	accepted := l.Offer(command.Command{Name: "gettime"}, func(command.Response) {})
	if !accepted {
		t.Fatal("expected gettime to be accepted")
	}
	select {
	case pc := <-l.pending:
		if pc.Cmd.Name != "gettime" {
			t.Errorf("queued command name = %q, want gettime", pc.Cmd.Name)
		}
	default:
		t.Fatal("expected gettime to be queued")
	}
}

func TestOfferDeclinesUnrecognizedCommand(t *testing.T) {
	l := newTestLoop(t)

	accepted := l.Offer(command.Command{Name: "current"}, func(command.Response) {})
	if accepted {
		t.Error("expected worker to decline a command it doesn't own")
	}
}

func TestOfferRespondsFailureWhenQueueFull(t *testing.T) {
	l := newTestLoop(t)

	for i := 0; i < pendingQueueSize; i++ {
		if !l.Offer(command.Command{Name: "gettime"}, func(command.Response) {}) {
			t.Fatalf("command %d unexpectedly declined", i)
		}
	}

	var got command.Response
	accepted := l.Offer(command.Command{Name: "gettime"}, func(r command.Response) { got = r })
	if !accepted {
		t.Fatal("expected the overflow command to still be accepted (with an immediate failure)")
	}
	if got.Result != command.ResultFailure {
		t.Errorf("Result = %q, want %q", got.Result, command.ResultFailure)
	}
}

func TestDrainPendingRespondsFailureToEveryQueuedCommand(t *testing.T) {
	l := newTestLoop(t)

	var responses []command.Response
	for i := 0; i < 3; i++ {
		l.Offer(command.Command{Name: "gettime"}, func(r command.Response) {
			responses = append(responses, r)
		})
	}

	l.drainPending()

	if len(responses) != 3 {
		t.Fatalf("got %d responses, want 3", len(responses))
	}
	for _, r := range responses {
		if r.Result != command.ResultFailure {
			t.Errorf("Result = %q, want %q", r.Result, command.ResultFailure)
		}
	}
}

func TestExecuteCommandGetTime(t *testing.T) {
	l := newTestLoop(t)

	client, console := net.Pipe()
	defer console.Close()
	l.link = transport.NewLink(client, "fake")

	go func() {
		buf := make([]byte, len("GETTIME\n"))
		console.Read(buf) //nolint:errcheck
		console.Write([]byte{0x06})

		payload := []byte{30, 15, 14, 1, 6, 124} // sec,min,hour,day,month,year-1900
		framed := crc16.Append(payload)
		console.Write(framed) //nolint:errcheck
	}()

	var got command.Response
	done := make(chan struct{})
	go func() {
		l.executeCommand(PendingCommand{
			Cmd:     command.Command{Name: "gettime"},
			Respond: func(r command.Response) { got = r },
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("executeCommand did not return in time")
	}

	if got.Result != command.ResultSuccess {
		t.Fatalf("Result = %q, want %q (data: %#v)", got.Result, command.ResultSuccess, got.Data)
	}
}

func TestWriteNetworkStatusUsesPreviousDayArchiveAndCachedTelemetry(t *testing.T) {
	l := newTestLoop(t)
	l.cfg.StationIndex = 1
	l.lastConsoleVoltage = 4.62
	l.lastTxBatteryStatus = 1 << 1 // station 1's battery is low

	now := time.Date(2026, 7, 29, 3, 0, 0, 0, time.UTC)
	yesterday := now.AddDate(0, 0, -1)
	record := packet.ArchiveRecord{
		Year: yesterday.Year(), Month: int(yesterday.Month()), Day: yesterday.Day(),
		Hour: 12, Minute: 0,
		NumWindSamples: 100,
	}
	if _, err := l.archiveM.Append([]packet.ArchiveRecord{record}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := l.writeNetworkStatus(now); err != nil {
		t.Fatalf("writeNetworkStatus: %v", err)
	}

	data, err := os.ReadFile(l.netstatusW.Path)
	if err != nil {
		t.Fatalf("read network-status.dat: %v", err)
	}
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1: %s", len(lines), data)
	}

	var status netstatus.Status
	if err := json.Unmarshal(lines[0], &status); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if status.Date != yesterday.Format("2006-01-02") {
		t.Errorf("Date = %q, want %q", status.Date, yesterday.Format("2006-01-02"))
	}
	if status.ConsoleVoltage != 4.62 {
		t.Errorf("ConsoleVoltage = %v, want 4.62", status.ConsoleVoltage)
	}
	if len(status.StationsBatteryStatus) != 1 || status.StationsBatteryStatus[0].BatteryGood {
		t.Errorf("StationsBatteryStatus = %+v, want one entry with BatteryGood=false", status.StationsBatteryStatus)
	}
}

func TestCheckSunTimesSkippedWithoutConfiguredPosition(t *testing.T) {
	l := newTestLoop(t) // Latitude/Longitude left at zero

	at := time.Date(2026, 6, 21, 12, 0, 0, 0, time.UTC)
	l.checkSunTimes(packet.LoopReading{}, at)

	if !l.lastSunCheck.IsZero() {
		t.Error("expected checkSunTimes to skip (and not update lastSunCheck) when no position is configured")
	}
}

func TestCheckSunTimesRunsOncePerDayWhenPositionConfigured(t *testing.T) {
	l := newTestLoop(t)
	l.cfg.Latitude = 40.7128
	l.cfg.Longitude = -74.0060

	day := time.Date(2026, 6, 21, 12, 0, 0, 0, time.UTC)
	sunriseHHMM := bitfield.PackArchiveTime(5, 25)
	sunsetHHMM := bitfield.PackArchiveTime(20, 31)

	l.checkSunTimes(packet.LoopReading{Sunrise: sunriseHHMM, Sunset: sunsetHHMM}, day)
	if l.lastSunCheck != day {
		t.Fatalf("lastSunCheck = %v, want %v", l.lastSunCheck, day)
	}

	later := day.Add(time.Hour)
	l.checkSunTimes(packet.LoopReading{Sunrise: sunriseHHMM, Sunset: sunsetHHMM}, later)
	if l.lastSunCheck != day {
		t.Error("expected checkSunTimes to be a no-op within the same day")
	}
}
