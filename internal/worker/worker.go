// Package worker implements the console worker loop: the single
// goroutine that owns the serial link and interleaves live-data
// polling, periodic housekeeping, and command servicing, per
// spec.md §4.5.
package worker

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/vantagewx/vws/internal/archive"
	"github.com/vantagewx/vws/internal/command"
	"github.com/vantagewx/vws/internal/current"
	vwslog "github.com/vantagewx/vws/internal/log"
	"github.com/vantagewx/vws/internal/netstatus"
	"github.com/vantagewx/vws/internal/storm"
	"github.com/vantagewx/vws/internal/transport"
	"github.com/vantagewx/vws/internal/wind"
)

const (
	clockSyncInterval = time.Hour
	stormSyncInterval = 2 * time.Hour
	verifyInterval    = 24 * time.Hour
	sunCheckInterval  = 24 * time.Hour
	sunCheckTolerance = 5 * time.Minute
	netStatusInterval = 24 * time.Hour
	liveBatchSize     = 60
	reconnectSleep    = time.Second
	pendingQueueSize  = 64
)

// serialCommands are the command names this loop, as the sole owner of
// the serial port, is willing to accept from the command server.
var serialCommands = map[string]bool{
	"gettime": true,
	"settime": true,
}

// PendingCommand is a serial-port command waiting for the worker loop
// to service it, carrying how to deliver its eventual response.
type PendingCommand struct {
	Cmd     command.Command
	Respond func(command.Response)
}

// Config bundles everything the worker loop needs to own the serial
// link and drive the current-weather/archive/storm subsystems.
type Config struct {
	Device  string
	Baud    int
	DataDir string

	// StormArchivePath overrides the default <DataDir>/storm-archive.dat
	// location if non-empty.
	StormArchivePath string

	RainBucketInches float64
	ArchivePeriod    time.Duration
	Location         *time.Location

	// Latitude and Longitude, in decimal degrees (positive north/east),
	// are the station's configured position, used once a day to
	// cross-check the console's reported sunrise/sunset against an
	// independently computed value (internal/suncalc). Leave both zero
	// to skip the cross-check entirely.
	Latitude, Longitude float64

	// StationIndex is this station's wireless transmitter ID (0-7) as
	// configured on the console, used both to decode which bit of a
	// LOOP packet's TxBatteryStatus applies to it and to compute its
	// expected per-record wind-sample count (internal/transport).
	StationIndex int
}

// Loop owns the serial link for the life of one vws process.
type Loop struct {
	cfg Config
	log *vwslog.Logger

	merger     *current.Merger
	publisher  *current.Publisher
	ring       *current.RingWriter
	archiveM   *archive.Manager
	stormA     *storm.Archive
	netstatusW *netstatus.Writer

	runID uuid.UUID

	pending chan PendingCommand

	link           *transport.Link
	haveNextRecord bool
	lastNextRecord uint16

	// lastConsoleVoltage and lastTxBatteryStatus cache the most recent
	// LOOP packet's battery telemetry so the daily network-status write
	// (housekeeping.go) always has a reading to report, even though it
	// runs on its own schedule rather than in lockstep with LOOP receipt.
	lastConsoleVoltage  float64
	lastTxBatteryStatus uint8

	lastClockSync time.Time
	lastStormSync time.Time
	lastVerify    time.Time
	lastSunCheck  time.Time
	lastNetStatus time.Time
}

// New builds a Loop and opens the on-disk state it owns (the ring
// files, the archive file, the storm archive); it does not open the
// serial port itself, which happens lazily from Run.
func New(cfg Config, logger *vwslog.Logger) (*Loop, error) {
	ring, err := current.NewRingWriter(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if err := ring.PruneStale(time.Now()); err != nil {
		return nil, err
	}

	// Multicast publishing is a best-effort side channel (spec.md §6's
	// external collaborators, not the command port or the archive it
	// owns); a host with no non-loopback IPv4 interface still runs the
	// rest of the loop, just without a publisher.
	publisher, err := current.NewPublisher()
	if err != nil {
		logger.Warnw("current-weather multicast publisher unavailable, continuing without it", "error", err)
		publisher = nil
	}

	archivePath := filepath.Join(cfg.DataDir, "archive.dat")
	archiveM, err := archive.Open(archivePath, cfg.RainBucketInches, cfg.ArchivePeriod, cfg.Location)
	if err != nil {
		if publisher != nil {
			publisher.Close() //nolint:errcheck
		}
		return nil, err
	}

	stormPath := cfg.StormArchivePath
	if stormPath == "" {
		stormPath = filepath.Join(cfg.DataDir, "storm-archive.dat")
	}

	return &Loop{
		cfg:        cfg,
		log:        logger,
		merger:     current.NewMerger(wind.NewTracker()),
		publisher:  publisher,
		ring:       ring,
		archiveM:   archiveM,
		stormA:     storm.NewArchive(stormPath),
		netstatusW: netstatus.NewWriter(cfg.DataDir),
		runID:      uuid.New(),
		pending:    make(chan PendingCommand, pendingQueueSize),
	}, nil
}

// RunID identifies this process instance, stamped into the network
// status file alongside publish activity.
func (l *Loop) RunID() uuid.UUID {
	return l.runID
}

// Merger exposes the live current-weather state, for wiring into
// current.CommandHandler.
func (l *Loop) Merger() *current.Merger {
	return l.merger
}

// ArchiveManager exposes the archive file, for wiring into
// archive.CommandHandler.
func (l *Loop) ArchiveManager() *archive.Manager {
	return l.archiveM
}

// Close releases every resource New opened.
func (l *Loop) Close() error {
	l.closeLink()
	if err := l.archiveM.Close(); err != nil {
		return err
	}
	if l.publisher == nil {
		return nil
	}
	return l.publisher.Close()
}

// Offer implements command.Handler for the serial-owning commands this
// loop services itself (gettime, settime); every other command is
// declined so the dispatcher can try the next registered handler.
func (l *Loop) Offer(cmd command.Command, respond func(command.Response)) bool {
	if !serialCommands[cmd.Name] {
		return false
	}
	select {
	case l.pending <- PendingCommand{Cmd: cmd, Respond: respond}:
	default:
		respond(command.Failuref(cmd.Name, "command queue full, try again"))
	}
	return true
}
