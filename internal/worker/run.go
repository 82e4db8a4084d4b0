package worker

import (
	"context"
	"net"
	"time"

	"github.com/vantagewx/vws/internal/command"
	"github.com/vantagewx/vws/internal/transport"
)

// Run drives the console worker loop until ctx is cancelled, per
// spec.md §4.5's numbered steps. Every iteration: reconnect if needed,
// run due housekeeping, stream live packets (short-circuited on a new
// archive record, a pending command, or cancellation), sync the archive
// if a new record became ready, then service one waiting command.
func (l *Loop) Run(ctx context.Context) error {
	defer l.closeLink()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if l.link == nil {
			if err := l.connect(); err != nil {
				l.log.Warnw("console connect failed, retrying", "device", l.cfg.Device, "error", err)
				l.drainPending()
				if !sleepOrDone(ctx, reconnectSleep) {
					return nil
				}
				continue
			}
		}

		if err := l.housekeeping(); err != nil {
			l.log.Warnw("housekeeping failed, reconnecting", "error", err)
			l.closeLink()
			continue
		}

		if err := l.liveIteration(ctx); err != nil {
			l.log.Warnw("live iteration failed, reconnecting", "error", err)
			l.closeLink()
			continue
		}

		l.serviceOneCommand()
	}
}

// connect opens the configured link: a host:port console (e.g. a
// WeatherLinkIP data logger) if Device parses as one, a local serial
// port otherwise.
func (l *Loop) connect() error {
	var (
		link *transport.Link
		err  error
	)
	if host, port, splitErr := net.SplitHostPort(l.cfg.Device); splitErr == nil {
		link, err = transport.OpenNetwork(host, port)
	} else {
		link, err = transport.OpenSerial(l.cfg.Device, l.cfg.Baud)
	}
	if err != nil {
		return err
	}
	if err := link.Wakeup(); err != nil {
		link.Close() //nolint:errcheck
		return err
	}
	if _, err := link.GetStationType(); err != nil {
		link.Close() //nolint:errcheck
		return err
	}

	l.link = link
	l.haveNextRecord = false
	l.log.Infow("console connected", "device", l.cfg.Device, "run_id", l.runID)
	return nil
}

func (l *Loop) closeLink() {
	if l.link != nil {
		l.link.Close() //nolint:errcheck
		l.link = nil
	}
}

// drainPending responds failure to every queued command while
// disconnected, so clients still get a timely response (spec.md §4.5
// step 1).
func (l *Loop) drainPending() {
	for {
		select {
		case pc := <-l.pending:
			pc.Respond(command.Failuref(pc.Cmd.Name, "console disconnected"))
		default:
			return
		}
	}
}

func (l *Loop) serviceOneCommand() {
	select {
	case pc := <-l.pending:
		l.executeCommand(pc)
	default:
	}
}

// sleepOrDone sleeps d unless ctx is cancelled first, reporting whether
// it completed the sleep (false means the caller should stop).
func sleepOrDone(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
