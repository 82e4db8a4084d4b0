package worker

import (
	"time"

	"github.com/vantagewx/vws/internal/command"
)

// executeCommand runs a serial-owning command to completion and
// delivers its response. It is only ever called from Run's goroutine,
// between LPS iterations, honoring spec.md §4.1's "no mutex on the
// port is needed" rule.
func (l *Loop) executeCommand(pc PendingCommand) {
	switch pc.Cmd.Name {
	case "gettime":
		t, err := l.link.GetConsoleTime()
		if err != nil {
			pc.Respond(command.Failuref(pc.Cmd.Name, "%v", err))
			return
		}
		pc.Respond(command.Success(pc.Cmd.Name, map[string]string{
			"time": t.Format(time.RFC3339),
		}))

	case "settime":
		updated, err := l.link.SyncClock(time.Now().In(l.cfg.Location))
		if err != nil {
			pc.Respond(command.Failuref(pc.Cmd.Name, "%v", err))
			return
		}
		l.lastClockSync = time.Now().In(l.cfg.Location)
		pc.Respond(command.Success(pc.Cmd.Name, map[string]bool{"updated": updated}))

	default:
		pc.Respond(command.Failuref(pc.Cmd.Name, "unsupported command"))
	}
}
