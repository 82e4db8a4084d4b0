package current

import (
	"strconv"
	"time"

	"github.com/vantagewx/vws/internal/command"
)

// CommandHandler answers "current" and "replay" command-server requests
// directly from in-memory/on-disk current-weather state. Neither needs
// the serial port: Merger is safe for concurrent reads under its own
// mutex, and the ring files are only ever appended to by the console
// worker loop, so a concurrent read-only Replay is always consistent
// with some past state of the files.
type CommandHandler struct {
	merger  *Merger
	dataDir string
}

// NewCommandHandler returns a CommandHandler serving the given live
// merger and the ring files rooted at dataDir.
func NewCommandHandler(merger *Merger, dataDir string) *CommandHandler {
	return &CommandHandler{merger: merger, dataDir: dataDir}
}

// Offer implements command.Handler.
func (h *CommandHandler) Offer(cmd command.Command, respond func(command.Response)) bool {
	switch cmd.Name {
	case "current":
		respond(command.Success(cmd.Name, h.merger.Snapshot()))
		return true

	case "replay":
		hours := 1
		if v, ok := cmd.Arg("hours"); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				respond(command.Failuref(cmd.Name, "invalid hours argument %q", v))
				return true
			}
			hours = n
		}
		snapshots, err := Replay(h.dataDir, hours, time.Now())
		if err != nil {
			respond(command.Failuref(cmd.Name, "%v", err))
			return true
		}
		respond(command.Success(cmd.Name, snapshots))
		return true

	default:
		return false
	}
}
