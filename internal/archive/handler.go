package archive

import (
	"fmt"
	"time"

	"github.com/vantagewx/vws/internal/command"
	"github.com/vantagewx/vws/internal/forecast"
	"github.com/vantagewx/vws/internal/packet"
)

// archiveRecordView adds the resolved forecast string to a decoded
// archive record at response-serialization time, per spec.md §1's
// "the decoder stores only the index; the lookup is done at response-
// serialization time" — packet.ArchiveRecord itself stays index-only.
type archiveRecordView struct {
	packet.ArchiveRecord
	ForecastText string `json:"forecastText"`
}

func newArchiveRecordView(r packet.ArchiveRecord) archiveRecordView {
	return archiveRecordView{ArchiveRecord: r, ForecastText: forecast.String(r.ForecastRule)}
}

// CommandHandler answers "archive_range" and "archive_summary"
// command-server requests directly against the archive file's
// read-write-locked query paths, without touching the serial port.
type CommandHandler struct {
	mgr *Manager
}

// NewCommandHandler returns a CommandHandler serving queries against mgr.
func NewCommandHandler(mgr *Manager) *CommandHandler {
	return &CommandHandler{mgr: mgr}
}

// Offer implements command.Handler.
func (h *CommandHandler) Offer(cmd command.Command, respond func(command.Response)) bool {
	switch cmd.Name {
	case "archive_range":
		start, end, err := parseRange(cmd)
		if err != nil {
			respond(command.Failuref(cmd.Name, "%v", err))
			return true
		}
		records, err := h.mgr.RangeQuery(start, end)
		if err != nil {
			respond(command.Failuref(cmd.Name, "%v", err))
			return true
		}
		views := make([]archiveRecordView, len(records))
		for i, r := range records {
			views[i] = newArchiveRecordView(r)
		}
		respond(command.Success(cmd.Name, views))
		return true

	case "archive_summary":
		start, end, err := parseRange(cmd)
		if err != nil {
			respond(command.Failuref(cmd.Name, "%v", err))
			return true
		}
		bucketArg, _ := cmd.Arg("bucket")
		bucket, err := parseBucket(bucketArg)
		if err != nil {
			respond(command.Failuref(cmd.Name, "%v", err))
			return true
		}
		summaries, err := h.mgr.SummaryQuery(start, end, bucket)
		if err != nil {
			respond(command.Failuref(cmd.Name, "%v", err))
			return true
		}
		respond(command.Success(cmd.Name, summaries))
		return true

	default:
		return false
	}
}

func parseRange(cmd command.Command) (start, end time.Time, err error) {
	startStr, ok := cmd.Arg("start")
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf(`archive: missing "start" argument`)
	}
	endStr, ok := cmd.Arg("end")
	if !ok {
		return time.Time{}, time.Time{}, fmt.Errorf(`archive: missing "end" argument`)
	}
	start, err = time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("archive: invalid start timestamp: %w", err)
	}
	end, err = time.Parse(time.RFC3339, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("archive: invalid end timestamp: %w", err)
	}
	return start, end, nil
}

func parseBucket(s string) (BucketSize, error) {
	switch s {
	case "day":
		return BucketDay, nil
	case "week":
		return BucketWeek, nil
	case "month":
		return BucketMonth, nil
	case "year":
		return BucketYear, nil
	default:
		return 0, fmt.Errorf("archive: unknown bucket size %q", s)
	}
}
