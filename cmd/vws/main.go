// Command vws is the Davis Vantage Pro2/Vue gateway daemon: it owns the
// serial (or network) link to one console, serves the VANTAGE-framed
// TCP command protocol, and publishes current-weather snapshots over
// UDP multicast, per spec.md §1-§6.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/vantagewx/vws/internal/archive"
	"github.com/vantagewx/vws/internal/command"
	"github.com/vantagewx/vws/internal/current"
	vwslog "github.com/vantagewx/vws/internal/log"
	"github.com/vantagewx/vws/internal/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	baud := flag.Int("baud", 19200, "serial baud rate (ignored for network consoles)")
	addr := flag.String("addr", fmt.Sprintf(":%d", command.DefaultPort), "listen address for the command server")
	rainBucket := flag.Float64("rain-bucket-inches", 0.01, "station's configured rain collector bucket size, in inches")
	archivePeriod := flag.Duration("archive-period", 5*time.Minute, "station's configured archive interval")
	tz := flag.String("tz", "Local", "time zone the station's clock and archive are interpreted in")
	lat := flag.Float64("lat", 0, "station latitude in decimal degrees, for the daily sunrise/sunset cross-check (0 to skip)")
	lon := flag.Float64("lon", 0, "station longitude in decimal degrees, for the daily sunrise/sunset cross-check (0 to skip)")
	stationIndex := flag.Int("station-index", 0, "this station's wireless transmitter ID (0-7) as configured on the console")
	debug := flag.Bool("debug", false, "turn on debug-level logging")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: vws [flags] <serial-port-device> <data-directory> [<log-file-prefix>]")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 2 {
		flag.Usage()
		return 1
	}
	device := flag.Arg(0)
	dataDir := flag.Arg(1)
	logPrefix := flag.Arg(2)

	logger, err := vwslog.Init(*debug, logPrefix)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	defer logger.Sync() //nolint:errcheck

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		logger.Errorw("invalid time zone", "tz", *tz, "error", err)
		return 1
	}

	loop, err := worker.New(worker.Config{
		Device:           device,
		Baud:             *baud,
		DataDir:          dataDir,
		RainBucketInches: *rainBucket,
		ArchivePeriod:    *archivePeriod,
		Location:         loc,
		Latitude:         *lat,
		Longitude:        *lon,
		StationIndex:     *stationIndex,
	}, logger)
	if err != nil {
		logger.Errorw("failed to initialize worker", "error", err)
		return 1
	}
	defer loop.Close() //nolint:errcheck

	dispatcher := command.NewDispatcher()
	dispatcher.Register(loop)
	dispatcher.Register(current.NewCommandHandler(loop.Merger(), dataDir))
	dispatcher.Register(archive.NewCommandHandler(loop.ArchiveManager()))

	server := command.NewServer(*addr, dispatcher, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	errc := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
			errc <- fmt.Errorf("console worker loop: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Run(); err != nil {
			errc <- fmt.Errorf("command server: %w", err)
		}
	}()

	logger.Infow("vws started", "device", device, "addr", *addr, "run_id", loop.RunID())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Infow("shutdown signal received", "signal", sig.String())
	case err := <-errc:
		logger.Errorw("subsystem failed, shutting down", "error", err)
	case <-ctx.Done():
	}

	cancel()
	shutdownServer(server, logger)

	logger.Info("waiting for subsystems to stop...")
	wg.Wait()
	logger.Info("shutdown complete")
	return 0
}

func shutdownServer(server *command.Server, logger *vwslog.Logger) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("command server shutdown error", "error", err)
	}
}
