package command

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/gnet/v2"

	vwslog "github.com/vantagewx/vws/internal/log"
)

// Server is a gnet-based TCP server implementing the VANTAGE framed
// command protocol (spec.md §4.4). gnet's single-threaded, per-connection
// buffered I/O loop plays the role the original design gave a hand-rolled
// select loop over a listen fd, client fds, and an event-notification fd:
// Peek/Discard provide the buffering, and AsyncWrite is the thread-safe
// wakeup-and-write primitive other goroutines use to deliver a response
// once a handler has finished processing a command.
type Server struct {
	gnet.BuiltinEventEngine

	addr       string
	dispatcher *Dispatcher
	log        *vwslog.Logger

	nextSeq int64

	mu    sync.Mutex
	conns map[int64]gnet.Conn
}

// NewServer returns a Server that will dispatch accepted commands to d.
func NewServer(addr string, d *Dispatcher, logger *vwslog.Logger) *Server {
	return &Server{
		addr:       addr,
		dispatcher: d,
		log:        logger,
		conns:      make(map[int64]gnet.Conn),
	}
}

// Run blocks, serving the command protocol until the engine is stopped
// (via gnet.Stop, or a fatal listener error).
func (s *Server) Run() error {
	return gnet.Run(s, "tcp://"+s.addr,
		gnet.WithMulticore(false),
		gnet.WithReusePort(false),
		gnet.WithTicker(false),
	)
}

// Shutdown stops the engine gracefully, waiting out any in-flight
// AsyncWrite callbacks up to ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return gnet.Stop(ctx, "tcp://"+s.addr)
}

// OnBoot logs that the listener is up.
func (s *Server) OnBoot(eng gnet.Engine) gnet.Action {
	s.log.Infow("command server listening", "addr", s.addr)
	return gnet.None
}

// OnOpen assigns a monotonically increasing sequence id to the new
// connection and records it, so that a response produced after the
// connection's fd has been closed and reused by an unrelated client can
// be detected and discarded rather than misdelivered.
func (s *Server) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	seq := atomic.AddInt64(&s.nextSeq, 1)
	c.SetContext(seq)

	s.mu.Lock()
	s.conns[seq] = c
	s.mu.Unlock()

	return nil, gnet.None
}

// OnClose drops the connection's sequence entry.
func (s *Server) OnClose(c gnet.Conn, err error) gnet.Action {
	if seq, ok := c.Context().(int64); ok {
		s.mu.Lock()
		delete(s.conns, seq)
		s.mu.Unlock()
	}
	return gnet.None
}

// OnTraffic reads every complete framed command currently buffered,
// parses it, and hands it to the dispatcher. A handler that accepts a
// command is responsible for eventually calling the respond callback
// (from any goroutine); a command no handler accepts gets an immediate
// "unrecognized command" failure response.
func (s *Server) OnTraffic(c gnet.Conn) gnet.Action {
	seq, _ := c.Context().(int64)
	respond := s.responder(seq)

	for {
		header, err := c.Peek(headerSize)
		if err != nil {
			return gnet.None // wait for the rest of the header
		}

		length, ok := parseHeader(header)
		if !ok {
			s.log.Warnw("malformed command header, closing connection", "seq", seq)
			return gnet.Close
		}

		total := headerSize + length
		framed, err := c.Peek(total)
		if err != nil {
			return gnet.None // wait for the rest of the body
		}
		body := append([]byte(nil), framed[headerSize:total]...)
		if _, err := c.Discard(total); err != nil {
			s.log.Warnw("failed to discard consumed command bytes", "seq", seq, "error", err)
			return gnet.Close
		}

		cmd, err := parseCommand(body)
		if err != nil {
			respond(Failuref("unknown", "malformed command: %v", err))
			continue
		}

		if !s.dispatcher.Dispatch(cmd, respond) {
			respond(Failuref(cmd.Name, "unrecognized command"))
		}
	}
}

// responder returns a callback that safely routes a Response back to the
// connection identified by seq, discarding (with a warning) if that
// connection is no longer open.
func (s *Server) responder(seq int64) func(Response) {
	return func(resp Response) {
		s.mu.Lock()
		c, ok := s.conns[seq]
		s.mu.Unlock()
		if !ok {
			s.log.Warnw("discarding response for closed connection", "seq", seq, "response", resp.Response)
			return
		}

		data, err := json.Marshal(resp)
		if err != nil {
			s.log.Errorw("failed to marshal response", "error", err)
			return
		}
		data = append(data, '\n', '\n')

		if err := c.AsyncWrite(data, nil); err != nil {
			s.log.Warnw("failed to write response", "seq", seq, "error", err)
		}
	}
}

// parseHeader validates and decodes a 15-byte "VANTAGE NNNNNN\n" header.
func parseHeader(header []byte) (length int, ok bool) {
	if len(header) != headerSize {
		return 0, false
	}
	if string(header[0:7]) != "VANTAGE" || header[7] != ' ' || header[14] != '\n' {
		return 0, false
	}
	n, err := strconv.Atoi(string(header[8:14]))
	if err != nil || n < minCommandLength {
		return 0, false
	}
	return n, true
}

// parseCommand decodes a JSON command body into a Command.
func parseCommand(body []byte) (Command, error) {
	var wire wireRequest
	if err := json.Unmarshal(body, &wire); err != nil {
		return Command{}, err
	}
	if wire.Command == "" {
		return Command{}, fmt.Errorf(`missing "command" key`)
	}

	cmd := Command{Name: wire.Command}
	for _, kv := range wire.Arguments {
		for k, v := range kv {
			cmd.Arguments = append(cmd.Arguments, Argument{Key: k, Value: v})
		}
	}
	return cmd, nil
}
