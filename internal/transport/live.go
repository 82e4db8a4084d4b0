package transport

import (
	"fmt"

	"github.com/vantagewx/vws/internal/crc16"
	"github.com/vantagewx/vws/internal/packet"
)

// LivePacket is either a LOOP or a LOOP2 raw 99-byte frame, discriminated
// by Kind.
type LivePacket struct {
	Kind string // "LOOP" or "LOOP2"
	Raw  []byte
}

// LivePacketHandler observes one live packet and reports whether the
// LPS stream should stop. Multiple handlers are invoked in registration
// order for every packet (spec.md §4.3/§8 scenario 3); if any returns
// true, the stream aborts early by sending a wakeup.
type LivePacketHandler func(LivePacket) (stop bool)

// StreamLive issues "LPS 3 n" and reads n alternating {LOOP, LOOP2}
// pairs, invoking every handler for each packet in registration order.
// It returns early, sending a wakeup to cancel the console-side stream,
// if any handler requests a stop or shouldContinue returns false before
// a pair completes.
func (l *Link) StreamLive(n int, shouldContinue func() bool, handlers ...LivePacketHandler) error {
	if _, err := l.SendACKReplied(fmt.Sprintf("LPS 3 %d", n), 0); err != nil {
		return fmt.Errorf("transport: LPS 3 %d: %w", n, err)
	}

	for i := 0; i < n; i++ {
		if shouldContinue != nil && !shouldContinue() {
			return l.Wakeup()
		}
		for _, kind := range [2]string{"LOOP", "LOOP2"} {
			buf := make([]byte, packet.LoopSize)
			if err := l.readFull(buf, defaultReadTimeout); err != nil {
				return fmt.Errorf("transport: LPS %s read: %w", kind, err)
			}
			if !crc16.Verify(buf) {
				return fmt.Errorf("transport: LPS %s CRC mismatch", kind)
			}
			lp := LivePacket{Kind: kind, Raw: buf}
			for _, h := range handlers {
				if h(lp) {
					return l.Wakeup()
				}
			}
		}
	}
	return nil
}

// wrdCmd is the "WRD" station-type query, backward compatible with
// every Davis console generation: two fixed trailing bytes follow the
// literal "WRD", then the console replies with a single station-type
// byte plus its CRC.
const wrdCmd = "WRD\x12\x4D"

// GetStationType issues WRD and returns the console's reported station
// type byte (e.g. 0 for the original Wizard, 16 for Vantage Pro/Pro2).
func (l *Link) GetStationType() (byte, error) {
	buf, err := l.sendRawACKReplied([]byte(wrdCmd), "WRD", 1+2)
	if err != nil {
		return 0, fmt.Errorf("transport: WRD: %w", err)
	}
	return buf[0], nil
}

// GetHiLows issues HILOWS and returns the 438-byte CRC-framed payload.
func (l *Link) GetHiLows() ([]byte, error) {
	buf, err := l.SendACKReplied("HILOWS", packet.HiLowSize)
	if err != nil {
		return nil, fmt.Errorf("transport: HILOWS: %w", err)
	}
	return buf, nil
}
