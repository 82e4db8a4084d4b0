package transport

import (
	"bytes"
	"fmt"
	"time"

	"github.com/vantagewx/vws/internal/crc16"
)

// withRetry runs attempt up to shapeRetries times, re-issuing the
// wakeup handshake between failures, matching spec.md §4.1's retry
// policy ("each shape retries up to 4 times on ACK/CRC failure").
func (l *Link) withRetry(attempt func() error) error {
	var lastErr error
	for try := 1; try <= shapeRetries; try++ {
		if err := attempt(); err != nil {
			lastErr = err
			if try < shapeRetries {
				if wErr := l.Wakeup(); wErr != nil {
					lastErr = fmt.Errorf("%w (wakeup retry also failed: %v)", lastErr, wErr)
				}
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("transport: command failed after %d tries: %w", shapeRetries, lastErr)
}

// SendACKReplied issues cmd and expects a single ACK (0x06) byte, then
// reads exactly payloadSize bytes of CRC-framed binary payload (if
// payloadSize > 0). It returns the raw payload (including its trailing
// CRC) on success.
func (l *Link) SendACKReplied(cmd string, payloadSize int) ([]byte, error) {
	return l.sendACKReplied([]byte(cmd+"\n"), cmd, payloadSize)
}

// sendRawACKReplied is like SendACKReplied but sends raw exactly as
// given, for the handful of commands (WRD) whose wire form is not a
// newline-terminated ASCII string.
func (l *Link) sendRawACKReplied(raw []byte, label string, payloadSize int) ([]byte, error) {
	return l.sendACKReplied(raw, label, payloadSize)
}

func (l *Link) sendACKReplied(raw []byte, cmd string, payloadSize int) ([]byte, error) {
	var payload []byte
	err := l.withRetry(func() error {
		if err := l.write(raw); err != nil {
			return err
		}
		resp := make([]byte, 1)
		if err := l.readFull(resp, defaultReadTimeout); err != nil {
			return err
		}
		switch resp[0] {
		case ack:
			// fall through to payload read
		case nak:
			return fmt.Errorf("transport: %q NACKed", cmd)
		case crcFail:
			return fmt.Errorf("transport: %q CRC failure reported by console", cmd)
		default:
			return fmt.Errorf("transport: %q unexpected response byte %#x", cmd, resp[0])
		}

		if payloadSize == 0 {
			return nil
		}
		buf := make([]byte, payloadSize)
		if err := l.readFull(buf, defaultReadTimeout); err != nil {
			return err
		}
		if !crc16.Verify(buf) {
			return fmt.Errorf("transport: %q payload CRC mismatch", cmd)
		}
		payload = buf
		return nil
	})
	return payload, err
}

// SendOKReplied issues cmd and expects "\n\rOK\n\r" followed by an
// ASCII payload terminated by "\n\r". The payload line is not optional:
// a reply that ends after "OK" fails with a read timeout.
func (l *Link) SendOKReplied(cmd string) (string, error) {
	var payload string
	err := l.withRetry(func() error {
		if err := l.write([]byte(cmd + "\n")); err != nil {
			return err
		}
		if err := l.expectOK(defaultReadTimeout); err != nil {
			return err
		}
		line, err := l.readLineCRLF(defaultReadTimeout)
		if err != nil {
			return err
		}
		payload = line
		return nil
	})
	return payload, err
}

// SendOKThenDone issues cmd, expects the OK-replied framing, then waits
// up to 60s of silence for the "DONE\n\r" completion marker of a long
// operation (e.g. NEWSETUP, a firmware-triggered EEPROM commit).
func (l *Link) SendOKThenDone(cmd string) error {
	return l.withRetry(func() error {
		if err := l.write([]byte(cmd + "\n")); err != nil {
			return err
		}
		if err := l.expectOK(defaultReadTimeout); err != nil {
			return err
		}
		line, err := l.readLineCRLF(doneMarkerTimeout)
		if err != nil {
			return err
		}
		if line != "DONE" {
			return fmt.Errorf("transport: %q completion marker = %q, want DONE", cmd, line)
		}
		return nil
	})
}

// SendStringReturning issues cmd, expects the OK-replied framing, then
// returns the string terminated by "\n\r".
func (l *Link) SendStringReturning(cmd string) (string, error) {
	var out string
	err := l.withRetry(func() error {
		if err := l.write([]byte(cmd + "\n")); err != nil {
			return err
		}
		if err := l.expectOK(defaultReadTimeout); err != nil {
			return err
		}
		line, err := l.readLineCRLF(defaultReadTimeout)
		if err != nil {
			return err
		}
		out = line
		return nil
	})
	return out, err
}

var okMarker = []byte("\n\rOK\n\r")

func (l *Link) expectOK(timeout time.Duration) error {
	buf := make([]byte, len(okMarker))
	if err := l.readFull(buf, timeout); err != nil {
		return err
	}
	if !bytes.Equal(buf, okMarker) {
		return fmt.Errorf("transport: expected %q, got %q", okMarker, buf)
	}
	return nil
}

// readLineCRLF reads bytes one at a time until "\n\r" is seen, returning
// everything before it.
func (l *Link) readLineCRLF(timeout time.Duration) (string, error) {
	var out []byte
	one := make([]byte, 1)
	for {
		if err := l.readFull(one, timeout); err != nil {
			return "", err
		}
		if one[0] == '\r' && len(out) > 0 && out[len(out)-1] == '\n' {
			return string(out[:len(out)-1]), nil
		}
		out = append(out, one[0])
	}
}
