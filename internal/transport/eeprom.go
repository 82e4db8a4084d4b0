package transport

import (
	"fmt"

	"github.com/vantagewx/vws/internal/crc16"
	"github.com/vantagewx/vws/internal/eeprom"
)

const eepromSize = 4096

// ReadEEPROM issues GETEE and returns the full 4096-byte EEPROM image
// (payload only, CRC already verified and stripped).
func (l *Link) ReadEEPROM() ([]byte, error) {
	buf, err := l.SendACKReplied("GETEE", eepromSize+2)
	if err != nil {
		return nil, fmt.Errorf("transport: GETEE: %w", err)
	}
	return buf[:eepromSize], nil
}

// ReadEEPROMRange issues EEBRD addr count and returns count bytes (CRC
// verified and stripped).
func (l *Link) ReadEEPROMRange(addr uint16, count int) ([]byte, error) {
	cmd := fmt.Sprintf("EEBRD %02X %d", addr, count)
	buf, err := l.SendACKReplied(cmd, count+2)
	if err != nil {
		return nil, fmt.Errorf("transport: %s: %w", cmd, err)
	}
	return buf[:count], nil
}

// WriteEEPROMRange issues EEBWR addr count, then writes data followed
// by its CRC. Writes to any address in eeprom's protected set are
// refused locally before a single byte reaches the console, per
// spec.md §4.1 and invariant §8 ("no bytes are sent").
func (l *Link) WriteEEPROMRange(addr uint16, data []byte) error {
	if eeprom.IsProtected(addr) {
		return fmt.Errorf("transport: refusing EEBWR to protected address 0x%02x", addr)
	}

	cmd := fmt.Sprintf("EEBWR %02X %d", addr, len(data))
	_, err := l.SendACKReplied(cmd, 0)
	if err != nil {
		return fmt.Errorf("transport: %s: %w", cmd, err)
	}

	framed := crc16.Append(append([]byte(nil), data...))
	if err := l.write(framed); err != nil {
		return err
	}
	resp := make([]byte, 1)
	if err := l.readFull(resp, defaultReadTimeout); err != nil {
		return err
	}
	if resp[0] != ack {
		return fmt.Errorf("transport: %s payload NAKed", cmd)
	}
	return nil
}
