package eeprom

import (
	"encoding/binary"
	"fmt"

	"github.com/vantagewx/vws/internal/storm"
)

// Layout of the EEPROM storm-data ring: 25 rainfall records, 25 start
// dates, and 25 end dates, each 2 bytes, packed in that order. Only the
// first 24 of the 25 slots are meaningful; the 25th is always a "dashed"
// placeholder record.
const (
	stormRainfallRecordSize = 2
	stormDateRecordSize     = 2
	eepromStormRecords      = 25
	numRainStormRecords     = 24

	// StormRingSize is the total byte length of the storm-data ring.
	StormRingSize = stormRainfallRecordSize*eepromStormRecords + stormDateRecordSize*eepromStormRecords*2
)

// noStormActiveDate is the sentinel packed-date value meaning "no date
// set" (storm still active, or an unused ring slot).
const noStormActiveDate = 0xFFFF

// DecodeStormRing decodes the console's 24-entry storm ring from a
// StormRingSize-byte buffer (read via EEBRD at AddrRainStormData).
// rainBucketInches scales the raw rainfall clicks, the same bucket size
// used by the current-weather and archive decoders.
func DecodeStormRing(buf []byte, rainBucketInches float64) ([]storm.Record, error) {
	if len(buf) != StormRingSize {
		return nil, fmt.Errorf("eeprom: storm ring buffer is %d bytes, want %d", len(buf), StormRingSize)
	}

	startBase := stormRainfallRecordSize * eepromStormRecords
	endBase := startBase + stormDateRecordSize*eepromStormRecords

	records := make([]storm.Record, 0, numRainStormRecords)
	for i := 0; i < numRainStormRecords; i++ {
		rainRaw := int16(binary.LittleEndian.Uint16(buf[i*stormRainfallRecordSize:]))
		startRaw := binary.LittleEndian.Uint16(buf[startBase+i*stormDateRecordSize:])
		endRaw := binary.LittleEndian.Uint16(buf[endBase+i*stormDateRecordSize:])

		start := decodeStormDate(startRaw)
		end := decodeStormDate(endRaw)
		if start.IsZero() {
			continue // unused ring slot
		}

		records = append(records, storm.Record{
			Start:    start,
			End:      end,
			Rainfall: float64(rainRaw) * rainBucketInches,
		})
	}
	return records, nil
}

// decodeStormDate unpacks a storm-ring date: year in bits 0-5 (offset
// from 2000), day in bits 7-11, month in bits 12-15. The sentinel value
// 0xFFFF means no date (an ongoing storm's end, or an unused slot).
func decodeStormDate(packed uint16) storm.Date {
	if packed == noStormActiveDate {
		return storm.Date{}
	}
	year := int(packed&0x3F) + 2000
	day := int((packed >> 7) & 0x1F)
	month := int((packed >> 12) & 0xF)
	return storm.Date{Year: year, Month: month, Day: day}
}
