package fitproc

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/tormoder/fit"
	"github.com/tormoder/fit/dyncrc16"
)

// buildFile frames a data section with a FIT header (12 bytes, or 14 with a
// header CRC) and the trailing file CRC.
func buildFile(t *testing.T, withHeaderCRC bool, dataSection []byte) []byte {
	t.Helper()

	headerSize := byte(12)
	if withHeaderCRC {
		headerSize = 14
	}
	header := []byte{headerSize, 0x20, 0x5C, 0x08} // size, protocol 2.0, profile
	header = binary.LittleEndian.AppendUint32(header, uint32(len(dataSection)))
	header = append(header, '.', 'F', 'I', 'T')

	file := append([]byte(nil), header...)
	if withHeaderCRC {
		file = binary.LittleEndian.AppendUint16(file, dyncrc16.Checksum(header))
	}
	file = append(file, dataSection...)
	return binary.LittleEndian.AppendUint16(file, dyncrc16.Checksum(file))
}

// defMessage builds a little-endian definition message for the given local
// message number. Each field is a (number, size, base type) triplet.
func defMessage(local uint8, global uint16, fields ...[3]byte) []byte {
	msg := []byte{0x40 | local, 0x00, 0x00}
	msg = binary.LittleEndian.AppendUint16(msg, global)
	msg = append(msg, byte(len(fields)))
	for _, f := range fields {
		msg = append(msg, f[0], f[1], f[2])
	}
	return msg
}

func dataMessage(local uint8, payload ...[]byte) []byte {
	msg := []byte{local}
	for _, p := range payload {
		msg = append(msg, p...)
	}
	return msg
}

func u16le(v uint16) []byte { return binary.LittleEndian.AppendUint16(nil, v) }
func u32le(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }

// fileIDMessages returns the definition and data message for a minimal
// activity file_id, which FIT decoders expect as the first message.
func fileIDMessages() []byte {
	section := defMessage(0, 0,
		[3]byte{0, 1, 0x00}, // type
		[3]byte{1, 2, 0x84}, // manufacturer
		[3]byte{2, 2, 0x84}, // product
		[3]byte{4, 4, 0x86}, // time_created
	)
	return append(section, dataMessage(0,
		[]byte{4}, // activity
		u16le(1),  // garmin
		u16le(1),
		u32le(1_000_000_000),
	)...)
}

// recordSample is an input row for buildSyntheticActivity.
type recordSample struct {
	timestamp uint32 // seconds since FIT epoch
	distance  uint32 // centimeters
	speed     uint16 // millimeters per second
	heartRate uint8
}

// buildSyntheticActivity builds a complete activity file with a record
// definition carrying timestamp, distance, speed, and heart rate fields.
func buildSyntheticActivity(t *testing.T, samples []recordSample) []byte {
	t.Helper()

	section := fileIDMessages()
	section = append(section, defMessage(1, 20,
		[3]byte{253, 4, 0x86}, // timestamp
		[3]byte{5, 4, 0x86},   // distance
		[3]byte{6, 2, 0x84},   // speed
		[3]byte{3, 1, 0x02},   // heart_rate
	)...)
	for _, s := range samples {
		section = append(section, dataMessage(1,
			u32le(s.timestamp),
			u32le(s.distance),
			u16le(s.speed),
			[]byte{s.heartRate},
		)...)
	}
	return buildFile(t, false, section)
}

// buildEncodedActivity builds a fixture through the fit package's encoder so
// tests have an independently produced, CRC-valid input file.
func buildEncodedActivity(t *testing.T) []byte {
	t.Helper()

	header := fit.NewHeader(fit.V20, true)
	file, err := fit.NewFile(fit.FileTypeActivity, header)
	if err != nil {
		t.Fatalf("new fit file: %v", err)
	}

	activity, err := file.Activity()
	if err != nil {
		t.Fatalf("activity accessor: %v", err)
	}

	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 30; i++ {
		record := fit.NewRecordMsg()
		record.Timestamp = start.Add(time.Duration(i) * time.Second)
		record.Distance = uint32(i * 450) // 4.5 m/s in centimeter units
		record.Speed = 4500
		record.HeartRate = uint8(130 + i%7)
		record.Cadence = 88
		activity.Records = append(activity.Records, record)
	}

	var buf bytes.Buffer
	if err := fit.Encode(&buf, file, binary.LittleEndian); err != nil {
		t.Fatalf("encode fit: %v", err)
	}
	return buf.Bytes()
}

func numericFieldSeries(records []Record, names ...string) []float64 {
	match := func(name string) bool {
		for _, n := range names {
			if n == name {
				return true
			}
		}
		return false
	}
	var out []float64
	for _, r := range records {
		for _, f := range r.Fields {
			if match(f.Name) && f.Numeric != nil {
				out = append(out, *f.Numeric)
				break
			}
		}
	}
	return out
}

func hasFieldNamed(records []Record, names ...string) bool {
	for _, r := range records {
		for _, f := range r.Fields {
			for _, n := range names {
				if f.Name == n {
					return true
				}
			}
		}
	}
	return false
}
