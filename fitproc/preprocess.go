package fitproc

import (
	"encoding/binary"
	"math"

	"github.com/tormoder/fit"
)

// Record message field numbers used by the filter/override pass. The
// fixed-point scales match the FIT profile for these fields (distance in
// centimeters, speed in millimeters per second); see DESIGN.md for why the
// scales are not read from per-profile metadata.
const (
	speedFieldNum         = 6
	enhancedSpeedFieldNum = 73
	distanceFieldNum      = 5

	speedScale    = 1000.0
	distanceScale = 100.0
)

func recordGlobalMesgNum() uint16 { return uint16(fit.MesgNumRecord) }

// rewriteDataSection applies preprocessing transforms (field filtering, value
// overrides) to the FIT data section in a single left-to-right pass that
// mirrors the decoder's traversal. Regions that are not touched are copied
// byte for byte.
func rewriteDataSection(section []byte, opts Options, overrides []recordOverride) ([]byte, error) {
	type rewriteDefinition struct {
		messageDefinition
		filteredFields []fieldDef
	}

	definitions := make(map[uint8]*rewriteDefinition)
	out := make([]byte, 0, len(section))
	dataRecordIndex := 0

	pos := 0
	for pos < len(section) {
		messageStart := pos
		header := section[pos]
		pos++

		if header&compressedHeaderMask != 0 {
			return nil, parseErrorf("compressed timestamp headers are not supported")
		}

		if header&mesgDefinitionMask != 0 {
			def, next, err := parseDefinition(section, pos, header)
			if err != nil {
				return nil, err
			}
			reserved := section[pos]
			pos = next

			filtered := def.fields
			if opts.RemoveSpeedFields && def.global == recordGlobalMesgNum() {
				filtered = make([]fieldDef, 0, len(def.fields))
				for _, fd := range def.fields {
					if isSpeedField(fd.number) {
						continue
					}
					filtered = append(filtered, fd)
				}
			}
			definitions[header&localMesgNumMask] = &rewriteDefinition{
				messageDefinition: *def,
				filteredFields:    filtered,
			}

			if len(filtered) == len(def.fields) {
				// No change: reuse the original bytes for this definition message.
				out = append(out, section[messageStart:pos]...)
				continue
			}

			// Rebuild the definition message without the excluded fields.
			out = append(out, header, reserved, def.arch)
			out = appendUint16(out, def.byteOrder, def.global)
			out = append(out, uint8(len(filtered)))
			for _, fd := range filtered {
				out = append(out, fd.number, fd.size, fd.baseType)
			}
			if header&devDataMask != 0 {
				out = append(out, uint8(len(def.devFields)))
				for _, dfd := range def.devFields {
					out = append(out, dfd.number, dfd.size, dfd.developerIndex)
				}
			}
			continue
		}

		def, ok := definitions[header&localMesgNumMask]
		if !ok {
			return nil, invalidHeaderf("data message missing preceding definition")
		}

		var overrideSpeed, overrideDistance *float64
		if dataRecordIndex < len(overrides) {
			overrideSpeed = overrides[dataRecordIndex].speed
			overrideDistance = overrides[dataRecordIndex].distance
		}

		out = append(out, header)
		for _, fd := range def.fields {
			size := int(fd.size)
			if pos+size > len(section) {
				return nil, invalidHeaderf("data message truncated")
			}
			raw := section[pos : pos+size]
			pos += size

			isRecord := def.global == recordGlobalMesgNum()
			switch {
			case opts.RemoveSpeedFields && isRecord && isSpeedField(fd.number):
				// Dropped entirely, matching the shrunken definition.
			case isRecord && fd.number == distanceFieldNum && overrideDistance != nil:
				out = appendScaledValue(out, *overrideDistance, distanceScale, size, def.byteOrder)
			case isRecord && isSpeedField(fd.number) && overrideSpeed != nil:
				out = appendScaledValue(out, *overrideSpeed, speedScale, size, def.byteOrder)
			default:
				out = append(out, raw...)
			}
		}

		for _, dfd := range def.devFields {
			size := int(dfd.size)
			if pos+size > len(section) {
				return nil, invalidHeaderf("developer data message truncated")
			}
			out = append(out, section[pos:pos+size]...)
			pos += size
		}

		dataRecordIndex++
	}

	return out, nil
}

func isSpeedField(number uint8) bool {
	return number == speedFieldNum || number == enhancedSpeedFieldNum
}

// appendScaledValue encodes value at the field's byte width using the given
// fixed-point scale, clamped to the width's unsigned range. Widths other than
// 2 or 4 bytes are zero-filled; they do not occur for these fields in
// practice.
func appendScaledValue(out []byte, value, scale float64, width int, order binary.ByteOrder) []byte {
	scaled := math.Round(value * scale)
	if scaled < 0 {
		scaled = 0
	}
	switch width {
	case 2:
		clamped := uint16(math.Min(scaled, math.MaxUint16))
		return appendUint16(out, order, clamped)
	case 4:
		clamped := uint32(math.Min(scaled, math.MaxUint32))
		return appendUint32(out, order, clamped)
	default:
		for i := 0; i < width; i++ {
			out = append(out, 0)
		}
		return out
	}
}

func appendUint16(out []byte, order binary.ByteOrder, v uint16) []byte {
	var buf [2]byte
	order.PutUint16(buf[:], v)
	return append(out, buf[:]...)
}

func appendUint32(out []byte, order binary.ByteOrder, v uint32) []byte {
	var buf [4]byte
	order.PutUint32(buf[:], v)
	return append(out, buf[:]...)
}
