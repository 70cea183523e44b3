package fitproc

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"strconv"

	"github.com/tormoder/fit/dyncrc16"
)

const (
	compressedHeaderMask = 0x80
	mesgDefinitionMask   = 0x40
	devDataMask          = 0x20
	localMesgNumMask     = 0x0F

	minHeaderSize = 12
)

type baseType uint8

const (
	baseEnum    baseType = 0x00
	baseSint8   baseType = 0x01
	baseUint8   baseType = 0x02
	baseSint16  baseType = 0x83
	baseUint16  baseType = 0x84
	baseSint32  baseType = 0x85
	baseUint32  baseType = 0x86
	baseString  baseType = 0x07
	baseFloat32 baseType = 0x88
	baseFloat64 baseType = 0x89
	baseUint8z  baseType = 0x0A
	baseUint16z baseType = 0x8B
	baseUint32z baseType = 0x8C
	baseByte    baseType = 0x0D
	baseSint64  baseType = 0x8E
	baseUint64  baseType = 0x8F
	baseUint64z baseType = 0x90
)

type baseSpec struct {
	size    int
	numeric bool
}

var baseSpecs = map[baseType]baseSpec{
	baseEnum:    {size: 1, numeric: true},
	baseSint8:   {size: 1, numeric: true},
	baseUint8:   {size: 1, numeric: true},
	baseSint16:  {size: 2, numeric: true},
	baseUint16:  {size: 2, numeric: true},
	baseSint32:  {size: 4, numeric: true},
	baseUint32:  {size: 4, numeric: true},
	baseString:  {size: 1},
	baseFloat32: {size: 4, numeric: true},
	baseFloat64: {size: 8, numeric: true},
	baseUint8z:  {size: 1, numeric: true},
	baseUint16z: {size: 2, numeric: true},
	baseUint32z: {size: 4, numeric: true},
	baseByte:    {size: 1},
	baseSint64:  {size: 8, numeric: true},
	baseUint64:  {size: 8, numeric: true},
	baseUint64z: {size: 8, numeric: true},
}

type fieldDef struct {
	number   uint8
	size     uint8
	baseType uint8
}

type devFieldDef struct {
	number         uint8
	size           uint8
	developerIndex uint8
}

type messageDefinition struct {
	global    uint16
	arch      uint8
	byteOrder binary.ByteOrder
	fields    []fieldDef
	devFields []devFieldDef
}

type framing struct {
	headerWithoutCRC []byte
	hasHeaderCRC     bool
	dataSection      []byte
}

// parseFraming validates the FIT framing and splits the file into its header
// region and data section, verifying both CRCs along the way.
func parseFraming(data []byte) (*framing, error) {
	if len(data) == 0 {
		return nil, invalidHeaderf("missing header byte")
	}
	headerSize := int(data[0])
	if headerSize < minHeaderSize {
		return nil, invalidHeaderf("header too small to be a FIT file")
	}
	if len(data) < headerSize+2 {
		return nil, invalidHeaderf("file shorter than minimum header + CRC")
	}

	hasHeaderCRC := headerSize > minHeaderSize
	headerEnd := headerSize
	if hasHeaderCRC {
		headerEnd = headerSize - 2
	}
	headerWithoutCRC := data[:headerEnd]

	if len(headerWithoutCRC) < 8 {
		return nil, invalidHeaderf("header missing data size field")
	}
	dataSize := int(binary.LittleEndian.Uint32(headerWithoutCRC[4:8]))

	dataEnd := headerSize + dataSize
	if dataEnd+2 > len(data) {
		return nil, invalidHeaderf("file shorter than declared data size")
	}

	if hasHeaderCRC {
		stored := binary.LittleEndian.Uint16(data[headerEnd:headerSize])
		// A zero header CRC means the writer opted out of header checksumming.
		if stored != 0 {
			if computed := dyncrc16.Checksum(headerWithoutCRC); stored != computed {
				return nil, parseErrorf("header CRC mismatch: stored 0x%04X, computed 0x%04X", stored, computed)
			}
		}
	}

	stored := binary.LittleEndian.Uint16(data[dataEnd : dataEnd+2])
	if computed := dyncrc16.Checksum(data[:dataEnd]); stored != computed {
		return nil, parseErrorf("file CRC mismatch: stored 0x%04X, computed 0x%04X", stored, computed)
	}

	return &framing{
		headerWithoutCRC: headerWithoutCRC,
		hasHeaderCRC:     hasHeaderCRC,
		dataSection:      data[headerSize:dataEnd],
	}, nil
}

// decodeRecords walks the data section's definition/data message stream and
// returns one Record per data message, in stream order. The definition table
// is local to this call and discarded on return.
func decodeRecords(section []byte) ([]Record, error) {
	definitions := make(map[uint8]*messageDefinition)
	records := make([]Record, 0, 64)

	pos := 0
	for pos < len(section) {
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
			definitions[header&localMesgNumMask] = def
			pos = next
			continue
		}

		def, ok := definitions[header&localMesgNumMask]
		if !ok {
			return nil, invalidHeaderf("data message missing preceding definition")
		}
		record, next, err := decodeDataMessage(section, pos, def)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
		pos = next
	}

	return records, nil
}

func parseDefinition(section []byte, pos int, header uint8) (*messageDefinition, int, error) {
	if pos+5 > len(section) {
		return nil, 0, invalidHeaderf("definition message truncated")
	}

	arch := section[pos+1]
	var order binary.ByteOrder = binary.LittleEndian
	if arch != 0 {
		order = binary.BigEndian
	}
	global := order.Uint16(section[pos+2 : pos+4])
	numFields := int(section[pos+4])
	pos += 5

	fields := make([]fieldDef, 0, numFields)
	for i := 0; i < numFields; i++ {
		if pos+3 > len(section) {
			return nil, 0, invalidHeaderf("field definition truncated")
		}
		fields = append(fields, fieldDef{
			number:   section[pos],
			size:     section[pos+1],
			baseType: section[pos+2],
		})
		pos += 3
	}

	var devFields []devFieldDef
	if header&devDataMask != 0 {
		if pos >= len(section) {
			return nil, 0, invalidHeaderf("missing developer field count")
		}
		devCount := int(section[pos])
		pos++
		devFields = make([]devFieldDef, 0, devCount)
		for i := 0; i < devCount; i++ {
			if pos+3 > len(section) {
				return nil, 0, invalidHeaderf("developer field definition truncated")
			}
			devFields = append(devFields, devFieldDef{
				number:         section[pos],
				size:           section[pos+1],
				developerIndex: section[pos+2],
			})
			pos += 3
		}
	}

	return &messageDefinition{
		global:    global,
		arch:      arch,
		byteOrder: order,
		fields:    fields,
		devFields: devFields,
	}, pos, nil
}

func decodeDataMessage(section []byte, pos int, def *messageDefinition) (Record, int, error) {
	record := Record{
		Kind:   globalMessageName(def.global),
		Global: def.global,
		Fields: make([]Field, 0, len(def.fields)),
	}

	for _, fd := range def.fields {
		size := int(fd.size)
		if pos+size > len(section) {
			return Record{}, 0, invalidHeaderf("data message truncated")
		}
		raw := section[pos : pos+size]
		pos += size
		record.Fields = append(record.Fields, decodeField(raw, fd, def))
	}

	for _, dfd := range def.devFields {
		size := int(dfd.size)
		if pos+size > len(section) {
			return Record{}, 0, invalidHeaderf("developer data message truncated")
		}
		pos += size
	}

	return record, pos, nil
}

func decodeField(raw []byte, fd fieldDef, def *messageDefinition) Field {
	sem := semanticForField(def.global, fd.number)
	field := Field{Name: sem.name}

	bt := canonicalBaseType(fd.baseType)
	spec, known := baseSpecs[bt]

	if bt == baseString {
		field.Value = nullTerminatedString(raw)
		return field
	}
	if !known || bt == baseByte || spec.size <= 0 || len(raw)%spec.size != 0 || len(raw)/spec.size != 1 {
		// Arrays, opaque bytes, and unknown base types are surfaced as hex.
		field.Value = hex.EncodeToString(raw)
		return field
	}

	value, invalid := decodeScalar(raw, bt, def.byteOrder)
	if invalid {
		field.Value = "invalid"
		return field
	}

	scaled := sem.apply(value)
	field.Numeric = &scaled
	field.Value = sem.render(scaled)
	return field
}

// decodeScalar decodes a single value per the FIT base-type sentinel rules.
// The second return reports that the value is the type's invalid sentinel.
func decodeScalar(raw []byte, bt baseType, order binary.ByteOrder) (float64, bool) {
	switch bt {
	case baseEnum:
		v := raw[0]
		return float64(v), v == 0xFF
	case baseSint8:
		v := int8(raw[0])
		return float64(v), v == 0x7F
	case baseUint8:
		v := raw[0]
		return float64(v), v == 0xFF
	case baseSint16:
		v := int16(order.Uint16(raw))
		return float64(v), v == 0x7FFF
	case baseUint16:
		v := order.Uint16(raw)
		return float64(v), v == 0xFFFF
	case baseSint32:
		v := int32(order.Uint32(raw))
		return float64(v), v == 0x7FFFFFFF
	case baseUint32:
		v := order.Uint32(raw)
		return float64(v), v == 0xFFFFFFFF
	case baseFloat32:
		bits := order.Uint32(raw)
		return float64(math.Float32frombits(bits)), bits == 0xFFFFFFFF
	case baseFloat64:
		bits := order.Uint64(raw)
		return math.Float64frombits(bits), bits == 0xFFFFFFFFFFFFFFFF
	case baseUint8z:
		v := raw[0]
		return float64(v), v == 0x00
	case baseUint16z:
		v := order.Uint16(raw)
		return float64(v), v == 0x0000
	case baseUint32z:
		v := order.Uint32(raw)
		return float64(v), v == 0x00000000
	case baseSint64:
		v := int64(order.Uint64(raw))
		return float64(v), v == 0x7FFFFFFFFFFFFFFF
	case baseUint64:
		v := order.Uint64(raw)
		return float64(v), v == 0xFFFFFFFFFFFFFFFF
	case baseUint64z:
		v := order.Uint64(raw)
		return float64(v), v == 0
	default:
		return 0, true
	}
}

// canonicalBaseType normalizes a definition's base type byte: the low five
// bits identify the type, the high bit only marks multi-byte widths.
func canonicalBaseType(b uint8) baseType {
	switch b & 0x1F {
	case 0x03:
		return baseSint16
	case 0x04:
		return baseUint16
	case 0x05:
		return baseSint32
	case 0x06:
		return baseUint32
	case 0x08:
		return baseFloat32
	case 0x09:
		return baseFloat64
	case 0x0B:
		return baseUint16z
	case 0x0C:
		return baseUint32z
	case 0x0E:
		return baseSint64
	case 0x0F:
		return baseUint64
	case 0x10:
		return baseUint64z
	default:
		return baseType(b & 0x1F)
	}
}

func nullTerminatedString(raw []byte) string {
	for i := range raw {
		if raw[i] == 0x00 {
			return string(raw[:i])
		}
	}
	return string(raw)
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
