package fitproc

import (
	"encoding/binary"
	"math"

	"github.com/tormoder/fit/dyncrc16"
)

// reencode rebuilds a FIT file from the original header region and a new data
// section. The header's declared data length is updated and both CRCs are
// recomputed with the FIT CRC-16 (Garmin nibble-table variant).
func reencode(headerWithoutCRC []byte, hasHeaderCRC bool, dataSection []byte) ([]byte, error) {
	if len(headerWithoutCRC) == 0 {
		return nil, invalidHeaderf("missing header byte")
	}

	header := append([]byte(nil), headerWithoutCRC...)
	if len(header) >= 8 {
		if len(dataSection) > math.MaxUint32 {
			return nil, invalidHeaderf("data section too large")
		}
		binary.LittleEndian.PutUint32(header[4:8], uint32(len(dataSection)))
	}

	out := make([]byte, 0, len(header)+2+len(dataSection)+2)
	out = append(out, header...)
	if hasHeaderCRC {
		out = appendUint16(out, binary.LittleEndian, dyncrc16.Checksum(header))
	}
	out = append(out, dataSection...)
	return appendUint16(out, binary.LittleEndian, dyncrc16.Checksum(out)), nil
}
