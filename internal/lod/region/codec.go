package region

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/OCharnyshevich/terrain-lod/pkg/lod"
)

// FormatVersion is the region file version written by this package.
const FormatVersion byte = 2

// Single-byte record sentinels. A packed data point always has its high
// bit set, so its first byte can never collide with these.
const (
	recordEmpty byte = 0
	recordVoid  byte = 3
)

var (
	// ErrOutdated marks a file written by an older format version.
	ErrOutdated = errors.New("region file is outdated")
	// ErrNewerVersion marks a file written by a newer format version.
	ErrNewerVersion = errors.New("region file has a newer version")
)

// EncodeLevel serializes one level grid: the version byte, then one record
// per cell in row-major order. Cells equal to lod.Void(voidTier) use the
// one-byte void sentinel; every other non-empty cell is 8 bytes big-endian.
func EncodeLevel(cells []uint64, voidTier lod.Tier) []byte {
	voidCell := lod.Void(voidTier).Pack()
	buf := make([]byte, 1, 1+len(cells))
	buf[0] = FormatVersion
	for _, c := range cells {
		switch c {
		case 0:
			buf = append(buf, recordEmpty)
		case voidCell:
			buf = append(buf, recordVoid)
		default:
			buf = binary.BigEndian.AppendUint64(buf, c)
		}
	}
	return buf
}

// Version returns the format version of an encoded level.
func Version(data []byte) (byte, error) {
	if len(data) == 0 {
		return 0, errors.New("empty region file")
	}
	return data[0], nil
}

// DecodeLevel parses an encoded level holding exactly n cells. The void
// sentinel decodes to a void point at voidTier.
func DecodeLevel(data []byte, n int, voidTier lod.Tier) ([]uint64, error) {
	v, err := Version(data)
	if err != nil {
		return nil, err
	}
	switch {
	case v < FormatVersion:
		return nil, fmt.Errorf("version %d: %w", v, ErrOutdated)
	case v > FormatVersion:
		return nil, fmt.Errorf("version %d: %w", v, ErrNewerVersion)
	}

	voidCell := lod.Void(voidTier).Pack()
	cells := make([]uint64, n)
	off := 1
	for i := range cells {
		if off >= len(data) {
			return nil, fmt.Errorf("truncated at cell %d of %d", i, n)
		}
		switch data[off] {
		case recordEmpty:
			off++
		case recordVoid:
			cells[i] = voidCell
			off++
		default:
			if off+8 > len(data) {
				return nil, fmt.Errorf("truncated record at cell %d", i)
			}
			cells[i] = binary.BigEndian.Uint64(data[off:])
			off += 8
		}
	}
	if off != len(data) {
		return nil, fmt.Errorf("%d trailing bytes", len(data)-off)
	}
	return cells, nil
}
