package hive

import (
	"github.com/joshuapare/nthive/internal/buf"
	"github.com/joshuapare/nthive/internal/format"
)

// Cell is a zero-copy view over the body of one allocated hive cell (the
// size-prefixed header is not part of it). Off is the absolute offset of
// the body's first byte within the hive buffer, used to compute absolute
// offsets for error reporting.
type Cell struct {
	Body []byte
	Off  int
}

// resolveCell is the workhorse described in spec §4.2: given a 32-bit data
// offset relative to the cell area (i.e. relative to the end of the 4096
// byte base block), it returns the byte range of the cell body with the
// 4-byte size header excluded. dataOffset must not be the sentinel
// format.InvalidOffset; callers check that themselves since "no reference"
// is a valid, non-error outcome in most call sites.
func resolveCell(hiveBuf []byte, dataOffset uint32) (Cell, error) {
	hdrOff := format.HeaderSize + int(dataOffset)

	hdr, ok := buf.Slice(hiveBuf, hdrOff, format.CellHeaderSize)
	if !ok {
		return Cell{}, &Error{
			Kind:     KindInvalidHeaderSize,
			Offset:   hdrOff,
			Expected: format.CellHeaderSize,
			Actual:   len(hiveBuf) - hdrOff,
		}
	}

	size := int(buf.I32LE(hdr))
	if size >= 0 {
		return Cell{}, &Error{Kind: KindUnallocatedCell, Offset: hdrOff, Actual: size}
	}
	total := -size

	if total%format.CellAlignment != 0 {
		return Cell{}, &Error{
			Kind:     KindInvalidSizeFieldAlignment,
			Offset:   hdrOff,
			Expected: format.CellAlignment,
			Actual:   total,
		}
	}
	if total < format.CellHeaderSize {
		return Cell{}, &Error{
			Kind:     KindInvalidSizeField,
			Offset:   hdrOff,
			Expected: format.CellHeaderSize,
			Actual:   total,
		}
	}

	bodyOff := hdrOff + format.CellHeaderSize
	bodyLen := total - format.CellHeaderSize
	body, ok := buf.Slice(hiveBuf, bodyOff, bodyLen)
	if !ok {
		return Cell{}, &Error{
			Kind:     KindInvalidDataSize,
			Offset:   hdrOff,
			Expected: bodyLen,
			Actual:   len(hiveBuf) - bodyOff,
		}
	}

	return Cell{Body: body, Off: bodyOff}, nil
}
