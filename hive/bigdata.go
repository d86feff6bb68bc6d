package hive

import (
	"github.com/joshuapare/nthive/internal/format"
)

// readBigData reassembles a value's bytes from a Big Data ("db") record:
// a small header naming a blocklist cell, itself a flat array of uint32
// offsets to the data chunks. Every chunk holds up to format.DBChunkSize
// bytes; only the last chunk may be shorter (spec §4.5, §8 big-data
// boundary scenario). n is the value's declared total length.
func readBigData(h *Hive, dbCell Cell, n int) ([]byte, error) {
	if !hasSig(dbCell.Body, format.DBSignature) {
		return nil, &Error{
			Kind:     KindInvalidTwoByteSignature,
			Offset:   dbCell.Off,
			Expected: format.DBSignature,
			Actual:   sigOrNil(dbCell.Body, 2),
		}
	}
	if len(dbCell.Body) < format.DBHeaderSize {
		return nil, &Error{
			Kind:     KindInvalidHeaderSize,
			Offset:   dbCell.Off,
			Expected: format.DBHeaderSize,
			Actual:   len(dbCell.Body),
		}
	}

	count := int(format.ReadU16(dbCell.Body, format.DBCountOffset))
	if count < format.DBMinBlockCount || count > format.DBMaxBlockCount {
		return nil, &Error{
			Kind:     KindInvalidSizeField,
			Offset:   dbCell.Off + format.DBCountOffset,
			Expected: "2..65535",
			Actual:   count,
		}
	}

	blockListOffset := format.ReadU32(dbCell.Body, format.DBListOffset)
	blockList, err := resolveCell(h.data, blockListOffset)
	if err != nil {
		return nil, err
	}
	need := count * 4
	if len(blockList.Body) < need {
		return nil, &Error{
			Kind:     KindInvalidSizeField,
			Offset:   blockList.Off,
			Expected: need,
			Actual:   len(blockList.Body),
		}
	}

	out := make([]byte, 0, n)
	remaining := n
	for i := 0; i < count && remaining > 0; i++ {
		chunkOffset := format.ReadU32(blockList.Body, i*4)
		chunk, err := resolveCell(h.data, chunkOffset)
		if err != nil {
			return nil, err
		}
		take := remaining
		if take > format.DBChunkSize {
			take = format.DBChunkSize
		}
		if take > len(chunk.Body) {
			return nil, &Error{
				Kind:     KindInvalidDataSize,
				Offset:   chunk.Off,
				Expected: take,
				Actual:   len(chunk.Body),
			}
		}
		out = append(out, chunk.Body[:take]...)
		remaining -= take
	}

	if remaining > 0 {
		return nil, &Error{
			Kind:     KindInvalidDataSize,
			Offset:   dbCell.Off,
			Expected: n,
			Actual:   n - remaining,
			Msg:      "big data record exhausted before satisfying declared value length",
		}
	}
	return out, nil
}
