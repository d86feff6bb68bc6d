package hive

import (
	"github.com/joshuapare/nthive/internal/format"
)

// cellArena lets tests assemble a synthetic cell area by placing
// caller-chosen payloads at caller-chosen relative offsets, without having
// to hand-compute cell sizes or alignment padding.
type cellArena struct {
	buf []byte // format.HeaderSize bytes of header + cell area
}

func newCellArena(cellAreaSize int) *cellArena {
	return &cellArena{buf: make([]byte, format.HeaderSize+cellAreaSize)}
}

// put writes an allocated cell (negative size header + payload, padded to
// the 8-byte alignment boundary) at the given relative offset and returns
// the relative offset unchanged, for chaining into NK/VK/list fields.
func (a *cellArena) put(relOffset int, payload []byte) uint32 {
	total := format.CellHeaderSize + len(payload)
	if rem := total % format.CellAlignment; rem != 0 {
		total += format.CellAlignment - rem
	}

	absOff := format.HeaderSize + relOffset
	if need := absOff + total; need > len(a.buf) {
		grown := make([]byte, need)
		copy(grown, a.buf)
		a.buf = grown
	}

	format.PutI32(a.buf, absOff, int32(-total))
	copy(a.buf[absOff+format.CellHeaderSize:], payload)
	return uint32(relOffset)
}

func (a *cellArena) bytes() []byte { return a.buf }

// nkPayload builds a minimal NK cell payload. subkeyListOff/valueListOff
// use format.InvalidOffset when absent.
type nkPayload struct {
	name             string
	parentOffset     uint32
	subkeyCount      uint32
	volSubkeyCount   uint32
	subkeyListOffset uint32
	valueCount       uint32
	valueListOffset  uint32
	classNameOffset  uint32
	classLength      uint16
	compressedName   bool
}

func buildNK(p nkPayload) []byte {
	if p.subkeyListOffset == 0 {
		p.subkeyListOffset = format.InvalidOffset
	}
	if p.valueListOffset == 0 {
		p.valueListOffset = format.InvalidOffset
	}
	if p.classNameOffset == 0 {
		p.classNameOffset = format.InvalidOffset
	}

	nameBytes := encodeTestName(p.name, p.compressedName)
	buf := make([]byte, format.NKNameOffset+len(nameBytes))
	copy(buf[format.NKSignatureOffset:], format.NKSignature)

	var flags uint16
	if p.compressedName {
		flags |= format.NKFlagCompressedName
	}
	format.PutU16(buf, format.NKFlagsOffset, flags)
	format.PutU32(buf, format.NKParentOffset, p.parentOffset)
	format.PutU32(buf, format.NKSubkeyCountOffset, p.subkeyCount)
	format.PutU32(buf, format.NKVolSubkeyCountOffset, p.volSubkeyCount)
	format.PutU32(buf, format.NKSubkeyListOffset, p.subkeyListOffset)
	format.PutU32(buf, format.NKValueCountOffset, p.valueCount)
	format.PutU32(buf, format.NKValueListOffset, p.valueListOffset)
	format.PutU32(buf, format.NKClassNameOffset, p.classNameOffset)
	format.PutU16(buf, format.NKClassLenOffset, p.classLength)
	format.PutU16(buf, format.NKNameLenOffset, uint16(len(nameBytes)))
	copy(buf[format.NKNameOffset:], nameBytes)
	return buf
}

func encodeTestName(name string, compressed bool) []byte {
	if compressed {
		out := make([]byte, len(name))
		for i := 0; i < len(name); i++ {
			out[i] = name[i]
		}
		return out
	}
	out := make([]byte, 0, len(name)*2)
	for _, r := range name {
		out = append(out, byte(r), byte(r>>8))
	}
	return out
}

// buildLeaf builds an lf/lh/li/ri subkey-list cell payload. entrySize must
// be format.LFFHEntrySize (lf/lh) or format.LIEntrySize (li/ri).
func buildLeaf(sig []byte, entrySize int, offsets []uint32) []byte {
	buf := make([]byte, format.IdxListOffset+len(offsets)*entrySize)
	copy(buf[0:2], sig)
	format.PutU16(buf, format.IdxCountOffset, uint16(len(offsets)))
	for i, off := range offsets {
		format.PutU32(buf, format.IdxListOffset+i*entrySize, off)
	}
	return buf
}

func buildVK(name string, compressedName bool, dataType uint32, inlineOrLen uint32, dataOffsetOrInline uint32) []byte {
	nameBytes := encodeTestName(name, compressedName)
	buf := make([]byte, format.VKNameOffset+len(nameBytes))
	copy(buf[0:2], format.VKSignature)
	format.PutU16(buf, format.VKNameLenOffset, uint16(len(nameBytes)))
	format.PutU32(buf, format.VKDataLenOffset, inlineOrLen)
	format.PutU32(buf, format.VKDataOffOffset, dataOffsetOrInline)
	format.PutU32(buf, format.VKTypeOffset, dataType)
	var flags uint16
	if compressedName {
		flags |= format.VKFlagNameCompressed
	}
	format.PutU16(buf, format.VKFlagsOffset, flags)
	copy(buf[format.VKNameOffset:], nameBytes)
	return buf
}
