// Package hive implements zero-copy parsing of Windows NT registry hive
// files (the REGF on-disk format backing SYSTEM, SOFTWARE, NTUSER.DAT, and
// similar files).
//
// # Overview
//
// Given a hive image as a contiguous byte slice, this package exposes a
// tree of keys (KeyNode) and values (KeyValue) with name-ordered lookup,
// typed value decoding (including multi-cell Big Data), and one limited
// mutation used to prepare a hive for boot: ClearVolatileSubkeys.
//
// # Zero-Copy Design
//
// Every type in this package is a view over the caller-owned byte slice.
// Nothing is copied on the read path except by StringView.String (a lossy
// Unicode conversion) and by KeyValue.Data for a Big Data value, whose
// chunks are reassembled into one new slice. The caller owns and keeps the buffer alive for as long as
// any view into it is used.
//
// # Thread Safety
//
// Multiple goroutines may read from the same Hive concurrently; reader
// views perform no interior mutation. ClearVolatileSubkeys requires
// exclusive access to the buffer for its entire call; the type system does
// not enforce this (a []byte carries no such marker), so callers must
// synchronize reads against a concurrent mutation themselves.
package hive

import (
	"github.com/joshuapare/nthive/internal/format"
)

// Hive is an opened registry hive: a base block (validated by Open, not by
// OpenUnchecked) plus the remaining bytes as the cell area.
type Hive struct {
	data []byte
	base *BaseBlock
}

// Open parses and fully validates the base block (spec §4.2's 8-step
// check), failing on the first mismatch.
func Open(data []byte) (*Hive, error) {
	base, err := ParseBaseBlock(data)
	if err != nil {
		return nil, err
	}
	if err := base.Validate(len(data)); err != nil {
		return nil, err
	}
	return &Hive{data: data, base: base}, nil
}

// OpenUnchecked parses only enough to split the base block from the cell
// area, skipping the 8-step validation. This exists for hives whose base
// block fails validation for reasons that don't prevent reading cells
// (hibernation artifacts, mismatched sequence numbers): every cell is still
// structurally validated as it is resolved during traversal.
func OpenUnchecked(data []byte) (*Hive, error) {
	base, err := ParseBaseBlock(data)
	if err != nil {
		return nil, err
	}
	return &Hive{data: data, base: base}, nil
}

// Bytes returns the full hive buffer backing this Hive.
func (h *Hive) Bytes() []byte { return h.data }

// MajorVersion returns the base block's major version field.
func (h *Hive) MajorVersion() uint32 { return h.base.Major() }

// MinorVersion returns the base block's minor version field.
func (h *Hive) MinorVersion() uint32 { return h.base.Minor() }

// RootKeyNode resolves and returns the root Key Node.
func (h *Hive) RootKeyNode() (KeyNode, error) {
	root := h.base.RootCellOffset()
	if root == format.InvalidOffset {
		return KeyNode{}, &Error{Kind: KindInvalidDataSize, Offset: format.REGFRootCellOffset, Msg: "root cell offset is the sentinel"}
	}
	cell, err := resolveCell(h.data, root)
	if err != nil {
		return KeyNode{}, err
	}
	nk, err := parseNK(cell)
	if err != nil {
		return KeyNode{}, err
	}
	return KeyNode{h: h, nk: nk}, nil
}

// OffsetOfDataOffset translates a data offset (relative to the cell area)
// into an absolute byte offset within the hive buffer, for error reporting.
func (h *Hive) OffsetOfDataOffset(dataOffset uint32) int {
	return format.HeaderSize + int(dataOffset)
}
