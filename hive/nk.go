package hive

import (
	"strings"

	"github.com/joshuapare/nthive/internal/format"
)

// nk is the fixed-layout view over an "nk" cell payload's header fields.
// The trailing name bytes are accessed separately since their length and
// range must be checked against the cell body first.
type nk struct {
	body Cell // full cell body, header fields at fixed offsets from body.Off
}

func parseNK(cell Cell) (nk, error) {
	if len(cell.Body) < format.SignatureSize || cell.Body[0] != 'n' || cell.Body[1] != 'k' {
		return nk{}, &Error{
			Kind:     KindInvalidTwoByteSignature,
			Offset:   cell.Off,
			Expected: format.NKSignature,
			Actual:   sigOrNil(cell.Body, 2),
		}
	}
	if len(cell.Body) < format.NKFixedHeaderSize {
		return nk{}, &Error{
			Kind:     KindInvalidHeaderSize,
			Offset:   cell.Off,
			Expected: format.NKFixedHeaderSize,
			Actual:   len(cell.Body),
		}
	}
	return nk{body: cell}, nil
}

func sigOrNil(b []byte, n int) []byte {
	if len(b) < n {
		return append([]byte(nil), b...)
	}
	return append([]byte(nil), b[:n]...)
}

func (n nk) flags() uint16               { return format.ReadU16(n.body.Body, format.NKFlagsOffset) }
func (n nk) parentOffset() uint32        { return format.ReadU32(n.body.Body, format.NKParentOffset) }
func (n nk) subkeyCount() uint32         { return format.ReadU32(n.body.Body, format.NKSubkeyCountOffset) }
func (n nk) volatileSubkeyCount() uint32 { return format.ReadU32(n.body.Body, format.NKVolSubkeyCountOffset) }
func (n nk) subkeyListOffset() uint32    { return format.ReadU32(n.body.Body, format.NKSubkeyListOffset) }
func (n nk) valueCount() uint32          { return format.ReadU32(n.body.Body, format.NKValueCountOffset) }
func (n nk) valueListOffset() uint32     { return format.ReadU32(n.body.Body, format.NKValueListOffset) }
func (n nk) classNameOffset() uint32     { return format.ReadU32(n.body.Body, format.NKClassNameOffset) }
func (n nk) nameLength() int             { return int(format.ReadU16(n.body.Body, format.NKNameLenOffset)) }
func (n nk) classLength() int            { return int(format.ReadU16(n.body.Body, format.NKClassLenOffset)) }
func (n nk) isCompressedName() bool      { return n.flags()&format.NKFlagCompressedName != 0 }

// nameBytes returns the name's raw trailing bytes, bounds-checked against
// the cell body.
func (n nk) nameBytes() ([]byte, error) {
	nl := n.nameLength()
	end := format.NKNameOffset + nl
	if end > len(n.body.Body) {
		return nil, &Error{
			Kind:     KindInvalidSizeField,
			Offset:   n.body.Off + format.NKNameLenOffset,
			Expected: nl,
			Actual:   len(n.body.Body) - format.NKNameOffset,
		}
	}
	return n.body.Body[format.NKNameOffset:end], nil
}

// KeyNode is the public, zero-copy view over a registry key.
type KeyNode struct {
	h  *Hive
	nk nk
}

// Name returns this key's name.
func (k KeyNode) Name() (StringView, error) {
	raw, err := k.nk.nameBytes()
	if err != nil {
		return StringView{}, err
	}
	if k.nk.isCompressedName() {
		return latin1View(raw), nil
	}
	return utf16leView(raw), nil
}

// ClassName returns the key's class name if one is present. found is false
// (with no error) when the key has no class name.
func (k KeyNode) ClassName() (view StringView, found bool, err error) {
	classLen := k.nk.classLength()
	offset := k.nk.classNameOffset()
	if classLen == 0 || offset == format.InvalidOffset {
		return StringView{}, false, nil
	}
	cell, err := resolveCell(k.h.data, offset)
	if err != nil {
		return StringView{}, false, err
	}
	if classLen > len(cell.Body) {
		return StringView{}, false, &Error{
			Kind:     KindInvalidSizeField,
			Offset:   cell.Off,
			Expected: classLen,
			Actual:   len(cell.Body),
		}
	}
	return utf16leView(cell.Body[:classLen]), true, nil
}

// subkeyList resolves this node's subkey container, or reports none.
func (k KeyNode) subkeyList() (subkeyList, bool, error) {
	offset := k.nk.subkeyListOffset()
	if offset == format.InvalidOffset {
		return subkeyList{}, false, nil
	}
	cell, err := resolveCell(k.h.data, offset)
	if err != nil {
		return subkeyList{}, false, err
	}
	sl, err := parseSubkeyList(cell, true)
	if err != nil {
		return subkeyList{}, false, err
	}
	return sl, true, nil
}

// keyNodeAt resolves the Key Node referenced by a key-node cell offset.
func (k KeyNode) keyNodeAt(offset uint32) (KeyNode, error) {
	cell, err := resolveCell(k.h.data, offset)
	if err != nil {
		return KeyNode{}, err
	}
	n, err := parseNK(cell)
	if err != nil {
		return KeyNode{}, err
	}
	return KeyNode{h: k.h, nk: n}, nil
}

// SubkeyIter iterates the direct subkeys of a Key Node in stored order.
type SubkeyIter struct {
	k     KeyNode
	items subkeyLeafItems // flattened; index-root leaves resolved once, when the iterator is created
	idx   int
}

// Subkeys returns an iterator over direct subkeys, or found=false if this
// node has no subkey list.
func (k KeyNode) Subkeys() (iter SubkeyIter, found bool, err error) {
	sl, found, err := k.subkeyList()
	if err != nil || !found {
		return SubkeyIter{}, found, err
	}
	items, err := sl.flatten(k.h)
	if err != nil {
		return SubkeyIter{}, true, err
	}
	return SubkeyIter{k: k, items: items}, true, nil
}

// Next returns the next subkey, or ok=false when exhausted.
func (it *SubkeyIter) Next() (KeyNode, bool, error) {
	if it.idx >= it.items.len() {
		return KeyNode{}, false, nil
	}
	off, err := it.items.at(it.idx)
	if err != nil {
		return KeyNode{}, false, err
	}
	it.idx++
	node, err := it.k.keyNodeAt(off)
	return node, true, err
}

// Subkey looks up a direct subkey by name using the binary-search algorithm
// from spec §4.4. found is false (no error) when no subkey has that name.
func (k KeyNode) Subkey(name string) (node KeyNode, found bool, err error) {
	sl, found, err := k.subkeyList()
	if err != nil || !found {
		return KeyNode{}, false, err
	}
	target := utf16FromUTF8(name)
	return sl.search(k.h, target)
}

// Subpath walks a `\`-separated path of subkey names, skipping empty
// components so that leading, trailing, and duplicate separators are
// tolerated (spec §9 Open Question (a) mandates skip over lookup-as-empty).
func (k KeyNode) Subpath(path string) (node KeyNode, found bool, err error) {
	const maxDepth = 512
	cur := k
	depth := 0
	for _, part := range strings.Split(path, `\`) {
		if part == "" {
			continue
		}
		depth++
		if depth > maxDepth {
			return KeyNode{}, false, &Error{Kind: KindInvalidDataSize, Msg: "subpath exceeds depth limit"}
		}
		cur, found, err = cur.Subkey(part)
		if err != nil || !found {
			return KeyNode{}, found, err
		}
	}
	return cur, true, nil
}

// ValueIter iterates the values attached to a Key Node.
type ValueIter struct {
	h      *Hive
	list   valueList
	idx    int
}

// Values returns an iterator over this node's values, or found=false if it
// has none.
func (k KeyNode) Values() (iter ValueIter, found bool, err error) {
	count := k.nk.valueCount()
	offset := k.nk.valueListOffset()
	if count == 0 || offset == format.InvalidOffset {
		return ValueIter{}, false, nil
	}
	cell, err := resolveCell(k.h.data, offset)
	if err != nil {
		return ValueIter{}, false, err
	}
	vl, err := parseValueList(cell, int(count))
	if err != nil {
		return ValueIter{}, false, err
	}
	return ValueIter{h: k.h, list: vl}, true, nil
}

// Next returns the next value, or ok=false when exhausted.
func (it *ValueIter) Next() (KeyValue, bool, error) {
	if it.idx >= it.list.count {
		return KeyValue{}, false, nil
	}
	off, err := it.list.at(it.idx)
	if err != nil {
		return KeyValue{}, false, err
	}
	it.idx++
	kv, err := it.h.keyValueAt(off)
	return kv, true, err
}

// Value performs a linear scan (values are not sorted) and returns the
// first name-equal match. found is false (no error) if no value matches.
func (k KeyNode) Value(name string) (value KeyValue, found bool, err error) {
	iter, found, err := k.Values()
	if err != nil || !found {
		return KeyValue{}, false, err
	}
	target := utf16FromUTF8(name)
	for {
		v, ok, err := iter.Next()
		if err != nil {
			return KeyValue{}, false, err
		}
		if !ok {
			return KeyValue{}, false, nil
		}
		vname, err := v.Name()
		if err != nil {
			return KeyValue{}, false, err
		}
		if vname.Equal(target) {
			return v, true, nil
		}
	}
}

// utf16FromUTF8 encodes a Go string (UTF-8) into a UTF-16LE StringView for
// comparison against on-disk names.
func utf16FromUTF8(s string) StringView {
	runes := []rune(s)
	buf := make([]byte, 0, len(runes)*2)
	for _, r := range runes {
		if r <= format.UTF16BMPMax {
			buf = append(buf, byte(r), byte(r>>8))
			continue
		}
		v := uint32(r) - format.UTF16SurrogateBase
		hi := uint16(format.UTF16HighSurrogateStart + (v >> 10))
		lo := uint16(format.UTF16LowSurrogateStart + (v & format.UTF16SurrogateMask))
		buf = append(buf, byte(hi), byte(hi>>8), byte(lo), byte(lo>>8))
	}
	return utf16leView(buf)
}
