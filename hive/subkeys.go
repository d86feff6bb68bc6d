package hive

import (
	"errors"

	"github.com/joshuapare/nthive/internal/format"
)

// subkeyKind identifies which of the four subkey-container signatures a
// cell holds. The set is closed (spec §4.3, §9 Design Notes: "Implementers
// should encode the set as a tagged union").
type subkeyKind int

const (
	kindLI subkeyKind = iota
	kindLF
	kindLH
	kindRI
)

// subkeyList is a zero-copy view over one subkey-container cell body.
// Fast/Hash/Index leafs are treated uniformly: only the first field of each
// item (the key-node offset) is consumed; name-prefix hints and name
// hashes are ignored, per the spec §4.3 design decision that a direct name
// comparison during binary search is simplest and correct.
type subkeyList struct {
	kind     subkeyKind
	body     []byte
	off      int
	itemSize int
}

// parseSubkeyList parses the common {signature, count} header and
// validates the following item array fits. allowIndexRoot selects between
// SubKeyNodes::new (accepts lf|lh|li|ri) and new_without_index_root
// (accepts only lf|lh|li, used when walking a single Leaf referenced from
// an Index Root, since an Index Root may not nest).
func parseSubkeyList(cell Cell, allowIndexRoot bool) (subkeyList, error) {
	if len(cell.Body) < format.IdxListOffset {
		return subkeyList{}, &Error{
			Kind:     KindInvalidHeaderSize,
			Offset:   cell.Off,
			Expected: format.IdxListOffset,
			Actual:   len(cell.Body),
		}
	}

	var kind subkeyKind
	var itemSize int
	switch {
	case hasSig(cell.Body, format.LISignature):
		kind, itemSize = kindLI, format.LIEntrySize
	case hasSig(cell.Body, format.LFSignature):
		kind, itemSize = kindLF, format.LFFHEntrySize
	case hasSig(cell.Body, format.LHSignature):
		kind, itemSize = kindLH, format.LFFHEntrySize
	case hasSig(cell.Body, format.RISignature):
		if !allowIndexRoot {
			return subkeyList{}, &Error{
				Kind:   KindInvalidTwoByteSignature,
				Offset: cell.Off,
				Msg:    "index root may not nest inside another index root",
			}
		}
		kind, itemSize = kindRI, format.LIEntrySize
	default:
		return subkeyList{}, &Error{
			Kind:     KindInvalidTwoByteSignature,
			Offset:   cell.Off,
			Expected: "lf|lh|li|ri",
			Actual:   append([]byte(nil), cell.Body[:2]...),
		}
	}

	count := int(format.ReadU16(cell.Body, format.IdxCountOffset))
	need := format.IdxListOffset + count*itemSize
	if len(cell.Body) < need {
		return subkeyList{}, &Error{
			Kind:     KindInvalidSizeField,
			Offset:   cell.Off,
			Expected: need,
			Actual:   len(cell.Body),
		}
	}

	return subkeyList{kind: kind, body: cell.Body, off: cell.Off, itemSize: itemSize}, nil
}

func hasSig(body []byte, sig []byte) bool {
	return len(body) >= 2 && body[0] == sig[0] && body[1] == sig[1]
}

func (sl subkeyList) count() int {
	return int(format.ReadU16(sl.body, format.IdxCountOffset))
}

// itemOffset returns the leading 4-byte offset field of item i: a
// key-node offset for li/lf/lh, or a nested subkeys-list offset for ri.
func (sl subkeyList) itemOffset(i int) uint32 {
	start := format.IdxListOffset + i*sl.itemSize
	return format.ReadU32(sl.body, start)
}

// name returns the name of the Key Node referenced by item i, unfolded;
// callers compare it with the case-folding Equal/Less.
func (sl subkeyList) name(h *Hive, i int) (StringView, error) {
	cell, err := resolveCell(h.data, sl.itemOffset(i))
	if err != nil {
		return StringView{}, err
	}
	n, err := parseNK(cell)
	if err != nil {
		return StringView{}, err
	}
	node := KeyNode{h: h, nk: n}
	return node.Name()
}

// search dispatches to the Leaf or Index Root binary search (spec §4.4).
func (sl subkeyList) search(h *Hive, target StringView) (KeyNode, bool, error) {
	if sl.kind == kindRI {
		return sl.searchIndexRoot(h, target)
	}
	return sl.searchLeaf(h, target)
}

// searchLeaf is the textbook signed-index binary search within one Leaf.
func (sl subkeyList) searchLeaf(h *Hive, target StringView) (KeyNode, bool, error) {
	lo, hi := 0, sl.count()-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		name, err := sl.name(h, mid)
		if err != nil {
			return KeyNode{}, false, err
		}
		switch {
		case target.Equal(name):
			cell, err := resolveCell(h.data, sl.itemOffset(mid))
			if err != nil {
				return KeyNode{}, false, err
			}
			n, err := parseNK(cell)
			if err != nil {
				return KeyNode{}, false, err
			}
			return KeyNode{h: h, nk: n}, true, nil
		case target.Less(name):
			hi = mid - 1
		default:
			lo = mid + 1
		}
	}
	return KeyNode{}, false, nil
}

// searchIndexRoot implements the two-level search from spec §4.4: for each
// mid Index Root item, probe the first and last Key Node names of its
// referenced Leaf.
func (sl subkeyList) searchIndexRoot(h *Hive, target StringView) (KeyNode, bool, error) {
	lo, hi := 0, sl.count()-1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		leafCell, err := resolveCell(h.data, sl.itemOffset(mid))
		if err != nil {
			return KeyNode{}, false, err
		}
		leaf, err := parseSubkeyList(leafCell, false)
		if err != nil {
			return KeyNode{}, false, err
		}
		if leaf.count() == 0 {
			return KeyNode{}, false, &Error{Kind: KindInvalidSizeField, Offset: leafCell.Off, Msg: "empty leaf referenced from index root"}
		}

		first, err := leaf.name(h, 0)
		if err != nil {
			return KeyNode{}, false, err
		}
		if target.Equal(first) {
			return leaf.searchLeaf(h, target)
		}
		if target.Less(first) {
			hi = mid - 1
			continue
		}

		last, err := leaf.name(h, leaf.count()-1)
		if err != nil {
			return KeyNode{}, false, err
		}
		if target.Equal(last) {
			return leaf.searchLeaf(h, target)
		}
		if last.Less(target) {
			lo = mid + 1
			continue
		}

		// first < target < last: the target, if present, lies in this leaf.
		return leaf.searchLeaf(h, target)
	}
	return KeyNode{}, false, nil
}

// subkeyLeafItems is the flattened, random-access sequence of key-node
// offsets produced by walking every Leaf a subkeyList denotes (itself, for
// a plain Leaf; each referenced Leaf in stored order, for an Index Root).
type subkeyLeafItems struct {
	leaves []subkeyList
	starts []int
	total  int
}

// flatten resolves every Leaf reachable from sl, eagerly for an Index Root,
// so later random access resolves no cells: at() finds the containing Leaf
// by scanning the per-Leaf start indices, then indexes into it directly.
func (sl subkeyList) flatten(h *Hive) (subkeyLeafItems, error) {
	if sl.kind != kindRI {
		return subkeyLeafItems{leaves: []subkeyList{sl}, starts: []int{0}, total: sl.count()}, nil
	}

	n := sl.count()
	leaves := make([]subkeyList, 0, n)
	starts := make([]int, 0, n)
	total := 0
	for i := 0; i < n; i++ {
		cell, err := resolveCell(h.data, sl.itemOffset(i))
		if err != nil {
			return subkeyLeafItems{}, err
		}
		leaf, err := parseSubkeyList(cell, false)
		if err != nil {
			return subkeyLeafItems{}, err
		}
		starts = append(starts, total)
		leaves = append(leaves, leaf)
		total += leaf.count()
	}
	return subkeyLeafItems{leaves: leaves, starts: starts, total: total}, nil
}

func (it subkeyLeafItems) len() int { return it.total }

func (it subkeyLeafItems) at(i int) (uint32, error) {
	if i < 0 || i >= it.total {
		return 0, errors.New("hive: subkey index out of range")
	}
	for li := len(it.leaves) - 1; li >= 0; li-- {
		if i >= it.starts[li] {
			return it.leaves[li].itemOffset(i - it.starts[li]), nil
		}
	}
	return 0, errors.New("hive: subkey index out of range")
}
