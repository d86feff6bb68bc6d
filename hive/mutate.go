package hive

import (
	"github.com/joshuapare/nthive/internal/format"
)

// maxClearDepth bounds the recursion in ClearVolatileSubkeys against a
// cyclic or pathologically deep subkey tree in an untrusted hive.
const maxClearDepth = 512

// ClearVolatileSubkeys recursively zeroes the volatile-subkey count of the
// root key and every subkey beneath it, in pre-order: a node's own count is
// cleared before its subkeys are visited. Live registry hives track
// volatile (non-persistent) subkeys with an in-memory count that is
// meaningless once the hive is written back to disk; a loader that trusts
// a stale nonzero count can misbehave. The hive buffer is mutated in
// place, so the caller must hold exclusive access to it for the duration
// of the call.
func (h *Hive) ClearVolatileSubkeys() error {
	root, err := h.RootKeyNode()
	if err != nil {
		return err
	}
	return clearVolatileRec(root, 0)
}

func clearVolatileRec(k KeyNode, depth int) error {
	if depth > maxClearDepth {
		return &Error{Kind: KindInvalidDataSize, Msg: "subkey tree exceeds depth limit"}
	}

	fieldOff := k.nk.body.Off + format.NKVolSubkeyCountOffset
	format.PutU32(k.h.data, fieldOff, 0)

	iter, found, err := k.Subkeys()
	if err != nil || !found {
		return err
	}
	for {
		child, ok, err := iter.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		// Re-resolve the child's cell: iter.Next already gives a fresh view
		// backed by the live buffer, so no re-acquisition is needed beyond
		// that per-call parse.
		if err := clearVolatileRec(child, depth+1); err != nil {
			return err
		}
	}
}
