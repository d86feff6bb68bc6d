package hive

import (
	"encoding/binary"

	"github.com/joshuapare/nthive/internal/format"
)

// RegType is a registry value's data type (spec §4.5). The set mirrors the
// Win32 REG_* constants; the resource-list variants (RegResourceList through
// RegResourceRequirementsList) are recognized but not specially decoded
// beyond raw bytes.
type RegType uint32

const (
	RegNone                     RegType = format.RegNone
	RegSZ                       RegType = format.RegSz
	RegExpandSZ                 RegType = format.RegExpandSz
	RegBinary                   RegType = format.RegBinary
	RegDWord                    RegType = format.RegDword
	RegDWordBigEndian           RegType = format.RegDwordBE
	RegLink                     RegType = format.RegLink
	RegMultiSZ                  RegType = format.RegMultiSz
	RegResourceList             RegType = 8
	RegFullResourceDescriptor   RegType = 9
	RegResourceRequirementsList RegType = 10
	RegQWord                    RegType = format.RegQword
)

func (t RegType) String() string {
	switch t {
	case RegNone:
		return "REG_NONE"
	case RegSZ:
		return "REG_SZ"
	case RegExpandSZ:
		return "REG_EXPAND_SZ"
	case RegBinary:
		return "REG_BINARY"
	case RegDWord:
		return "REG_DWORD"
	case RegDWordBigEndian:
		return "REG_DWORD_BIG_ENDIAN"
	case RegLink:
		return "REG_LINK"
	case RegMultiSZ:
		return "REG_MULTI_SZ"
	case RegResourceList:
		return "REG_RESOURCE_LIST"
	case RegFullResourceDescriptor:
		return "REG_FULL_RESOURCE_DESCRIPTOR"
	case RegResourceRequirementsList:
		return "REG_RESOURCE_REQUIREMENTS_LIST"
	case RegQWord:
		return "REG_QWORD"
	default:
		return "REG_UNKNOWN"
	}
}

// vk is the fixed-layout view over a "vk" cell payload's header fields.
type vk struct {
	body Cell
}

func parseVK(cell Cell) (vk, error) {
	if len(cell.Body) < format.SignatureSize || cell.Body[0] != 'v' || cell.Body[1] != 'k' {
		return vk{}, &Error{
			Kind:     KindInvalidTwoByteSignature,
			Offset:   cell.Off,
			Expected: format.VKSignature,
			Actual:   sigOrNil(cell.Body, 2),
		}
	}
	if len(cell.Body) < format.VKFixedHeaderSize {
		return vk{}, &Error{
			Kind:     KindInvalidHeaderSize,
			Offset:   cell.Off,
			Expected: format.VKFixedHeaderSize,
			Actual:   len(cell.Body),
		}
	}
	return vk{body: cell}, nil
}

func (v vk) nameLength() int        { return int(format.ReadU16(v.body.Body, format.VKNameLenOffset)) }
func (v vk) rawDataLength() uint32  { return format.ReadU32(v.body.Body, format.VKDataLenOffset) }
func (v vk) dataOffsetRaw() uint32  { return format.ReadU32(v.body.Body, format.VKDataOffOffset) }
func (v vk) dataType() uint32       { return format.ReadU32(v.body.Body, format.VKTypeOffset) }
func (v vk) flags() uint16          { return format.ReadU16(v.body.Body, format.VKFlagsOffset) }
func (v vk) isCompressedName() bool { return v.flags()&format.VKFlagNameCompressed != 0 }

// isInline reports whether the data is stored directly in the data-offset
// field (spec §4.5: DATA_STORED_IN_DATA_OFFSET, the high bit of data
// length, set when the value occupies at most 4 bytes).
func (v vk) isInline() bool { return v.rawDataLength()&format.VKDataInlineBit != 0 }

// dataLength is the actual byte count, with the inline-flag bit masked off.
func (v vk) dataLength() int { return int(v.rawDataLength() & format.VKDataLengthMask) }

func (v vk) nameBytes() ([]byte, error) {
	nl := v.nameLength()
	end := format.VKNameOffset + nl
	if end > len(v.body.Body) {
		return nil, &Error{
			Kind:     KindInvalidSizeField,
			Offset:   v.body.Off + format.VKNameLenOffset,
			Expected: nl,
			Actual:   len(v.body.Body) - format.VKNameOffset,
		}
	}
	return v.body.Body[format.VKNameOffset:end], nil
}

// KeyValue is the public, zero-copy view over a registry value.
type KeyValue struct {
	h  *Hive
	vk vk
}

// Name returns this value's name. The empty string denotes the key's
// unnamed ("default") value.
func (kv KeyValue) Name() (StringView, error) {
	raw, err := kv.vk.nameBytes()
	if err != nil {
		return StringView{}, err
	}
	if kv.vk.isCompressedName() {
		return latin1View(raw), nil
	}
	return utf16leView(raw), nil
}

// DataType returns the value's declared registry type, without validating
// it against the known REG_* range. Use checkedDataType for accessors that
// must reject unknown codes.
func (kv KeyValue) DataType() RegType { return RegType(kv.vk.dataType()) }

// checkedDataType returns the value's registry type, rejecting codes
// outside RegNone..RegQWord (spec §4.5: unknown codes yield an error, not a
// fallback), modeled on original_source's data_type/KeyValueDataType::n.
func (kv KeyValue) checkedDataType() (RegType, error) {
	t := kv.DataType()
	if t > RegQWord {
		return 0, &Error{
			Kind:   KindUnsupportedKeyValueDataType,
			Offset: kv.vk.body.Off + format.VKTypeOffset,
			Actual: uint32(t),
		}
	}
	return t, nil
}

// DataSize returns the value's declared data length in bytes.
func (kv KeyValue) DataSize() int { return kv.vk.dataLength() }

// Data returns the value's raw bytes, dispatching across the three storage
// forms from spec §4.5: inline (<=4 bytes, stored in the data-offset field
// itself), a single small cell (at most format.DBChunkSize bytes), or a Big
// Data ("db") record spanning multiple chunks.
func (kv KeyValue) Data() ([]byte, error) {
	n := kv.vk.dataLength()

	if kv.vk.isInline() {
		if n > 4 {
			return nil, &Error{
				Kind:     KindInvalidSizeField,
				Offset:   kv.vk.body.Off + format.VKDataLenOffset,
				Expected: 4,
				Actual:   n,
			}
		}
		var buf4 [4]byte
		binary.LittleEndian.PutUint32(buf4[:], kv.vk.dataOffsetRaw())
		return buf4[:n], nil
	}

	cell, err := resolveCell(kv.h.data, kv.vk.dataOffsetRaw())
	if err != nil {
		return nil, err
	}

	if n > format.DBChunkSize {
		return readBigData(kv.h, cell, n)
	}

	if n > len(cell.Body) {
		return nil, &Error{
			Kind:     KindInvalidDataSize,
			Offset:   cell.Off,
			Expected: n,
			Actual:   len(cell.Body),
		}
	}
	return cell.Body[:n], nil
}

// StringData decodes a REG_SZ or REG_EXPAND_SZ value, trimming one
// trailing NUL terminator if present (spec §4.5, §8 reg-sz scenario). Data
// is always UTF-16LE regardless of the value's name-compression flag; that
// flag governs only how the name (not the data) is encoded.
func (kv KeyValue) StringData() (StringView, error) {
	t, err := kv.checkedDataType()
	if err != nil {
		return StringView{}, err
	}
	if t != RegSZ && t != RegExpandSZ {
		return StringView{}, &Error{Kind: KindInvalidKeyValueDataType, Msg: "value is not REG_SZ or REG_EXPAND_SZ"}
	}
	raw, err := kv.Data()
	if err != nil {
		return StringView{}, err
	}
	return utf16leView(trimTrailingNUL16(raw)), nil
}

// MultiStringData decodes a REG_MULTI_SZ value into its component strings.
// Each string is NUL-terminated; the list itself ends at the first empty
// string (spec §4.5, §8 reg-multi-sz scenario). Data is always UTF-16LE,
// independent of the value's name-compression flag.
func (kv KeyValue) MultiStringData() ([]StringView, error) {
	t, err := kv.checkedDataType()
	if err != nil {
		return nil, err
	}
	if t != RegMultiSZ {
		return nil, &Error{Kind: KindInvalidKeyValueDataType, Msg: "value is not REG_MULTI_SZ"}
	}
	raw, err := kv.Data()
	if err != nil {
		return nil, err
	}
	return splitUTF16(raw), nil
}

// DWordData decodes a REG_DWORD or REG_DWORD_BIG_ENDIAN value.
func (kv KeyValue) DWordData() (uint32, error) {
	t, err := kv.checkedDataType()
	if err != nil {
		return 0, err
	}
	if t != RegDWord && t != RegDWordBigEndian {
		return 0, &Error{Kind: KindInvalidKeyValueDataType, Msg: "value is not REG_DWORD or REG_DWORD_BIG_ENDIAN"}
	}
	raw, err := kv.Data()
	if err != nil {
		return 0, err
	}
	if len(raw) != 4 {
		return 0, &Error{Kind: KindInvalidSizeField, Expected: 4, Actual: len(raw)}
	}
	if t == RegDWordBigEndian {
		return binary.BigEndian.Uint32(raw), nil
	}
	return binary.LittleEndian.Uint32(raw), nil
}

// QWordData decodes a REG_QWORD value.
func (kv KeyValue) QWordData() (uint64, error) {
	t, err := kv.checkedDataType()
	if err != nil {
		return 0, err
	}
	if t != RegQWord {
		return 0, &Error{Kind: KindInvalidKeyValueDataType, Msg: "value is not REG_QWORD"}
	}
	raw, err := kv.Data()
	if err != nil {
		return 0, err
	}
	if len(raw) != 8 {
		return 0, &Error{Kind: KindInvalidSizeField, Expected: 8, Actual: len(raw)}
	}
	return binary.LittleEndian.Uint64(raw), nil
}

func trimTrailingNUL16(b []byte) []byte {
	if len(b) >= 2 && b[len(b)-2] == 0 && b[len(b)-1] == 0 {
		return b[:len(b)-2]
	}
	return b
}

// splitUTF16 splits a REG_MULTI_SZ buffer into its component strings. Each
// string is terminated by a UTF-16 NUL; the list itself ends at the first
// empty string (an immediate NUL-pair with nothing accumulated since the
// previous terminator), per spec §4.5 rather than skipping past it.
func splitUTF16(raw []byte) []StringView {
	var out []StringView
	start := 0
	n := len(raw) - len(raw)%2
	for i := 0; i+1 < n; i += 2 {
		if raw[i] == 0 && raw[i+1] == 0 {
			if i == start {
				return out
			}
			out = append(out, utf16leView(raw[start:i]))
			start = i + 2
		}
	}
	if start < n {
		out = append(out, utf16leView(raw[start:n]))
	}
	return out
}

// valueList is a zero-copy view over a Key Value list cell: a flat array
// of uint32 value-cell offsets (no signature or count header of its own;
// the count comes from the owning Key Node).
type valueList struct {
	body  []byte
	off   int
	count int
}

func parseValueList(cell Cell, count int) (valueList, error) {
	need := count * 4
	if len(cell.Body) < need {
		return valueList{}, &Error{
			Kind:     KindInvalidSizeField,
			Offset:   cell.Off,
			Expected: need,
			Actual:   len(cell.Body),
		}
	}
	return valueList{body: cell.Body, off: cell.Off, count: count}, nil
}

func (vl valueList) at(i int) (uint32, error) {
	if i < 0 || i >= vl.count {
		return 0, &Error{Kind: KindInvalidSizeField, Offset: vl.off, Msg: "value list index out of range"}
	}
	return format.ReadU32(vl.body, i*4), nil
}

// keyValueAt resolves the Key Value referenced by a value-cell offset.
func (h *Hive) keyValueAt(offset uint32) (KeyValue, error) {
	cell, err := resolveCell(h.data, offset)
	if err != nil {
		return KeyValue{}, err
	}
	v, err := parseVK(cell)
	if err != nil {
		return KeyValue{}, err
	}
	return KeyValue{h: h, vk: v}, nil
}
