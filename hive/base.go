package hive

import (
	"bytes"

	"github.com/joshuapare/nthive/internal/format"
)

const (
	checksumAllOnes             = 0xFFFFFFFF
	checksumAllOnesReplacement  = 0xFFFFFFFE
	checksumAllZeros            = 0x00000000
	checksumAllZerosReplacement = 0x00000001
)

// BaseBlock is a zero-copy view over the 4096-byte REGF header.
type BaseBlock struct {
	raw []byte // exactly format.HeaderSize bytes
}

// ParseBaseBlock wraps the first format.HeaderSize bytes of b as a BaseBlock.
// It does not validate anything beyond having enough bytes; use Validate for
// the full set of structural checks.
func ParseBaseBlock(b []byte) (*BaseBlock, error) {
	if len(b) < format.HeaderSize {
		return nil, &Error{
			Kind:     KindInvalidHeaderSize,
			Offset:   0,
			Expected: format.HeaderSize,
			Actual:   len(b),
		}
	}
	return &BaseBlock{raw: b[:format.HeaderSize]}, nil
}

func (bb *BaseBlock) Signature() []byte {
	return bb.raw[format.REGFSignatureOffset : format.REGFSignatureOffset+format.REGFSignatureSize]
}

func (bb *BaseBlock) Sequence1() uint32 { return format.ReadU32(bb.raw, format.REGFPrimarySeqOffset) }
func (bb *BaseBlock) Sequence2() uint32 { return format.ReadU32(bb.raw, format.REGFSecondarySeqOffset) }

func (bb *BaseBlock) Major() uint32 { return format.ReadU32(bb.raw, format.REGFMajorVersionOffset) }
func (bb *BaseBlock) Minor() uint32 { return format.ReadU32(bb.raw, format.REGFMinorVersionOffset) }

func (bb *BaseBlock) FileType() uint32   { return format.ReadU32(bb.raw, format.REGFTypeOffset) }
func (bb *BaseBlock) FileFormat() uint32 { return format.ReadU32(bb.raw, format.REGFFormatOffset) }

func (bb *BaseBlock) RootCellOffset() uint32 {
	return format.ReadU32(bb.raw, format.REGFRootCellOffset)
}

func (bb *BaseBlock) DataSize() uint32 { return format.ReadU32(bb.raw, format.REGFDataSizeOffset) }
func (bb *BaseBlock) Cluster() uint32  { return format.ReadU32(bb.raw, format.REGFClusterOffset) }

func (bb *BaseBlock) StoredChecksum() uint32 {
	return format.ReadU32(bb.raw, format.REGFCheckSumOffset)
}

// ChecksumOK reports whether the stored checksum matches the normalized
// XOR-32 of the first 508 bytes. Used by callers that want strict checking
// beyond Validate's read leniency (spec §9 Open Question (b)).
func (bb *BaseBlock) ChecksumOK() bool {
	return bb.StoredChecksum() == regfChecksum(bb.raw[:format.REGFChecksumRegionLen])
}

// Validate runs the 8-step base-block validation from spec §4.2, failing on
// the first mismatch with a precise, offset-carrying error. fileSize is the
// full hive buffer length, used to bound the cell area.
func (bb *BaseBlock) Validate(fileSize int) error {
	if !bytes.Equal(bb.Signature(), format.REGFSignature) {
		return &Error{
			Kind:     KindInvalidFourByteSignature,
			Offset:   format.REGFSignatureOffset,
			Expected: format.REGFSignature,
			Actual:   append([]byte(nil), bb.Signature()...),
		}
	}

	if s1, s2 := bb.Sequence1(), bb.Sequence2(); s1 != s2 {
		return &Error{
			Kind:     KindSequenceNumberMismatch,
			Offset:   format.REGFPrimarySeqOffset,
			Expected: s1,
			Actual:   s2,
		}
	}

	major, minor := bb.Major(), bb.Minor()
	if major != 1 || minor < 3 {
		return &Error{
			Kind:     KindUnsupportedVersion,
			Offset:   format.REGFMajorVersionOffset,
			Expected: "1.>=3",
			Actual:   []uint32{major, minor},
		}
	}

	if ft := bb.FileType(); ft != 0 {
		return &Error{Kind: KindUnsupportedFileType, Offset: format.REGFTypeOffset, Expected: uint32(0), Actual: ft}
	}

	if ff := bb.FileFormat(); ff != 1 {
		return &Error{Kind: KindUnsupportedFileFormat, Offset: format.REGFFormatOffset, Expected: uint32(1), Actual: ff}
	}

	dataSize := bb.DataSize()
	cellAreaLen := fileSize - format.HeaderSize
	if dataSize%format.HeaderSize != 0 || cellAreaLen < 0 || int(dataSize) > cellAreaLen {
		return &Error{
			Kind:     KindInvalidDataSize,
			Offset:   format.REGFDataSizeOffset,
			Expected: cellAreaLen,
			Actual:   dataSize,
		}
	}

	if cl := bb.Cluster(); cl != 1 {
		return &Error{Kind: KindUnsupportedClusteringFactor, Offset: format.REGFClusterOffset, Expected: uint32(1), Actual: cl}
	}

	// Checksum: accept either the normalized or the raw (non-normalized)
	// stored value on read, per spec §9 Open Question (b).
	computed := regfChecksum(bb.raw[:format.REGFChecksumRegionLen])
	stored := bb.StoredChecksum()
	if stored != computed && !isUnnormalizedMatch(stored, computed) {
		return &Error{Kind: KindInvalidChecksum, Offset: format.REGFCheckSumOffset, Expected: computed, Actual: stored}
	}

	return nil
}

// isUnnormalizedMatch reports whether stored is the pre-normalization form
// of computed (i.e. stored was 0 or 0xFFFFFFFF before normalization).
func isUnnormalizedMatch(stored, computed uint32) bool {
	switch computed {
	case checksumAllZerosReplacement:
		return stored == checksumAllZeros
	case checksumAllOnesReplacement:
		return stored == checksumAllOnes
	default:
		return false
	}
}

// regfChecksum computes the XOR-32 of 127 little-endian dwords (508 bytes),
// normalizing 0 to 1 and 0xFFFFFFFF to 0xFFFFFFFE (spec §4.2 item 8).
func regfChecksum(head508 []byte) uint32 {
	var xor uint32
	for i := 0; i < format.REGFChecksumDwords; i++ {
		xor ^= format.ReadU32(head508, i*4)
	}
	switch xor {
	case checksumAllOnes:
		return checksumAllOnesReplacement
	case checksumAllZeros:
		return checksumAllZerosReplacement
	default:
		return xor
	}
}
