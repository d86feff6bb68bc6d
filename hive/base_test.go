package hive

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/nthive/internal/format"
)

type regfOpts struct {
	seq1, seq2   uint32
	major, minor uint32
	typ, format_ uint32
	rootCellRel  uint32
	dataSize     uint32
	cluster      uint32
	mutate       func(h []byte)
}

func makeHeader(t *testing.T, o regfOpts) []byte {
	t.Helper()
	if o.dataSize == 0 {
		o.dataSize = 0x2000
	}
	if o.format_ == 0 {
		o.format_ = 1
	}
	if o.cluster == 0 {
		o.cluster = 1
	}

	h := make([]byte, format.HeaderSize)
	copy(h[format.REGFSignatureOffset:], format.REGFSignature)
	format.PutU32(h, format.REGFPrimarySeqOffset, o.seq1)
	format.PutU32(h, format.REGFSecondarySeqOffset, o.seq2)
	format.PutU32(h, format.REGFMajorVersionOffset, o.major)
	format.PutU32(h, format.REGFMinorVersionOffset, o.minor)
	format.PutU32(h, format.REGFTypeOffset, o.typ)
	format.PutU32(h, format.REGFFormatOffset, o.format_)
	format.PutU32(h, format.REGFRootCellOffset, o.rootCellRel)
	format.PutU32(h, format.REGFDataSizeOffset, o.dataSize)
	format.PutU32(h, format.REGFClusterOffset, o.cluster)

	if o.mutate != nil {
		o.mutate(h)
	}

	sum := regfChecksum(h[:format.REGFChecksumRegionLen])
	format.PutU32(h, format.REGFCheckSumOffset, sum)
	return h
}

func withFile(hdr []byte, dataSize uint32) []byte {
	f := make([]byte, format.HeaderSize+int(dataSize))
	copy(f, hdr)
	return f
}

func validOpts() regfOpts {
	return regfOpts{
		seq1: 7, seq2: 7,
		major: 1, minor: 5,
		rootCellRel: 0x1000,
		dataSize:    0x4000,
	}
}

func TestBaseBlockValidateOK(t *testing.T) {
	opts := validOpts()
	h := makeHeader(t, opts)
	whole := withFile(h, opts.dataSize)

	bb, err := ParseBaseBlock(whole)
	require.NoError(t, err)
	require.NoError(t, bb.Validate(len(whole)))
	require.True(t, bb.ChecksumOK())
	require.Equal(t, "regf", string(bb.Signature()))
	require.Equal(t, uint32(1), bb.Major())
	require.Equal(t, uint32(5), bb.Minor())
	require.Equal(t, uint32(0x1000), bb.RootCellOffset())
}

func TestBaseBlockValidateChecksumLeniency(t *testing.T) {
	for _, raw := range []uint32{checksumAllZeros, checksumAllOnes} {
		opts := validOpts()
		// Set a reserved dword so the header's raw XOR-32 is exactly raw,
		// the value that normalization replaces.
		opts.mutate = func(h []byte) {
			var xor uint32
			for i := 0; i < format.REGFChecksumDwords; i++ {
				xor ^= format.ReadU32(h, i*4)
			}
			format.PutU32(h, format.REGFReserved1Offset, xor^raw)
		}
		h := makeHeader(t, opts)
		whole := withFile(h, opts.dataSize)

		computed := regfChecksum(h[:format.REGFChecksumRegionLen])
		require.True(t, isUnnormalizedMatch(raw, computed))
		format.PutU32(whole, format.REGFCheckSumOffset, raw)
		bb, err := ParseBaseBlock(whole)
		require.NoError(t, err)
		require.NoError(t, bb.Validate(len(whole)))
	}
}

func TestBaseBlockValidateErrors(t *testing.T) {
	tests := []struct {
		name     string
		opts     regfOpts
		wantKind Kind
	}{
		{
			name: "bad-signature",
			opts: mutateOpts(validOpts(), func(h []byte) {
				copy(h[format.REGFSignatureOffset:], "bad!")
			}),
			wantKind: KindInvalidFourByteSignature,
		},
		{
			name:     "sequence-mismatch",
			opts:     regfOpts{seq1: 1, seq2: 2, major: 1, minor: 5, rootCellRel: 0x1000, dataSize: 0x1000},
			wantKind: KindSequenceNumberMismatch,
		},
		{
			name:     "unsupported-version",
			opts:     regfOpts{seq1: 1, seq2: 1, major: 1, minor: 2, rootCellRel: 0x1000, dataSize: 0x1000},
			wantKind: KindUnsupportedVersion,
		},
		{
			name:     "unsupported-file-type",
			opts:     regfOpts{seq1: 1, seq2: 1, major: 1, minor: 5, typ: 2, rootCellRel: 0x1000, dataSize: 0x1000},
			wantKind: KindUnsupportedFileType,
		},
		{
			name:     "unsupported-file-format",
			opts:     regfOpts{seq1: 1, seq2: 1, major: 1, minor: 5, format_: 2, rootCellRel: 0x1000, dataSize: 0x1000},
			wantKind: KindUnsupportedFileFormat,
		},
		{
			name:     "unsupported-cluster",
			opts:     regfOpts{seq1: 1, seq2: 1, major: 1, minor: 5, cluster: 2, rootCellRel: 0x1000, dataSize: 0x1000},
			wantKind: KindUnsupportedClusteringFactor,
		},
		{
			name:     "misaligned-data-size",
			opts:     regfOpts{seq1: 1, seq2: 1, major: 1, minor: 5, rootCellRel: 0x1000, dataSize: 0x1001},
			wantKind: KindInvalidDataSize,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := makeHeader(t, tc.opts)
			whole := withFile(h, tc.opts.dataSize+1)
			bb, err := ParseBaseBlock(whole)
			require.NoError(t, err)
			err = bb.Validate(len(whole))
			require.Error(t, err)
			var hErr *Error
			require.ErrorAs(t, err, &hErr)
			require.Equal(t, tc.wantKind, hErr.Kind)
		})
	}
}

func mutateOpts(o regfOpts, f func([]byte)) regfOpts {
	o.mutate = f
	return o
}
