package hive

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/nthive/internal/format"
)

func TestResolveCellOK(t *testing.T) {
	arena := newCellArena(0x100)
	payload := []byte("hello, registry")
	arena.put(0x20, payload)

	cell, err := resolveCell(arena.bytes(), 0x20)
	require.NoError(t, err)
	require.True(t, len(cell.Body) >= len(payload))
	require.Equal(t, payload, cell.Body[:len(payload)])
}

func TestResolveCellUnallocated(t *testing.T) {
	buf := make([]byte, format.HeaderSize+0x100)
	format.PutI32(buf, format.HeaderSize+0x20, 32) // positive size: free cell

	_, err := resolveCell(buf, 0x20)
	require.Error(t, err)
	var hErr *Error
	require.ErrorAs(t, err, &hErr)
	require.Equal(t, KindUnallocatedCell, hErr.Kind)
}

func TestResolveCellMisaligned(t *testing.T) {
	buf := make([]byte, format.HeaderSize+0x100)
	format.PutI32(buf, format.HeaderSize+0x20, -17) // negative, not a multiple of 8

	_, err := resolveCell(buf, 0x20)
	require.Error(t, err)
	var hErr *Error
	require.ErrorAs(t, err, &hErr)
	require.Equal(t, KindInvalidSizeFieldAlignment, hErr.Kind)
}

func TestResolveCellTruncatedBody(t *testing.T) {
	buf := make([]byte, format.HeaderSize+0x10)
	// Declares a 64-byte cell but the buffer doesn't have room for the body.
	format.PutI32(buf, format.HeaderSize+0x04, -64)

	_, err := resolveCell(buf, 0x04)
	require.Error(t, err)
	var hErr *Error
	require.ErrorAs(t, err, &hErr)
	require.Equal(t, KindInvalidDataSize, hErr.Kind)
}

func TestResolveCellTruncatedHeader(t *testing.T) {
	buf := make([]byte, format.HeaderSize+2) // not enough for the 4-byte cell header

	_, err := resolveCell(buf, 0)
	require.Error(t, err)
	var hErr *Error
	require.ErrorAs(t, err, &hErr)
	require.Equal(t, KindInvalidHeaderSize, hErr.Kind)
}
