package wire

import (
	"testing"

	"github.com/scanworks/scanhead-client/internal/scanerr"
	"github.com/stretchr/testify/require"
)

func TestReaderWriterRoundTrip(t *testing.T) {
	w := NewWriter()
	w.PutU8(0xAB)
	w.PutU16(0x1234)
	w.PutI32(-1000)
	w.PutU64(1<<40 + 7)
	w.PutI64(-42)

	r := NewReader(w.Bytes())
	u8, err := r.U8()
	require.NoError(t, err)
	require.Equal(t, uint8(0xAB), u8)

	u16, err := r.U16()
	require.NoError(t, err)
	require.Equal(t, uint16(0x1234), u16)

	i32, err := r.I32()
	require.NoError(t, err)
	require.Equal(t, int32(-1000), i32)

	u64, err := r.U64()
	require.NoError(t, err)
	require.Equal(t, uint64(1<<40+7), u64)

	i64, err := r.I64()
	require.NoError(t, err)
	require.Equal(t, int64(-42), i64)
}

func TestReaderOutOfRangeIsBadPacket(t *testing.T) {
	r := NewReader([]byte{0x01})
	_, err := r.U32()
	require.Error(t, err)
	require.True(t, scanerr.Is(err, scanerr.BadPacket))
}
