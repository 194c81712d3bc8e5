package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteUint8(7)
	w.WriteUint32(1234)
	w.WriteUint64(9876543210)
	w.WriteString("hello")
	h := Sum([]byte("data"))
	w.WriteHash(h)
	link := Link{Codec: CodecNode, Hash: h, Format: FormatSingle}
	w.WriteLink(link)
	w.WriteOptionalLink(nil)
	w.WriteOptionalLink(&link)

	r := NewReader(w.Bytes())
	u8, err := r.ReadUint8()
	require.NoError(t, err)
	require.Equal(t, uint8(7), u8)

	u32, err := r.ReadUint32()
	require.NoError(t, err)
	require.Equal(t, uint32(1234), u32)

	u64, err := r.ReadUint64()
	require.NoError(t, err)
	require.Equal(t, uint64(9876543210), u64)

	s, err := r.ReadString()
	require.NoError(t, err)
	require.Equal(t, "hello", s)

	gotHash, err := r.ReadHash()
	require.NoError(t, err)
	require.Equal(t, h, gotHash)

	gotLink, err := r.ReadLink()
	require.NoError(t, err)
	require.Equal(t, link, gotLink)

	gotOpt1, err := r.ReadOptionalLink()
	require.NoError(t, err)
	require.Nil(t, gotOpt1)

	gotOpt2, err := r.ReadOptionalLink()
	require.NoError(t, err)
	require.Equal(t, link, *gotOpt2)

	require.True(t, r.Done())
}

func TestReaderRejectsTruncated(t *testing.T) {
	w := NewWriter()
	w.WriteString("a longer string than the truncation point")
	truncated := w.Bytes()[:5]

	r := NewReader(truncated)
	_, err := r.ReadString()
	require.Error(t, err)
}

func TestHashLessIsStrictWeakOrdering(t *testing.T) {
	a := Sum([]byte("a"))
	b := Sum([]byte("b"))
	require.NotEqual(t, a, b)
	require.True(t, a.Less(b) != b.Less(a))
}
