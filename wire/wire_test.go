package wire

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jaxbuckets/buckets/bucketdag"
	"github.com/jaxbuckets/buckets/codec"
)

func sampleLink() codec.Link {
	return codec.Link{Codec: codec.CodecManifest, Hash: codec.Sum([]byte("x")), Format: codec.FormatSingle}
}

func TestMsgPingRoundTrip(t *testing.T) {
	link := sampleLink()
	in := &MsgPing{BucketID: bucketdag.BucketID{1, 2, 3}, CurrentLink: &link}
	out := &MsgPing{}
	require.NoError(t, out.Decode(in.Encode()))
	require.Equal(t, in, out)
}

func TestMsgPingRoundTripNilLink(t *testing.T) {
	in := &MsgPing{BucketID: bucketdag.BucketID{9}}
	out := &MsgPing{}
	require.NoError(t, out.Decode(in.Encode()))
	require.Equal(t, in, out)
}

func TestMsgAnnounceRoundTrip(t *testing.T) {
	link := sampleLink()
	prev := sampleLink()
	in := &MsgAnnounce{BucketID: bucketdag.BucketID{4, 5}, NewLink: link, PreviousLink: &prev}
	out := &MsgAnnounce{}
	require.NoError(t, out.Decode(in.Encode()))
	require.Equal(t, in, out)
}

func TestMsgFetchBlobRoundTrip(t *testing.T) {
	link := sampleLink()
	in := &MsgFetchBlob{Link: link}
	out := &MsgFetchBlob{}
	require.NoError(t, out.Decode(in.Encode()))
	require.Equal(t, in, out)
}

func TestMsgFetchBlobRespRoundTrip(t *testing.T) {
	in := &MsgFetchBlobResp{Found: true, Data: []byte("payload")}
	out := &MsgFetchBlobResp{}
	require.NoError(t, out.Decode(in.Encode()))
	require.Equal(t, in, out)
}

func TestMsgFetchBlobRespRoundTripNotFound(t *testing.T) {
	in := &MsgFetchBlobResp{Found: false}
	out := &MsgFetchBlobResp{}
	require.NoError(t, out.Decode(in.Encode()))
	require.Equal(t, false, out.Found)
	require.Empty(t, out.Data)
}

func TestCommandName(t *testing.T) {
	require.Equal(t, "fetchblob", CommandName(CmdFetchBlob))
	require.Equal(t, "unknown", CommandName(0xff))
}

func TestWriteReadMessageFraming(t *testing.T) {
	var buf bytes.Buffer
	ping := &MsgPing{BucketID: bucketdag.BucketID{7}}
	require.NoError(t, WriteMessage(&buf, ping))

	resp := &MsgFetchBucketResp{}
	require.NoError(t, WriteMessage(&buf, resp))

	got1, err := ReadMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, CmdPing, got1.Command())

	got2, err := ReadMessage(&buf)
	require.NoError(t, err)
	require.Equal(t, CmdFetchBucketResp, got2.Command())
}

func TestReadMessageRejectsUnknownCommand(t *testing.T) {
	var buf bytes.Buffer
	buf.WriteByte(0xff)
	buf.Write([]byte{0, 0, 0, 0})
	_, err := ReadMessage(&buf)
	require.Error(t, err)
}

func TestStatusString(t *testing.T) {
	require.Equal(t, "ahead", StatusAhead.String())
	require.Equal(t, "unknown", Status(0).String())
}
