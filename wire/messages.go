package wire

import (
	"fmt"

	"github.com/jaxbuckets/buckets/bucketdag"
	"github.com/jaxbuckets/buckets/bucketerr"
	"github.com/jaxbuckets/buckets/codec"
)

// Message is implemented by every peer protocol message. Encode/Decode
// work over the shared canonical codec, mirroring the teacher's
// BtcEncode/BtcDecode pair per message type, simplified to byte slices
// since every message here is small and fully buffered before framing.
type Message interface {
	Command() uint8
	Encode() []byte
	Decode(b []byte) error
}

// MsgPing asks the responder to compare its current link for BucketID
// against CurrentLink (nil if the caller has no local copy yet).
type MsgPing struct {
	BucketID    bucketdag.BucketID
	CurrentLink *codec.Link
}

func (m *MsgPing) Command() uint8 { return CmdPing }

func (m *MsgPing) Encode() []byte {
	w := codec.NewWriter()
	w.WriteBytes(m.BucketID[:])
	w.WriteOptionalLink(m.CurrentLink)
	return w.Bytes()
}

func (m *MsgPing) Decode(b []byte) error {
	r := codec.NewReader(b)
	idBytes, err := r.ReadBytes()
	if err != nil {
		return err
	}
	if len(idBytes) != 16 {
		return fmt.Errorf("wire: ping bucket id must be 16 bytes: %w", bucketerr.ErrMalformed)
	}
	copy(m.BucketID[:], idBytes)
	m.CurrentLink, err = r.ReadOptionalLink()
	if err != nil {
		return err
	}
	if !r.Done() {
		return fmt.Errorf("wire: trailing bytes after ping: %w", bucketerr.ErrMalformed)
	}
	return nil
}

// MsgPingResp answers a MsgPing with the responder's view of the bucket.
type MsgPingResp struct {
	Status Status
}

func (m *MsgPingResp) Command() uint8 { return CmdPingResp }

func (m *MsgPingResp) Encode() []byte {
	w := codec.NewWriter()
	w.WriteUint8(uint8(m.Status))
	return w.Bytes()
}

func (m *MsgPingResp) Decode(b []byte) error {
	r := codec.NewReader(b)
	status, err := r.ReadUint8()
	if err != nil {
		return err
	}
	m.Status = Status(status)
	if !r.Done() {
		return fmt.Errorf("wire: trailing bytes after pingresp: %w", bucketerr.ErrMalformed)
	}
	return nil
}

// MsgFetchBucket asks the responder for its current link for BucketID.
type MsgFetchBucket struct {
	BucketID bucketdag.BucketID
}

func (m *MsgFetchBucket) Command() uint8 { return CmdFetchBucket }

func (m *MsgFetchBucket) Encode() []byte {
	w := codec.NewWriter()
	w.WriteBytes(m.BucketID[:])
	return w.Bytes()
}

func (m *MsgFetchBucket) Decode(b []byte) error {
	r := codec.NewReader(b)
	idBytes, err := r.ReadBytes()
	if err != nil {
		return err
	}
	if len(idBytes) != 16 {
		return fmt.Errorf("wire: fetchbucket bucket id must be 16 bytes: %w", bucketerr.ErrMalformed)
	}
	copy(m.BucketID[:], idBytes)
	if !r.Done() {
		return fmt.Errorf("wire: trailing bytes after fetchbucket: %w", bucketerr.ErrMalformed)
	}
	return nil
}

// MsgFetchBucketResp answers a MsgFetchBucket. CurrentLink is nil if the
// responder has no record of the bucket.
type MsgFetchBucketResp struct {
	CurrentLink *codec.Link
}

func (m *MsgFetchBucketResp) Command() uint8 { return CmdFetchBucketResp }

func (m *MsgFetchBucketResp) Encode() []byte {
	w := codec.NewWriter()
	w.WriteOptionalLink(m.CurrentLink)
	return w.Bytes()
}

func (m *MsgFetchBucketResp) Decode(b []byte) error {
	r := codec.NewReader(b)
	link, err := r.ReadOptionalLink()
	if err != nil {
		return err
	}
	m.CurrentLink = link
	if !r.Done() {
		return fmt.Errorf("wire: trailing bytes after fetchbucketresp: %w", bucketerr.ErrMalformed)
	}
	return nil
}

// MsgAnnounce is fire-and-forget: no response is expected. PreviousLink is
// nil when NewLink is a genesis manifest.
type MsgAnnounce struct {
	BucketID     bucketdag.BucketID
	NewLink      codec.Link
	PreviousLink *codec.Link
}

func (m *MsgAnnounce) Command() uint8 { return CmdAnnounce }

func (m *MsgAnnounce) Encode() []byte {
	w := codec.NewWriter()
	w.WriteBytes(m.BucketID[:])
	w.WriteLink(m.NewLink)
	w.WriteOptionalLink(m.PreviousLink)
	return w.Bytes()
}

func (m *MsgAnnounce) Decode(b []byte) error {
	r := codec.NewReader(b)
	idBytes, err := r.ReadBytes()
	if err != nil {
		return err
	}
	if len(idBytes) != 16 {
		return fmt.Errorf("wire: announce bucket id must be 16 bytes: %w", bucketerr.ErrMalformed)
	}
	copy(m.BucketID[:], idBytes)
	m.NewLink, err = r.ReadLink()
	if err != nil {
		return err
	}
	m.PreviousLink, err = r.ReadOptionalLink()
	if err != nil {
		return err
	}
	if !r.Done() {
		return fmt.Errorf("wire: trailing bytes after announce: %w", bucketerr.ErrMalformed)
	}
	return nil
}

// MsgFetchBlob asks the responder for the raw bytes addressed by Link,
// the single-blob counterpart to MsgFetchBucket - blobnet's entire
// protocol surface, deliberately excluding any bulk-replication or
// range-fetch operation (out of scope per spec.md §1).
type MsgFetchBlob struct {
	Link codec.Link
}

func (m *MsgFetchBlob) Command() uint8 { return CmdFetchBlob }

func (m *MsgFetchBlob) Encode() []byte {
	w := codec.NewWriter()
	w.WriteLink(m.Link)
	return w.Bytes()
}

func (m *MsgFetchBlob) Decode(b []byte) error {
	r := codec.NewReader(b)
	link, err := r.ReadLink()
	if err != nil {
		return err
	}
	m.Link = link
	if !r.Done() {
		return fmt.Errorf("wire: trailing bytes after fetchblob: %w", bucketerr.ErrMalformed)
	}
	return nil
}

// MsgFetchBlobResp answers a MsgFetchBlob. Found is false when the
// responder does not hold the requested blob; Data is empty in that case.
type MsgFetchBlobResp struct {
	Found bool
	Data  []byte
}

func (m *MsgFetchBlobResp) Command() uint8 { return CmdFetchBlobResp }

func (m *MsgFetchBlobResp) Encode() []byte {
	w := codec.NewWriter()
	found := uint8(0)
	if m.Found {
		found = 1
	}
	w.WriteUint8(found)
	w.WriteBytes(m.Data)
	return w.Bytes()
}

func (m *MsgFetchBlobResp) Decode(b []byte) error {
	r := codec.NewReader(b)
	found, err := r.ReadUint8()
	if err != nil {
		return err
	}
	m.Found = found != 0
	m.Data, err = r.ReadBytes()
	if err != nil {
		return err
	}
	if !r.Done() {
		return fmt.Errorf("wire: trailing bytes after fetchblobresp: %w", bucketerr.ErrMalformed)
	}
	return nil
}

// NewMessage returns a zero-valued Message for cmd, or nil if cmd is
// unknown.
func NewMessage(cmd uint8) Message {
	switch cmd {
	case CmdPing:
		return &MsgPing{}
	case CmdPingResp:
		return &MsgPingResp{}
	case CmdFetchBucket:
		return &MsgFetchBucket{}
	case CmdFetchBucketResp:
		return &MsgFetchBucketResp{}
	case CmdAnnounce:
		return &MsgAnnounce{}
	case CmdFetchBlob:
		return &MsgFetchBlob{}
	case CmdFetchBlobResp:
		return &MsgFetchBlobResp{}
	default:
		return nil
	}
}
