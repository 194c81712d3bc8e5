package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/jaxbuckets/buckets/bucketerr"
)

// Writer builds a canonical structured-binary encoding: every variable
// length field is a uint32 (little-endian) length prefix followed by its
// bytes, every fixed integer is little-endian, and map-shaped values are
// written as a count followed by entries already sorted by the caller
// (Reader does not re-sort; canonicality is the writer's responsibility).
// This one writer backs Manifest and Node encoding and the peer
// protocol's wire messages (Pins is a raw concatenation of hashes and does
// not use it) - one wire format, many schemas, matching how
// the teacher's wire package lets every message type share one frame.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the encoded output built so far.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// WriteUint8 appends a single byte.
func (w *Writer) WriteUint8(v uint8) {
	w.buf.WriteByte(v)
}

// WriteUint32 appends a little-endian uint32.
func (w *Writer) WriteUint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// WriteUint64 appends a little-endian uint64.
func (w *Writer) WriteUint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// WriteBytes appends a uint32 length prefix followed by b.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteUint32(uint32(len(b)))
	w.buf.Write(b)
}

// WriteString appends s as a length-prefixed UTF-8 byte string.
func (w *Writer) WriteString(s string) {
	w.WriteBytes([]byte(s))
}

// WriteHash appends the 32 raw hash bytes (no length prefix; fixed size).
func (w *Writer) WriteHash(h Hash) {
	w.buf.Write(h[:])
}

// WriteLink appends a Link's (codec, hash, format) triple.
func (w *Writer) WriteLink(l Link) {
	w.WriteUint8(uint8(l.Codec))
	w.WriteHash(l.Hash)
	w.WriteUint8(uint8(l.Format))
}

// WriteOptionalLink appends a presence byte followed by the link if present.
func (w *Writer) WriteOptionalLink(l *Link) {
	if l == nil {
		w.WriteUint8(0)
		return
	}
	w.WriteUint8(1)
	w.WriteLink(*l)
}

// Reader consumes a canonical structured-binary encoding produced by Writer.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps b for sequential reads.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Done reports whether every byte has been consumed. Callers should check
// Done after decoding a top-level value; trailing bytes mean the input was
// not produced by this codec.
func (r *Reader) Done() bool {
	return r.pos == len(r.buf)
}

func (r *Reader) need(n int) error {
	if len(r.buf)-r.pos < n {
		return fmt.Errorf("codec: need %d bytes, have %d: %w", n, len(r.buf)-r.pos, bucketerr.ErrMalformed)
	}
	return nil
}

// ReadUint8 reads a single byte.
func (r *Reader) ReadUint8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

// ReadUint32 reads a little-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadUint64 reads a little-endian uint64.
func (r *Reader) ReadUint64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

// maxFieldLen bounds a single length-prefixed field to guard against a
// corrupt or hostile length prefix driving a multi-gigabyte allocation.
const maxFieldLen = 64 << 20

// ReadBytes reads a uint32 length prefix followed by that many bytes.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if n > maxFieldLen {
		return nil, fmt.Errorf("codec: field length %d exceeds limit: %w", n, bucketerr.ErrMalformed)
	}
	if err := r.need(int(n)); err != nil {
		return nil, err
	}
	v := make([]byte, n)
	copy(v, r.buf[r.pos:r.pos+int(n)])
	r.pos += int(n)
	return v, nil
}

// ReadString reads a length-prefixed UTF-8 byte string.
func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadBytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadHash reads 32 raw hash bytes.
func (r *Reader) ReadHash() (Hash, error) {
	if err := r.need(HashSize); err != nil {
		return Hash{}, err
	}
	var h Hash
	copy(h[:], r.buf[r.pos:r.pos+HashSize])
	r.pos += HashSize
	return h, nil
}

// ReadLink reads a Link's (codec, hash, format) triple.
func (r *Reader) ReadLink() (Link, error) {
	c, err := r.ReadUint8()
	if err != nil {
		return Link{}, err
	}
	h, err := r.ReadHash()
	if err != nil {
		return Link{}, err
	}
	f, err := r.ReadUint8()
	if err != nil {
		return Link{}, err
	}
	return Link{Codec: Codec(c), Hash: h, Format: Format(f)}, nil
}

// ReadOptionalLink reads a presence byte and, if set, a Link.
func (r *Reader) ReadOptionalLink() (*Link, error) {
	present, err := r.ReadUint8()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	l, err := r.ReadLink()
	if err != nil {
		return nil, err
	}
	return &l, nil
}
