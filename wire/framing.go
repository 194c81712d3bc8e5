package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jaxbuckets/buckets/bucketerr"
)

// maxMessageLen bounds a single frame's body, guarding against a corrupt or
// hostile length prefix driving an oversized allocation.
const maxMessageLen = 16 << 20

// WriteMessage frames msg as command(1 byte) || length(4 bytes, LE) ||
// canonical-encoded body and writes it to w.
func WriteMessage(w io.Writer, msg Message) error {
	body := msg.Encode()
	frame := make([]byte, 0, 5+len(body))
	frame = append(frame, msg.Command())
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	frame = append(frame, lenBuf[:]...)
	frame = append(frame, body...)
	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("wire: write message: %w", err)
	}
	return nil
}

// ReadMessage reads one framed message from r. Unknown command bytes are
// rejected with ErrMalformed.
func ReadMessage(r io.Reader) (Message, error) {
	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("wire: read frame header: %w", err)
	}
	cmd := header[0]
	length := binary.LittleEndian.Uint32(header[1:])
	if length > maxMessageLen {
		return nil, fmt.Errorf("wire: frame length %d exceeds limit: %w", length, bucketerr.ErrMalformed)
	}

	msg := NewMessage(cmd)
	if msg == nil {
		return nil, fmt.Errorf("wire: unknown command byte %d: %w", cmd, bucketerr.ErrMalformed)
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("wire: read frame body: %w", err)
	}
	if err := msg.Decode(body); err != nil {
		return nil, err
	}
	return msg, nil
}
