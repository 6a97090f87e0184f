package port

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	bert "github.com/diodechain/erlport"
)

// HeaderSize is the width of the big-endian length that precedes every
// packet, matching an Erlang port opened with {packet, 4}.
const HeaderSize = 4

const maxPrealloc = 1 << 16

// ReadFrame reads one length-prefixed packet from r.
//
// It returns io.EOF when r ends before the first header byte, and an error
// wrapping bert.ErrTruncated when r ends anywhere inside a packet. A non-zero
// maxSize rejects larger packets with ErrMessageTooLarge before any payload
// is read.
func ReadFrame(r io.Reader, maxSize uint32) ([]byte, error) {
	var hdr [HeaderSize]byte
	n, err := io.ReadFull(r, hdr[:])
	if n == 0 && err == io.EOF {
		return nil, io.EOF
	}
	if err == io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("%w: length header after %d bytes", bert.ErrTruncated, n)
	}
	if err != nil {
		return nil, err
	}

	size := binary.BigEndian.Uint32(hdr[:])
	if maxSize > 0 && size > maxSize {
		return nil, fmt.Errorf("%w: %d > %d", ErrMessageTooLarge, size, maxSize)
	}
	return readPayload(r, size)
}

func readPayload(r io.Reader, size uint32) ([]byte, error) {
	if size <= maxPrealloc {
		payload := make([]byte, size)
		n, err := io.ReadFull(r, payload)
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: payload of %d bytes, got %d", bert.ErrTruncated, size, n)
		}
		return payload, err
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, int64(size)))
	if err != nil {
		return nil, err
	}
	if n < int64(size) {
		return nil, fmt.Errorf("%w: payload of %d bytes, got %d", bert.ErrTruncated, size, n)
	}
	return buf.Bytes(), nil
}

// WriteFrame writes payload behind its length header with a single Write.
func WriteFrame(w io.Writer, payload []byte) error {
	if uint64(len(payload)) > 1<<32-1 {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(payload))
	}
	buf := make([]byte, HeaderSize, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	_, err := w.Write(append(buf, payload...))
	return err
}
