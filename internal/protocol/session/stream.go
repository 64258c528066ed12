package session

import (
	"errors"
	"fmt"
	"io"
)

// ErrTruncated reports a record cut off mid-stream: the reader saw at least
// one byte of the record but the connection ended before width bytes arrived.
var ErrTruncated = errors.New("session: truncated record")

// ReadRecord reads exactly width bytes into a fresh slice. A clean io.EOF
// before the first byte means the peer finished the stream; io.EOF after a
// partial record is reported as ErrTruncated.
func ReadRecord(r io.Reader, width int) ([]byte, error) {
	buf := make([]byte, width)
	if err := readRecordInto(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// ReadRecordInto is ReadRecord without the allocation: it fills the caller's
// scratch slice, whose length picks the record width. The scratch bytes are
// only valid until the next call on the same slice.
func ReadRecordInto(r io.Reader, scratch []byte) error {
	return readRecordInto(r, scratch)
}

func readRecordInto(r io.Reader, buf []byte) error {
	if len(buf) == 0 {
		return fmt.Errorf("session: record width must be positive")
	}
	n, err := io.ReadFull(r, buf)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		return fmt.Errorf("%w: read %d of %d bytes", ErrTruncated, n, len(buf))
	default:
		// io.ReadFull reports io.EOF only when zero bytes arrived, which is
		// the peer closing the stream between records.
		return err
	}
}
