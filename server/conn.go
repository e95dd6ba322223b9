package server

import (
	"fmt"
	"io"
	"net"

	"github.com/onestore/picokv/resp"
)

const initialBufSize = 4096

// connReader accumulates bytes read from a TCP stream into a growable
// buffer and hands complete frames to the caller, one at a time. It
// does no decoding itself beyond driving resp.Decode's need-more-data
// loop.
type connReader struct {
	conn net.Conn
	buf  []byte
}

func newConnReader(conn net.Conn) *connReader {
	return &connReader{conn: conn, buf: make([]byte, 0, initialBufSize)}
}

// readFrame returns the next decoded frame, reading more bytes from
// the connection as needed. It reports io.EOF when a read returns zero
// bytes, whether or not a partial frame is still buffered.
func (r *connReader) readFrame() (resp.Value, error) {
	for {
		if len(r.buf) > 0 {
			v, consumed, err := resp.Decode(r.buf)
			if err == nil {
				r.buf = r.buf[consumed:]
				return v, nil
			}
			if err != resp.ErrNeedMore {
				return resp.Value{}, fmt.Errorf("server: decode: %w", err)
			}
		}

		chunk := make([]byte, initialBufSize)
		n, err := r.conn.Read(chunk)
		if n == 0 {
			if err == nil {
				err = io.EOF
			}
			return resp.Value{}, err
		}
		r.buf = append(r.buf, chunk[:n]...)
	}
}

// writeReply serializes v and flushes it to the connection in one write.
func writeReply(conn net.Conn, v resp.Value) error {
	if _, err := conn.Write(resp.Encode(v)); err != nil {
		return fmt.Errorf("server: write reply: %w", err)
	}
	return nil
}
