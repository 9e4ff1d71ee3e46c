// Package lineconn adapts any io.ReadWriteCloser (a subprocess's stdio, a
// TCP socket, a pair of unix-domain pipes) to rpc.Conn by framing messages
// as newline-delimited JSON, one frame per line. Adapted from the teacher's
// message.JSONFraming (message/json_framing.go), which frames journal
// records the same way (bufio.Writer + json.Encoder on write,
// UnpackLine-style delimiter scan on read) — generalized here from journal
// byte-streams to an arbitrary stream-oriented transport.
package lineconn

import (
	"bufio"
	"io"
	"sync"

	"github.com/pkg/errors"
)

// maxLineBytes bounds a single frame the same way the teacher's framing
// bounds a single journal record, so a misbehaving peer can't exhaust
// memory with an unterminated line.
const maxLineBytes = 16 << 20

// Conn implements rpc.Conn over rw, one JSON frame per '\n'-terminated line.
// Frame payloads must not themselves contain a literal newline byte, which
// holds for any Frame produced by frame.Encode (compact JSON never emits
// one).
type Conn struct {
	rw io.ReadWriteCloser
	r  *bufio.Reader

	writeMu sync.Mutex
}

// New wraps rw for newline-delimited framing.
func New(rw io.ReadWriteCloser) *Conn {
	return &Conn{rw: rw, r: bufio.NewReaderSize(rw, 4096)}
}

// Send implements rpc.Conn: it writes b followed by a single '\n', holding
// writeMu so concurrent callers never interleave partial lines.
func (c *Conn) Send(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.rw.Write(b); err != nil {
		return errors.Wrap(err, "lineconn: write")
	}
	if _, err := c.rw.Write([]byte{'\n'}); err != nil {
		return errors.Wrap(err, "lineconn: write newline")
	}
	return nil
}

// Recv implements rpc.Conn: it reads up to the next '\n', stripping it, and
// returns io.EOF unmodified when the peer hung up cleanly.
func (c *Conn) Recv() ([]byte, error) {
	var line []byte
	var err error
	for {
		var part []byte
		part, err = c.r.ReadSlice('\n')
		line = append(line, part...)
		if len(line) > maxLineBytes {
			return nil, errors.New("lineconn: frame exceeds maximum line length")
		}
		if err != bufio.ErrBufferFull {
			break
		}
	}
	if err != nil {
		if err == io.EOF && len(line) > 0 {
			// Final frame had no trailing newline; still a complete frame.
			return line, nil
		}
		return nil, err
	}
	return line[:len(line)-1], nil
}

// Close implements rpc.Conn.
func (c *Conn) Close() error { return c.rw.Close() }
