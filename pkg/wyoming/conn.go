package wyoming

import (
	"bufio"
	"io"
)

// Conn reads and writes typed events over a byte stream. Reads and writes may
// run on different goroutines, but each direction must have a single user.
type Conn struct {
	r *bufio.Reader
	w io.Writer
}

// NewConn wraps rw for event exchange.
func NewConn(rw io.ReadWriter) *Conn {
	return &Conn{r: bufio.NewReader(rw), w: rw}
}

// Read blocks until the next event arrives. It returns io.EOF when the peer
// closes the stream between events.
func (c *Conn) Read() (Event, error) {
	raw, err := ReadRaw(c.r)
	if err != nil {
		return nil, err
	}
	return Decode(raw)
}

// Write sends ev as a single write on the underlying stream.
func (c *Conn) Write(ev Event) error {
	raw, err := Encode(ev)
	if err != nil {
		return err
	}
	return WriteRaw(c.w, raw)
}
