// Package tail retains the end of a byte stream, so errors from child
// processes can carry the last lines they wrote to stderr.
package tail

import "strings"

// DefaultMax bounds the retained bytes when no limit is given.
const DefaultMax = 2048

// Buffer is an io.Writer keeping at most max bytes of the most
// recently written data. The zero value keeps DefaultMax bytes.
// Buffer is not safe for concurrent writers.
type Buffer struct {
	max int
	buf []byte
}

// New returns a Buffer keeping up to max bytes.
func New(max int) *Buffer {
	return &Buffer{max: max}
}

func (b *Buffer) Write(p []byte) (int, error) {
	max := b.max
	if max <= 0 {
		max = DefaultMax
	}
	if len(p) >= max {
		b.buf = append(b.buf[:0], p[len(p)-max:]...)
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	if over := len(b.buf) - max; over > 0 {
		b.buf = append(b.buf[:0], b.buf[over:]...)
	}
	return len(p), nil
}

// String returns the retained suffix with surrounding whitespace
// trimmed.
func (b *Buffer) String() string {
	return strings.TrimSpace(string(b.buf))
}
