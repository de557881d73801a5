package microbit

import (
	"errors"
	"io"
)

// Sequential access to a window of an image, refusing to go past Limit.
type ImageCursor struct {
	Image   *Image
	Address uint32
	Limit   uint32 // Exclusive
}

var ErrCursorLimit = errors.New("Cursor reached its limit")

func (c *ImageCursor) remaining(want int) int {
	if c.Address >= c.Limit {
		return 0
	}
	return min(want, int(c.Limit-c.Address))
}

func (c *ImageCursor) Write(b []byte) (int, error) {
	n := c.remaining(len(b))
	c.Image.Write(c.Address, b[:n])
	c.Address += uint32(n)
	if n < len(b) {
		return n, ErrCursorLimit
	}
	return n, nil
}

// Reads absent addresses as 0xFF, like erased flash
func (c *ImageCursor) Read(b []byte) (int, error) {
	n := c.remaining(len(b))
	copy(b, c.Image.Slice(c.Address, n))
	c.Address += uint32(n)
	if n < len(b) {
		if n == 0 {
			return 0, io.EOF
		}
		return n, ErrCursorLimit
	}
	return n, nil
}

// Wraps a reader/writer so that the first error sticks: every later call is
// skipped and IsPass reports that first error. Lets long sequences of writes
// be checked once at the end.
type ReadWriteErrorPass struct {
	rw  io.ReadWriter
	err error
}

func NewReadWriteErrorPass(rw io.ReadWriter) *ReadWriteErrorPass {
	return &ReadWriteErrorPass{rw: rw}
}

func (rwep *ReadWriteErrorPass) loopError(b []byte, f func([]byte) (int, error)) (int, error) {
	if rwep.err != nil {
		return 0, rwep.err
	}
	total := 0
	slice := b
	for len(slice) > 0 {
		count, err := f(slice)
		total += count
		if err != nil {
			rwep.err = err
			return total, err
		}
		if count == 0 {
			rwep.err = io.ErrNoProgress
			return total, rwep.err
		}
		slice = slice[count:]
	}
	return total, nil
}

// Write the entire buffer unless an earlier call already failed
func (rwep *ReadWriteErrorPass) Write(b []byte) (int, error) {
	return rwep.loopError(b, rwep.rw.Write)
}

// Fill the entire buffer unless an earlier call already failed
func (rwep *ReadWriteErrorPass) Read(b []byte) (int, error) {
	return rwep.loopError(b, rwep.rw.Read)
}

func (rwep *ReadWriteErrorPass) WritePass(b []byte) int {
	val, _ := rwep.Write(b)
	return val
}

func (rwep *ReadWriteErrorPass) ReadPass(b []byte) int {
	val, _ := rwep.Read(b)
	return val
}

// Write a single byte, same rules as WritePass
func (rwep *ReadWriteErrorPass) WriteBytePass(b byte) int {
	return rwep.WritePass([]byte{b})
}

func (rwep *ReadWriteErrorPass) IsPass() error {
	return rwep.err
}
