package rawspeed

import (
	"encoding/binary"
	"fmt"
)

// byteStream is a bounds-checked cursor over an immutable byte slice.
// Every read either succeeds completely or fails with ErrShortInput;
// the cursor never moves past the end of the backing slice.
type byteStream struct {
	data  []byte
	pos   int
	order binary.ByteOrder
}

func newByteStream(data []byte, order binary.ByteOrder) byteStream {
	return byteStream{data: data, order: order}
}

// remainSize returns the number of unconsumed bytes.
func (b *byteStream) remainSize() int {
	return len(b.data) - b.pos
}

// check verifies that n more bytes are available.
func (b *byteStream) check(n int) error {
	if n < 0 || b.remainSize() < n {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrShortInput, n, b.remainSize())
	}
	return nil
}

func (b *byteStream) getU8() (uint8, error) {
	if err := b.check(1); err != nil {
		return 0, err
	}
	v := b.data[b.pos]
	b.pos++
	return v, nil
}

func (b *byteStream) getU16() (uint16, error) {
	if err := b.check(2); err != nil {
		return 0, err
	}
	v := b.order.Uint16(b.data[b.pos:])
	b.pos += 2
	return v, nil
}

func (b *byteStream) getU32() (uint32, error) {
	if err := b.check(4); err != nil {
		return 0, err
	}
	v := b.order.Uint32(b.data[b.pos:])
	b.pos += 4
	return v, nil
}

// skipBytes advances the cursor by n bytes.
func (b *byteStream) skipBytes(n int) error {
	if err := b.check(n); err != nil {
		return err
	}
	b.pos += n
	return nil
}

// getStream carves a sub-stream of exactly n bytes and advances past it.
// The sub-stream borrows the backing slice.
func (b *byteStream) getStream(n int) (byteStream, error) {
	if err := b.check(n); err != nil {
		return byteStream{}, err
	}
	sub := byteStream{data: b.data[b.pos : b.pos+n : b.pos+n], order: b.order}
	b.pos += n
	return sub, nil
}

// peekRemainingBuffer returns the unconsumed tail without advancing.
func (b *byteStream) peekRemainingBuffer() []byte {
	return b.data[b.pos:]
}
