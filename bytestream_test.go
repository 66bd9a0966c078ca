package rawspeed

import (
	"encoding/binary"
	"errors"
	"testing"
)

func TestByteStream_FixedWidthReads(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07}

	t.Run("big endian", func(t *testing.T) {
		bs := newByteStream(data, binary.BigEndian)
		if v, err := bs.getU8(); err != nil || v != 0x01 {
			t.Fatalf("getU8() = %#x, %v", v, err)
		}
		if v, err := bs.getU16(); err != nil || v != 0x0203 {
			t.Fatalf("getU16() = %#x, %v", v, err)
		}
		if v, err := bs.getU32(); err != nil || v != 0x04050607 {
			t.Fatalf("getU32() = %#x, %v", v, err)
		}
		if rem := bs.remainSize(); rem != 0 {
			t.Fatalf("remainSize() = %d, want 0", rem)
		}
	})

	t.Run("little endian", func(t *testing.T) {
		bs := newByteStream(data, binary.LittleEndian)
		if v, err := bs.getU16(); err != nil || v != 0x0201 {
			t.Fatalf("getU16() = %#x, %v", v, err)
		}
		if v, err := bs.getU32(); err != nil || v != 0x06050403 {
			t.Fatalf("getU32() = %#x, %v", v, err)
		}
	})
}

func TestByteStream_Underflow(t *testing.T) {
	bs := newByteStream([]byte{0xAA}, binary.BigEndian)
	if _, err := bs.getU16(); !errors.Is(err, ErrShortInput) {
		t.Fatalf("getU16() on 1 byte: err = %v, want ErrShortInput", err)
	}
	// A failed read must not move the cursor.
	if v, err := bs.getU8(); err != nil || v != 0xAA {
		t.Fatalf("getU8() after failed read = %#x, %v", v, err)
	}
	if _, err := bs.getU8(); !errors.Is(err, ErrShortInput) {
		t.Fatalf("getU8() past end: err = %v, want ErrShortInput", err)
	}
}

func TestByteStream_GetStream(t *testing.T) {
	bs := newByteStream([]byte{1, 2, 3, 4, 5}, binary.BigEndian)

	sub, err := bs.getStream(3)
	if err != nil {
		t.Fatalf("getStream(3): %v", err)
	}
	if sub.remainSize() != 3 {
		t.Fatalf("sub remainSize() = %d, want 3", sub.remainSize())
	}
	if v, _ := sub.getU8(); v != 1 {
		t.Fatalf("sub getU8() = %d, want 1", v)
	}
	if _, err := sub.getStream(3); !errors.Is(err, ErrShortInput) {
		t.Fatalf("sub-stream must be bounded to its carve, got %v", err)
	}

	if v, err := bs.getU8(); err != nil || v != 4 {
		t.Fatalf("parent cursor after carve: getU8() = %d, %v", v, err)
	}
	if got := bs.peekRemainingBuffer(); len(got) != 1 || got[0] != 5 {
		t.Fatalf("peekRemainingBuffer() = %v, want [5]", got)
	}

	if _, err := bs.getStream(2); !errors.Is(err, ErrShortInput) {
		t.Fatalf("oversized carve: err = %v, want ErrShortInput", err)
	}
}

func TestByteStream_SkipBytes(t *testing.T) {
	bs := newByteStream([]byte{1, 2, 3}, binary.BigEndian)
	if err := bs.skipBytes(2); err != nil {
		t.Fatalf("skipBytes(2): %v", err)
	}
	if v, _ := bs.getU8(); v != 3 {
		t.Fatalf("getU8() after skip = %d, want 3", v)
	}
	if err := bs.skipBytes(1); !errors.Is(err, ErrShortInput) {
		t.Fatalf("skipBytes past end: err = %v, want ErrShortInput", err)
	}
}
