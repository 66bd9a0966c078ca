package rawspeed

import (
	"errors"
	"testing"
)

func TestBitReader_MSBOrder(t *testing.T) {
	r := newBitReader([]byte{0xA5, 0x3C}) // 10100101 00111100
	if err := r.fill(); err != nil {
		t.Fatalf("fill(): %v", err)
	}
	if got := r.peekNoFill(4); got != 0xA {
		t.Fatalf("peekNoFill(4) = %#x, want 0xA", got)
	}
	// peek must not consume.
	if got := r.peekNoFill(8); got != 0xA5 {
		t.Fatalf("peekNoFill(8) = %#x, want 0xA5", got)
	}
	r.skipNoFill(4)
	if got := r.getNoFill(8); got != 0x53 {
		t.Fatalf("getNoFill(8) = %#x, want 0x53", got)
	}
	if got := r.getNoFill(4); got != 0xC {
		t.Fatalf("getNoFill(4) = %#x, want 0xC", got)
	}
}

func TestBitReader_GetBitsAcrossRefills(t *testing.T) {
	data := make([]byte, 32)
	for i := range data {
		data[i] = byte(i)
	}
	r := newBitReader(data)

	// Reassemble the bytes through unaligned reads; 51 reads of 5 bits
	// cover the first 31 bytes.
	var got []byte
	var acc uint64
	accBits := 0
	for range 256 / 5 {
		v, err := r.getBits(5)
		if err != nil {
			t.Fatalf("getBits(5): %v", err)
		}
		acc = acc<<5 | uint64(v)
		accBits += 5
		for accBits >= 8 {
			got = append(got, byte(acc>>(uint(accBits)-8)))
			accBits -= 8
		}
	}
	for i, b := range got {
		if b != data[i] {
			t.Fatalf("byte %d = %#x, want %#x", i, b, data[i])
		}
	}
}

func TestBitReader_ZeroFillPastEnd(t *testing.T) {
	r := newBitReader([]byte{0xFF})
	if err := r.fill(); err != nil {
		t.Fatalf("fill(): %v", err)
	}
	if got := r.getNoFill(8); got != 0xFF {
		t.Fatalf("getNoFill(8) = %#x", got)
	}
	// Reads past the end of the slice see zero bits for a while...
	for i := range 3 {
		v, err := r.getBits(32)
		if err != nil {
			t.Fatalf("getBits(32) in slack region (read %d): %v", i, err)
		}
		if v != 0 {
			t.Fatalf("slack read %d = %#x, want 0", i, v)
		}
	}
	// ...but a reader that keeps asking eventually fails.
	var err error
	for range 100 {
		if _, err = r.getBits(32); err != nil {
			break
		}
	}
	if !errors.Is(err, ErrTruncatedBitstream) {
		t.Fatalf("exhausted slack: err = %v, want ErrTruncatedBitstream", err)
	}
}

func TestBitReader_EmptyInput(t *testing.T) {
	r := newBitReader(nil)
	// The zero-fill slack still applies to an empty stream.
	if _, err := r.getBits(25); err != nil {
		t.Fatalf("first read of empty stream: %v", err)
	}
	var err error
	for range 100 {
		if _, err = r.getBits(25); err != nil {
			break
		}
	}
	if !errors.Is(err, ErrTruncatedBitstream) {
		t.Fatalf("err = %v, want ErrTruncatedBitstream", err)
	}
}

func TestBitReader_FillKeepsAtLeast32(t *testing.T) {
	r := newBitReader([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	if err := r.fill(); err != nil {
		t.Fatalf("fill(): %v", err)
	}
	if r.fillLevel < 32 {
		t.Fatalf("fill level after fill() = %d, want >= 32", r.fillLevel)
	}
	// The full fill budget is consumable without a refill.
	r.skipNoFill(31)
	_ = r.getNoFill(1)
}
