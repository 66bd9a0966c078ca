package rawspeed

import (
	"encoding/binary"
	"fmt"
	mathbits "math/bits"
)

// This is probably the slowest decoder of them all. There is no way to
// parallelise it: every prediction depends on the output of all
// previous pixels bar the first four, so rows are decoded strictly in
// sequence.

// OlympusDecompressor decodes the Olympus predictive format into a
// pre-sized single-component 16-bit image.
type OlympusDecompressor struct {
	img *RawImage
}

// olympusBitTable maps the low 12 peeked bits to the position of the
// first set bit in the 12-bit window below the sign/low fields,
// counted from its most significant bit, saturating at 12 for an
// all-zero window.
var olympusBitTable = func() [4096]int8 {
	var t [4096]int8
	for i := range t {
		high := 12
		for h := range 12 {
			if (i>>(11-h))&1 != 0 {
				high = h
				break
			}
		}
		t[i] = int8(high)
	}
	return t
}()

// NewOlympusDecompressor validates the target image shape. Width and
// height must be positive and even, at most 10400x7792, with one
// component per pixel.
func NewOlympusDecompressor(img *RawImage) (*OlympusDecompressor, error) {
	if img.Cpp() != 1 {
		return nil, fmt.Errorf("%w: unexpected component count %d", ErrConfig, img.Cpp())
	}
	w, h := img.Width(), img.Height()
	if w == 0 || h == 0 || w%2 != 0 || h%2 != 0 || w > 10400 || h > 7792 {
		return nil, fmt.Errorf("%w: unexpected image dimensions (%d; %d)", ErrInputRange, w, h)
	}
	return &OlympusDecompressor{img: img}, nil
}

// Decompress decodes the full frame from input. The first 7 bytes of
// the payload are an opaque prefix; the rest is an MSB-first bit
// stream.
func (d *OlympusDecompressor) Decompress(input []byte) error {
	bs := newByteStream(input, binary.BigEndian)
	if err := bs.skipBytes(7); err != nil {
		return fmt.Errorf("olympus payload prefix: %w", err)
	}
	bits := newBitReader(bs.peekRemainingBuffer())

	for y := range d.img.Height() {
		if err := d.decompressRow(bits, y); err != nil {
			return fmt.Errorf("olympus row %d: %w", y, err)
		}
	}
	return nil
}

func (d *OlympusDecompressor) decompressRow(bits *bitReader, row int) error {
	out := d.img.Row(row)

	// Two carry triples, one per column parity, reset at the start of
	// every row.
	var acarry [2][3]int

	numGroups := d.img.Width() / 2
	for group := range numGroups {
		for c := range 2 {
			col := 2*group + c

			diff, err := parseCarry(bits, &acarry[c])
			if err != nil {
				return err
			}
			pred := d.getPred(row, col)

			out[col] = uint16(pred + diff)
		}
	}
	return nil
}

// parseCarry decodes one residual. carry[0] is the previous magnitude,
// carry[1] a smoothed running diff, carry[2] counts consecutive small
// magnitudes; together they adapt the number of low bits read per
// sample.
func parseCarry(bits *bitReader, carry *[3]int) (int, error) {
	if err := bits.fill(); err != nil {
		return 0, err
	}

	nbitsBias := 0
	if carry[2] < 3 {
		nbitsBias = 2
	}
	nbits := mathbits.Len16(uint16(carry[0])) - nbitsBias
	nbits = max(nbits, 2+nbitsBias)
	if nbits > 14 {
		return 0, fmt.Errorf("%w: carry width %d out of range", ErrDecodeFailed, nbits)
	}

	b := int(bits.peekNoFill(15))
	sign := -(b >> 14)
	low := (b >> 12) & 3
	high := int(olympusBitTable[b&4095])

	// Skip the bits consumed above, or read the escape-coded high part.
	if high == 12 {
		bits.skipNoFill(15)
		high = int(bits.getNoFill(16-nbits)) >> 1
	} else {
		bits.skipNoFill(high + 1 + 3)
	}

	carry[0] = high<<nbits | int(bits.getNoFill(nbits))
	diff := (carry[0] ^ sign) + carry[1]
	carry[1] = (diff*3 + carry[1]) >> 5
	if carry[0] > 16 {
		carry[2] = 0
	} else {
		carry[2]++
	}

	return diff<<2 | low, nil
}

// getPred predicts a sample from the neighbours two columns and two
// rows back, staying within the same CFA colour plane.
func (d *OlympusDecompressor) getPred(row, col int) int {
	out := d.img
	switch {
	case row < 2 && col < 2:
		return 0
	case row < 2:
		return int(out.At(row, col-2))
	case col < 2:
		return int(out.At(row-2, col))
	}

	left := int(out.At(row, col-2))
	up := int(out.At(row-2, col))
	leftUp := int(out.At(row-2, col-2))

	leftMinusNw := left - leftUp
	upMinusNw := up - leftUp

	// Check if the gradient signs differ, and both are non-zero.
	if (leftMinusNw < 0) != (upMinusNw < 0) && leftMinusNw != 0 && upMinusNw != 0 {
		if iabs(leftMinusNw) > 32 || iabs(upMinusNw) > 32 {
			return left + upMinusNw
		}
		return (left + up) >> 1
	}
	if iabs(leftMinusNw) > iabs(upMinusNw) {
		return left
	}
	return up
}

func iabs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
