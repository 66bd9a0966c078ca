package rawspeed

import (
	"fmt"
	mathbits "math/bits"

	hwyimage "github.com/ajroetker/go-highway/hwy/contrib/image"
)

// Logical line buffers of one decoding block. Lines 0-1 of each colour
// carry state scrolled in from the previous super-row; lines 2+ are
// decoded fresh each super-row.
const (
	lineR0 = iota
	lineR1
	lineR2
	lineR3
	lineR4
	lineG0
	lineG1
	lineG2
	lineG3
	lineG4
	lineG5
	lineG6
	lineG7
	lineB0
	lineB1
	lineB2
	lineB3
	lineB4
	numXTLines
)

const (
	fujiColorRed = iota
	fujiColorGreen
	fujiColorBlue
)

// Guard samples carried on each side of a logical line.
const fujiLineGuard = 3

type intPair struct {
	value1, value2 int
}

// fujiBlock is the mutable per-strip decoding state: the strip's bit
// pump, the adaptive gradient contexts, and the logical line buffers.
type fujiBlock struct {
	params *fujiParams
	pump   *bitReader

	// gradient contexts, separate for even and odd sample positions
	gradEven [3][41]intPair
	gradOdd  [3][41]intPair

	lines *hwyimage.Image[uint16]
}

func newFujiBlock(params *fujiParams) *fujiBlock {
	return &fujiBlock{
		params: params,
		lines:  hwyimage.NewImage[uint16](params.lineWidth+2*fujiLineGuard, numXTLines),
	}
}

// reset prepares the block for a fresh strip.
func (b *fujiBlock) reset(data []byte) {
	b.pump = newBitReader(data)
	for j := range 3 {
		for i := range 41 {
			b.gradEven[j][i] = intPair{value1: b.params.maxDiff, value2: 1}
			b.gradOdd[j][i] = intPair{value1: b.params.maxDiff, value2: 1}
		}
	}
	for c := range numXTLines {
		clear(b.line(c))
	}
}

// line returns logical line c including its guards; sample i of the
// line sits at index fujiLineGuard+i.
func (b *fujiBlock) line(c int) []uint16 {
	return b.lines.Row(c)[:b.params.lineWidth+2*fujiLineGuard]
}

func lineColor(c int) int {
	switch {
	case c <= lineR4:
		return fujiColorRed
	case c <= lineG7:
		return fujiColorGreen
	default:
		return fujiColorBlue
	}
}

// fujiZeroBits counts and consumes the zero bits before the next set
// bit, consuming that bit as well.
func fujiZeroBits(pump *bitReader) (int, error) {
	count := 0
	for {
		if err := pump.fill(); err != nil {
			return 0, err
		}
		batch := pump.peekNoFill(31)<<1 | 1
		zeros := mathbits.LeadingZeros32(batch)
		count += zeros
		pump.skipNoFill(zeros)
		if zeros != 31 {
			break
		}
	}
	pump.skipNoFill(1)
	return count, nil
}

// bitDiff returns how many doublings of value2 are needed to reach
// value1, saturating at 15.
func bitDiff(value1, value2 int) int {
	decBits := 0
	if value2 < value1 {
		for decBits <= 14 {
			decBits++
			if value2<<decBits >= value1 {
				break
			}
		}
	}
	return decBits
}

// interpolationEven estimates the sample at an even position of line c
// from the two lines above and quantises the local gradient.
func (b *fujiBlock) interpolationEven(c, pos int) (int, int) {
	prev := b.line(c - 1)
	prev2 := b.line(c - 2)
	i := fujiLineGuard + pos

	rB := int(prev[i])
	rC := int(prev[i-1])
	rD := int(prev[i+1])
	rF := int(prev2[i])

	diffRcRb := iabs(rC - rB)
	diffRfRb := iabs(rF - rB)
	diffRdRb := iabs(rD - rB)

	var interpVal int
	switch {
	case diffRcRb > diffRfRb && diffRcRb > diffRdRb:
		interpVal = rF + rD + 2*rB
	case diffRdRb > diffRcRb && diffRdRb > diffRfRb:
		interpVal = rF + rC + 2*rB
	default:
		interpVal = rD + rC + 2*rB
	}

	return interpVal >> 2, b.params.quantGradient(rB-rF, rC-rB)
}

// interpolationOdd estimates the sample at an odd position of line c;
// both horizontal neighbours are already decoded.
func (b *fujiBlock) interpolationOdd(c, pos int) (int, int) {
	cur := b.line(c)
	prev := b.line(c - 1)
	i := fujiLineGuard + pos

	rA := int(cur[i-1])
	rB := int(prev[i])
	rC := int(prev[i-1])
	rD := int(prev[i+1])
	rG := int(cur[i+1])

	var interpVal int
	if (rB > rC && rB > rD) || (rB < rC && rB < rD) {
		interpVal = (rG + rA + 2*rB) >> 2
	} else {
		interpVal = (rA + rG) >> 1
	}

	return interpVal, b.params.quantGradient(rB-rC, rC-rA)
}

// interpolateEven stores the even-position estimate without consuming
// any bits. The encoder relies on these positions never mapping to
// image pixels.
func (b *fujiBlock) interpolateEven(c, pos int) {
	v, _ := b.interpolationEven(c, pos)
	b.line(c)[fujiLineGuard+pos] = uint16(v)
}

// decodeSample reads one residual code, updates the gradient context
// and stores the reconstructed sample.
func (b *fujiBlock) decodeSample(c, pos int, grads *[41]intPair, interpVal, grad int) error {
	p := b.params
	gradient := iabs(grad)

	sample, err := fujiZeroBits(b.pump)
	if err != nil {
		return err
	}

	var code int
	if sample < p.maxBits-p.rawBits-1 {
		decBits := bitDiff(grads[gradient].value1, grads[gradient].value2)
		code = sample << decBits
		if decBits != 0 {
			v, err := b.pump.getBits(decBits)
			if err != nil {
				return err
			}
			code += int(v)
		}
	} else {
		v, err := b.pump.getBits(p.rawBits)
		if err != nil {
			return err
		}
		code = int(v) + 1
	}

	if code < 0 || code >= p.totalValues {
		return fmt.Errorf("%w: fuji sample code %d out of range", ErrDecodeFailed, code)
	}

	if code&1 != 0 {
		code = -1 - code/2
	} else {
		code /= 2
	}

	g := &grads[gradient]
	g.value1 += iabs(code)
	if g.value2 == p.minValue {
		g.value1 >>= 1
		g.value2 >>= 1
	}
	g.value2++

	if grad < 0 {
		interpVal -= code
	} else {
		interpVal += code
	}
	if interpVal < 0 {
		interpVal += p.totalValues
	} else if interpVal > p.qPoint[4] {
		interpVal -= p.totalValues
	}
	if interpVal < 0 {
		interpVal = 0
	}
	b.line(c)[fujiLineGuard+pos] = uint16(min(interpVal, p.totalValues-1))
	return nil
}

func (b *fujiBlock) decodeSampleEven(c, pos int, grads *[41]intPair) error {
	interpVal, grad := b.interpolationEven(c, pos)
	return b.decodeSample(c, pos, grads, interpVal, grad)
}

func (b *fujiBlock) decodeSampleOdd(c, pos int, grads *[41]intPair) error {
	interpVal, grad := b.interpolationOdd(c, pos)
	return b.decodeSample(c, pos, grads, interpVal, grad)
}

// extendGeneric fills the guards of lines [start, end], replicating
// the edge samples of the line above each.
func (b *fujiBlock) extendGeneric(start, end int) {
	lw := b.params.lineWidth
	for i := start; i <= end; i++ {
		cur := b.line(i)
		prev := b.line(i - 1)
		left := prev[fujiLineGuard]
		right := prev[fujiLineGuard+lw-1]
		for g := range fujiLineGuard {
			cur[g] = left
			cur[fujiLineGuard+lw+g] = right
		}
	}
}

func (b *fujiBlock) extendRed()   { b.extendGeneric(lineR2, lineR4) }
func (b *fujiBlock) extendGreen() { b.extendGeneric(lineG2, lineG7) }
func (b *fujiBlock) extendBlue()  { b.extendGeneric(lineB2, lineB4) }

func (b *fujiBlock) extendColor(color int) {
	switch color {
	case fujiColorRed:
		b.extendRed()
	case fujiColorGreen:
		b.extendGreen()
	case fujiColorBlue:
		b.extendBlue()
	}
}

// scrollLines carries the bottom lines of each colour into the
// predictor positions for the next super-row.
func (b *fujiBlock) scrollLines() {
	copy(b.line(lineR0), b.line(lineR3))
	copy(b.line(lineR1), b.line(lineR4))
	copy(b.line(lineG0), b.line(lineG6))
	copy(b.line(lineG1), b.line(lineG7))
	copy(b.line(lineB0), b.line(lineB3))
	copy(b.line(lineB1), b.line(lineB4))
}

// fujiPass describes one of the six line-pair passes of a super-row.
// interpTarget picks which of the two lines (1 or 2, 0 for neither)
// carries interpolation-only even positions, selected by
// pos&interpMask == interpWant.
type fujiPass struct {
	line1, line2 int
	gradSet      int
	interpTarget int
	interpMask   int
	interpWant   int
}

var xtransPasses = [6]fujiPass{
	{line1: lineR2, line2: lineG2, gradSet: 0},
	{line1: lineG3, line2: lineB2, gradSet: 1},
	{line1: lineR3, line2: lineG4, gradSet: 2, interpTarget: 2, interpMask: 0, interpWant: 0},
	{line1: lineG5, line2: lineB3, gradSet: 0, interpTarget: 2, interpMask: 3, interpWant: 2},
	{line1: lineR4, line2: lineG6, gradSet: 1, interpTarget: 1, interpMask: 3, interpWant: 2},
	{line1: lineG7, line2: lineB4, gradSet: 2, interpTarget: 2, interpMask: 3, interpWant: 0},
}

var bayerPasses = [6]fujiPass{
	{line1: lineR2, line2: lineG2, gradSet: 0},
	{line1: lineG3, line2: lineB2, gradSet: 1},
	{line1: lineR3, line2: lineG4, gradSet: 2},
	{line1: lineG5, line2: lineB3, gradSet: 0},
	{line1: lineR4, line2: lineG6, gradSet: 1},
	{line1: lineG7, line2: lineB4, gradSet: 2},
}

// decodePass decodes both lines of a pass, even positions running
// ahead of odd ones so that every odd sample has its right-hand
// neighbour available.
func (b *fujiBlock) decodePass(pass *fujiPass) error {
	lw := b.params.lineWidth
	gradsEven := &b.gradEven[pass.gradSet]
	gradsOdd := &b.gradOdd[pass.gradSet]

	even1, even2 := 0, 0
	odd1, odd2 := 1, 1
	for even2 < lw || odd2 < lw {
		if even2 < lw {
			if pass.interpTarget == 1 && even1&pass.interpMask == pass.interpWant {
				b.interpolateEven(pass.line1, even1)
			} else if err := b.decodeSampleEven(pass.line1, even1, gradsEven); err != nil {
				return err
			}
			even1 += 2
			if pass.interpTarget == 2 && even2&pass.interpMask == pass.interpWant {
				b.interpolateEven(pass.line2, even2)
			} else if err := b.decodeSampleEven(pass.line2, even2, gradsEven); err != nil {
				return err
			}
			even2 += 2
		}
		if even2 > 8 || even2 >= lw {
			if err := b.decodeSampleOdd(pass.line1, odd1, gradsOdd); err != nil {
				return err
			}
			odd1 += 2
			if err := b.decodeSampleOdd(pass.line2, odd2, gradsOdd); err != nil {
				return err
			}
			odd2 += 2
		}
	}
	return nil
}

// decodeBlock decodes one 6-line super-row of logical lines.
func (b *fujiBlock) decodeBlock(passes *[6]fujiPass) error {
	for i := range passes {
		if err := b.decodePass(&passes[i]); err != nil {
			return err
		}
		b.extendColor(lineColor(passes[i].line1))
		b.extendColor(lineColor(passes[i].line2))
	}
	return nil
}

// xtransPattern is the 6x6 colour-filter layout, indexed
// [row][column%6].
var xtransPattern = [6][6]uint8{
	{fujiColorGreen, fujiColorGreen, fujiColorRed, fujiColorGreen, fujiColorGreen, fujiColorBlue},
	{fujiColorGreen, fujiColorGreen, fujiColorBlue, fujiColorGreen, fujiColorGreen, fujiColorRed},
	{fujiColorBlue, fujiColorRed, fujiColorGreen, fujiColorRed, fujiColorBlue, fujiColorGreen},
	{fujiColorGreen, fujiColorGreen, fujiColorBlue, fujiColorGreen, fujiColorGreen, fujiColorRed},
	{fujiColorGreen, fujiColorGreen, fujiColorRed, fujiColorGreen, fujiColorGreen, fujiColorBlue},
	{fujiColorRed, fujiColorBlue, fujiColorGreen, fujiColorBlue, fujiColorRed, fujiColorGreen},
}

// xtransLinePos maps each pixel of a 6x6 tile to its sample slot
// within the group of 4 logical-line positions the tile's row packs
// into. Slots skipped by the entropy coder (the interpolation-only
// positions of G4, B3, R4 and B4) never appear here.
var xtransLinePos = [6][6]int8{
	{0, 1, 0, 2, 3, 2},
	{0, 1, 1, 2, 3, 3},
	{0, 0, 1, 2, 3, 3},
	{0, 1, 1, 2, 3, 3},
	{0, 1, 0, 2, 3, 2},
	{1, 1, 1, 3, 3, 3},
}

// copyLineToXTrans maps the decoded logical lines of one super-row
// onto 6 image rows of the strip's column band.
func (d *FujiDecompressor) copyLineToXTrans(b *fujiBlock, strip *fujiStrip, curLine int) {
	offsetX := strip.offsetX()
	posBase := 2 * offsetX / 3
	width := strip.width()

	for rowCount := range fujiLineHeight {
		outRow := fujiLineHeight*curLine + rowCount
		if outRow >= d.img.Height() {
			break
		}
		out := d.img.Row(outRow)
		for pixelCount := range width {
			abs := offsetX + pixelCount

			var line []uint16
			switch xtransPattern[rowCount][abs%6] {
			case fujiColorRed:
				line = b.line(lineR2 + rowCount>>1)
			case fujiColorGreen:
				line = b.line(lineG2 + rowCount)
			case fujiColorBlue:
				line = b.line(lineB2 + rowCount>>1)
			}

			pos := 4*(abs/6) + int(xtransLinePos[rowCount][abs%6]) - posBase
			out[abs] = line[fujiLineGuard+pos]
		}
	}
}

// bayerPattern is the RGGB colour-filter layout, indexed
// [row%2][column%2].
var bayerPattern = [2][2]uint8{
	{fujiColorRed, fujiColorGreen},
	{fujiColorGreen, fujiColorBlue},
}

// copyLineToBayer maps the decoded logical lines of one super-row onto
// 6 image rows of the strip's column band.
func (d *FujiDecompressor) copyLineToBayer(b *fujiBlock, strip *fujiStrip, curLine int) {
	offsetX := strip.offsetX()
	width := strip.width()

	for rowCount := range fujiLineHeight {
		outRow := fujiLineHeight*curLine + rowCount
		if outRow >= d.img.Height() {
			break
		}
		out := d.img.Row(outRow)
		for pixelCount := range width {
			abs := offsetX + pixelCount

			var line []uint16
			switch bayerPattern[rowCount&1][abs&1] {
			case fujiColorRed:
				line = b.line(lineR2 + rowCount>>1)
			case fujiColorGreen:
				line = b.line(lineG2 + rowCount)
			case fujiColorBlue:
				line = b.line(lineB2 + rowCount>>1)
			}

			out[abs] = line[fujiLineGuard+pixelCount>>1]
		}
	}
}

// decodeStrip runs all super-rows of one strip through the block
// decoder and copies each into the output buffer.
func (d *FujiDecompressor) decodeStrip(b *fujiBlock, strip *fujiStrip) error {
	xtrans := d.header.rawType == fujiRawTypeXTrans
	passes := &bayerPasses
	if xtrans {
		passes = &xtransPasses
	}

	b.reset(strip.data)
	for curLine := range strip.height() {
		if err := b.decodeBlock(passes); err != nil {
			return fmt.Errorf("super-row %d: %w", curLine, err)
		}
		if xtrans {
			d.copyLineToXTrans(b, strip, curLine)
		} else {
			d.copyLineToBayer(b, strip, curLine)
		}
		b.scrollLines()
	}
	return nil
}
