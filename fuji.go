package rawspeed

import (
	"encoding/binary"
	"fmt"
	"runtime"
	"sync"
)

// fujiSignature is the magic the 16-byte RAF compression header opens
// with.
const fujiSignature = 0x4953

// Raw layout tags carried in the header's raw_type field.
const (
	fujiRawTypeBayer  = 0
	fujiRawTypeXTrans = 16
)

// Each super-row of a strip decodes into 6 image lines.
const fujiLineHeight = 6

// fujiHeader is the fixed big-endian record at the start of a Fuji
// compressed payload.
type fujiHeader struct {
	signature       uint16
	version         uint8
	rawType         uint8
	rawBits         uint8
	rawHeight       uint16
	rawRoundedWidth uint16
	rawWidth        uint16
	blockSize       uint16
	blocksInRow     uint8
	totalLines      uint16
	mcuX, mcuY      int
}

func parseFujiHeader(bs *byteStream) (fujiHeader, error) {
	var h fujiHeader
	var err error
	read16 := func(dst *uint16) {
		if err == nil {
			*dst, err = bs.getU16()
		}
	}
	read8 := func(dst *uint8) {
		if err == nil {
			*dst, err = bs.getU8()
		}
	}
	read16(&h.signature)
	read8(&h.version)
	read8(&h.rawType)
	read8(&h.rawBits)
	read16(&h.rawHeight)
	read16(&h.rawRoundedWidth)
	read16(&h.rawWidth)
	read16(&h.blockSize)
	read8(&h.blocksInRow)
	read16(&h.totalLines)
	if err != nil {
		return fujiHeader{}, err
	}
	if h.rawType == fujiRawTypeBayer {
		h.mcuX, h.mcuY = 2, fujiLineHeight
	} else {
		h.mcuX, h.mcuY = 1, fujiLineHeight
	}
	return h, nil
}

// valid checks the header's internal consistency.
func (h *fujiHeader) valid() bool {
	if h.signature != fujiSignature || h.rawHeight == 0 || h.rawWidth == 0 ||
		h.blockSize == 0 || h.blocksInRow == 0 {
		return false
	}
	if h.rawRoundedWidth < h.rawWidth {
		return false
	}
	blocks := (int(h.rawRoundedWidth) + int(h.blockSize) - 1) / int(h.blockSize)
	if blocks != int(h.blocksInRow) {
		return false
	}
	if int(h.blockSize)%h.mcuX != 0 {
		return false
	}
	// Every strip must cover at least one image column.
	if int(h.rawWidth) <= (int(h.blocksInRow)-1)*int(h.blockSize) {
		return false
	}
	// All image rows must be produced by some super-row.
	if int(h.rawHeight) > fujiLineHeight*int(h.totalLines) {
		return false
	}
	return true
}

// fujiStrip is one vertical band of the image, decoded independently.
type fujiStrip struct {
	h *fujiHeader

	// which strip this is, 0 .. blocksInRow-1
	n int

	// the compressed bytes of this strip
	data []byte
}

// width returns how many image columns this strip covers. Only the
// last strip is narrower than the block size.
func (s *fujiStrip) width() int {
	if s.n+1 != int(s.h.blocksInRow) {
		return int(s.h.blockSize)
	}
	return int(s.h.rawWidth) - s.offsetX()
}

// offsetX returns the first image column of this strip.
func (s *fujiStrip) offsetX() int {
	return int(s.h.blockSize) * s.n
}

// height returns the strip's vertical extent in super-rows.
func (s *fujiStrip) height() int {
	return int(s.h.totalLines)
}

// fujiParams is the per-image parameter set shared read-only by all
// strips.
type fujiParams struct {
	qTable      []int8 // quantisation of prediction errors, offset by qPoint[4]
	qPoint      [5]int
	maxBits     int
	minValue    int
	rawBits     int
	totalValues int
	maxDiff     int
	lineWidth   int
}

func newFujiParams(h *fujiHeader) (fujiParams, error) {
	if h.rawBits != 12 && h.rawBits != 14 {
		return fujiParams{}, fmt.Errorf("%w: unsupported bit depth %d", ErrInputRange, h.rawBits)
	}
	if (h.rawType == fujiRawTypeXTrans && int(h.blockSize)%3 != 0) ||
		(h.rawType == fujiRawTypeBayer && h.blockSize&1 != 0) {
		return fujiParams{}, fmt.Errorf("%w: invalid block size %d", ErrCorruptHeader, h.blockSize)
	}

	p := fujiParams{
		rawBits:     int(h.rawBits),
		minValue:    0x40,
		totalValues: 1 << h.rawBits,
		maxBits:     4 * int(h.rawBits),
		lineWidth:   int(h.blockSize) * 2 / 3,
	}
	p.qPoint = [5]int{0, 0x100, 0x800, 0x2080, p.totalValues - 1}
	p.maxDiff = max(2, p.totalValues/p.qPoint[4]-1) << (p.rawBits - 2)

	p.qTable = make([]int8, 2*p.qPoint[4]+1)
	for cur := -p.qPoint[4]; cur <= p.qPoint[4]; cur++ {
		var q int8
		switch {
		case cur <= -p.qPoint[3]:
			q = -4
		case cur <= -p.qPoint[2]:
			q = -3
		case cur <= -p.qPoint[1]:
			q = -2
		case cur < 0:
			q = -1
		case cur == 0:
			q = 0
		case cur < p.qPoint[1]:
			q = 1
		case cur < p.qPoint[2]:
			q = 2
		case cur < p.qPoint[3]:
			q = 3
		default:
			q = 4
		}
		p.qTable[p.qPoint[4]+cur] = q
	}
	return p, nil
}

// quantGradient maps a pair of prediction errors to one of the 81
// gradient contexts (its absolute value indexes the context array).
func (p *fujiParams) quantGradient(v1, v2 int) int {
	return 9*int(p.qTable[p.qPoint[4]+v1]) + int(p.qTable[p.qPoint[4]+v2])
}

// FujiDecompressor decodes Fuji compressed payloads (X-Trans or Bayer)
// into a pre-sized single-component 16-bit image.
type FujiDecompressor struct {
	img    *RawImage
	header fujiHeader
	params fujiParams
	strips []fujiStrip
}

// NewFujiDecompressor parses and validates the payload header and
// carves the per-strip byte streams. The image must match the header's
// raw_width x raw_height with one component per pixel.
func NewFujiDecompressor(img *RawImage, input []byte) (*FujiDecompressor, error) {
	bs := newByteStream(input, binary.BigEndian)

	header, err := parseFujiHeader(&bs)
	if err != nil {
		return nil, fmt.Errorf("fuji header: %w", err)
	}
	if header.rawType != fujiRawTypeBayer && header.rawType != fujiRawTypeXTrans {
		return nil, fmt.Errorf("%w: unsupported raw type %d", ErrInputRange, header.rawType)
	}
	if !header.valid() {
		return nil, fmt.Errorf("%w: fuji header check failed", ErrCorruptHeader)
	}
	if img.Cpp() != 1 {
		return nil, fmt.Errorf("%w: unexpected component count %d", ErrConfig, img.Cpp())
	}
	if img.Width() != int(header.rawWidth) || img.Height() != int(header.rawHeight) {
		return nil, fmt.Errorf("%w: image is %dx%d, header specifies %dx%d",
			ErrConfig, img.Width(), img.Height(), header.rawWidth, header.rawHeight)
	}

	params, err := newFujiParams(&header)
	if err != nil {
		return nil, err
	}

	d := &FujiDecompressor{
		img:    img,
		header: header,
		params: params,
	}

	// The strip length table is padded up to an 8-byte boundary; the
	// strips follow back to back.
	tableSize := 4 * int(header.blocksInRow)
	if tableSize%8 != 0 {
		tableSize += 8 - tableSize%8
	}
	table, err := bs.getStream(tableSize)
	if err != nil {
		return nil, fmt.Errorf("%w: strip length table: %v", ErrCorruptHeader, err)
	}

	d.strips = make([]fujiStrip, header.blocksInRow)
	for n := range d.strips {
		length, _ := table.getU32() // the carve above guarantees capacity
		sub, err := bs.getStream(int(length))
		if err != nil {
			return nil, fmt.Errorf("%w: strip %d wants %d bytes, %d remain",
				ErrCorruptHeader, n, length, bs.remainSize())
		}
		d.strips[n] = fujiStrip{h: &d.header, n: n, data: sub.peekRemainingBuffer()}
	}

	return d, nil
}

// Decompress decodes all strips. Strips share only the read-only
// parameter set and write disjoint column bands, so they are decoded
// concurrently by up to GOMAXPROCS workers, each taking every
// workers-th strip; the call returns once every strip has finished.
func (d *FujiDecompressor) Decompress() error {
	if len(d.strips) == 1 || runtime.GOMAXPROCS(0) == 1 {
		for n := range d.strips {
			block := newFujiBlock(&d.params)
			if err := d.decodeStrip(block, &d.strips[n]); err != nil {
				return fmt.Errorf("fuji strip %d: %w", n, err)
			}
		}
		return nil
	}

	workers := min(runtime.GOMAXPROCS(0), len(d.strips))
	errs := make([]error, len(d.strips))
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			block := newFujiBlock(&d.params)
			for n := w; n < len(d.strips); n += workers {
				errs[n] = d.decodeStrip(block, &d.strips[n])
			}
		}(w)
	}
	wg.Wait()

	for n, err := range errs {
		if err != nil {
			return fmt.Errorf("fuji strip %d: %w", n, err)
		}
	}
	return nil
}
