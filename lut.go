package rawspeed

import "fmt"

// How many distinct values a 16-bit sample can take.
const tableMaxElts = 1 << 16

// Each table row reserves two entries per value so that dither tables
// can store (center, delta) pairs; plain tables use the first half.
const tableSize = tableMaxElts * 2

// TableLookUp holds per-tile output curves applied to decoded samples.
// In dither mode each entry stores a center value and the local spread
// of the source curve, so that Apply can reconstruct intermediate
// levels with sub-LSB noise instead of banding.
type TableLookUp struct {
	ntables int
	dither  bool
	tables  []uint16
}

// NewTableLookUp creates ntables empty tables.
func NewTableLookUp(ntables int, dither bool) (*TableLookUp, error) {
	if ntables < 1 {
		return nil, fmt.Errorf("%w: cannot construct 0 tables", ErrConfig)
	}
	return &TableLookUp{
		ntables: ntables,
		dither:  dither,
		tables:  make([]uint16, ntables*tableSize),
	}, nil
}

// SetTable populates table n from a source curve of up to 65536
// samples. Entries past the end of the curve repeat its last value.
func (t *TableLookUp) SetTable(n int, table []uint16) error {
	if n < 0 || n >= t.ntables {
		return fmt.Errorf("%w: table %d of %d", ErrConfig, n, t.ntables)
	}
	if len(table) == 0 {
		return fmt.Errorf("%w: empty table", ErrConfig)
	}
	if len(table) > tableMaxElts {
		return fmt.Errorf("%w: table lookup with %d entries is unsupported", ErrInputRange, len(table))
	}

	nfilled := len(table)
	dst := t.tables[n*tableSize : (n+1)*tableSize]

	if !t.dither {
		for i := range tableMaxElts {
			dst[i] = table[min(i, nfilled-1)]
		}
		return nil
	}

	for i := range nfilled {
		center := int(table[i])
		lower := center
		if i > 0 {
			lower = int(table[i-1])
		}
		upper := center
		if i < nfilled-1 {
			upper = int(table[i+1])
		}
		// Non-monotonic curve handling: don't interpolate across the
		// cross-over.
		lower = min(lower, center)
		upper = max(upper, center)
		delta := upper - lower
		dst[i*2] = clampBits16(center - (upper-lower+2)/4)
		dst[i*2+1] = uint16(delta)
	}
	for i := nfilled; i < tableMaxElts; i++ {
		dst[i*2] = table[nfilled-1]
		dst[i*2+1] = 0
	}
	return nil
}

// Table returns the backing entries of table n. Plain tables use
// entries [0, 65536); dither tables store interleaved (center, delta)
// pairs across the full row.
func (t *TableLookUp) Table(n int) ([]uint16, error) {
	if n < 0 || n >= t.ntables {
		return nil, fmt.Errorf("%w: table %d of %d", ErrConfig, n, t.ntables)
	}
	return t.tables[n*tableSize : (n+1)*tableSize], nil
}

// Dither reports whether the tables were built for dithered lookup.
func (t *TableLookUp) Dither() bool { return t.dither }

// Apply runs table n over samples in place. In dither mode, seed
// drives the noise generator; the same seed reproduces the same
// output.
func (t *TableLookUp) Apply(n int, samples []uint16, seed uint32) error {
	table, err := t.Table(n)
	if err != nil {
		return err
	}
	if !t.dither {
		for i, v := range samples {
			samples[i] = table[v]
		}
		return nil
	}
	random := seed
	for i, v := range samples {
		base := uint32(table[2*uint32(v)])
		delta := uint32(table[2*uint32(v)+1])
		samples[i] = uint16(base + (delta*(random&2047)+1024)>>11)
		random = 15700*(random&65535) + (random >> 16)
	}
	return nil
}

func clampBits16(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > 0xFFFF {
		return 0xFFFF
	}
	return uint16(v)
}
