package rawspeed

import (
	"math/rand"
	"testing"
)

func BenchmarkOlympusDecompress(b *testing.B) {
	const w, h = 240, 180
	rng := rand.New(rand.NewSource(1))

	targets, err := NewRawImage(w, h, 1)
	if err != nil {
		b.Fatal(err)
	}
	for y := range h {
		for x := range w {
			targets.SetAt(y, x, uint16(rng.Intn(4000)))
		}
	}
	payload := encodeOlympusFrame(b, targets)

	img, err := NewRawImage(w, h, 1)
	if err != nil {
		b.Fatal(err)
	}
	dec, err := NewOlympusDecompressor(img)
	if err != nil {
		b.Fatal(err)
	}

	b.SetBytes(int64(2 * w * h))
	b.ResetTimer()
	for range b.N {
		if err := dec.Decompress(payload); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFujiDecompressBayer(b *testing.B) {
	const lines = 8
	h := &fujiTestHeader{
		signature: fujiSignature, version: 1, rawType: fujiRawTypeBayer,
		rawBits: 14, rawHeight: 6 * lines, rawRoundedWidth: 96, rawWidth: 96,
		blockSize: 48, blocksInRow: 2, totalLines: lines,
	}
	params, err := newFujiParams(h.toFujiHeader())
	if err != nil {
		b.Fatal(err)
	}

	strip := encodeFujiStrip(b, &params, false, lines, constTargets(64))
	payload := buildFujiPayload(h, [][]byte{strip, strip})

	img, err := NewRawImage(int(h.rawWidth), int(h.rawHeight), 1)
	if err != nil {
		b.Fatal(err)
	}

	b.SetBytes(int64(2 * int(h.rawWidth) * int(h.rawHeight)))
	b.ResetTimer()
	for range b.N {
		dec, err := NewFujiDecompressor(img, payload)
		if err != nil {
			b.Fatal(err)
		}
		if err := dec.Decompress(); err != nil {
			b.Fatal(err)
		}
	}
}
