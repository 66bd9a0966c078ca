// Package rawspeed implements the core decompression engines for
// proprietary compressed camera RAW payloads.
//
// Two entropy decoders are provided: the Olympus predictive decoder
// (ORF compressed raws) and the Fuji compressed decoder (RAF, both
// X-Trans and Bayer sensor layouts). Both decode into a pre-sized
// planar 16-bit RawImage:
//
//	img, err := rawspeed.NewRawImage(width, height, 1)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	dec, err := rawspeed.NewFujiDecompressor(img, payload)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := dec.Decompress(); err != nil {
//	    log.Fatal(err)
//	}
//
// The caller is responsible for locating the compressed payload inside
// the container (TIFF/RAF/ORF parsing is out of scope), and for any
// colour processing of the decoded sensor values. TableLookUp applies
// an optional per-tile output curve, with or without dithering.
//
// Both decoders accept untrusted input: any byte slice either decodes
// successfully or fails with one of the package's sentinel errors.
package rawspeed
