// Copyright 2025 rawspeed Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rawspeed

import (
	"fmt"

	hwyimage "github.com/ajroetker/go-highway/hwy/contrib/image"
)

// maxImageBytes caps pixel storage at 2 GiB. Decoders validate their
// own dimension limits on top of this.
const maxImageBytes = 2 << 30

// RawImage is a planar or CFA rectangular buffer of 16-bit samples.
// Storage is SIMD-aligned with padded row strides; decoders write
// through Row views and never share a cell between writers.
type RawImage struct {
	width  int // pixels per row
	height int
	cpp    int // components per pixel
	pix    *hwyimage.Image[uint16]
}

// NewRawImage allocates an aligned width x height buffer with cpp
// components per pixel, initialised to zero.
func NewRawImage(width, height, cpp int) (*RawImage, error) {
	if width < 1 || height < 1 || cpp < 1 {
		return nil, fmt.Errorf("%w: image dimensions %dx%dx%d", ErrInputRange, width, height, cpp)
	}
	if int64(width)*int64(cpp)*int64(height)*2 > maxImageBytes {
		return nil, fmt.Errorf("%w: image dimensions %dx%dx%d", ErrOutOfMemory, width, height, cpp)
	}
	return &RawImage{
		width:  width,
		height: height,
		cpp:    cpp,
		pix:    hwyimage.NewImage[uint16](width*cpp, height),
	}, nil
}

// Width returns the image width in pixels.
func (r *RawImage) Width() int { return r.width }

// Height returns the image height in rows.
func (r *RawImage) Height() int { return r.height }

// Cpp returns the number of components per pixel.
func (r *RawImage) Cpp() int { return r.cpp }

// Row returns the samples of row y as a slice of width*cpp elements.
// The slice aliases the image storage.
func (r *RawImage) Row(y int) []uint16 {
	return r.pix.Row(y)[:r.width*r.cpp]
}

// At returns the sample at (row, col); col addresses the width*cpp
// sample grid of the uncropped view.
func (r *RawImage) At(row, col int) uint16 {
	return r.pix.Row(row)[col]
}

// SetAt stores the sample at (row, col).
func (r *RawImage) SetAt(row, col int, v uint16) {
	r.pix.Row(row)[col] = v
}
