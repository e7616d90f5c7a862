// Package arena provides a bounds-checked view over a raw image buffer.
//
// Every structure the metadata parser derives is an (offset, length) pair
// into one immutable Image. No read happens without a prior bounds proof,
// which is what keeps the parser safe on corrupted and adversarial input.
package arena

import "encoding/binary"

// Image is an immutable byte buffer plus its length. It is the sole source
// of truth for every read the metadata parser performs.
type Image struct {
	data []byte
}

// New wraps data in an Image. The caller must not mutate data for the
// lifetime of the Image.
func New(data []byte) *Image {
	return &Image{data: data}
}

// Len returns the buffer length.
func (im *Image) Len() int64 {
	return int64(len(im.data))
}

// Fits reports whether the half-open range [off, off+n) lies entirely
// inside the buffer. Offset arithmetic that would wrap is treated as
// out of bounds.
func (im *Image) Fits(off, n int64) bool {
	if off < 0 || n < 0 {
		return false
	}
	end := off + n
	if end < off {
		return false
	}
	return end <= int64(len(im.data))
}

// U8 reads a single byte.
func (im *Image) U8(off int64) (byte, bool) {
	if !im.Fits(off, 1) {
		return 0, false
	}
	return im.data[off], true
}

// U16 reads a little-endian uint16.
func (im *Image) U16(off int64) (uint16, bool) {
	if !im.Fits(off, 2) {
		return 0, false
	}
	return binary.LittleEndian.Uint16(im.data[off:]), true
}

// U32 reads a little-endian uint32.
func (im *Image) U32(off int64) (uint32, bool) {
	if !im.Fits(off, 4) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(im.data[off:]), true
}

// U64 reads a little-endian uint64.
func (im *Image) U64(off int64) (uint64, bool) {
	if !im.Fits(off, 8) {
		return 0, false
	}
	return binary.LittleEndian.Uint64(im.data[off:]), true
}

// Bytes returns the sub-slice [off, off+n). The slice aliases the image
// buffer; callers copy before retaining.
func (im *Image) Bytes(off, n int64) ([]byte, bool) {
	if !im.Fits(off, n) {
		return nil, false
	}
	return im.data[off : off+n], true
}
