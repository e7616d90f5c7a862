package dotnet

import (
	"fmt"

	"github.com/picklover/InteYara/dotnet/internal/arena"
)

// blobEntry describes one #Blob heap entry: the number of bytes the
// length prefix itself occupied, and the payload length. A zero Size
// marks an entry whose prefix was malformed or truncated; callers must
// treat such entries as absent.
type blobEntry struct {
	// Size is the total prefix+payload jump from the entry's start, or 0
	// when the prefix could not be decoded.
	Size uint32

	// Length is the payload byte count. It excludes the prefix and, for
	// non-empty entries, the final byte.
	Length uint32
}

// parseBlobEntry decodes the variable-width length prefix of a blob heap
// entry at off (II.24.2.4). The payload length reported is one less than
// the encoded value when it is non-zero, matching how the heap stores
// trailing data.
func parseBlobEntry(img *arena.Image, off int64) blobEntry {
	b0, ok := img.U8(off)
	if !ok {
		return blobEntry{}
	}
	switch {
	case b0&0x80 == 0x00:
		length := uint32(b0)
		if length > 0 {
			length--
		}
		return blobEntry{Size: 1, Length: length}
	case b0&0xC0 == 0x80:
		b1, ok := img.U8(off + 1)
		if !ok {
			return blobEntry{}
		}
		length := uint32(b0&0x3F)<<8 | uint32(b1)
		if length > 0 {
			length--
		}
		return blobEntry{Size: 2, Length: length}
	case b0&0xE0 == 0xC0:
		if !img.Fits(off, 5) {
			return blobEntry{}
		}
		raw, _ := img.Bytes(off, 4)
		length := uint32(raw[0]&0x1F)<<24 | uint32(raw[1])<<16 |
			uint32(raw[2])<<8 | uint32(raw[3])
		if length > 0 {
			length--
		}
		return blobEntry{Size: 4, Length: length}
	default:
		return blobEntry{}
	}
}

// readDotnetString reads a NUL-terminated string starting at off, scanning
// no further than the end of the image. Strings longer than
// maxDotnetStringLength, or with no terminator before the image ends, are
// rejected.
func readDotnetString(img *arena.Image, off int64) (string, bool) {
	if off < 0 || off >= img.Len() {
		return "", false
	}
	end := img.Len()
	for i := off; i < end; i++ {
		b, _ := img.U8(i)
		if b != 0 {
			continue
		}
		if i-off > maxDotnetStringLength {
			return "", false
		}
		raw, _ := img.Bytes(off, i-off)
		return string(raw), true
	}
	return "", false
}

// stringFromHeap resolves index into the #Strings heap rooted at
// stringsOff. The heap is not length-delimited here: the scan is bounded
// by the image, as the heap runs to wherever the next stream begins.
func stringFromHeap(img *arena.Image, stringsOff int64, index uint32) (string, bool) {
	return readDotnetString(img, stringsOff+int64(index))
}

// parseGUIDs renders the #GUID heap as canonical GUID strings. The heap
// is a bare array of 16-byte GUIDs; processing is capped at
// maxGUIDHeapBytes and a trailing partial entry is ignored.
func parseGUIDs(img *arena.Image, off int64, size uint32) []string {
	if size > maxGUIDHeapBytes {
		size = maxGUIDHeapBytes
	}
	guids := []string{}
	for remaining := int64(size); remaining >= 16; remaining -= 16 {
		d1, ok1 := img.U32(off)
		d2, ok2 := img.U16(off + 4)
		d3, ok3 := img.U16(off + 6)
		tail, ok4 := img.Bytes(off+8, 8)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			break
		}
		guids = append(guids, fmt.Sprintf(
			"%08x-%04x-%04x-%02x%02x-%02x%02x%02x%02x%02x%02x",
			d1, d2, d3,
			tail[0], tail[1], tail[2], tail[3],
			tail[4], tail[5], tail[6], tail[7]))
		off += 16
	}
	return guids
}

// parseUserStrings collects the #US heap's UTF-16 entries as raw bytes.
// The heap opens with a mandatory zero byte, then blob-style entries
// follow back to back. Each entry carries a trailing flag byte that the
// reported length excludes; the flag byte simply parses as the next
// entry, comes out empty, and is dropped along with any other
// zero-length padding.
func parseUserStrings(img *arena.Image, off int64, size uint32) []string {
	if size == 0 || !img.Fits(off, int64(size)) {
		return nil
	}
	first, _ := img.U8(off)
	if first != 0 {
		return nil
	}
	end := off + int64(size)
	strings := []string{}
	for cur := off + 1; cur < end; {
		entry := parseBlobEntry(img, cur)
		if entry.Size == 0 {
			break
		}
		cur += int64(entry.Size)
		if entry.Length > 0 && img.Fits(cur, int64(entry.Length)) {
			raw, _ := img.Bytes(cur, int64(entry.Length))
			strings = append(strings, string(raw))
			cur += int64(entry.Length)
		}
	}
	return strings
}
