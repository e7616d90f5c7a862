package dotnet

import (
	"bytes"
	"strings"

	"github.com/picklover/InteYara/dotnet/internal/arena"
)

// streamInfo is one recognized stream's placement within the image.
// Offsets in stream headers are relative to the metadata root; here they
// have already been rebased to absolute image offsets.
type streamInfo struct {
	offset int64
	size   uint32
}

// streamSet holds the placements of the streams the extractor consumes.
// A nil field means the stream was not present (or its header did not
// fit). Duplicate names keep the first occurrence.
type streamSet struct {
	tilde   *streamInfo
	guid    *streamInfo
	strings *streamInfo
	blob    *streamInfo
	us      *streamInfo
}

// walkStreams reads count stream headers starting at off, rebasing their
// offsets against metadataRoot. Every header that fits is reported in
// order; recognition into the returned streamSet is first-occurrence-wins
// per name. The walk stops early at the first header that overruns the
// image.
func walkStreams(img *arena.Image, metadataRoot, off int64, count uint16) ([]Stream, streamSet) {
	headers := []Stream{}
	var set streamSet

	for i := uint16(0); i < count; i++ {
		if !img.Fits(off, 8) {
			break
		}
		relOffset, _ := img.U32(off)
		size, _ := img.U32(off + 4)

		name, ok := readStreamName(img, off+8)
		if !ok {
			break
		}

		info := streamInfo{offset: metadataRoot + int64(relOffset), size: size}
		headers = append(headers, Stream{
			Name:   name,
			Offset: info.offset,
			Size:   size,
		})

		switch {
		case strings.HasPrefix(name, "#~") || strings.HasPrefix(name, "#-"):
			if set.tilde == nil {
				h := info
				set.tilde = &h
			}
		case strings.HasPrefix(name, "#GUID"):
			if set.guid == nil {
				h := info
				set.guid = &h
			}
		case strings.HasPrefix(name, "#Strings"):
			if set.strings == nil {
				h := info
				set.strings = &h
			}
		case strings.HasPrefix(name, "#Blob"):
			if set.blob == nil {
				h := info
				set.blob = &h
			}
		case strings.HasPrefix(name, "#US"):
			if set.us == nil {
				h := info
				set.us = &h
			}
		}

		// The name field is padded with NULs to the next 4-byte boundary,
		// always consuming at least one padding byte.
		off += 8 + int64(len(name)) + 4 - int64(len(name))%4
	}
	return headers, set
}

// readStreamName reads a stream header's NUL-terminated name at off.
// Names occupy at most streamNameSize bytes including the terminator.
func readStreamName(img *arena.Image, off int64) (string, bool) {
	limit := int64(streamNameSize)
	if avail := img.Len() - off; avail < limit {
		limit = avail
	}
	if limit <= 0 {
		return "", false
	}
	raw, _ := img.Bytes(off, limit)
	n := bytes.IndexByte(raw, 0)
	if n < 0 {
		return "", false
	}
	return string(raw[:n]), true
}
