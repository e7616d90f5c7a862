package dotnet

import (
	"bytes"
	"fmt"

	"go.uber.org/zap"

	"github.com/picklover/InteYara/dotnet/internal/arena"
	"github.com/picklover/InteYara/pefile"
)

// ExtractBytes parses data as a PE image and extracts its .NET metadata.
// The returned report is never nil on success; an error means the bytes
// were not a parseable PE image at all.
func ExtractBytes(data []byte) (*Report, error) {
	view, err := pefile.New(data)
	if err != nil {
		return nil, fmt.Errorf("parse pe: %w", err)
	}
	return Extract(view), nil
}

// Extract decodes the .NET metadata of view. Extraction is best effort:
// a truncated or corrupt image yields a report holding whatever facts
// were recovered before the damage, never an error.
func Extract(view *pefile.View) *Report {
	rep := &Report{}
	img := arena.New(view.Data())

	cliOff, ok := clrHeaderOffset(view, img)
	if !ok {
		return rep
	}
	rep.IsDotNet = true

	metadataRVA, _ := img.U32(cliOff + 8)
	metadataRoot := view.RVAToOffset(metadataRVA)
	if metadataRoot < 0 || !img.Fits(metadataRoot, metadataRootSize) {
		return rep
	}
	magic, _ := img.U32(metadataRoot)
	if magic != metadataMagic {
		return rep
	}
	versionLen, _ := img.U32(metadataRoot + 12)
	if versionLen == 0 || versionLen > 255 || versionLen%4 != 0 ||
		!img.Fits(metadataRoot+metadataRootSize, int64(versionLen)) {
		return rep
	}

	// The length includes the terminator and padding up to a multiple of
	// 4; the version proper ends at the first NUL.
	raw, _ := img.Bytes(metadataRoot+metadataRootSize, int64(versionLen))
	if n := bytes.IndexByte(raw, 0); n >= 0 {
		v := string(raw[:n])
		rep.Version = &v
	}

	// The version field is followed by a u16 of flags, then the u16
	// stream count, then the stream headers.
	countOff := metadataRoot + metadataRootSize + int64(versionLen)
	streamCount, ok := img.U16(countOff + 2)
	if !ok {
		return rep
	}
	headers, set := walkStreams(img, metadataRoot, countOff+4, streamCount)
	rep.Streams = headers
	Logger().Debug("located metadata streams",
		zap.Uint16("declared", streamCount),
		zap.Int("found", len(headers)))

	if set.guid != nil {
		rep.GUIDs = parseGUIDs(img, set.guid.offset, set.guid.size)
	}
	if set.us != nil {
		rep.UserStrings = parseUserStrings(img, set.us.offset, set.us.size)
	}

	resourcesRVA, _ := img.U32(cliOff + 24)
	parseTables(img, view, set, view.RVAToOffset(resourcesRVA), rep)
	return rep
}

// clrHeaderOffset locates the CLI header and verifies the image really is
// a .NET assembly. Beyond the COM descriptor directory entry it applies
// the same shape checks CLR loaders do: a native 32-bit executable entry
// stub, a fixed-size CLI header, and a well-formed metadata root.
func clrHeaderOffset(view *pefile.View, img *arena.Image) (int64, bool) {
	dir, ok := view.DirectoryEntry(pefile.DirectoryEntryCOMDescriptor)
	if !ok || dir.VirtualAddress == 0 {
		return 0, false
	}

	if view.Is64Bit() {
		if view.DirectoryCount() < pefile.DirectoryEntryCOMDescriptor {
			return 0, false
		}
	} else if view.Characteristics()&pefile.ImageFileDLL == 0 {
		// 32-bit .NET executables enter through a jmp [addr] stub.
		entryOff := view.RVAToOffset(view.EntryPointRVA())
		if entryOff < 0 {
			return 0, false
		}
		stub, ok := img.Bytes(entryOff, 2)
		if !ok || stub[0] != 0xFF || stub[1] != 0x25 {
			return 0, false
		}
	}

	cliOff := view.RVAToOffset(dir.VirtualAddress)
	if cliOff < 0 || !img.Fits(cliOff, cliHeaderSize) {
		return 0, false
	}
	size, _ := img.U32(cliOff)
	if size != cliHeaderSize {
		return 0, false
	}

	metadataRVA, _ := img.U32(cliOff + 8)
	metadataRoot := view.RVAToOffset(metadataRVA)
	if metadataRoot < 0 || !img.Fits(metadataRoot, metadataRootSize) {
		return 0, false
	}
	magic, _ := img.U32(metadataRoot)
	if magic != metadataMagic {
		return 0, false
	}
	versionLen, _ := img.U32(metadataRoot + 12)
	if versionLen == 0 || versionLen > 255 || versionLen%4 != 0 {
		return 0, false
	}
	return cliOff, true
}
