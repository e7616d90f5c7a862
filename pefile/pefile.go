// Package pefile provides a minimal header view over a Windows PE image.
//
// It exposes exactly what the metadata extractor needs from the outer
// container: data-directory lookup, RVA to file-offset translation, and a
// handful of header fields. The heavy lifting of locating the headers is
// delegated to Binject's debug/pe fork; section-based address translation
// is layered on top because the extractor works with raw file offsets.
package pefile

import (
	"bytes"
	"errors"
	"fmt"

	bpe "github.com/Binject/debug/pe"
)

// Well-known data-directory indices and file characteristics used by the
// metadata extractor.
const (
	DirectoryEntryCOMDescriptor = 14

	ImageFileDLL = 0x2000
)

// ErrNoOptionalHeader is returned for images whose optional header is
// missing or of an unknown format.
var ErrNoOptionalHeader = errors.New("pefile: no optional header")

// DataDirectory is one entry of the optional header's directory array.
type DataDirectory struct {
	VirtualAddress uint32
	Size           uint32
}

type section struct {
	virtualAddress uint32
	size           uint32
	offset         uint32
}

// View is a pre-parsed, read-only view over a PE image buffer.
type View struct {
	data            []byte
	sections        []section
	dirs            []DataDirectory
	dirCount        uint32
	entryPoint      uint32
	characteristics uint16
	is64            bool
}

// New parses the PE container in data and returns a header view. The
// returned View retains data; the caller must not mutate it.
func New(data []byte) (*View, error) {
	f, err := bpe.NewFile(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("pefile: parse headers: %w", err)
	}

	v := &View{
		data:            data,
		characteristics: f.FileHeader.Characteristics,
	}

	switch oh := f.OptionalHeader.(type) {
	case *bpe.OptionalHeader32:
		v.entryPoint = oh.AddressOfEntryPoint
		v.dirCount = oh.NumberOfRvaAndSizes
		for _, d := range oh.DataDirectory {
			v.dirs = append(v.dirs, DataDirectory{d.VirtualAddress, d.Size})
		}
	case *bpe.OptionalHeader64:
		v.is64 = true
		v.entryPoint = oh.AddressOfEntryPoint
		v.dirCount = oh.NumberOfRvaAndSizes
		for _, d := range oh.DataDirectory {
			v.dirs = append(v.dirs, DataDirectory{d.VirtualAddress, d.Size})
		}
	default:
		return nil, ErrNoOptionalHeader
	}

	for _, s := range f.Sections {
		if s.Size == 0 {
			continue
		}
		v.sections = append(v.sections, section{
			virtualAddress: s.VirtualAddress,
			size:           s.Size,
			offset:         s.Offset,
		})
	}

	return v, nil
}

// Data returns the underlying image buffer.
func (v *View) Data() []byte {
	return v.data
}

// Is64Bit reports whether the image has a PE32+ optional header.
func (v *View) Is64Bit() bool {
	return v.is64
}

// Characteristics returns the COFF file characteristics flags.
func (v *View) Characteristics() uint16 {
	return v.characteristics
}

// EntryPointRVA returns the optional header's entry-point RVA.
func (v *View) EntryPointRVA() uint32 {
	return v.entryPoint
}

// DirectoryCount returns the optional header's NumberOfRvaAndSizes.
func (v *View) DirectoryCount() uint32 {
	return v.dirCount
}

// DirectoryEntry returns the data directory at index i, if the optional
// header declares that many entries.
func (v *View) DirectoryEntry(i int) (DataDirectory, bool) {
	if i < 0 || uint32(i) >= v.dirCount || i >= len(v.dirs) {
		return DataDirectory{}, false
	}
	return v.dirs[i], true
}

// RVAToOffset translates a relative virtual address to a file offset using
// the section table, or -1 if the address is not mapped by any section.
// Addresses below the first section translate to themselves: the header
// region is mapped 1:1.
func (v *View) RVAToOffset(rva uint32) int64 {
	lowest := uint32(0)
	haveLowest := false

	for _, s := range v.sections {
		if rva >= s.virtualAddress && uint64(rva) < uint64(s.virtualAddress)+uint64(s.size) {
			return int64(s.offset) + int64(rva-s.virtualAddress)
		}
		if !haveLowest || s.virtualAddress < lowest {
			lowest = s.virtualAddress
			haveLowest = true
		}
	}

	if !haveLowest || rva < lowest {
		return int64(rva)
	}
	return -1
}
