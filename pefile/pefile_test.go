package pefile_test

import (
	"encoding/binary"
	"testing"

	"github.com/picklover/InteYara/pefile"
)

// testImage is a minimal 32-bit PE with one section mapping RVA 0x2000 to
// file offset 0x400 and a populated COM descriptor directory entry.
func testImage() []byte {
	le16 := func(b []byte, v uint16) { binary.LittleEndian.PutUint16(b, v) }
	le32 := func(b []byte, v uint32) { binary.LittleEndian.PutUint32(b, v) }

	buf := make([]byte, 0x1400)
	copy(buf, "MZ")
	le32(buf[0x3C:], 0x80)
	copy(buf[0x80:], "PE\x00\x00")

	fh := buf[0x84:]
	le16(fh[0:], 0x014C)
	le16(fh[2:], 1)
	le16(fh[16:], 224)
	le16(fh[18:], 0x2102)

	opt := buf[0x98:]
	le16(opt[0:], 0x10B)
	le32(opt[92:], 16)
	le32(opt[96+14*8:], 0x2000)
	le32(opt[96+14*8+4:], 72)

	sec := buf[0x98+224:]
	copy(sec, ".text")
	le32(sec[8:], 0x1000)
	le32(sec[12:], 0x2000)
	le32(sec[16:], 0x1000)
	le32(sec[20:], 0x400)

	return buf
}

func TestNew(t *testing.T) {
	v, err := pefile.New(testImage())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if v.Is64Bit() {
		t.Error("Is64Bit() = true for a PE32 image")
	}
	if v.Characteristics()&pefile.ImageFileDLL == 0 {
		t.Error("DLL characteristic lost")
	}
	if v.DirectoryCount() != 16 {
		t.Errorf("DirectoryCount() = %d, want 16", v.DirectoryCount())
	}

	dir, ok := v.DirectoryEntry(pefile.DirectoryEntryCOMDescriptor)
	if !ok {
		t.Fatal("COM descriptor entry missing")
	}
	if dir.VirtualAddress != 0x2000 || dir.Size != 72 {
		t.Errorf("COM descriptor = %+v", dir)
	}

	if _, ok := v.DirectoryEntry(20); ok {
		t.Error("DirectoryEntry(20) = ok past NumberOfRvaAndSizes")
	}
	if _, ok := v.DirectoryEntry(-1); ok {
		t.Error("DirectoryEntry(-1) = ok")
	}
}

func TestNewRejectsGarbage(t *testing.T) {
	if _, err := pefile.New([]byte("definitely not a pe")); err == nil {
		t.Error("want error for garbage input")
	}
	if _, err := pefile.New(nil); err == nil {
		t.Error("want error for empty input")
	}
}

func TestRVAToOffset(t *testing.T) {
	v, err := pefile.New(testImage())
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	tests := []struct {
		rva  uint32
		want int64
	}{
		{0x2000, 0x400},  // section start
		{0x2100, 0x500},  // inside the section
		{0x2FFF, 0x13FF}, // last mapped byte
		{0x3000, -1},     // one past the section
		{0x50, 0x50},     // header region maps 1:1
		{0xFFFFFFFF, -1},
	}
	for _, tt := range tests {
		if got := v.RVAToOffset(tt.rva); got != tt.want {
			t.Errorf("RVAToOffset(%#x) = %#x, want %#x", tt.rva, got, tt.want)
		}
	}
}
