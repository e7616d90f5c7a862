package dotnet

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/picklover/InteYara/dotnet/internal/arena"
)

func TestParseBlobEntry(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want blobEntry
	}{
		{
			name: "empty image",
			data: nil,
			want: blobEntry{},
		},
		{
			name: "one byte form zero",
			data: []byte{0x00},
			want: blobEntry{Size: 1, Length: 0},
		},
		{
			name: "one byte form",
			data: []byte{0x05, 1, 2, 3, 4},
			want: blobEntry{Size: 1, Length: 4},
		},
		{
			name: "one byte form max",
			data: []byte{0x7F},
			want: blobEntry{Size: 1, Length: 0x7E},
		},
		{
			name: "two byte form",
			data: []byte{0x81, 0x10},
			want: blobEntry{Size: 2, Length: 0x10F},
		},
		{
			name: "two byte form truncated",
			data: []byte{0x81},
			want: blobEntry{},
		},
		{
			name: "four byte form",
			data: []byte{0xC1, 0x02, 0x03, 0x04, 0x00},
			want: blobEntry{Size: 4, Length: 0x01020304 - 1},
		},
		{
			name: "four byte form needs a fifth byte",
			data: []byte{0xC1, 0x02, 0x03, 0x04},
			want: blobEntry{},
		},
		{
			name: "reserved prefix",
			data: []byte{0xE0, 0x00, 0x00, 0x00, 0x00},
			want: blobEntry{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseBlobEntry(arena.New(tt.data), 0)
			if got != tt.want {
				t.Errorf("parseBlobEntry() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestReadDotnetString(t *testing.T) {
	img := arena.New([]byte("\x00Foo\x00bar"))

	if s, ok := readDotnetString(img, 1); !ok || s != "Foo" {
		t.Errorf("readDotnetString(1) = %q, %v; want Foo, true", s, ok)
	}
	if s, ok := readDotnetString(img, 0); !ok || s != "" {
		t.Errorf("readDotnetString(0) = %q, %v; want empty, true", s, ok)
	}
	// "bar" runs to the end of the image with no terminator.
	if _, ok := readDotnetString(img, 5); ok {
		t.Error("readDotnetString(5) = ok for unterminated string")
	}
	if _, ok := readDotnetString(img, 100); ok {
		t.Error("readDotnetString(100) = ok for offset past the image")
	}
}

func TestReadDotnetStringLengthCap(t *testing.T) {
	long := append(bytes.Repeat([]byte{'a'}, maxDotnetStringLength+1), 0)
	if _, ok := readDotnetString(arena.New(long), 0); ok {
		t.Error("string one past the cap was accepted")
	}

	exact := append(bytes.Repeat([]byte{'a'}, maxDotnetStringLength), 0)
	if s, ok := readDotnetString(arena.New(exact), 0); !ok || len(s) != maxDotnetStringLength {
		t.Errorf("string at the cap: len %d, ok %v", len(s), ok)
	}
}

func TestParseGUIDs(t *testing.T) {
	raw := []byte{
		0x01, 0x00, 0x00, 0x00,
		0x02, 0x00,
		0x03, 0x00,
		0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0A, 0x0B,
	}
	want := "00000001-0002-0003-0405-060708090a0b"

	got := parseGUIDs(arena.New(raw), 0, uint32(len(raw)))
	if len(got) != 1 || got[0] != want {
		t.Errorf("parseGUIDs() = %v, want [%s]", got, want)
	}
}

func TestParseGUIDsCap(t *testing.T) {
	// 20 entries present, but the heap is capped at 16.
	raw := bytes.Repeat([]byte{0xAA}, 20*16)
	got := parseGUIDs(arena.New(raw), 0, uint32(len(raw)))
	if len(got) != 16 {
		t.Errorf("got %d GUIDs, want 16", len(got))
	}
}

func TestParseGUIDsPartialTrailingEntry(t *testing.T) {
	raw := bytes.Repeat([]byte{0xAA}, 24)
	got := parseGUIDs(arena.New(raw), 0, uint32(len(raw)))
	if len(got) != 1 {
		t.Errorf("got %d GUIDs, want 1", len(got))
	}
}

func TestParseUserStrings(t *testing.T) {
	heap := []byte{
		0x00,                               // mandatory leading NUL
		0x05, 'h', 0x00, 'i', 0x00,         // length 5 entry: 4 bytes UTF-16 + flag
		0x01,                               // the flag byte parses as an empty entry
		0x00,                               // padding
	}
	got := parseUserStrings(arena.New(heap), 0, uint32(len(heap)))
	want := []string{"h\x00i\x00"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseUserStrings() = %q, want %q", got, want)
	}
}

func TestParseUserStringsRejectsBadLeadByte(t *testing.T) {
	if got := parseUserStrings(arena.New([]byte{0x01, 0x02}), 0, 2); got != nil {
		t.Errorf("heap without leading NUL produced %q", got)
	}
	if got := parseUserStrings(arena.New(nil), 0, 0); got != nil {
		t.Errorf("empty heap produced %q", got)
	}
}

func TestParseUserStringsDeclaredSizePastImage(t *testing.T) {
	heap := []byte{0x00, 0x03, 'x', 'y'}
	got := parseUserStrings(arena.New(heap), 0, 16)
	if got != nil {
		t.Errorf("oversized heap produced %q", got)
	}
}

func TestParseUserStringsTruncatedPayload(t *testing.T) {
	// The entry claims 8 payload bytes but the heap ends after 2, so the
	// walk yields nothing.
	heap := []byte{0x00, 0x09, 'x', 'y'}
	got := parseUserStrings(arena.New(heap), 0, uint32(len(heap)))
	if len(got) != 0 {
		t.Errorf("truncated heap produced %q", got)
	}
}
