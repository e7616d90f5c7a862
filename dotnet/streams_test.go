package dotnet

import (
	"encoding/binary"
	"testing"

	"github.com/picklover/InteYara/dotnet/internal/arena"
)

// streamHeader renders one stream header: offset, size, then the name
// NUL-padded to the next 4-byte boundary.
func streamHeader(offset, size uint32, name string) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b, offset)
	binary.LittleEndian.PutUint32(b[4:], size)
	b = append(b, name...)
	for pad := 4 - len(name)%4; pad > 0; pad-- {
		b = append(b, 0)
	}
	return b
}

func TestWalkStreams(t *testing.T) {
	var data []byte
	data = append(data, streamHeader(0x100, 10, "#~")...)
	data = append(data, streamHeader(0x200, 20, "#Strings")...)
	data = append(data, streamHeader(0x300, 30, "#US")...)
	data = append(data, streamHeader(0x400, 40, "#GUID")...)
	data = append(data, streamHeader(0x500, 50, "#Blob")...)

	headers, set := walkStreams(arena.New(data), 0, 0, 5)

	if len(headers) != 5 {
		t.Fatalf("got %d headers, want 5", len(headers))
	}
	wantNames := []string{"#~", "#Strings", "#US", "#GUID", "#Blob"}
	for i, want := range wantNames {
		if headers[i].Name != want {
			t.Errorf("headers[%d].Name = %q, want %q", i, headers[i].Name, want)
		}
	}

	if set.tilde == nil || set.tilde.offset != 0x100 || set.tilde.size != 10 {
		t.Errorf("tilde = %+v", set.tilde)
	}
	if set.strings == nil || set.strings.offset != 0x200 {
		t.Errorf("strings = %+v", set.strings)
	}
	if set.us == nil || set.us.offset != 0x300 {
		t.Errorf("us = %+v", set.us)
	}
	if set.guid == nil || set.guid.offset != 0x400 {
		t.Errorf("guid = %+v", set.guid)
	}
	if set.blob == nil || set.blob.offset != 0x500 {
		t.Errorf("blob = %+v", set.blob)
	}
}

func TestWalkStreamsRebasesAgainstMetadataRoot(t *testing.T) {
	data := make([]byte, 0x50)
	copy(data[0x10:], streamHeader(0x100, 4, "#-"))

	_, set := walkStreams(arena.New(data), 0x1000, 0x10, 1)
	if set.tilde == nil {
		t.Fatal("tilde stream not recognized")
	}
	if set.tilde.offset != 0x1100 {
		t.Errorf("tilde offset = %#x, want 0x1100", set.tilde.offset)
	}
}

func TestWalkStreamsFirstOccurrenceWins(t *testing.T) {
	var data []byte
	data = append(data, streamHeader(0x100, 10, "#Strings")...)
	data = append(data, streamHeader(0x200, 20, "#Strings")...)

	headers, set := walkStreams(arena.New(data), 0, 0, 2)
	if len(headers) != 2 {
		t.Fatalf("got %d headers, want 2", len(headers))
	}
	if set.strings == nil || set.strings.offset != 0x100 {
		t.Errorf("strings offset = %+v, want first occurrence at 0x100", set.strings)
	}
}

func TestWalkStreamsStopsAtTruncatedHeader(t *testing.T) {
	var data []byte
	data = append(data, streamHeader(0x100, 10, "#GUID")...)
	data = append(data, 0x01, 0x02) // garbage tail, too short for a header

	headers, _ := walkStreams(arena.New(data), 0, 0, 4)
	if len(headers) != 1 {
		t.Errorf("got %d headers, want 1", len(headers))
	}
}

func TestWalkStreamsUnterminatedName(t *testing.T) {
	data := make([]byte, 8, 8+streamNameSize)
	for i := 0; i < streamNameSize; i++ {
		data = append(data, 'A')
	}
	headers, _ := walkStreams(arena.New(data), 0, 0, 1)
	if len(headers) != 0 {
		t.Errorf("got %d headers, want 0", len(headers))
	}
}
