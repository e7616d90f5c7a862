package arena

import (
	"math"
	"testing"
)

func TestFits(t *testing.T) {
	im := New(make([]byte, 16))

	tests := []struct {
		name string
		off  int64
		n    int64
		want bool
	}{
		{"whole buffer", 0, 16, true},
		{"empty range at start", 0, 0, true},
		{"empty range at end", 16, 0, true},
		{"one past end", 16, 1, false},
		{"last byte", 15, 1, true},
		{"straddles end", 8, 9, false},
		{"negative offset", -1, 4, false},
		{"negative length", 4, -1, false},
		{"overflowing sum", math.MaxInt64 - 1, 10, false},
		{"max offset", math.MaxInt64, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := im.Fits(tt.off, tt.n); got != tt.want {
				t.Errorf("Fits(%d, %d) = %v, want %v", tt.off, tt.n, got, tt.want)
			}
		})
	}
}

func TestFitsEmptyImage(t *testing.T) {
	im := New(nil)
	if !im.Fits(0, 0) {
		t.Error("Fits(0, 0) on empty image should hold")
	}
	if im.Fits(0, 1) {
		t.Error("Fits(0, 1) on empty image should fail")
	}
}

func TestReads(t *testing.T) {
	im := New([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08})

	if v, ok := im.U8(0); !ok || v != 0x01 {
		t.Errorf("U8(0) = %#x, %v", v, ok)
	}
	if v, ok := im.U16(0); !ok || v != 0x0201 {
		t.Errorf("U16(0) = %#x, %v", v, ok)
	}
	if v, ok := im.U32(2); !ok || v != 0x06050403 {
		t.Errorf("U32(2) = %#x, %v", v, ok)
	}
	if v, ok := im.U64(0); !ok || v != 0x0807060504030201 {
		t.Errorf("U64(0) = %#x, %v", v, ok)
	}

	if _, ok := im.U16(7); ok {
		t.Error("U16(7) should not fit")
	}
	if _, ok := im.U32(5); ok {
		t.Error("U32(5) should not fit")
	}
	if _, ok := im.U64(1); ok {
		t.Error("U64(1) should not fit")
	}
}

func TestBytes(t *testing.T) {
	im := New([]byte{0xAA, 0xBB, 0xCC})

	b, ok := im.Bytes(1, 2)
	if !ok || len(b) != 2 || b[0] != 0xBB || b[1] != 0xCC {
		t.Errorf("Bytes(1, 2) = %x, %v", b, ok)
	}
	if _, ok := im.Bytes(2, 2); ok {
		t.Error("Bytes(2, 2) should not fit")
	}
}
