package driver

import (
	"math"
	"testing"
)

func TestFloatRegisterAddress(t *testing.T) {
	cases := map[uint16]uint16{
		1:   0x8000 + 2,
		2:   0x8000 + 4,
		202: 0x8000 + 404,
	}
	for addr, want := range cases {
		if got := floatRegisterAddress(addr); got != want {
			t.Errorf("floatRegisterAddress(%d) = 0x%x, want 0x%x", addr, got, want)
		}
	}
}

func TestDecodeFloat32LowWordFirst(t *testing.T) {
	want := float32(123.5)
	bits := math.Float32bits(want)
	hi := uint16(bits >> 16)
	lo := uint16(bits & 0xFFFF)
	regs := []uint16{lo, hi}
	got := decodeFloat32(regs, 0)
	if got != want {
		t.Fatalf("decodeFloat32 = %v, want %v", got, want)
	}
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	cases := map[float64]int64{
		2.5:  3,
		-2.5: -3,
		2.4:  2,
		-2.4: -2,
		0.5:  1,
		-0.5: -1,
		0:    0,
	}
	for in, want := range cases {
		if got := roundHalfAwayFromZero(in); got != want {
			t.Errorf("roundHalfAwayFromZero(%v) = %v, want %v", in, got, want)
		}
	}
}
