package zxcore

import "testing"

func TestULAAddressScrambling(t *testing.T) {
	cases := []struct {
		offset int
		want   int
	}{
		{0x0000, 0x0000},
		{0x0100, 0x0020},
		{0x00E0, 0x0700},
	}
	for _, c := range cases {
		got := scrambleOffset(c.offset)
		if got != c.want {
			t.Fatalf("scrambleOffset(%#04x) = %#04x, want %#04x", c.offset, got, c.want)
		}
	}
}

func TestULAFieldDimensions(t *testing.T) {
	if ulaFrameWidth != 352 {
		t.Fatalf("ulaFrameWidth = %d, want 352", ulaFrameWidth)
	}
	if ulaFrameHeight != 288 {
		t.Fatalf("ulaFrameHeight = %d, want 288", ulaFrameHeight)
	}
}

func TestULAFlashTogglesEvery16Fields(t *testing.T) {
	clock := &Clock{}
	mem := &MemoryFabric{}
	v := NewULAVideo(clock, mem, nopIRQ{})

	for i := 0; i < 16; i++ {
		v.nextField()
	}
	if !v.flashRev {
		t.Fatalf("expected flashRev toggled after 16 fields")
	}
}

type nopIRQ struct{}

func (nopIRQ) SetIRQLine(bool) {}
