package ndscore

import (
	"bytes"
	"image/png"
	"testing"
)

func TestEncodeFramePNGProducesDecodablePNG(t *testing.T) {
	var frame [ScreenHeight][ScreenWidth]Color
	frame[0][0] = Color{R: 31, G: 0, B: 0, Opaque: true}

	var buf bytes.Buffer
	if err := EncodeFramePNG(&buf, frame, 1); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != ScreenWidth || b.Dy() != ScreenHeight {
		t.Fatalf("decoded size = %v, want %dx%d", b, ScreenWidth, ScreenHeight)
	}
}

func TestEncodeFramePNGScalesByFactor(t *testing.T) {
	var frame [ScreenHeight][ScreenWidth]Color
	var buf bytes.Buffer
	if err := EncodeFramePNG(&buf, frame, 2); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != ScreenWidth*2 || b.Dy() != ScreenHeight*2 {
		t.Fatalf("decoded size = %v, want %dx%d", b, ScreenWidth*2, ScreenHeight*2)
	}
}

func TestDumpVRAMBankPNGRoundTrips(t *testing.T) {
	v := NewVRAM()
	v.MapBank(0, UsageBGEngineA, 0)
	v.Write8(UsageBGEngineA, 5, 0x80)

	data, err := DumpVRAMBankPNG(v, 0, 64)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := png.Decode(bytes.NewReader(data)); err != nil {
		t.Fatalf("DumpVRAMBankPNG produced an undecodable PNG: %v", err)
	}
}
