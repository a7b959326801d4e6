package ndscore

import "testing"

func TestEngineForcedBlankIsWhite(t *testing.T) {
	e := NewEngine(true, NewVRAM())
	e.ForcedBlank = true
	line := e.RenderScanline(0)
	if line[0] != (Color{0xFF, 0xFF, 0xFF, true}) {
		t.Fatalf("forced blank pixel = %+v, want white", line[0])
	}
}

func TestEngineTextBGRendersOpaquePixelFromPalette(t *testing.T) {
	v := NewVRAM()
	v.MapBank(0, UsageBGEngineA, 0)
	e := NewEngine(true, v)
	e.DispMode = DisplayGraphics
	e.Mode = BGMode0
	e.BGEnabled[0] = true
	e.BG[0] = BGControl{Priority: 0, TileBase: 0x10000, MapBase: 0, ScreenSize: 0, Use256Color: false}

	// Map entry 0 at mapBase 0 references tile index 1, palette bank 0.
	v.Write16(UsageBGEngineA, 0, 1)
	// Tile 1, 4bpp: row 0 col 0 nibble = color index 5.
	tileAddr := uint32(0x10000) + 1*32
	v.Write8(UsageBGEngineA, tileAddr, 0x05)
	// Palette bank 0, color 5.
	e.PaletteWrite16(5*2, 0b0_11111_00000_00000) // blue-ish in RGB555 (B=31)

	line := e.RenderScanline(0)
	if !line[0].Opaque {
		t.Fatal("expected opaque BG pixel at x=0")
	}
	if line[0].B != 31 {
		t.Fatalf("got B=%d, want 31", line[0].B)
	}
}

func TestWindowMasksDisabledLayer(t *testing.T) {
	e := NewEngine(true, NewVRAM())
	e.Windows.AnyEnabled = true
	e.Windows.Win0 = WindowRect{X1: 0, X2: 255, Y1: 0, Y2: 192, Enabled: true, Mask: [6]bool{false, true, true, true, true, true}}

	mask := e.Windows.enabledAt(e, 10, 10)
	if mask[0] {
		t.Fatal("BG0 should be masked off by Win0")
	}
	if !mask[1] {
		t.Fatal("BG1 should remain enabled by Win0's mask")
	}
}

func TestBrightnessIncreaseTowardsWhite(t *testing.T) {
	b := BrightnessControl{Mode: 1, Factor: 16}
	got := b.apply(Color{R: 0, G: 0, B: 0, Opaque: true})
	if got.R != 31 || got.G != 31 || got.B != 31 {
		t.Fatalf("max brightness-up of black = %+v, want white", got)
	}
}

func TestSpritePriorityLowerOAMIndexWinsTies(t *testing.T) {
	e := NewEngine(true, NewVRAM())
	v := e.vram
	v.MapBank(4, UsageOBJEngineA, 0) // bank E as OBJ tile memory

	setSprite := func(idx int, x, y int, tile int, priority uint8) {
		base := uint32(idx * 8)
		e.OAMWrite8(base, byte(y))
		e.OAMWrite8(base+1, 0)
		e.OAMWrite8(base+2, byte(x))
		e.OAMWrite8(base+3, byte(x>>8))
		e.OAMWrite8(base+4, byte(tile))
		e.OAMWrite8(base+5, byte((tile>>8)&0x3)|byte(priority)<<2)
	}
	// Sprite 0 (red, tile 1) and sprite 1 (green, tile 2) at the same screen
	// position and priority; sprite 0's colour must win.
	v.Write8(UsageOBJEngineA, 32, 0x03) // tile index 1, nibble = color 3
	v.Write8(UsageOBJEngineA, 64, 0x04) // tile index 2, nibble = color 4
	setSprite(0, 5, 5, 1, 1)
	setSprite(1, 5, 5, 2, 1)
	e.PaletteWrite16(0x200+3*2, 0b0_00000_00000_11111) // red
	e.PaletteWrite16(0x200+4*2, 0b0_00000_11111_00000) // green

	line := e.renderSpriteLine(5)
	if !line[5].color.Opaque {
		t.Fatal("expected an opaque sprite pixel at x=5")
	}
	if line[5].color.R != 31 || line[5].color.G != 0 {
		t.Fatalf("pixel at x=5 = %+v, want sprite 0's red", line[5].color)
	}
}
