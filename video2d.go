// video2d.go - 2D scanline rendering engine (PPU A/B)

/*
video2d.go - 2D Graphics Engine

Two independent instances of this engine exist (A and B, spec 4.7); engine
A additionally supports bitmap/3D-blended background modes and capture,
engine B is tile-only. Rendering works one scanline at a time, matching
the hardware's real-time scanout and this teacher's `video_chip.go`
dirty-scanline-at-a-time update model: `RenderScanline` is called once per
line by the top-level emulator's HBlank handler and returns 256 composited
RGB555 pixels.

Compositing order per pixel (spec 4.7): prerendered sprite layer and the
four background layers are sorted by priority (0 highest), ties broken
BG0 > BG1 > BG2 > BG3 > OBJ; the top two surviving layers (after window
masking) feed the color-effect stage (video2d_effects.go); master
brightness is applied last.
*/

package ndscore

const (
	ScreenWidth  = 256
	ScreenHeight = 192
)

// BGMode selects how the four background layers are interpreted (spec
// 4.7's eight BG mode numbers 0-7, collapsed here to the distinct
// rendering shapes: text-only, text+affine, affine-only, large bitmap).
type BGMode uint8

const (
	BGMode0 BGMode = iota // BG0-3 all text
	BGMode1               // BG0-2 text, BG3 affine
	BGMode2               // BG0-1 text, BG2-3 affine
	BGMode3               // BG0-2 text, BG3 extended (bitmap/affine-bitmap)
	BGMode4               // BG0-1 text, BG2 affine, BG3 extended
	BGMode5               // BG0-1 text, BG2-3 extended
	BGMode6               // BG2 large bitmap only (engine A)
	BGMode7               // reserved
)

// DisplayMode selects what engine A's final pixel source is (spec 4.7):
// off (white), the composited 2D graphics, a direct VRAM bitmap (LCDC
// passthrough, used by some capture workflows), or the main-memory FIFO
// display mode games rarely use.
type DisplayMode uint8

const (
	DisplayOff DisplayMode = iota
	DisplayGraphics
	DisplayVRAM
	DisplayMainMemFIFO
)

// BGControl is one background layer's BGnCNT fields.
type BGControl struct {
	Priority      uint8
	TileBase      uint32
	Mosaic        bool
	Use256Color   bool
	MapBase       uint32
	ExtPaletteSlot uint8
	ScreenSize    uint8 // 0-3, meaning depends on text vs affine
	WrapAffine    bool
}

// Color is an RGB555 pixel with an extra bit marking transparency, the way
// the teacher's own framebuffer pixel type carries an alpha channel
// alongside RGB (`video_chip.go`'s RGBA output path).
type Color struct {
	R, G, B uint8
	Opaque  bool
}

// layerPixel is one layer's contribution to a screen pixel before
// compositing: its color, priority, and which layer produced it (for the
// effects stage's per-target-layer selection masks).
type layerPixel struct {
	color    Color
	priority uint8
	layer    int // 0-3 = BG0-3, 4 = OBJ
}

// Engine renders one of the two PPUs.
type Engine struct {
	IsEngineA bool

	vram    *VRAM
	palette []byte // 512B BG + 512B OBJ (OBJ at offset 0x200), engine-local per spec 4.7
	oam     []byte // 1KiB, engine-local

	objWinLine      [ScreenWidth]bool
	objWinLineValid bool
	objWinLineY     int

	Mode         BGMode
	DispMode     DisplayMode
	ForcedBlank  bool
	BGEnabled    [4]bool
	OBJEnabled   bool
	BG           [4]BGControl
	BGScrollX    [4]uint16
	BGScrollY    [4]uint16
	BGAffine     [4]AffineParams // BG2/3 only

	Windows   WindowState
	Effects   EffectState
	Bright    BrightnessControl

	VCount int
}

// AffineParams is one affine background's 2x2 transform plus reference
// point (BGnPA-PD, BGnX/Y), spec 4.7.
type AffineParams struct {
	A, B, C, D int16
	RefX, RefY int32
}

func NewEngine(isA bool, vram *VRAM) *Engine {
	return &Engine{
		IsEngineA: isA,
		vram:      vram,
		palette:   make([]byte, 1024),
		oam:       make([]byte, 1024),
	}
}

func (e *Engine) bgUsage() VRAMUsage {
	if e.IsEngineA {
		return UsageBGEngineA
	}
	return UsageBGEngineB
}

func (e *Engine) objUsage() VRAMUsage {
	if e.IsEngineA {
		return UsageOBJEngineA
	}
	return UsageOBJEngineB
}

func (e *Engine) PaletteRead16(offset uint32) uint16 {
	if int(offset+1) >= len(e.palette) {
		return 0
	}
	return uint16(e.palette[offset]) | uint16(e.palette[offset+1])<<8
}

func (e *Engine) PaletteWrite16(offset uint32, v uint16) {
	if int(offset+1) >= len(e.palette) {
		return
	}
	e.palette[offset] = byte(v)
	e.palette[offset+1] = byte(v >> 8)
}

func (e *Engine) OAMRead8(offset uint32) uint8 {
	if int(offset) >= len(e.oam) {
		return 0
	}
	return e.oam[offset]
}

func (e *Engine) OAMWrite8(offset uint32, v uint8) {
	if int(offset) >= len(e.oam) {
		return
	}
	e.oam[offset] = v
}

// RenderScanline composites one full 256-pixel line. If forced blank is
// set, the line is all-white per spec 4.7.
func (e *Engine) RenderScanline(line int) [ScreenWidth]Color {
	var out [ScreenWidth]Color
	if e.ForcedBlank || e.DispMode == DisplayOff {
		for i := range out {
			out[i] = Color{0xFF, 0xFF, 0xFF, true}
		}
		return out
	}

	sprites := e.renderSpriteLine(line)
	var bgLines [4][ScreenWidth]layerPixel
	var bgActive [4]bool
	for bg := 0; bg < 4; bg++ {
		if !e.BGEnabled[bg] || !e.bgModeHasLayer(bg) {
			continue
		}
		bgActive[bg] = true
		bgLines[bg] = e.renderBGLine(bg, line)
	}

	for x := 0; x < ScreenWidth; x++ {
		winEnable := e.Windows.enabledAt(e, x, line)

		var top, second layerPixel
		topSet, secondSet := false, false
		consider := func(p layerPixel, layerIdx int) {
			if !p.color.Opaque {
				return
			}
			if !winEnable[layerIdx] {
				return
			}
			if !topSet || p.priority < top.priority {
				second, secondSet = top, topSet
				top, topSet = p, true
			} else if !secondSet || p.priority < second.priority {
				second, secondSet = p, true
			}
		}

		for bg := 0; bg < 4; bg++ {
			if bgActive[bg] {
				consider(bgLines[bg][x], bg)
			}
		}
		if e.OBJEnabled {
			consider(sprites[x], 4)
		}

		if !topSet {
			out[x] = e.lookupBGColor(true, 0, 0) // backdrop: BG palette entry 0
			continue
		}
		result := top.color
		if secondSet {
			result = e.Effects.apply(top, second, winEnable[5])
		} else {
			result = e.Effects.applySingle(top, winEnable[5])
		}
		out[x] = e.Bright.apply(result)
	}
	return out
}

// bgModeHasLayer reports whether background index bg exists at all under
// the engine's current mode (spec 4.7's per-mode BG availability table).
func (e *Engine) bgModeHasLayer(bg int) bool {
	switch e.Mode {
	case BGMode0:
		return true
	case BGMode1, BGMode2:
		return true
	case BGMode3, BGMode4:
		return true
	case BGMode5:
		return true
	case BGMode6:
		return bg == 2
	default:
		return false
	}
}
