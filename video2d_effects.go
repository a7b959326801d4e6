// video2d_effects.go - Window selection, color special effects, master brightness

/*
video2d_effects.go - Windows and Color Effects

Up to four windows can restrict which layers draw at a given pixel: two
rectangular windows (WIN0/WIN1, WIN0 taking priority where both cover a
pixel), the sprite layer's own per-pixel OBJ window (painted by
video2d_obj.go's prerender pass using the window-flag OAM attribute), and
an implicit "outside all windows" region. Each carries its own six-bit
enable mask (BG0-3, OBJ, color-effects), per spec 4.7.

Color special effects (alpha blend, brightness increase, brightness
decrease) apply to the top one or two composited layers per spec 4.7's
target-layer selection bitmask, evaluated after window masking and before
master brightness.
*/

package ndscore

// WindowRect is one rectangular window's bounds and per-layer enable mask.
// Mask bit order: BG0, BG1, BG2, BG3, OBJ, Effects.
type WindowRect struct {
	X1, X2, Y1, Y2 uint8
	Enabled        bool
	Mask           [6]bool
}

func (w WindowRect) contains(x, y int) bool {
	if !w.Enabled {
		return false
	}
	inX := x >= int(w.X1) && x < int(w.X2)
	if w.X2 < w.X1 { // wraps around the right edge
		inX = x >= int(w.X1) || x < int(w.X2)
	}
	inY := y >= int(w.Y1) && y < int(w.Y2)
	if w.Y2 < w.Y1 {
		inY = y >= int(w.Y1) || y < int(w.Y2)
	}
	return inX && inY
}

// WindowState holds both rectangular windows, the OBJ-window mask, and the
// outside mask applied when a pixel falls in none of the enabled windows.
type WindowState struct {
	Win0, Win1  WindowRect
	AnyEnabled  bool
	OBJWinMask  [6]bool
	OutsideMask [6]bool
}

// enabledAt returns the six-element layer-enable mask in effect at (x,
// line): BG0..BG3, OBJ, Effects. objWindowAt is the per-pixel OBJ-window flag
// computed by the sprite prerender pass.
func (w *WindowState) enabledAt(e *Engine, x, line int) [6]bool {
	if !w.AnyEnabled {
		var all [6]bool
		for i := range all {
			all[i] = true
		}
		return all
	}
	if w.Win0.contains(x, line) {
		return w.Win0.Mask
	}
	if w.Win1.contains(x, line) {
		return w.Win1.Mask
	}
	if e.objWindowAt(x, line) {
		return w.OBJWinMask
	}
	return w.OutsideMask
}

// EffectMode is the color special-effect kind (spec 4.7).
type EffectMode uint8

const (
	EffectNone EffectMode = iota
	EffectAlphaBlend
	EffectBrightnessInc
	EffectBrightnessDec
)

// EffectState is BLDCNT/BLDALPHA/BLDY: which layers are eligible as the
// blend's first/second target, the effect mode, and its coefficients.
type EffectState struct {
	Mode        EffectMode
	FirstMask   [5]bool // BG0-3, OBJ
	SecondMask  [5]bool
	EVA, EVB    uint8 // alpha-blend coefficients, 0-16
	EVY         uint8 // brightness coefficient, 0-16
}

func clamp5(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 31 {
		return 31
	}
	return uint8(v)
}

// apply blends top against second when both are valid effect targets and
// the mode is alpha blend; otherwise it falls back to applySingle's
// brightness-only treatment of top.
func (es *EffectState) apply(top, second layerPixel, effectsEnabled bool) Color {
	if effectsEnabled && es.Mode == EffectAlphaBlend && es.FirstMask[top.layer] && es.SecondMask[second.layer] {
		r := (int(top.color.R)*int(es.EVA) + int(second.color.R)*int(es.EVB)) / 16
		g := (int(top.color.G)*int(es.EVA) + int(second.color.G)*int(es.EVB)) / 16
		b := (int(top.color.B)*int(es.EVA) + int(second.color.B)*int(es.EVB)) / 16
		return Color{clamp5(r), clamp5(g), clamp5(b), true}
	}
	return es.applySingle(top, effectsEnabled)
}

func (es *EffectState) applySingle(top layerPixel, effectsEnabled bool) Color {
	if !effectsEnabled || !es.FirstMask[top.layer] {
		return top.color
	}
	c := top.color
	switch es.Mode {
	case EffectBrightnessInc:
		return Color{
			clamp5(int(c.R) + (31-int(c.R))*int(es.EVY)/16),
			clamp5(int(c.G) + (31-int(c.G))*int(es.EVY)/16),
			clamp5(int(c.B) + (31-int(c.B))*int(es.EVY)/16),
			true,
		}
	case EffectBrightnessDec:
		return Color{
			clamp5(int(c.R) - int(c.R)*int(es.EVY)/16),
			clamp5(int(c.G) - int(c.G)*int(es.EVY)/16),
			clamp5(int(c.B) - int(c.B)*int(es.EVY)/16),
			true,
		}
	default:
		return c
	}
}

// BrightnessControl is the master-brightness stage applied after
// compositing: a whole-screen fade up or down toward white/black.
type BrightnessControl struct {
	Mode   uint8 // 0 = off, 1 = up, 2 = down
	Factor uint8 // 0-16
}

func (b BrightnessControl) apply(c Color) Color {
	if !c.Opaque {
		return c
	}
	switch b.Mode {
	case 1:
		return Color{
			clamp5(int(c.R) + (31-int(c.R))*int(b.Factor)/16),
			clamp5(int(c.G) + (31-int(c.G))*int(b.Factor)/16),
			clamp5(int(c.B) + (31-int(c.B))*int(b.Factor)/16),
			true,
		}
	case 2:
		return Color{
			clamp5(int(c.R) - int(c.R)*int(b.Factor)/16),
			clamp5(int(c.G) - int(c.G)*int(b.Factor)/16),
			clamp5(int(c.B) - int(c.B)*int(b.Factor)/16),
			true,
		}
	default:
		return c
	}
}
