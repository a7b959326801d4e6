// raster3d.go - Software scanline rasterizer for the 3D engine

/*
raster3d.go - Software Rasterizer

Ported from the teacher's `voodoo_software.go` barycentric rasterizer
(bounding-box scan, edge-function inside test, perspective-correct
interpolation via 1/w, depth buffer) down to the NDS's simpler fixed
256x192 output with 5-bit channels and polygon-id-based translucency rule (spec 4.7:
a translucent pixel only writes depth if its polygon id differs from
what is already there, rather than the teacher's alpha-blend-always
path).

Rasterizer is the interface raster3d_vulkan.go's hardware backend also
implements, so the geometry engine and top-level emulator can select
either without caring which one is active.
*/

package ndscore

import "math"

// Rasterizer turns one frame's polygon RAM into a 256x192 color buffer.
type Rasterizer interface {
	RenderFrame(polys []Polygon) [ScreenHeight][ScreenWidth]Color
}

// SoftwareRasterizer is the default backend, always available.
type SoftwareRasterizer struct {
	depth [ScreenHeight][ScreenWidth]float64
	polyID [ScreenHeight][ScreenWidth]int
	FogEnabled bool
	FogColor   Color
	FogStart   float64 // depth 0..1 where fog begins

	// AlphaTestThreshold discards a sampled texel whose alpha falls below
	// it (spec 4.7: "apply alpha test against a global threshold"), 0..1.
	AlphaTestThreshold float64

	vram *VRAM
}

func NewSoftwareRasterizer(vram *VRAM) *SoftwareRasterizer {
	return &SoftwareRasterizer{vram: vram}
}

func (r *SoftwareRasterizer) RenderFrame(polys []Polygon) [ScreenHeight][ScreenWidth]Color {
	var out [ScreenHeight][ScreenWidth]Color
	for y := 0; y < ScreenHeight; y++ {
		for x := 0; x < ScreenWidth; x++ {
			r.depth[y][x] = 1.0
			r.polyID[y][x] = -1
		}
	}

	for i := range polys {
		r.rasterize(&polys[i], &out)
	}

	if r.FogEnabled {
		r.applyFog(&out)
	}
	return out
}

func (r *SoftwareRasterizer) rasterize(poly *Polygon, out *[ScreenHeight][ScreenWidth]Color) {
	a, b, c := poly.V[0], poly.V[1], poly.V[2]

	minX := clampi(int(math.Floor(min3(a.X, b.X, c.X))), 0, ScreenWidth)
	maxX := clampi(int(math.Ceil(max3(a.X, b.X, c.X))), 0, ScreenWidth)
	minY := clampi(int(math.Floor(min3(a.Y, b.Y, c.Y))), 0, ScreenHeight)
	maxY := clampi(int(math.Ceil(max3(a.Y, b.Y, c.Y))), 0, ScreenHeight)

	area := edge3D(a.X, a.Y, b.X, b.Y, c.X, c.Y)
	if area == 0 {
		return
	}
	invArea := 1.0 / area

	for y := minY; y < maxY; y++ {
		py := float64(y) + 0.5
		for x := minX; x < maxX; x++ {
			px := float64(x) + 0.5

			w0 := edge3D(b.X, b.Y, c.X, c.Y, px, py)
			w1 := edge3D(c.X, c.Y, a.X, a.Y, px, py)
			w2 := edge3D(a.X, a.Y, b.X, b.Y, px, py)
			if (w0 < 0 || w1 < 0 || w2 < 0) && (w0 > 0 || w1 > 0 || w2 > 0) {
				continue // mixed signs: outside triangle
			}
			w0 *= invArea
			w1 *= invArea
			w2 *= invArea

			z := w0*a.Z + w1*b.Z + w2*c.Z
			existingID := r.polyID[y][x]
			if poly.DepthTestLE {
				if z > r.depth[y][x] {
					continue
				}
			} else if z >= r.depth[y][x] {
				continue
			}

			// perspective-correct attribute interpolation via 1/w weights
			iw := w0*a.InvW + w1*b.InvW + w2*c.InvW
			if iw == 0 {
				continue
			}
			rC := (w0*a.R*a.InvW + w1*b.R*b.InvW + w2*c.R*c.InvW) / iw
			gC := (w0*a.G*a.InvW + w1*b.G*b.InvW + w2*c.G*c.InvW) / iw
			bC := (w0*a.B*a.InvW + w1*b.B*b.InvW + w2*c.B*c.InvW) / iw

			if poly.TexFormat != TexNone && r.vram != nil {
				sC := (w0*a.S*a.InvW + w1*b.S*b.InvW + w2*c.S*c.InvW) / iw
				tC := (w0*a.T*a.InvW + w1*b.T*b.InvW + w2*c.T*c.InvW) / iw
				tr, tg, tb, ta, ok := r.sampleTexture(poly, sC, tC)
				if !ok || ta < r.AlphaTestThreshold {
					continue
				}
				rC, gC, bC = tr*rC, tg*gC, tb*bC
			}

			if poly.Translucent && int(poly.PolyID) == existingID {
				// same id as already-drawn pixel: blend color, skip depth write
				out[y][x] = blendRGB6(out[y][x], floatToColor(rC, gC, bC))
				continue
			}

			out[y][x] = floatToColor(rC, gC, bC)
			r.depth[y][x] = z
			r.polyID[y][x] = int(poly.PolyID)
		}
	}
}

// sampleTexture looks up one texel for Tex256Color/TexDirect (spec 4.7's
// mandatory texture sampling); other formats are a disclosed gap and fall
// through returning ok=false so the caller keeps the plain vertex color.
func (r *SoftwareRasterizer) sampleTexture(poly *Polygon, s, t float64) (rf, gf, bf, af float64, ok bool) {
	if poly.TexWidth == 0 || poly.TexHeight == 0 {
		return 0, 0, 0, 0, false
	}
	tx := wrapTexel(int(math.Floor(s)), poly.TexWidth)
	ty := wrapTexel(int(math.Floor(t)), poly.TexHeight)

	switch poly.TexFormat {
	case Tex256Color:
		texelAddr := poly.TexVRAMOffset + uint32(ty*poly.TexWidth+tx)
		idx := r.vram.Read8(UsageTextureImage, texelAddr)
		if idx == 0 {
			return 0, 0, 0, 0, false // palette index 0 is transparent
		}
		rgb := r.vram.Read16(UsageTexturePalette, poly.TexPaletteBase+uint32(idx)*2)
		c := unpackRGB15(uint32(rgb))
		return c[0], c[1], c[2], 1, true
	case TexDirect:
		texelAddr := poly.TexVRAMOffset + uint32(ty*poly.TexWidth+tx)*2
		raw := r.vram.Read16(UsageTextureImage, texelAddr)
		if raw&0x8000 == 0 {
			return 0, 0, 0, 0, false // alpha bit clear: fully transparent
		}
		c := unpackRGB15(uint32(raw))
		return c[0], c[1], c[2], 1, true
	default:
		return 0, 0, 0, 0, false
	}
}

func wrapTexel(v, size int) int {
	v %= size
	if v < 0 {
		v += size
	}
	return v
}

func (r *SoftwareRasterizer) applyFog(out *[ScreenHeight][ScreenWidth]Color) {
	for y := 0; y < ScreenHeight; y++ {
		for x := 0; x < ScreenWidth; x++ {
			d := r.depth[y][x]
			if d < r.FogStart || d >= 1.0 {
				continue
			}
			factor := (d - r.FogStart) / (1.0 - r.FogStart)
			out[y][x] = lerpColor(out[y][x], r.FogColor, factor)
		}
	}
}

func edge3D(ax, ay, bx, by, cx, cy float64) float64 {
	return (cx-ax)*(by-ay) - (cy-ay)*(bx-ax)
}

func floatToColor(r, g, b float64) Color {
	return Color{R: to5(r), G: to5(g), B: to5(b), Opaque: true}
}

func to5(v float64) uint8 {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return uint8(v * 31)
}

func blendRGB6(dst, src Color) Color {
	return Color{
		R: uint8((int(dst.R) + int(src.R)) / 2),
		G: uint8((int(dst.G) + int(src.G)) / 2),
		B: uint8((int(dst.B) + int(src.B)) / 2),
		Opaque: true,
	}
}

func lerpColor(a, b Color, t float64) Color {
	l := func(x, y uint8) uint8 { return uint8(float64(x) + (float64(y)-float64(x))*t) }
	return Color{R: l(a.R, b.R), G: l(a.G, b.G), B: l(a.B, b.B), Opaque: true}
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func clampi(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
