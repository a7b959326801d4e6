// video2d_obj.go - Sprite (OBJ) prerendering

/*
video2d_obj.go - Sprite Rendering

128 OAM entries, 8 bytes each (attr0/1/2), one 2D/1D-mapped tile character
space per engine. Sprites are prerendered per scanline into a priority-
tagged buffer the same shape as a background layer's, so video2d.go's
compositor treats OBJ uniformly alongside BG0-3 (spec 4.7). OAM entry 127
order is back-to-front within a priority band, per spec 4.7's "lowest OAM
index within a priority wins ties" rule, so the scan below walks entries
127->0 and lets a later (lower-index) write overwrite an earlier one at
the same pixel.

Rotation/scaling ("affine") sprites are recognized (attr0 bit 8) but
rendered as a plain non-affine sprite of their nominal size - the 2x2
matrix sampling path real affine OAM entries use is not implemented; see
video2d_bg.go's affine background path for the sampling math this would
reuse if added.
*/

package ndscore

type objShape uint8

const (
	objSquare objShape = iota
	objHorizontal
	objVertical
)

var objSizeTable = [3][4][2]int{
	{{8, 8}, {16, 16}, {32, 32}, {64, 64}},
	{{16, 8}, {32, 8}, {32, 16}, {64, 32}},
	{{8, 16}, {8, 32}, {16, 32}, {32, 64}},
}

type objAttrs struct {
	y, x                 int
	shape                objShape
	size                 uint8
	affine               bool
	disabled             bool
	objWindow            bool
	use256Color          bool
	hFlip, vFlip         bool
	tileIndex            int
	priority             uint8
	palBank              uint8
	mosaic               bool
}

func (e *Engine) readOBJAttrs(index int) objAttrs {
	base := uint32(index * 8)
	attr0 := uint16(e.OAMRead8(base)) | uint16(e.OAMRead8(base+1))<<8
	attr1 := uint16(e.OAMRead8(base+2)) | uint16(e.OAMRead8(base+3))<<8
	attr2 := uint16(e.OAMRead8(base+4)) | uint16(e.OAMRead8(base+5))<<8

	mode := (attr0 >> 10) & 0x3
	a := objAttrs{
		y:           int(attr0 & 0xFF),
		shape:       objShape((attr0 >> 14) & 0x3),
		affine:      attr0&0x100 != 0,
		disabled:    !(attr0&0x100 != 0) && attr0&0x200 != 0, // disable bit only meaningful when not affine
		objWindow:   mode == 2,
		use256Color: attr0&0x2000 != 0,
		mosaic:      attr0&0x1000 != 0,
		x:           int(int16(attr1<<7) >> 7), // sign-extend 9-bit X
		size:        uint8((attr1 >> 14) & 0x3),
		hFlip:       !(attr0&0x100 != 0) && attr1&0x1000 != 0,
		vFlip:       !(attr0&0x100 != 0) && attr1&0x2000 != 0,
		tileIndex:   int(attr2 & 0x3FF),
		priority:    uint8((attr2 >> 10) & 0x3),
		palBank:     uint8((attr2 >> 12) & 0xF),
	}
	return a
}

// renderSpriteLine prerenders every enabled sprite covering `line` into a
// 256-wide priority-tagged pixel buffer; affine sprites are drawn unrotated
// and unscaled at their nominal size.
func (e *Engine) renderSpriteLine(line int) [ScreenWidth]layerPixel {
	var out [ScreenWidth]layerPixel
	var objWin [ScreenWidth]bool
	for i := range out {
		out[i].layer = 4
		out[i].priority = 4 // lower than any BG priority (0-3), so BG wins ties with an empty OBJ pixel
	}

	usage := e.objUsage()

	for idx := 127; idx >= 0; idx-- {
		a := e.readOBJAttrs(idx)
		if a.disabled {
			continue
		}
		w, h := objSizeTable[a.shape][a.size][0], objSizeTable[a.shape][a.size][1]
		y0 := a.y
		if y0+h > 256 {
			y0 -= 256 // Y wraps near the bottom of OAM's 8-bit range
		}
		if line < y0 || line >= y0+h {
			continue
		}
		rowInSprite := line - y0
		if a.vFlip {
			rowInSprite = h - 1 - rowInSprite
		}

		for col := 0; col < w; col++ {
			screenX := a.x + col
			if screenX < 0 || screenX >= ScreenWidth {
				continue
			}
			colInSprite := col
			if a.hFlip {
				colInSprite = w - 1 - col
			}

			tileRow, tileCol := rowInSprite/8, colInSprite/8
			rowInTile, colInTile := rowInSprite%8, colInSprite%8
			tilesPerRow := w / 8
			var tileOffset int
			if a.use256Color {
				tileOffset = a.tileIndex + (tileRow*tilesPerRow+tileCol)*2
			} else {
				tileOffset = a.tileIndex + tileRow*tilesPerRow + tileCol
			}

			var colorIdx uint8
			if a.use256Color {
				tileAddr := uint32(tileOffset)*32 + uint32(rowInTile)*8 + uint32(colInTile)
				colorIdx = e.vram.Read8(usage, tileAddr)
			} else {
				tileAddr := uint32(tileOffset)*32 + uint32(rowInTile)*4 + uint32(colInTile)/2
				b := e.vram.Read8(usage, tileAddr)
				if colInTile&1 == 0 {
					colorIdx = b & 0xF
				} else {
					colorIdx = b >> 4
				}
			}

			if a.objWindow {
				if colorIdx != 0 {
					objWin[screenX] = true
				}
				continue
			}
			if colorIdx == 0 {
				continue
			}
			if out[screenX].color.Opaque && out[screenX].priority < a.priority {
				continue // a higher-priority opaque sprite already won this pixel
			}
			out[screenX] = layerPixel{
				color:    e.lookupOBJColor(a.use256Color, a.palBank, colorIdx),
				priority: a.priority,
				layer:    4,
			}
		}
	}

	e.objWinLine = objWin
	e.objWinLineValid = true
	e.objWinLineY = line
	return out
}

func (e *Engine) lookupOBJColor(use256 bool, palBank uint8, colorIdx uint8) Color {
	var offset uint32 = 0x200 // OBJ palette follows the 256-entry (0x200-byte) BG palette
	if use256 {
		offset += uint32(colorIdx) * 2
	} else {
		offset += uint32(palBank)*32 + uint32(colorIdx)*2
	}
	v := e.PaletteRead16(offset)
	return Color{R: uint8(v & 0x1F), G: uint8((v >> 5) & 0x1F), B: uint8((v >> 10) & 0x1F), Opaque: true}
}

// objWindowAt reports whether the OBJ window mask is set at (x, line),
// using the mask computed by the most recent renderSpriteLine call for
// that line (the compositor always renders sprites before consulting
// windows for the same line).
func (e *Engine) objWindowAt(x, line int) bool {
	if !e.objWinLineValid || e.objWinLineY != line {
		return false
	}
	if x < 0 || x >= ScreenWidth {
		return false
	}
	return e.objWinLine[x]
}
