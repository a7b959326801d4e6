// vramdebug.go - PNG export of VRAM banks and rendered frame buffers

/*
vramdebug.go - Frame/VRAM Debug Export

A debugging aid with no guest-visible effect: dumps a VRAM bank's raw
bytes or a completed top/bottom screen buffer to a PNG, the way the
teacher's `video_chip.go` decodes and scales its splash PNG through
`image`/`image/draw` rather than a hand-rolled codec. Scaling (for a
2x/3x debug preview window) goes through `golang.org/x/image/draw`
instead of the teacher's own bilinear `scaleImageToMode`, since the NDS
debug overlay wants a nearest-neighbour option too (for inspecting tile
data without blur) that the x/image draw.Kind selection gives for free.
*/

package ndscore

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"

	xdraw "golang.org/x/image/draw"
)

// FrameToImage converts one screen buffer (video2d.go's Color grid) into a
// standard library image.RGBA, opaque pixels rendered from their 5-bit
// channels, transparent ones as solid black (debug export has no alpha
// channel to preserve a backdrop against).
func FrameToImage(frame [ScreenHeight][ScreenWidth]Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, ScreenWidth, ScreenHeight))
	for y := 0; y < ScreenHeight; y++ {
		for x := 0; x < ScreenWidth; x++ {
			px := frame[y][x]
			if !px.Opaque {
				img.SetRGBA(x, y, color.RGBA{A: 255})
				continue
			}
			img.SetRGBA(x, y, color.RGBA{
				R: expand5to8(px.R),
				G: expand5to8(px.G),
				B: expand5to8(px.B),
				A: 255,
			})
		}
	}
	return img
}

func expand5to8(v uint8) uint8 { return (v << 3) | (v >> 2) }

// EncodeFramePNG writes frame to w as a PNG, optionally scaled by factor
// (1 = no scaling) using nearest-neighbour, which preserves the hard
// pixel edges useful when inspecting raw tile/sprite output rather than
// the bilinear smoothing `video_chip.go`'s splash-image scaler applies.
func EncodeFramePNG(w io.Writer, frame [ScreenHeight][ScreenWidth]Color, factor int) error {
	img := FrameToImage(frame)
	if factor <= 1 {
		return png.Encode(w, img)
	}
	dst := image.NewRGBA(image.Rect(0, 0, ScreenWidth*factor, ScreenHeight*factor))
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return png.Encode(w, dst)
}

// VRAMBankToImage renders one bank's raw bytes as a fixed-width grayscale
// strip, purely for eyeballing tile/bitmap data layout; it applies no
// palette or tile-format interpretation; bytes map directly to intensity.
func VRAMBankToImage(bank []byte, width int) *image.Gray {
	if width <= 0 {
		width = 256
	}
	height := (len(bank) + width - 1) / width
	if height == 0 {
		height = 1
	}
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i, b := range bank {
		x, y := i%width, i/width
		img.SetGray(x, y, color.Gray{Y: b})
	}
	return img
}

// DumpVRAMBankPNG encodes one VRAM bank (vram.go's BankBytes) as a PNG
// into a fresh buffer, for a front end to write to disk or attach to a
// debug HTTP response without this package knowing about files.
func DumpVRAMBankPNG(v *VRAM, bank int, width int) ([]byte, error) {
	img := VRAMBankToImage(v.BankBytes(bank), width)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
