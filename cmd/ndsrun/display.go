// display.go - ebiten front end: drives RunFrame and renders both screens

/*
display.go - Display Front End

Grounded on the teacher's `video_backend_ebiten.go`: an `ebiten.Game`
implementation whose `Update` drives the emulation and whose `Draw`
blits the latest frame buffer into the window, `Layout` pinning a fixed
logical size the way the teacher's `EbitenOutput.Layout` returns its
configured width/height rather than the host window's. The NDS's two
screens are stacked vertically into one window, matching how real
hardware and every other DS front end present them.
*/

package main

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	ndscore "github.com/twindrive/ndscore"
)

const windowScale = 2

type ndsGame struct {
	emu *ndscore.Emulator

	top    [ndscore.ScreenHeight][ndscore.ScreenWidth]ndscore.Color
	bottom [ndscore.ScreenHeight][ndscore.ScreenWidth]ndscore.Color

	topImg, bottomImg *ebiten.Image
}

// PushFrame implements ndscore.FrameSink; the emulator calls it once per
// VBlank from inside RunFrame, so by the time Update returns the fields
// below hold the frame just produced.
func (g *ndsGame) PushFrame(top, bottom [ndscore.ScreenHeight][ndscore.ScreenWidth]ndscore.Color) {
	g.top, g.bottom = top, bottom
}

func (g *ndsGame) Update() error {
	if ebiten.IsWindowBeingClosed() {
		return ebiten.Termination
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		return ebiten.Termination
	}
	g.emu.Keys = readKeypad()
	g.emu.RunFrame()

	g.topImg = ebiten.NewImageFromImage(ndscore.FrameToImage(g.top))
	g.bottomImg = ebiten.NewImageFromImage(ndscore.FrameToImage(g.bottom))
	return nil
}

func (g *ndsGame) Draw(screen *ebiten.Image) {
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Scale(windowScale, windowScale)
	if g.topImg != nil {
		screen.DrawImage(g.topImg, op)
	}
	op.GeoM.Reset()
	op.GeoM.Scale(windowScale, windowScale)
	op.GeoM.Translate(0, float64(ndscore.ScreenHeight*windowScale))
	if g.bottomImg != nil {
		screen.DrawImage(g.bottomImg, op)
	}
}

func (g *ndsGame) Layout(_, _ int) (int, int) {
	return ndscore.ScreenWidth * windowScale, ndscore.ScreenHeight * 2 * windowScale
}

func readKeypad() ndscore.KeypadState {
	return ndscore.KeypadState{
		A:      ebiten.IsKeyPressed(ebiten.KeyX),
		B:      ebiten.IsKeyPressed(ebiten.KeyZ),
		Select: ebiten.IsKeyPressed(ebiten.KeyBackspace),
		Start:  ebiten.IsKeyPressed(ebiten.KeyEnter),
		Right:  ebiten.IsKeyPressed(ebiten.KeyArrowRight),
		Left:   ebiten.IsKeyPressed(ebiten.KeyArrowLeft),
		Up:     ebiten.IsKeyPressed(ebiten.KeyArrowUp),
		Down:   ebiten.IsKeyPressed(ebiten.KeyArrowDown),
		R:      ebiten.IsKeyPressed(ebiten.KeyS),
		L:      ebiten.IsKeyPressed(ebiten.KeyA),
		X:      ebiten.IsKeyPressed(ebiten.KeyW),
		Y:      ebiten.IsKeyPressed(ebiten.KeyQ),
	}
}

func runDisplay(emu *ndscore.Emulator) {
	game := &ndsGame{
		emu:       emu,
		topImg:    ebiten.NewImage(ndscore.ScreenWidth, ndscore.ScreenHeight),
		bottomImg: ebiten.NewImage(ndscore.ScreenWidth, ndscore.ScreenHeight),
	}
	emu.SetFrameSink(game)

	ebiten.SetWindowSize(ndscore.ScreenWidth*windowScale, ndscore.ScreenHeight*2*windowScale)
	ebiten.SetWindowTitle("ndsrun")
	ebiten.SetWindowResizable(true)

	if err := ebiten.RunGame(game); err != nil {
		panic(err)
	}
}
