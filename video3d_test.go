package ndscore

import "testing"

func TestMatrixStackPushLoadPop(t *testing.T) {
	s := newMatrixStack(4)
	s.push()
	s.load(Scale4(2, 2, 2))
	if s.current[0] != 2 {
		t.Fatalf("expected loaded scale matrix, got %+v", s.current)
	}
	s.pop(1)
	if s.current != Identity4() {
		t.Fatalf("expected identity after pop, got %+v", s.current)
	}
}

func TestGeometryEngineEmitsTriangleFromThreeVertices(t *testing.T) {
	g := NewGeometryEngine()
	g.TwoSidedDefault = true
	g.exec(geomCommand{opcode: gxBegin, params: []uint32{0}})
	submit := func(x, y, z int32) {
		lo := uint32(uint16(int16(x))) | uint32(uint16(int16(y)))<<16
		hi := uint32(uint16(int16(z)))
		g.exec(geomCommand{opcode: gxVtx16, params: []uint32{lo, hi}})
	}
	submit(-4096, -4096, 0)
	submit(4096, -4096, 0)
	submit(0, 4096, 0)

	if len(g.PolyRAM) != 1 {
		t.Fatalf("expected one emitted polygon, got %d", len(g.PolyRAM))
	}
}

func TestClipTriangleFullyInsideIsUnchanged(t *testing.T) {
	tri := []Vertex{
		{X: 0, Y: 0, Z: 0, W: 1},
		{X: 0.5, Y: 0, Z: 0, W: 1},
		{X: 0, Y: 0.5, Z: 0, W: 1},
	}
	out := clipTriangle(tri)
	if len(out) != 3 {
		t.Fatalf("expected unchanged triangle, got %d verts", len(out))
	}
}

func TestClipTriangleOutsideFrustumIsEmpty(t *testing.T) {
	tri := []Vertex{
		{X: 10, Y: 10, Z: 0, W: 1},
		{X: 11, Y: 10, Z: 0, W: 1},
		{X: 10, Y: 11, Z: 0, W: 1},
	}
	out := clipTriangle(tri)
	if len(out) != 0 {
		t.Fatalf("expected fully-clipped triangle to vanish, got %d verts", len(out))
	}
}

func TestGeometryEngineAppliesLightingWhenEnabled(t *testing.T) {
	g := NewGeometryEngine()
	g.lightsEnabled[0] = true
	g.lights[0] = light{dir: [3]float64{0, 0, -1}, color: [3]float64{1, 1, 1}}
	g.matDiffuse = [3]float64{1, 1, 1}
	g.matAmbient = [3]float64{0, 0, 0}
	g.curNormal = [3]float64{0, 0, 1} // faces directly into the light

	r, gr, b := g.litColor()
	if r == 0 && gr == 0 && b == 0 {
		t.Fatalf("expected lit color to be non-black, got %v %v %v", r, gr, b)
	}
}

func TestGeometryEngineFallsBackToPlainColorWithNoLights(t *testing.T) {
	g := NewGeometryEngine()
	g.curColor = [3]float64{0.5, 0.25, 0.1}
	r, gr, b := g.litColor()
	if r != 0.5 || gr != 0.25 || b != 0.1 {
		t.Fatalf("expected plain vertex color with no lights enabled, got %v %v %v", r, gr, b)
	}
}

func TestSoftwareRasterizerSamplesTex256ColorTexture(t *testing.T) {
	vram := NewVRAM()
	vram.MapBank(0, UsageTextureImage, 0)
	vram.MapBank(1, UsageTexturePalette, 0)
	vram.Write8(UsageTextureImage, 0, 1) // single texel, palette index 1
	vram.Write16(UsageTexturePalette, 2, 0x001F) // index 1 -> pure red (R=31)

	r := NewSoftwareRasterizer(vram)
	poly := Polygon{
		V: [3]ScreenVertex{
			{X: 0, Y: 191, Z: 0.5, InvW: 1, R: 1, G: 1, B: 1, S: 0, T: 0},
			{X: 255, Y: 191, Z: 0.5, InvW: 1, R: 1, G: 1, B: 1, S: 0, T: 0},
			{X: 128, Y: 0, Z: 0.5, InvW: 1, R: 1, G: 1, B: 1, S: 0, T: 0},
		},
		DepthTestLE: true,
		TexFormat:   Tex256Color,
		TexWidth:    1,
		TexHeight:   1,
	}
	frame := r.RenderFrame([]Polygon{poly})
	center := frame[128][128]
	if center.R == 0 {
		t.Fatalf("expected red-sampled pixel, got %+v", center)
	}
}

func TestSoftwareRasterizerCenterPixelIsAverageOfVertexColors(t *testing.T) {
	r := NewSoftwareRasterizer(nil)
	poly := Polygon{
		V: [3]ScreenVertex{
			{X: 0, Y: 191, Z: 0.5, InvW: 1, R: 1, G: 0, B: 0},
			{X: 255, Y: 191, Z: 0.5, InvW: 1, R: 0, G: 1, B: 0},
			{X: 128, Y: 0, Z: 0.5, InvW: 1, R: 0, G: 0, B: 1},
		},
		DepthTestLE: true,
	}
	frame := r.RenderFrame([]Polygon{poly})
	center := frame[128][128]
	if !center.Opaque {
		t.Fatal("expected the triangle interior to produce an opaque pixel")
	}
	if center.R != 10 || center.G != 10 || center.B != 10 {
		t.Fatalf("center = %+v, want R=G=B=10 (a third of 31 each)", center)
	}
}
