// video3d.go - 3D geometry engine: command FIFO, matrix stacks, clipping

/*
video3d.go - 3D Geometry Engine

Generalizes the teacher's Voodoo command path (`video_voodoo.go`'s
register-write-triggers-triangle-flush model) to the DS geometry engine's
command-FIFO shape, spec 4.7. The FIFO is modeled as a queue of decoded
commands (up to 256) rather than a literal byte ring; Step drains it on
request. Nothing in this package schedules SlotGeometryFIFO or calls Step,
and no "FIFO half-empty" DMA trigger is raised.

Completed primitives are clipped against the six frustum planes in clip
space (Sutherland-Hodgman, spec 4.7 stage 3), then perspective-divided and
fan-triangulated into polygon RAM for the rasterizer (raster3d.go) to
consume, one frame's worth at a time.
*/

package ndscore

import "math"

const (
	geomFIFOCapacity  = 256
	polygonRAMCapacity = 2048
	vertexRAMCapacity  = 6144
)

// light is one of the four directional lights DIF_AMB/LIGHT_VECTOR/
// LIGHT_COLOR configure, spec 4.7's lighting stage.
type light struct {
	dir   [3]float64
	color [3]float64
}

// geomCommand is one decoded FIFO entry: opcode plus its fixed parameter
// count (spec 4.7: commands consume 0-32 parameter words).
type geomCommand struct {
	opcode uint8
	params []uint32
}

// GeometryEngine owns the three matrix stacks, in-progress primitive state,
// and the polygon RAM the rasterizer reads from.
type GeometryEngine struct {
	fifo []geomCommand

	projStack matrixStack
	posStack  matrixStack
	vecStack  matrixStack
	texStack  matrixStack

	clipDirty   bool
	clipMatrix  Mat4
	mode        matrixMode

	inPrimitive bool
	primType    PrimitiveType
	vertsPending []Vertex
	curColor     [3]float64
	curTexcoord  [2]float64
	curNormal    [3]float64

	lights        [4]light
	lightsEnabled [4]bool
	matDiffuse    [3]float64
	matAmbient    [3]float64
	useVertexColorAsDiffuse bool

	curTexFormat      TextureFormat
	curTexVRAMOffset  uint32
	curTexWidth       int
	curTexHeight      int
	curTexPaletteBase uint32

	PolyRAM   []Polygon
	nextPolyID uint8

	TwoSidedDefault bool

	ScreenW, ScreenH float64
}

func NewGeometryEngine() *GeometryEngine {
	g := &GeometryEngine{
		projStack: newMatrixStack(1),
		posStack:  newMatrixStack(31),
		vecStack:  newMatrixStack(31),
		texStack:  newMatrixStack(1),
		ScreenW:   ScreenWidth,
		ScreenH:   ScreenHeight,
	}
	g.clipMatrix = Identity4()
	return g
}

// Push queues one command for execution; Step is the only thing that
// drains the FIFO, and nothing calls it on a schedule.
func (g *GeometryEngine) Push(opcode uint8, params []uint32) {
	if len(g.fifo) >= geomFIFOCapacity {
		return // guest should have waited on FIFO-full IRQ; drop defensively
	}
	g.fifo = append(g.fifo, geomCommand{opcode: opcode, params: params})
}

func (g *GeometryEngine) FIFOLen() int { return len(g.fifo) }

// Step executes up to n queued commands, returning how many actually ran.
func (g *GeometryEngine) Step(n int) int {
	ran := 0
	for ran < n && len(g.fifo) > 0 {
		cmd := g.fifo[0]
		g.fifo = g.fifo[1:]
		g.exec(cmd)
		ran++
	}
	return ran
}

const (
	gxMtxMode     = 0x10
	gxMtxPush     = 0x11
	gxMtxPop      = 0x12
	gxMtxIdentity = 0x15
	gxMtxLoad4x4  = 0x16
	gxMtxMult4x4  = 0x18
	gxMtxScale    = 0x1B
	gxMtxTrans    = 0x1C
	gxColor       = 0x20
	gxNormal      = 0x21
	gxTexCoord    = 0x22
	gxVtx16       = 0x23
	gxPolygonAttr = 0x29
	gxTexImageParam = 0x2A
	gxPlttBase    = 0x2B
	gxDifAmb      = 0x30
	gxLightVector = 0x32
	gxLightColor  = 0x33
	gxBegin       = 0x40
	gxEnd         = 0x41
	gxSwapBuffers = 0x50
)

// matrixMode selects which stack subsequent MTX_ commands address, spec
// 4.7's MTX_MODE register (0=proj, 1=position, 2=position+vector, 3=tex).
type matrixMode uint8

func (g *GeometryEngine) exec(cmd geomCommand) {
	switch cmd.opcode {
	case gxMtxMode:
		if len(cmd.params) > 0 {
			g.mode = matrixMode(cmd.params[0] & 0x3)
		}
	case gxMtxPush:
		g.forEachActiveStack(func(s *matrixStack) { s.push() })
		if g.mode == 1 {
			g.vecStack.push() // position and vector stacks move as a pair
		}
	case gxMtxPop:
		n := 1
		if len(cmd.params) > 0 {
			n = int(int8(cmd.params[0] & 0x3F))
		}
		g.forEachActiveStack(func(s *matrixStack) { s.pop(n) })
		if g.mode == 1 {
			g.vecStack.pop(n)
		}
	case gxMtxIdentity:
		g.forEachActiveStack(func(s *matrixStack) { s.load(Identity4()) })
	case gxMtxLoad4x4:
		m := paramsToMat4(cmd.params)
		g.forEachActiveStack(func(s *matrixStack) { s.load(m) })
	case gxMtxMult4x4:
		m := paramsToMat4(cmd.params)
		g.forEachActiveStack(func(s *matrixStack) { s.multiply(m) })
	case gxMtxScale:
		sx, sy, sz := fx1612(cmd.params, 0), fx1612(cmd.params, 1), fx1612(cmd.params, 2)
		g.forEachActiveStack(func(s *matrixStack) { s.multiply(Scale4(sx, sy, sz)) })
	case gxMtxTrans:
		tx, ty, tz := fx1612(cmd.params, 0), fx1612(cmd.params, 1), fx1612(cmd.params, 2)
		g.forEachActiveStack(func(s *matrixStack) { s.multiply(Translate4(tx, ty, tz)) })
	case gxColor:
		if len(cmd.params) > 0 {
			g.curColor = unpackRGB15(cmd.params[0])
		}
	case gxNormal:
		if len(cmd.params) > 0 {
			g.curNormal = g.vecStack.current.transformNormal(unpackNormal10(cmd.params[0]))
		}
	case gxTexCoord:
		if len(cmd.params) > 0 {
			g.curTexcoord[0] = float64(int16(cmd.params[0]&0xFFFF)) / 16.0
			g.curTexcoord[1] = float64(int16(cmd.params[0]>>16)) / 16.0
		}
	case gxPolygonAttr:
		if len(cmd.params) > 0 {
			v := cmd.params[0]
			for i := 0; i < 4; i++ {
				g.lightsEnabled[i] = v&(1<<uint(i)) != 0
			}
		}
	case gxTexImageParam:
		if len(cmd.params) > 0 {
			v := cmd.params[0]
			g.curTexVRAMOffset = (v & 0xFFFF) * 8
			g.curTexWidth = 8 << ((v >> 16) & 0x7)
			g.curTexHeight = 8 << ((v >> 19) & 0x7)
			g.curTexFormat = TextureFormat((v >> 23) & 0x7)
		}
	case gxPlttBase:
		if len(cmd.params) > 0 {
			g.curTexPaletteBase = (cmd.params[0] & 0x1FFF) * 16
		}
	case gxDifAmb:
		if len(cmd.params) > 0 {
			v := cmd.params[0]
			g.matDiffuse = unpackRGB15(v)
			g.matAmbient = unpackRGB15(v >> 16)
			g.useVertexColorAsDiffuse = v&(1<<15) != 0
		}
	case gxLightVector:
		if len(cmd.params) > 0 {
			v := cmd.params[0]
			idx := (v >> 30) & 0x3
			g.lights[idx].dir = g.vecStack.current.transformNormal(unpackNormal10(v))
		}
	case gxLightColor:
		if len(cmd.params) > 0 {
			v := cmd.params[0]
			idx := (v >> 30) & 0x3
			g.lights[idx].color = unpackRGB15(v)
		}
	case gxVtx16:
		if len(cmd.params) >= 2 {
			x := float64(int16(cmd.params[0]&0xFFFF)) / 4096.0
			y := float64(int16(cmd.params[0]>>16)) / 4096.0
			z := float64(int16(cmd.params[1]&0xFFFF)) / 4096.0
			g.submitVertex(x, y, z)
		}
	case gxBegin:
		if len(cmd.params) > 0 {
			g.beginPrimitive(PrimitiveType(cmd.params[0] & 0x3))
		}
	case gxEnd:
		g.inPrimitive = false
	case gxSwapBuffers:
		// frame presentation handled by the top-level emulator, which
		// renders and flushes PolyRAM at VBlank; nothing to do here.
	}
}

func (g *GeometryEngine) forEachActiveStack(f func(s *matrixStack)) {
	switch g.mode {
	case 0:
		f(&g.projStack)
	case 1:
		f(&g.posStack)
	case 2:
		f(&g.posStack)
		f(&g.vecStack)
	case 3:
		f(&g.texStack)
	}
}

func (g *GeometryEngine) beginPrimitive(t PrimitiveType) {
	g.inPrimitive = true
	g.primType = t
	g.vertsPending = g.vertsPending[:0]
}

func (g *GeometryEngine) submitVertex(x, y, z float64) {
	clip := g.posStack.current.Mul(g.projStack.current)
	cx, cy, cz, cw := clip.MulVec4(x, y, z, 1)
	r, gc, b := g.litColor()
	v := Vertex{
		X: cx, Y: cy, Z: cz, W: cw,
		R: r, G: gc, B: b, A: 1,
		S: g.curTexcoord[0], T: g.curTexcoord[1],
	}
	g.vertsPending = append(g.vertsPending, v)
	g.tryEmitPrimitive()
}

// litColor applies DIF_AMB/LIGHT_VECTOR/LIGHT_COLOR per-vertex lighting
// (spec 4.7's "applies lighting if enabled"), falling back to the plain
// COLOR vertex color when no light is enabled for this polygon.
func (g *GeometryEngine) litColor() (r, gr, b float64) {
	anyLight := false
	for _, on := range g.lightsEnabled {
		if on {
			anyLight = true
			break
		}
	}
	if !anyLight {
		return g.curColor[0], g.curColor[1], g.curColor[2]
	}

	diffuse := g.matDiffuse
	if g.useVertexColorAsDiffuse {
		diffuse = g.curColor
	}

	sum := g.matAmbient
	for i, on := range g.lightsEnabled {
		if !on {
			continue
		}
		l := g.lights[i]
		ndotl := -dot3(g.curNormal, l.dir)
		if ndotl < 0 {
			ndotl = 0
		}
		for c := 0; c < 3; c++ {
			sum[c] += ndotl * diffuse[c] * l.color[c]
		}
	}
	for c := 0; c < 3; c++ {
		if sum[c] > 1 {
			sum[c] = 1
		}
	}
	return sum[0], sum[1], sum[2]
}

func dot3(a, b [3]float64) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

// transformNormal rotates a unit normal/light vector by m's upper-left 3x3
// (no translation, matching real hardware's vector-stack semantics) and
// renormalizes, since uniform scale in the vector stack would otherwise
// change the vector's length.
func (m Mat4) transformNormal(v [3]float64) [3]float64 {
	x := m[0]*v[0] + m[4]*v[1] + m[8]*v[2]
	y := m[1]*v[0] + m[5]*v[1] + m[9]*v[2]
	z := m[2]*v[0] + m[6]*v[1] + m[10]*v[2]
	length := math.Sqrt(x*x + y*y + z*z)
	if length == 0 {
		return [3]float64{0, 0, 0}
	}
	return [3]float64{x / length, y / length, z / length}
}

// unpackNormal10 decodes NORMAL/LIGHT_VECTOR's packed 10.10.10 signed
// fixed-point direction (spec 4.7), one component per 10-bit field.
func unpackNormal10(raw uint32) [3]float64 {
	x := signExtend10(raw & 0x3FF)
	y := signExtend10((raw >> 10) & 0x3FF)
	z := signExtend10((raw >> 20) & 0x3FF)
	return [3]float64{float64(x) / 512.0, float64(y) / 512.0, float64(z) / 512.0}
}

func signExtend10(v uint32) int32 {
	if v&0x200 != 0 {
		return int32(v) - 0x400
	}
	return int32(v)
}

// tryEmitPrimitive emits completed polygons as vertsPending accumulates
// enough vertices for the active primitive type, spec 4.7 stage 2's
// strip/fan accumulation (strips reuse the previous two vertices).
func (g *GeometryEngine) tryEmitPrimitive() {
	n := len(g.vertsPending)
	switch g.primType {
	case PrimTriangles:
		if n == 3 {
			g.clipAndEmit(g.vertsPending[0], g.vertsPending[1], g.vertsPending[2])
			g.vertsPending = g.vertsPending[:0]
		}
	case PrimTriangleStrip:
		if n >= 3 {
			a, b, c := g.vertsPending[n-3], g.vertsPending[n-2], g.vertsPending[n-1]
			g.clipAndEmit(a, b, c)
		}
	case PrimQuads:
		if n == 4 {
			v := g.vertsPending
			g.clipAndEmit(v[0], v[1], v[2])
			g.clipAndEmit(v[0], v[2], v[3])
			g.vertsPending = g.vertsPending[:0]
		}
	case PrimQuadStrip:
		if n >= 4 && n%2 == 0 {
			v := g.vertsPending
			a, b, c, d := v[n-4], v[n-3], v[n-1], v[n-2]
			g.clipAndEmit(a, b, c)
			g.clipAndEmit(b, d, c)
		}
	}
}

func (g *GeometryEngine) clipAndEmit(a, b, c Vertex) {
	clipped := clipTriangle([]Vertex{a, b, c})
	for i := 1; i+1 < len(clipped); i++ {
		g.emitTriangle(clipped[0], clipped[i], clipped[i+1])
	}
}

func (g *GeometryEngine) emitTriangle(a, b, c Vertex) {
	sa := perspectiveDivide(a, g.ScreenW, g.ScreenH)
	sb := perspectiveDivide(b, g.ScreenW, g.ScreenH)
	sc := perspectiveDivide(c, g.ScreenW, g.ScreenH)

	area := signedArea2D(sa, sb, sc)
	if area == 0 {
		return
	}
	if area < 0 && !g.TwoSidedDefault {
		return // back-facing, spec 4.7 stage 4
	}

	if len(g.PolyRAM) >= polygonRAMCapacity {
		return
	}
	g.PolyRAM = append(g.PolyRAM, Polygon{
		V:              [3]ScreenVertex{sa, sb, sc},
		PolyID:         g.nextPolyID,
		DepthTestLE:    true,
		TexFormat:      g.curTexFormat,
		TexVRAMOffset:  g.curTexVRAMOffset,
		TexWidth:       g.curTexWidth,
		TexHeight:      g.curTexHeight,
		TexPaletteBase: g.curTexPaletteBase,
	})
	g.nextPolyID++
}

// Flush clears polygon RAM for the next frame, called by the emulator
// after the rasterizer has consumed the current frame's polygons.
func (g *GeometryEngine) Flush() {
	g.PolyRAM = g.PolyRAM[:0]
	g.nextPolyID = 0
}

func paramsToMat4(p []uint32) Mat4 {
	var m Mat4
	for i := 0; i < 16 && i < len(p); i++ {
		m[i] = fx1612At(p[i])
	}
	return m
}

func fx1612(p []uint32, idx int) float64 {
	if idx >= len(p) {
		return 0
	}
	return fx1612At(p[idx])
}

func fx1612At(raw uint32) float64 { return float64(int32(raw)) / 4096.0 }

func unpackRGB15(v uint32) [3]float64 {
	r := float64(v&0x1F) / 31.0
	g := float64((v>>5)&0x1F) / 31.0
	b := float64((v>>10)&0x1F) / 31.0
	return [3]float64{r, g, b}
}
