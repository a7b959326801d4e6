// video3d_geom.go - Matrix stacks, vertex math, fixed-point helpers

/*
video3d_geom.go - Geometry Engine Math

The DS's geometry engine runs everything in 1.19.12 fixed point (spec 4.7);
this generalizes to float64 throughout since there is no hardware-accuracy
requirement on the emulated math itself, matching the teacher's own
voodoo rasterizer which works entirely in float32 despite the real Voodoo
chip being fixed-function hardware (`voodoo_software.go`).

Three matrix stacks exist: projection (depth 1), position/vector (depth
31, pushed/popped together), texture (depth 1). Position and vector are
tracked as a pair because lighting needs the un-translated vector matrix
to transform normals while the position matrix carries the full
transform, spec 4.7 stage 1.
*/

package ndscore

// Mat4 is a column-major 4x4 matrix, matching the row/column convention
// the geometry command set's MTX_MULT_4x4 uses.
type Mat4 [16]float64

func Identity4() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

func (a Mat4) Mul(b Mat4) Mat4 {
	var out Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += a[k*4+row] * b[col*4+k]
			}
			out[col*4+row] = sum
		}
	}
	return out
}

func (m Mat4) MulVec4(x, y, z, w float64) (ox, oy, oz, ow float64) {
	ox = m[0]*x + m[4]*y + m[8]*z + m[12]*w
	oy = m[1]*x + m[5]*y + m[9]*z + m[13]*w
	oz = m[2]*x + m[6]*y + m[10]*z + m[14]*w
	ow = m[3]*x + m[7]*y + m[11]*z + m[15]*w
	return
}

func Scale4(sx, sy, sz float64) Mat4 {
	m := Identity4()
	m[0], m[5], m[10] = sx, sy, sz
	return m
}

func Translate4(tx, ty, tz float64) Mat4 {
	m := Identity4()
	m[12], m[13], m[14] = tx, ty, tz
	return m
}

// matrixStack is a fixed-depth push/pop stack. Each stack keeps its own sp;
// GeometryEngine.exec pushes and pops the position and vector stacks
// together (MTX_MODE 1 and 2), so their pointers stay paired.
type matrixStack struct {
	slots   []Mat4
	current Mat4
	sp      int
}

func newMatrixStack(depth int) matrixStack {
	s := matrixStack{slots: make([]Mat4, depth), current: Identity4()}
	return s
}

func (s *matrixStack) push() {
	if s.sp < len(s.slots) {
		s.slots[s.sp] = s.current
	}
	s.sp++
}

func (s *matrixStack) pop(n int) {
	s.sp -= n
	if s.sp < 0 {
		s.sp = 0
	}
	if s.sp < len(s.slots) {
		s.current = s.slots[s.sp]
	}
}

func (s *matrixStack) load(m Mat4)     { s.current = m }
func (s *matrixStack) multiply(m Mat4) { s.current = s.current.Mul(m) }

// Vertex is one submitted vertex after transform, before clipping. W is
// kept in clip space (pre-divide) since clipping needs it, spec 4.7 stage 3.
type Vertex struct {
	X, Y, Z, W     float64 // clip-space position
	R, G, B, A     float64 // 0..1, interpolated color
	S, T           float64 // texcoord
}

// PrimitiveType selects how Begin groups subsequent vertices into polygons,
// spec 4.7 stage 2.
type PrimitiveType uint8

const (
	PrimTriangles PrimitiveType = iota
	PrimQuads
	PrimTriangleStrip
	PrimQuadStrip
)

// TextureFormat is TEXIMAGE_PARAM's 3-bit format field (spec 4.7's
// "texture sampling"). Only TexNone, Tex256Color and TexDirect are
// actually sampled by the rasterizer (raster3d.go); the others decode
// into a Polygon but fall back to the interpolated vertex color, same
// disclosed-gap treatment as raster3d.go's fog (a linear ramp, no fog table).
type TextureFormat uint8

const (
	TexNone TextureFormat = iota
	TexA3I5
	Tex4Color
	Tex16Color
	Tex256Color
	TexCompressed
	TexA5I3
	TexDirect
)

// Polygon is a clipped, screen-space primitive ready for rasterization
// (always decomposed into triangles by video3d.go's clipAndEmit/emitTriangle).
type Polygon struct {
	V           [3]ScreenVertex
	Translucent bool
	PolyID      uint8
	DepthTestLE bool // true = less-or-equal, false = strictly-less
	TwoSided    bool

	TexFormat      TextureFormat
	TexVRAMOffset  uint32 // byte offset into UsageTextureImage
	TexWidth       int
	TexHeight      int
	TexPaletteBase uint32 // byte offset into UsageTexturePalette
}

// ScreenVertex is a Polygon's corner after the perspective divide: screen
// x/y in pixels, depth and 1/w for perspective-correct interpolation.
type ScreenVertex struct {
	X, Y       float64
	Z          float64
	InvW       float64
	R, G, B, A float64
	S, T       float64
}

func perspectiveDivide(v Vertex, screenW, screenH float64) ScreenVertex {
	invW := 1.0
	if v.W != 0 {
		invW = 1.0 / v.W
	}
	ndcX := v.X * invW
	ndcY := v.Y * invW
	ndcZ := v.Z * invW
	return ScreenVertex{
		X:    (ndcX*0.5 + 0.5) * screenW,
		Y:    (1 - (ndcY*0.5 + 0.5)) * screenH,
		Z:    ndcZ*0.5 + 0.5,
		InvW: invW,
		R:    v.R, G: v.G, B: v.B, A: v.A,
		S: v.S * invW, T: v.T * invW,
	}
}

// signedArea2D is twice the screen-space triangle area; its sign
// determines winding for backface culling, spec 4.7 stage 4, the same
// test voodoo_software.go's edgeFunction performs during rasterization.
func signedArea2D(a, b, c ScreenVertex) float64 {
	return (b.X-a.X)*(c.Y-a.Y) - (c.X-a.X)*(b.Y-a.Y)
}

// clipPlane is one of the six frustum half-spaces in clip space, tested
// as dot(v, normal) + w*wOffset >= 0.
type clipPlane struct {
	nx, ny, nz, nw float64
}

var frustumPlanes = [6]clipPlane{
	{1, 0, 0, 1},  // x >= -w
	{-1, 0, 0, 1}, // x <= w
	{0, 1, 0, 1},  // y >= -w
	{0, -1, 0, 1}, // y <= w
	{0, 0, 1, 1},  // z >= -w
	{0, 0, -1, 1}, // z <= w
}

func (p clipPlane) distance(v Vertex) float64 {
	return p.nx*v.X + p.ny*v.Y + p.nz*v.Z + p.nw*v.W
}

func lerpVertex(a, b Vertex, t float64) Vertex {
	return Vertex{
		X: a.X + (b.X-a.X)*t, Y: a.Y + (b.Y-a.Y)*t,
		Z: a.Z + (b.Z-a.Z)*t, W: a.W + (b.W-a.W)*t,
		R: a.R + (b.R-a.R)*t, G: a.G + (b.G-a.G)*t, B: a.B + (b.B-a.B)*t, A: a.A + (b.A-a.A)*t,
		S: a.S + (b.S-a.S)*t, T: a.T + (b.T-a.T)*t,
	}
}

// clipTriangle runs Sutherland-Hodgman clipping of a triangle against all
// six frustum planes in clip space, spec 4.7 stage 3, returning a (possibly
// empty) convex polygon fan-triangulated by the caller.
func clipTriangle(poly []Vertex) []Vertex {
	for _, plane := range frustumPlanes {
		if len(poly) == 0 {
			break
		}
		poly = clipAgainstPlane(poly, plane)
	}
	return poly
}

func clipAgainstPlane(poly []Vertex, plane clipPlane) []Vertex {
	if len(poly) == 0 {
		return poly
	}
	out := make([]Vertex, 0, len(poly)+1)
	prev := poly[len(poly)-1]
	prevDist := plane.distance(prev)
	for _, cur := range poly {
		curDist := plane.distance(cur)
		if curDist >= 0 {
			if prevDist < 0 {
				t := prevDist / (prevDist - curDist)
				out = append(out, lerpVertex(prev, cur, t))
			}
			out = append(out, cur)
		} else if prevDist >= 0 {
			t := prevDist / (prevDist - curDist)
			out = append(out, lerpVertex(prev, cur, t))
		}
		prev, prevDist = cur, curDist
	}
	return out
}
