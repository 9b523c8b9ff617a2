package rw

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Geometry format flags.
const (
	geomTextured  = 0x4
	geomPrelit    = 0x8
	geomNormals   = 0x10
	geomTextured2 = 0x80
	// GeomNative marks platform-resident vertex data (no inline arrays).
	GeomNative = 0x01000000
)

// Vec3 is a point or direction in model space.
type Vec3 struct {
	X, Y, Z float32
}

// UV is one texture coordinate pair.
type UV struct {
	U, V float32
}

// Frame is one node in a clump's transform hierarchy.
type Frame struct {
	Right, Up, At Vec3
	Position      Vec3
	Parent        int
	Name          string
}

// Triangle references three vertices and a material slot.
type Triangle struct {
	A, B, C  int
	Material int
}

// Material carries the surface color and optional texture binding.
type Material struct {
	Color       [4]byte
	TextureName string
}

// Geometry is one mesh: vertex arrays plus material slots.
type Geometry struct {
	Flags     uint32
	Vertices  []Vec3
	Normals   []Vec3
	UVs       []UV
	Triangles []Triangle
	Materials []Material
}

// Atomic binds a geometry to a frame.
type Atomic struct {
	FrameIndex    int
	GeometryIndex int
}

// Clump is one decoded model: hierarchy, meshes and their bindings.
type Clump struct {
	Frames     []Frame
	Geometries []Geometry
	Atomics    []Atomic
}

type cursor struct {
	blob []byte
	pos  int
	end  int
	err  error
}

func newCursor(blob []byte, start, end int) *cursor {
	if end > len(blob) {
		end = len(blob)
	}
	return &cursor{blob: blob, pos: start, end: end}
}

func (c *cursor) fail(format string, args ...any) {
	if c.err == nil {
		c.err = fmt.Errorf(format, args...)
	}
}

func (c *cursor) need(n int) bool {
	if c.err != nil {
		return false
	}
	if c.pos+n > c.end {
		c.fail("truncated stream at offset %d (need %d bytes)", c.pos, n)
		return false
	}
	return true
}

func (c *cursor) u16() uint16 {
	if !c.need(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(c.blob[c.pos:])
	c.pos += 2
	return v
}

func (c *cursor) u32() uint32 {
	if !c.need(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(c.blob[c.pos:])
	c.pos += 4
	return v
}

func (c *cursor) i32() int32 {
	return int32(c.u32())
}

func (c *cursor) f32() float32 {
	return math.Float32frombits(c.u32())
}

func (c *cursor) vec3() Vec3 {
	return Vec3{X: c.f32(), Y: c.f32(), Z: c.f32()}
}

func (c *cursor) bytes(n int) []byte {
	if !c.need(n) {
		return nil
	}
	b := c.blob[c.pos : c.pos+n]
	c.pos += n
	return b
}

func (c *cursor) skip(n int) {
	if c.need(n) {
		c.pos += n
	}
}

// ParseClump decodes one Clump chunk previously located in the stream.
func ParseClump(blob []byte, clump Chunk) (*Clump, error) {
	out := &Clump{}

	for _, ch := range IterChunks(blob, clump.PayloadStart, clump.PayloadEnd) {
		switch ch.Type {
		case ChunkFrameList:
			frames, err := parseFrameList(blob, ch)
			if err != nil {
				return nil, err
			}
			out.Frames = frames
		case ChunkGeometryList:
			geoms, err := parseGeometryList(blob, ch)
			if err != nil {
				return nil, err
			}
			out.Geometries = geoms
		case ChunkAtomic:
			atomic, err := parseAtomic(blob, ch)
			if err != nil {
				return nil, err
			}
			out.Atomics = append(out.Atomics, atomic)
		}
	}
	return out, nil
}

func parseFrameList(blob []byte, list Chunk) ([]Frame, error) {
	structChunk, ok := FirstChunk(blob, list.PayloadStart, list.PayloadEnd, ChunkStruct)
	if !ok {
		return nil, fmt.Errorf("frame list: missing struct chunk")
	}
	c := newCursor(blob, structChunk.PayloadStart, structChunk.PayloadEnd)
	count := int(c.u32())
	if count < 0 || count > 0xFFFF {
		return nil, fmt.Errorf("frame list: implausible frame count %d", count)
	}
	frames := make([]Frame, 0, count)
	for i := 0; i < count; i++ {
		frame := Frame{
			Right:    c.vec3(),
			Up:       c.vec3(),
			At:       c.vec3(),
			Position: c.vec3(),
			Parent:   int(c.i32()),
		}
		c.u32() // creation flags
		frames = append(frames, frame)
	}
	if c.err != nil {
		return nil, fmt.Errorf("frame list: %w", c.err)
	}

	// One extension chunk follows per frame; node-name plugins carry the
	// frame names.
	idx := 0
	for _, ch := range IterChunks(blob, structChunk.PayloadEnd, list.PayloadEnd) {
		if ch.Type != ChunkExtension || idx >= len(frames) {
			continue
		}
		if name, ok := FirstChunk(blob, ch.PayloadStart, ch.PayloadEnd, ChunkNodeName); ok {
			frames[idx].Name = cString(blob[name.PayloadStart:name.PayloadEnd])
		}
		idx++
	}
	return frames, nil
}

func parseGeometryList(blob []byte, list Chunk) ([]Geometry, error) {
	structChunk, ok := FirstChunk(blob, list.PayloadStart, list.PayloadEnd, ChunkStruct)
	if !ok {
		return nil, fmt.Errorf("geometry list: missing struct chunk")
	}
	var geoms []Geometry
	for _, ch := range IterChunks(blob, structChunk.PayloadEnd, list.PayloadEnd) {
		if ch.Type != ChunkGeometry {
			continue
		}
		geom, err := parseGeometry(blob, ch)
		if err != nil {
			return nil, err
		}
		geoms = append(geoms, geom)
	}
	return geoms, nil
}

func parseGeometry(blob []byte, geomChunk Chunk) (Geometry, error) {
	var geom Geometry
	structChunk, ok := FirstChunk(blob, geomChunk.PayloadStart, geomChunk.PayloadEnd, ChunkStruct)
	if !ok {
		return geom, fmt.Errorf("geometry: missing struct chunk")
	}

	c := newCursor(blob, structChunk.PayloadStart, structChunk.PayloadEnd)
	geom.Flags = c.u32()
	numTriangles := int(c.u32())
	numVertices := int(c.u32())
	numMorphTargets := int(c.u32())
	if LibraryVersion(structChunk.Version) < 0x34001 {
		c.skip(12) // surface properties
	}
	if numTriangles < 0 || numVertices < 0 || numMorphTargets < 0 {
		return geom, fmt.Errorf("geometry: negative counts")
	}

	if geom.Flags&GeomNative == 0 {
		if geom.Flags&geomPrelit != 0 {
			c.skip(numVertices * 4)
		}
		numUV := int(geom.Flags >> 16 & 0xFF)
		if numUV == 0 {
			if geom.Flags&geomTextured2 != 0 {
				numUV = 2
			} else if geom.Flags&geomTextured != 0 {
				numUV = 1
			}
		}
		for layer := 0; layer < numUV; layer++ {
			if layer == 0 {
				geom.UVs = make([]UV, 0, numVertices)
				for i := 0; i < numVertices; i++ {
					geom.UVs = append(geom.UVs, UV{U: c.f32(), V: c.f32()})
				}
			} else {
				c.skip(numVertices * 8)
			}
		}
		geom.Triangles = make([]Triangle, 0, numTriangles)
		for i := 0; i < numTriangles; i++ {
			b := int(c.u16())
			a := int(c.u16())
			mat := int(c.u16())
			vc := int(c.u16())
			geom.Triangles = append(geom.Triangles, Triangle{A: a, B: b, C: vc, Material: mat})
		}
		for target := 0; target < numMorphTargets; target++ {
			c.skip(16) // bounding sphere
			hasVertices := c.u32()
			hasNormals := c.u32()
			if hasVertices != 0 {
				if target == 0 {
					geom.Vertices = make([]Vec3, 0, numVertices)
					for i := 0; i < numVertices; i++ {
						geom.Vertices = append(geom.Vertices, c.vec3())
					}
				} else {
					c.skip(numVertices * 12)
				}
			}
			if hasNormals != 0 {
				if target == 0 {
					geom.Normals = make([]Vec3, 0, numVertices)
					for i := 0; i < numVertices; i++ {
						geom.Normals = append(geom.Normals, c.vec3())
					}
				} else {
					c.skip(numVertices * 12)
				}
			}
		}
		if c.err != nil {
			return geom, fmt.Errorf("geometry struct: %w", c.err)
		}
	}

	if matList, ok := FirstChunk(blob, structChunk.PayloadEnd, geomChunk.PayloadEnd, ChunkMaterialList); ok {
		materials, err := ParseMaterialList(blob, matList)
		if err != nil {
			return geom, err
		}
		geom.Materials = materials
	}
	return geom, nil
}

// ParseMaterialList decodes a material list chunk: a struct of slot indices
// (negative = inline material definition follows) then the inline materials.
func ParseMaterialList(blob []byte, list Chunk) ([]Material, error) {
	structChunk, ok := FirstChunk(blob, list.PayloadStart, list.PayloadEnd, ChunkStruct)
	if !ok {
		return nil, fmt.Errorf("material list: missing struct chunk")
	}
	c := newCursor(blob, structChunk.PayloadStart, structChunk.PayloadEnd)
	count := int(c.u32())
	if count < 0 || count > 0xFFFF {
		return nil, fmt.Errorf("material list: implausible count %d", count)
	}
	indices := make([]int, count)
	for i := range indices {
		indices[i] = int(c.i32())
	}
	if c.err != nil {
		return nil, fmt.Errorf("material list struct: %w", c.err)
	}

	var inline []Material
	for _, ch := range IterChunks(blob, structChunk.PayloadEnd, list.PayloadEnd) {
		if ch.Type != ChunkMaterial {
			continue
		}
		mat, err := parseMaterial(blob, ch)
		if err != nil {
			return nil, err
		}
		inline = append(inline, mat)
	}

	materials := make([]Material, 0, count)
	next := 0
	for _, idx := range indices {
		switch {
		case idx < 0 && next < len(inline):
			materials = append(materials, inline[next])
			next++
		case idx >= 0 && idx < len(materials):
			materials = append(materials, materials[idx])
		default:
			materials = append(materials, Material{Color: [4]byte{204, 204, 204, 255}})
		}
	}
	return materials, nil
}

func parseMaterial(blob []byte, matChunk Chunk) (Material, error) {
	var mat Material
	structChunk, ok := FirstChunk(blob, matChunk.PayloadStart, matChunk.PayloadEnd, ChunkStruct)
	if !ok {
		return mat, fmt.Errorf("material: missing struct chunk")
	}
	c := newCursor(blob, structChunk.PayloadStart, structChunk.PayloadEnd)
	c.u32() // flags
	color := c.bytes(4)
	c.u32() // unused
	isTextured := c.u32()
	if c.err != nil {
		return mat, fmt.Errorf("material struct: %w", c.err)
	}
	copy(mat.Color[:], color)

	if isTextured != 0 {
		if texChunk, ok := FirstChunk(blob, structChunk.PayloadEnd, matChunk.PayloadEnd, ChunkTexture); ok {
			mat.TextureName = parseTextureName(blob, texChunk)
		}
	}
	return mat, nil
}

// parseTextureName pulls the first string chunk (the texture name) out of a
// texture chunk, skipping the leading filter-mode struct.
func parseTextureName(blob []byte, texChunk Chunk) string {
	for _, ch := range IterChunks(blob, texChunk.PayloadStart, texChunk.PayloadEnd) {
		if ch.Type == ChunkString {
			return cString(blob[ch.PayloadStart:ch.PayloadEnd])
		}
	}
	return ""
}

func parseAtomic(blob []byte, atomicChunk Chunk) (Atomic, error) {
	structChunk, ok := FirstChunk(blob, atomicChunk.PayloadStart, atomicChunk.PayloadEnd, ChunkStruct)
	if !ok {
		return Atomic{}, fmt.Errorf("atomic: missing struct chunk")
	}
	c := newCursor(blob, structChunk.PayloadStart, structChunk.PayloadEnd)
	frame := int(c.u32())
	geometry := int(c.u32())
	if c.err != nil {
		return Atomic{}, fmt.Errorf("atomic struct: %w", c.err)
	}
	return Atomic{FrameIndex: frame, GeometryIndex: geometry}, nil
}
