package rw

import (
	"fmt"
)

// Native sector data payload, little endian:
//
//	u32 flags (bit 0: normals present, bit 1: uvs present)
//	u32 vertex count
//	positions  f32 x3 per vertex
//	normals    f32 x3 per vertex, when flagged
//	uvs        f32 x2 per vertex, when flagged
//
// Faces come from the accompanying bin-mesh plugin: material-indexed index
// runs, as a triangle list or strip.
const (
	nativeHasNormals = 0x1
	nativeHasUVs     = 0x2

	binMeshTriStrip = 0x1
)

// FindWorlds locates every world chunk in a stream.
func FindWorlds(blob []byte) []Chunk {
	return FindChunks(blob, 0, len(blob), ChunkWorld)
}

// FindClumps locates every clump chunk in a stream.
func FindClumps(blob []byte) []Chunk {
	return FindChunks(blob, 0, len(blob), ChunkClump)
}

// ParseWorldMaterials decodes the world-level material list shared by all of
// the world's sectors. A world without one yields no materials.
func ParseWorldMaterials(blob []byte, world Chunk) ([]Material, error) {
	list, ok := FirstChunk(blob, world.PayloadStart, world.PayloadEnd, ChunkMaterialList)
	if !ok {
		return nil, nil
	}
	return ParseMaterialList(blob, list)
}

// FindWorldRootSector returns the world's sector tree root: the first plane
// or atomic sector child.
func FindWorldRootSector(blob []byte, world Chunk) (Chunk, bool) {
	var (
		root  Chunk
		found bool
	)
	WalkChunks(blob, world.PayloadStart, world.PayloadEnd, func(ch Chunk) bool {
		if ch.Type == ChunkPlaneSector || ch.Type == ChunkAtomicSector {
			root = ch
			found = true
			return false
		}
		return true
	})
	return root, found
}

// CollectAtomicSectors flattens a sector tree into its atomic (leaf) sectors.
func CollectAtomicSectors(blob []byte, root Chunk) []Chunk {
	var out []Chunk
	var walk func(sector Chunk)
	walk = func(sector Chunk) {
		if sector.Type == ChunkAtomicSector {
			out = append(out, sector)
			return
		}
		if sector.Type != ChunkPlaneSector {
			return
		}
		for _, child := range IterChunks(blob, sector.PayloadStart, sector.PayloadEnd) {
			if child.Type == ChunkPlaneSector || child.Type == ChunkAtomicSector {
				walk(child)
			}
		}
	}
	walk(root)
	return out
}

// ParseSectorGeometry decodes one atomic sector's platform-resident mesh from
// its extension plugins. Returns nil when the sector carries no usable
// geometry.
func ParseSectorGeometry(blob []byte, sector Chunk, worldMaterials []Material) (*Geometry, error) {
	ext, ok := FirstChunk(blob, sector.PayloadStart, sector.PayloadEnd, ChunkExtension)
	if !ok {
		return nil, nil
	}

	geom := &Geometry{
		Flags:     GeomNative,
		Materials: append([]Material(nil), worldMaterials...),
	}
	var meshErr error
	WalkChunks(blob, ext.PayloadStart, ext.PayloadEnd, func(ch Chunk) bool {
		var err error
		switch ch.Type {
		case ChunkNativeDataPLG:
			err = parseNativeData(blob, ch, geom)
		case ChunkBinMeshPLG:
			err = parseBinMesh(blob, ch, geom)
		}
		if err != nil {
			meshErr = err
			return false
		}
		return true
	})
	if meshErr != nil {
		return nil, meshErr
	}
	if len(geom.Vertices) == 0 || len(geom.Triangles) == 0 {
		return nil, nil
	}
	return geom, nil
}

func parseNativeData(blob []byte, ch Chunk, geom *Geometry) error {
	c := newCursor(blob, ch.PayloadStart, ch.PayloadEnd)
	flags := c.u32()
	count := int(c.u32())
	if c.err != nil {
		return fmt.Errorf("native data: %w", c.err)
	}
	if count < 0 || count > 1<<20 {
		return fmt.Errorf("native data: implausible vertex count %d", count)
	}

	geom.Vertices = make([]Vec3, 0, count)
	for i := 0; i < count; i++ {
		geom.Vertices = append(geom.Vertices, c.vec3())
	}
	if flags&nativeHasNormals != 0 {
		geom.Normals = make([]Vec3, 0, count)
		for i := 0; i < count; i++ {
			geom.Normals = append(geom.Normals, c.vec3())
		}
	}
	if flags&nativeHasUVs != 0 {
		geom.UVs = make([]UV, 0, count)
		for i := 0; i < count; i++ {
			geom.UVs = append(geom.UVs, UV{U: c.f32(), V: c.f32()})
		}
	}
	if c.err != nil {
		return fmt.Errorf("native data: %w", c.err)
	}
	return nil
}

func parseBinMesh(blob []byte, ch Chunk, geom *Geometry) error {
	c := newCursor(blob, ch.PayloadStart, ch.PayloadEnd)
	flags := c.u32()
	numMeshes := int(c.u32())
	c.u32() // total index count
	if c.err != nil {
		return fmt.Errorf("bin mesh: %w", c.err)
	}
	strip := flags&binMeshTriStrip != 0

	for m := 0; m < numMeshes; m++ {
		numIndices := int(c.u32())
		material := int(c.u32())
		if c.err != nil {
			return fmt.Errorf("bin mesh %d: %w", m, c.err)
		}
		if numIndices < 0 || numIndices > 1<<22 {
			return fmt.Errorf("bin mesh %d: implausible index count %d", m, numIndices)
		}
		indices := make([]int, numIndices)
		for i := range indices {
			indices[i] = int(c.u32())
		}
		if c.err != nil {
			return fmt.Errorf("bin mesh %d: %w", m, c.err)
		}
		if strip {
			appendStrip(geom, indices, material)
		} else {
			for i := 0; i+2 < len(indices); i += 3 {
				geom.Triangles = append(geom.Triangles, Triangle{
					A: indices[i], B: indices[i+1], C: indices[i+2], Material: material,
				})
			}
		}
	}
	return nil
}

// appendStrip unrolls a triangle strip, dropping degenerate joins and
// alternating the winding.
func appendStrip(geom *Geometry, indices []int, material int) {
	for i := 0; i+2 < len(indices); i++ {
		a, b, c := indices[i], indices[i+1], indices[i+2]
		if a == b || b == c || a == c {
			continue
		}
		if i%2 == 1 {
			a, b = b, a
		}
		geom.Triangles = append(geom.Triangles, Triangle{A: a, B: b, C: c, Material: material})
	}
}
