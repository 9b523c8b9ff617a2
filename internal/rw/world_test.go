package rw

import (
	"testing"
)

// buildWorld assembles a world with one material and a plane sector holding
// two atomic sectors; only the first sector carries native geometry.
func buildWorld(binMeshFlags uint32, indices []uint32) []byte {
	material := mkChunk(ChunkMaterial, mkChunk(ChunkStruct, leU32(0, 0x406080FF, 0, 0)))
	materialList := mkChunk(ChunkMaterialList,
		mkChunk(ChunkStruct, leU32(1, 0xFFFFFFFF)),
		material,
	)

	nativeData := leU32(nativeHasUVs, 4)
	nativeData = append(nativeData, leF32(
		0, 0, 0,
		1, 0, 0,
		1, 1, 0,
		0, 1, 0,
	)...)
	nativeData = append(nativeData, leF32(0, 0, 1, 0, 1, 1, 0, 1)...)

	binMesh := leU32(binMeshFlags, 1, uint32(len(indices)))
	binMesh = append(binMesh, leU32(uint32(len(indices)), 0)...)
	binMesh = append(binMesh, leU32(indices...)...)

	meshSector := mkChunk(ChunkAtomicSector,
		mkChunk(ChunkStruct, leU32(0)),
		mkChunk(ChunkExtension,
			mkChunk(ChunkNativeDataPLG, nativeData),
			mkChunk(ChunkBinMeshPLG, binMesh),
		),
	)
	emptySector := mkChunk(ChunkAtomicSector, mkChunk(ChunkStruct, leU32(0)))
	planeSector := mkChunk(ChunkPlaneSector,
		mkChunk(ChunkStruct, leU32(0)),
		meshSector,
		emptySector,
	)

	return mkChunk(ChunkWorld,
		mkChunk(ChunkStruct, leU32(0)),
		materialList,
		planeSector,
	)
}

func TestWorldSectorGeometryTriangleList(t *testing.T) {
	blob := buildWorld(0, []uint32{0, 1, 2, 0, 2, 3})

	worlds := FindWorlds(blob)
	if len(worlds) != 1 {
		t.Fatalf("expected 1 world, got %d", len(worlds))
	}
	materials, err := ParseWorldMaterials(blob, worlds[0])
	if err != nil {
		t.Fatalf("materials: %v", err)
	}
	if len(materials) != 1 {
		t.Fatalf("expected 1 world material, got %d", len(materials))
	}

	root, ok := FindWorldRootSector(blob, worlds[0])
	if !ok || root.Type != ChunkPlaneSector {
		t.Fatalf("expected plane sector root")
	}
	sectors := CollectAtomicSectors(blob, root)
	if len(sectors) != 2 {
		t.Fatalf("expected 2 atomic sectors, got %d", len(sectors))
	}

	geom, err := ParseSectorGeometry(blob, sectors[0], materials)
	if err != nil {
		t.Fatalf("sector geometry: %v", err)
	}
	if geom == nil {
		t.Fatalf("expected geometry in sector 0")
	}
	if len(geom.Vertices) != 4 || len(geom.UVs) != 4 || len(geom.Normals) != 0 {
		t.Fatalf("unexpected vertex data: %d verts %d uvs %d normals",
			len(geom.Vertices), len(geom.UVs), len(geom.Normals))
	}
	if len(geom.Triangles) != 2 {
		t.Fatalf("expected 2 triangles, got %d", len(geom.Triangles))
	}
	if geom.Flags&GeomNative == 0 {
		t.Fatalf("sector geometry should be flagged native")
	}

	empty, err := ParseSectorGeometry(blob, sectors[1], materials)
	if err != nil {
		t.Fatalf("empty sector: %v", err)
	}
	if empty != nil {
		t.Fatalf("sector without plugins should yield no geometry")
	}
}

func TestWorldSectorGeometryTriangleStrip(t *testing.T) {
	// Strip 0,1,2,2,3: the degenerate join (1,2,2) and (2,2,3) drop out,
	// leaving two triangles with alternating winding.
	blob := buildWorld(binMeshTriStrip, []uint32{0, 1, 2, 2, 3})

	worlds := FindWorlds(blob)
	materials, err := ParseWorldMaterials(blob, worlds[0])
	if err != nil {
		t.Fatalf("materials: %v", err)
	}
	root, _ := FindWorldRootSector(blob, worlds[0])
	sectors := CollectAtomicSectors(blob, root)

	geom, err := ParseSectorGeometry(blob, sectors[0], materials)
	if err != nil || geom == nil {
		t.Fatalf("sector geometry: %v", err)
	}
	if len(geom.Triangles) != 1 {
		t.Fatalf("expected 1 triangle after degenerate removal, got %d", len(geom.Triangles))
	}
	if tri := geom.Triangles[0]; tri.A != 0 || tri.B != 1 || tri.C != 2 {
		t.Fatalf("unexpected triangle %+v", tri)
	}
}

func TestAppendStripWinding(t *testing.T) {
	geom := &Geometry{}
	appendStrip(geom, []int{0, 1, 2, 3}, 0)
	if len(geom.Triangles) != 2 {
		t.Fatalf("expected 2 triangles, got %d", len(geom.Triangles))
	}
	if tri := geom.Triangles[1]; tri.A != 2 || tri.B != 1 || tri.C != 3 {
		t.Fatalf("second strip triangle should swap winding, got %+v", tri)
	}
}
