package rw

import (
	"testing"
)

// buildClump assembles a minimal one-atomic clump: a single identity frame
// named "root", one textured triangle geometry, one inline material.
func buildClump() []byte {
	frameStruct := leU32(1)
	frameStruct = append(frameStruct, leF32(
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
		2, 3, 4,
	)...)
	frameStruct = append(frameStruct, leU32(0xFFFFFFFF, 0)...) // parent -1, flags
	frameList := mkChunk(ChunkFrameList,
		mkChunk(ChunkStruct, frameStruct),
		mkChunk(ChunkExtension, mkChunk(ChunkNodeName, []byte("root"))),
	)

	geomStruct := leU32(geomTextured, 1, 3, 1)
	geomStruct = append(geomStruct, leF32(0, 0, 0.5, 1, 0.5, 1)...) // 3 uv pairs
	geomStruct = append(geomStruct, leU16(1, 0, 0, 2)...)          // triangle b,a,mat,c
	geomStruct = append(geomStruct, leF32(0, 0, 0, 1)...)          // bounding sphere
	geomStruct = append(geomStruct, leU32(1, 0)...)                // hasVertices, hasNormals
	geomStruct = append(geomStruct, leF32(
		0, 0, 0,
		1, 0, 0,
		0, 1, 0,
	)...)

	material := mkChunk(ChunkMaterial,
		mkChunk(ChunkStruct, leU32(0, 0xFF0000FF, 0, 1)),
		mkChunk(ChunkTexture,
			mkChunk(ChunkStruct, leU32(0)),
			mkChunk(ChunkString, []byte("body_tex\x00")),
		),
	)
	materialList := mkChunk(ChunkMaterialList,
		mkChunk(ChunkStruct, leU32(1, 0xFFFFFFFF)),
		material,
	)
	geometry := mkChunk(ChunkGeometry, mkChunk(ChunkStruct, geomStruct), materialList)
	geometryList := mkChunk(ChunkGeometryList, mkChunk(ChunkStruct, leU32(1)), geometry)

	atomic := mkChunk(ChunkAtomic, mkChunk(ChunkStruct, leU32(0, 0, 5, 0)))

	return mkChunk(ChunkClump,
		mkChunk(ChunkStruct, leU32(1)),
		frameList,
		geometryList,
		atomic,
	)
}

func TestParseClump(t *testing.T) {
	blob := buildClump()
	clumps := FindClumps(blob)
	if len(clumps) != 1 {
		t.Fatalf("expected 1 clump, got %d", len(clumps))
	}

	clump, err := ParseClump(blob, clumps[0])
	if err != nil {
		t.Fatalf("parse clump: %v", err)
	}

	if len(clump.Frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(clump.Frames))
	}
	frame := clump.Frames[0]
	if frame.Name != "root" || frame.Parent != -1 {
		t.Fatalf("unexpected frame: %+v", frame)
	}
	if frame.Position != (Vec3{X: 2, Y: 3, Z: 4}) {
		t.Fatalf("unexpected position: %+v", frame.Position)
	}

	if len(clump.Geometries) != 1 {
		t.Fatalf("expected 1 geometry, got %d", len(clump.Geometries))
	}
	geom := clump.Geometries[0]
	if len(geom.Vertices) != 3 || len(geom.UVs) != 3 {
		t.Fatalf("unexpected vertex data: verts=%d uvs=%d", len(geom.Vertices), len(geom.UVs))
	}
	if len(geom.Triangles) != 1 {
		t.Fatalf("expected 1 triangle, got %d", len(geom.Triangles))
	}
	tri := geom.Triangles[0]
	if tri.A != 0 || tri.B != 1 || tri.C != 2 || tri.Material != 0 {
		t.Fatalf("unexpected triangle: %+v", tri)
	}
	if len(geom.Materials) != 1 {
		t.Fatalf("expected 1 material, got %d", len(geom.Materials))
	}
	if geom.Materials[0].TextureName != "body_tex" {
		t.Fatalf("unexpected texture name %q", geom.Materials[0].TextureName)
	}
	if geom.Materials[0].Color != [4]byte{0xFF, 0x00, 0x00, 0xFF} {
		t.Fatalf("unexpected color %v", geom.Materials[0].Color)
	}

	if len(clump.Atomics) != 1 {
		t.Fatalf("expected 1 atomic, got %d", len(clump.Atomics))
	}
	if a := clump.Atomics[0]; a.FrameIndex != 0 || a.GeometryIndex != 0 {
		t.Fatalf("unexpected atomic: %+v", a)
	}
}

func TestParseMaterialListFallback(t *testing.T) {
	// Two slots referencing one inline material: the second index reuses the
	// first decoded slot.
	material := mkChunk(ChunkMaterial, mkChunk(ChunkStruct, leU32(0, 0x01020304, 0, 0)))
	list := mkChunk(ChunkMaterialList,
		mkChunk(ChunkStruct, leU32(2, 0xFFFFFFFF, 0)),
		material,
	)
	blob := list

	ch, ok := FirstChunk(blob, 0, len(blob), ChunkMaterialList)
	if !ok {
		t.Fatalf("missing material list")
	}
	materials, err := ParseMaterialList(blob, ch)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(materials) != 2 {
		t.Fatalf("expected 2 materials, got %d", len(materials))
	}
	if materials[0] != materials[1] {
		t.Fatalf("slot 1 should reuse slot 0")
	}
}
