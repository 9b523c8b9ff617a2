package geometry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"psprip/internal/fileutil"
	"psprip/internal/rw"
)

// materialSpec is one MTL entry.
type materialSpec struct {
	name        string
	color       [3]float64
	textureName string
}

// materialSet keeps materials in first-registration order and deduplicates
// names with numeric suffixes.
type materialSet struct {
	order []string
	specs map[string]materialSpec
}

func newMaterialSet() *materialSet {
	return &materialSet{specs: make(map[string]materialSpec)}
}

func (s *materialSet) register(name string, mat rw.Material) string {
	base := fileutil.SafeName(name, "unnamed")
	final := base
	for n := 2; ; n++ {
		if _, taken := s.specs[final]; !taken {
			break
		}
		final = fmt.Sprintf("%s_%d", base, n)
	}
	s.specs[final] = materialSpec{
		name: final,
		color: [3]float64{
			float64(mat.Color[0]) / 255.0,
			float64(mat.Color[1]) / 255.0,
			float64(mat.Color[2]) / 255.0,
		},
		textureName: textureNameFor(mat),
	}
	s.order = append(s.order, final)
	return final
}

func (s *materialSet) registerDefault() string {
	const name = "__default__"
	if _, ok := s.specs[name]; !ok {
		s.specs[name] = materialSpec{name: name, color: [3]float64{0.8, 0.8, 0.8}}
		s.order = append(s.order, name)
	}
	return name
}

func textureNameFor(mat rw.Material) string {
	if mat.TextureName == "" {
		return ""
	}
	return fileutil.SafeName(mat.TextureName, "")
}

// materialNamesForGeometry registers one MTL entry per geometry material and
// returns the per-slot names face runs refer to.
func materialNamesForGeometry(geom *rw.Geometry, prefix string, set *materialSet) []string {
	if len(geom.Materials) == 0 {
		return []string{set.registerDefault()}
	}
	names := make([]string, 0, len(geom.Materials))
	for i, mat := range geom.Materials {
		tex := textureNameFor(mat)
		if tex == "" {
			tex = "solid"
		}
		names = append(names, set.register(fmt.Sprintf("%s_m%03d_%s", prefix, i, tex), mat))
	}
	return names
}

// objFace references vertex index triples plus the material run it belongs to.
type objFace struct {
	a, b, c  int
	material string
}

// objObject is one "o" group in the output file.
type objObject struct {
	name     string
	vertices [][3]float64
	normals  [][3]float64
	uvs      [][2]float64
	faces    []objFace
}

// buildObjObject transforms one geometry into an OBJ group. Returns nil when
// nothing drawable remains.
func buildObjObject(geom *rw.Geometry, name string, transform mat4, materialNames []string) *objObject {
	if len(geom.Vertices) == 0 || len(geom.Triangles) == 0 {
		return nil
	}

	obj := &objObject{name: fileutil.SafeName(name, "unnamed")}
	obj.vertices = make([][3]float64, 0, len(geom.Vertices))
	for _, v := range geom.Vertices {
		obj.vertices = append(obj.vertices, transformPoint(transform, v))
	}
	if len(geom.Normals) == len(geom.Vertices) {
		obj.normals = make([][3]float64, 0, len(geom.Normals))
		for _, n := range geom.Normals {
			obj.normals = append(obj.normals, transformNormal(transform, n))
		}
	}
	if len(geom.UVs) == len(geom.Vertices) {
		// UV orientation is kept as-is; the source rasters already match.
		obj.uvs = make([][2]float64, 0, len(geom.UVs))
		for _, uv := range geom.UVs {
			obj.uvs = append(obj.uvs, [2]float64{float64(uv.U), float64(uv.V)})
		}
	}

	vcount := len(obj.vertices)
	for _, tri := range geom.Triangles {
		if tri.A < 0 || tri.B < 0 || tri.C < 0 {
			continue
		}
		if tri.A >= vcount || tri.B >= vcount || tri.C >= vcount {
			continue
		}
		matName := materialNames[0]
		if tri.Material >= 0 && tri.Material < len(materialNames) {
			matName = materialNames[tri.Material]
		}
		obj.faces = append(obj.faces, objFace{a: tri.A, b: tri.B, c: tri.C, material: matName})
	}
	if len(obj.faces) == 0 {
		return nil
	}
	return obj
}

// writeObjAndMtl writes one OBJ file and its sibling MTL, maintaining global
// v/vt/vn index offsets across objects and usemtl runs across faces.
func writeObjAndMtl(objPath string, objects []*objObject, materials *materialSet) error {
	if err := os.MkdirAll(filepath.Dir(objPath), 0o755); err != nil {
		return err
	}
	mtlPath := strings.TrimSuffix(objPath, filepath.Ext(objPath)) + ".mtl"

	var mtl strings.Builder
	for _, name := range materials.order {
		spec := materials.specs[name]
		fmt.Fprintf(&mtl, "newmtl %s\n", spec.name)
		fmt.Fprintf(&mtl, "Kd %.6f %.6f %.6f\n", spec.color[0], spec.color[1], spec.color[2])
		mtl.WriteString("Ka 0.000000 0.000000 0.000000\n")
		mtl.WriteString("Ks 0.000000 0.000000 0.000000\n")
		mtl.WriteString("d 1.0\n")
		mtl.WriteString("illum 1\n")
		if spec.textureName != "" {
			tex := spec.textureName
			if !strings.Contains(tex, ".") {
				tex += ".png"
			}
			fmt.Fprintf(&mtl, "map_Kd %s\n", tex)
		}
		mtl.WriteString("\n")
	}
	if err := fileutil.WriteFileAtomic(mtlPath, []byte(mtl.String()), 0o644); err != nil {
		return err
	}

	var obj strings.Builder
	fmt.Fprintf(&obj, "mtllib %s\n\n", filepath.Base(mtlPath))
	vOff, vtOff, vnOff := 1, 1, 1

	for _, o := range objects {
		fmt.Fprintf(&obj, "o %s\n", o.name)
		for _, v := range o.vertices {
			fmt.Fprintf(&obj, "v %.6f %.6f %.6f\n", v[0], v[1], v[2])
		}
		for _, uv := range o.uvs {
			fmt.Fprintf(&obj, "vt %.6f %.6f\n", uv[0], uv[1])
		}
		for _, n := range o.normals {
			fmt.Fprintf(&obj, "vn %.6f %.6f %.6f\n", n[0], n[1], n[2])
		}

		hasUV := len(o.uvs) == len(o.vertices) && len(o.uvs) > 0
		hasN := len(o.normals) == len(o.vertices) && len(o.normals) > 0
		currentMat := ""
		for _, f := range o.faces {
			if f.material != currentMat {
				fmt.Fprintf(&obj, "usemtl %s\n", f.material)
				currentMat = f.material
			}
			ia, ib, ic := f.a+vOff, f.b+vOff, f.c+vOff
			switch {
			case hasUV && hasN:
				fmt.Fprintf(&obj, "f %d/%d/%d %d/%d/%d %d/%d/%d\n",
					ia, f.a+vtOff, f.a+vnOff,
					ib, f.b+vtOff, f.b+vnOff,
					ic, f.c+vtOff, f.c+vnOff)
			case hasUV:
				fmt.Fprintf(&obj, "f %d/%d %d/%d %d/%d\n",
					ia, f.a+vtOff, ib, f.b+vtOff, ic, f.c+vtOff)
			case hasN:
				fmt.Fprintf(&obj, "f %d//%d %d//%d %d//%d\n",
					ia, f.a+vnOff, ib, f.b+vnOff, ic, f.c+vnOff)
			default:
				fmt.Fprintf(&obj, "f %d %d %d\n", ia, ib, ic)
			}
		}
		obj.WriteString("\n")

		vOff += len(o.vertices)
		vtOff += len(o.uvs)
		vnOff += len(o.normals)
	}

	return fileutil.WriteFileAtomic(objPath, []byte(obj.String()), 0o644)
}
