package geometry

import (
	"math"

	"psprip/internal/rw"
)

// mat4 is a row-major homogeneous transform.
type mat4 [4][4]float64

func identity() mat4 {
	return mat4{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
		{0, 0, 0, 1},
	}
}

func matMul(a, b mat4) mat4 {
	var out mat4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[r][c] = a[r][0]*b[0][c] + a[r][1]*b[1][c] + a[r][2]*b[2][c] + a[r][3]*b[3][c]
		}
	}
	return out
}

// frameToMatrix builds the local transform from a frame's rotation basis and
// position (column vectors right/up/at).
func frameToMatrix(f rw.Frame) mat4 {
	return mat4{
		{float64(f.Right.X), float64(f.Up.X), float64(f.At.X), float64(f.Position.X)},
		{float64(f.Right.Y), float64(f.Up.Y), float64(f.At.Y), float64(f.Position.Y)},
		{float64(f.Right.Z), float64(f.Up.Z), float64(f.At.Z), float64(f.Position.Z)},
		{0, 0, 0, 1},
	}
}

// frameWorldMats resolves each frame's world transform through the parent
// chain. A frame whose parent chain loops back on itself is treated as a
// root frame so a malformed hierarchy cannot recurse without bound.
func frameWorldMats(frames []rw.Frame) map[int]mat4 {
	world := make(map[int]mat4, len(frames))
	visiting := make(map[int]bool, len(frames))
	var build func(idx int) mat4
	build = func(idx int) mat4 {
		if m, ok := world[idx]; ok {
			return m
		}
		frame := frames[idx]
		local := frameToMatrix(frame)
		m := local
		if frame.Parent >= 0 && frame.Parent < len(frames) && frame.Parent != idx && !visiting[idx] {
			visiting[idx] = true
			m = matMul(build(frame.Parent), local)
			delete(visiting, idx)
		}
		world[idx] = m
		return m
	}
	for i := range frames {
		build(i)
	}
	return world
}

func transformPoint(m mat4, p rw.Vec3) [3]float64 {
	x, y, z := float64(p.X), float64(p.Y), float64(p.Z)
	return [3]float64{
		m[0][0]*x + m[0][1]*y + m[0][2]*z + m[0][3],
		m[1][0]*x + m[1][1]*y + m[1][2]*z + m[1][3],
		m[2][0]*x + m[2][1]*y + m[2][2]*z + m[2][3],
	}
}

func transformNormal(m mat4, n rw.Vec3) [3]float64 {
	x, y, z := float64(n.X), float64(n.Y), float64(n.Z)
	v := [3]float64{
		m[0][0]*x + m[0][1]*y + m[0][2]*z,
		m[1][0]*x + m[1][1]*y + m[1][2]*z,
		m[2][0]*x + m[2][1]*y + m[2][2]*z,
	}
	return normalize(v)
}

func normalize(v [3]float64) [3]float64 {
	length := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if length <= 1e-9 {
		return v
	}
	inv := 1.0 / length
	return [3]float64{v[0] * inv, v[1] * inv, v[2] * inv}
}
