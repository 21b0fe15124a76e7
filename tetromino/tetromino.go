// tetromino/tetromino.go
package tetromino

import (
	"fmt"
	"strings"
)

// Type identifies one of the seven catalog shapes.
type Type int

const (
	I Type = iota
	O
	T
	S
	Z
	J
	L
)

// Count is the number of catalog shapes.
const Count = 7

type shapeDef struct {
	name   string
	color  string
	matrix [][]uint8
}

// 形状目录，旋转状态由 matrix 顺时针旋转推导
var catalog = [Count]shapeDef{
	I: {name: "I", color: "#00f5ff", matrix: [][]uint8{
		{0, 0, 0, 0},
		{1, 1, 1, 1},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	}},
	O: {name: "O", color: "#ffff00", matrix: [][]uint8{
		{1, 1},
		{1, 1},
	}},
	T: {name: "T", color: "#a000f0", matrix: [][]uint8{
		{0, 1, 0},
		{1, 1, 1},
		{0, 0, 0},
	}},
	S: {name: "S", color: "#00f000", matrix: [][]uint8{
		{0, 1, 1},
		{1, 1, 0},
		{0, 0, 0},
	}},
	Z: {name: "Z", color: "#f00000", matrix: [][]uint8{
		{1, 1, 0},
		{0, 1, 1},
		{0, 0, 0},
	}},
	J: {name: "J", color: "#0000f0", matrix: [][]uint8{
		{1, 0, 0},
		{1, 1, 1},
		{0, 0, 0},
	}},
	L: {name: "L", color: "#ff7f00", matrix: [][]uint8{
		{0, 0, 1},
		{1, 1, 1},
		{0, 0, 0},
	}},
}

// Types returns every catalog type in declaration order.
func Types() []Type {
	return []Type{I, O, T, S, Z, J, L}
}

func (t Type) Valid() bool {
	return t >= I && t <= L
}

func (t Type) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return catalog[t].name
}

// Color is the fill color cells of this type take when locked.
func (t Type) Color() string {
	if !t.Valid() {
		return ""
	}
	return catalog[t].color
}

// Size is the edge length of the type's square bounding matrix.
func (t Type) Size() int {
	if !t.Valid() {
		return 0
	}
	return len(catalog[t].matrix)
}

// ParseType converts a catalog name ("I", "T", ...) back to a Type.
func ParseType(s string) (Type, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for t := I; t <= L; t++ {
		if catalog[t].name == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown piece type %q", s)
}

// Shape returns a fresh copy of the matrix for the given rotation state.
// Rotation states are derived from the canonical matrix on every call.
func Shape(t Type, rotation int) [][]uint8 {
	if !t.Valid() {
		return nil
	}
	m := cloneMatrix(catalog[t].matrix)
	for i := 0; i < normalize(rotation); i++ {
		m = rotateClockwise(m)
	}
	return m
}

func normalize(rotation int) int {
	r := rotation % 4
	if r < 0 {
		r += 4
	}
	return r
}

func cloneMatrix(m [][]uint8) [][]uint8 {
	out := make([][]uint8, len(m))
	for i := range m {
		out[i] = append([]uint8(nil), m[i]...)
	}
	return out
}

func rotateClockwise(m [][]uint8) [][]uint8 {
	n := len(m)
	out := make([][]uint8, n)
	for y := 0; y < n; y++ {
		out[y] = make([]uint8, n)
		for x := 0; x < n; x++ {
			out[y][x] = m[n-1-x][y]
		}
	}
	return out
}
