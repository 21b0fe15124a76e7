package tetromino

import (
	"math/rand/v2"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type openField struct{ height int }

func (f openField) IsValidMove(p Piece) bool {
	for _, c := range p.Cells() {
		if c.X < 0 || c.X >= 10 || c.Y < 0 || c.Y >= f.height {
			return false
		}
	}
	return true
}

func sortedCells(p Piece) []Point {
	cells := p.Cells()
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Y != cells[j].Y {
			return cells[i].Y < cells[j].Y
		}
		return cells[i].X < cells[j].X
	})
	return cells
}

func TestPiece_CellsHaveFourBlocks(t *testing.T) {
	for _, typ := range Types() {
		for r := 0; r < 4; r++ {
			p := Piece{Type: typ, Rotation: r, X: 3, Y: 2}
			assert.Len(t, p.Cells(), 4, "%s rotation %d", typ, r)
		}
	}
}

func TestPiece_RotationClosure(t *testing.T) {
	for _, typ := range Types() {
		t.Run(typ.String(), func(t *testing.T) {
			p := New(typ, 4, 5)
			before := sortedCells(p)
			for i := 0; i < 4; i++ {
				p.Rotate()
			}
			assert.Equal(t, before, sortedCells(p))

			for i := 0; i < 4; i++ {
				p.RotateCounter()
			}
			assert.Equal(t, before, sortedCells(p))
		})
	}
}

func TestPiece_RotateCounterUndoesRotate(t *testing.T) {
	p := New(T, 4, 4)
	before := sortedCells(p)
	p.Rotate()
	assert.NotEqual(t, before, sortedCells(p))
	p.RotateCounter()
	assert.Equal(t, before, sortedCells(p))
	assert.Equal(t, 0, p.Rotation)
}

func TestPiece_TRotationShape(t *testing.T) {
	p := Piece{Type: T, Rotation: 1}
	// 顺时针旋转一次后 T 朝右
	assert.Equal(t, [][]uint8{
		{0, 1, 0},
		{0, 1, 1},
		{0, 1, 0},
	}, Shape(T, p.Rotation))
}

func TestPiece_Spawn(t *testing.T) {
	p := Spawn(I, 10)
	assert.Equal(t, 4, p.X)
	assert.Equal(t, 0, p.Y)
	assert.Equal(t, 0, p.Rotation)
	assert.Equal(t, "#00f5ff", p.Color())
}

func TestPiece_Ghost(t *testing.T) {
	field := openField{height: 20}
	p := New(O, 0, 0)
	g := p.Ghost(field)
	assert.Equal(t, 18, g.Y)
	assert.Equal(t, 0, p.Y, "ghost must not move the original")
	assert.Equal(t, p.X, g.X)
}

func TestParseType(t *testing.T) {
	for _, typ := range Types() {
		got, err := ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	_, err := ParseType("X")
	assert.Error(t, err)
}

func TestSource_BagFairness(t *testing.T) {
	src := NewSource(rand.New(rand.NewPCG(1, 2)))
	for bag := 0; bag < 20; bag++ {
		seen := make(map[Type]int)
		for i := 0; i < Count; i++ {
			seen[src.Next()]++
		}
		require.Len(t, seen, Count, "bag %d", bag)
		for typ, n := range seen {
			assert.Equal(t, 1, n, "type %s in bag %d", typ, bag)
		}
	}
}

func TestSource_PeekDoesNotConsume(t *testing.T) {
	src := NewSource(rand.New(rand.NewPCG(7, 7)))
	src.Next()

	upcoming := src.Peek(12)
	require.Len(t, upcoming, 12)
	for i, want := range upcoming {
		assert.Equal(t, want, src.Next(), "draw %d", i)
	}
}

func TestSource_PeekNonPositive(t *testing.T) {
	src := NewSource(rand.New(rand.NewPCG(3, 3)))
	assert.Nil(t, src.Peek(0))
	assert.Nil(t, src.Peek(-1))
	assert.Len(t, src.Peek(1), 1)
}

func TestSource_ResetStartsFreshBag(t *testing.T) {
	src := NewSource(rand.New(rand.NewPCG(9, 1)))
	for i := 0; i < 5; i++ {
		src.Next()
	}
	src.Peek(10)
	src.Reset()

	seen := make(map[Type]bool)
	for i := 0; i < Count; i++ {
		seen[src.Next()] = true
	}
	assert.Len(t, seen, Count)
}

func TestSource_Reproducible(t *testing.T) {
	a := NewSource(rand.New(rand.NewPCG(42, 0)))
	b := NewSource(rand.New(rand.NewPCG(42, 0)))
	for i := 0; i < 21; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}
