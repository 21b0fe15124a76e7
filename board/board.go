// board/board.go
package board

import (
	"math/rand/v2"
	"sort"

	"github.com/kamstrup/intmap"
	"github.com/wfunc/tetrisbattle/tetromino"
)

const (
	DefaultWidth  = 10
	DefaultHeight = 20

	// GarbageColor fills injected garbage rows.
	GarbageColor = "#666666"
)

// Cell is one grid square. Locked cells keep only their color.
type Cell struct {
	Filled bool
	Color  string
}

// ClearResult describes one line-clear pass.
type ClearResult struct {
	Count     int   `json:"count"`
	WasTetris bool  `json:"wasTetris"`
	Rows      []int `json:"rows"`
}

// Board is the grid of locked cells.
type Board struct {
	width        int
	height       int
	cells        [][]Cell
	garbageLines int
	frozen       *intmap.Map[int, struct{}]
	rng          *rand.Rand
}

// New creates an empty board. rng picks garbage holes; nil uses a random seed.
func New(width, height int, rng *rand.Rand) *Board {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	b := &Board{
		width:  width,
		height: height,
		frozen: intmap.New[int, struct{}](4),
		rng:    rng,
	}
	b.Clear()
	return b
}

func (b *Board) Width() int  { return b.width }
func (b *Board) Height() int { return b.height }

// GarbageLines is the number of garbage rows injected since the last Clear.
func (b *Board) GarbageLines() int { return b.garbageLines }

// Clear empties the grid and forgets frozen rows and garbage count.
func (b *Board) Clear() {
	b.cells = make([][]Cell, b.height)
	for y := range b.cells {
		b.cells[y] = b.emptyRow()
	}
	b.garbageLines = 0
	b.frozen.Clear()
}

func (b *Board) emptyRow() []Cell {
	return make([]Cell, b.width)
}

func (b *Board) IsWithinBounds(x, y int) bool {
	return x >= 0 && x < b.width && y >= 0 && y < b.height
}

// IsOccupied treats every out-of-bounds position as occupied.
func (b *Board) IsOccupied(x, y int) bool {
	if !b.IsWithinBounds(x, y) {
		return true
	}
	return b.cells[y][x].Filled
}

// Cell returns the cell at (x, y); out-of-bounds reads return an empty cell.
func (b *Board) Cell(x, y int) Cell {
	if !b.IsWithinBounds(x, y) {
		return Cell{}
	}
	return b.cells[y][x]
}

// SetCell writes a single cell. Used by fixtures and snapshot restore.
func (b *Board) SetCell(x, y int, c Cell) {
	if b.IsWithinBounds(x, y) {
		b.cells[y][x] = c
	}
}

// IsValidMove reports whether every cell of p is in bounds and empty.
func (b *Board) IsValidMove(p tetromino.Piece) bool {
	for _, c := range p.Cells() {
		if b.IsOccupied(c.X, c.Y) {
			return false
		}
	}
	return true
}

// Place writes the piece into the grid. The caller validates the pose first.
func (b *Board) Place(p tetromino.Piece) {
	color := p.Color()
	for _, c := range p.Cells() {
		b.cells[c.Y][c.X] = Cell{Filled: true, Color: color}
	}
}

func (b *Board) rowComplete(y int) bool {
	for _, c := range b.cells[y] {
		if !c.Filled {
			return false
		}
	}
	return true
}

// ClearLines removes every complete, non-frozen row in one pass and
// compacts the rest downward.
func (b *Board) ClearLines() ClearResult {
	var rows []int
	for y := 0; y < b.height; y++ {
		if b.IsRowFrozen(y) {
			continue
		}
		if b.rowComplete(y) {
			rows = append(rows, y)
		}
	}
	if len(rows) == 0 {
		return ClearResult{}
	}

	cleared := make(map[int]bool, len(rows))
	for _, y := range rows {
		cleared[y] = true
	}
	kept := make([][]Cell, 0, b.height)
	for y := 0; y < b.height; y++ {
		if !cleared[y] {
			kept = append(kept, b.cells[y])
		}
	}
	grid := make([][]Cell, 0, b.height)
	for i := 0; i < len(rows); i++ {
		grid = append(grid, b.emptyRow())
	}
	b.cells = append(grid, kept...)

	b.renumberFrozen(rows)

	return ClearResult{
		Count:     len(rows),
		WasTetris: len(rows) == 4,
		Rows:      rows,
	}
}

// renumberFrozen shifts each frozen row up by the number of cleared rows
// at or above it; rows that would leave the grid are dropped.
func (b *Board) renumberFrozen(cleared []int) {
	frozen := b.FrozenRows()
	b.frozen.Clear()
	for _, row := range frozen {
		shift := 0
		for _, y := range cleared {
			if y <= row {
				shift++
			}
		}
		if next := row - shift; next >= 0 {
			b.frozen.Put(next, struct{}{})
		}
	}
}

// AddGarbageLine drops the bottom row and inserts a garbage row with one
// random hole at the top.
func (b *Board) AddGarbageLine() {
	row := make([]Cell, b.width)
	hole := b.rng.IntN(b.width)
	for x := range row {
		if x != hole {
			row[x] = Cell{Filled: true, Color: GarbageColor}
		}
	}
	b.cells = append([][]Cell{row}, b.cells[:b.height-1]...)
	b.garbageLines++
}

// AddGarbageLines calls AddGarbageLine n times; every row gets its own hole.
func (b *Board) AddGarbageLines(n int) {
	for i := 0; i < n; i++ {
		b.AddGarbageLine()
	}
}

func (b *Board) FreezeTopRow() {
	b.frozen.Put(0, struct{}{})
}

func (b *Board) UnfreezeTopRow() {
	b.frozen.Del(0)
}

// UnfreezeAll empties the frozen set.
func (b *Board) UnfreezeAll() {
	b.frozen.Clear()
}

func (b *Board) IsTopRowFrozen() bool {
	return b.IsRowFrozen(0)
}

func (b *Board) IsRowFrozen(y int) bool {
	_, ok := b.frozen.Get(y)
	return ok
}

// FrozenRows returns the frozen row indices in ascending order.
func (b *Board) FrozenRows() []int {
	rows := make([]int, 0, b.frozen.Len())
	b.frozen.ForEach(func(row int, _ struct{}) bool {
		rows = append(rows, row)
		return true
	})
	sort.Ints(rows)
	return rows
}

// DestroyAround empties every cell in the 3x3 neighborhood of each point
// and returns how many filled cells were destroyed.
func (b *Board) DestroyAround(points []tetromino.Point) int {
	destroyed := 0
	for _, p := range points {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				x, y := p.X+dx, p.Y+dy
				if b.IsWithinBounds(x, y) && b.cells[y][x].Filled {
					b.cells[y][x] = Cell{}
					destroyed++
				}
			}
		}
	}
	return destroyed
}

// IsTSpin applies the corner-count heuristic: a T locked right after a
// rotation with at least three of the four surrounding corners blocked.
func (b *Board) IsTSpin(p tetromino.Piece, last tetromino.Move) bool {
	if p.Type != tetromino.T || last != tetromino.MoveRotate || p.Y <= 0 {
		return false
	}
	corners := [4][2]int{
		{p.X - 1, p.Y - 1},
		{p.X + 3, p.Y - 1},
		{p.X - 1, p.Y + 2},
		{p.X + 3, p.Y + 2},
	}
	blocked := 0
	for _, c := range corners {
		if b.IsOccupied(c[0], c[1]) {
			blocked++
		}
	}
	return blocked >= 3
}
