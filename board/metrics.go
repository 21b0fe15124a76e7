// board/metrics.go
package board

// Stats summarizes the stack shape.
type Stats struct {
	Height       int `json:"height"`
	Holes        int `json:"holes"`
	Bumpiness    int `json:"bumpiness"`
	FilledCells  int `json:"filledCells"`
	GarbageLines int `json:"garbageLines"`
}

// StackHeight counts rows from the highest filled row down to the floor.
func (b *Board) StackHeight() int {
	for y := 0; y < b.height; y++ {
		for _, c := range b.cells[y] {
			if c.Filled {
				return b.height - y
			}
		}
	}
	return 0
}

// HoleCount counts empty cells that have a filled cell somewhere above them
// in the same column.
func (b *Board) HoleCount() int {
	holes := 0
	for x := 0; x < b.width; x++ {
		covered := false
		for y := 0; y < b.height; y++ {
			if b.cells[y][x].Filled {
				covered = true
			} else if covered {
				holes++
			}
		}
	}
	return holes
}

func (b *Board) columnHeight(x int) int {
	for y := 0; y < b.height; y++ {
		if b.cells[y][x].Filled {
			return b.height - y
		}
	}
	return 0
}

// Bumpiness sums the absolute height differences of adjacent columns.
func (b *Board) Bumpiness() int {
	total := 0
	for x := 1; x < b.width; x++ {
		d := b.columnHeight(x) - b.columnHeight(x-1)
		if d < 0 {
			d = -d
		}
		total += d
	}
	return total
}

// FilledCells counts every filled cell on the grid.
func (b *Board) FilledCells() int {
	n := 0
	for _, row := range b.cells {
		for _, c := range row {
			if c.Filled {
				n++
			}
		}
	}
	return n
}

func (b *Board) Stats() Stats {
	return Stats{
		Height:       b.StackHeight(),
		Holes:        b.HoleCount(),
		Bumpiness:    b.Bumpiness(),
		FilledCells:  b.FilledCells(),
		GarbageLines: b.garbageLines,
	}
}
