// board/state.go
package board

// State is the serializable form of a board. Grid holds 1 for filled and
// 0 for empty; Colors is parallel to Grid.
type State struct {
	Width        int        `json:"width"`
	Height       int        `json:"height"`
	Grid         [][]int    `json:"grid"`
	Colors       [][]string `json:"colors,omitempty"`
	GarbageLines int        `json:"garbageLines"`
	FrozenRows   []int      `json:"frozenRows,omitempty"`
}

func (b *Board) State() State {
	grid := make([][]int, b.height)
	colors := make([][]string, b.height)
	for y, row := range b.cells {
		grid[y] = make([]int, b.width)
		colors[y] = make([]string, b.width)
		for x, c := range row {
			if c.Filled {
				grid[y][x] = 1
				colors[y][x] = c.Color
			}
		}
	}
	return State{
		Width:        b.width,
		Height:       b.height,
		Grid:         grid,
		Colors:       colors,
		GarbageLines: b.garbageLines,
		FrozenRows:   b.FrozenRows(),
	}
}

// SetState restores a snapshot. Rows or columns outside this board's
// dimensions are ignored and missing ones stay empty; a filled cell
// without a color gets the garbage color.
func (b *Board) SetState(s State) {
	b.Clear()
	for y := 0; y < b.height && y < len(s.Grid); y++ {
		for x := 0; x < b.width && x < len(s.Grid[y]); x++ {
			if s.Grid[y][x] == 0 {
				continue
			}
			color := GarbageColor
			if y < len(s.Colors) && x < len(s.Colors[y]) && s.Colors[y][x] != "" {
				color = s.Colors[y][x]
			}
			b.cells[y][x] = Cell{Filled: true, Color: color}
		}
	}
	if s.GarbageLines > 0 {
		b.garbageLines = s.GarbageLines
	}
	for _, row := range s.FrozenRows {
		if row >= 0 && row < b.height {
			b.frozen.Put(row, struct{}{})
		}
	}
}

// Colors returns the color grid; empty cells are "".
func (b *Board) Colors() [][]string {
	return b.State().Colors
}
