// tetromino/piece.go
package tetromino

// Point is an absolute board cell.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Move tags the last successful operation applied to the active piece.
type Move int

const (
	MoveNone Move = iota
	MoveShift
	MoveRotate
	MoveDrop
	MoveHardDrop
)

func (m Move) String() string {
	switch m {
	case MoveShift:
		return "move"
	case MoveRotate:
		return "rotate"
	case MoveDrop:
		return "drop"
	case MoveHardDrop:
		return "hardDrop"
	default:
		return "none"
	}
}

// Piece is a value: its cells are always derived from (Type, Rotation, X, Y).
type Piece struct {
	Type     Type `json:"type"`
	Rotation int  `json:"rotation"`
	X        int  `json:"x"`
	Y        int  `json:"y"`
}

// Collider answers whether a piece fits at its current pose.
type Collider interface {
	IsValidMove(p Piece) bool
}

func New(t Type, x, y int) Piece {
	return Piece{Type: t, X: x, Y: y}
}

// SpawnColumn is the anchor column new pieces appear at on a board of the given width.
func SpawnColumn(width int) int {
	return width/2 - 1
}

// Spawn places a fresh rotation-0 piece at the top spawn position.
func Spawn(t Type, width int) Piece {
	return New(t, SpawnColumn(width), 0)
}

// Cells returns the occupied absolute cells.
func (p Piece) Cells() []Point {
	shape := Shape(p.Type, p.Rotation)
	cells := make([]Point, 0, 4)
	for y, row := range shape {
		for x, v := range row {
			if v != 0 {
				cells = append(cells, Point{X: p.X + x, Y: p.Y + y})
			}
		}
	}
	return cells
}

// Occupies reports whether the piece covers the given cell.
func (p Piece) Occupies(x, y int) bool {
	for _, c := range p.Cells() {
		if c.X == x && c.Y == y {
			return true
		}
	}
	return false
}

func (p Piece) Color() string {
	return p.Type.Color()
}

func (p *Piece) Rotate() {
	p.Rotation = normalize(p.Rotation + 1)
}

func (p *Piece) RotateCounter() {
	p.Rotation = normalize(p.Rotation - 1)
}

func (p *Piece) Move(dx, dy int) {
	p.X += dx
	p.Y += dy
}

// Ghost projects the piece straight down to its lowest legal row.
func (p Piece) Ghost(c Collider) Piece {
	g := p
	for {
		g.Y++
		if !c.IsValidMove(g) {
			g.Y--
			return g
		}
	}
}
