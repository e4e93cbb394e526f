package board

// Rows and Cols are fixed: the classic 7-wide, 6-tall Connect-Four grid.
const (
	Rows = 6
	Cols = 7
)

// Color identifies one of the two seats. The room creator is always red.
type Color string

const (
	Red    Color = "red"
	Yellow Color = "yellow"
)

// Opponent returns the other color.
func Opponent(c Color) Color {
	if c == Red {
		return Yellow
	}
	return Red
}

// Cell is a single grid position; empty string means vacant.
type Cell string

const Empty Cell = ""

// Grid is the playing field, row 0 on top. Value semantics: Drop returns a
// copy, so callers can hold snapshots without defensive copying.
type Grid [Rows][Cols]Cell

// NewGrid returns an all-empty grid.
func NewGrid() Grid { return Grid{} }

// Errors surfaced to the move-intent validation path.
var (
	ErrInvalidColumn = errf("invalid column")
	ErrColumnFull    = errf("column full")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }

// Drop places a piece of color c in the lowest empty row of column col and
// returns the resulting grid plus the row used. The receiver is not mutated.
func (g Grid) Drop(col int, c Color) (Grid, int, error) {
	if col < 0 || col >= Cols {
		return g, -1, ErrInvalidColumn
	}
	for row := Rows - 1; row >= 0; row-- {
		if g[row][col] == Empty {
			g[row][col] = Cell(c)
			return g, row, nil
		}
	}
	return g, -1, ErrColumnFull
}

// Verdict is the outcome of an outcome check: a winning color, a draw, or
// none while play continues.
type Verdict string

const (
	VerdictNone   Verdict = ""
	VerdictRed    Verdict = "red"
	VerdictYellow Verdict = "yellow"
	VerdictDraw   Verdict = "draw"
)

// Outcome inspects only the four axes through the last-placed cell. It
// never scans the full grid for alignments; the anchor cell counts as one.
func (g Grid) Outcome(lastRow, lastCol int) Verdict {
	c := g[lastRow][lastCol]
	if c == Empty {
		return VerdictNone
	}

	dirs := [4][2]int{
		{0, 1},  // horizontal
		{1, 0},  // vertical
		{1, 1},  // diagonal down-right
		{1, -1}, // diagonal down-left
	}
	for _, d := range dirs {
		count := 1
		count += g.runLength(lastRow, lastCol, d[0], d[1], c)
		count += g.runLength(lastRow, lastCol, -d[0], -d[1], c)
		if count >= 4 {
			return Verdict(c)
		}
	}

	if g.full() {
		return VerdictDraw
	}
	return VerdictNone
}

// runLength counts contiguous same-color cells walking away from (row,col),
// excluding the anchor itself.
func (g Grid) runLength(row, col, dRow, dCol int, c Cell) int {
	n := 0
	r, cl := row+dRow, col+dCol
	for r >= 0 && r < Rows && cl >= 0 && cl < Cols && g[r][cl] == c {
		n++
		r += dRow
		cl += dCol
	}
	return n
}

// full is true when the top row has no vacancy. The gravity invariant makes
// checking the top row sufficient.
func (g Grid) full() bool {
	for col := 0; col < Cols; col++ {
		if g[0][col] == Empty {
			return false
		}
	}
	return true
}
