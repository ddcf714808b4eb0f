// Package slot implements the spin rules of the slot machine: a grid of
// digits where runs of three or more equal symbols on a row or diagonal pay
// bet * symbol * runLength.
package slot

import (
	"math/rand"
	"sync"

	"github.com/hyp3rd/ewrap"
	"github.com/shopspring/decimal"
)

const (
	DefaultRows = 3
	DefaultCols = 5

	symbolCount = 10
	minRun      = 3
)

var ErrInvalidGrid = ewrap.New("grid needs at least one row and one column")

// Matrix is a rows x cols grid of symbols in [0, 9].
type Matrix [][]int

type Engine struct {
	rows int
	cols int
	mu   sync.Mutex
	rng  *rand.Rand
}

func NewEngine(rows, cols int, rng *rand.Rand) (*Engine, error) {
	if rows <= 0 || cols <= 0 {
		return nil, ewrap.Wrapf(ErrInvalidGrid, "%dx%d", rows, cols)
	}
	return &Engine{rows: rows, cols: cols, rng: rng}, nil
}

// Spin draws a fresh matrix and returns it with the amount it pays for bet.
func (e *Engine) Spin(bet decimal.Decimal) (Matrix, decimal.Decimal) {
	m := e.generate()
	return m, TotalWin(m, bet)
}

func (e *Engine) generate() Matrix {
	e.mu.Lock()
	defer e.mu.Unlock()
	m := make(Matrix, e.rows)
	for i := range m {
		m[i] = make([]int, e.cols)
		for j := range m[i] {
			m[i][j] = e.rng.Intn(symbolCount)
		}
	}
	return m
}

// TotalWin sums line wins over every row and both diagonals.
func TotalWin(m Matrix, bet decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, row := range m {
		total = total.Add(LineWin(row, bet))
	}
	return total.Add(diagonalWins(m, bet))
}

// LineWin pays bet * symbol * length for every run of at least three equal
// consecutive symbols.
func LineWin(line []int, bet decimal.Decimal) decimal.Decimal {
	win := decimal.Zero
	if len(line) == 0 {
		return win
	}
	count := 1
	pay := func(symbol, n int) {
		if n >= minRun {
			win = win.Add(bet.Mul(decimal.NewFromInt(int64(symbol * n))))
		}
	}
	for i := 1; i < len(line); i++ {
		if line[i] == line[i-1] {
			count++
			continue
		}
		pay(line[i-1], count)
		count = 1
	}
	pay(line[len(line)-1], count)
	return win
}

// diagonalWins walks the two diagonals anchored at the top corners. Each has
// min(rows, cols) cells.
func diagonalWins(m Matrix, bet decimal.Decimal) decimal.Decimal {
	rows := len(m)
	if rows == 0 {
		return decimal.Zero
	}
	cols := len(m[0])
	n := rows
	if cols < n {
		n = cols
	}
	down := make([]int, n)
	up := make([]int, n)
	for i := 0; i < n; i++ {
		down[i] = m[i][i]
		up[i] = m[i][cols-1-i]
	}
	return LineWin(down, bet).Add(LineWin(up, bet))
}
