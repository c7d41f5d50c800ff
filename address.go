package doctemplar

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Cell: координаты ячейки, 1-based.
type Cell struct {
	Row int
	Col int
}

// Name возвращает A1-адрес ячейки.
func (c Cell) Name() string {
	name, err := excelize.CoordinatesToCellName(c.Col, c.Row)
	if err != nil {
		return fmt.Sprintf("R%dC%d", c.Row, c.Col)
	}
	return name
}

func (c Cell) String() string { return c.Name() }

// ParseCell разбирает A1-адрес (допускаются знаки $).
func ParseCell(addr string) (Cell, error) {
	addr = strings.ReplaceAll(strings.TrimSpace(addr), "$", "")
	col, row, err := excelize.CellNameToCoordinates(addr)
	if err != nil {
		return Cell{}, err
	}
	return Cell{Row: row, Col: col}, nil
}

// CellRange: прямоугольный диапазон, границы включительно.
type CellRange struct {
	From Cell
	To   Cell
}

// ParseRange разбирает "A1:B10"; одиночный адрес даёт диапазон из одной ячейки.
func ParseRange(s string) (CellRange, error) {
	s = strings.TrimSpace(s)
	left, right, ok := strings.Cut(s, ":")
	if !ok {
		right = left
	}
	from, err := ParseCell(left)
	if err != nil {
		return CellRange{}, fmt.Errorf("диапазон %q: %w", s, err)
	}
	to, err := ParseCell(right)
	if err != nil {
		return CellRange{}, fmt.Errorf("диапазон %q: %w", s, err)
	}
	if to.Row < from.Row {
		from.Row, to.Row = to.Row, from.Row
	}
	if to.Col < from.Col {
		from.Col, to.Col = to.Col, from.Col
	}
	return CellRange{From: from, To: to}, nil
}

func (r CellRange) contains(c Cell) bool {
	return c.Row >= r.From.Row && c.Row <= r.To.Row && c.Col >= r.From.Col && c.Col <= r.To.Col
}

func (r CellRange) String() string {
	return r.From.Name() + ":" + r.To.Name()
}

// axis отображает (major, minor) в ячейку с учётом ориентации блока.
// Для horizontal major идёт по колонкам (подписи вдоль строки), для vertical: по строкам.
type axis struct {
	origin      Cell
	orientation Orientation
}

func (a axis) at(major, minor int) Cell {
	if a.orientation == Vertical {
		return Cell{Row: a.origin.Row + major, Col: a.origin.Col + minor}
	}
	return Cell{Row: a.origin.Row + minor, Col: a.origin.Col + major}
}

func (c Cell) offset(o Offset) Cell {
	return Cell{Row: c.Row + o.Row, Col: c.Col + o.Col}
}
