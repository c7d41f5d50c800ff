package doctemplar

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet: возможности листа, которые нужны движку. Любая OOXML-библиотека может
// предоставить реализацию; по умолчанию используется excelize.
type Sheet interface {
	Name() string
	// Value: отформатированное значение ячейки, RawValue: без применения формата.
	Value(c Cell) (string, error)
	RawValue(c Cell) (string, error)
	SetValue(c Cell, v interface{}) error
	Style(c Cell) (int, error)
	SetStyle(c Cell, style int) error
	// InsertRows вставляет n пустых строк перед строкой at; всё ниже сдвигается целиком.
	InsertRows(at, n int) error
	InsertColumns(at, n int) error
	Merges() ([]CellRange, error)
	Merge(r CellRange) error
	Link(c Cell) (string, bool, error)
	SetLink(c Cell, url string) error
	Picture(c Cell) (data []byte, ext string, err error)
	AddPicture(c Cell, data []byte, ext string) error
	// Bounds: правый нижний угол используемой области.
	Bounds() (Cell, error)
}

// Workbook выдаёт листы по имени; пустое имя: первый лист.
type Workbook interface {
	Sheet(name string) (Sheet, error)
}

// ExcelWorkbook: реализация Workbook поверх excelize.
type ExcelWorkbook struct {
	f *excelize.File
}

func NewWorkbook(f *excelize.File) *ExcelWorkbook { return &ExcelWorkbook{f: f} }

// File возвращает нижележащий excelize.File (для сохранения вызывающей стороной).
func (w *ExcelWorkbook) File() *excelize.File { return w.f }

func (w *ExcelWorkbook) Sheet(name string) (Sheet, error) {
	if name == "" {
		list := w.f.GetSheetList()
		if len(list) == 0 {
			return nil, fmt.Errorf("в книге нет листов")
		}
		name = list[0]
	}
	idx, err := w.f.GetSheetIndex(name)
	if err != nil {
		return nil, err
	}
	if idx < 0 {
		return nil, fmt.Errorf("лист %q не найден", name)
	}
	return &excelSheet{f: w.f, name: name}, nil
}

type excelSheet struct {
	f    *excelize.File
	name string
}

func (s *excelSheet) Name() string { return s.name }

func (s *excelSheet) Value(c Cell) (string, error) {
	return s.f.GetCellValue(s.name, c.Name())
}

func (s *excelSheet) RawValue(c Cell) (string, error) {
	return s.f.GetCellValue(s.name, c.Name(), excelize.Options{RawCellValue: true})
}

func (s *excelSheet) SetValue(c Cell, v interface{}) error {
	return s.f.SetCellValue(s.name, c.Name(), v)
}

func (s *excelSheet) Style(c Cell) (int, error) {
	return s.f.GetCellStyle(s.name, c.Name())
}

func (s *excelSheet) SetStyle(c Cell, style int) error {
	addr := c.Name()
	return s.f.SetCellStyle(s.name, addr, addr, style)
}

func (s *excelSheet) InsertRows(at, n int) error {
	return s.f.InsertRows(s.name, at, n)
}

func (s *excelSheet) InsertColumns(at, n int) error {
	col, err := excelize.ColumnNumberToName(at)
	if err != nil {
		return err
	}
	return s.f.InsertCols(s.name, col, n)
}

func (s *excelSheet) Merges() ([]CellRange, error) {
	mcs, err := s.f.GetMergeCells(s.name)
	if err != nil {
		return nil, err
	}
	out := make([]CellRange, 0, len(mcs))
	for _, m := range mcs {
		r, err := ParseRange(m.GetStartAxis() + ":" + m.GetEndAxis())
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *excelSheet) Merge(r CellRange) error {
	return s.f.MergeCell(s.name, r.From.Name(), r.To.Name())
}

func (s *excelSheet) Link(c Cell) (string, bool, error) {
	ok, target, err := s.f.GetCellHyperLink(s.name, c.Name())
	return target, ok, err
}

func (s *excelSheet) SetLink(c Cell, url string) error {
	return s.f.SetCellHyperLink(s.name, c.Name(), url, "External")
}

func (s *excelSheet) Picture(c Cell) ([]byte, string, error) {
	pics, err := s.f.GetPictures(s.name, c.Name())
	if err != nil || len(pics) == 0 {
		return nil, "", err
	}
	return pics[0].File, pics[0].Extension, nil
}

func (s *excelSheet) AddPicture(c Cell, data []byte, ext string) error {
	return s.f.AddPictureFromBytes(s.name, c.Name(), &excelize.Picture{Extension: ext, File: data})
}

func (s *excelSheet) Bounds() (Cell, error) {
	rows, err := s.f.GetRows(s.name)
	if err != nil {
		return Cell{}, err
	}
	b := Cell{Row: len(rows)}
	for _, r := range rows {
		if len(r) > b.Col {
			b.Col = len(r)
		}
	}
	return b, nil
}

// cellState: содержимое ячейки до записи блока.
type cellState struct {
	c       Cell
	raw     string
	kind    excelize.CellType
	formula string
	style   int
}

// cellSnapshotter: лист сохраняет ячейку вместе с типом, формулой и стилем.
// Остальные листы откатываются по RawValue.
type cellSnapshotter interface {
	snapshot(c Cell) (cellState, error)
	restore(st cellState) error
}

func (s *excelSheet) snapshot(c Cell) (cellState, error) {
	st := cellState{c: c}
	var err error
	if st.raw, err = s.RawValue(c); err != nil {
		return st, err
	}
	if st.kind, err = s.f.GetCellType(s.name, c.Name()); err != nil {
		return st, err
	}
	if st.formula, err = s.f.GetCellFormula(s.name, c.Name()); err != nil {
		return st, err
	}
	st.style, err = s.Style(c)
	return st, err
}

func (s *excelSheet) restore(st cellState) error {
	addr := st.c.Name()
	var err error
	switch {
	case st.formula != "":
		err = s.f.SetCellFormula(s.name, addr, st.formula)
	case st.kind == excelize.CellTypeBool:
		err = s.f.SetCellBool(s.name, addr, st.raw == "1" || strings.EqualFold(st.raw, "true"))
	case (st.kind == excelize.CellTypeUnset || st.kind == excelize.CellTypeNumber) && st.raw != "":
		if n, perr := strconv.ParseFloat(st.raw, 64); perr == nil {
			err = s.f.SetCellFloat(s.name, addr, n, -1, 64)
		} else {
			err = s.f.SetCellStr(s.name, addr, st.raw)
		}
	default:
		err = s.f.SetCellStr(s.name, addr, st.raw)
	}
	if err != nil {
		return err
	}
	return s.SetStyle(st.c, st.style)
}
