package doctemplar

import (
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Поля {{path}} в ячейках книги. Ячейка с форматированным текстом считается абзацем,
// её rich text runs фрагментами; обычная строковая ячейка даёт абзац из одного фрагмента.

type cellParagraph struct {
	runs []excelize.RichTextRun
}

type runFragment struct {
	p *cellParagraph
	i int
}

func (f runFragment) Text() string           { return f.p.runs[f.i].Text }
func (f runFragment) SetText(text string)    { f.p.runs[f.i].Text = text }
func (f runFragment) Formatting() Formatting { return fontFormatting(f.p.runs[f.i].Font) }

func (p *cellParagraph) Fragments() []Fragment {
	out := make([]Fragment, len(p.runs))
	for i := range p.runs {
		out[i] = runFragment{p: p, i: i}
	}
	return out
}

func (p *cellParagraph) RemoveFragment(i int) {
	if i < 0 || i >= len(p.runs) {
		return
	}
	p.runs = append(p.runs[:i], p.runs[i+1:]...)
}

// rich: нужно ли писать ячейку как rich text (есть оформление или несколько фрагментов).
func (p *cellParagraph) rich() bool {
	return len(p.runs) > 1 || (len(p.runs) == 1 && p.runs[0].Font != nil)
}

func fontFormatting(font *excelize.Font) Formatting {
	if font == nil {
		return nil
	}
	f := Formatting{}
	if font.Bold {
		f["bold"] = "true"
	}
	if font.Italic {
		f["italic"] = "true"
	}
	if font.Strike {
		f["strike"] = "true"
	}
	if font.Underline != "" {
		f["underline"] = font.Underline
	}
	if font.Family != "" {
		f["family"] = font.Family
	}
	if font.Size != 0 {
		f["size"] = strconv.FormatFloat(font.Size, 'f', -1, 64)
	}
	if font.Color != "" {
		f["color"] = font.Color
	}
	if font.VertAlign != "" {
		f["vert_align"] = font.VertAlign
	}
	return f
}

// MergeWorkbook подставляет поля во все строковые ячейки всех листов книги.
// Ячейки с формулами не трогаются.
func (e *Engine) MergeWorkbook(f *excelize.File, data interface{}) *Report {
	rep := &Report{}
	for _, sheet := range f.GetSheetList() {
		rep.merge(e.MergeSheet(f, sheet, data))
	}
	return rep
}

// MergeSheet подставляет поля в ячейки одного листа.
func (e *Engine) MergeSheet(f *excelize.File, sheet string, data interface{}) *Report {
	rep := &Report{}
	rows, err := f.GetRows(sheet)
	if err != nil {
		e.warn(rep, &Error{Kind: KindProcessing, Block: sheet, Message: "чтение листа", Err: err})
		return rep
	}
	changed := 0
	for r, row := range rows {
		for c, val := range row {
			if !strings.Contains(val, "{{") {
				continue
			}
			addr, _ := excelize.CoordinatesToCellName(c+1, r+1)
			if formula, _ := f.GetCellFormula(sheet, addr); formula != "" {
				continue
			}
			runs, err := f.GetCellRichText(sheet, addr)
			if err != nil || len(runs) == 0 {
				runs = []excelize.RichTextRun{{Text: val}}
			}
			p := &cellParagraph{runs: runs}
			if !e.MergeParagraph(p, data, rep, sheet+"!"+addr) {
				continue
			}
			if p.rich() {
				err = f.SetCellRichText(sheet, addr, p.runs)
			} else {
				err = f.SetCellValue(sheet, addr, ParagraphText(p))
			}
			if err != nil {
				e.warn(rep, &Error{Kind: KindProcessing, Block: sheet, Cell: addr, Message: "запись ячейки", Err: err})
				continue
			}
			changed++
		}
	}
	e.logger.Debug("поля листа подставлены", zap.String("sheet", sheet), zap.Int("cells", changed))
	return rep
}
