package doctemplar

import "go.uber.org/zap"

// Динамическое расширение таблицы. Линия: строка листа для horizontal-таблицы
// и колонка для vertical. Всё, что ниже (правее) области данных, сдвигается целиком
// вставкой линий: формулы и объединения сдвинутых строк переезжают вместе с ними.

func (r *blockRun) lineOf(c Cell) int {
	if r.b.Orientation == Vertical {
		return c.Col
	}
	return c.Row
}

func (r *blockRun) lineCell(line, k int) Cell {
	if r.b.Orientation == Vertical {
		return Cell{Row: k, Col: line}
	}
	return Cell{Row: line, Col: k}
}

func (r *blockRun) insertLines(at, n int) error {
	if r.b.Orientation == Vertical {
		return r.sh.InsertColumns(at, n)
	}
	return r.sh.InsertRows(at, n)
}

// expand вставляет delta линий сразу за последней линией прежней протяжённости
// и переносит на них оформление последней линии.
func (r *blockRun) expand(hs []header, extent, delta int) error {
	at := r.lineOf(r.dataCell(hs[0], extent))
	if err := r.insertLines(at, delta); err != nil {
		return err
	}
	r.e.logger.Info("таблица расширена",
		zap.String("block", r.b.Name),
		zap.Int("at", at),
		zap.Int("delta", delta))
	if extent == 0 {
		return nil
	}
	tpl := r.lineOf(r.dataCell(hs[0], extent-1))
	return r.copyLineFormat(hs, tpl, at, delta)
}

// copyLineFormat копирует стили ячеек и однолинейные объединения шаблонной линии.
func (r *blockRun) copyLineFormat(hs []header, tpl, at, n int) error {
	bounds, err := r.sh.Bounds()
	if err != nil {
		return err
	}
	span := bounds.Col
	if r.b.Orientation == Vertical {
		span = bounds.Row
	}
	last := r.dataCell(hs[len(hs)-1], 0)
	if r.b.Orientation == Vertical {
		span = max(span, last.Row)
	} else {
		span = max(span, last.Col)
	}

	for k := 1; k <= span; k++ {
		st, err := r.sh.Style(r.lineCell(tpl, k))
		if err != nil {
			return err
		}
		if st == 0 {
			continue
		}
		for i := 0; i < n; i++ {
			if err := r.sh.SetStyle(r.lineCell(at+i, k), st); err != nil {
				return err
			}
		}
	}

	merges, err := r.sh.Merges()
	if err != nil {
		return err
	}
	for _, m := range merges {
		if r.lineOf(m.From) != tpl || r.lineOf(m.To) != tpl {
			continue
		}
		for i := 0; i < n; i++ {
			shift := i + at - tpl
			mr := m
			if r.b.Orientation == Vertical {
				mr.From.Col += shift
				mr.To.Col += shift
			} else {
				mr.From.Row += shift
				mr.To.Row += shift
			}
			if err := r.sh.Merge(mr); err != nil {
				return err
			}
		}
	}
	return nil
}
