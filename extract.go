package doctemplar

import (
	"strconv"
	"strings"

	expro "github.com/expr-lang/expr"
)

// header: подпись колонки таблицы (или строки/колонки матрицы) и её позиция по главной оси.
type header struct {
	pos   int
	label string
	field FieldConfig
}

func (r *blockRun) origin() Cell { return r.at.offset(r.b.HeaderOffset) }

func (r *blockRun) axis() axis {
	return axis{origin: r.origin(), orientation: r.b.Orientation}
}

func (r *blockRun) text(c Cell) (string, error) {
	v, err := r.sh.Value(c)
	return strings.TrimSpace(v), err
}

// extract читает блок в зависимости от вида.
func (r *blockRun) extract() (interface{}, error) {
	switch r.b.Kind {
	case KindKeyValue:
		return r.extractKeyValue()
	case KindTable:
		return r.extractTable()
	case KindMatrix:
		return r.extractMatrix()
	}
	return nil, configErrorf(r.b.Name, "неизвестный вид блока %q", r.b.Kind)
}

// keyLimit: сколько подписей просматривается вдоль главной оси key_value блока.
func (r *blockRun) keyLimit() int {
	if r.b.Orientation == Vertical {
		return r.b.MaxRows
	}
	return r.b.MaxColumns
}

// labels читает подписи key_value блока до первой пустой.
func (r *blockRun) labels() ([]header, error) {
	ax := r.axis()
	var out []header
	for i := 0; i < r.keyLimit(); i++ {
		label, err := r.text(ax.at(i, 0))
		if err != nil {
			return nil, err
		}
		if label == "" {
			break
		}
		out = append(out, header{pos: i, label: label, field: r.b.fields.resolve(label)})
	}
	return out, nil
}

func (r *blockRun) extractKeyValue() (map[string]interface{}, error) {
	ax := r.axis()
	hs, err := r.labels()
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(hs))
	for _, h := range hs {
		v, err := readValue(r.sh, ax.at(h.pos, 0).offset(r.b.DataOffset), h.field)
		if err != nil {
			return nil, err
		}
		out[h.field.Name] = v
	}
	r.derive(out)
	return out, nil
}

// headers читает шапку таблицы до первой пустой подписи или max_columns.
func (r *blockRun) headers() ([]header, error) {
	ax := r.axis()
	var out []header
	for i := 0; i < r.b.MaxColumns; i++ {
		label, err := r.text(ax.at(i, 0))
		if err != nil {
			return nil, err
		}
		if label == "" {
			break
		}
		out = append(out, header{pos: i, label: label, field: r.b.fields.resolve(label)})
	}
	return out, nil
}

// dataCell: ячейка j-й записи таблицы под подписью h.
func (r *blockRun) dataCell(h header, j int) Cell {
	return r.axis().at(h.pos, j).offset(r.b.DataOffset)
}

// blankRecord сообщает о конце таблицы, когда все ячейки записи пусты.
func (r *blockRun) blankRecord(hs []header, j int) (bool, error) {
	for _, h := range hs {
		v, err := r.text(r.dataCell(h, j))
		if err != nil {
			return false, err
		}
		if v != "" {
			return false, nil
		}
	}
	return true, nil
}

// extent: число непустых записей подряд от начала данных (не больше max_rows).
func (r *blockRun) extent(hs []header) (int, error) {
	n := 0
	for ; n < r.b.MaxRows; n++ {
		blank, err := r.blankRecord(hs, n)
		if err != nil {
			return 0, err
		}
		if blank {
			break
		}
	}
	return n, nil
}

func (r *blockRun) extractTable() ([]interface{}, error) {
	hs, err := r.headers()
	if err != nil {
		return nil, err
	}
	if len(hs) == 0 {
		r.warn(&Error{Kind: KindProcessing, Cell: r.origin().Name(), Message: "пустая шапка таблицы"})
		return []interface{}{}, nil
	}
	n, err := r.extent(hs)
	if err != nil {
		return nil, err
	}
	out := make([]interface{}, 0, n)
	for j := 0; j < n; j++ {
		rec := make(map[string]interface{}, len(hs))
		for _, h := range hs {
			v, err := readValue(r.sh, r.dataCell(h, j), h.field)
			if err != nil {
				return nil, err
			}
			rec[h.field.Name] = v
		}
		r.derive(rec)
		if !r.keep(rec, j) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *blockRun) extractMatrix() (map[string]interface{}, error) {
	cols, rows, err := r.matrixAxes()
	if err != nil {
		return nil, err
	}
	ax := r.axis()
	out := make(map[string]interface{}, len(rows))
	for _, rh := range rows {
		line := make(map[string]interface{}, len(cols))
		for _, ch := range cols {
			v, err := readValue(r.sh, ax.at(ch.pos, rh.pos), ch.field)
			if err != nil {
				return nil, err
			}
			line[ch.field.Name] = v
		}
		out[rh.field.Name] = line
	}
	return out, nil
}

// matrixAxes читает заголовки колонок (вправо от угла) и ключи строк (вниз от угла).
func (r *blockRun) matrixAxes() (cols, rows []header, err error) {
	ax := r.axis()
	for k := 1; k <= r.b.MaxColumns; k++ {
		label, err := r.text(ax.at(k, 0))
		if err != nil {
			return nil, nil, err
		}
		if label == "" {
			break
		}
		cols = append(cols, header{pos: k, label: label, field: r.b.fields.resolve(label)})
	}
	for k := 1; k <= r.b.MaxRows; k++ {
		label, err := r.text(ax.at(0, k))
		if err != nil {
			return nil, nil, err
		}
		if label == "" {
			break
		}
		rows = append(rows, header{pos: k, label: label, field: r.b.rows.resolve(label)})
	}
	return cols, rows, nil
}

// derive вычисляет поля с expr поверх уже прочитанной записи.
func (r *blockRun) derive(rec map[string]interface{}) {
	for _, d := range r.b.derived {
		v, err := expro.Run(d.program, rec)
		if err != nil {
			r.warn(&Error{Kind: KindProcessing, Message: "вычисляемое поле " + d.name, Err: err})
			rec[d.name] = nil
			continue
		}
		rec[d.name] = v
	}
}

// keep применяет filter таблицы; ошибка вычисления оставляет запись с предупреждением.
func (r *blockRun) keep(rec map[string]interface{}, j int) bool {
	if r.b.filter == nil {
		return true
	}
	out, err := expro.Run(r.b.filter, rec)
	if err != nil {
		r.warn(&Error{Kind: KindProcessing, Message: "filter записи #" + strconv.Itoa(j+1), Err: err})
		return true
	}
	ok, _ := out.(bool)
	return ok
}
