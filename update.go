package doctemplar

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// update пишет данные блока; вид данных должен совпадать с видом блока.
func (r *blockRun) update(data interface{}) error {
	switch r.b.Kind {
	case KindKeyValue:
		m, ok := data.(map[string]interface{})
		if !ok {
			return fmt.Errorf("key_value ожидает объект, получено %T", data)
		}
		return r.updateKeyValue(m)
	case KindTable:
		rows, ok := data.([]interface{})
		if !ok {
			return fmt.Errorf("table ожидает массив, получено %T", data)
		}
		return r.updateTable(rows)
	case KindMatrix:
		m, ok := data.(map[string]interface{})
		if !ok {
			return fmt.Errorf("matrix ожидает объект, получено %T", data)
		}
		return r.updateMatrix(m)
	}
	return configErrorf(r.b.Name, "неизвестный вид блока %q", r.b.Kind)
}

func (r *blockRun) write(c Cell, fc FieldConfig, v interface{}) error {
	if err := r.backup(c); err != nil {
		return fmt.Errorf("чтение %s: %w", c.Name(), err)
	}
	w, err := writeValue(r.sh, c, fc, v, r.e.images)
	if w != nil {
		r.warn(w)
	}
	if err != nil {
		return fmt.Errorf("запись %s: %w", c.Name(), err)
	}
	return nil
}

// backup запоминает ячейку перед записью. Повторные записи в ту же ячейку
// сохраняются тоже: откат идёт с конца, и последней восстанавливается исходная копия.
func (r *blockRun) backup(c Cell) error {
	var (
		st  cellState
		err error
	)
	if cs, ok := r.sh.(cellSnapshotter); ok {
		st, err = cs.snapshot(c)
	} else {
		st = cellState{c: c}
		st.raw, err = r.sh.RawValue(c)
	}
	if err != nil {
		return err
	}
	r.undo = append(r.undo, st)
	return nil
}

// rollback возвращает записанные блоком ячейки в прежнее состояние.
// Вставленные линии, гиперссылки и картинки остаются.
func (r *blockRun) rollback() {
	if len(r.undo) == 0 {
		return
	}
	cs, typed := r.sh.(cellSnapshotter)
	for i := len(r.undo) - 1; i >= 0; i-- {
		st := r.undo[i]
		var err error
		if typed {
			err = cs.restore(st)
		} else {
			err = r.sh.SetValue(st.c, st.raw)
		}
		if err != nil {
			r.warn(&Error{Kind: KindProcessing, Cell: st.c.Name(), Message: "откат ячейки не выполнен", Err: err})
		}
	}
	r.e.logger.Info("запись блока отменена",
		zap.String("block", r.b.Name),
		zap.Int("cells", len(r.undo)))
	r.undo = nil
}

func (r *blockRun) updateKeyValue(data map[string]interface{}) error {
	ax := r.axis()
	hs, err := r.labels()
	if err != nil {
		return err
	}
	written := make(map[string]bool, len(data))
	for _, h := range hs {
		if h.field.Expr != "" {
			continue
		}
		v, ok := data[h.field.Name]
		if !ok {
			continue
		}
		if err := r.write(ax.at(h.pos, 0).offset(r.b.DataOffset), h.field, v); err != nil {
			return err
		}
		written[h.field.Name] = true
	}
	for _, name := range sortedKeys(data) {
		if written[name] || r.b.fields.field(name).Expr != "" {
			continue
		}
		r.warn(&Error{Kind: KindNotFound, Message: fmt.Sprintf("подпись для поля %s не найдена", name)})
	}
	return nil
}

func (r *blockRun) updateTable(rows []interface{}) error {
	hs, err := r.headers()
	if err != nil {
		return err
	}
	if len(hs) == 0 {
		r.warn(&Error{Kind: KindProcessing, Cell: r.origin().Name(), Message: "пустая шапка таблицы, запись пропущена"})
		return nil
	}
	existing, err := r.extent(hs)
	if err != nil {
		return err
	}
	extent := existing
	if r.b.Capacity > extent {
		extent = r.b.Capacity
	}
	if len(rows) > extent {
		if err := r.expand(hs, extent, len(rows)-extent); err != nil {
			return fmt.Errorf("расширение таблицы: %w", err)
		}
	}

	known := make(map[string]bool, len(hs))
	for _, h := range hs {
		known[h.field.Name] = true
	}
	unknown := map[string]bool{}
	for j, raw := range rows {
		rec, ok := raw.(map[string]interface{})
		if !ok {
			r.warn(&Error{Kind: KindProcessing, Message: fmt.Sprintf("запись #%d: ожидается объект, получено %T", j+1, raw)})
			continue
		}
		for _, h := range hs {
			if h.field.Expr != "" {
				continue
			}
			v, ok := rec[h.field.Name]
			if !ok {
				continue
			}
			if err := r.write(r.dataCell(h, j), h.field, v); err != nil {
				return err
			}
		}
		for k := range rec {
			if !known[k] && r.b.fields.field(k).Expr == "" {
				unknown[k] = true
			}
		}
	}
	for _, k := range sortedKeys(unknown) {
		r.warn(&Error{Kind: KindNotFound, Message: fmt.Sprintf("колонка для поля %s не найдена", k)})
	}

	// хвост прежних данных, не покрытый новыми записями, очищается
	for j := len(rows); j < existing; j++ {
		for _, h := range hs {
			c := r.dataCell(h, j)
			if err := r.backup(c); err != nil {
				return err
			}
			if err := r.sh.SetValue(c, ""); err != nil {
				return err
			}
		}
	}
	r.e.logger.Debug("таблица записана",
		zap.String("block", r.b.Name),
		zap.Int("rows", len(rows)),
		zap.Int("extent", extent))
	return nil
}

func (r *blockRun) updateMatrix(data map[string]interface{}) error {
	cols, rows, err := r.matrixAxes()
	if err != nil {
		return err
	}
	ax := r.axis()
	for _, rowKey := range sortedKeys(data) {
		rh, ok := findHeader(rows, rowKey, r.b.rows)
		if !ok {
			r.warn(&Error{Kind: KindNotFound, Message: fmt.Sprintf("строка матрицы %s не найдена", rowKey)})
			continue
		}
		line, ok := data[rowKey].(map[string]interface{})
		if !ok {
			r.warn(&Error{Kind: KindProcessing, Message: fmt.Sprintf("строка матрицы %s: ожидается объект, получено %T", rowKey, data[rowKey])})
			continue
		}
		for _, colKey := range sortedKeys(line) {
			ch, ok := findHeader(cols, colKey, r.b.fields)
			if !ok {
				r.warn(&Error{Kind: KindNotFound, Message: fmt.Sprintf("колонка матрицы %s не найдена", colKey)})
				continue
			}
			if err := r.write(ax.at(ch.pos, rh.pos), ch.field, line[colKey]); err != nil {
				return err
			}
		}
	}
	return nil
}

// findHeader ищет подпись оси по имени поля: через сопоставление или по тексту подписи.
func findHeader(hs []header, key string, idx *fieldIndex) (header, bool) {
	for _, h := range hs {
		if h.field.Name == key {
			return h, true
		}
	}
	want := labelKey(key)
	if fc, ok := idx.byName[key]; ok && fc.Label != "" {
		want = labelKey(fc.Label)
	}
	for _, h := range hs {
		if labelKey(h.label) == want {
			return h, true
		}
	}
	return header{}, false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
