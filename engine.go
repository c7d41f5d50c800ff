// Package doctemplar реализует движок шаблонов документов, управляемый конфигурацией.
//
// Два направления:
//   - извлечение записей из полуструктурированных листов по декларативным
//     правилам поиска якорей (key_value, table, matrix) и обратная запись,
//     включая динамическое расширение таблиц;
//   - подстановка записей в форматированный текст через поля {{path}}
//     с сохранением оформления фрагментов.
//
// Внешний API: New, Extract, Update, Merge, MergeWorkbook.
package doctemplar

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Engine выполняет провалидированную конфигурацию. Один документ на вызов,
// внутреннего состояния между вызовами нет.
type Engine struct {
	blocks        []*block
	logger        *zap.Logger
	images        ImageLoader
	strategy      Strategy
	maxIterations int
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithImageLoader(l ImageLoader) Option {
	return func(e *Engine) { e.images = l }
}

func WithSpliceStrategy(s Strategy) Option {
	return func(e *Engine) { e.strategy = s }
}

// WithMaxIterations задаёт жёсткий лимит итеративной стратегии.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxIterations = n
		}
	}
}

// New валидирует конфигурацию. Ошибка конфигурации возвращается до любых изменений документа.
func New(cfg Config, opts ...Option) (*Engine, error) {
	e := &Engine{
		logger:        zap.NewNop(),
		images:        DefaultImageLoader(),
		strategy:      RightToLeft,
		maxIterations: defaultMaxIterations,
	}
	for _, o := range opts {
		o(e)
	}
	blocks, err := compileBlocks(cfg)
	if err != nil {
		e.logger.Error("некорректная конфигурация", zap.Error(err))
		return nil, err
	}
	e.blocks = blocks
	return e, nil
}

func (e *Engine) warn(rep *Report, w *Error) {
	rep.warn(w)
	e.logger.Warn(w.Message,
		zap.String("kind", string(w.Kind)),
		zap.String("block", w.Block),
		zap.String("cell", w.Cell),
		zap.Error(w.Err))
}

// blockRun: состояние обработки одного блока в одном запуске.
type blockRun struct {
	e   *Engine
	b   *block
	sh  Sheet
	at  Cell
	rep *Report
	// undo: ячейки до записи в порядке записи
	undo []cellState
}

func (r *blockRun) warn(w *Error) {
	if w.Block == "" {
		w.Block = r.b.Name
	}
	r.e.warn(r.rep, w)
}

// prepare находит лист и якорь блока. Не найденный якорь: предупреждение, блок пропускается.
func (e *Engine) prepare(wb Workbook, b *block, rep *Report) (*blockRun, bool) {
	sh, err := wb.Sheet(b.Sheet)
	if err != nil {
		e.warn(rep, &Error{Kind: KindProcessing, Block: b.Name, Message: "лист недоступен", Err: err})
		return nil, false
	}
	at, ok, err := b.anchor.locate(sh)
	if err != nil {
		e.warn(rep, &Error{Kind: KindProcessing, Block: b.Name, Message: "поиск якоря", Err: err})
		return nil, false
	}
	if !ok {
		e.warn(rep, &Error{Kind: KindNotFound, Block: b.Name, Message: "якорь не найден, блок пропущен"})
		return nil, false
	}
	return &blockRun{e: e, b: b, sh: sh, at: at, rep: rep}, true
}

// guard перехватывает сбой внутри блока: он фиксируется, остальные блоки продолжают работу.
func (r *blockRun) guard(stage string, fn func() error) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.warn(&Error{Kind: KindProcessing, Message: fmt.Sprintf("%s: сбой: %v", stage, p)})
			ok = false
		}
	}()
	if err := fn(); err != nil {
		var ee *Error
		if errors.As(err, &ee) {
			r.warn(ee)
		} else {
			r.warn(&Error{Kind: KindProcessing, Message: stage, Err: err})
		}
		return false
	}
	return true
}

// Extract извлекает все блоки конфигурации. Ключи результата: имена блоков.
func (e *Engine) Extract(wb Workbook) (map[string]interface{}, *Report) {
	start := time.Now()
	rep := &Report{}
	out := make(map[string]interface{}, len(e.blocks))
	for _, b := range e.blocks {
		r, ok := e.prepare(wb, b, rep)
		if !ok {
			continue
		}
		var v interface{}
		if r.guard("извлечение", func() (err error) {
			v, err = r.extract()
			return err
		}) {
			out[b.Name] = v
		}
	}
	e.logger.Info("извлечение завершено",
		zap.Int("blocks", len(out)),
		zap.Int("warnings", len(rep.Warnings)),
		zap.Duration("duration", time.Since(start)))
	return out, rep
}

// Update записывает данные блоков обратно в книгу. Блоки без данных не трогаются.
func (e *Engine) Update(wb Workbook, data map[string]interface{}) *Report {
	start := time.Now()
	rep := &Report{}
	written := 0
	for _, b := range e.blocks {
		v, ok := data[b.Name]
		if !ok {
			e.logger.Debug("нет данных для блока", zap.String("block", b.Name))
			continue
		}
		r, ok := e.prepare(wb, b, rep)
		if !ok {
			continue
		}
		if r.guard("обновление", func() error { return r.update(v) }) {
			written++
			continue
		}
		r.guard("откат", func() error { r.rollback(); return nil })
	}
	e.logger.Info("обновление завершено",
		zap.Int("blocks", written),
		zap.Int("warnings", len(rep.Warnings)),
		zap.Duration("duration", time.Since(start)))
	return rep
}

// Merge подставляет поля во все абзацы документа.
func (e *Engine) Merge(doc Document, data interface{}) *Report {
	rep := &Report{}
	changed := 0
	for i, p := range doc.Paragraphs() {
		if e.MergeParagraph(p, data, rep, fmt.Sprintf("¶%d", i+1)) {
			changed++
		}
	}
	e.logger.Debug("подстановка полей завершена",
		zap.Int("paragraphs", changed),
		zap.Int("warnings", len(rep.Warnings)))
	return rep
}

// MergeParagraph подставляет поля в один абзац и убирает пустые фрагменты.
// Сбой внутри абзаца возвращает ему исходный текст; остальные абзацы не затрагиваются.
func (e *Engine) MergeParagraph(p Paragraph, data interface{}, rep *Report, where string) (changed bool) {
	frags := p.Fragments()
	snapshot := make([]string, len(frags))
	for i, f := range frags {
		snapshot[i] = f.Text()
	}
	defer func() {
		if rec := recover(); rec != nil {
			restore(frags, snapshot)
			e.warn(rep, &Error{Kind: KindProcessing, Cell: where, Message: fmt.Sprintf("сбой подстановки: %v", rec)})
			changed = false
		}
	}()

	var (
		n         int
		malformed []string
		err       error
	)
	if e.strategy == Iterative {
		n, malformed, err = spliceIterative(p, data, e.maxIterations)
	} else {
		n, malformed = splice(p, data)
	}
	for _, tok := range malformed {
		e.warn(rep, &Error{Kind: KindMalformedField, Cell: where, Message: fmt.Sprintf("некорректное поле %s пропущено", tok)})
	}
	if err != nil {
		restore(frags, snapshot)
		e.warn(rep, &Error{Kind: KindProcessing, Cell: where, Message: "подстановка отменена", Err: err})
		return false
	}
	if n == 0 {
		return false
	}
	cleanup(p)
	return true
}

func restore(frags []Fragment, snapshot []string) {
	defer func() { _ = recover() }()
	for i, f := range frags {
		f.SetText(snapshot[i])
	}
}

// Extract выполняет полный цикл с валидацией конфигурации и извлечением.
func Extract(wb Workbook, cfg Config, opts ...Option) (map[string]interface{}, *Report, error) {
	e, err := New(cfg, opts...)
	if err != nil {
		rep := &Report{}
		rep.fail(err)
		return nil, rep, err
	}
	out, rep := e.Extract(wb)
	return out, rep, nil
}

// Update проверяет конфигурацию до первой записи и затем обновляет книгу.
func Update(wb Workbook, cfg Config, data map[string]interface{}, opts ...Option) (*Report, error) {
	e, err := New(cfg, opts...)
	if err != nil {
		rep := &Report{}
		rep.fail(err)
		return rep, err
	}
	return e.Update(wb, data), nil
}
