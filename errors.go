package doctemplar

import (
	"errors"
	"fmt"
	"strings"
)

// Kind: машиночитаемый вид ошибки или предупреждения.
type Kind string

const (
	KindConfiguration  Kind = "configuration"
	KindNotFound       Kind = "not_found"
	KindValueCoercion  Kind = "value_coercion"
	KindProcessing     Kind = "processing"
	KindMalformedField Kind = "malformed_field"
)

var (
	// ErrConfiguration: некорректное объявление блока/якоря; прерывает весь запуск до записи.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotFound: якорь блока не найден; блок пропускается.
	ErrNotFound = errors.New("anchor not found")
)

// Error описывает ошибку или предупреждение для пользователя: сообщение плюс вид.
type Error struct {
	Kind    Kind
	Block   string
	Cell    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Block != "" {
		b.WriteString(" [")
		b.WriteString(e.Block)
		if e.Cell != "" {
			b.WriteString("!")
			b.WriteString(e.Cell)
		}
		b.WriteString("]")
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is позволяет сравнивать с сентинелами через errors.Is.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfiguration:
		return e.Kind == KindConfiguration
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}

func configErrorf(block, format string, args ...interface{}) *Error {
	return &Error{Kind: KindConfiguration, Block: block, Message: fmt.Sprintf(format, args...)}
}

// KindOf возвращает вид ошибки; для посторонних ошибок: processing.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindProcessing
}

// Status: терминальное состояние запуска.
type Status string

const (
	StatusCompleted             Status = "completed"
	StatusCompletedWithWarnings Status = "completed_with_warnings"
	StatusFailed                Status = "failed"
)

// Report собирает предупреждения одного запуска.
type Report struct {
	Warnings []*Error
	failed   bool
}

func (r *Report) warn(w *Error) {
	r.Warnings = append(r.Warnings, w)
}

func (r *Report) fail(err error) {
	r.failed = true
	var e *Error
	if !errors.As(err, &e) {
		e = &Error{Kind: KindProcessing, Message: "запуск прерван", Err: err}
	}
	r.Warnings = append(r.Warnings, e)
}

// Status вычисляет итог по собранным предупреждениям.
func (r *Report) Status() Status {
	switch {
	case r == nil:
		return StatusCompleted
	case r.failed:
		return StatusFailed
	case len(r.Warnings) > 0:
		return StatusCompletedWithWarnings
	default:
		return StatusCompleted
	}
}

// Count возвращает число предупреждений указанного вида.
func (r *Report) Count(kind Kind) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, w := range r.Warnings {
		if w.Kind == kind {
			n++
		}
	}
	return n
}

func (r *Report) merge(other *Report) {
	if other == nil {
		return
	}
	r.Warnings = append(r.Warnings, other.Warnings...)
	r.failed = r.failed || other.failed
}
