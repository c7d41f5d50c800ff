package doctemplar

import (
	"fmt"
	"sort"
)

// Strategy: способ подстановки полей в абзац.
type Strategy int

const (
	// RightToLeft: один проход поиска, подстановка справа налево.
	RightToLeft Strategy = iota
	// Iterative: по одному полю за раз со свежим поиском после каждой подстановки.
	Iterative
)

const defaultMaxIterations = 1000

// splice заменяет все поля абзаца значениями из data. Возвращает число подстановок.
// Подстановки идут от последнего вхождения к первому: изменение длины текста
// справа не сдвигает смещения вхождений, ещё не обработанных слева.
func splice(p Paragraph, data interface{}) (int, []string) {
	frags := p.Fragments()
	fields, malformed := LocateFields(frags)
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Start > fields[j].Start })
	for _, occ := range fields {
		apply(frags, occ, ResolveString(data, occ.Name))
	}
	return len(fields), malformed
}

// spliceIterative: по одному полю за проход; maxIter ограничивает патологический ввод
// (например значение, которое само содержит токен).
func spliceIterative(p Paragraph, data interface{}, maxIter int) (int, []string, error) {
	var malformed []string
	for n := 0; ; n++ {
		frags := p.Fragments()
		fields, bad := LocateFields(frags)
		if n == 0 {
			malformed = bad
		}
		if len(fields) == 0 {
			return n, malformed, nil
		}
		if n >= maxIter {
			return n, malformed, fmt.Errorf("превышен лимит итераций подстановки (%d)", maxIter)
		}
		apply(frags, fields[0], ResolveString(data, fields[0].Name))
	}
}

// apply подставляет значение вместо одного вхождения. Объекты фрагментов не удаляются:
// средние фрагменты обнуляются, последний сохраняет свой текст после токена.
func apply(frags []Fragment, occ FieldOccurrence, value string) {
	if len(occ.Parts) == 0 {
		return
	}
	first := occ.Parts[0]
	ft := frags[first.Index].Text()
	if len(occ.Parts) == 1 {
		frags[first.Index].SetText(ft[:first.From] + value + ft[first.To:])
		return
	}
	// хвост после токена остаётся в последнем фрагменте и не переносится в первый
	frags[first.Index].SetText(ft[:first.From] + value)
	for _, part := range occ.Parts[1 : len(occ.Parts)-1] {
		frags[part.Index].SetText("")
	}
	last := occ.Parts[len(occ.Parts)-1]
	lt := frags[last.Index].Text()
	frags[last.Index].SetText(lt[last.To:])
}

// cleanup удаляет пустые фрагменты без явного оформления; хотя бы один фрагмент остаётся.
func cleanup(p Paragraph) {
	frags := p.Fragments()
	left := len(frags)
	for i := len(frags) - 1; i >= 0 && left > 1; i-- {
		if frags[i].Text() == "" && len(frags[i].Formatting()) == 0 {
			p.RemoveFragment(i)
			left--
		}
	}
}
