package doctemplar

import (
	"regexp"
	"strings"
)

var (
	// Токен поля: содержимое между {{ и }} без фигурных скобок внутри,
	// поэтому "{{{{a}}" находит "{{a}}".
	rxToken = regexp.MustCompile(`\{\{([^{}]*)\}\}`)
	// Путь поля, регистр значим.
	rxFieldPath = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z0-9_]+)*$`)
	rxBracket   = regexp.MustCompile(`\[(\d+)\]`)
)

// FragmentSpan: положение фрагмента в склеенном тексте абзаца, [Start, End).
type FragmentSpan struct {
	Index int
	Start int
	End   int
}

// FragmentMap действителен только до следующего изменения любого фрагмента.
type FragmentMap []FragmentSpan

// BuildFragmentMap склеивает тексты фрагментов и запоминает их границы.
func BuildFragmentMap(frags []Fragment) (FragmentMap, string) {
	var b strings.Builder
	fm := make(FragmentMap, len(frags))
	for i, f := range frags {
		start := b.Len()
		b.WriteString(f.Text())
		fm[i] = FragmentSpan{Index: i, Start: start, End: b.Len()}
	}
	return fm, b.String()
}

// FragmentSlice: часть токена внутри одного фрагмента, локальные границы [From, To).
type FragmentSlice struct {
	Index int
	From  int
	To    int
}

// FieldOccurrence: одно вхождение поля. Смещения теряют смысл после изменения фрагментов.
type FieldOccurrence struct {
	Name  string
	Token string
	Start int
	End   int
	Parts []FragmentSlice
}

// LocateFields находит все токены {{path}} в абзаце независимо от того, где проходят
// границы фрагментов. Токены с некорректным путём возвращаются отдельно и не подставляются.
func LocateFields(frags []Fragment) (fields []FieldOccurrence, malformed []string) {
	fm, text := BuildFragmentMap(frags)
	if !strings.Contains(text, "{{") {
		return nil, nil
	}
	for _, m := range rxToken.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]
		token := text[start:end]
		name, ok := fieldName(text[m[2]:m[3]])
		if !ok {
			malformed = append(malformed, token)
			continue
		}
		fields = append(fields, FieldOccurrence{
			Name:  name,
			Token: token,
			Start: start,
			End:   end,
			Parts: fm.cover(start, end),
		})
	}
	return fields, malformed
}

// cover возвращает минимальный набор непустых фрагментов, пересекающихся с [start, end).
func (fm FragmentMap) cover(start, end int) []FragmentSlice {
	var out []FragmentSlice
	for _, s := range fm {
		if s.Start == s.End || s.End <= start || s.Start >= end {
			continue
		}
		out = append(out, FragmentSlice{
			Index: s.Index,
			From:  max(start, s.Start) - s.Start,
			To:    min(end, s.End) - s.Start,
		})
	}
	return out
}

// fieldName нормализует содержимое токена: обрезает пробелы, a[0].b → a.0.b.
func fieldName(inner string) (string, bool) {
	name := strings.TrimSpace(inner)
	name = rxBracket.ReplaceAllString(name, ".$1")
	if !rxFieldPath.MatchString(name) {
		return "", false
	}
	return name, true
}
