package doctemplar

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/xuri/excelize/v2"
)

// AnchorType: способ поиска якорной ячейки блока.
type AnchorType string

const (
	AnchorContains AnchorType = "contains"
	AnchorExact    AnchorType = "exact"
	AnchorRegex    AnchorType = "regex"
	AnchorCell     AnchorType = "cell"
	AnchorFuzzy    AnchorType = "fuzzy"
)

// AnchorRule: правило поиска якоря. Range: минимальный диапазон, гарантированно
// содержащий якорь; пустой Range означает всю используемую область листа.
type AnchorRule struct {
	Type    AnchorType `yaml:"type" json:"type"`
	Text    string     `yaml:"text,omitempty" json:"text,omitempty"`
	Pattern string     `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	Column  string     `yaml:"column,omitempty" json:"column,omitempty"`
	Range   string     `yaml:"range,omitempty" json:"range,omitempty"`
	Address string     `yaml:"address,omitempty" json:"address,omitempty"`
}

func ContainsText(text, column, rng string) AnchorRule {
	return AnchorRule{Type: AnchorContains, Text: text, Column: column, Range: rng}
}

func ExactMatch(text, column, rng string) AnchorRule {
	return AnchorRule{Type: AnchorExact, Text: text, Column: column, Range: rng}
}

func Regex(pattern, column, rng string) AnchorRule {
	return AnchorRule{Type: AnchorRegex, Pattern: pattern, Column: column, Range: rng}
}

func CellAddress(address string) AnchorRule {
	return AnchorRule{Type: AnchorCell, Address: address}
}

func Fuzzy(text, column, rng string) AnchorRule {
	return AnchorRule{Type: AnchorFuzzy, Text: text, Column: column, Range: rng}
}

type anchorMatcher struct {
	rule   AnchorRule
	needle string
	re     *regexp.Regexp
	col    int
	rng    *CellRange
	cell   Cell
}

// compileAnchor проверяет правило и готовит его к поиску. Ошибки здесь: ошибки конфигурации.
func compileAnchor(r AnchorRule) (*anchorMatcher, error) {
	m := &anchorMatcher{rule: r}
	if r.Type == AnchorCell {
		c, err := ParseCell(r.Address)
		if err != nil {
			return nil, fmt.Errorf("адрес %q: %w", r.Address, err)
		}
		m.cell = c
		return m, nil
	}
	switch r.Type {
	case AnchorContains, AnchorExact, AnchorFuzzy:
		if strings.TrimSpace(r.Text) == "" {
			return nil, fmt.Errorf("%s: пустой текст поиска", r.Type)
		}
		m.needle = fold(strings.TrimSpace(r.Text))
	case AnchorRegex:
		if r.Pattern == "" {
			return nil, errors.New("regex: пустой шаблон")
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("regex %q: %w", r.Pattern, err)
		}
		m.re = re
	default:
		return nil, fmt.Errorf("неизвестный тип якоря %q", r.Type)
	}
	if r.Range != "" {
		rng, err := ParseRange(r.Range)
		if err != nil {
			return nil, err
		}
		m.rng = &rng
	}
	if r.Column != "" {
		col, err := excelize.ColumnNameToNumber(strings.TrimSpace(r.Column))
		if err != nil {
			return nil, fmt.Errorf("колонка %q: %w", r.Column, err)
		}
		if m.rng != nil && (col < m.rng.From.Col || col > m.rng.To.Col) {
			return nil, fmt.Errorf("колонка %s вне диапазона %s", r.Column, m.rng)
		}
		m.col = col
	}
	return m, nil
}

func (m *anchorMatcher) match(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	switch m.rule.Type {
	case AnchorContains:
		return strings.Contains(fold(text), m.needle)
	case AnchorExact:
		return fold(text) == m.needle
	case AnchorFuzzy:
		return fuzzy.MatchNormalizedFold(m.needle, text)
	case AnchorRegex:
		return m.re.MatchString(text)
	}
	return false
}

// locate ищет якорь построчно (row-major); первое совпадение выигрывает.
func (m *anchorMatcher) locate(s Sheet) (Cell, bool, error) {
	if m.rule.Type == AnchorCell {
		return m.cell, true, nil
	}
	var rng CellRange
	if m.rng != nil {
		rng = *m.rng
	} else {
		b, err := s.Bounds()
		if err != nil {
			return Cell{}, false, err
		}
		if b.Row == 0 || b.Col == 0 {
			return Cell{}, false, nil
		}
		rng = CellRange{From: Cell{Row: 1, Col: 1}, To: b}
	}
	fromCol, toCol := rng.From.Col, rng.To.Col
	if m.col > 0 {
		fromCol, toCol = m.col, m.col
	}
	for row := rng.From.Row; row <= rng.To.Row; row++ {
		for col := fromCol; col <= toCol; col++ {
			c := Cell{Row: row, Col: col}
			v, err := s.Value(c)
			if err != nil {
				return Cell{}, false, err
			}
			if m.match(v) {
				return c, true, nil
			}
		}
	}
	return Cell{}, false, nil
}

// Locate ищет якорь правила на листе.
func Locate(s Sheet, rule AnchorRule) (Cell, bool, error) {
	m, err := compileAnchor(rule)
	if err != nil {
		return Cell{}, false, &Error{Kind: KindConfiguration, Message: "якорь", Err: err}
	}
	return m.locate(s)
}
