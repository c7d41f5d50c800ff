package doctemplar

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Formatting: явные атрибуты оформления фрагмента. Пустая карта означает
// отсутствие явного оформления. Движок оформление только читает.
type Formatting map[string]string

// Fragment: изменяемый дескриптор фрагмента текста с единым оформлением.
type Fragment interface {
	Text() string
	SetText(text string)
	Formatting() Formatting
}

// Paragraph: упорядоченный список фрагментов. Fragments вызывается заново
// после каждого RemoveFragment: индексы после удаления меняются.
type Paragraph interface {
	Fragments() []Fragment
	RemoveFragment(i int)
}

// Document: источник абзацев для подстановки полей.
type Document interface {
	Paragraphs() []Paragraph
}

// ParagraphText склеивает текст всех фрагментов абзаца.
func ParagraphText(p Paragraph) string {
	var b strings.Builder
	for _, f := range p.Fragments() {
		b.WriteString(f.Text())
	}
	return b.String()
}

// -----------------------------
// Модель презентации в памяти
// -----------------------------

// TextRun: фрагмент абзаца презентации.
type TextRun struct {
	Content string     `json:"text"`
	Format  Formatting `json:"format,omitempty"`
}

func (r *TextRun) Text() string           { return r.Content }
func (r *TextRun) SetText(text string)    { r.Content = text }
func (r *TextRun) Formatting() Formatting { return r.Format }

type TextParagraph struct {
	Runs []*TextRun `json:"runs"`
}

// NewParagraph строит абзац из фрагментов без оформления.
func NewParagraph(texts ...string) *TextParagraph {
	p := &TextParagraph{}
	for _, t := range texts {
		p.Runs = append(p.Runs, &TextRun{Content: t})
	}
	return p
}

func (p *TextParagraph) Fragments() []Fragment {
	out := make([]Fragment, len(p.Runs))
	for i, r := range p.Runs {
		out[i] = r
	}
	return out
}

func (p *TextParagraph) RemoveFragment(i int) {
	if i < 0 || i >= len(p.Runs) {
		return
	}
	p.Runs = append(p.Runs[:i], p.Runs[i+1:]...)
}

// Texts возвращает тексты фрагментов по порядку.
func (p *TextParagraph) Texts() []string {
	out := make([]string, len(p.Runs))
	for i, r := range p.Runs {
		out[i] = r.Content
	}
	return out
}

type Shape struct {
	Name       string           `json:"name,omitempty"`
	Paragraphs []*TextParagraph `json:"paragraphs"`
}

type Slide struct {
	Shapes []*Shape `json:"shapes"`
}

// Presentation: слайды → фигуры → абзацы → фрагменты.
type Presentation struct {
	Slides []*Slide `json:"slides"`
}

func (p *Presentation) Paragraphs() []Paragraph {
	var out []Paragraph
	for _, s := range p.Slides {
		for _, sh := range s.Shapes {
			for _, para := range sh.Paragraphs {
				out = append(out, para)
			}
		}
	}
	return out
}

// LoadPresentation читает презентацию в JSON-представлении модели.
func LoadPresentation(path string) (*Presentation, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Presentation
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("разбор презентации %s: %w", path, err)
	}
	return &p, nil
}

// Save пишет презентацию в JSON-представлении модели.
func (p *Presentation) Save(path string) error {
	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
