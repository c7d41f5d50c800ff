package doctemplar

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

// SpliceSuite — подстановка полей {{path}} в абзацы из нескольких фрагментов
type SpliceSuite struct {
	suite.Suite
	e    *Engine
	data map[string]interface{}
}

func TestSpliceSuite(t *testing.T) {
	suite.Run(t, new(SpliceSuite))
}

func (s *SpliceSuite) SetupTest() {
	e, err := New(Config{})
	s.Require().NoError(err)
	s.e = e
	s.data = map[string]interface{}{
		"person": map[string]interface{}{"name": "Ada", "age": 30.0},
		"a":      "1",
		"b":      "2",
		"items":  []interface{}{"zero", "one"},
	}
}

func (s *SpliceSuite) merge(p *TextParagraph) *Report {
	return s.e.Merge(&Presentation{Slides: []*Slide{{Shapes: []*Shape{{Paragraphs: []*TextParagraph{p}}}}}}, s.data)
}

func (s *SpliceSuite) TestTokenAcrossTwoFragments() {
	p := NewParagraph("Name: {{person.", "name}}, Age: {{person.age}}")
	rep := s.merge(p)
	s.Assert().Equal(StatusCompleted, rep.Status())
	s.Assert().Equal("Name: Ada, Age: 30", ParagraphText(p))
	s.Assert().Equal([]string{"Name: Ada", ", Age: 30"}, p.Texts())
}

func (s *SpliceSuite) TestTokenAcrossThreeFragments() {
	p := NewParagraph("{{person", ".name", "}}!")
	s.merge(p)
	s.Assert().Equal([]string{"Ada", "!"}, p.Texts())
}

func (s *SpliceSuite) TestTokenAcrossFiveFragments() {
	p := NewParagraph("Привет, {", "{", "person.na", "me}", "} и пока")
	s.merge(p)
	s.Assert().Equal("Привет, Ada и пока", ParagraphText(p))
	s.Assert().Equal([]string{"Привет, Ada", " и пока"}, p.Texts())
}

func (s *SpliceSuite) TestAdjacentFieldsAreIndependent() {
	p := NewParagraph("{{a}}{{b}}", "-{{items[1]}}")
	s.merge(p)
	s.Assert().Equal("12-one", ParagraphText(p))
}

func (s *SpliceSuite) TestMissingFieldBecomesEmpty() {
	p := NewParagraph("{{nope.deep}}")
	rep := s.merge(p)
	s.Assert().Equal(StatusCompleted, rep.Status())
	s.Assert().Equal([]string{""}, p.Texts(), "хотя бы один фрагмент остаётся")
}

func (s *SpliceSuite) TestFormattedEmptyFragmentSurvives() {
	p := &TextParagraph{Runs: []*TextRun{
		{Content: "{{person.na"},
		{Content: "me}}", Format: Formatting{"bold": "true"}},
		{Content: "tail"},
	}}
	s.merge(p)
	s.Require().Len(p.Runs, 3)
	s.Assert().Equal("Ada", p.Runs[0].Content)
	s.Assert().Equal("", p.Runs[1].Content)
	s.Assert().Equal("true", p.Runs[1].Format["bold"])
}

func (s *SpliceSuite) TestTailKeepsLastFragmentFormatting() {
	p := &TextParagraph{Runs: []*TextRun{
		{Content: "x{{a"},
		{Content: "}} жирный хвост", Format: Formatting{"bold": "true"}},
	}}
	s.merge(p)
	s.Require().Len(p.Runs, 2)
	s.Assert().Equal("x1", p.Runs[0].Content)
	s.Assert().Empty(p.Runs[0].Format)
	s.Assert().Equal(" жирный хвост", p.Runs[1].Content)
	s.Assert().Equal("true", p.Runs[1].Format["bold"])
}

func (s *SpliceSuite) TestIdempotent() {
	p := NewParagraph("X {{a", "}} Y", "", "{{b}}")
	s.merge(p)
	first := p.Texts()
	s.merge(p)
	s.Assert().Equal(first, p.Texts())

	// без подстановок абзац не трогается, пустые фрагменты остаются
	q := NewParagraph("plain", "", "text")
	s.merge(q)
	s.Assert().Equal([]string{"plain", "", "text"}, q.Texts())
}

func (s *SpliceSuite) TestMalformedTokenLeftAsIs() {
	p := NewParagraph("{{ 1bad }} and {{a-b}} but {{ a }}")
	rep := s.merge(p)
	s.Assert().Equal("{{ 1bad }} and {{a-b}} but 1", ParagraphText(p))
	s.Assert().Equal(2, rep.Count(KindMalformedField))
	s.Assert().Equal(StatusCompletedWithWarnings, rep.Status())
}

func (s *SpliceSuite) TestStrategiesAgree() {
	iter, err := New(Config{}, WithSpliceStrategy(Iterative))
	s.Require().NoError(err)
	inputs := [][]string{
		{"Name: {{person.", "name}}, Age: {{person.age}}"},
		{"{{a}}{{b}}{{a}}"},
		{"{", "{pers", "on.age}", "} yrs"},
	}
	for _, in := range inputs {
		rtl := NewParagraph(in...)
		it := NewParagraph(in...)
		s.merge(rtl)
		iter.Merge(&Presentation{Slides: []*Slide{{Shapes: []*Shape{{Paragraphs: []*TextParagraph{it}}}}}}, s.data)
		s.Assert().Equal(rtl.Texts(), it.Texts(), in)
	}
}

func (s *SpliceSuite) TestIterativeCapRestoresParagraph() {
	e, err := New(Config{}, WithSpliceStrategy(Iterative), WithMaxIterations(5))
	s.Require().NoError(err)
	p := NewParagraph("loop: {{self}}")
	rep := e.Merge(&Presentation{Slides: []*Slide{{Shapes: []*Shape{{Paragraphs: []*TextParagraph{p}}}}}},
		map[string]interface{}{"self": "{{self}}"})
	s.Assert().Equal([]string{"loop: {{self}}"}, p.Texts())
	s.Assert().Equal(1, rep.Count(KindProcessing))
}

func (s *SpliceSuite) TestPresentationFileRoundTrip() {
	dir := s.T().TempDir()
	src := filepath.Join(dir, "deck.json")
	dst := filepath.Join(dir, "out.json")
	deck := &Presentation{Slides: []*Slide{
		{Shapes: []*Shape{{Name: "title", Paragraphs: []*TextParagraph{NewParagraph("Hi {{person.", "name}}")}}}},
		{Shapes: []*Shape{{Paragraphs: []*TextParagraph{NewParagraph("Age {{person.age}}"), NewParagraph("static")}}}},
	}}
	s.Require().NoError(deck.Save(src))

	rep, err := MergePresentationFile(src, dst, s.data)
	s.Require().NoError(err)
	s.Assert().Equal(StatusCompleted, rep.Status())

	out, err := LoadPresentation(dst)
	s.Require().NoError(err)
	paras := out.Paragraphs()
	s.Require().Len(paras, 3)
	s.Assert().Equal("Hi Ada", ParagraphText(paras[0]))
	s.Assert().Equal("Age 30", ParagraphText(paras[1]))
	s.Assert().Equal("static", ParagraphText(paras[2]))
}
