package doctemplar

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// EngineSuite — файловые обёртки, rich text ячеек и журнал
type EngineSuite struct {
	suite.Suite
	dir string
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() { s.dir = s.T().TempDir() }

func (s *EngineSuite) path(name string) string { return filepath.Join(s.dir, name) }

func (s *EngineSuite) save(f *excelize.File, name string) string {
	p := s.path(name)
	s.Require().NoError(f.SaveAs(p))
	s.Require().NoError(f.Close())
	return p
}

func (s *EngineSuite) TestMergeWorkbookKeepsRunFormatting() {
	f := excelize.NewFile()
	s.Require().NoError(f.SetCellRichText(sheet1, "A1", []excelize.RichTextRun{
		{Text: "Hello {{person.na"},
		{Text: "me}}!", Font: &excelize.Font{Bold: true}},
	}))
	_ = f.SetCellValue(sheet1, "A2", "{{city}}")
	_ = f.SetCellValue(sheet1, "A3", "no fields")
	s.Require().NoError(f.SetCellFormula(sheet1, "A4", `"{{city}}"&"x"`))
	src := s.save(f, "tpl.xlsx")
	dst := s.path("out.xlsx")

	rep, err := MergeFile(src, dst, map[string]interface{}{
		"person": map[string]interface{}{"name": "Ada"},
		"city":   "Paris",
	})
	s.Require().NoError(err)
	s.Assert().Equal(StatusCompleted, rep.Status())

	out, err := excelize.OpenFile(dst)
	s.Require().NoError(err)
	defer out.Close()

	runs, err := out.GetCellRichText(sheet1, "A1")
	s.Require().NoError(err)
	s.Require().Len(runs, 2)
	s.Assert().Equal("Hello Ada", runs[0].Text)
	s.Assert().Equal("!", runs[1].Text)
	s.Require().NotNil(runs[1].Font)
	s.Assert().True(runs[1].Font.Bold)

	v, _ := out.GetCellValue(sheet1, "A2")
	s.Assert().Equal("Paris", v)
	formula, _ := out.GetCellFormula(sheet1, "A4")
	s.Assert().Equal(`"{{city}}"&"x"`, formula)
}

func (s *EngineSuite) TestExtractAndUpdateFiles() {
	f := excelize.NewFile()
	fill(f, map[string]interface{}{
		"A1": "Item", "B1": "Qty",
		"A2": "Apple", "B2": 3,
		"A4": "Total",
	})
	src := s.save(f, "book.xlsx")
	cfg := Config{Blocks: []BlockConfig{{
		Name:   "items",
		Kind:   KindTable,
		Anchor: ExactMatch("Item", "", ""),
		Fields: []FieldConfig{{Name: "qty", Type: TypeNumber}},
	}}}

	core, logs := observer.New(zap.DebugLevel)
	dst := s.path("updated.xlsx")
	rep, err := UpdateFile(cfg, src, dst, map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"item": "Kiwi", "qty": 1.0},
			map[string]interface{}{"item": "Lime", "qty": 2.0},
			map[string]interface{}{"item": "Fig", "qty": 4.0},
		},
	}, WithLogger(zap.New(core)))
	s.Require().NoError(err)
	s.Assert().Equal(StatusCompleted, rep.Status())
	s.Assert().Equal(1, logs.FilterMessage("таблица расширена").Len())

	got, rep, err := ExtractFile(cfg, dst)
	s.Require().NoError(err)
	s.Assert().Equal(StatusCompleted, rep.Status())
	s.Assert().Len(got["items"], 3)

	out, err := excelize.OpenFile(dst)
	s.Require().NoError(err)
	defer out.Close()
	v, _ := out.GetCellValue(sheet1, "A6")
	s.Assert().Equal("Total", v)
}

func (s *EngineSuite) TestBadConfigCreatesNoOutput() {
	f := excelize.NewFile()
	src := s.save(f, "book.xlsx")
	dst := s.path("never.xlsx")
	cfg := Config{Blocks: []BlockConfig{{Name: "x", Kind: "grid", Anchor: CellAddress("A1")}}}

	rep, err := UpdateFile(cfg, src, dst, map[string]interface{}{})
	s.Require().ErrorIs(err, ErrConfiguration)
	s.Assert().Equal(StatusFailed, rep.Status())
	_, statErr := os.Stat(dst)
	s.Assert().True(os.IsNotExist(statErr))

	_, rep, err = ExtractFile(cfg, src)
	s.Assert().Error(err)
	s.Assert().Equal(StatusFailed, rep.Status())
}

func (s *EngineSuite) TestWarningsAreLogged() {
	core, logs := observer.New(zap.WarnLevel)
	e, err := New(Config{}, WithLogger(zap.New(core)))
	s.Require().NoError(err)
	p := NewParagraph("{{9}}")
	rep := e.Merge(&Presentation{Slides: []*Slide{{Shapes: []*Shape{{Paragraphs: []*TextParagraph{p}}}}}}, nil)
	s.Assert().Equal(1, rep.Count(KindMalformedField))
	s.Require().Equal(1, logs.Len())
	s.Assert().Equal(string(KindMalformedField), logs.All()[0].ContextMap()["kind"])
}

func (s *EngineSuite) TestReportStatus() {
	var nilRep *Report
	s.Assert().Equal(StatusCompleted, nilRep.Status())
	rep := &Report{}
	s.Assert().Equal(StatusCompleted, rep.Status())
	rep.warn(&Error{Kind: KindNotFound, Message: "x"})
	s.Assert().Equal(StatusCompletedWithWarnings, rep.Status())
	rep.fail(os.ErrNotExist)
	s.Assert().Equal(StatusFailed, rep.Status())
	s.Assert().Equal(KindProcessing, rep.Warnings[1].Kind)
	s.Assert().ErrorIs(rep.Warnings[1], os.ErrNotExist)
}
