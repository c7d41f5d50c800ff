package doctemplar

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"
	"github.com/xuri/excelize/v2"
)

const sheet1 = "Sheet1"

// fill заполняет лист значениями по адресам.
func fill(f *excelize.File, cells map[string]interface{}) {
	for addr, v := range cells {
		_ = f.SetCellValue(sheet1, addr, v)
	}
}

// ExtractSuite — чтение блоков key_value, table, matrix
type ExtractSuite struct {
	suite.Suite
	f *excelize.File
}

func TestExtractSuite(t *testing.T) {
	suite.Run(t, new(ExtractSuite))
}

func (s *ExtractSuite) SetupTest()    { s.f = excelize.NewFile() }
func (s *ExtractSuite) TearDownTest() { _ = s.f.Close() }

func (s *ExtractSuite) extract(blocks ...BlockConfig) (map[string]interface{}, *Report) {
	out, rep, err := Extract(NewWorkbook(s.f), Config{Blocks: blocks})
	s.Require().NoError(err)
	return out, rep
}

func (s *ExtractSuite) TestKeyValueVertical() {
	fill(s.f, map[string]interface{}{
		"A1": "Name", "B1": "Ada",
		"A2": "Age", "B2": 30,
		"A3": "Client Since", "B3": "2020",
		"A5": "Ignored", "B5": "after blank",
	})
	out, rep := s.extract(BlockConfig{
		Name:        "client",
		Kind:        KindKeyValue,
		Anchor:      ContainsText("Name", "A", "A1:A5"),
		Orientation: Vertical,
		Fields: []FieldConfig{
			{Name: "name", Label: "Name"},
			{Name: "age", Label: "Age", Type: TypeNumber},
		},
	})
	s.Assert().Equal(StatusCompleted, rep.Status())
	s.Assert().Equal(map[string]interface{}{
		"name":         "Ada",
		"age":          30.0,
		"client_since": "2020",
	}, out["client"])
}

func (s *ExtractSuite) TestKeyValueHorizontal() {
	fill(s.f, map[string]interface{}{
		"B2": "Город", "C2": "Код",
		"B3": "Казань", "C3": "KZN",
	})
	out, _ := s.extract(BlockConfig{
		Name:   "place",
		Kind:   KindKeyValue,
		Anchor: ExactMatch("город", "", ""),
		Fields: []FieldConfig{{Name: "city", Label: "Город"}},
	})
	s.Assert().Equal(map[string]interface{}{"city": "Казань", "код": "KZN"}, out["place"])
}

func (s *ExtractSuite) tableSheet() {
	fill(s.f, map[string]interface{}{
		"A1": "Item", "B1": "Qty", "C1": "Due",
		"A2": "Apple", "B2": 3, "C2": "2024-03-01",
		"A3": "Pear", "B3": 5, "C3": "2024-04-15",
		"A5": "Total",
	})
}

func (s *ExtractSuite) TestTable() {
	s.tableSheet()
	out, rep := s.extract(BlockConfig{
		Name:   "items",
		Kind:   KindTable,
		Anchor: ExactMatch("Item", "A", "A1:A3"),
		Fields: []FieldConfig{
			{Name: "qty", Type: TypeNumber},
			{Name: "due", Type: TypeDate},
		},
	})
	s.Assert().Equal(StatusCompleted, rep.Status())
	s.Assert().Equal([]interface{}{
		map[string]interface{}{"item": "Apple", "qty": 3.0, "due": "2024-03-01"},
		map[string]interface{}{"item": "Pear", "qty": 5.0, "due": "2024-04-15"},
	}, out["items"])
}

func (s *ExtractSuite) TestNonDecimalNumbersStayText() {
	fill(s.f, map[string]interface{}{
		"A1": "Item", "B1": "Qty",
		"A2": "Apple", "B2": "NaN",
		"A3": "Pear", "B3": "1,234",
		"A4": "Plum", "B4": "Inf",
		"A5": "Fig", "B5": "2,5",
	})
	out, rep := s.extract(BlockConfig{
		Name:   "items",
		Kind:   KindTable,
		Anchor: ExactMatch("Item", "A", ""),
		Fields: []FieldConfig{{Name: "qty", Type: TypeNumber}},
	})
	s.Assert().Equal(StatusCompleted, rep.Status())
	s.Assert().Equal([]interface{}{
		map[string]interface{}{"item": "Apple", "qty": "NaN"},
		map[string]interface{}{"item": "Pear", "qty": "1,234"},
		map[string]interface{}{"item": "Plum", "qty": "Inf"},
		map[string]interface{}{"item": "Fig", "qty": 2.5},
	}, out["items"])

	_, err := json.Marshal(out)
	s.Assert().NoError(err)
}

func (s *ExtractSuite) TestTableFilterAndDerived() {
	s.tableSheet()
	out, rep := s.extract(BlockConfig{
		Name:   "items",
		Kind:   KindTable,
		Anchor: ExactMatch("Item", "", ""),
		Filter: "qty > 3",
		Fields: []FieldConfig{
			{Name: "qty", Type: TypeNumber},
			{Name: "double", Expr: "qty * 2"},
		},
	})
	s.Assert().Equal(StatusCompleted, rep.Status())
	rows := out["items"].([]interface{})
	s.Require().Len(rows, 1)
	rec := rows[0].(map[string]interface{})
	s.Assert().Equal("Pear", rec["item"])
	s.Assert().EqualValues(10, rec["double"])
}

func (s *ExtractSuite) TestTableVertical() {
	fill(s.f, map[string]interface{}{
		"A1": "Item", "B1": "Apple", "C1": "Pear",
		"A2": "Qty", "B2": 3, "C2": 5,
	})
	out, _ := s.extract(BlockConfig{
		Name:        "items",
		Kind:        KindTable,
		Anchor:      ExactMatch("Item", "", ""),
		Orientation: Vertical,
		Fields:      []FieldConfig{{Name: "qty", Type: TypeNumber}},
	})
	s.Assert().Equal([]interface{}{
		map[string]interface{}{"item": "Apple", "qty": 3.0},
		map[string]interface{}{"item": "Pear", "qty": 5.0},
	}, out["items"])
}

func (s *ExtractSuite) TestTableHeaderOffset() {
	fill(s.f, map[string]interface{}{
		"A1": "Список товаров",
		"A3": "Item", "B3": "Qty",
		"A4": "Plum", "B4": "7",
	})
	out, _ := s.extract(BlockConfig{
		Name:         "items",
		Kind:         KindTable,
		Anchor:       ContainsText("список", "A", ""),
		HeaderOffset: Offset{Row: 2},
	})
	s.Assert().Equal([]interface{}{
		map[string]interface{}{"item": "Plum", "qty": "7"},
	}, out["items"])
}

func (s *ExtractSuite) TestMatrix() {
	fill(s.f, map[string]interface{}{
		"A1": "Region", "B1": "Q1", "C1": "Q2",
		"A2": "North", "B2": 1, "C2": 2,
		"A3": "South", "B3": 3, "C3": 4,
	})
	out, _ := s.extract(BlockConfig{
		Name:      "sales",
		Kind:      KindMatrix,
		Anchor:    ExactMatch("Region", "", ""),
		Fields:    []FieldConfig{{Name: "q1", Type: TypeNumber}},
		RowFields: []FieldConfig{{Name: "n", Label: "North"}},
	})
	s.Assert().Equal(map[string]interface{}{
		"n":     map[string]interface{}{"q1": 1.0, "q2": "2"},
		"south": map[string]interface{}{"q1": 3.0, "q2": "4"},
	}, out["sales"])
}

func (s *ExtractSuite) TestMissingAnchorSkipsOnlyThatBlock() {
	s.tableSheet()
	out, rep := s.extract(
		BlockConfig{Name: "ghost", Kind: KindKeyValue, Anchor: ExactMatch("Nowhere", "", "")},
		BlockConfig{Name: "items", Kind: KindTable, Anchor: ExactMatch("Item", "", "")},
	)
	s.Assert().Equal(StatusCompletedWithWarnings, rep.Status())
	s.Assert().Equal(1, rep.Count(KindNotFound))
	s.Assert().NotContains(out, "ghost")
	s.Assert().Len(out["items"], 2)
}

func (s *ExtractSuite) TestMissingSheetIsProcessingWarning() {
	out, rep := s.extract(BlockConfig{Name: "x", Sheet: "Нет такого", Kind: KindKeyValue, Anchor: CellAddress("A1")})
	s.Assert().Empty(out)
	s.Assert().Equal(1, rep.Count(KindProcessing))
}

func (s *ExtractSuite) TestEmptyHeaderYieldsEmptyTable() {
	out, rep := s.extract(BlockConfig{Name: "t", Kind: KindTable, Anchor: CellAddress("D4")})
	s.Assert().Equal([]interface{}{}, out["t"])
	s.Assert().Equal(StatusCompletedWithWarnings, rep.Status())
}
