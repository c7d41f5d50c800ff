package doctemplar

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	expro "github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"gopkg.in/yaml.v3"
)

// BlockKind: вид блока. Закрытое множество, диспетчеризация через switch.
type BlockKind string

const (
	KindKeyValue BlockKind = "key_value"
	KindTable    BlockKind = "table"
	KindMatrix   BlockKind = "matrix"
)

type Orientation string

const (
	Horizontal Orientation = "horizontal"
	Vertical   Orientation = "vertical"
)

// FieldType: тег типа значения ячейки.
type FieldType string

const (
	TypeText   FieldType = "text"
	TypeNumber FieldType = "number"
	TypeImage  FieldType = "image"
	TypeDate   FieldType = "date"
	TypeBool   FieldType = "bool"
	TypeLink   FieldType = "link"
)

const (
	defaultMaxRows    = 1000
	defaultMaxColumns = 50
)

// Offset: смещение в строках/колонках.
type Offset struct {
	Row int `yaml:"row" json:"row"`
	Col int `yaml:"col" json:"col"`
}

// FieldConfig связывает имя поля записи с подписью в листе.
type FieldConfig struct {
	Name  string    `yaml:"name" json:"name"`
	Label string    `yaml:"label,omitempty" json:"label,omitempty"`
	Type  FieldType `yaml:"type,omitempty" json:"type,omitempty"`
	// Expr: вычисляемое поле (только чтение), выражение expr-lang над уже прочитанной строкой.
	Expr string `yaml:"expr,omitempty" json:"expr,omitempty"`
}

// BlockConfig: симметричное объявление блока для извлечения и обновления.
type BlockConfig struct {
	Name         string        `yaml:"name" json:"name"`
	Sheet        string        `yaml:"sheet,omitempty" json:"sheet,omitempty"`
	Kind         BlockKind     `yaml:"kind" json:"kind"`
	Anchor       AnchorRule    `yaml:"anchor" json:"anchor"`
	Orientation  Orientation   `yaml:"orientation,omitempty" json:"orientation,omitempty"`
	HeaderOffset Offset        `yaml:"header_offset,omitempty" json:"header_offset,omitempty"`
	DataOffset   Offset        `yaml:"data_offset,omitempty" json:"data_offset,omitempty"`
	MaxRows      int           `yaml:"max_rows,omitempty" json:"max_rows,omitempty"`
	MaxColumns   int           `yaml:"max_columns,omitempty" json:"max_columns,omitempty"`
	Capacity     int           `yaml:"capacity,omitempty" json:"capacity,omitempty"`
	Fields       []FieldConfig `yaml:"fields,omitempty" json:"fields,omitempty"`
	RowFields    []FieldConfig `yaml:"row_fields,omitempty" json:"row_fields,omitempty"`
	Filter       string        `yaml:"filter,omitempty" json:"filter,omitempty"`
}

// Config: список блоков документа.
type Config struct {
	Blocks []BlockConfig `yaml:"blocks" json:"blocks"`
}

// LoadConfig читает конфигурацию из YAML или JSON файла (по расширению).
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("чтение конфигурации %s: %w", path, err)
	}
	format := "yaml"
	if strings.EqualFold(filepath.Ext(path), ".json") {
		format = "json"
	}
	return ParseConfig(raw, format)
}

// ParseConfig разбирает конфигурацию строго: неизвестные ключи отклоняются.
func ParseConfig(raw []byte, format string) (Config, error) {
	var cfg Config
	switch strings.ToLower(format) {
	case "json":
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return cfg, &Error{Kind: KindConfiguration, Message: "разбор JSON конфигурации", Err: err}
		}
	case "yaml", "yml", "":
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil {
			return cfg, &Error{Kind: KindConfiguration, Message: "разбор YAML конфигурации", Err: err}
		}
	default:
		return cfg, configErrorf("", "неизвестный формат конфигурации %q", format)
	}
	return cfg, nil
}

// Validate проверяет конфигурацию без побочных эффектов.
func (c Config) Validate() error {
	_, err := compileBlocks(c)
	return err
}

// block: провалидированный и скомпилированный BlockConfig.
type block struct {
	BlockConfig
	anchor  *anchorMatcher
	fields  *fieldIndex
	rows    *fieldIndex
	filter  *vm.Program
	derived []derivedField
}

type derivedField struct {
	name    string
	program *vm.Program
}

func compileBlocks(cfg Config) ([]*block, error) {
	seen := make(map[string]struct{}, len(cfg.Blocks))
	out := make([]*block, 0, len(cfg.Blocks))
	for i, bc := range cfg.Blocks {
		if strings.TrimSpace(bc.Name) == "" {
			return nil, configErrorf("", "блок #%d: пустое имя", i+1)
		}
		if _, dup := seen[bc.Name]; dup {
			return nil, configErrorf(bc.Name, "имя блока повторяется")
		}
		seen[bc.Name] = struct{}{}
		b, err := compileBlock(bc)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func compileBlock(bc BlockConfig) (*block, error) {
	switch bc.Kind {
	case KindKeyValue, KindTable, KindMatrix:
	default:
		return nil, configErrorf(bc.Name, "неизвестный вид блока %q", bc.Kind)
	}
	switch bc.Orientation {
	case "":
		bc.Orientation = Horizontal
	case Horizontal, Vertical:
	default:
		return nil, configErrorf(bc.Name, "неизвестная ориентация %q", bc.Orientation)
	}
	if bc.MaxRows < 0 || bc.MaxColumns < 0 || bc.Capacity < 0 {
		return nil, configErrorf(bc.Name, "отрицательные границы блока")
	}
	if bc.MaxRows == 0 {
		bc.MaxRows = defaultMaxRows
	}
	if bc.MaxColumns == 0 {
		bc.MaxColumns = defaultMaxColumns
	}
	if bc.DataOffset == (Offset{}) {
		if bc.Orientation == Vertical {
			bc.DataOffset = Offset{Col: 1}
		} else {
			bc.DataOffset = Offset{Row: 1}
		}
	}
	if bc.Kind != KindTable && (bc.Filter != "" || bc.Capacity != 0) {
		return nil, configErrorf(bc.Name, "filter и capacity допустимы только для table")
	}
	if bc.Kind != KindMatrix && len(bc.RowFields) > 0 {
		return nil, configErrorf(bc.Name, "row_fields допустимы только для matrix")
	}

	am, err := compileAnchor(bc.Anchor)
	if err != nil {
		return nil, &Error{Kind: KindConfiguration, Block: bc.Name, Message: "якорь", Err: err}
	}
	b := &block{BlockConfig: bc, anchor: am}
	if b.fields, err = newFieldIndex(bc.Fields); err != nil {
		return nil, &Error{Kind: KindConfiguration, Block: bc.Name, Message: "поля", Err: err}
	}
	if b.rows, err = newFieldIndex(bc.RowFields); err != nil {
		return nil, &Error{Kind: KindConfiguration, Block: bc.Name, Message: "row_fields", Err: err}
	}

	if bc.Filter != "" {
		p, err := expro.Compile(bc.Filter, expro.AsBool())
		if err != nil {
			return nil, &Error{Kind: KindConfiguration, Block: bc.Name, Message: "filter", Err: err}
		}
		b.filter = p
	}
	for _, fc := range bc.Fields {
		if fc.Expr == "" {
			continue
		}
		if bc.Kind == KindMatrix {
			return nil, configErrorf(bc.Name, "вычисляемое поле %s недопустимо для matrix", fc.Name)
		}
		p, err := expro.Compile(fc.Expr)
		if err != nil {
			return nil, &Error{Kind: KindConfiguration, Block: bc.Name, Message: "expr поля " + fc.Name, Err: err}
		}
		b.derived = append(b.derived, derivedField{name: fc.Name, program: p})
	}
	return b, nil
}

// fieldIndex: двусторонний справочник подпись↔поле.
type fieldIndex struct {
	byName  map[string]FieldConfig
	byLabel map[string]FieldConfig
}

func newFieldIndex(fields []FieldConfig) (*fieldIndex, error) {
	idx := &fieldIndex{byName: map[string]FieldConfig{}, byLabel: map[string]FieldConfig{}}
	for _, fc := range fields {
		if strings.TrimSpace(fc.Name) == "" {
			return nil, fmt.Errorf("поле без имени")
		}
		switch fc.Type {
		case "":
			fc.Type = TypeText
		case TypeText, TypeNumber, TypeImage, TypeDate, TypeBool, TypeLink:
		default:
			return nil, fmt.Errorf("поле %s: неизвестный тип %q", fc.Name, fc.Type)
		}
		if _, dup := idx.byName[fc.Name]; dup {
			return nil, fmt.Errorf("поле %s объявлено дважды", fc.Name)
		}
		idx.byName[fc.Name] = fc
		if fc.Label != "" {
			idx.byLabel[labelKey(fc.Label)] = fc
		}
	}
	return idx, nil
}

// resolve сопоставляет подпись из листа полю: явная подпись, затем имя, затем нормализация.
func (x *fieldIndex) resolve(label string) FieldConfig {
	key := labelKey(label)
	if fc, ok := x.byLabel[key]; ok {
		return fc
	}
	for name, fc := range x.byName {
		if fc.Expr == "" && labelKey(name) == key {
			return fc
		}
	}
	name := normalizeLabel(label)
	if fc, ok := x.byName[name]; ok && fc.Expr == "" {
		return fc
	}
	return FieldConfig{Name: name, Label: label, Type: TypeText}
}

// field возвращает описание поля по имени; неописанное поле: текстовое.
func (x *fieldIndex) field(name string) FieldConfig {
	if fc, ok := x.byName[name]; ok {
		return fc
	}
	return FieldConfig{Name: name, Type: TypeText}
}
