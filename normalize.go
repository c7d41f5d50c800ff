package doctemplar

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// fold приводит строку к регистронезависимой форме (Unicode case folding).
// cases.Caser хранит состояние, поэтому создаётся на каждый вызов.
func fold(s string) string {
	return cases.Fold().String(norm.NFKC.String(s))
}

var rxSpaces = regexp.MustCompile(`\s+`)

// labelKey строит ключ сравнения подписей: свёрнутый регистр и схлопнутые пробелы.
func labelKey(s string) string {
	return rxSpaces.ReplaceAllString(fold(strings.TrimSpace(s)), " ")
}

// normalizeLabel: запасное имя поля для подписи без явного сопоставления:
// NFKC, нижний регистр, пробелы → "_", прочие несловесные символы удаляются.
func normalizeLabel(label string) string {
	s := strings.ToLower(norm.NFKC.String(strings.TrimSpace(label)))
	s = rxSpaces.ReplaceAllString(s, "_")
	var b strings.Builder
	for _, r := range s {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "_")
}

// sanitizeJSONBlock извлекает JSON, обёрнутый в тройные кавычки ``` ... ```.
// Если таких кавычек нет, либо структура неверная, возвращает исходную строку.
var fenceRx = regexp.MustCompile("(?s)```[a-zA-Z]*\\n(.*?)```")

func sanitizeJSONBlock(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	m := fenceRx.FindStringSubmatch(s)
	if len(m) >= 2 {
		return strings.TrimSpace(m[1])
	}
	return s
}

// LoadRecord читает запись из JSON/YAML файла.
func LoadRecord(path string) (map[string]interface{}, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("чтение данных %s: %w", path, err)
	}
	format := "json"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		format = "yaml"
	}
	return ParseRecord(raw, format)
}

// ParseRecord разбирает запись и приводит её к виду map/[]interface{}/float64,
// в котором с ней работают резолвер путей и запись в лист.
func ParseRecord(raw []byte, format string) (map[string]interface{}, error) {
	var v interface{}
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("разбор YAML данных: %w", err)
		}
	default:
		s := sanitizeJSONBlock(string(raw))
		if strings.TrimSpace(s) == "" {
			return map[string]interface{}{}, nil
		}
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			return nil, fmt.Errorf("разбор JSON данных: %w", err)
		}
	}
	v = deepNormalize(v)
	if v == nil {
		return map[string]interface{}{}, nil
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("данные должны быть объектом, получено %T", v)
	}
	return m, nil
}

func deepNormalize(v interface{}) interface{} {
	switch vv := v.(type) {
	case []interface{}:
		// сохраняем исходный порядок, просто рекурсивно нормализуем элементы
		for i := range vv {
			vv[i] = deepNormalize(vv[i])
		}
		return vv
	case map[string]interface{}:
		for k, val := range vv {
			vv[k] = deepNormalize(val)
		}
		return vv
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(vv))
		for k, val := range vv {
			out[fmt.Sprintf("%v", k)] = deepNormalize(val)
		}
		return out
	case int:
		return float64(vv)
	case int64:
		return float64(vv)
	case uint64:
		return float64(vv)
	default:
		return vv
	}
}
