package doctemplar

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Resolve проходит путь "a.b.0.c" (или "a.b[0].c") по вложенным map/slice.
// Любой промах по пути даёт (nil, false), паники и ошибки не возникают.
func Resolve(v interface{}, path string) (interface{}, bool) {
	path = strings.TrimSpace(path)
	if path == "" {
		return v, v != nil
	}
	cur := v
	rest := path
	for rest != "" {
		seg, tail := nextSeg(rest)
		if strings.HasPrefix(seg, "[") {
			seg = strings.Trim(seg, "[]")
		}
		next, ok := step(cur, seg)
		if !ok {
			return nil, false
		}
		cur = next
		rest = tail
	}
	return cur, true
}

// ResolveString возвращает значение пути в виде текста; отсутствующее поле: пустая строка.
func ResolveString(v interface{}, path string) string {
	val, ok := Resolve(v, path)
	if !ok {
		return ""
	}
	return toString(val)
}

func step(cur interface{}, seg string) (interface{}, bool) {
	switch c := cur.(type) {
	case map[string]interface{}:
		nv, ok := c[seg]
		return nv, ok
	case []interface{}:
		i, ok := index(seg, len(c))
		if !ok {
			return nil, false
		}
		return c[i], true
	case nil:
		return nil, false
	}
	// запасной путь для типизированных карт и срезов (map[string]string, []map[...] и т.п.)
	rv := reflect.ValueOf(cur)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		mv := rv.MapIndex(reflect.ValueOf(seg).Convert(rv.Type().Key()))
		if !mv.IsValid() {
			return nil, false
		}
		return mv.Interface(), true
	case reflect.Slice, reflect.Array:
		i, ok := index(seg, rv.Len())
		if !ok {
			return nil, false
		}
		return rv.Index(i).Interface(), true
	case reflect.Ptr:
		if rv.IsNil() {
			return nil, false
		}
		return step(rv.Elem().Interface(), seg)
	}
	return nil, false
}

func index(seg string, n int) (int, bool) {
	i, err := strconv.Atoi(seg)
	if err != nil || i < 0 || i >= n {
		return 0, false
	}
	return i, true
}

func nextSeg(path string) (seg string, tail string) {
	if path == "" {
		return "", ""
	}
	if path[0] == '[' {
		if i := strings.Index(path, "]"); i >= 0 {
			seg = path[:i+1]
			if i+1 < len(path) && path[i+1] == '.' {
				tail = path[i+2:]
			} else {
				tail = path[i+1:]
			}
			return
		}
	}
	i := 0
	for i < len(path) && path[i] != '.' && path[i] != '[' {
		i++
	}
	seg = path[:i]
	if i < len(path) && path[i] == '.' {
		tail = path[i+1:]
	} else {
		tail = path[i:]
	}
	return
}

// toString: текстовое представление значения для подстановки в текст и в ячейку.
func toString(v interface{}) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case float64:
		if vv == float64(int64(vv)) {
			return fmt.Sprintf("%d", int64(vv))
		}
		return strconv.FormatFloat(vv, 'f', -1, 64)
	case float32:
		return toString(float64(vv))
	case bool:
		if vv {
			return "true"
		}
		return "false"
	case time.Time:
		if vv.Hour() == 0 && vv.Minute() == 0 && vv.Second() == 0 {
			return vv.Format(dateLayout)
		}
		return vv.Format(time.RFC3339)
	case []interface{}:
		// массив строк склеиваем через запятую, остальное: JSON
		strs := make([]string, len(vv))
		for i, it := range vv {
			s, ok := it.(string)
			if !ok {
				b, _ := json.Marshal(vv)
				return string(b)
			}
			strs[i] = s
		}
		return strings.Join(strs, ", ")
	case map[string]interface{}:
		b, _ := json.Marshal(vv)
		return string(b)
	default:
		return fmt.Sprintf("%v", vv)
	}
}
