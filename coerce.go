package doctemplar

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const dateLayout = "2006-01-02"

var dateLayouts = []string{
	dateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"02.01.2006",
	"01/02/2006",
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, l := range dateLayouts {
		if t, err := time.Parse(l, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

var (
	// Только десятичная запись: без NaN/Inf и шестнадцатеричных литералов.
	rxDecimal = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)
	// "1,234" и "12,345,678" читаются как разделители разрядов, а не десятичная запятая.
	rxGrouped = regexp.MustCompile(`^[+-]?\d{1,3}(,\d{3})+$`)
)

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if !rxDecimal.MatchString(s) {
		// десятичная запятая: ровно одна запятая и ни одной точки
		if strings.Count(s, ",") != 1 || strings.Contains(s, ".") || rxGrouped.MatchString(s) {
			return 0, false
		}
		s = strings.Replace(s, ",", ".", 1)
		if !rxDecimal.MatchString(s) {
			return 0, false
		}
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

// readValue читает ячейку с учётом тега типа поля.
func readValue(s Sheet, c Cell, fc FieldConfig) (interface{}, error) {
	switch fc.Type {
	case TypeNumber:
		raw, err := s.RawValue(c)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(raw) == "" {
			return nil, nil
		}
		if n, ok := parseNumber(raw); ok {
			return n, nil
		}
		return s.Value(c)
	case TypeDate:
		raw, err := s.RawValue(c)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(raw) == "" {
			return nil, nil
		}
		if serial, ok := parseNumber(raw); ok {
			if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return t.Format(dateLayout), nil
			}
		}
		if t, ok := parseDate(raw); ok {
			return t.Format(dateLayout), nil
		}
		return raw, nil
	case TypeBool:
		v, err := s.Value(c)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b, nil
		}
		return v, nil
	case TypeLink:
		target, ok, err := s.Link(c)
		if err != nil {
			return nil, err
		}
		if ok && target != "" {
			return target, nil
		}
		return s.Value(c)
	case TypeImage:
		data, ext, err := s.Picture(c)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return "", nil
		}
		return "data:" + mimeForExt(ext) + ";base64," + base64.StdEncoding.EncodeToString(data), nil
	default:
		return s.Value(c)
	}
}

// writeValue пишет значение в ячейку с приведением типа. Возвращённое предупреждение
// означает, что значение записано текстом или не записано, но запуск продолжается.
func writeValue(s Sheet, c Cell, fc FieldConfig, v interface{}, images ImageLoader) (*Error, error) {
	if v == nil {
		return nil, s.SetValue(c, "")
	}
	coercion := func(format string, args ...interface{}) *Error {
		return &Error{Kind: KindValueCoercion, Cell: c.Name(), Message: fmt.Sprintf(format, args...)}
	}
	switch fc.Type {
	case TypeNumber:
		switch n := v.(type) {
		case float64:
			if !math.IsNaN(n) && !math.IsInf(n, 0) {
				return nil, s.SetValue(c, n)
			}
		case float32, int, int64, int32:
			return nil, s.SetValue(c, n)
		}
		str := toString(v)
		if n, ok := parseNumber(str); ok {
			return nil, s.SetValue(c, n)
		}
		return coercion("поле %s: %q не число, записано текстом", fc.Name, str), s.SetValue(c, str)
	case TypeDate:
		switch t := v.(type) {
		case time.Time:
			return nil, s.SetValue(c, t)
		case float64:
			return nil, s.SetValue(c, t)
		}
		str := toString(v)
		if str == "" {
			return nil, s.SetValue(c, "")
		}
		if t, ok := parseDate(str); ok {
			return nil, s.SetValue(c, t)
		}
		return coercion("поле %s: %q не дата, записано текстом", fc.Name, str), s.SetValue(c, str)
	case TypeBool:
		if b, ok := v.(bool); ok {
			return nil, s.SetValue(c, b)
		}
		str := toString(v)
		if b, err := strconv.ParseBool(strings.TrimSpace(str)); err == nil {
			return nil, s.SetValue(c, b)
		}
		return coercion("поле %s: %q не логическое значение, записано текстом", fc.Name, str), s.SetValue(c, str)
	case TypeLink:
		url, text := linkParts(v)
		if err := s.SetValue(c, text); err != nil {
			return nil, err
		}
		if url == "" {
			return nil, nil
		}
		return nil, s.SetLink(c, url)
	case TypeImage:
		src := strings.TrimSpace(toString(v))
		if src == "" {
			return nil, s.SetValue(c, "")
		}
		if images == nil {
			images = DefaultImageLoader()
		}
		data, ext, err := images.Load(src)
		if err != nil {
			w := coercion("поле %s: изображение не загружено", fc.Name)
			w.Err = err
			return w, nil
		}
		if err := s.AddPicture(c, data, ext); err != nil {
			return nil, err
		}
		return nil, s.SetValue(c, "")
	default:
		return nil, s.SetValue(c, toString(v))
	}
}

// linkParts принимает строку-URL или объект {url, text}.
func linkParts(v interface{}) (url, text string) {
	if m, ok := v.(map[string]interface{}); ok {
		url = toString(m["url"])
		text = toString(m["text"])
		if text == "" {
			text = url
		}
		return url, text
	}
	url = toString(v)
	return url, url
}

// ImageLoader превращает источник изображения (data URI, base64, путь, URL) в байты и расширение.
type ImageLoader interface {
	Load(src string) (data []byte, ext string, err error)
}

const maxImageSize = 20 << 20

type httpImageLoader struct {
	client *http.Client
}

// DefaultImageLoader: загрузчик по умолчанию; URL загружаются с таймаутом.
func DefaultImageLoader() ImageLoader {
	return &httpImageLoader{client: &http.Client{Timeout: 15 * time.Second}}
}

func (l *httpImageLoader) Load(src string) ([]byte, string, error) {
	var (
		data []byte
		hint string
		err  error
	)
	switch {
	case strings.HasPrefix(src, "data:"):
		data, err = decodeDataURI(src)
	case strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://"):
		data, err = l.fetch(src)
		hint = filepath.Ext(strings.SplitN(src, "?", 2)[0])
	default:
		if _, statErr := os.Stat(src); statErr == nil {
			data, err = os.ReadFile(src)
			hint = filepath.Ext(src)
		} else {
			data, err = base64.StdEncoding.DecodeString(src)
			if err != nil {
				err = fmt.Errorf("источник изображения не распознан: %w", statErr)
			}
		}
	}
	if err != nil {
		return nil, "", err
	}
	ext := extForData(data, hint)
	if ext == "" {
		return nil, "", errors.New("неподдерживаемый формат изображения")
	}
	return data, ext, nil
}

func (l *httpImageLoader) fetch(url string) ([]byte, error) {
	resp, err := l.client.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("загрузка %s: статус %d", url, resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxImageSize))
}

func decodeDataURI(src string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, errors.New("некорректный data URI")
	}
	if strings.HasSuffix(meta, ";base64") {
		return base64.StdEncoding.DecodeString(payload)
	}
	return []byte(payload), nil
}

var imageExts = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/gif":     ".gif",
	"image/bmp":     ".bmp",
	"image/tiff":    ".tiff",
	"image/svg+xml": ".svg",
}

func extForData(data []byte, hint string) string {
	ct := http.DetectContentType(data)
	if ext, ok := imageExts[ct]; ok {
		return ext
	}
	switch strings.ToLower(hint) {
	case ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".tif", ".tiff", ".svg", ".emf", ".wmf":
		return strings.ToLower(hint)
	}
	return ""
}

func mimeForExt(ext string) string {
	ext = strings.ToLower(ext)
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	for mime, e := range imageExts {
		if e == ext {
			return mime
		}
	}
	return "application/octet-stream"
}
