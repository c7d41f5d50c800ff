package doctemplar

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Файловые обёртки: открыть → обработать → сохранить. Конфигурация проверяется
// до открытия книги, поэтому при ошибке конфигурации файл не создаётся.

// ExtractFile извлекает блоки из xlsx файла.
func ExtractFile(cfg Config, srcPath string, opts ...Option) (map[string]interface{}, *Report, error) {
	e, err := New(cfg, opts...)
	if err != nil {
		rep := &Report{}
		rep.fail(err)
		return nil, rep, err
	}
	f, err := excelize.OpenFile(srcPath)
	if err != nil {
		return nil, nil, fmt.Errorf("открытие книги %s: %w", srcPath, err)
	}
	defer f.Close()
	out, rep := e.Extract(NewWorkbook(f))
	return out, rep, nil
}

// UpdateFile записывает данные блоков в книгу srcPath и сохраняет результат в destPath.
func UpdateFile(cfg Config, srcPath, destPath string, data map[string]interface{}, opts ...Option) (*Report, error) {
	e, err := New(cfg, opts...)
	if err != nil {
		rep := &Report{}
		rep.fail(err)
		return rep, err
	}
	start := time.Now()
	e.logger.Info("запись данных в книгу",
		zap.String("template", srcPath),
		zap.String("output", destPath),
		zap.Int("blocks", len(data)))

	f, err := excelize.OpenFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("открытие книги %s: %w", srcPath, err)
	}
	defer f.Close()

	rep := e.Update(NewWorkbook(f), data)
	if err := f.SaveAs(destPath); err != nil {
		return rep, fmt.Errorf("сохранение %s: %w", destPath, err)
	}
	e.logger.Info("книга сохранена",
		zap.String("output", destPath),
		zap.String("status", string(rep.Status())),
		zap.Duration("duration", time.Since(start)))
	return rep, nil
}

// MergeFile подставляет поля {{path}} во все ячейки книги и сохраняет результат.
func MergeFile(srcPath, destPath string, data interface{}, opts ...Option) (*Report, error) {
	e, err := New(Config{}, opts...)
	if err != nil {
		return nil, err
	}
	f, err := excelize.OpenFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("открытие книги %s: %w", srcPath, err)
	}
	defer f.Close()

	rep := e.MergeWorkbook(f, data)
	if err := f.SaveAs(destPath); err != nil {
		return rep, fmt.Errorf("сохранение %s: %w", destPath, err)
	}
	return rep, nil
}

// MergePresentationFile подставляет поля в презентацию в JSON-представлении модели.
func MergePresentationFile(srcPath, destPath string, data interface{}, opts ...Option) (*Report, error) {
	e, err := New(Config{}, opts...)
	if err != nil {
		return nil, err
	}
	p, err := LoadPresentation(srcPath)
	if err != nil {
		return nil, err
	}
	rep := e.Merge(p, data)
	if err := p.Save(destPath); err != nil {
		return rep, fmt.Errorf("сохранение %s: %w", destPath, err)
	}
	return rep, nil
}
