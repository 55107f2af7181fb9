// Package export выводит извлечённые таблицы в разных форматах.
//
// Поддерживаемые форматы:
//   - grid: текстовая таблица для терминала
//   - csv: CSV с экранированием по RFC 4180
//   - csv-legacy: значения через запятую без экранирования (как в исходной программе)
//   - jsonl: один JSON-объект на строку
//   - yaml: YAML-документ с колонками и строками
//   - parquet: Parquet-файл, все колонки — nullable строки
package export

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"bigscope/internal/models"
)

// ErrUnknownFormat — запрошен неизвестный формат вывода.
var ErrUnknownFormat = errors.New("unknown export format")

// Formatter выводит таблицу в конкретном формате.
type Formatter interface {
	// Format записывает таблицу целиком
	Format(t models.Table) error

	// SetOutput меняет приёмник вывода
	SetOutput(w io.Writer)

	// Extension — расширение файла для формата, с точкой
	Extension() string
}

var constructors = map[string]func(io.Writer) Formatter{
	"grid":       func(w io.Writer) Formatter { return NewGridFormatter(w) },
	"csv":        func(w io.Writer) Formatter { return NewCSVFormatter(w) },
	"csv-legacy": func(w io.Writer) Formatter { return NewLegacyCSVFormatter(w) },
	"jsonl":      func(w io.Writer) Formatter { return NewJSONFormatter(w) },
	"yaml":       func(w io.Writer) Formatter { return NewYAMLFormatter(w) },
	"parquet":    func(w io.Writer) Formatter { return NewParquetFormatter(w) },
}

// New возвращает форматтер по имени формата.
func New(format string, w io.Writer) (Formatter, error) {
	ctor, ok := constructors[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownFormat, format, Formats())
	}
	return ctor(w), nil
}

// Formats возвращает имена всех форматов по алфавиту.
func Formats() []string {
	names := make([]string, 0, len(constructors))
	for name := range constructors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// pad дополняет строку пустыми ячейками до ширины width.
func pad(row []string, width int) []string {
	if len(row) >= width {
		return row
	}
	out := make([]string, width)
	copy(out, row)
	return out
}

// uniqueHeader делает имена колонок уникальными там, где имя колонки — ключ (JSON, Parquet).
func uniqueHeader(header []string) []string {
	return models.UniqueNames(header)
}
