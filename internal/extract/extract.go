// Package extract извлекает табличные данные из SQL-выражений
// INSERT INTO t (c1, c2) VALUES (v1, v2), (...);
//
// Извлечение никогда не завершается ошибкой: некорректный текст даёт частичный
// или пустой результат, а найденные проблемы попадают в models.Result.Issues.
package extract

import (
	"errors"
	"fmt"

	"bigscope/internal/models"
)

var (
	// ErrParseFailure — структуру выражения распознать не удалось, выражение пропущено.
	ErrParseFailure = errors.New("parse failure")
	// ErrMalformedTuple — в кортеже несбалансированы скобки или кавычки, кортеж отброшен.
	ErrMalformedTuple = errors.New("malformed tuple")
	// ErrUnknownBackend — в настройках указан неизвестный разборщик.
	ErrUnknownBackend = errors.New("unknown extractor backend")
)

// Backend — способ разбора.
type Backend string

const (
	// BackendNative — собственный токенизатор и грамматика INSERT/VALUES (по умолчанию).
	BackendNative Backend = "native"
	// BackendSQLParser — полный MySQL-разборщик github.com/xwb1989/sqlparser.
	BackendSQLParser Backend = "sqlparser"
	// BackendLines — построчный разбор строк, начинающихся с INSERT INTO.
	// Не обрабатывает запятые в кавычках и вложенные скобки.
	BackendLines Backend = "lines"
)

// Options — настройки извлечения.
type Options struct {
	Backend          Backend
	BackslashEscapes bool // '\' экранирует символ внутри строк (дампы MySQL)
}

// Extractor извлекает таблицы из SQL. Не хранит состояния между вызовами.
type Extractor struct {
	opts Options
}

// New создаёт Extractor; пустой Backend означает BackendNative.
func New(opts Options) (*Extractor, error) {
	switch opts.Backend {
	case "":
		opts.Backend = BackendNative
	case BackendNative, BackendSQLParser, BackendLines:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, opts.Backend)
	}
	return &Extractor{opts: opts}, nil
}

// Backend возвращает используемый разборщик.
func (e *Extractor) Backend() Backend {
	return e.opts.Backend
}

// Extract разбирает текст и возвращает новый результат. Каждый вызов начинается с чистого листа.
func (e *Extractor) Extract(sql string) *models.Result {
	res := models.NewResult()
	switch e.opts.Backend {
	case BackendSQLParser:
		extractSQLParser(sql, e.opts.BackslashEscapes, res)
	case BackendLines:
		extractLines(sql, e.opts.BackslashEscapes, res)
	default:
		toks := tokenize(sql, e.opts.BackslashEscapes)
		p := &nativeParser{src: sql, res: res}
		p.run(splitTokens(sql, toks))
	}
	return res
}

var defaultExtractor = &Extractor{opts: Options{Backend: BackendNative}}

// Extract разбирает текст собственным разборщиком с настройками по умолчанию.
func Extract(sql string) *models.Result {
	return defaultExtractor.Extract(sql)
}

// ExtractTable возвращает единую таблицу: заголовок последнего INSERT и строки всех INSERT.
func ExtractTable(sql string) models.Table {
	return Extract(sql).Flat()
}
