// Package engine выполняет SQL-файл во встроенной SQLite и читает получившиеся таблицы.
// Это независимая проверка: извлечение строк из INSERT сюда не заглядывает.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"bigscope/internal/models"
)

type Engine struct {
	db *sql.DB
}

// Open открывает базу SQLite. Путь ":memory:" — база в памяти.
func Open(path string) (*Engine, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// У каждого соединения своя база в памяти
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return &Engine{db: db}, nil
}

// ExecScript выполняет весь скрипт, включая несколько операторов через ';'
func (e *Engine) ExecScript(ctx context.Context, script string) error {
	if strings.TrimSpace(script) == "" {
		return nil
	}
	if _, err := e.db.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("exec script: %w", err)
	}
	return nil
}

// TableNames возвращает пользовательские таблицы в порядке создания
func (e *Engine) TableNames(ctx context.Context) ([]string, error) {
	rows, err := e.db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ReadTable читает все строки таблицы. Значения приводятся к тому же
// текстовому виду, что и ячейки извлечённых таблиц (NULL, true/false).
func (e *Engine) ReadTable(ctx context.Context, name string) (models.Table, error) {
	rows, err := e.db.QueryContext(ctx, "SELECT * FROM "+quoteIdent(name))
	if err != nil {
		return models.Table{}, fmt.Errorf("read table %s: %w", name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return models.Table{}, fmt.Errorf("read table %s: %w", name, err)
	}
	tbl := models.Table{Name: name, Columns: cols, Rows: [][]string{}}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return models.Table{}, fmt.Errorf("read table %s: %w", name, err)
		}
		row := make([]string, len(cols))
		nulls := make([]bool, len(cols))
		for i, v := range values {
			row[i] = render(v)
			nulls[i] = v == nil
		}
		tbl.AddRow(row, nulls)
	}
	if err := rows.Err(); err != nil {
		return models.Table{}, fmt.Errorf("read table %s: %w", name, err)
	}
	return tbl, nil
}

// ReadAll читает все таблицы базы
func (e *Engine) ReadAll(ctx context.Context) ([]models.Table, error) {
	names, err := e.TableNames(ctx)
	if err != nil {
		return nil, err
	}
	tables := make([]models.Table, 0, len(names))
	for _, name := range names {
		t, err := e.ReadTable(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func (e *Engine) Close() error {
	return e.db.Close()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func render(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}
