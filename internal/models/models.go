package models

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
)

// Table — таблица, извлечённая из INSERT-выражений.
// Columns может содержать дубликаты и может быть пустым (INSERT без списка колонок).
// Строки не выравниваются по числу колонок: «рваные» строки хранятся как есть.
//
// Nulls отмечает ячейки, записанные ключевым словом NULL: Nulls[i][j] относится к Rows[i][j].
// Nulls короче Rows или Nulls[i] == nil означает, что в строке нет NULL.
// Текст такой ячейки — "NULL", строковый литерал 'NULL' отметки не получает.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]string
	Nulls   [][]bool
}

// IsNull сообщает, записана ли ячейка ключевым словом NULL.
func (t Table) IsNull(row, col int) bool {
	if row >= len(t.Nulls) {
		return false
	}
	mask := t.Nulls[row]
	return col < len(mask) && mask[col]
}

// AddRow добавляет строку вместе с отметками NULL (nulls может быть nil).
func (t *Table) AddRow(row []string, nulls []bool) {
	if !slices.Contains(nulls, true) {
		nulls = nil
	}
	if nulls != nil || t.Nulls != nil {
		for len(t.Nulls) < len(t.Rows) {
			t.Nulls = append(t.Nulls, nil)
		}
		t.Nulls = append(t.Nulls, nulls)
	}
	t.Rows = append(t.Rows, row)
}

// AppendTable дописывает строки другой таблицы, сохраняя отметки NULL.
func (t *Table) AppendTable(o Table) {
	for i, row := range o.Rows {
		var mask []bool
		if i < len(o.Nulls) {
			mask = o.Nulls[i]
		}
		t.AddRow(row, mask)
	}
}

// Width возвращает максимальную ширину таблицы: число колонок или длину самой длинной строки.
func (t Table) Width() int {
	w := len(t.Columns)
	for _, row := range t.Rows {
		if len(row) > w {
			w = len(row)
		}
	}
	return w
}

// Header возвращает заголовок шириной Width(); недостающие имена заполняются column_N.
func (t Table) Header() []string {
	w := t.Width()
	header := make([]string, w)
	for i := 0; i < w; i++ {
		if i < len(t.Columns) && t.Columns[i] != "" {
			header[i] = t.Columns[i]
		} else {
			header[i] = fmt.Sprintf("column_%d", i+1)
		}
	}
	return header
}

// UniqueNames делает имена уникальными: повтор "a" становится "a_2", "a_3" ...
// Суффикс подбирается так, чтобы не совпасть с уже занятым именем.
func UniqueNames(names []string) []string {
	used := make(map[string]bool, len(names))
	out := make([]string, len(names))
	for i, name := range names {
		candidate := name
		for n := 2; used[candidate]; n++ {
			candidate = name + "_" + strconv.Itoa(n)
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}

// Issue — проблема, найденная при разборе. Разбор при этом не прерывается.
type Issue struct {
	Statement int // порядковый номер выражения, с 1
	Line      int
	Err       error
}

func (i Issue) Error() string {
	return fmt.Sprintf("statement %d (line %d): %v", i.Statement, i.Line, i.Err)
}

func (i Issue) Unwrap() error { return i.Err }

// Result — результат одного вызова извлечения: таблицы по имени в порядке появления,
// плоское представление для совместимости и список проблем.
type Result struct {
	Tables []*Table
	Issues []Issue

	index map[string]int
	flat  Table
}

// NewResult создаёт пустой результат.
func NewResult() *Result {
	return &Result{index: make(map[string]int)}
}

// Table ищет таблицу по имени.
func (r *Result) Table(name string) (*Table, bool) {
	if i, ok := r.index[name]; ok {
		return r.Tables[i], true
	}
	return nil, false
}

// BeginInsert регистрирует очередной INSERT: заголовок таблицы (и плоский заголовок)
// заменяется списком колонок этого выражения.
func (r *Result) BeginInsert(name string, columns []string) *Table {
	if r.index == nil {
		r.index = make(map[string]int)
	}
	cols := append([]string{}, columns...)
	r.flat.Columns = cols
	if i, ok := r.index[name]; ok {
		t := r.Tables[i]
		t.Columns = cols
		return t
	}
	t := &Table{Name: name, Columns: cols}
	r.index[name] = len(r.Tables)
	r.Tables = append(r.Tables, t)
	return t
}

// AppendRow добавляет строку в таблицу и в плоское представление. Пустые кортежи пропускаются.
// nulls отмечает ячейки NULL и может быть nil.
func (r *Result) AppendRow(t *Table, row []string, nulls []bool) {
	if len(row) == 0 {
		return
	}
	t.AddRow(row, nulls)
	r.flat.AddRow(row, nulls)
}

// AddIssue фиксирует проблему разбора.
func (r *Result) AddIssue(issue Issue) {
	r.Issues = append(r.Issues, issue)
}

// Flat возвращает единую таблицу в старом поведении: заголовок последнего INSERT,
// строки всех INSERT подряд.
func (r *Result) Flat() Table {
	t := Table{Columns: []string{}, Rows: [][]string{}}
	t.Columns = append(t.Columns, r.flat.Columns...)
	t.AppendTable(r.flat)
	if len(r.Tables) == 1 {
		t.Name = r.Tables[0].Name
	}
	return t
}

// RowCount — общее число строк во всех таблицах.
func (r *Result) RowCount() int {
	return len(r.flat.Rows)
}

// Err объединяет все проблемы разбора в одну ошибку (nil, если проблем нет).
func (r *Result) Err() error {
	if len(r.Issues) == 0 {
		return nil
	}
	errs := make([]error, len(r.Issues))
	for i, issue := range r.Issues {
		errs[i] = issue
	}
	return errors.Join(errs...)
}
