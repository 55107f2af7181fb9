package transform

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"bigscope/internal/models"
)

var unsafeIdent = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// ShapedTable — таблица, подготовленная к загрузке в ClickHouse:
// уникальные безопасные имена колонок и строки ровно по числу колонок.
type ShapedTable struct {
	Table   string
	Columns []string
	Rows    [][]*string // nil — NULL
}

// ShapeTable готовит извлечённую таблицу к загрузке.
// Имя целевой таблицы: TableMap[имя в нижнем регистре], иначе prefix + безопасное имя.
// Ширина таблицы — по самой длинной строке (колонки без имени получают column_N),
// короткие строки дополняются NULL. Строка "NULL" без отметки Nulls остаётся текстом.
func ShapeTable(t models.Table, prefix string, tableMap map[string]string) (ShapedTable, error) {
	if strings.TrimSpace(t.Name) == "" {
		return ShapedTable{}, fmt.Errorf("недопустимое имя таблицы: %q", t.Name)
	}

	target, ok := tableMap[strings.ToLower(t.Name)]
	if !ok {
		target = prefix + SanitizeIdent(t.Name)
	}

	header := t.Header()
	idents := make([]string, len(header))
	for i, name := range header {
		ident := SanitizeIdent(name)
		if ident == "" || ident == "_" {
			ident = "column_" + strconv.Itoa(i+1)
		}
		idents[i] = ident
	}
	columns := models.UniqueNames(idents)

	rows := make([][]*string, 0, len(t.Rows))
	for r, cells := range t.Rows {
		row := make([]*string, len(columns))
		for i := range row {
			if i < len(cells) && !t.IsNull(r, i) {
				v := cells[i]
				row[i] = &v
			}
		}
		rows = append(rows, row)
	}

	return ShapedTable{Table: target, Columns: columns, Rows: rows}, nil
}

// SanitizeIdent заменяет недопустимые символы идентификатора на '_' и
// добавляет '_' перед ведущей цифрой.
func SanitizeIdent(name string) string {
	ident := unsafeIdent.ReplaceAllString(strings.TrimSpace(name), "_")
	if ident != "" && ident[0] >= '0' && ident[0] <= '9' {
		ident = "_" + ident
	}
	return ident
}
