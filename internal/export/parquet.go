package export

import (
	"fmt"
	"io"

	"github.com/parquet-go/parquet-go"

	"bigscope/internal/models"
)

// ParquetFormatter пишет таблицу в Parquet. Все колонки — optional string,
// ячейки NULL и отсутствующие ячейки записываются как null.
type ParquetFormatter struct {
	writer io.Writer
}

func NewParquetFormatter(w io.Writer) *ParquetFormatter {
	return &ParquetFormatter{writer: w}
}

func (p *ParquetFormatter) SetOutput(w io.Writer) {
	p.writer = w
}

func (p *ParquetFormatter) Extension() string { return ".parquet" }

func (p *ParquetFormatter) Format(t models.Table) error {
	header := uniqueHeader(t.Header())
	if len(header) == 0 {
		return fmt.Errorf("parquet: table %q has no columns", t.Name)
	}

	group := make(parquet.Group, len(header))
	for _, name := range header {
		group[name] = parquet.Optional(parquet.String())
	}
	name := t.Name
	if name == "" {
		name = "table"
	}
	schema := parquet.NewSchema(name, group)

	// Group хранит поля по алфавиту: индекс колонки в файле ≠ позиции в заголовке
	position := make(map[string]int, len(header))
	for i, col := range header {
		position[col] = i
	}
	fields := schema.Fields()

	rows := make([]parquet.Row, 0, len(t.Rows))
	for r, cells := range t.Rows {
		row := make(parquet.Row, len(fields))
		for colIdx, field := range fields {
			i := position[field.Name()]
			if i >= len(cells) || t.IsNull(r, i) {
				row[colIdx] = parquet.NullValue().Level(0, 0, colIdx)
				continue
			}
			row[colIdx] = parquet.ValueOf(cells[i]).Level(0, 1, colIdx)
		}
		rows = append(rows, row)
	}

	w := parquet.NewWriter(p.writer, schema)
	if _, err := w.WriteRows(rows); err != nil {
		return fmt.Errorf("parquet: write rows: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("parquet: close: %w", err)
	}
	return nil
}
