package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"

	"bigscope/internal/models"
)

// JSONFormatter выводит строки в формате JSON Lines, ключи в порядке колонок.
// Ячейки, записанные ключевым словом NULL, становятся null, отсутствующие ячейки коротких строк пропускаются.
type JSONFormatter struct {
	writer io.Writer
}

// NewJSONFormatter создаёт JSON Lines форматтер
func NewJSONFormatter(w io.Writer) *JSONFormatter {
	return &JSONFormatter{writer: w}
}

// SetOutput меняет приёмник вывода
func (j *JSONFormatter) SetOutput(w io.Writer) {
	j.writer = w
}

func (j *JSONFormatter) Extension() string { return ".jsonl" }

// Format пишет по одному JSON-объекту на строку таблицы
func (j *JSONFormatter) Format(t models.Table) error {
	header := uniqueHeader(t.Header())
	bw := bufio.NewWriter(j.writer)
	var line bytes.Buffer
	for r, row := range t.Rows {
		line.Reset()
		line.WriteByte('{')
		for i, cell := range row {
			if i > 0 {
				line.WriteByte(',')
			}
			key, err := json.Marshal(header[i])
			if err != nil {
				return err
			}
			line.Write(key)
			line.WriteByte(':')
			if t.IsNull(r, i) {
				line.WriteString("null")
				continue
			}
			val, err := json.Marshal(cell)
			if err != nil {
				return err
			}
			line.Write(val)
		}
		line.WriteString("}\n")
		if _, err := bw.Write(line.Bytes()); err != nil {
			return err
		}
	}
	return bw.Flush()
}
