package export

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"bigscope/internal/models"
)

// CSVFormatter выводит таблицу в CSV (RFC 4180) со строкой заголовка
type CSVFormatter struct {
	writer io.Writer
}

// NewCSVFormatter создаёт CSV-форматтер
func NewCSVFormatter(w io.Writer) *CSVFormatter {
	return &CSVFormatter{writer: w}
}

// SetOutput меняет приёмник вывода
func (c *CSVFormatter) SetOutput(w io.Writer) {
	c.writer = w
}

func (c *CSVFormatter) Extension() string { return ".csv" }

// Format пишет заголовок и строки, дополненные до ширины таблицы
func (c *CSVFormatter) Format(t models.Table) error {
	csvWriter := csv.NewWriter(c.writer)

	header := t.Header()
	if len(header) > 0 {
		if err := csvWriter.Write(header); err != nil {
			return err
		}
	}
	for _, row := range t.Rows {
		if err := csvWriter.Write(pad(row, len(header))); err != nil {
			return err
		}
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	return nil
}

// LegacyCSVFormatter соединяет ячейки запятой без экранирования.
// Ячейки с запятыми и переводами строк ломают разметку.
type LegacyCSVFormatter struct {
	writer io.Writer
}

// NewLegacyCSVFormatter — форматтер, совместимый со старым экспортом
func NewLegacyCSVFormatter(w io.Writer) *LegacyCSVFormatter {
	return &LegacyCSVFormatter{writer: w}
}

func (c *LegacyCSVFormatter) SetOutput(w io.Writer) {
	c.writer = w
}

func (c *LegacyCSVFormatter) Extension() string { return ".csv" }

// Format пишет имена колонок и строки как есть, по одной на строку
func (c *LegacyCSVFormatter) Format(t models.Table) error {
	bw := bufio.NewWriter(c.writer)
	if len(t.Columns) > 0 {
		if _, err := bw.WriteString(strings.Join(t.Columns, ",") + "\n"); err != nil {
			return err
		}
	}
	for _, row := range t.Rows {
		if _, err := bw.WriteString(strings.Join(row, ",") + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
