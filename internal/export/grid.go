package export

import (
	"io"

	"github.com/olekukonko/tablewriter"

	"bigscope/internal/models"
)

// GridFormatter рисует таблицу для терминала. Недостающие ячейки «рваных» строк
// выводятся пустыми.
type GridFormatter struct {
	writer io.Writer
}

func NewGridFormatter(w io.Writer) *GridFormatter {
	return &GridFormatter{writer: w}
}

func (g *GridFormatter) SetOutput(w io.Writer) {
	g.writer = w
}

func (g *GridFormatter) Extension() string { return ".txt" }

func (g *GridFormatter) Format(t models.Table) error {
	header := t.Header()
	if len(header) == 0 {
		return nil
	}
	tw := tablewriter.NewWriter(g.writer)
	tw.SetHeader(header)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	for _, row := range t.Rows {
		tw.Append(pad(row, len(header)))
	}
	tw.Render()
	return nil
}
