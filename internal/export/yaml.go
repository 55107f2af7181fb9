package export

import (
	"io"

	"gopkg.in/yaml.v3"

	"bigscope/internal/models"
)

type yamlTable struct {
	Table   string     `yaml:"table,omitempty"`
	Columns []string   `yaml:"columns"`
	Rows    [][]string `yaml:"rows"`
}

// YAMLFormatter выводит таблицу одним YAML-документом.
type YAMLFormatter struct {
	writer io.Writer
}

func NewYAMLFormatter(w io.Writer) *YAMLFormatter {
	return &YAMLFormatter{writer: w}
}

func (y *YAMLFormatter) SetOutput(w io.Writer) {
	y.writer = w
}

func (y *YAMLFormatter) Extension() string { return ".yaml" }

func (y *YAMLFormatter) Format(t models.Table) error {
	doc := yamlTable{Table: t.Name, Columns: t.Columns, Rows: t.Rows}
	if doc.Columns == nil {
		doc.Columns = []string{}
	}
	if doc.Rows == nil {
		doc.Rows = [][]string{}
	}
	enc := yaml.NewEncoder(y.writer)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
