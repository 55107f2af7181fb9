package export

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"
	"gopkg.in/yaml.v3"

	"bigscope/internal/models"
)

func sampleTable() models.Table {
	return models.Table{
		Name:    "users",
		Columns: []string{"id", "name"},
		Rows:    [][]string{{"1", "a,b"}, {"2"}, {"3", "NULL"}},
		Nulls:   [][]bool{nil, nil, {false, true}},
	}
}

func TestCSVFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewCSVFormatter(&buf).Format(sampleTable()); err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	want := "id,name\n1,\"a,b\"\n2,\n3,NULL\n"
	if buf.String() != want {
		t.Fatalf("expected %q, got %q", want, buf.String())
	}
}

func TestLegacyCSVFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewLegacyCSVFormatter(&buf).Format(sampleTable()); err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	want := "id,name\n1,a,b\n2\n3,NULL\n"
	if buf.String() != want {
		t.Fatalf("expected %q, got %q", want, buf.String())
	}
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	tbl := models.Table{
		Columns: []string{"id", "id"},
		Rows:    [][]string{{"1", "NULL"}, {"2"}, {"3", "NULL"}},
		Nulls:   [][]bool{{false, true}},
	}
	if err := NewJSONFormatter(&buf).Format(tbl); err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	want := "{\"id\":\"1\",\"id_2\":null}\n{\"id\":\"2\"}\n{\"id\":\"3\",\"id_2\":\"NULL\"}\n"
	if buf.String() != want {
		t.Fatalf("expected %q, got %q", want, buf.String())
	}
}

func TestYAMLFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewYAMLFormatter(&buf).Format(sampleTable()); err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	var got yamlTable
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid YAML: %v\n%s", err, buf.String())
	}
	if got.Table != "users" || !reflect.DeepEqual(got.Rows, sampleTable().Rows) {
		t.Fatalf("unexpected document: %+v", got)
	}
}

func TestGridFormatter_RaggedRows(t *testing.T) {
	var buf bytes.Buffer
	tbl := models.Table{Columns: []string{"id", "name"}, Rows: [][]string{{"1", "Alice"}, {"2"}, {"3", "Carol", "extra"}}}
	if err := NewGridFormatter(&buf).Format(tbl); err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"name", "Alice", "column_3", "extra"} {
		if !strings.Contains(out, want) {
			t.Fatalf("grid output misses %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "NAME") {
		t.Fatalf("headers must not be upper-cased:\n%s", out)
	}
}

func TestParquetFormatter(t *testing.T) {
	var buf bytes.Buffer
	if err := NewParquetFormatter(&buf).Format(sampleTable()); err != nil {
		t.Fatalf("Format failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("PAR1")) {
		t.Fatalf("output is not a parquet file")
	}
	f, err := parquet.OpenFile(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("OpenFile failed: %v", err)
	}
	if f.NumRows() != 3 {
		t.Fatalf("expected 3 rows, got %d", f.NumRows())
	}

	rows := make([]parquet.Row, 3)
	reader := f.RowGroups()[0].Rows()
	defer reader.Close()
	if n, _ := reader.ReadRows(rows); n != 3 {
		t.Fatalf("expected to read 3 rows, got %d", n)
	}
	// поля в файле по алфавиту: id, name
	if rows[0][1].IsNull() || rows[0][1].String() != "a,b" {
		t.Fatalf("unexpected value %v", rows[0][1])
	}
	if !rows[1][1].IsNull() || !rows[2][1].IsNull() {
		t.Fatalf("missing cell and NULL keyword must be stored as null")
	}
}

func TestNew(t *testing.T) {
	for _, name := range Formats() {
		f, err := New(name, &bytes.Buffer{})
		if err != nil {
			t.Fatalf("New(%q) failed: %v", name, err)
		}
		if f.Extension() == "" {
			t.Fatalf("format %q has no extension", name)
		}
	}
	if _, err := New("xlsx", &bytes.Buffer{}); !errors.Is(err, ErrUnknownFormat) {
		t.Fatalf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestUniqueHeader(t *testing.T) {
	got := uniqueHeader([]string{"a", "a_2", "a", "b"})
	want := []string{"a", "a_2", "a_3", "b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
