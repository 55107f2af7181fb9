package extract

import (
	"errors"
	"reflect"
	"testing"
)

func TestExtractTable_Properties(t *testing.T) {
	tests := []struct {
		name    string
		sql     string
		columns []string
		rows    [][]string
	}{
		{
			name:    "two tuples",
			sql:     "INSERT INTO users (id, name) VALUES (1, 'Alice'), (2, 'Bob');",
			columns: []string{"id", "name"},
			rows:    [][]string{{"1", "Alice"}, {"2", "Bob"}},
		},
		{
			name:    "comma inside quotes",
			sql:     "INSERT INTO t (a) VALUES ('x,y');",
			columns: []string{"a"},
			rows:    [][]string{{"x,y"}},
		},
		{
			name:    "empty input",
			sql:     "",
			columns: []string{},
			rows:    [][]string{},
		},
		{
			name:    "select is ignored",
			sql:     "SELECT * FROM t;",
			columns: []string{},
			rows:    [][]string{},
		},
		{
			name:    "null preserved",
			sql:     "INSERT INTO t (a,b) VALUES (1, NULL);",
			columns: []string{"a", "b"},
			rows:    [][]string{{"1", "NULL"}},
		},
		{
			name:    "nested parentheses",
			sql:     "INSERT INTO t (a, b) VALUES (1, coalesce(a, 'x')), (2, 'y');",
			columns: []string{"a", "b"},
			rows:    [][]string{{"1", "coalesce(a, 'x')"}, {"2", "y"}},
		},
		{
			name:    "missing final semicolon",
			sql:     "insert into t (a)\nvalues\n  (1),\n  (2)",
			columns: []string{"a"},
			rows:    [][]string{{"1"}, {"2"}},
		},
		{
			name:    "doubled quote kept verbatim",
			sql:     "INSERT INTO t (a) VALUES ('it''s');",
			columns: []string{"a"},
			rows:    [][]string{{"it''s"}},
		},
		{
			name:    "hash comment",
			sql:     "# seed data\nINSERT INTO t (a) VALUES (1); # trailing; note\nINSERT INTO t (a) VALUES ('#x');",
			columns: []string{"a"},
			rows:    [][]string{{"1"}, {"#x"}},
		},
		{
			name:    "comments and semicolon in string",
			sql:     "-- INSERT INTO x (a) VALUES (1);\nINSERT INTO t (a) /* note; */ VALUES ('a;b');",
			columns: []string{"a"},
			rows:    [][]string{{"a;b"}},
		},
		{
			name:    "ragged rows kept as is",
			sql:     "INSERT INTO t (a, b) VALUES (1), (1, 2, 3);",
			columns: []string{"a", "b"},
			rows:    [][]string{{"1"}, {"1", "2", "3"}},
		},
		{
			name:    "empty tuple skipped",
			sql:     "INSERT INTO t (a) VALUES (), (5);",
			columns: []string{"a"},
			rows:    [][]string{{"5"}},
		},
		{
			name:    "insert select sets columns only",
			sql:     "INSERT INTO t (a, b) SELECT a, b FROM s;",
			columns: []string{"a", "b"},
			rows:    [][]string{},
		},
		{
			name:    "no column list",
			sql:     "INSERT INTO t VALUES (1, 'a');",
			columns: []string{},
			rows:    [][]string{{"1", "a"}},
		},
		{
			name:    "trailing on duplicate clause",
			sql:     "INSERT INTO t (a) VALUES (1), (2) ON DUPLICATE KEY UPDATE a = VALUES(a);",
			columns: []string{"a"},
			rows:    [][]string{{"1"}, {"2"}},
		},
		{
			name:    "duplicate column names pass through",
			sql:     "INSERT INTO t (a, a) VALUES (1, 2);",
			columns: []string{"a", "a"},
			rows:    [][]string{{"1", "2"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractTable(tt.sql)
			if !reflect.DeepEqual(got.Columns, tt.columns) {
				t.Errorf("columns: expected %q, got %q", tt.columns, got.Columns)
			}
			if !reflect.DeepEqual(got.Rows, tt.rows) {
				t.Errorf("rows: expected %q, got %q", tt.rows, got.Rows)
			}
		})
	}
}

func TestExtract_LiteralKinds(t *testing.T) {
	sql := `INSERT INTO t (a, b, c, d, e, f, g, h, i) VALUES (-5, 1.50, true, FALSE, null, "quoted", X'ff', now(), 1e3);`
	got := ExtractTable(sql)
	want := []string{"-5", "1.50", "true", "false", "NULL", `"quoted"`, "X'ff'", "now()", "1e3"}
	if len(got.Rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got.Rows))
	}
	if !reflect.DeepEqual(got.Rows[0], want) {
		t.Fatalf("expected %q, got %q", want, got.Rows[0])
	}
}

func TestExtract_Idempotent(t *testing.T) {
	sql := "INSERT INTO a (x) VALUES (1); INSERT INTO b (y) VALUES ('z');"
	first := Extract(sql)
	second := Extract(sql)
	if !reflect.DeepEqual(first.Flat(), second.Flat()) {
		t.Fatalf("flat results differ: %+v vs %+v", first.Flat(), second.Flat())
	}
	if len(first.Tables) != len(second.Tables) {
		t.Fatalf("table count differs: %d vs %d", len(first.Tables), len(second.Tables))
	}
}

func TestExtract_KeyedByTable(t *testing.T) {
	sql := "INSERT INTO a (x) VALUES (1);\nINSERT INTO b (y, z) VALUES (2, 3);\nINSERT INTO a (x) VALUES (4);"
	res := Extract(sql)

	if len(res.Tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(res.Tables))
	}
	a, ok := res.Table("a")
	if !ok {
		t.Fatalf("table a not found")
	}
	if !reflect.DeepEqual(a.Rows, [][]string{{"1"}, {"4"}}) {
		t.Fatalf("unexpected rows for a: %q", a.Rows)
	}
	b, _ := res.Table("b")
	if !reflect.DeepEqual(b.Columns, []string{"y", "z"}) {
		t.Fatalf("unexpected columns for b: %q", b.Columns)
	}

	flat := res.Flat()
	if !reflect.DeepEqual(flat.Columns, []string{"x"}) {
		t.Fatalf("flat header must come from the last INSERT, got %q", flat.Columns)
	}
	if !reflect.DeepEqual(flat.Rows, [][]string{{"1"}, {"2", "3"}, {"4"}}) {
		t.Fatalf("flat rows must accumulate in order, got %q", flat.Rows)
	}
}

func TestExtract_SameTableNewColumnsReplaceHeader(t *testing.T) {
	res := Extract("INSERT INTO t (a) VALUES (1); INSERT INTO t (a, b) VALUES (2, 3);")
	tbl, _ := res.Table("t")
	if !reflect.DeepEqual(tbl.Columns, []string{"a", "b"}) {
		t.Fatalf("expected header [a b], got %q", tbl.Columns)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(tbl.Rows))
	}
}

func TestExtract_QuotedAndQualifiedNames(t *testing.T) {
	res := Extract("INSERT INTO `shop`.`orders` (`id`, \"total\", [note]) VALUES (1, 2, 'x');")
	tbl, ok := res.Table("shop.orders")
	if !ok {
		t.Fatalf("table shop.orders not found, tables: %+v", res.Tables)
	}
	if !reflect.DeepEqual(tbl.Columns, []string{"id", "total", "note"}) {
		t.Fatalf("unexpected columns: %q", tbl.Columns)
	}
}

func TestExtract_Modifiers(t *testing.T) {
	sql := "INSERT OR IGNORE INTO a (x) VALUES (1); REPLACE INTO b (y) VALUES (2); INSERT IGNORE INTO c (z) VALUES (3);"
	res := Extract(sql)
	if len(res.Tables) != 3 {
		t.Fatalf("expected 3 tables, got %d", len(res.Tables))
	}
	for i, name := range []string{"a", "b", "c"} {
		if res.Tables[i].Name != name {
			t.Fatalf("table %d: expected %q, got %q", i, name, res.Tables[i].Name)
		}
	}
}

func TestExtract_MalformedTupleRecovery(t *testing.T) {
	sql := "INSERT INTO t (a) VALUES (1), (2;\nINSERT INTO t (a) VALUES (3);"
	res := Extract(sql)

	tbl, _ := res.Table("t")
	if !reflect.DeepEqual(tbl.Rows, [][]string{{"1"}, {"3"}}) {
		t.Fatalf("unexpected rows: %q", tbl.Rows)
	}
	if len(res.Issues) != 1 {
		t.Fatalf("expected 1 issue, got %d", len(res.Issues))
	}
	if !errors.Is(res.Err(), ErrMalformedTuple) {
		t.Fatalf("expected ErrMalformedTuple, got %v", res.Err())
	}
	if res.Issues[0].Statement != 1 || res.Issues[0].Line != 1 {
		t.Fatalf("unexpected issue position: %+v", res.Issues[0])
	}
}

func TestExtract_EmptyValueDropsTuple(t *testing.T) {
	res := Extract("INSERT INTO t (a, b) VALUES (1,), (2, 3), (,4);\nINSERT INTO t (a, b) VALUES (5, 6);")

	tbl, _ := res.Table("t")
	if !reflect.DeepEqual(tbl.Rows, [][]string{{"2", "3"}, {"5", "6"}}) {
		t.Fatalf("unexpected rows: %q", tbl.Rows)
	}
	if len(res.Issues) != 2 {
		t.Fatalf("expected 2 issues, got %d: %v", len(res.Issues), res.Issues)
	}
	for _, issue := range res.Issues {
		if !errors.Is(issue, ErrMalformedTuple) || issue.Statement != 1 {
			t.Fatalf("unexpected issue: %v", issue)
		}
	}
}

func TestExtract_NullMarks(t *testing.T) {
	res := Extract("INSERT INTO t (a, b) VALUES (NULL, 'NULL'), ('x', null);")
	tbl, _ := res.Table("t")
	if !reflect.DeepEqual(tbl.Rows, [][]string{{"NULL", "NULL"}, {"x", "NULL"}}) {
		t.Fatalf("unexpected rows: %q", tbl.Rows)
	}
	if !tbl.IsNull(0, 0) || tbl.IsNull(0, 1) || tbl.IsNull(1, 0) || !tbl.IsNull(1, 1) {
		t.Fatalf("unexpected NULL marks %v", tbl.Nulls)
	}

	flat := res.Flat()
	if !flat.IsNull(0, 0) || flat.IsNull(0, 1) {
		t.Fatalf("flat view lost NULL marks %v", flat.Nulls)
	}

	for _, backend := range []Backend{BackendSQLParser, BackendLines} {
		ex, err := New(Options{Backend: backend})
		if err != nil {
			t.Fatalf("New(%s) failed: %v", backend, err)
		}
		got := ex.Extract("INSERT INTO t (a, b) VALUES (NULL, 'NULL');").Flat()
		if !got.IsNull(0, 0) || got.IsNull(0, 1) {
			t.Errorf("%s: unexpected NULL marks %v for rows %q", backend, got.Nulls, got.Rows)
		}
	}
}

func TestExtract_UnterminatedString(t *testing.T) {
	res := Extract("INSERT INTO t (a) VALUES ('ok'), ('broken);")
	tbl, _ := res.Table("t")
	if !reflect.DeepEqual(tbl.Rows, [][]string{{"ok"}}) {
		t.Fatalf("unexpected rows: %q", tbl.Rows)
	}
	if !errors.Is(res.Err(), ErrMalformedTuple) {
		t.Fatalf("expected ErrMalformedTuple, got %v", res.Err())
	}
}

func TestExtract_ParseFailure(t *testing.T) {
	res := Extract("INSERT INTO (a) VALUES (1);\nINSERT INTO t (a) VALUES (2);")
	if len(res.Tables) != 1 || res.Tables[0].Name != "t" {
		t.Fatalf("expected only table t, got %+v", res.Tables)
	}
	if !errors.Is(res.Err(), ErrParseFailure) {
		t.Fatalf("expected ErrParseFailure, got %v", res.Err())
	}

	res = Extract("INSERT INTO t (a) VALUES 1, 2;")
	if !errors.Is(res.Err(), ErrParseFailure) {
		t.Fatalf("expected ErrParseFailure for VALUES without tuple, got %v", res.Err())
	}
}

func TestExtract_BackslashEscapes(t *testing.T) {
	ex, err := New(Options{BackslashEscapes: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	got := ex.Extract(`INSERT INTO t (a) VALUES ('O\'Reilly'), ('x');`).Flat()
	want := [][]string{{`O\'Reilly`}, {"x"}}
	if !reflect.DeepEqual(got.Rows, want) {
		t.Fatalf("expected %q, got %q", want, got.Rows)
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	if _, err := New(Options{Backend: "regex"}); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("expected ErrUnknownBackend, got %v", err)
	}
	ex, err := New(Options{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if ex.Backend() != BackendNative {
		t.Fatalf("expected native backend by default, got %q", ex.Backend())
	}
}

func TestExtract_SQLParserBackend(t *testing.T) {
	ex, err := New(Options{Backend: BackendSQLParser})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	got := ex.Extract("CREATE TABLE users (id int, name text);\nINSERT INTO users (id, name) VALUES (1, 'Alice'), (2, 'x,y');").Flat()
	if !reflect.DeepEqual(got.Columns, []string{"id", "name"}) {
		t.Fatalf("unexpected columns: %q", got.Columns)
	}
	if !reflect.DeepEqual(got.Rows, [][]string{{"1", "Alice"}, {"2", "x,y"}}) {
		t.Fatalf("unexpected rows: %q", got.Rows)
	}

	got = ex.Extract("INSERT INTO t (a,b) VALUES (1, NULL);").Flat()
	if !reflect.DeepEqual(got.Rows, [][]string{{"1", "NULL"}}) {
		t.Fatalf("unexpected rows: %q", got.Rows)
	}

	res := ex.Extract("INSERT INTO db.t (a) VALUES (1);")
	if _, ok := res.Table("db.t"); !ok {
		t.Fatalf("qualified table db.t not found: %+v", res.Tables)
	}

	res = ex.Extract("INSERT INTO t (a) VALUES (1, ;\nINSERT INTO u (b) VALUES (2);")
	if !errors.Is(res.Err(), ErrParseFailure) {
		t.Fatalf("expected ErrParseFailure, got %v", res.Err())
	}
	if _, ok := res.Table("u"); !ok {
		t.Fatalf("statement after the broken one must still be parsed")
	}
}

func TestExtract_LinesBackend(t *testing.T) {
	ex, err := New(Options{Backend: BackendLines})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	got := ex.Extract("-- seed\nINSERT INTO users (id, name) VALUES (1, 'Alice'), (2, 'Bob');\n").Flat()
	if !reflect.DeepEqual(got.Columns, []string{"id", "name"}) {
		t.Fatalf("unexpected columns: %q", got.Columns)
	}
	if !reflect.DeepEqual(got.Rows, [][]string{{"1", "Alice"}, {"2", "Bob"}}) {
		t.Fatalf("unexpected rows: %q", got.Rows)
	}

	// Построчный разбор делит по запятой внутри кавычек
	got = ex.Extract("INSERT INTO t (a) VALUES ('x,y');").Flat()
	if !reflect.DeepEqual(got.Rows, [][]string{{"'x", "y'"}}) {
		t.Fatalf("unexpected rows: %q", got.Rows)
	}

	res := ex.Extract("INSERT INTO t (a)\nVALUES (1);")
	if !errors.Is(res.Err(), ErrParseFailure) {
		t.Fatalf("expected ErrParseFailure for multi-line statement, got %v", res.Err())
	}
}
