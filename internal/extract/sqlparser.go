package extract

import (
	"fmt"

	"github.com/xwb1989/sqlparser"

	"bigscope/internal/models"
)

// extractSQLParser делит текст на выражения собственным лексером и разбирает каждое
// github.com/xwb1989/sqlparser. Ошибки разбора не-INSERT выражений игнорируются.
func extractSQLParser(sql string, backslash bool, res *models.Result) {
	for n, stmt := range SplitStatements(sql, backslash) {
		isInsert := stmt.toks[0].keyword("INSERT") || stmt.toks[0].keyword("REPLACE")
		if !isInsert {
			continue
		}
		parsed, err := sqlparser.Parse(stmt.Text)
		if err != nil {
			res.AddIssue(models.Issue{
				Statement: n + 1,
				Line:      stmt.Line,
				Err:       fmt.Errorf("%w: %v", ErrParseFailure, err),
			})
			continue
		}
		ins, ok := parsed.(*sqlparser.Insert)
		if !ok {
			continue
		}

		name := ins.Table.Name.String()
		if !ins.Table.Qualifier.IsEmpty() {
			name = ins.Table.Qualifier.String() + "." + name
		}
		columns := make([]string, 0, len(ins.Columns))
		for _, col := range ins.Columns {
			columns = append(columns, col.String())
		}
		table := res.BeginInsert(name, columns)

		values, ok := ins.Rows.(sqlparser.Values)
		if !ok {
			// INSERT ... SELECT
			continue
		}
		for _, tuple := range values {
			row := make([]string, 0, len(tuple))
			nulls := make([]bool, 0, len(tuple))
			for _, expr := range tuple {
				_, isNull := expr.(*sqlparser.NullVal)
				row = append(row, renderExpr(expr))
				nulls = append(nulls, isNull)
			}
			res.AppendRow(table, row, nulls)
		}
	}
}

// renderExpr приводит выражение sqlparser к тексту ячейки по тем же правилам,
// что и собственный разборщик.
func renderExpr(expr sqlparser.Expr) string {
	switch v := expr.(type) {
	case *sqlparser.SQLVal:
		switch v.Type {
		case sqlparser.StrVal, sqlparser.IntVal, sqlparser.FloatVal:
			return string(v.Val)
		}
	case *sqlparser.NullVal:
		return "NULL"
	case sqlparser.BoolVal:
		if v {
			return "true"
		}
		return "false"
	}
	return sqlparser.String(expr)
}
