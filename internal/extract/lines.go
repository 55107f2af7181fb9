package extract

import (
	"fmt"
	"regexp"
	"strings"

	"bigscope/internal/models"
)

var valuesKeyword = regexp.MustCompile(`(?i)\bVALUES\b`)

// extractLines — упрощённый построчный разбор: учитываются только строки,
// начинающиеся с INSERT INTO, и всё выражение должно помещаться в одну строку.
// Запятые внутри кавычек и вложенные скобки здесь не поддерживаются.
func extractLines(sql string, backslash bool, res *models.Result) {
	stmt := 0
	for n, line := range strings.Split(sql, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(strings.ToUpper(line), "INSERT INTO") {
			continue
		}
		stmt++
		if err := parseInsertLine(line, backslash, res); err != nil {
			res.AddIssue(models.Issue{Statement: stmt, Line: n + 1, Err: err})
		}
	}
}

func parseInsertLine(line string, backslash bool, res *models.Result) error {
	loc := valuesKeyword.FindStringIndex(line)
	if loc == nil {
		return fmt.Errorf("%w: missing VALUES", ErrParseFailure)
	}
	idxValues := loc[0]

	head := strings.TrimSpace(line[len("INSERT INTO"):idxValues])
	name := head
	columns := []string{}
	if open := strings.Index(head, "("); open != -1 {
		name = strings.TrimSpace(head[:open])
		closeIdx := strings.Index(head[open:], ")")
		if closeIdx == -1 {
			return fmt.Errorf("%w: missing ')' after column list", ErrParseFailure)
		}
		for _, col := range strings.Split(head[open+1:open+closeIdx], ",") {
			columns = append(columns, strings.TrimSpace(col))
		}
	}
	if name == "" {
		return fmt.Errorf("%w: missing table name", ErrParseFailure)
	}
	table := res.BeginInsert(name, columns)

	rest := strings.TrimSpace(line[idxValues+len("VALUES"):])
	rest = strings.TrimSpace(strings.TrimSuffix(rest, ";"))
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return fmt.Errorf("%w: expected (...) after VALUES", ErrMalformedTuple)
	}
	rest = rest[1 : len(rest)-1]

	for _, tuple := range strings.Split(rest, "),") {
		tuple = strings.TrimPrefix(strings.TrimSpace(tuple), "(")
		if strings.TrimSpace(tuple) == "" {
			continue
		}
		parts := strings.Split(tuple, ",")
		row := make([]string, 0, len(parts))
		nulls := make([]bool, 0, len(parts))
		for _, part := range parts {
			lit := ParseLiteral(part, backslash)
			row = append(row, lit.Text)
			nulls = append(nulls, lit.Kind == KindNull)
		}
		res.AppendRow(table, row, nulls)
	}
	return nil
}
