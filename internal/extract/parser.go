package extract

import (
	"fmt"
	"strings"

	"bigscope/internal/models"
)

// Statement — одно SQL-выражение без завершающей точки с запятой.
type Statement struct {
	Text string
	Line int

	toks []token
}

// SplitStatements делит текст на выражения по ';'. Точки с запятой внутри строк
// и комментариев не считаются разделителями. Пустые выражения пропускаются.
func SplitStatements(sql string, backslash bool) []Statement {
	return splitTokens(sql, tokenize(sql, backslash))
}

func splitTokens(sql string, toks []token) []Statement {
	var stmts []Statement
	start := 0
	flush := func(end int) {
		if end > start {
			part := toks[start:end]
			stmts = append(stmts, Statement{
				Text: sql[part[0].pos:part[len(part)-1].end],
				Line: lineOf(sql, part[0].pos),
				toks: part,
			})
		}
		start = end + 1
	}
	for i, tok := range toks {
		if tok.is(tokPunct, ";") {
			flush(i)
		}
	}
	flush(len(toks))
	return stmts
}

// Complete сообщает, заканчивается ли текст полным выражением: последняя лексема — ';'
// и нет незакрытых строк.
func Complete(sql string, backslash bool) bool {
	toks := tokenize(sql, backslash)
	if len(toks) == 0 {
		return false
	}
	for _, tok := range toks {
		if tok.typ == tokIllegal {
			return false
		}
	}
	return toks[len(toks)-1].is(tokPunct, ";")
}

func lineOf(src string, pos int) int {
	return strings.Count(src[:pos], "\n") + 1
}

// insertModifiers — слова между INSERT/REPLACE и INTO, которые не влияют на данные.
var insertModifiers = map[string]bool{
	"IGNORE": true, "LOW_PRIORITY": true, "DELAYED": true, "HIGH_PRIORITY": true,
	"OR": true, "REPLACE": true, "ROLLBACK": true, "ABORT": true, "FAIL": true,
}

// cursor — курсор по лексемам одного выражения.
type cursor struct {
	toks []token
	i    int
}

func (c *cursor) peek() token {
	if c.i >= len(c.toks) {
		pos := 0
		if len(c.toks) > 0 {
			pos = c.toks[len(c.toks)-1].end
		}
		return token{typ: tokEOF, pos: pos, end: pos}
	}
	return c.toks[c.i]
}

func (c *cursor) advance() token {
	tok := c.peek()
	if c.i < len(c.toks) {
		c.i++
	}
	return tok
}

// parseError — ошибка разбора с позицией в исходном тексте.
// skipped: кортеж прочитан до конца и отброшен, разбор выражения продолжается.
type parseError struct {
	kind    error
	msg     string
	pos     int
	skipped bool
}

func (e *parseError) Error() string { return e.msg }

func failure(kind error, pos int, format string, args ...any) *parseError {
	return &parseError{kind: kind, msg: fmt.Sprintf(format, args...), pos: pos}
}

// nativeParser разбирает INSERT ... VALUES по собственной грамматике.
type nativeParser struct {
	src  string
	res  *models.Result
	stmt int // номер текущего выражения, с 1
}

func (p *nativeParser) run(stmts []Statement) {
	for n, stmt := range stmts {
		p.stmt = n + 1
		if err := p.parseStatement(stmt); err != nil {
			p.issue(err)
		}
	}
}

func (p *nativeParser) issue(err *parseError) {
	p.res.AddIssue(models.Issue{
		Statement: p.stmt,
		Line:      lineOf(p.src, err.pos),
		Err:       fmt.Errorf("%w: %s", err.kind, err.msg),
	})
}

func (p *nativeParser) parseStatement(stmt Statement) *parseError {
	c := &cursor{toks: stmt.toks}
	first := c.advance()
	if !first.keyword("INSERT") && !first.keyword("REPLACE") {
		return nil
	}
	for c.peek().typ == tokIdent && insertModifiers[strings.ToUpper(c.peek().text)] {
		c.advance()
	}
	if c.peek().keyword("INTO") {
		c.advance()
	}

	name, err := p.parseTableName(c)
	if err != nil {
		return err
	}
	if c.peek().keyword("AS") {
		c.advance()
		c.advance()
	}

	columns := []string{}
	if c.peek().is(tokPunct, "(") && !p.startsQuery(c) {
		if columns, err = p.parseColumns(c); err != nil {
			return err
		}
	}
	table := p.res.BeginInsert(name, columns)

	kw := c.peek()
	if !kw.keyword("VALUES") && !kw.keyword("VALUE") {
		// INSERT ... SELECT, DEFAULT VALUES, SET ...: строк нет, заголовок уже зарегистрирован
		return nil
	}
	c.advance()

	for tuple := 0; ; tuple++ {
		open := c.peek()
		if !open.is(tokPunct, "(") {
			if tuple == 0 {
				return failure(ErrParseFailure, open.pos, "expected '(' after VALUES in INSERT INTO %s", name)
			}
			return nil
		}
		row, nulls, err := p.parseTuple(c)
		switch {
		case err != nil && err.skipped:
			p.issue(err)
		case err != nil:
			return err
		default:
			p.res.AppendRow(table, row, nulls)
		}
		if !c.peek().is(tokPunct, ",") {
			// ON DUPLICATE KEY UPDATE, ON CONFLICT, RETURNING — пропускаем
			return nil
		}
		c.advance()
	}
}

func (p *nativeParser) parseTableName(c *cursor) (string, *parseError) {
	var parts []string
	for {
		tok := c.peek()
		if tok.typ != tokIdent && tok.typ != tokQuotedIdent {
			if len(parts) == 0 {
				return "", failure(ErrParseFailure, tok.pos, "missing table name after INTO")
			}
			return "", failure(ErrParseFailure, tok.pos, "incomplete qualified table name %q", strings.Join(parts, "."))
		}
		c.advance()
		parts = append(parts, tok.val)
		if !c.peek().is(tokPunct, ".") {
			return strings.Join(parts, "."), nil
		}
		c.advance()
	}
}

// startsQuery — скобка после имени таблицы открывает подзапрос, а не список колонок.
func (p *nativeParser) startsQuery(c *cursor) bool {
	if c.i+1 >= len(c.toks) {
		return false
	}
	next := c.toks[c.i+1]
	return next.keyword("SELECT") || next.keyword("WITH")
}

func (p *nativeParser) parseColumns(c *cursor) ([]string, *parseError) {
	open := c.advance()
	columns := []string{}
	var current []token
	for {
		tok := c.advance()
		switch {
		case tok.typ == tokEOF:
			return nil, failure(ErrParseFailure, open.pos, "unterminated column list")
		case tok.typ == tokIllegal:
			return nil, failure(ErrParseFailure, tok.pos, "unterminated quoted identifier in column list")
		case tok.is(tokPunct, ",") || tok.is(tokPunct, ")"):
			columns = append(columns, columnName(current, p.src))
			current = current[:0]
			if tok.text == ")" {
				return columns, nil
			}
		default:
			current = append(current, tok)
		}
	}
}

// columnName — имя колонки без кавычек; составные имена (t.col) берутся как есть.
func columnName(toks []token, src string) string {
	if len(toks) == 0 {
		return ""
	}
	if len(toks) == 1 {
		return strings.TrimSpace(toks[0].val)
	}
	return strings.TrimSpace(src[toks[0].pos:toks[len(toks)-1].end])
}

// parseTuple разбирает один кортеж с учётом вложенных скобок.
// Пустое значение ("(1,)", "(,2)") отбрасывает кортеж целиком.
func (p *nativeParser) parseTuple(c *cursor) ([]string, []bool, *parseError) {
	open := c.advance()
	var cells []string
	var nulls []bool
	var current []token
	emptyAt := -1
	depth := 0

	endCell := func(sep token) {
		if len(current) == 0 && emptyAt < 0 {
			emptyAt = sep.pos
		}
		lit := classify(current, p.src)
		cells = append(cells, lit.Text)
		nulls = append(nulls, lit.Kind == KindNull)
		current = nil
	}

	for {
		tok := c.advance()
		switch {
		case tok.typ == tokEOF:
			return nil, nil, failure(ErrMalformedTuple, open.pos, "unbalanced parentheses in tuple %s", abbreviate(p.src[open.pos:endOf(c, p.src)]))
		case tok.typ == tokIllegal:
			return nil, nil, failure(ErrMalformedTuple, tok.pos, "unterminated string literal %s", abbreviate(tok.text))
		case tok.is(tokPunct, "("):
			depth++
			current = append(current, tok)
		case tok.is(tokPunct, ")") && depth > 0:
			depth--
			current = append(current, tok)
		case tok.is(tokPunct, ")"):
			if len(current) > 0 || len(cells) > 0 {
				endCell(tok)
			}
			if emptyAt >= 0 {
				err := failure(ErrMalformedTuple, emptyAt, "empty value in tuple %s", abbreviate(p.src[open.pos:tok.end]))
				err.skipped = true
				return nil, nil, err
			}
			return cells, nulls, nil
		case tok.is(tokPunct, ",") && depth == 0:
			endCell(tok)
		default:
			current = append(current, tok)
		}
	}
}

func endOf(c *cursor, src string) int {
	if len(c.toks) == 0 {
		return len(src)
	}
	return c.toks[len(c.toks)-1].end
}

func abbreviate(s string) string {
	const limit = 40
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > limit {
		return fmt.Sprintf("%q…", string(r[:limit]))
	}
	return fmt.Sprintf("%q", s)
}
