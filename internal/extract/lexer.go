package extract

import "strings"

type tokenType int

const (
	tokEOF tokenType = iota
	tokIdent
	tokQuotedIdent // "x", `x`, [x]
	tokString      // 'x'
	tokNumber
	tokPunct // ( ) , ; .
	tokOp
	tokIllegal // незакрытая строка или идентификатор
)

// token — лексема. text — исходный текст, val — содержимое без кавычек.
type token struct {
	typ  tokenType
	text string
	val  string
	pos  int
	end  int
}

func (t token) is(typ tokenType, text string) bool {
	return t.typ == typ && t.text == text
}

// keyword сравнивает неэкранированный идентификатор с ключевым словом без учёта регистра.
func (t token) keyword(kw string) bool {
	return t.typ == tokIdent && strings.EqualFold(t.text, kw)
}

// lexer разбивает SQL на лексемы. Работает по байтам: все значимые символы ASCII,
// байты >= 0x80 считаются частью идентификатора.
type lexer struct {
	input     string
	pos       int
	backslash bool // обратный слеш экранирует следующий символ внутри строк
}

func newLexer(input string, backslash bool) *lexer {
	return &lexer{input: input, backslash: backslash}
}

// tokenize возвращает все лексемы без комментариев; tokEOF не включается.
func tokenize(input string, backslash bool) []token {
	l := newLexer(input, backslash)
	var toks []token
	for {
		tok := l.next()
		if tok.typ == tokEOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

func (l *lexer) peek(off int) byte {
	if l.pos+off >= len(l.input) {
		return 0
	}
	return l.input[l.pos+off]
}

// skipSpaceAndComments пропускает пробелы, "-- ...", "# ..." (MySQL) и "/* ... */".
func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			l.pos++
		case c == '-' && l.peek(1) == '-', c == '#':
			if nl := strings.IndexByte(l.input[l.pos:], '\n'); nl >= 0 {
				l.pos += nl + 1
			} else {
				l.pos = len(l.input)
			}
		case c == '/' && l.peek(1) == '*':
			if end := strings.Index(l.input[l.pos+2:], "*/"); end >= 0 {
				l.pos += end + 4
			} else {
				l.pos = len(l.input)
			}
		default:
			return
		}
	}
}

func (l *lexer) next() token {
	l.skipSpaceAndComments()
	if l.pos >= len(l.input) {
		return token{typ: tokEOF, pos: l.pos, end: l.pos}
	}

	start := l.pos
	c := l.input[l.pos]
	switch {
	case c == '\'':
		return l.readQuoted(tokString, '\'', '\'')
	case c == '"':
		return l.readQuoted(tokQuotedIdent, '"', '"')
	case c == '`':
		return l.readQuoted(tokQuotedIdent, '`', '`')
	case c == '[':
		return l.readQuoted(tokQuotedIdent, '[', ']')
	case c == '(' || c == ')' || c == ',' || c == ';':
		l.pos++
		return l.emit(tokPunct, start)
	case c == '.' && !isDigit(l.peek(1)):
		l.pos++
		return l.emit(tokPunct, start)
	case isDigit(c) || c == '.':
		return l.readNumber()
	case isIdentStart(c):
		for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
			l.pos++
		}
		return l.emit(tokIdent, start)
	default:
		l.pos++
		return l.emit(tokOp, start)
	}
}

func (l *lexer) emit(typ tokenType, start int) token {
	text := l.input[start:l.pos]
	return token{typ: typ, text: text, val: text, pos: start, end: l.pos}
}

// readQuoted читает строку или идентификатор в кавычках. Удвоенная закрывающая кавычка
// не завершает литерал. Содержимое возвращается как есть, без раскрытия экранирования.
func (l *lexer) readQuoted(typ tokenType, open, close byte) token {
	start := l.pos
	l.pos++ // открывающая кавычка
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if l.backslash && typ == tokString && c == '\\' {
			l.pos += 2
			continue
		}
		if c == close {
			if open == close && l.peek(1) == close {
				l.pos += 2
				continue
			}
			l.pos++
			return token{typ: typ, text: l.input[start:l.pos], val: l.input[start+1 : l.pos-1], pos: start, end: l.pos}
		}
		l.pos++
	}
	// Не нашли закрывающую кавычку: всё до конца текста — ошибочная лексема
	l.pos = len(l.input)
	return token{typ: tokIllegal, text: l.input[start:], val: l.input[start+1:], pos: start, end: l.pos}
}

// readNumber читает 42, 3.14, .5, 1e-3, 0x1F.
func (l *lexer) readNumber() token {
	start := l.pos
	if l.input[l.pos] == '0' && (l.peek(1) == 'x' || l.peek(1) == 'X') {
		l.pos += 2
		for l.pos < len(l.input) && isHexDigit(l.input[l.pos]) {
			l.pos++
		}
		return l.emit(tokNumber, start)
	}
	for l.pos < len(l.input) && (isDigit(l.input[l.pos]) || l.input[l.pos] == '.') {
		l.pos++
	}
	if c := l.peek(0); c == 'e' || c == 'E' {
		off := 1
		if s := l.peek(1); s == '+' || s == '-' {
			off = 2
		}
		if isDigit(l.peek(off)) {
			l.pos += off
			for l.pos < len(l.input) && isDigit(l.input[l.pos]) {
				l.pos++
			}
		}
	}
	return l.emit(tokNumber, start)
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || c == '@' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
