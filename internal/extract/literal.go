package extract

import "strings"

// Kind — лексическая категория значения в кортеже VALUES.
type Kind int

const (
	KindString Kind = iota // 'text'
	KindNumber             // 42, 3.14
	KindNull               // NULL
	KindBool               // TRUE, FALSE
	KindExpr               // всё остальное: вызовы функций, знаковые числа, идентификаторы
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	default:
		return "expr"
	}
}

// Literal — нормализованная ячейка: категория и отображаемый текст.
type Literal struct {
	Kind Kind
	Text string
}

// classify определяет категорию выражения по его лексемам.
// src — исходный текст, из которого вырезается текст выражения категории KindExpr.
func classify(toks []token, src string) Literal {
	if len(toks) == 0 {
		return Literal{Kind: KindExpr}
	}
	if len(toks) == 1 {
		tok := toks[0]
		switch {
		case tok.typ == tokString:
			return Literal{Kind: KindString, Text: tok.val}
		case tok.typ == tokNumber:
			return Literal{Kind: KindNumber, Text: tok.text}
		case tok.keyword("NULL"):
			return Literal{Kind: KindNull, Text: "NULL"}
		case tok.keyword("TRUE"):
			return Literal{Kind: KindBool, Text: "true"}
		case tok.keyword("FALSE"):
			return Literal{Kind: KindBool, Text: "false"}
		}
	}
	text := src[toks[0].pos:toks[len(toks)-1].end]
	return Literal{Kind: KindExpr, Text: strings.TrimSpace(text)}
}

// ParseLiteral нормализует одиночное значение, записанное текстом.
// Используется построчным разборщиком; незакрытая строка возвращается как есть.
func ParseLiteral(s string, backslash bool) Literal {
	s = strings.TrimSpace(s)
	toks := tokenize(s, backslash)
	for _, tok := range toks {
		if tok.typ == tokIllegal {
			return Literal{Kind: KindExpr, Text: s}
		}
	}
	return classify(toks, s)
}
