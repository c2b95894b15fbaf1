package condition

import (
	"fmt"
	"strconv"
	"strings"
)

// Grammar, lowest precedence first:
//
//	or         := and (("or" | "||") and)*
//	and        := not (("and" | "&&") not)*
//	not        := ("not" | "!") not | comparison
//	comparison := additive (cmpop additive)*        chained like a < b < c
//	additive   := term (("+" | "-") term)*
//	term       := unary (("*" | "/" | "%") unary)*
//	unary      := ("-" | "+") unary | primary
//	primary    := number | string | name | "(" or ")" | "[" list "]"
//
// cmpop is one of == != < <= > >= in, not in. There are no calls, no
// attribute access and no indexing.
type parser struct {
	toks  []token
	pos   int
	depth int
}

// MaxDepth bounds how deeply parentheses, lists and prefix operators may
// nest.
const MaxDepth = 200

// descend is called on entry to every recursive rule; the returned func
// undoes it.
func (p *parser) descend() (func(), error) {
	p.depth++
	if p.depth > MaxDepth {
		p.depth--
		return nil, &SyntaxError{Pos: p.peek().pos, Msg: fmt.Sprintf("expression nested deeper than %d", MaxDepth)}
	}
	return func() { p.depth-- }, nil
}

func parse(src string) (node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	n, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, &SyntaxError{Pos: tok.pos, Msg: fmt.Sprintf("unexpected %s", tok)}
	}
	return n, nil
}

func (p *parser) peek() token {
	return p.toks[p.pos]
}

func (p *parser) peekAt(offset int) token {
	if p.pos+offset >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+offset]
}

func (p *parser) next() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) isOp(ops ...string) bool {
	tok := p.peek()
	if tok.kind != tokOp {
		return false
	}
	for _, op := range ops {
		if tok.text == op {
			return true
		}
	}
	return false
}

func (p *parser) isKeyword(words ...string) bool {
	tok := p.peek()
	if tok.kind != tokIdent {
		return false
	}
	for _, w := range words {
		if tok.text == w {
			return true
		}
	}
	return false
}

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("or") || p.isOp("||") {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &logicalNode{op: "or", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("and") || p.isOp("&&") {
		p.next()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &logicalNode{op: "and", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (node, error) {
	up, err := p.descend()
	if err != nil {
		return nil, err
	}
	defer up()
	if p.isKeyword("not") || p.isOp("!") {
		p.next()
		operand, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &notNode{operand: operand}, nil
	}
	return p.parseComparison()
}

func (p *parser) comparisonOp() (string, bool) {
	if p.isOp("==", "!=", "<", "<=", ">", ">=") {
		return p.next().text, true
	}
	if p.isKeyword("in") {
		p.next()
		return "in", true
	}
	if p.isKeyword("not") {
		if nxt := p.peekAt(1); nxt.kind == tokIdent && nxt.text == "in" {
			p.next()
			p.next()
			return "not in", true
		}
	}
	return "", false
}

func (p *parser) parseComparison() (node, error) {
	first, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	cmp := &compareNode{operands: []node{first}}
	for {
		op, ok := p.comparisonOp()
		if !ok {
			break
		}
		operand, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		cmp.ops = append(cmp.ops, op)
		cmp.operands = append(cmp.operands, operand)
	}
	if len(cmp.ops) == 0 {
		return first, nil
	}
	return cmp, nil
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for p.isOp("+", "-") {
		op := p.next().text
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = &arithNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isOp("*", "/", "%") {
		op := p.next().text
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &arithNode{op: op, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	up, err := p.descend()
	if err != nil {
		return nil, err
	}
	defer up()
	if p.isOp("-", "+") {
		op := p.next().text
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &negNode{op: op, operand: operand}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		return parseNumber(tok)

	case tokString:
		return &literalNode{value: tok.text}, nil

	case tokIdent:
		switch tok.text {
		case "true", "True":
			return &literalNode{value: true}, nil
		case "false", "False":
			return &literalNode{value: false}, nil
		case "None", "null", "nil":
			return &literalNode{value: nil}, nil
		case "and", "or", "not", "in":
			return nil, &SyntaxError{Pos: tok.pos, Msg: fmt.Sprintf("unexpected keyword %q", tok.text)}
		}
		return &nameNode{name: tok.text}, nil

	case tokLParen:
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, &SyntaxError{Pos: closing.pos, Msg: fmt.Sprintf("expected ) but found %s", closing)}
		}
		return inner, nil

	case tokLBracket:
		list := &listNode{}
		if p.peek().kind == tokRBracket {
			p.next()
			return list, nil
		}
		for {
			item, err := p.parseOr()
			if err != nil {
				return nil, err
			}
			list.items = append(list.items, item)
			sep := p.next()
			if sep.kind == tokRBracket {
				return list, nil
			}
			if sep.kind != tokComma {
				return nil, &SyntaxError{Pos: sep.pos, Msg: fmt.Sprintf("expected , or ] but found %s", sep)}
			}
		}
	}
	return nil, &SyntaxError{Pos: tok.pos, Msg: fmt.Sprintf("unexpected %s", tok)}
}

func parseNumber(tok token) (node, error) {
	if !strings.ContainsAny(tok.text, ".eE") {
		if i, err := strconv.ParseInt(tok.text, 10, 64); err == nil {
			return &literalNode{value: i}, nil
		}
	}
	f, err := strconv.ParseFloat(tok.text, 64)
	if err != nil {
		return nil, &SyntaxError{Pos: tok.pos, Msg: fmt.Sprintf("invalid number %q", tok.text)}
	}
	return &literalNode{value: f}, nil
}
