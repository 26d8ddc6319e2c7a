// Package expr evaluates small arithmetic formulas over named stat
// values. The grammar covers numeric literals, stat references, binary
// + - * /, parentheses, unary minus, and min/max with two or more
// arguments. Formulas are parsed once into an immutable node arena;
// re-evaluation against a new stat snapshot never re-parses.
package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/nathoo/duskcore/engine/fault"
)

type nodeKind int

const (
	nodeNum nodeKind = iota
	nodeStat
	nodeBinary
	nodeCall
)

// node is one arena entry. Children are arena indices, not pointers.
type node struct {
	kind  nodeKind
	value float64
	name  string // stat name or function name
	op    byte   // '+', '-', '*', '/'
	lhs   int
	rhs   int
	args  []int
}

// Expr is a compiled, immutable formula.
type Expr struct {
	src   string
	nodes []node
	root  int
}

// Source returns the original formula text.
func (e *Expr) Source() string { return e.src }

// Parse compiles a formula. Malformed input is a configuration error.
func Parse(src string) (*Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	root, err := p.expression()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fault.Configf("formula %q: unexpected %q", src, p.toks[p.pos].text)
	}
	return &Expr{src: src, nodes: p.nodes, root: root}, nil
}

// Eval evaluates the compiled formula against a stat snapshot.
// Unknown stat names resolve to 0. Division by zero is an evaluation
// error surfaced to the caller.
func (e *Expr) Eval(stats map[string]float64) (float64, error) {
	return e.eval(e.root, stats)
}

func (e *Expr) eval(idx int, stats map[string]float64) (float64, error) {
	n := e.nodes[idx]
	switch n.kind {
	case nodeNum:
		return n.value, nil

	case nodeStat:
		return stats[n.name], nil

	case nodeBinary:
		lhs, err := e.eval(n.lhs, stats)
		if err != nil {
			return 0, err
		}
		rhs, err := e.eval(n.rhs, stats)
		if err != nil {
			return 0, err
		}
		switch n.op {
		case '+':
			return lhs + rhs, nil
		case '-':
			return lhs - rhs, nil
		case '*':
			return lhs * rhs, nil
		case '/':
			if rhs == 0 {
				return 0, fault.Evalf("formula %q: division by zero", e.src)
			}
			return lhs / rhs, nil
		}
		return 0, fault.Evalf("formula %q: unknown operator %q", e.src, string(n.op))

	case nodeCall:
		best := 0.0
		for i, argIdx := range n.args {
			v, err := e.eval(argIdx, stats)
			if err != nil {
				return 0, err
			}
			if i == 0 {
				best = v
				continue
			}
			if n.name == "min" && v < best {
				best = v
			}
			if n.name == "max" && v > best {
				best = v
			}
		}
		return best, nil
	}
	return 0, fault.Evalf("formula %q: corrupt expression tree", e.src)
}

type tokKind int

const (
	tokNum tokKind = iota
	tokIdent
	tokOp     // + - * /
	tokLParen // (
	tokRParen // )
	tokComma
)

type token struct {
	kind tokKind
	text string
	num  float64
}

func lex(src string) ([]token, error) {
	var toks []token
	runes := []rune(src)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++

		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "("})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")"})
			i++
		case r == ',':
			toks = append(toks, token{kind: tokComma, text: ","})
			i++
		case r == '+' || r == '-' || r == '*' || r == '/':
			toks = append(toks, token{kind: tokOp, text: string(r)})
			i++

		case unicode.IsDigit(r) || r == '.':
			start := i
			for i < len(runes) && (unicode.IsDigit(runes[i]) || runes[i] == '.') {
				i++
			}
			text := string(runes[start:i])
			num, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, fault.Configf("formula %q: bad number %q", src, text)
			}
			toks = append(toks, token{kind: tokNum, text: text, num: num})

		case isIdentRune(r):
			start := i
			for i < len(runes) && (isIdentRune(runes[i]) || unicode.IsDigit(runes[i])) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: string(runes[start:i])})

		default:
			return nil, fault.Configf("formula %q: unexpected character %q", src, string(r))
		}
	}
	return toks, nil
}

// isIdentRune accepts any letter (including CJK stat names) and '_'.
func isIdentRune(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

type parser struct {
	src   string
	toks  []token
	pos   int
	nodes []node
}

func (p *parser) push(n node) int {
	p.nodes = append(p.nodes, n)
	return len(p.nodes) - 1
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

// expression := term (('+'|'-') term)*
func (p *parser) expression() (int, error) {
	lhs, err := p.term()
	if err != nil {
		return 0, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokOp || (t.text != "+" && t.text != "-") {
			return lhs, nil
		}
		p.pos++
		rhs, err := p.term()
		if err != nil {
			return 0, err
		}
		lhs = p.push(node{kind: nodeBinary, op: t.text[0], lhs: lhs, rhs: rhs})
	}
}

// term := factor (('*'|'/') factor)*
func (p *parser) term() (int, error) {
	lhs, err := p.factor()
	if err != nil {
		return 0, err
	}
	for {
		t, ok := p.peek()
		if !ok || t.kind != tokOp || (t.text != "*" && t.text != "/") {
			return lhs, nil
		}
		p.pos++
		rhs, err := p.factor()
		if err != nil {
			return 0, err
		}
		lhs = p.push(node{kind: nodeBinary, op: t.text[0], lhs: lhs, rhs: rhs})
	}
}

// factor := number | stat | func '(' args ')' | '(' expression ')' | '-' factor
func (p *parser) factor() (int, error) {
	t, ok := p.peek()
	if !ok {
		return 0, fault.Configf("formula %q: unexpected end of input", p.src)
	}

	switch t.kind {
	case tokNum:
		p.pos++
		return p.push(node{kind: nodeNum, value: t.num}), nil

	case tokOp:
		if t.text != "-" {
			return 0, fault.Configf("formula %q: unexpected %q", p.src, t.text)
		}
		// Unary minus: 0 - factor.
		p.pos++
		operand, err := p.factor()
		if err != nil {
			return 0, err
		}
		zero := p.push(node{kind: nodeNum, value: 0})
		return p.push(node{kind: nodeBinary, op: '-', lhs: zero, rhs: operand}), nil

	case tokLParen:
		p.pos++
		inner, err := p.expression()
		if err != nil {
			return 0, err
		}
		if err := p.expect(tokRParen, ")"); err != nil {
			return 0, err
		}
		return inner, nil

	case tokIdent:
		name := t.text
		p.pos++
		lower := strings.ToLower(name)
		if lower == "min" || lower == "max" {
			return p.call(lower)
		}
		return p.push(node{kind: nodeStat, name: name}), nil
	}
	return 0, fault.Configf("formula %q: unexpected %q", p.src, t.text)
}

// call := '(' expression (',' expression)+ ')'
func (p *parser) call(name string) (int, error) {
	if err := p.expect(tokLParen, "("); err != nil {
		return 0, err
	}
	var args []int
	for {
		arg, err := p.expression()
		if err != nil {
			return 0, err
		}
		args = append(args, arg)
		t, ok := p.peek()
		if !ok {
			return 0, fault.Configf("formula %q: unterminated %s()", p.src, name)
		}
		if t.kind == tokComma {
			p.pos++
			continue
		}
		break
	}
	if err := p.expect(tokRParen, ")"); err != nil {
		return 0, err
	}
	if len(args) < 2 {
		return 0, fault.Configf("formula %q: %s() needs at least two arguments", p.src, name)
	}
	return p.push(node{kind: nodeCall, name: name, args: args}), nil
}

func (p *parser) expect(kind tokKind, text string) error {
	t, ok := p.peek()
	if !ok || t.kind != kind {
		got := "end of input"
		if ok {
			got = fmt.Sprintf("%q", t.text)
		}
		return fault.Configf("formula %q: expected %q, got %s", p.src, text, got)
	}
	p.pos++
	return nil
}
