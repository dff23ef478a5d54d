// Package ebnf builds ftlex rules from an EBNF grammar.
//
// The grammar syntax is that of "golang.org/x/exp/ebnf". Upper-case
// productions become rules of the INITIAL start condition, in the order they
// appear in the grammar. Lower-case productions are fragments, inlined
// wherever they are referenced.
//
//	Ident = alpha { alpha | digit } .
//	Number = digit { digit } .
//	whitespace = " " | "\t" | "\n" .
//	alpha = "a"…"z" | "A"…"Z" | "_" .
//	digit = "0"…"9" .
//
// Productions are translated to regular expressions, so the grammar must not
// be recursive.
package ebnf

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/exp/ebnf"

	"github.com/pix3l-p33p3r/ft-lex"
	"github.com/pix3l-p33p3r/ft-lex/lexer"
)

// Rules parses an EBNF grammar into rules for the INITIAL start condition.
func Rules(filename string, r io.Reader) (ftlex.Rules, error) {
	grammar, err := ebnf.Parse(filename, r)
	if err != nil {
		return nil, err
	}
	exported := []*ebnf.Production{}
	for name, production := range grammar {
		if isExported(name) {
			exported = append(exported, production)
		}
	}
	sort.Slice(exported, func(i, j int) bool {
		return exported[i].Pos().Offset < exported[j].Pos().Offset
	})
	t := &translator{
		grammar:   grammar,
		fragments: map[string]term{},
		active:    map[string]bool{},
	}
	rules := make([]ftlex.Rule, 0, len(exported))
	for _, production := range exported {
		pattern, err := t.production(production)
		if err != nil {
			return nil, err
		}
		rules = append(rules, ftlex.Rule{Name: production.Name.String, Pattern: pattern.re})
	}
	return ftlex.Rules{ftlex.InitialCondition: rules}, nil
}

// New parses an EBNF grammar and compiles it into a Definition.
func New(filename string, r io.Reader, options ...ftlex.Option) (*ftlex.Definition, error) {
	rules, err := Rules(filename, r)
	if err != nil {
		return nil, err
	}
	return ftlex.New(rules, options...)
}

// NewString is New for a grammar held in a string.
func NewString(grammar string, options ...ftlex.Option) (*ftlex.Definition, error) {
	return New("", strings.NewReader(grammar), options...)
}

func isExported(name string) bool {
	rn, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(rn)
}

// A term is a translated expression. Atomic terms can be quantified without
// wrapping them in a group.
type term struct {
	re     string
	atomic bool
}

func (t term) group() string {
	if t.atomic {
		return t.re
	}
	return "(?:" + t.re + ")"
}

type translator struct {
	grammar   ebnf.Grammar
	fragments map[string]term
	active    map[string]bool
}

func (t *translator) production(production *ebnf.Production) (term, error) {
	name := production.Name.String
	if translated, ok := t.fragments[name]; ok {
		return translated, nil
	}
	if t.active[name] {
		return term{}, lexer.Errorf(lexer.Position(production.Pos()), "recursive production %q", name)
	}
	t.active[name] = true
	defer delete(t.active, name)
	translated, err := t.translate(production.Expr)
	if err != nil {
		return term{}, err
	}
	if translated.re == "" {
		return term{}, lexer.Errorf(lexer.Position(production.Pos()), "production %q matches nothing", name)
	}
	t.fragments[name] = translated
	return translated, nil
}

func (t *translator) translate(expr ebnf.Expression) (term, error) { // nolint: gocyclo
	switch n := expr.(type) {
	case nil:
		return term{atomic: true}, nil

	case ebnf.Alternative:
		if class, ok := characterClass(n); ok {
			return term{re: class, atomic: true}, nil
		}
		parts := make([]string, 0, len(n))
		for _, e := range n {
			alt, err := t.translate(e)
			if err != nil {
				return term{}, err
			}
			parts = append(parts, alt.re)
		}
		return term{re: "(?:" + strings.Join(parts, "|") + ")", atomic: true}, nil

	case ebnf.Sequence:
		if len(n) == 1 {
			return t.translate(n[0])
		}
		out := &strings.Builder{}
		for _, e := range n {
			part, err := t.translate(e)
			if err != nil {
				return term{}, err
			}
			out.WriteString(part.re)
		}
		return term{re: out.String()}, nil

	case *ebnf.Group:
		body, err := t.translate(n.Body)
		if err != nil {
			return term{}, err
		}
		return term{re: body.group(), atomic: true}, nil

	case *ebnf.Option:
		body, err := t.translate(n.Body)
		if err != nil {
			return term{}, err
		}
		return term{re: body.group() + "?"}, nil

	case *ebnf.Repetition:
		body, err := t.translate(n.Body)
		if err != nil {
			return term{}, err
		}
		return term{re: body.group() + "*"}, nil

	case *ebnf.Name:
		production := t.grammar[n.String]
		if production == nil {
			return term{}, lexer.Errorf(lexer.Position(n.Pos()), "unknown production %q", n.String)
		}
		return t.production(production)

	case *ebnf.Range:
		start, end, err := rangeBounds(n)
		if err != nil {
			return term{}, err
		}
		return term{re: "[" + classRune(start) + "-" + classRune(end) + "]", atomic: true}, nil

	case *ebnf.Token:
		return term{
			re:     regexp.QuoteMeta(n.String),
			atomic: utf8.RuneCountInString(n.String) == 1,
		}, nil
	}
	return term{}, lexer.Errorf(lexer.Position(expr.Pos()), "unsupported EBNF expression %T", expr)
}

func rangeBounds(n *ebnf.Range) (rune, rune, error) {
	if utf8.RuneCountInString(n.Begin.String) != 1 {
		return 0, 0, lexer.Errorf(lexer.Position(n.Pos()), "start of range must be a single rune")
	}
	if utf8.RuneCountInString(n.End.String) != 1 {
		return 0, 0, lexer.Errorf(lexer.Position(n.Pos()), "end of range must be a single rune")
	}
	start, _ := utf8.DecodeRuneInString(n.Begin.String)
	end, _ := utf8.DecodeRuneInString(n.End.String)
	if start > end {
		return 0, 0, lexer.Errorf(lexer.Position(n.Pos()), "invalid range %q…%q", start, end)
	}
	return start, end, nil
}

// characterClass collapses an alternative of single runes and ranges into a
// character class.
func characterClass(alt ebnf.Alternative) (string, bool) {
	out := &strings.Builder{}
	out.WriteByte('[')
	for _, expr := range alt {
		switch n := expr.(type) {
		case *ebnf.Token:
			if utf8.RuneCountInString(n.String) != 1 {
				return "", false
			}
			rn, _ := utf8.DecodeRuneInString(n.String)
			out.WriteString(classRune(rn))
		case *ebnf.Range:
			start, end, err := rangeBounds(n)
			if err != nil {
				return "", false
			}
			fmt.Fprintf(out, "%s-%s", classRune(start), classRune(end))
		default:
			return "", false
		}
	}
	out.WriteByte(']')
	return out.String(), true
}

func classRune(rn rune) string {
	switch {
	case rn < utf8.RuneSelf && (unicode.IsLetter(rn) || unicode.IsDigit(rn)):
		return string(rn)
	case rn < utf8.RuneSelf && unicode.IsPrint(rn):
		return `\` + string(rn)
	case rn >= utf8.RuneSelf && unicode.IsPrint(rn):
		return string(rn)
	}
	return fmt.Sprintf(`\x{%x}`, rn)
}
