package ftlex

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/pix3l-p33p3r/ft-lex/lexer"
)

// InitialCondition is the start condition scanning begins in.
const InitialCondition = "INITIAL"

var (
	backrefReplace = regexp.MustCompile(`(\\+)(\d)`)
)

// Option for modifying how the Definition works.
type Option func(d *Definition)

// InitialState overrides the default initial start condition of "INITIAL".
func InitialState(state string) Option {
	return func(d *Definition) {
		d.initialState = state
	}
}

// Inclusive marks start conditions as inclusive.
//
// The rules of the initial condition are appended to the rules of an inclusive
// condition, so they remain active while it is in effect.
func Inclusive(conditions ...string) Option {
	return func(d *Definition) {
		d.inclusive = append(d.inclusive, conditions...)
	}
}

// NoDefault disables the default rule of echoing unmatched input.
//
// Unmatched input becomes an error instead.
func NoDefault() Option {
	return func(d *Definition) {
		d.noDefault = true
	}
}

// A Rule matching input and possibly changing state.
type Rule struct {
	Name    string
	Pattern string
	Action  Action
}

// Rules grouped by start condition.
type Rules map[string][]Rule

// compiledRule is a Rule with its pattern compiled.
type compiledRule struct {
	Rule
	ignore  bool
	bol     bool
	eol     bool
	pattern string
	RE      *regexp.Regexp
}

// compiledRules grouped by start condition.
type compiledRules map[string][]compiledRule

type include struct{ state string }

func (i include) applyAction(s *Scanner, groups []string) error { panic("should not be called") }

// includeExpander replaces include rules with the rules of the condition they
// name, recursively.
type includeExpander struct {
	rules    compiledRules
	expanded compiledRules
	active   map[string]bool
}

func expandIncludes(rules compiledRules) error {
	e := &includeExpander{rules: rules, expanded: compiledRules{}, active: map[string]bool{}}
	states := make([]string, 0, len(rules))
	for state := range rules {
		states = append(states, state)
	}
	sort.Strings(states)
	for _, state := range states {
		if _, err := e.expand(state); err != nil {
			return err
		}
	}
	for state, expanded := range e.expanded {
		rules[state] = expanded
	}
	return nil
}

func (e *includeExpander) expand(state string) ([]compiledRule, error) {
	if out, ok := e.expanded[state]; ok {
		return out, nil
	}
	e.active[state] = true
	defer delete(e.active, state)
	out := make([]compiledRule, 0, len(e.rules[state]))
	for i, rule := range e.rules[state] {
		inc, ok := rule.Action.(include)
		if !ok {
			out = append(out, rule)
			continue
		}
		if _, ok := e.rules[inc.state]; !ok {
			return nil, fmt.Errorf("%s.%d: invalid include state %q", state, i, inc.state)
		}
		if e.active[inc.state] {
			return nil, fmt.Errorf("%s.%d: recursive include of %q", state, i, inc.state)
		}
		included, err := e.expand(inc.state)
		if err != nil {
			return nil, err
		}
		out = append(out, included...)
	}
	e.expanded[state] = out
	return out, nil
}

// Include rules from another start condition in this one.
func Include(state string) Rule {
	return Rule{Action: include{state}}
}

// Definition is a compiled rule table.
//
// A Definition is immutable once built and may be shared by any number of Scanners.
type Definition struct {
	rules   compiledRules
	symbols map[string]rune
	// Map of key->*regexp.Regexp
	backrefCache sync.Map
	initialState string
	inclusive    []string
	noDefault    bool
}

var _ lexer.Definition = &Definition{}

// MustSimple creates a new Definition with a single "INITIAL" condition described by `rules`.
// panics if the rules trigger an error
func MustSimple(rules []Rule, options ...Option) *Definition {
	def, err := NewSimple(rules, options...)
	if err != nil {
		panic(err)
	}
	return def
}

// Must creates a new Definition and panics if it is incorrect.
func Must(rules Rules, options ...Option) *Definition {
	def, err := New(rules, options...)
	if err != nil {
		panic(err)
	}
	return def
}

// NewSimple creates a new Definition with a single "INITIAL" condition.
func NewSimple(rules []Rule, options ...Option) (*Definition, error) {
	return New(Rules{InitialCondition: rules}, options...)
}

// New compiles rules into a Definition.
func New(rules Rules, options ...Option) (*Definition, error) {
	d := &Definition{
		initialState: InitialCondition,
	}
	for _, option := range options {
		option(d)
	}
	compiled := compiledRules{}
	for key, set := range rules {
		compiled[key] = make([]compiledRule, 0, len(set))
		for i, rule := range set {
			cr, err := compileRule(rule)
			if err != nil {
				return nil, fmt.Errorf("%s.%d: %s", key, i, err)
			}
			compiled[key] = append(compiled[key], cr)
		}
	}
	if err := expandIncludes(compiled); err != nil {
		return nil, err
	}
	if _, ok := compiled[d.initialState]; !ok {
		return nil, fmt.Errorf("missing rules for initial condition %q", d.initialState)
	}
	for _, state := range d.inclusive {
		if state == d.initialState {
			continue
		}
		compiled[state] = append(compiled[state], compiled[d.initialState]...)
	}
	keys := make([]string, 0, len(compiled))
	for key := range compiled {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	symbols := map[string]rune{
		"EOF": lexer.EOF,
	}
	duplicates := map[string]compiledRule{}
	rn := lexer.EOF - 1
	for _, key := range keys {
		for i, rule := range compiled[key] {
			if action, ok := rule.Action.(conditionAction); ok {
				for _, target := range action.conditions() {
					if _, ok := compiled[target]; !ok {
						return nil, fmt.Errorf("%s.%d: rule %q refers to unknown start condition %q", key, i, rule.Name, target)
					}
				}
			}
			if rule.ignore {
				continue
			}
			if dup, ok := duplicates[rule.Name]; ok {
				if rule.Pattern != dup.Pattern {
					return nil, fmt.Errorf("%s.%d: duplicate rule %q with different patterns %q != %q", key, i, rule.Name, rule.Pattern, dup.Pattern)
				}
				continue
			}
			duplicates[rule.Name] = rule
			symbols[rule.Name] = rn
			rn--
		}
	}
	d.rules = compiled
	d.symbols = symbols
	return d, nil
}

func compileRule(rule Rule) (compiledRule, error) {
	cr := compiledRule{
		Rule:    rule,
		ignore:  rule.Name == "" || unicode.IsLower(rune(rule.Name[0])),
		pattern: rule.Pattern,
	}
	if _, ok := rule.Action.(include); ok {
		return cr, nil
	}
	if strings.HasPrefix(cr.pattern, "^") {
		cr.bol = true
		cr.pattern = cr.pattern[1:]
	}
	if trailingDollar(cr.pattern) {
		cr.eol = true
		cr.pattern = cr.pattern[:len(cr.pattern)-1]
	}
	if cr.pattern == "" {
		return cr, fmt.Errorf("rule %q has an empty pattern", rule.Name)
	}
	match := backrefReplace.FindStringSubmatch(cr.pattern)
	if match == nil || len(match[1])%2 == 0 {
		re, err := compilePattern(cr.pattern)
		if err != nil {
			return cr, err
		}
		cr.RE = re
	}
	return cr, nil
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")")
	if err != nil {
		return nil, err
	}
	re.Longest()
	return re, nil
}

// trailingDollar reports whether pattern ends with an unescaped "$".
func trailingDollar(pattern string) bool {
	if !strings.HasSuffix(pattern, "$") {
		return false
	}
	backslashes := 0
	for i := len(pattern) - 2; i >= 0 && pattern[i] == '\\'; i-- {
		backslashes++
	}
	return backslashes%2 == 0
}

// Rules returns the user-provided Rules used to construct the Definition, with
// includes and inclusive conditions expanded.
func (d *Definition) Rules() Rules {
	out := Rules{}
	for state, rules := range d.rules {
		for _, rule := range rules {
			out[state] = append(out[state], rule.Rule)
		}
	}
	return out
}

// Conditions returns the sorted names of all start conditions.
func (d *Definition) Conditions() []string {
	out := make([]string, 0, len(d.rules))
	for state := range d.rules {
		out = append(out, state)
	}
	sort.Strings(out)
	return out
}

func (d *Definition) Symbols() map[string]rune { // nolint: golint
	return d.symbols
}

func (d *Definition) Lex(filename string, r io.Reader) (lexer.Lexer, error) { // nolint: golint
	return d.NewScanner(r, Filename(filename)), nil
}

// LexString returns a Scanner over a string.
func (d *Definition) LexString(filename string, s string) (lexer.Lexer, error) {
	return d.NewScanner(strings.NewReader(s), Filename(filename)), nil
}

// LexBytes returns a Scanner over a byte slice.
func (d *Definition) LexBytes(filename string, b []byte) (lexer.Lexer, error) {
	return d.NewScanner(bytes.NewReader(b), Filename(filename)), nil
}

func (d *Definition) getPattern(candidate *compiledRule, groups []string) (*regexp.Regexp, error) {
	if candidate.RE != nil {
		return candidate.RE, nil
	}

	// We don't have a compiled RE. This means there are back-references
	// that need to be substituted first.
	key := candidate.pattern + "\000" + strings.Join(groups, "\000")
	cached, ok := d.backrefCache.Load(key)
	if ok {
		return cached.(*regexp.Regexp), nil
	}

	var (
		re  *regexp.Regexp
		err error
	)
	pattern := backrefReplace.ReplaceAllStringFunc(candidate.pattern, func(s string) string {
		var rematch = backrefReplace.FindStringSubmatch(s)
		n, nerr := strconv.ParseInt(rematch[2], 10, 64)
		if nerr != nil {
			err = nerr
			return s
		}
		if len(groups) == 0 || int(n) >= len(groups) {
			err = fmt.Errorf("invalid group %d from parent with %d groups", n, len(groups))
			return s
		}
		// concatenate the leading \\\\ which are already escaped to the quoted match.
		return rematch[1][:len(rematch[1])-1] + regexp.QuoteMeta(groups[n])
	})
	if err == nil {
		re, err = compilePattern(pattern)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid backref expansion: %q: %s", pattern, err)
	}
	d.backrefCache.Store(key, re)
	return re, nil
}
