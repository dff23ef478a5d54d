package ftlex_test

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/alecthomas/repr"
	"github.com/stretchr/testify/require"

	"github.com/pix3l-p33p3r/ft-lex"
	"github.com/pix3l-p33p3r/ft-lex/lexer"
)

var wordRules = ftlex.Rules{
	"INITIAL": {
		{"Ident", `[a-z]+`, nil},
		{"whitespace", `\s+`, nil},
	},
}

func values(t *testing.T, s *ftlex.Scanner) []string {
	t.Helper()
	tokens, err := lexer.ConsumeAll(s)
	require.NoError(t, err)
	actual := []string{}
	for _, token := range tokens {
		if token.EOF() {
			break
		}
		actual = append(actual, token.Value)
	}
	return actual
}

func TestScanner(t *testing.T) {
	tests := []struct {
		name    string
		rules   ftlex.Rules
		options []ftlex.Option
		input   string
		tokens  []string
		output  string
		err     string
	}{
		{name: "LongestMatch",
			rules: ftlex.Rules{"INITIAL": {
				{"If", `if`, nil},
				{"Ident", `[a-z]+`, nil},
				{"whitespace", `\s+`, nil},
			}},
			input:  "if iffy",
			tokens: []string{"if", "iffy"},
		},
		{name: "DefaultRuleEchoes",
			rules:  ftlex.Rules{"INITIAL": {{"Number", `[0-9]+`, nil}}},
			input:  "a1b22c",
			tokens: []string{"1", "22"},
			output: "abc",
		},
		{name: "NoDefault",
			rules:   ftlex.Rules{"INITIAL": {{"Number", `[0-9]+`, nil}}},
			options: []ftlex.Option{ftlex.NoDefault()},
			input:   "1x",
			err:     `1:2: invalid input text "x"`,
		},
		{name: "Echo",
			rules: ftlex.Rules{"INITIAL": {
				{"word", `[a-z]+`, ftlex.Echo()},
				{"number", `[0-9]+`, nil},
			}},
			input:  "ab12cd",
			tokens: []string{},
			output: "abcd",
		},
		{name: "BeginningAndEndOfLine",
			rules: ftlex.Rules{"INITIAL": {
				{"Header", `^#[a-z]+`, nil},
				{"Hash", `#`, nil},
				{"Word", `[a-z]+`, nil},
				{"Trailing", `;$`, nil},
				{"Semi", `;`, nil},
				{"space", `[ \n]`, nil},
			}},
			input:  "#ab #cd;\n;x",
			tokens: []string{"#ab", "#", "cd", ";", ";", "x"},
		},
		{name: "StartConditions",
			rules: ftlex.Rules{
				"INITIAL": {
					{"Quote", `"`, ftlex.Begin("STR")},
					{"Ident", `[a-z]+`, nil},
				},
				"STR": {
					{"Chars", `[^"]+`, nil},
					{"EndQuote", `"`, ftlex.Begin("INITIAL")},
				},
			},
			input:  `a"b c"d`,
			tokens: []string{"a", `"`, "b c", `"`, "d"},
		},
		{name: "Recursive",
			rules: ftlex.Rules{
				"INITIAL": {
					{`String`, `"`, ftlex.Push("String")},
				},
				"String": {
					{"Escaped", `\\.`, nil},
					{"StringEnd", `"`, ftlex.Pop()},
					{"Expr", `\${`, ftlex.Push("Expr")},
					{"Char", `[^$"\\]+`, nil},
				},
				"Expr": {
					ftlex.Include("INITIAL"),
					{`Whitespace`, `\s+`, nil},
					{`Oper`, `[-+/*%]`, nil},
					{"Ident", `\w+`, nil},
					{"ExprEnd", `}`, ftlex.Pop()},
				},
			},
			input:  `"hello ${user + "??" + "${nested}"}"`,
			tokens: []string{"\"", "hello ", "${", "user", " ", "+", " ", "\"", "??", "\"", " ", "+", " ", "\"", "${", "nested", "}", "\"", "}", "\""},
		},
		{name: "Heredoc",
			rules: ftlex.Rules{
				"INITIAL": {
					{"Heredoc", `<<(\w+)`, ftlex.Push("Heredoc")},
					ftlex.Include("Common"),
				},
				"Heredoc": {
					{"End", `\b\1\b`, ftlex.Pop()},
					ftlex.Include("Common"),
				},
				"Common": {
					{"Whitespace", `\s+`, nil},
					{"Ident", `\w+`, nil},
				},
			},
			input:  "<<END\nhello END\nEND",
			tokens: []string{"<<END", "\n", "hello", " ", "END", "\n", "END"},
		},
		{name: "BackrefInvalidGroups",
			rules: ftlex.Rules{
				"INITIAL": {
					{"Heredoc", `<<(\w+)\b`, ftlex.Push("Heredoc")},
				},
				"Heredoc": {
					{"End", `\b\2\b`, ftlex.Pop()},
				},
			},
			input: `<<EOF EOF`,
			err:   "1:6: rule \"End\": invalid backref expansion: \"\\\\b\\\\2\\\\b\": invalid group 2 from parent with 2 groups",
		},
		{name: "PopUnderflow",
			rules: ftlex.Rules{"INITIAL": {{"Close", `\)`, ftlex.Pop()}}},
			input: ")",
			err:   `1:1: rule "Close": start condition stack underflow`,
		},
		{name: "Emit",
			rules: ftlex.Rules{"INITIAL": {
				{"plus", `\+`, ftlex.Emit('+')},
				{"Number", `[0-9]+`, nil},
			}},
			input:  "1+2",
			tokens: []string{"1", "+", "2"},
		},
		{name: "Less",
			rules: ftlex.Rules{"INITIAL": {
				{"Foo", `foobar`, ftlex.Less(3)},
				{"Bar", `bar`, nil},
			}},
			input:  "foobar",
			tokens: []string{"foo", "bar"},
		},
		{name: "More",
			rules: ftlex.Rules{"INITIAL": {
				{"hyphenated", `[a-z]+-`, ftlex.More()},
				{"Word", `[a-z]+`, nil},
			}},
			input:  "hyper-text",
			tokens: []string{"hyper-text"},
		},
	}
	// nolint: scopelint
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			def, err := ftlex.New(test.rules, test.options...)
			require.NoError(t, err)
			out := &bytes.Buffer{}
			s := def.NewScanner(strings.NewReader(test.input), ftlex.Output(out))
			tokens, err := lexer.ConsumeAll(s)
			if test.err != "" {
				require.EqualError(t, err, test.err)
				return
			}
			require.NoError(t, err, repr.String(tokens))
			actual := []string{}
			for _, token := range tokens {
				if token.EOF() {
					break
				}
				actual = append(actual, token.Value)
			}
			require.Equal(t, test.tokens, actual)
			require.Equal(t, test.output, out.String())
		})
	}
}

func TestTokenTypesAndPositions(t *testing.T) {
	def := ftlex.MustSimple([]ftlex.Rule{
		{"If", `if`, nil},
		{"Ident", `[a-z]+`, nil},
		{"whitespace", `\s+`, nil},
	})
	s := def.NewScanner(strings.NewReader("if\n  iffy"), ftlex.Filename("test.l"))
	tokens, err := lexer.ConsumeAll(s)
	require.NoError(t, err)
	require.Equal(t, []lexer.Token{
		{Type: def.Symbols()["If"], Value: "if", Pos: lexer.Position{Filename: "test.l", Offset: 0, Line: 1, Column: 1}},
		{Type: def.Symbols()["Ident"], Value: "iffy", Pos: lexer.Position{Filename: "test.l", Offset: 5, Line: 2, Column: 3}},
		lexer.EOFToken(lexer.Position{Filename: "test.l", Offset: 9, Line: 2, Column: 7}),
	}, tokens)
	require.Equal(t, 2, s.Lineno())
}

func TestTextAndLeng(t *testing.T) {
	var seen []string
	def := ftlex.MustSimple([]ftlex.Rule{
		{"Word", `\pL+`, ftlex.Func(func(s *ftlex.Scanner) error {
			seen = append(seen, s.Text())
			require.Equal(t, len(s.Text()), s.Leng())
			return nil
		})},
		{"whitespace", `\s+`, nil},
	})
	s := def.NewScanner(strings.NewReader("héllo wörld"))
	require.Equal(t, []string{"héllo", "wörld"}, values(t, s))
	require.Equal(t, []string{"héllo", "wörld"}, seen)
	require.Equal(t, 6, s.Leng())
}

func TestSmallBufferGrowsForLongTokens(t *testing.T) {
	def := ftlex.Must(wordRules)
	s := def.NewScanner(strings.NewReader("hello world foo"), ftlex.BufferSize(4))
	require.Equal(t, []string{"hello", "world", "foo"}, values(t, s))
}

func TestMaxTokenSizeSplitsTokens(t *testing.T) {
	def := ftlex.Must(wordRules)
	s := def.NewScanner(strings.NewReader("abcdefghij"), ftlex.BufferSize(4), ftlex.MaxTokenSize(8))
	require.Equal(t, []string{"abcdefgh", "ij"}, values(t, s))
}

func TestInteractive(t *testing.T) {
	def := ftlex.Must(wordRules)
	r := iotest.OneByteReader(strings.NewReader("one two\nthree\n"))
	s := def.NewScanner(r, ftlex.Interactive())
	require.Equal(t, []string{"one", "two", "three"}, values(t, s))
}

func TestWrapChainsInputs(t *testing.T) {
	inputs := []io.Reader{strings.NewReader("three four")}
	calls := 0
	def := ftlex.Must(wordRules)
	s := def.NewScanner(strings.NewReader("one two "), ftlex.Wrap(func(s *ftlex.Scanner) bool {
		calls++
		if len(inputs) == 0 {
			return true
		}
		s.SetIn(inputs[0])
		inputs = inputs[1:]
		return false
	}))
	require.Equal(t, []string{"one", "two", "three", "four"}, values(t, s))
	require.Equal(t, 2, calls)
}

func TestInputConsumesComments(t *testing.T) {
	def := ftlex.MustSimple([]ftlex.Rule{
		{"Comment", `/\*`, ftlex.Func(func(s *ftlex.Scanner) error {
			var prev byte
			for {
				c, err := s.Input()
				if err != nil {
					return err
				}
				if prev == '*' && c == '/' {
					s.Skip()
					return nil
				}
				prev = c
			}
		})},
		{"Ident", `[a-z]+`, nil},
		{"whitespace", `\s+`, nil},
	})
	s := def.NewScanner(strings.NewReader("a /* x\ny */ b"))
	tokens, err := lexer.ConsumeAll(s)
	require.NoError(t, err)
	require.Len(t, tokens, 3)
	require.Equal(t, "a", tokens[0].Value)
	require.Equal(t, "b", tokens[1].Value)
	require.Equal(t, lexer.Position{Offset: 12, Line: 2, Column: 6}, tokens[1].Pos)

	s = def.NewScanner(strings.NewReader("/* never closed"))
	_, err = lexer.ConsumeAll(s)
	require.Error(t, err)
	require.True(t, errors.Is(err, io.EOF) || strings.Contains(err.Error(), "EOF"), err.Error())
}

func TestInputAndOutput(t *testing.T) {
	out := &bytes.Buffer{}
	def := ftlex.Must(wordRules)
	s := def.NewScanner(strings.NewReader("ab"), ftlex.Output(out))
	c, err := s.Input()
	require.NoError(t, err)
	require.Equal(t, byte('a'), c)
	require.NoError(t, s.Output(c))
	c, err = s.Input()
	require.NoError(t, err)
	require.Equal(t, byte('b'), c)
	_, err = s.Input()
	require.Equal(t, io.EOF, err)
	require.Equal(t, "a", out.String())
}

func TestUnput(t *testing.T) {
	def := ftlex.MustSimple([]ftlex.Rule{
		{"X", `x`, ftlex.Func(func(s *ftlex.Scanner) error {
			s.Unput('y')
			s.Unput('y')
			return nil
		})},
		{"Y", `y+`, nil},
	})
	s := def.NewScanner(strings.NewReader("x"))
	require.Equal(t, []string{"x", "yy"}, values(t, s))
}

func TestUnputNewlineRewindsLine(t *testing.T) {
	def := ftlex.Must(wordRules)
	s := def.NewScanner(strings.NewReader("a\nb"))
	for i := 0; i < 2; i++ {
		_, err := s.Input()
		require.NoError(t, err)
	}
	require.Equal(t, 2, s.Lineno())
	s.Unput('\n')
	require.Equal(t, 1, s.Lineno())
	require.Equal(t, lexer.Position{Offset: 1, Line: 1, Column: 2}, s.Position())
}

func TestReject(t *testing.T) {
	rejected := 0
	def := ftlex.MustSimple([]ftlex.Rule{
		{"Keyword", `if`, ftlex.Actions(ftlex.Func(func(s *ftlex.Scanner) error {
			rejected++
			return nil
		}), ftlex.Reject())},
		{"Ident", `[a-z]+`, nil},
	})
	s := def.NewScanner(strings.NewReader("if"))
	token, err := s.Lex()
	require.NoError(t, err)
	require.Equal(t, def.Symbols()["Ident"], token.Type)
	require.Equal(t, "if", token.Value)
	require.Equal(t, 1, rejected)
}

func TestTerminate(t *testing.T) {
	def := ftlex.MustSimple([]ftlex.Rule{
		{"Stop", `stop`, ftlex.Terminate()},
		{"Ident", `[a-z]+`, nil},
		{"whitespace", `\s+`, nil},
	})
	s := def.NewScanner(strings.NewReader("a stop b"))
	var actual []string
	for i := 0; i < 4; i++ {
		token, err := s.Lex()
		require.NoError(t, err)
		actual = append(actual, token.String())
	}
	require.Equal(t, []string{"a", "<EOF>", "b", "<EOF>"}, actual)
}

func TestEmitRuneType(t *testing.T) {
	def := ftlex.MustSimple([]ftlex.Rule{
		{"plus", `\+`, ftlex.Emit('+')},
	})
	s := def.NewScanner(strings.NewReader("+"))
	token, err := s.Lex()
	require.NoError(t, err)
	require.Equal(t, lexer.Token{Type: '+', Value: "+", Pos: lexer.Position{Line: 1, Column: 1}}, token)
}

func TestConditionStack(t *testing.T) {
	def := ftlex.Must(ftlex.Rules{
		"INITIAL": wordRules["INITIAL"],
		"A":       wordRules["INITIAL"],
		"B":       wordRules["INITIAL"],
	})
	s := def.NewScanner(strings.NewReader(""))
	require.Equal(t, "INITIAL", s.Condition())
	require.Equal(t, "", s.TopCondition())
	s.PushCondition("A")
	s.PushCondition("B")
	require.Equal(t, "B", s.Condition())
	require.Equal(t, "A", s.TopCondition())
	s.Begin("INITIAL")
	require.Equal(t, "INITIAL", s.Condition())
	require.NoError(t, s.PopCondition())
	require.Equal(t, "A", s.Condition())
	require.NoError(t, s.PopCondition())
	require.Error(t, s.PopCondition())
}

func TestUnknownConditionAtRuntime(t *testing.T) {
	def := ftlex.Must(wordRules)
	s := def.NewScanner(strings.NewReader("a"))
	s.Begin("MISSING")
	_, err := s.Lex()
	require.EqualError(t, err, `1:1: unknown start condition "MISSING"`)
}

func TestLineno(t *testing.T) {
	def := ftlex.Must(wordRules)
	s := def.NewScanner(strings.NewReader("a\nb"))
	s.SetLineno(10)
	tokens, err := lexer.ConsumeAll(s)
	require.NoError(t, err)
	require.Equal(t, 10, tokens[0].Pos.Line)
	require.Equal(t, 11, tokens[1].Pos.Line)
	require.Equal(t, 11, s.Lineno())
}

func TestBOL(t *testing.T) {
	def := ftlex.MustSimple([]ftlex.Rule{
		{"Start", `^a`, nil},
		{"Other", `a`, nil},
	})
	s := def.NewScanner(strings.NewReader("aa"))
	require.True(t, s.AtBOL())
	token, err := s.Lex()
	require.NoError(t, err)
	require.Equal(t, def.Symbols()["Start"], token.Type)
	require.False(t, s.AtBOL())
	s.SetBOL(true)
	token, err = s.Lex()
	require.NoError(t, err)
	require.Equal(t, def.Symbols()["Start"], token.Type)
}

func TestReadError(t *testing.T) {
	def := ftlex.Must(wordRules)
	s := def.NewScanner(iotest.ErrReader(errors.New("boom")))
	_, err := s.Lex()
	require.EqualError(t, err, "1:1: read failed: boom")
	var lerr *lexer.Error
	require.True(t, errors.As(err, &lerr))
	require.Equal(t, "boom", errors.Unwrap(err).Error())
}

// stalledReader never returns data or an error.
type stalledReader struct{ reads int }

func (r *stalledReader) Read([]byte) (int, error) {
	r.reads++
	return 0, nil
}

func TestReaderWithoutProgress(t *testing.T) {
	def := ftlex.Must(wordRules)
	r := &stalledReader{}
	s := def.NewScanner(r)
	_, err := s.Lex()
	require.Error(t, err)
	require.True(t, errors.Is(err, io.ErrNoProgress))
	require.Equal(t, 100, r.reads)

	_, again := s.Lex()
	require.EqualError(t, again, err.Error())
	require.Equal(t, 100, r.reads, "read errors are not retried")
}

func TestLexerDefinition(t *testing.T) {
	def := lexer.Must(ftlex.New(wordRules))
	lex, err := def.Lex("words.txt", strings.NewReader("hi there"))
	require.NoError(t, err)
	tokens, err := lexer.ConsumeAll(lex)
	require.NoError(t, err)
	require.Equal(t, "words.txt:1:4", tokens[1].Pos.String())
}

func TestDebug(t *testing.T) {
	def := ftlex.Must(wordRules)
	s := def.NewScanner(strings.NewReader("a b"), ftlex.Debug(nil))
	require.Equal(t, []string{"a", "b"}, values(t, s))
}
