package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/alecthomas/repr"
	"github.com/op/go-logging"

	"github.com/pix3l-p33p3r/ft-lex"
	"github.com/pix3l-p33p3r/ft-lex/lexer"
	"github.com/pix3l-p33p3r/ft-lex/rulefile"
)

type scanCmd struct {
	Format      string   `short:"f" help:"Output format (text, json or repr)." enum:"text,json,repr" default:"text"`
	Elide       []string `short:"e" help:"Token types to drop from the output."`
	Join        []string `short:"j" help:"Token types whose adjacent tokens are printed as one."`
	Unquote     []string `short:"u" help:"Token types to unquote."`
	BufferSize  int      `help:"Size of input buffers." default:"16384"`
	Interactive bool     `short:"i" help:"Scan input as soon as it arrives rather than a buffer at a time."`
	Debug       bool     `short:"d" help:"Trace rule matching to the log."`

	Rules string   `arg:"" type:"existingfile" help:"Rule file (.json, .yaml, .toml or .ebnf)."`
	Input []string `arg:"" optional:"" help:"Files to scan, in order. Reads stdin if none are given."`
}

func (c *scanCmd) Help() string {
	return `
Scans the input files one after the other as a single stream, printing each
token. Text output has one token per line: position, token type and quoted
value. Input that no rule matches is echoed to stdout.
`
}

func (c *scanCmd) Run(env *environment) error {
	def, err := rulefile.Load(c.Rules)
	if err != nil {
		return err
	}
	inputs := &inputChain{paths: c.Input}
	var r io.Reader = env.stdin
	if len(c.Input) > 0 {
		if r, err = inputs.next(); err != nil {
			return err
		}
	}
	defer inputs.close()
	options := []ftlex.ScannerOption{
		ftlex.Output(env.stdout),
		ftlex.BufferSize(c.BufferSize),
		ftlex.Wrap(inputs.wrap),
	}
	if c.Interactive {
		options = append(options, ftlex.Interactive())
	}
	if c.Debug {
		logging.SetLevel(logging.DEBUG, "ftlex")
		options = append(options, ftlex.Debug(log))
	}
	var lex lexer.Lexer = def.NewScanner(r, options...)
	if len(c.Unquote) > 0 {
		types, err := symbolTypes(def, c.Unquote)
		if err != nil {
			return err
		}
		lex = lexer.Unquote(lex, types...)
	}
	elide, err := symbolTypes(def, c.Elide)
	if err != nil {
		return err
	}
	join, err := symbolTypes(def, c.Join)
	if err != nil {
		return err
	}
	tokens := &joiner{lex: lexer.Upgrade(lex, elide...), types: map[rune]bool{}}
	for _, rn := range join {
		tokens.types[rn] = true
	}
	printer := newTokenPrinter(c.Format, env.stdout, lexer.SymbolsByRune(def))
	count := 0
	for {
		token, err := tokens.next()
		if err != nil {
			return err
		}
		if inputs.err != nil {
			return inputs.err
		}
		if token.EOF() {
			break
		}
		if err := printer(token); err != nil {
			return err
		}
		count++
	}
	log.Infof("%d tokens from %d inputs", count, inputs.opened)
	return nil
}

// joiner merges runs of tokens of the same joinable type. Only tokens that are
// directly adjacent in the raw stream are merged, so an elided token between
// two of them keeps them apart.
type joiner struct {
	lex   *lexer.PeekingLexer
	types map[rune]bool
}

func (j *joiner) next() (lexer.Token, error) {
	token, err := j.lex.Next()
	if err != nil || token.EOF() || !j.types[token.Type] {
		return token, err
	}
	for {
		peek, err := j.lex.RawPeek(0)
		if err != nil {
			return token, err
		}
		if peek.EOF() || peek.Type != token.Type {
			return token, nil
		}
		if _, err := j.lex.Next(); err != nil {
			return token, err
		}
		token.Value += peek.Value
	}
}

func symbolTypes(def lexer.Definition, names []string) ([]rune, error) {
	if len(names) == 0 {
		return nil, nil
	}
	table, err := lexer.MakeSymbolTable(def, names...)
	if err != nil {
		return nil, err
	}
	types := make([]rune, 0, len(table))
	for rn := range table {
		types = append(types, rn)
	}
	return types, nil
}

// inputChain opens input files one at a time as the scanner wraps.
type inputChain struct {
	paths   []string
	current *os.File
	opened  int
	err     error
}

func (i *inputChain) next() (*os.File, error) {
	i.close()
	f, err := os.Open(i.paths[0])
	if err != nil {
		return nil, err
	}
	i.paths = i.paths[1:]
	i.current = f
	i.opened++
	log.Debugf("scanning %s", f.Name())
	return f, nil
}

func (i *inputChain) wrap(s *ftlex.Scanner) bool {
	if len(i.paths) == 0 || i.err != nil {
		i.close()
		return true
	}
	f, err := i.next()
	if err != nil {
		i.err = err
		return true
	}
	s.SetIn(f)
	s.SetLineno(1)
	return false
}

func (i *inputChain) close() {
	if i.current != nil {
		_ = i.current.Close()
		i.current = nil
	}
}

func typeName(names map[rune]string, typ rune) string {
	if name, ok := names[typ]; ok {
		return name
	}
	if typ >= 0 {
		return strconv.QuoteRune(typ)
	}
	return strconv.Itoa(int(typ))
}

type jsonToken struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	Filename string `json:"filename,omitempty"`
	Offset   int    `json:"offset"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

func newTokenPrinter(format string, w io.Writer, names map[rune]string) func(lexer.Token) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		return func(token lexer.Token) error {
			return enc.Encode(jsonToken{
				Type:     typeName(names, token.Type),
				Value:    token.Value,
				Filename: token.Pos.Filename,
				Offset:   token.Pos.Offset,
				Line:     token.Pos.Line,
				Column:   token.Pos.Column,
			})
		}
	case "repr":
		printer := repr.New(w)
		return func(token lexer.Token) error {
			printer.Println(token)
			return nil
		}
	}
	return func(token lexer.Token) error {
		_, err := fmt.Fprintf(w, "%s\t%s\t%q\n", token.Pos, typeName(names, token.Type), token.Value)
		return err
	}
}
