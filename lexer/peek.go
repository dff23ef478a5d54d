package lexer

// PeekingLexer adds lookahead and cloning to a Lexer.
//
// Tokens are read from the underlying Lexer only as far as Next and the peek
// methods need, so it can sit on top of interactive input. Every token read is
// kept, which is what lets clones rewind.
type PeekingLexer struct {
	src       *tokenBuffer
	rawCursor RawCursor
	cursor    int
	elide     map[rune]bool
}

// RawCursor index in the token stream, counting elided tokens.
type RawCursor int

var _ Lexer = &PeekingLexer{}

// tokenBuffer is shared by a PeekingLexer and its clones.
type tokenBuffer struct {
	lex    Lexer
	tokens []Token
	eof    Token
	done   bool
	err    error
}

// at returns token i of the stream, reading up to it if necessary, or the EOF
// token if the stream is shorter.
func (b *tokenBuffer) at(i int) (Token, error) {
	for i >= len(b.tokens) && !b.done && b.err == nil {
		t, err := b.lex.Next()
		switch {
		case err != nil:
			b.err = err
		case t.EOF():
			b.eof = t
			b.done = true
		default:
			b.tokens = append(b.tokens, t)
		}
	}
	if i < len(b.tokens) {
		return b.tokens[i], nil
	}
	if b.err != nil {
		return Token{}, b.err
	}
	return b.eof, nil
}

// Upgrade a Lexer to a PeekingLexer.
//
// Tokens of the "elide" types are skipped by Next and Peek but still seen by RawPeek.
func Upgrade(lex Lexer, elide ...rune) *PeekingLexer {
	p := &PeekingLexer{
		src:   &tokenBuffer{lex: lex},
		elide: make(map[rune]bool, len(elide)),
	}
	for _, rn := range elide {
		p.elide[rn] = true
	}
	return p
}

// Range returns the tokens between two cursors already passed by Next.
func (p *PeekingLexer) Range(rawStart, rawEnd RawCursor) []Token {
	return p.src.tokens[rawStart:rawEnd]
}

// Cursor counts the tokens returned by Next.
func (p *PeekingLexer) Cursor() int {
	return p.cursor
}

// RawCursor counts the tokens consumed, elided or not.
func (p *PeekingLexer) RawCursor() RawCursor {
	return p.rawCursor
}

// Next returns the next token that is not elided.
func (p *PeekingLexer) Next() (Token, error) {
	for {
		t, err := p.src.at(int(p.rawCursor))
		if err != nil || t.EOF() {
			return t, err
		}
		p.rawCursor++
		if p.elide[t.Type] {
			continue
		}
		p.cursor++
		return t, nil
	}
}

// Peek returns the token n places after the next one, skipping elided tokens.
// Peek(0) is the token Next would return.
func (p *PeekingLexer) Peek(n int) (Token, error) {
	for i := int(p.rawCursor); ; i++ {
		t, err := p.src.at(i)
		if err != nil || t.EOF() {
			return t, err
		}
		if p.elide[t.Type] {
			continue
		}
		if n == 0 {
			return t, nil
		}
		n--
	}
}

// RawPeek is Peek without skipping elided tokens.
func (p *PeekingLexer) RawPeek(n int) (Token, error) {
	return p.src.at(int(p.rawCursor) + n)
}

// Clone returns a PeekingLexer positioned at the same token.
//
// Clones advance independently; tokens read through one are available to all.
func (p *PeekingLexer) Clone() *PeekingLexer {
	clone := *p
	return &clone
}
