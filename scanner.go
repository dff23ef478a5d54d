package ftlex

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"unicode/utf8"

	"github.com/op/go-logging"

	"github.com/pix3l-p33p3r/ft-lex/lexer"
)

// WrapFunc is called when a Scanner reaches the end of its input.
//
// It returns true if scanning is finished. A WrapFunc that returns false must
// first have supplied new input with Scanner.SetIn; scanning then restarts on it.
type WrapFunc func(s *Scanner) bool

// ScannerOption configures a Scanner.
type ScannerOption func(s *Scanner)

// Output sets the writer that Echo, Output and the default rule write to.
//
// The default is os.Stdout.
func Output(w io.Writer) ScannerOption {
	return func(s *Scanner) { s.out = w }
}

// Wrap installs the end-of-input hook.
//
// Without one, scanning finishes at the end of the input.
func Wrap(fn WrapFunc) ScannerOption {
	return func(s *Scanner) { s.wrap = fn }
}

// BufferSize sets the size of buffers the Scanner creates itself.
func BufferSize(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.bufferSize = n
		}
	}
}

// MaxTokenSize bounds how far a buffer may grow to hold a single match.
func MaxTokenSize(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.maxTokenSize = n
		}
	}
}

// Interactive makes the Scanner read only as much input as it needs.
//
// Use it when input comes from a terminal or a network peer that waits for replies.
func Interactive() ScannerOption {
	return func(s *Scanner) { s.interactive = true }
}

// Filename names the initial input in token positions and errors.
func Filename(name string) ScannerOption {
	return func(s *Scanner) { s.filename = name }
}

type conditionState struct {
	name   string
	groups []string
}

// A Scanner matches the rules of a Definition against its input.
//
// A Scanner is not safe for concurrent use.
type Scanner struct {
	def          *Definition
	in           io.Reader
	out          io.Writer
	wrap         WrapFunc
	bufferSize   int
	maxTokenSize int
	interactive  bool
	filename     string
	debug        *logging.Logger

	// Top of the stack is the current buffer, which may be nil.
	buffers []*Buffer
	// Line reached by a current buffer that was deleted, carried into the
	// buffer that replaces it.
	deletedLine int
	stack   []conditionState

	text    string
	textPos lexer.Position
	textBOL bool

	hasPrefix bool
	prefix    string
	prefixPos lexer.Position

	// Per-match state set by actions.
	skip      bool
	reject    bool
	more      bool
	terminate bool
	emitted   bool
	emitType  rune
}

var _ lexer.Lexer = &Scanner{}

// NewScanner creates a Scanner reading from r.
//
// A nil r reads from os.Stdin.
func (d *Definition) NewScanner(r io.Reader, options ...ScannerOption) *Scanner {
	s := &Scanner{
		def:          d,
		in:           r,
		out:          os.Stdout,
		bufferSize:   DefaultBufferSize,
		maxTokenSize: DefaultMaxTokenSize,
		stack:        []conditionState{{name: d.initialState}},
	}
	for _, option := range options {
		option(s)
	}
	if s.in == nil {
		s.in = os.Stdin
	}
	if s.maxTokenSize < s.bufferSize {
		s.maxTokenSize = s.bufferSize
	}
	if s.filename != "" {
		b := s.CreateBuffer(s.in, s.bufferSize)
		b.name = s.filename
		b.position.Filename = s.filename
		s.buffers = append(s.buffers, b)
	}
	return s
}

// Definition the Scanner was created from.
func (s *Scanner) Definition() *Definition { return s.def }

// In returns the input new buffers are created from.
func (s *Scanner) In() io.Reader { return s.in }

// SetIn changes the input new buffers are created from.
//
// The current buffer is unaffected; use Restart to switch it to new input.
func (s *Scanner) SetIn(r io.Reader) { s.in = r }

// Out returns the writer for echoed text.
func (s *Scanner) Out() io.Writer { return s.out }

// SetOut changes the writer for echoed text.
func (s *Scanner) SetOut(w io.Writer) { s.out = w }

// Text of the current match.
func (s *Scanner) Text() string { return s.text }

// Leng is the length of the current match in bytes.
func (s *Scanner) Leng() int { return len(s.text) }

// Lineno is the line number of the next unread byte of the current buffer.
func (s *Scanner) Lineno() int {
	return s.current().position.Line
}

// SetLineno sets the line number of the current buffer.
func (s *Scanner) SetLineno(line int) {
	s.current().position.Line = line
}

// Position of the next unread byte of the current buffer.
func (s *Scanner) Position() lexer.Position {
	return s.currentPosition()
}

// TextPosition is the position of the start of the current match.
func (s *Scanner) TextPosition() lexer.Position { return s.textPos }

func (s *Scanner) currentPosition() lexer.Position {
	if b := s.CurrentBuffer(); b != nil {
		return b.position
	}
	return lexer.Position{}
}

// Next implements lexer.Lexer.
func (s *Scanner) Next() (lexer.Token, error) {
	return s.Lex()
}

// Lex scans the next token.
//
// The longest match among the rules of the current start condition wins, ties
// going to the earlier rule. The rule's action runs with the match as Text;
// unless the match is skipped or rejected it is returned as a token. Unmatched
// input is echoed to Out a byte at a time. At the end of the input an EOF token
// is returned, and again on every subsequent call.
func (s *Scanner) Lex() (lexer.Token, error) {
	for {
		b := s.current()
		if b.deleted {
			return lexer.Token{}, lexer.Errorf(b.position, "scanning a deleted buffer")
		}
		if !b.eof && (b.available() == 0 || (!s.interactive && b.available() < b.size/2)) {
			if _, err := b.fill(false, s.interactive, s.maxTokenSize); err != nil {
				return lexer.Token{}, s.readError(b, err)
			}
		}
		if b.available() == 0 {
			more, err := s.endOfBuffer()
			if err != nil {
				return lexer.Token{}, err
			}
			if !more {
				s.hasPrefix = false
				return lexer.EOFToken(s.currentPosition()), nil
			}
			continue
		}
		candidates, err := s.match(b)
		if err != nil {
			return lexer.Token{}, err
		}
		token, ok, err := s.accept(b, candidates)
		if err != nil || ok {
			return token, err
		}
	}
}

type candidate struct {
	rule  *compiledRule
	end   int
	match []int
}

// match finds every rule matching at the read position, best first.
func (s *Scanner) match(b *Buffer) ([]candidate, error) {
	state := s.stack[len(s.stack)-1]
	rules, ok := s.def.rules[state.name]
	if !ok {
		return nil, lexer.Errorf(b.position, "unknown start condition %q", state.name)
	}
	limited := false
	for {
		data := b.unread()
		final := b.eof || limited
		needMore := false
		candidates := []candidate{}
		for i := range rules {
			rule := &rules[i]
			if rule.bol && !b.atBOL {
				continue
			}
			re, err := s.def.getPattern(rule, state.groups)
			if err != nil {
				return nil, lexer.Wrapf(b.position, err, "rule %q", rule.Name)
			}
			m := re.FindSubmatchIndex(data)
			if m == nil || m[1] == 0 {
				continue
			}
			if m[1] == len(data) && !final {
				needMore = true
				break
			}
			if rule.eol && m[1] < len(data) && data[m[1]] != '\n' {
				continue
			}
			candidates = append(candidates, candidate{rule: rule, end: m[1], match: m})
		}
		if needMore || (len(candidates) == 0 && !b.eof && !s.interactive) {
			before, eof := b.available(), b.eof
			if _, err := b.fill(needMore, s.interactive, s.maxTokenSize); err != nil {
				return nil, s.readError(b, err)
			}
			if b.available() > before || b.eof != eof {
				continue
			}
			if needMore {
				limited = true
				continue
			}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].end > candidates[j].end
		})
		return candidates, nil
	}
}

// accept applies the actions of candidates until one is not rejected.
//
// ok is false if scanning should continue.
func (s *Scanner) accept(b *Buffer, candidates []candidate) (token lexer.Token, ok bool, err error) {
	startPos := b.position
	startBOL := b.atBOL
	hasPrefix, prefix, prefixPos := s.hasPrefix, s.prefix, s.prefixPos
	for _, c := range candidates {
		text := b.consume(c.end)
		groups := make([]string, 0, len(c.match)/2)
		for i := 0; i < len(c.match); i += 2 {
			if c.match[i] < 0 {
				groups = append(groups, "")
				continue
			}
			groups = append(groups, string(text[c.match[i]:c.match[i+1]]))
		}
		s.hasPrefix, s.prefix, s.prefixPos = hasPrefix, prefix, prefixPos
		s.setText(groups[0], startPos, startBOL)
		s.resetActionState(c.rule.ignore)
		s.tracef("accepting rule %q (%q)", c.rule.Name, s.text)
		if c.rule.Action != nil {
			if err := c.rule.Action.applyAction(s, groups); err != nil {
				return lexer.Token{}, false, lexer.Errorf(startPos, "rule %q: %s", c.rule.Name, err)
			}
		}
		if s.reject {
			s.tracef("rejected rule %q", c.rule.Name)
			b.pushBack([]byte(groups[0]))
			b.position = startPos
			b.atBOL = startBOL
			continue
		}
		return s.finishMatch(c.rule.Name)
	}
	s.hasPrefix, s.prefix, s.prefixPos = hasPrefix, prefix, prefixPos
	return lexer.Token{}, false, s.defaultRule(b)
}

func (s *Scanner) finishMatch(name string) (lexer.Token, bool, error) {
	if s.more {
		s.hasPrefix, s.prefix, s.prefixPos = true, s.text, s.textPos
	}
	if s.terminate {
		s.terminate = false
		return lexer.EOFToken(s.currentPosition()), true, nil
	}
	token := lexer.Token{Value: s.text, Pos: s.textPos}
	switch {
	case s.emitted:
		token.Type = s.emitType
	case s.skip:
		return lexer.Token{}, false, nil
	default:
		token.Type = s.def.symbols[name]
	}
	return token, true, nil
}

// defaultRule echoes one unmatched byte.
func (s *Scanner) defaultRule(b *Buffer) error {
	if s.def.noDefault {
		sample := []rune(string(b.unread()))
		if len(sample) > 16 {
			sample = append(sample[:16], []rune("...")...)
		}
		return lexer.Errorf(b.position, "invalid input text %q", string(sample))
	}
	pos, bol := b.position, b.atBOL
	text := b.consume(1)
	s.setText(string(text), pos, bol)
	s.resetActionState(false)
	s.tracef("default rule (%q)", s.text)
	return s.Echo()
}

func (s *Scanner) setText(text string, pos lexer.Position, bol bool) {
	if s.hasPrefix {
		s.text = s.prefix + text
		s.textPos = s.prefixPos
		s.hasPrefix = false
	} else {
		s.text = text
		s.textPos = pos
		s.textBOL = bol
	}
}

func (s *Scanner) resetActionState(skip bool) {
	s.skip = skip
	s.reject = false
	s.more = false
	s.terminate = false
	s.emitted = false
}

// endOfBuffer decides what happens when the current buffer is exhausted.
func (s *Scanner) endOfBuffer() (bool, error) {
	s.tracef("end of buffer")
	if s.wrap != nil && !s.wrap(s) {
		s.Restart(s.in)
		return true, nil
	}
	if len(s.buffers) > 1 {
		s.PopBuffer()
		return true, nil
	}
	return false, nil
}

func (s *Scanner) readError(b *Buffer, err error) error {
	return lexer.Wrapf(b.position, err, "read failed")
}

// Skip discards the current match instead of returning it.
func (s *Scanner) Skip() { s.skip = true }

// Reject discards the current match and applies the next best matching rule.
func (s *Scanner) Reject() { s.reject = true }

// More prefixes the text of the next match with the current one.
func (s *Scanner) More() { s.more = true }

// Terminate makes Lex return an EOF token once the current action completes.
func (s *Scanner) Terminate() { s.terminate = true }

func (s *Scanner) emit(typ rune) {
	s.emitted = true
	s.emitType = typ
}

// Less returns all but the first n bytes of the current match to the input.
//
// Text is truncated and the position, including the line number, rewinds to
// the end of the remaining text.
func (s *Scanner) Less(n int) error {
	if n < 0 || n > len(s.text) {
		return fmt.Errorf("less(%d) out of range for %d bytes of text", n, len(s.text))
	}
	b := s.current()
	b.pushBack([]byte(s.text[n:]))
	pos := s.textPos
	pos.Advance([]byte(s.text[:n]))
	b.position = pos
	s.text = s.text[:n]
	if n > 0 {
		b.atBOL = s.text[n-1] == '\n'
	} else {
		b.atBOL = s.textBOL
	}
	return nil
}

// Input reads the next byte of input, bypassing the rules.
//
// It returns io.EOF once the input, and any input provided by the wrap hook
// or pushed buffers, is exhausted.
func (s *Scanner) Input() (byte, error) {
	for {
		b := s.current()
		if b.available() == 0 {
			if _, err := b.fill(false, s.interactive, s.maxTokenSize); err != nil {
				return 0, s.readError(b, err)
			}
		}
		if b.available() > 0 {
			return b.consume(1)[0], nil
		}
		more, err := s.endOfBuffer()
		if err != nil {
			return 0, err
		}
		if !more {
			return 0, io.EOF
		}
	}
}

// Unput pushes c back so it is the next byte read.
//
// Pushing back a newline decrements the line number.
func (s *Scanner) Unput(c byte) {
	b := s.current()
	b.pushBack([]byte{c})
	b.position.Offset--
	switch {
	case c == '\n':
		b.position.Line--
		b.position.Column = columnBefore(b.data[:b.pos])
	case c&0xC0 != 0x80 && b.position.Column > 1:
		b.position.Column--
	}
}

// columnBefore estimates the column following consumed, from its last line.
func columnBefore(consumed []byte) int {
	column := 1
	for i := len(consumed) - 1; i >= 0 && consumed[i] != '\n'; i-- {
		if utf8.RuneStart(consumed[i]) {
			column++
		}
	}
	return column
}

// Output writes c to Out.
func (s *Scanner) Output(c byte) error {
	_, err := s.out.Write([]byte{c})
	return err
}

// Echo writes the current match to Out.
func (s *Scanner) Echo() error {
	_, err := io.WriteString(s.out, s.text)
	return err
}

// Restart re-initialises the current buffer to read from r, creating one if
// there is none, and makes r the Scanner's input.
//
// Buffered input is discarded. The line number is kept.
func (s *Scanner) Restart(r io.Reader) {
	s.in = r
	if b := s.CurrentBuffer(); b != nil && !b.deleted {
		b.reset(r, s.bufferSize)
		return
	}
	s.SwitchToBuffer(s.replacement(r))
}

func (s *Scanner) replacement(r io.Reader) *Buffer {
	b := s.CreateBuffer(r, s.bufferSize)
	if s.deletedLine > 0 {
		b.position.Line = s.deletedLine
		s.deletedLine = 0
	}
	return b
}

// current returns the current buffer, creating one from In if there is none.
func (s *Scanner) current() *Buffer {
	if len(s.buffers) == 0 {
		s.buffers = append(s.buffers, nil)
	}
	top := len(s.buffers) - 1
	if s.buffers[top] == nil {
		s.buffers[top] = s.replacement(s.in)
	}
	return s.buffers[top]
}

// CurrentBuffer returns the buffer being scanned, or nil if there is none.
func (s *Scanner) CurrentBuffer() *Buffer {
	if len(s.buffers) == 0 {
		return nil
	}
	return s.buffers[len(s.buffers)-1]
}

// CreateBuffer creates a buffer reading from r.
//
// A size <= 0 selects DefaultBufferSize.
func (s *Scanner) CreateBuffer(r io.Reader, size int) *Buffer {
	return NewBuffer(r, size)
}

// SwitchToBuffer makes b the current buffer.
//
// The previous buffer keeps its state and can be switched back to.
func (s *Scanner) SwitchToBuffer(b *Buffer) {
	if b == nil {
		return
	}
	if len(s.buffers) == 0 {
		s.buffers = append(s.buffers, b)
		return
	}
	s.buffers[len(s.buffers)-1] = b
}

// DeleteBuffer releases b.
//
// If b is the current buffer, there is no current buffer afterwards and the
// next read creates one from In, continuing from b's line number.
func (s *Scanner) DeleteBuffer(b *Buffer) {
	if b == nil {
		return
	}
	if s.CurrentBuffer() == b {
		s.buffers[len(s.buffers)-1] = nil
		s.deletedLine = b.position.Line
	}
	b.deleted = true
	b.data = nil
	b.r = nil
	b.pos, b.end = 0, 0
	b.eof = true
}

// FlushBuffer discards the buffered input of b.
//
// A nil b flushes the current buffer.
func (s *Scanner) FlushBuffer(b *Buffer) {
	if b == nil {
		b = s.CurrentBuffer()
	}
	if b == nil || b.deleted {
		return
	}
	b.Flush()
}

// PushBuffer makes b the current buffer, keeping the previous one beneath it.
//
// When b is exhausted it is deleted and scanning resumes in the previous buffer.
func (s *Scanner) PushBuffer(b *Buffer) {
	if b == nil {
		return
	}
	s.buffers = append(s.buffers, b)
}

// PopBuffer deletes the current buffer and resumes the one beneath it.
func (s *Scanner) PopBuffer() {
	if len(s.buffers) == 0 {
		return
	}
	s.DeleteBuffer(s.CurrentBuffer())
	s.buffers = s.buffers[:len(s.buffers)-1]
	s.deletedLine = 0
}

// ScanString switches to a new buffer holding a copy of str.
func (s *Scanner) ScanString(str string) *Buffer {
	b := newBufferFromBytes("", []byte(str))
	s.SwitchToBuffer(b)
	return b
}

// ScanBytes switches to a new buffer holding a copy of data.
func (s *Scanner) ScanBytes(data []byte) *Buffer {
	b := newBufferFromBytes("", append([]byte(nil), data...))
	s.SwitchToBuffer(b)
	return b
}

// Begin switches to the given start condition.
func (s *Scanner) Begin(state string) {
	s.stack[len(s.stack)-1] = conditionState{name: state}
}

// Condition returns the current start condition.
func (s *Scanner) Condition() string {
	return s.stack[len(s.stack)-1].name
}

// PushCondition saves the current start condition and switches to state.
func (s *Scanner) PushCondition(state string) {
	s.stack = append(s.stack, conditionState{name: state})
}

// PopCondition returns to the start condition saved by the last push.
func (s *Scanner) PopCondition() error {
	if len(s.stack) <= 1 {
		return errors.New("start condition stack underflow")
	}
	s.stack = s.stack[:len(s.stack)-1]
	return nil
}

// TopCondition returns the start condition PopCondition would return to, or
// "" if nothing has been pushed.
func (s *Scanner) TopCondition() string {
	if len(s.stack) <= 1 {
		return ""
	}
	return s.stack[len(s.stack)-2].name
}

// AtBOL reports whether the next byte starts a line, which enables "^" rules.
func (s *Scanner) AtBOL() bool { return s.current().atBOL }

// SetBOL overrides whether the next byte starts a line.
func (s *Scanner) SetBOL(bol bool) { s.current().atBOL = bol }
