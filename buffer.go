package ftlex

import (
	"io"

	"github.com/pix3l-p33p3r/ft-lex/lexer"
)

// DefaultBufferSize is the size of an input buffer when none is given.
const DefaultBufferSize = 16384

// DefaultMaxTokenSize bounds how far a buffer grows to hold a single match.
const DefaultMaxTokenSize = 64 * DefaultBufferSize

const maxConsecutiveEmptyReads = 100

// A Buffer is the input state of one source: a reader, the bytes read
// ahead of the scanner and the position of the next unread byte.
//
// Buffers are created by NewBuffer or Scanner.CreateBuffer and handed to
// Scanner.SwitchToBuffer or Scanner.PushBuffer.
type Buffer struct {
	r    io.Reader
	name string
	size int
	data []byte
	// data[pos:end] is unread.
	pos     int
	end     int
	eof     bool
	err     error
	atBOL   bool
	deleted bool
	// Position of data[pos].
	position lexer.Position
}

// NewBuffer creates a Buffer reading from r.
//
// A size <= 0 selects DefaultBufferSize.
func NewBuffer(r io.Reader, size int) *Buffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	b := &Buffer{
		size: size,
		data: make([]byte, size),
	}
	b.init(r, lexer.NameOfReader(r))
	return b
}

func newBufferFromBytes(name string, data []byte) *Buffer {
	b := &Buffer{
		size: len(data),
		data: data,
		end:  len(data),
		eof:  true,
		name: name,
	}
	b.atBOL = true
	b.position = lexer.Position{Filename: name, Line: 1, Column: 1}
	return b
}

func (b *Buffer) init(r io.Reader, name string) {
	b.r = r
	b.name = name
	b.position = lexer.Position{Filename: name, Line: 1, Column: 1}
	b.Flush()
}

// reset points the buffer at a new reader, keeping the line count.
//
// A buffer made from a string gets a fresh array of the given size, or of
// DefaultBufferSize if size <= 0.
func (b *Buffer) reset(r io.Reader, size int) {
	line := b.position.Line
	if b.r == nil {
		if size <= 0 {
			size = DefaultBufferSize
		}
		b.size = size
		b.data = make([]byte, b.size)
	}
	b.init(r, lexer.NameOfReader(r))
	b.position.Line = line
}

// Name of the source, if the reader had one.
func (b *Buffer) Name() string { return b.name }

// Size of the buffer as created.
func (b *Buffer) Size() int { return b.size }

// Flush discards buffered input.
//
// The next match reads afresh from the reader, starting at the beginning of a line.
func (b *Buffer) Flush() {
	b.pos = 0
	b.end = 0
	b.eof = b.r == nil
	b.err = nil
	b.atBOL = true
}

func (b *Buffer) available() int { return b.end - b.pos }

func (b *Buffer) unread() []byte { return b.data[b.pos:b.end] }

// fill reads more input into the buffer, returning the number of bytes read.
//
// Unread bytes are first moved to the front. If the buffer is still full it
// is doubled when grow is set, up to limit bytes. Reading stops when the
// buffer is full, the reader is exhausted, or, for interactive input, as soon
// as any bytes arrive.
func (b *Buffer) fill(grow, interactive bool, limit int) (int, error) {
	if b.err != nil {
		return 0, b.err
	}
	if b.eof {
		return 0, nil
	}
	if b.pos > 0 {
		copy(b.data, b.data[b.pos:b.end])
		b.end -= b.pos
		b.pos = 0
	}
	if b.end == len(b.data) {
		if !grow || len(b.data) >= limit {
			return 0, nil
		}
		size := len(b.data) * 2
		if size > limit {
			size = limit
		}
		if size == 0 {
			size = DefaultBufferSize
		}
		data := make([]byte, size)
		copy(data, b.data[:b.end])
		b.data = data
	}
	total := 0
	for empty := 0; b.end < len(b.data); {
		n, err := b.r.Read(b.data[b.end:])
		b.end += n
		total += n
		if err == io.EOF {
			b.eof = true
			break
		} else if err != nil {
			b.err = err
			return total, err
		}
		if n == 0 {
			empty++
			if empty >= maxConsecutiveEmptyReads {
				b.err = io.ErrNoProgress
				return total, b.err
			}
			continue
		}
		empty = 0
		if interactive {
			break
		}
	}
	return total, nil
}

// consume advances past n unread bytes.
func (b *Buffer) consume(n int) []byte {
	text := b.data[b.pos : b.pos+n]
	b.pos += n
	b.position.Advance(text)
	if n > 0 {
		b.atBOL = text[n-1] == '\n'
	}
	return text
}

// pushBack inserts text in front of the unread bytes.
func (b *Buffer) pushBack(text []byte) {
	if len(text) == 0 {
		return
	}
	if b.pos < len(text) {
		need := len(text) - b.pos
		if b.end+need > len(b.data) {
			data := make([]byte, len(b.data)+need)
			copy(data[b.pos+need:], b.data[b.pos:b.end])
			copy(data, b.data[:b.pos])
			b.data = data
		} else {
			copy(b.data[b.pos+need:], b.data[b.pos:b.end])
		}
		b.pos += need
		b.end += need
	}
	b.pos -= len(text)
	copy(b.data[b.pos:], text)
}
