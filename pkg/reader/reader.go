// Package reader implements the two-phase character source that feeds the
// preprocessing-token lexer: physical-line splicing (CRLF/CR normalized to
// LF) followed by backslash-newline continuation, per C99 translation
// phases 1-2.
package reader

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// EOF is the sentinel value returned by Peek/PeekAt/ReadByte once the
// underlying input is exhausted. It never collides with a real byte value.
const EOF = -1

type queued struct {
	val     int
	spliced int // newlines consumed by backslash-splicing to produce val
}

// Reader is a two-phase character source over a file or an in-memory
// string. It owns no tokens and no state beyond its input stream, cursor,
// and lookahead buffer.
type Reader struct {
	filename string
	line     int
	src      *bufio.Reader
	file     *os.File // non-nil only for file-backed readers; closed by Close

	p1Pending bool
	p1Val     int

	queue []queued
}

// NewFile opens path and returns a file-backed Reader positioned at line 1.
func NewFile(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reader: %w", err)
	}
	return &Reader{
		filename: path,
		line:     1,
		src:      bufio.NewReader(f),
		file:     f,
	}, nil
}

// NewString returns an in-memory Reader over content, reporting filename in
// diagnostics and __FILE__ expansion.
func NewString(filename, content string) *Reader {
	return &Reader{
		filename: filename,
		line:     1,
		src:      bufio.NewReader(stringReaderOf(content)),
	}
}

func stringReaderOf(s string) io.Reader {
	return &onceReader{s: s}
}

// onceReader avoids importing strings just for a Reader; a plain byte walk
// is all bufio needs.
type onceReader struct {
	s string
	i int
}

func (r *onceReader) Read(p []byte) (int, error) {
	if r.i >= len(r.s) {
		return 0, io.EOF
	}
	n := copy(p, r.s[r.i:])
	r.i += n
	return n, nil
}

// Close releases the underlying file handle, if any. It is a no-op for
// in-memory readers.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Filename reports the name used for diagnostics and __FILE__.
func (r *Reader) Filename() string { return r.filename }

// Line reports the 1-based logical line number of the next unread
// character, reflecting lines already consumed via ReadByte (lookahead via
// Peek/PeekAt never advances it).
func (r *Reader) Line() int { return r.line }

// readPhase1Raw performs CRLF/CR-to-LF normalization on the raw byte
// stream: a lone CR, or a CR immediately followed by LF, both become a
// single LF.
func (r *Reader) readPhase1Raw() int {
	b, err := r.src.ReadByte()
	if err != nil {
		return EOF
	}
	if b == '\r' {
		if peeked, err := r.src.Peek(1); err == nil && peeked[0] == '\n' {
			_, _ = r.src.ReadByte()
		}
		return '\n'
	}
	return int(b)
}

func (r *Reader) peekPhase1() int {
	if !r.p1Pending {
		r.p1Val = r.readPhase1Raw()
		r.p1Pending = true
	}
	return r.p1Val
}

func (r *Reader) consumePhase1() int {
	v := r.peekPhase1()
	r.p1Pending = false
	return v
}

// nextLogical applies phase 2 (backslash-newline splicing) on top of the
// phase-1 stream, chaining through consecutive splices.
func (r *Reader) nextLogical() (int, int) {
	spliced := 0
	for {
		c := r.consumePhase1()
		if c == '\\' && r.peekPhase1() == '\n' {
			r.consumePhase1()
			spliced++
			continue
		}
		return c, spliced
	}
}

func (r *Reader) fill(n int) {
	for len(r.queue) < n {
		v, spliced := r.nextLogical()
		r.queue = append(r.queue, queued{val: v, spliced: spliced})
	}
}

// PeekAt returns the i-th not-yet-consumed logical character (0 is the
// next one to be read by ReadByte) without consuming it or affecting Line.
func (r *Reader) PeekAt(i int) int {
	r.fill(i + 1)
	return r.queue[i].val
}

// Peek is the one-character lookahead primitive.
func (r *Reader) Peek() int { return r.PeekAt(0) }

// Peek2 is the two-character lookahead primitive.
func (r *Reader) Peek2() int { return r.PeekAt(1) }

// ReadByte consumes and returns the next logical character, advancing Line
// past any newline (spliced-away or returned) it accounts for.
func (r *Reader) ReadByte() int {
	r.fill(1)
	q := r.queue[0]
	r.queue = r.queue[1:]
	r.line += q.spliced
	if q.val == '\n' {
		r.line++
	}
	return q.val
}

// ConsumeIfChar consumes and reports true when the next character is c.
func (r *Reader) ConsumeIfChar(c byte) bool {
	if r.Peek() != int(c) {
		return false
	}
	r.ReadByte()
	return true
}

// ConsumeIfString consumes and reports true when the upcoming characters
// spell s exactly; otherwise the input is left untouched.
func (r *Reader) ConsumeIfString(s string) bool {
	for i := 0; i < len(s); i++ {
		if r.PeekAt(i) != int(s[i]) {
			return false
		}
	}
	for i := 0; i < len(s); i++ {
		r.ReadByte()
	}
	return true
}
