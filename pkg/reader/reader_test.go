package reader

import "testing"

func TestCRLFNormalization(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []int
	}{
		{"lf", "a\nb", []int{'a', '\n', 'b', EOF}},
		{"crlf", "a\r\nb", []int{'a', '\n', 'b', EOF}},
		{"bare-cr", "a\rb", []int{'a', '\n', 'b', EOF}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewString("t.c", tt.input)
			for i, want := range tt.want {
				if got := r.ReadByte(); got != want {
					t.Fatalf("char %d: got %d, want %d", i, got, want)
				}
			}
		})
	}
}

func TestBackslashNewlineSplicing(t *testing.T) {
	r := NewString("t.c", "ab\\\ncd")
	for _, want := range []int{'a', 'b', 'c', 'd', EOF} {
		if got := r.ReadByte(); got != want {
			t.Fatalf("got %d, want %d", got, want)
		}
	}
}

func TestChainedSplicing(t *testing.T) {
	r := NewString("t.c", "a\\\n\\\nb")
	if got := r.ReadByte(); got != 'a' {
		t.Fatalf("got %d, want 'a'", got)
	}
	if got := r.ReadByte(); got != 'b' {
		t.Fatalf("got %d, want 'b'", got)
	}
}

func TestLineNumbers(t *testing.T) {
	r := NewString("t.c", "a\nb\nc")
	if r.Line() != 1 {
		t.Fatalf("initial line = %d, want 1", r.Line())
	}
	r.ReadByte() // a
	if r.Line() != 1 {
		t.Fatalf("after 'a' line = %d, want 1", r.Line())
	}
	r.ReadByte() // \n
	if r.Line() != 2 {
		t.Fatalf("after newline line = %d, want 2", r.Line())
	}
	r.ReadByte() // b
	r.ReadByte() // \n
	if r.Line() != 3 {
		t.Fatalf("line = %d, want 3", r.Line())
	}
}

func TestSplicedLineCountsTowardNextChar(t *testing.T) {
	r := NewString("t.c", "a\\\nb\nc")
	r.ReadByte() // a
	got := r.ReadByte()
	if got != 'b' {
		t.Fatalf("got %d, want 'b'", got)
	}
	if r.Line() != 2 {
		t.Fatalf("line after splice = %d, want 2", r.Line())
	}
}

func TestPeekDoesNotAdvanceLine(t *testing.T) {
	r := NewString("t.c", "\n\nx")
	_ = r.Peek()
	_ = r.Peek2()
	if r.Line() != 1 {
		t.Fatalf("Peek advanced line to %d", r.Line())
	}
}

func TestConsumeIfString(t *testing.T) {
	r := NewString("t.c", "...rest")
	if !r.ConsumeIfString("...") {
		t.Fatalf("expected match")
	}
	if got := r.ReadByte(); got != 'r' {
		t.Fatalf("got %c, want 'r'", got)
	}
}

func TestConsumeIfStringNoMatchLeavesInputAlone(t *testing.T) {
	r := NewString("t.c", "<:x")
	if r.ConsumeIfString("<<") {
		t.Fatalf("unexpected match")
	}
	if got := r.ReadByte(); got != '<' {
		t.Fatalf("got %c, want '<'", got)
	}
	if got := r.ReadByte(); got != ':' {
		t.Fatalf("got %c, want ':'", got)
	}
}

func TestEOFIsSticky(t *testing.T) {
	r := NewString("t.c", "")
	if got := r.ReadByte(); got != EOF {
		t.Fatalf("got %d, want EOF", got)
	}
	if got := r.ReadByte(); got != EOF {
		t.Fatalf("got %d, want EOF", got)
	}
}
