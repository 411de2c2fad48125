package chunking

import (
	"strings"
	"testing"
)

func TestSplitKeepsShortParagraphsTogether(t *testing.T) {
	s := NewSplitter(100, 10)

	chunks := s.Split("First paragraph.\n\nSecond paragraph.")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if !strings.Contains(chunks[0], "First paragraph.") || !strings.Contains(chunks[0], "Second paragraph.") {
		t.Fatalf("unexpected chunk: %q", chunks[0])
	}
}

func TestSplitBreaksAtParagraphBoundaryWhenFull(t *testing.T) {
	s := NewSplitter(40, 0)

	chunks := s.Split("This is the first paragraph text.\n\nThis is the second paragraph text.")
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
}

func TestSplitWindowsLongParagraphWithOverlap(t *testing.T) {
	s := NewSplitter(50, 10)

	long := strings.Repeat("abcde ", 30)
	chunks := s.Split(long)
	if len(chunks) < 3 {
		t.Fatalf("expected windowed chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if len([]rune(c)) > 50 {
			t.Fatalf("chunk exceeds size: %d", len([]rune(c)))
		}
	}
}

func TestSplitEmptyTextYieldsNil(t *testing.T) {
	s := NewSplitter(100, 10)
	if chunks := s.Split("   \n\n  "); chunks != nil {
		t.Fatalf("expected nil, got %v", chunks)
	}
}
