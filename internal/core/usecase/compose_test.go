package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/partwise/parts-assistant/internal/core/domain"
)

type fakeCompletion struct {
	answer     string
	err        error
	lastPrompt string
	calls      int
}

func (f *fakeCompletion) Complete(_ context.Context, prompt string) (string, error) {
	f.calls++
	f.lastPrompt = prompt
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func TestComposePromptContainsGroundingHistoryAndQuestion(t *testing.T) {
	completion := &fakeCompletion{answer: "The part costs $24.99."}
	c := NewComposer(completion, 3)

	fused := domain.FusedContext{
		Budget: 4000,
		Entries: []domain.ContextEntry{
			{Kind: domain.KindStructured, Key: "parts:PS11752778", Label: "parts PS11752778", Content: "parts part_price=24.99"},
		},
	}
	history := []domain.Turn{
		{Role: domain.RoleUser, Text: "tell me about PS11752778"},
		{Role: domain.RoleAssistant, Text: "It is a door shelf bin."},
	}

	answer, err := c.Compose(context.Background(), fused, history, "how much does it cost?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if answer != "The part costs $24.99." {
		t.Fatalf("unexpected answer: %q", answer)
	}
	prompt := completion.lastPrompt
	for _, want := range []string{"parts part_price=24.99", "tell me about PS11752778", "how much does it cost?"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Index(prompt, "Reference material") > strings.Index(prompt, "Question") {
		t.Fatal("expected grounding section before the question")
	}
}

func TestComposeEmptyGroundingInstructsDisclosure(t *testing.T) {
	completion := &fakeCompletion{answer: "I could not find matching parts."}
	c := NewComposer(completion, 3)

	if _, err := c.Compose(context.Background(), domain.FusedContext{Budget: 4000}, nil, "weird question"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(completion.lastPrompt, noGroundingInstruction) {
		t.Fatal("expected no-grounding instruction in prompt")
	}
	if strings.Contains(completion.lastPrompt, "Reference material") {
		t.Fatal("did not expect a reference section with empty grounding")
	}
}

func TestComposeAppendsTruncationCaveat(t *testing.T) {
	completion := &fakeCompletion{answer: "Here is how."}
	c := NewComposer(completion, 3)

	fused := domain.FusedContext{
		Budget: 10,
		Entries: []domain.ContextEntry{
			{Kind: domain.KindSemantic, Key: "doc-1:0", Label: "Drain guide", Content: "shortened", Truncated: true},
		},
	}

	answer, err := c.Compose(context.Background(), fused, nil, "how do I fix the drain?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(answer, truncationCaveat) {
		t.Fatalf("expected truncation caveat appended, got %q", answer)
	}
}

func TestComposeCompletionErrorIsCompletionFailure(t *testing.T) {
	c := NewComposer(&fakeCompletion{err: errors.New("upstream 500")}, 3)

	_, err := c.Compose(context.Background(), domain.FusedContext{}, nil, "q")
	if !domain.IsKind(err, domain.ErrCompletionFailure) {
		t.Fatalf("expected completion failure, got %v", err)
	}
}

func TestComposeEmptyCompletionIsCompletionFailure(t *testing.T) {
	c := NewComposer(&fakeCompletion{answer: "   "}, 3)

	_, err := c.Compose(context.Background(), domain.FusedContext{}, nil, "q")
	if !domain.IsKind(err, domain.ErrCompletionFailure) {
		t.Fatalf("expected completion failure for blank answer, got %v", err)
	}
}
