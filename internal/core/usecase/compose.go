package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/partwise/parts-assistant/internal/core/domain"
	"github.com/partwise/parts-assistant/internal/core/ports"
)

// IntroMessage greets a fresh session before any retrieval happens.
const IntroMessage = "Hi, welcome to PartWise! I can help you find refrigerator and " +
	"dishwasher parts, check prices and availability, and walk you through " +
	"repairs. What can I help you with today?"

// outOfScopeAnswer is returned without a completion call when the query is
// unrelated to appliance parts.
const outOfScopeAnswer = "I can only help with refrigerator and dishwasher " +
	"parts, repairs, and compatibility questions. Is there an appliance part " +
	"I can help you find?"

const truncationCaveat = "Note: some reference material was shortened to fit, " +
	"so this answer may be incomplete."

const systemInstruction = "You are a parts assistant for refrigerators and dishwashers. " +
	"Answer using only the reference material below. Cite part numbers and prices " +
	"exactly as given. If the reference material does not cover the question, say so " +
	"plainly instead of guessing."

const noGroundingInstruction = "No reference material was found for this question. " +
	"Tell the user you could not find matching parts or guides, and suggest they " +
	"share a part number or model number."

// Composer assembles the final prompt from fused context and history and calls
// the completion service. The completion model is a black box: all grounding
// discipline lives in the prompt.
type Composer struct {
	completion    ports.CompletionClient
	historyWindow int
}

func NewComposer(completion ports.CompletionClient, historyWindow int) *Composer {
	if historyWindow <= 0 {
		historyWindow = 3
	}
	return &Composer{
		completion:    completion,
		historyWindow: historyWindow,
	}
}

// Compose builds the prompt and requests a completion. A failed or empty
// completion surfaces as CompletionFailure so the turn is not recorded.
func (c *Composer) Compose(ctx context.Context, fused domain.FusedContext, history []domain.Turn, question string) (string, error) {
	prompt := c.buildPrompt(fused, history, question)

	answer, err := c.completion.Complete(ctx, prompt)
	if err != nil {
		return "", domain.WrapError(domain.ErrCompletionFailure, "complete turn", err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", domain.WrapError(domain.ErrCompletionFailure, "complete turn", errors.New("blank completion"))
	}

	if fused.Truncated() {
		answer = answer + "\n\n" + truncationCaveat
	}
	return answer, nil
}

func (c *Composer) buildPrompt(fused domain.FusedContext, history []domain.Turn, question string) string {
	var b strings.Builder
	b.WriteString(systemInstruction)
	b.WriteString("\n\n")

	if fused.Empty() {
		b.WriteString(noGroundingInstruction)
		b.WriteString("\n\n")
	} else {
		b.WriteString("### Reference material\n")
		for _, entry := range fused.Entries {
			b.WriteString("[")
			b.WriteString(string(entry.Kind))
			b.WriteString("] ")
			b.WriteString(entry.Label)
			b.WriteString("\n")
			b.WriteString(entry.Content)
			b.WriteString("\n\n")
		}
	}

	window := history
	if len(window) > c.historyWindow*2 {
		window = window[len(window)-c.historyWindow*2:]
	}
	if len(window) > 0 {
		b.WriteString("### Conversation so far\n")
		for _, turn := range window {
			b.WriteString(string(turn.Role))
			b.WriteString(": ")
			b.WriteString(turn.Text)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("### Question\n")
	b.WriteString(question)
	return b.String()
}

// sourcesOf converts fused entries into user-facing citations, one per entry,
// preserving rank order.
func sourcesOf(fused domain.FusedContext) []domain.Source {
	if fused.Empty() {
		return nil
	}
	sources := make([]domain.Source, 0, len(fused.Entries))
	for _, entry := range fused.Entries {
		sources = append(sources, domain.Source{
			Kind:  entry.Kind,
			Label: entry.Label,
			URL:   entry.URL,
		})
	}
	return sources
}
