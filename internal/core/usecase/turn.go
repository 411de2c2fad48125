package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/partwise/parts-assistant/internal/core/domain"
	"github.com/partwise/parts-assistant/internal/core/ports"
)

// TurnTimeouts bound each phase of a turn independently. A retrieval path that
// overruns its window degrades to an empty contribution; only the completion
// window fails the turn.
type TurnTimeouts struct {
	Structured time.Duration
	Semantic   time.Duration
	Completion time.Duration
}

func (t TurnTimeouts) withDefaults() TurnTimeouts {
	if t.Structured <= 0 {
		t.Structured = 5 * time.Second
	}
	if t.Semantic <= 0 {
		t.Semantic = 5 * time.Second
	}
	if t.Completion <= 0 {
		t.Completion = 20 * time.Second
	}
	return t
}

// TurnUseCase orchestrates one conversational turn end to end: classify,
// retrieve on both paths in parallel, fuse, compose, and record the exchange.
// Turns within a session are serialized; distinct sessions run concurrently.
type TurnUseCase struct {
	classifier *Classifier
	builder    *QueryBuilder
	store      ports.StructuredStore
	retriever  *SemanticRetriever
	fuser      *Fuser
	composer   *Composer
	sessions   ports.ConversationStore
	timeouts   TurnTimeouts
	history    int
	logger     *slog.Logger

	locks sync.Map // sessionID -> *sync.Mutex
}

func NewTurnUseCase(
	classifier *Classifier,
	builder *QueryBuilder,
	store ports.StructuredStore,
	retriever *SemanticRetriever,
	fuser *Fuser,
	composer *Composer,
	sessions ports.ConversationStore,
	timeouts TurnTimeouts,
	historyWindow int,
	logger *slog.Logger,
) *TurnUseCase {
	if historyWindow <= 0 {
		historyWindow = 3
	}
	return &TurnUseCase{
		classifier: classifier,
		builder:    builder,
		store:      store,
		retriever:  retriever,
		fuser:      fuser,
		composer:   composer,
		sessions:   sessions,
		timeouts:   timeouts.withDefaults(),
		history:    historyWindow,
		logger:     logger,
	}
}

var _ ports.TurnService = (*TurnUseCase)(nil)

// HandleTurn runs one turn. The conversation is only extended when an answer
// was actually produced; any earlier failure leaves the history untouched.
func (uc *TurnUseCase) HandleTurn(ctx context.Context, sessionID, userText string) (*domain.TurnResult, error) {
	if sessionID == "" || userText == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "handle turn", errEmptyField(sessionID))
	}

	unlock := uc.lockSession(sessionID)
	defer unlock()

	if _, err := uc.sessions.EnsureSession(ctx, sessionID); err != nil {
		return nil, err
	}
	history, err := uc.sessions.Recent(ctx, sessionID, uc.history*2)
	if err != nil {
		return nil, err
	}

	intent, err := uc.classifier.Classify(userText, history)
	switch {
	case err == nil:
	case domain.IsKind(err, domain.ErrClassificationAmbiguous):
		// Too weak a signal to route: run both paths rather than guess.
		intent.NeedsStructured = true
		intent.NeedsSemantic = true
		uc.logger.Debug("ambiguous query, running both retrieval paths",
			slog.String("session_id", sessionID))
	default:
		return nil, err
	}

	if !intent.InScope {
		return uc.finish(ctx, sessionID, intent, domain.FusedContext{}, outOfScopeAnswer)
	}

	records, chunks := uc.retrieve(ctx, sessionID, intent)
	fused := uc.fuser.Fuse(records, chunks)

	completionCtx, cancel := context.WithTimeout(ctx, uc.timeouts.Completion)
	defer cancel()
	answer, err := uc.composer.Compose(completionCtx, fused, history, intent.ResolvedText)
	if err != nil {
		return nil, err
	}

	return uc.finish(ctx, sessionID, intent, fused, answer)
}

// Reset drops the session history. The session id stays valid for future turns.
func (uc *TurnUseCase) Reset(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "reset session", errEmptyField(sessionID))
	}
	unlock := uc.lockSession(sessionID)
	defer unlock()
	return uc.sessions.Reset(ctx, sessionID)
}

// retrieve runs the structured and semantic paths concurrently, each under its
// own timeout. Path failures degrade to empty results so the turn can still be
// answered from whatever grounding remains.
func (uc *TurnUseCase) retrieve(ctx context.Context, sessionID string, intent domain.QueryIntent) ([]domain.StructuredRecord, []domain.DocumentChunk) {
	var (
		wg      sync.WaitGroup
		records []domain.StructuredRecord
		chunks  []domain.DocumentChunk
	)

	if intent.NeedsStructured {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pathCtx, cancel := context.WithTimeout(ctx, uc.timeouts.Structured)
			defer cancel()
			records = uc.structuredPath(pathCtx, sessionID, intent)
		}()
	}

	if intent.NeedsSemantic {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pathCtx, cancel := context.WithTimeout(ctx, uc.timeouts.Semantic)
			defer cancel()
			found, err := uc.retriever.Retrieve(pathCtx, intent)
			if err != nil {
				uc.logger.Warn("semantic path degraded",
					slog.String("session_id", sessionID),
					slog.String("error", err.Error()))
				return
			}
			chunks = found
		}()
	}

	wg.Wait()
	return records, chunks
}

func (uc *TurnUseCase) structuredPath(ctx context.Context, sessionID string, intent domain.QueryIntent) []domain.StructuredRecord {
	queries, err := uc.builder.Build(intent)
	if err != nil {
		uc.logger.Warn("structured path degraded",
			slog.String("session_id", sessionID),
			slog.String("error", err.Error()))
		return nil
	}

	var records []domain.StructuredRecord
	for _, query := range queries {
		rows, err := uc.store.Search(ctx, query)
		if err != nil {
			uc.logger.Warn("structured path degraded",
				slog.String("session_id", sessionID),
				slog.String("table", query.Table),
				slog.String("error", err.Error()))
			continue
		}
		records = append(records, rows...)
	}
	return records
}

// finish records the exchange and builds the result. Append failures fail the
// turn: an answer the history does not reflect would corrupt later coreference.
func (uc *TurnUseCase) finish(ctx context.Context, sessionID string, intent domain.QueryIntent, fused domain.FusedContext, answer string) (*domain.TurnResult, error) {
	now := time.Now().UTC()
	userTurn := domain.Turn{
		SessionID: sessionID,
		Role:      domain.RoleUser,
		Text:      intent.RawText,
		Entities:  intent.Entities,
		CreatedAt: now,
	}
	assistantTurn := domain.Turn{
		SessionID: sessionID,
		Role:      domain.RoleAssistant,
		Text:      answer,
		CreatedAt: now,
	}
	if err := uc.sessions.AppendExchange(ctx, sessionID, userTurn, assistantTurn); err != nil {
		return nil, err
	}

	return &domain.TurnResult{
		SessionID:    sessionID,
		Answer:       answer,
		Grounded:     !fused.Empty(),
		Truncated:    fused.Truncated(),
		OutOfScope:   !intent.InScope,
		Sources:      sourcesOf(fused),
		ContextChars: fused.Size(),
	}, nil
}

func (uc *TurnUseCase) lockSession(sessionID string) func() {
	value, _ := uc.locks.LoadOrStore(sessionID, &sync.Mutex{})
	mu := value.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func errEmptyField(sessionID string) error {
	if sessionID == "" {
		return errMissingSession
	}
	return errMissingText
}

var (
	errMissingSession = errors.New("session_id is required")
	errMissingText    = errors.New("text is required")
)
