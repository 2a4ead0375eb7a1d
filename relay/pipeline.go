package relay

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moriagate/balrog/pkg/history"
	"github.com/moriagate/balrog/pkg/llm"
	"github.com/moriagate/balrog/pkg/safety"
	"github.com/moriagate/balrog/pkg/transcript"
)

// ErrorKind classifies how a turn was rejected.
type ErrorKind int

const (
	// EmptyInput means the user message was blank after trimming.
	EmptyInput ErrorKind = iota
	// InputFiltered means the safety model rejected the user message.
	InputFiltered
	// OutputFiltered means the safety model rejected the assistant reply.
	OutputFiltered
	// Upstream means the completion backend failed.
	Upstream
	// EmptyCompletion means the completion backend returned no text.
	EmptyCompletion
)

// TurnError describes a rejected turn. A rejected turn never mutates the
// conversation.
type TurnError struct {
	Kind           ErrorKind
	Classification string
	Message        string
}

func (e *TurnError) Error() string {
	return e.Message
}

// TurnResult is a successfully completed turn.
type TurnResult struct {
	Reply     string
	Timestamp time.Time
}

// Classifier judges content safety. Satisfied by *safety.Classifier.
type Classifier interface {
	Check(ctx context.Context, content string, direction safety.Direction) safety.Verdict
}

// Completer produces chat completions. Satisfied by *llm.Client.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, opts *llm.Options) (*llm.ChatResponse, error)
	Model() string
}

// Pipeline runs one safety-gated chat turn: input check, completion, output
// check, then an atomic history commit. Every failure path leaves the
// conversation exactly as it was.
type Pipeline struct {
	classifier Classifier
	completer  Completer
	store      *history.Store
	recorder   transcript.Recorder
	logger     *zap.Logger
}

// NewPipeline wires a pipeline from its collaborators.
func NewPipeline(classifier Classifier, completer Completer, store *history.Store, recorder transcript.Recorder, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		completer:  completer,
		store:      store,
		recorder:   recorder,
		logger:     logger,
	}
}

// Turn processes one user message for a session. Errors are always
// *TurnError. The whole turn runs under the session's turn lock so two
// concurrent turns on one session cannot interleave.
func (p *Pipeline) Turn(ctx context.Context, session, userText string) (*TurnResult, error) {
	unlock := p.store.Lock(session)
	defer unlock()

	start := time.Now()

	userText = strings.TrimSpace(userText)
	if userText == "" {
		return nil, p.reject(ctx, session, start, userText, &TurnError{
			Kind:    EmptyInput,
			Message: "empty message",
		})
	}

	verdict := p.classifier.Check(ctx, userText, safety.Input)
	if !verdict.Safe {
		p.logger.Warn("unsafe input detected",
			zap.String("session", session),
			zap.String("classification", verdict.Classification),
		)
		return nil, p.reject(ctx, session, start, userText, &TurnError{
			Kind:           InputFiltered,
			Classification: verdict.Classification,
			Message:        "content filtered by safety model",
		})
	}

	// Working copy: the user message joins the history only if the whole
	// turn succeeds.
	userMsg := llm.Message{Role: "user", Content: userText}
	working := append(p.store.Messages(session), userMsg)

	resp, err := p.completer.Complete(ctx, working, nil)
	if err != nil {
		p.logger.Error("completion failed", zap.String("session", session), zap.Error(err))
		return nil, p.reject(ctx, session, start, userText, &TurnError{
			Kind:    Upstream,
			Message: err.Error(),
		})
	}

	assistantMsg, ok := resp.FirstChoice()
	if !ok || assistantMsg.Content == "" {
		return nil, p.reject(ctx, session, start, userText, &TurnError{
			Kind:    EmptyCompletion,
			Message: "empty response from model",
		})
	}

	verdict = p.classifier.Check(ctx, assistantMsg.Content, safety.Output)
	if !verdict.Safe {
		p.logger.Warn("unsafe output detected",
			zap.String("session", session),
			zap.String("classification", verdict.Classification),
		)
		// The user message that triggered this turn is discarded along
		// with the filtered response.
		return nil, p.reject(ctx, session, start, userText, &TurnError{
			Kind:           OutputFiltered,
			Classification: verdict.Classification,
			Message:        "response filtered by safety model",
		})
	}

	if assistantMsg.Role == "" {
		assistantMsg.Role = "assistant"
	}
	p.store.AppendTurn(session, userMsg, assistantMsg)

	result := &TurnResult{
		Reply:     assistantMsg.Content,
		Timestamp: time.Now().UTC(),
	}

	p.record(ctx, &transcript.Entry{
		ID:        uuid.NewString(),
		Session:   session,
		Outcome:   transcript.OutcomeOK,
		Prompt:    userText,
		Reply:     assistantMsg.Content,
		Model:     p.completer.Model(),
		Duration:  time.Since(start),
		CreatedAt: result.Timestamp,
	})

	return result, nil
}

// reject records the failed turn and hands back turnErr unchanged.
func (p *Pipeline) reject(ctx context.Context, session string, start time.Time, prompt string, turnErr *TurnError) *TurnError {
	p.record(ctx, &transcript.Entry{
		ID:             uuid.NewString(),
		Session:        session,
		Outcome:        outcomeFor(turnErr.Kind),
		Prompt:         prompt,
		Classification: turnErr.Classification,
		Model:          p.completer.Model(),
		Duration:       time.Since(start),
		CreatedAt:      time.Now().UTC(),
	})
	return turnErr
}

func (p *Pipeline) record(ctx context.Context, entry *transcript.Entry) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Record(ctx, entry); err != nil {
		// Don't fail the turn just because recording failed
		p.logger.Error("failed to record turn", zap.Error(err))
	}
}

func outcomeFor(kind ErrorKind) string {
	switch kind {
	case EmptyInput:
		return transcript.OutcomeEmptyInput
	case InputFiltered:
		return transcript.OutcomeInputFiltered
	case OutputFiltered:
		return transcript.OutcomeOutputFiltered
	case Upstream:
		return transcript.OutcomeUpstreamError
	case EmptyCompletion:
		return transcript.OutcomeEmptyCompletion
	default:
		return "unknown"
	}
}
