// Package safety wraps a secondary classifier model (e.g., Llama Guard)
// that judges whether content is safe to relay.
package safety

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/moriagate/balrog/pkg/llm"
)

// Direction tells the classifier which side of the conversation the content
// came from.
type Direction string

const (
	// Input is content a user typed.
	Input Direction = "input"
	// Output is content the completion model produced.
	Output Direction = "output"
)

// Verdict is the classifier's judgement on a piece of content.
type Verdict struct {
	Safe           bool
	Classification string
}

// unsafeKeywords mark a classification reply as unsafe when any of them
// appears in the lower-cased text. Substring matching is deliberately crude,
// guard models answer in free text.
var unsafeKeywords = []string{"unsafe", "violation", "harmful", "inappropriate"}

// failOpenClassification is reported when the classifier backend cannot be
// reached. The relay fails open: a classifier outage must not block
// conversations.
const failOpenClassification = "Safety check failed"

const (
	checkMaxTokens   = 100
	checkTemperature = 0.1
)

// Completer issues a single chat completion call. Satisfied by *llm.Client.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, opts *llm.Options) (*llm.ChatResponse, error)
}

// Classifier checks content against a safety model.
type Classifier struct {
	completer Completer
	logger    *zap.Logger
}

// NewClassifier creates a classifier backed by the given completer, which
// must be configured for the safety model.
func NewClassifier(completer Completer, logger *zap.Logger) *Classifier {
	return &Classifier{completer: completer, logger: logger}
}

// Check classifies content and maps the model's free-text answer to a
// binary verdict. Backend errors never propagate, they produce a safe
// verdict instead (fail-open).
func (c *Classifier) Check(ctx context.Context, content string, direction Direction) Verdict {
	prompt := fmt.Sprintf("[INST] Task: Check if this %s is safe\n\n%s[/INST]", direction, content)

	resp, err := c.completer.Complete(ctx,
		[]llm.Message{{Role: "user", Content: prompt}},
		llm.NewOptions(checkMaxTokens, checkTemperature),
	)
	if err != nil {
		c.logger.Error("safety model error", zap.Error(err), zap.String("direction", string(direction)))
		return Verdict{Safe: true, Classification: failOpenClassification}
	}

	msg, ok := resp.FirstChoice()
	if !ok {
		c.logger.Error("safety model returned no choices", zap.String("direction", string(direction)))
		return Verdict{Safe: true, Classification: failOpenClassification}
	}

	classification := strings.TrimSpace(msg.Content)
	lowered := strings.ToLower(classification)
	for _, keyword := range unsafeKeywords {
		if strings.Contains(lowered, keyword) {
			return Verdict{Safe: false, Classification: classification}
		}
	}

	return Verdict{Safe: true, Classification: "Safe"}
}
