package parser

import (
	"context"

	"go.uber.org/zap"
)

// Reasoner is the slice of the model capability the retrier needs.
type Reasoner interface {
	Reason(ctx context.Context, prompt string, showThinking bool) (string, error)
}

const retryPrompt = `Your previous response could not be parsed. Respond with ONLY valid structured data (compact format or JSON), no other text. Required format from the original request. Ensure confidence is a number 0.0-1.0.`

// Escalation threshold: once the cumulative attempt count reaches this,
// retries go to the secondary model.
const escalationAttempt = 3

// Retrier wraps Parse with a retry-and-escalate policy. The primary model
// handles early retries; from the third cumulative attempt onward the
// cheaper secondary model takes over.
type Retrier struct {
	primary    Reasoner
	secondary  Reasoner
	maxRetries int
	logger     *zap.Logger
}

// NewRetrier builds a retrier. maxRetries counts additional model requests
// beyond the initial parse.
func NewRetrier(primary, secondary Reasoner, maxRetries int, logger *zap.Logger) *Retrier {
	return &Retrier{primary: primary, secondary: secondary, maxRetries: maxRetries, logger: logger}
}

// Parse re-parses text, then issues up to maxRetries fresh model requests on
// failure. totalAttempts is the cumulative attempt count including the call
// that produced text, normally 1. The last attempt's result is returned and
// may still be the error sentinel.
func (r *Retrier) Parse(ctx context.Context, text string, totalAttempts int) map[string]any {
	result := Parse(text)
	if !IsError(result) {
		return result
	}

	for attempt := 0; attempt < r.maxRetries; attempt++ {
		current := totalAttempts + attempt + 1
		model := r.primary
		if current >= escalationAttempt {
			model = r.secondary
			r.logger.Info("parse retry escalating to secondary model", zap.Int("attempt", current))
		}

		response, err := model.Reason(ctx, retryPrompt, false)
		if err != nil {
			r.logger.Warn("parse retry request failed", zap.Int("attempt", current), zap.Error(err))
			continue
		}
		result = Parse(response)
		if !IsError(result) {
			return result
		}
	}
	return result
}
