package responder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/ai"
	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/logger"
	"github.com/genesisdigi/How-to-Automate-Reply-in-Webinars-Using-Python/internal/metrics"
)

// ErrGeneration is returned when the completion path fails and the
// configured policy is to surface the failure.
var ErrGeneration = errors.New("responder: reply generation failed")

var errEmptyCompletion = errors.New("empty completion")

type Source string

const (
	SourceRule    Source = "rule"
	SourceDefault Source = "default"
	SourceAI      Source = "ai"
)

type Reply struct {
	Text    string
	Source  Source
	Keyword string // matched keyword, rule replies only
}

type Responder struct {
	rules     Rules
	completer ai.Completer
}

// New validates rules and builds a Responder. completer may be nil unless
// rules.OnNoMatch is NoMatchAI.
func New(rules Rules, completer ai.Completer) (*Responder, error) {
	norm, err := rules.normalize()
	if err != nil {
		return nil, err
	}
	if norm.OnNoMatch == NoMatchAI && completer == nil {
		return nil, fmt.Errorf("%w: on_no_match=ai needs a completer", ErrInvalidRules)
	}
	return &Responder{rules: norm, completer: completer}, nil
}

// Match returns the first rule whose keyword occurs in text, ignoring case.
func (r *Responder) Match(text string) (Rule, bool) {
	lower := strings.ToLower(text)
	for _, rule := range r.rules.Rules {
		if strings.Contains(lower, rule.Keyword) {
			return rule, true
		}
	}
	return Rule{}, false
}

// Reply maps a message text to a reply. Rule and default replies are
// deterministic; the AI path is not.
func (r *Responder) Reply(ctx context.Context, text string) (Reply, error) {
	if rule, ok := r.Match(text); ok {
		return r.count(Reply{Text: rule.Response, Source: SourceRule, Keyword: rule.Keyword}), nil
	}

	if r.rules.OnNoMatch != NoMatchAI {
		return r.count(Reply{Text: r.rules.Default, Source: SourceDefault}), nil
	}

	out, err := r.generate(ctx, text)
	if err == nil {
		return r.count(Reply{Text: out, Source: SourceAI}), nil
	}

	metrics.GenerationFailures.Inc()
	if r.rules.OnAIError == AIErrorFail {
		return Reply{}, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	logger.Log.Warn("generation_fallback_to_default", zap.Error(err))
	return r.count(Reply{Text: r.rules.Default, Source: SourceDefault}), nil
}

func (r *Responder) generate(ctx context.Context, text string) (string, error) {
	out, err := r.completer.Complete(ctx, ai.BuildPrompt(text), r.rules.MaxTokens)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", errEmptyCompletion
	}
	return out, nil
}

func (r *Responder) count(rep Reply) Reply {
	metrics.Replies.WithLabelValues(string(rep.Source)).Inc()
	return rep
}
