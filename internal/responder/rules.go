package responder

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrInvalidRules = errors.New("responder: invalid rules")

// NoMatchPolicy decides what happens when no keyword rule matches.
type NoMatchPolicy string

const (
	NoMatchDefault NoMatchPolicy = "default"
	NoMatchAI      NoMatchPolicy = "ai"
)

// AIErrorPolicy decides what happens when the completion call fails.
type AIErrorPolicy string

const (
	AIErrorDefault AIErrorPolicy = "default"
	AIErrorFail    AIErrorPolicy = "fail"
)

// Rule maps a keyword (case-insensitive substring) to a fixed response.
type Rule struct {
	Keyword  string `yaml:"keyword"`
	Response string `yaml:"response"`
}

// Rules is the responder configuration. Order matters: the first rule whose
// keyword occurs in the message wins. Only the rule list and the default
// reply come from a rules file; the policies are set by the application config.
type Rules struct {
	Rules     []Rule        `yaml:"rules"`
	Default   string        `yaml:"default"`
	OnNoMatch NoMatchPolicy `yaml:"-"`
	OnAIError AIErrorPolicy `yaml:"-"`
	MaxTokens int           `yaml:"-"`
}

const DefaultReply = "Thanks for your message! We'll get back to you shortly."

func DefaultRules() Rules {
	return Rules{
		Rules: []Rule{
			{Keyword: "price", Response: "You can check our pricing on our website at www.example.com"},
			{Keyword: "is this recorded", Response: "Yes! The webinar is being recorded and the link will be shared after the session."},
		},
		Default:   DefaultReply,
		OnNoMatch: NoMatchDefault,
		OnAIError: AIErrorDefault,
		MaxTokens: 50,
	}
}

// LoadRules reads a YAML rules file. Fields left out of the file keep the
// values of DefaultRules, except the rule list which is replaced as a whole.
// Unknown keys are rejected.
func LoadRules(path string) (Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("read rules file: %w", err)
	}

	rules := DefaultRules()
	rules.Rules = nil

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&rules); err != nil && !errors.Is(err, io.EOF) {
		return Rules{}, fmt.Errorf("%w: parse %s: %w", ErrInvalidRules, path, err)
	}
	return rules, nil
}

// normalize returns a copy with trimmed, lower-cased keywords and defaulted
// policies, or an error wrapping ErrInvalidRules.
func (r Rules) normalize() (Rules, error) {
	out := r
	out.Rules = make([]Rule, 0, len(r.Rules))
	for i, rule := range r.Rules {
		kw := strings.ToLower(strings.TrimSpace(rule.Keyword))
		if kw == "" {
			return Rules{}, fmt.Errorf("%w: rule %d has an empty keyword", ErrInvalidRules, i)
		}
		if strings.TrimSpace(rule.Response) == "" {
			return Rules{}, fmt.Errorf("%w: rule %q has an empty response", ErrInvalidRules, rule.Keyword)
		}
		out.Rules = append(out.Rules, Rule{Keyword: kw, Response: rule.Response})
	}

	if strings.TrimSpace(out.Default) == "" {
		return Rules{}, fmt.Errorf("%w: default reply is empty", ErrInvalidRules)
	}

	switch out.OnNoMatch {
	case "":
		out.OnNoMatch = NoMatchDefault
	case NoMatchDefault, NoMatchAI:
	default:
		return Rules{}, fmt.Errorf("%w: unknown on_no_match %q", ErrInvalidRules, out.OnNoMatch)
	}

	switch out.OnAIError {
	case "":
		out.OnAIError = AIErrorDefault
	case AIErrorDefault, AIErrorFail:
	default:
		return Rules{}, fmt.Errorf("%w: unknown on_ai_error %q", ErrInvalidRules, out.OnAIError)
	}

	if out.MaxTokens <= 0 {
		out.MaxTokens = 50
	}
	return out, nil
}
