package placement

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"time"

	"fileplacer/internal/llm"
	"fileplacer/internal/util/jsonutil"
)

const (
	DefaultTemperature float32 = 0.2
	DefaultMaxTokens           = 400
	DefaultCallTimeout         = 60 * time.Second
	// MaxFallbackReasoning bounds the raw reply kept when parsing fails.
	MaxFallbackReasoning = 1000
)

// Adjudicator asks the inference service for a verdict on one file.
type Adjudicator struct {
	Client      llm.Client
	Conventions Conventions
	Temperature float32
	MaxTokens   int
	// Timeout bounds each call; <= 0 uses DefaultCallTimeout.
	Timeout time.Duration
}

// NewAdjudicator returns an Adjudicator with the default sampling settings.
func NewAdjudicator(client llm.Client, conv Conventions) *Adjudicator {
	if conv == nil {
		conv = DefaultConventions()
	}
	return &Adjudicator{
		Client:      client,
		Conventions: conv,
		Temperature: DefaultTemperature,
		MaxTokens:   DefaultMaxTokens,
		Timeout:     DefaultCallTimeout,
	}
}

// Adjudicate builds the prompt, calls the service and parses the reply.
// A malformed reply degrades to a fallback verdict; only service failures
// are returned as errors. FilePath is always the requested path.
func (a *Adjudicator) Adjudicate(ctx context.Context, path, content string, hint Hint, model string) (Verdict, error) {
	if a == nil || a.Client == nil {
		return Verdict{}, &AdjudicationError{Path: path, Err: llm.ErrNoClient}
	}
	conv := a.Conventions
	if conv == nil {
		conv = defaultConventions
	}
	timeout := a.Timeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	maxTokens := a.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reply, err := a.Client.Complete(callCtx, llm.Request{
		Prompt:      BuildPrompt(conv, path, content, hint),
		Model:       model,
		Temperature: a.Temperature,
		MaxTokens:   maxTokens,
		JSON:        true,
	})
	if err != nil {
		return Verdict{}, &AdjudicationError{Path: path, Err: err}
	}

	v := ParseReply(reply).Verdict
	v.FilePath = path
	return v, nil
}

// ParseKind tags the branch a reply took through ParseReply.
type ParseKind int

const (
	ParsedVerdict ParseKind = iota
	FallbackVerdict
)

func (k ParseKind) String() string {
	if k == ParsedVerdict {
		return "parsed"
	}
	return "fallback"
}

// ParseResult is the outcome of reading an untrusted reply.
type ParseResult struct {
	Kind    ParseKind
	Verdict Verdict
	// Raw is the trimmed reply body.
	Raw string
}

type replyBody struct {
	IsMisplaced   *bool           `json:"is_misplaced"`
	SuggestedPath json.RawMessage `json:"suggested_path"`
	Reasoning     json.RawMessage `json:"reasoning"`
}

// ParseReply reads a reply as a verdict object, or falls back to keeping the
// raw text as reasoning. It never fails. FilePath is left for the caller.
func ParseReply(reply string) ParseResult {
	raw := strings.TrimSpace(reply)
	if v, ok := parseVerdictObject(raw); ok {
		return ParseResult{Kind: ParsedVerdict, Verdict: v, Raw: raw}
	}
	return ParseResult{
		Kind: FallbackVerdict,
		Verdict: Verdict{
			IsMisplaced:   false,
			SuggestedPath: nil,
			Reasoning:     truncateRunes(raw, MaxFallbackReasoning),
		},
		Raw: raw,
	}
}

func parseVerdictObject(raw string) (Verdict, bool) {
	var body replyBody
	if err := jsonutil.UnmarshalFlex([]byte(raw), &body); err != nil {
		return Verdict{}, false
	}
	if body.IsMisplaced == nil {
		return Verdict{}, false
	}
	suggested, ok := optionalString(body.SuggestedPath)
	if !ok {
		return Verdict{}, false
	}
	reasoning, ok := optionalString(body.Reasoning)
	if !ok {
		return Verdict{}, false
	}
	v := Verdict{IsMisplaced: *body.IsMisplaced}
	if suggested != nil && strings.TrimSpace(*suggested) != "" {
		s := strings.TrimSpace(*suggested)
		v.SuggestedPath = &s
	}
	if reasoning != nil {
		v.Reasoning = *reasoning
	}
	return v, true
}

// optionalString accepts an absent field, JSON null, or a JSON string.
func optionalString(raw json.RawMessage) (*string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false
	}
	return &s, true
}
