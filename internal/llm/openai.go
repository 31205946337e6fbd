package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	OpenAIBaseURL = "https://api.openai.com/v1/chat/completions"
	GroqBaseURL   = "https://api.groq.com/openai/v1/chat/completions"
)

// ChatClient calls an OpenAI-compatible Chat Completions endpoint.
// OpenAI and Groq share this wire format.
type ChatClient struct {
	http     *http.Client
	provider string
	apiKey   string
	model    string
	baseURL  string
}

// NewOpenAIClient creates a client for api.openai.com.
func NewOpenAIClient(apiKey, model string) *ChatClient {
	return NewChatClient("openai", OpenAIBaseURL, apiKey, model)
}

// NewGroqClient creates a client for Groq's OpenAI-compatible API.
// See: https://console.groq.com/docs/api-reference
func NewGroqClient(apiKey, model string) *ChatClient {
	return NewChatClient("groq", GroqBaseURL, apiKey, model)
}

// NewChatClient creates a client against any compatible baseURL. model is the
// fallback when a Request carries none.
func NewChatClient(provider, baseURL, apiKey, model string) *ChatClient {
	return &ChatClient{
		http:     &http.Client{Timeout: 120 * time.Second},
		provider: provider,
		apiKey:   apiKey,
		model:    model,
		baseURL:  baseURL,
	}
}

func (c *ChatClient) Name() string { return c.provider + ":" + c.model }
func (c *ChatClient) Close() error { return nil }

type chatReq struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float32           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens,omitempty"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
type chatResp struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete sends the prompt as a single user message. The reply text is
// returned as-is; validating it is the caller's job.
func (c *ChatClient) Complete(ctx context.Context, r Request) (string, error) {
	model := r.Model
	if model == "" {
		model = c.model
	}
	reqBody := chatReq{
		Model:       model,
		Messages:    []chatMessage{{Role: "user", Content: r.Prompt}},
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
	}
	if r.JSON {
		reqBody.ResponseFormat = map[string]string{"type": "json_object"}
	}
	b, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.provider, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", &StatusError{
			Provider:   c.provider,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	var out chatResp
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%s: decode response: %w", c.provider, err)
	}
	if len(out.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return out.Choices[0].Message.Content, nil
}

func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
