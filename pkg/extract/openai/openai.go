// Package openai implements extract.Backend against an OpenAI-compatible
// chat-completions endpoint. The model is instructed to return a JSON object
// of memory candidates; anything that goes wrong (missing key, timeout,
// non-200, unparseable output) reports extract.ErrBackendUnavailable so the
// engine falls back to rule-based extraction.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/loamhq/loam/pkg/extract"
	"github.com/loamhq/loam/pkg/memory"
	"github.com/loamhq/loam/pkg/turn"
	"github.com/loamhq/loam/pkg/utils"
)

const (
	// DefaultBaseURL is the OpenAI API root.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultModel is used when the config names none.
	DefaultModel = "gpt-4o-mini"

	// DefaultTimeout bounds the chat-completions round trip.
	DefaultTimeout = 4 * time.Second

	// DefaultMaxChars truncates the turn text sent to the model.
	DefaultMaxChars = 5000
)

const systemPrompt = `Extract durable memories from this agent conversation turn: ` +
	`stable preferences, facts, decisions, todos, pitfalls, workflow notes, and references. ` +
	`Return a JSON object {"memories": [{"kind": "...", "text": "...", "importance": 0-5}]}. ` +
	`Valid kinds: preference, fact, decision, todo, pitfall, workflow-note, reference. ` +
	`Return {"memories": []} when nothing is worth keeping.`

// Backend calls a chat-completions API for extraction.
type Backend struct {
	baseURL    string
	model      string
	apiKey     string
	maxChars   int
	httpClient *http.Client
}

// Config holds settings for the OpenAI extraction backend.
type Config struct {
	// BaseURL is the API root. Defaults to DefaultBaseURL.
	BaseURL string

	// Model names the completion model. Defaults to DefaultModel.
	Model string

	// APIKeyEnv is the environment variable holding the API key.
	// Defaults to OPENAI_API_KEY.
	APIKeyEnv string

	// Timeout bounds the whole call. Defaults to DefaultTimeout.
	Timeout time.Duration

	// MaxChars truncates the turn text in the prompt. Defaults to
	// DefaultMaxChars.
	MaxChars int
}

// New builds a Backend from cfg, applying defaults for zero fields.
func New(cfg Config) *Backend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = DefaultMaxChars
	}

	return &Backend{
		baseURL:  cfg.BaseURL,
		model:    cfg.Model,
		apiKey:   os.Getenv(cfg.APIKeyEnv),
		maxChars: cfg.MaxChars,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// chatRequest is the subset of the chat-completions request body we send.
type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// memoriesPayload is the JSON contract the model is instructed to follow.
type memoriesPayload struct {
	Memories []struct {
		Kind       string  `json:"kind"`
		Text       string  `json:"text"`
		Importance int     `json:"importance"`
		Confidence float64 `json:"confidence"`
	} `json:"memories"`
}

// Extract sends the turn text to the model and parses its JSON reply.
func (b *Backend) Extract(ctx context.Context, t *turn.Turn) ([]memory.Candidate, error) {
	if b.apiKey == "" {
		return nil, extract.ErrBackendUnavailable
	}

	body, err := json.Marshal(chatRequest{
		Model: b.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: utils.Truncate(t.Text(), b.maxChars)},
		},
		ResponseFormat: map[string]any{"type": "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshaling request: %v", extract.ErrBackendUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", extract.ErrBackendUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+b.apiKey)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: sending request: %v", extract.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", extract.ErrBackendUnavailable, resp.StatusCode)
	}

	var chat chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chat); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", extract.ErrBackendUnavailable, err)
	}
	if len(chat.Choices) == 0 {
		return nil, fmt.Errorf("%w: empty response", extract.ErrBackendUnavailable)
	}

	var payload memoriesPayload
	if err := json.Unmarshal([]byte(chat.Choices[0].Message.Content), &payload); err != nil {
		return nil, fmt.Errorf("%w: parsing model output: %v", extract.ErrBackendUnavailable, err)
	}

	candidates := make([]memory.Candidate, 0, len(payload.Memories))
	for _, item := range payload.Memories {
		kind, err := memory.ParseKind(item.Kind)
		if err != nil {
			continue
		}
		if item.Text == "" {
			continue
		}
		candidates = append(candidates, memory.Candidate{
			Kind:       kind,
			Text:       item.Text,
			Importance: memory.ClampImportance(item.Importance),
			Confidence: item.Confidence,
		})
	}

	return candidates, nil
}

var _ extract.Backend = (*Backend)(nil)
