package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// ErrCompletionFailed is returned when the provider errors or returns an
// empty completion. The orchestrator converts it into a degraded result;
// it is never surfaced to end users raw.
var ErrCompletionFailed = errors.New("completion failed")

// maxResponseLogBytes is the max length of a model response to log in full.
const maxResponseLogBytes = 8192

// Role values for Message.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Part is one content part of a message: either text or an image reference
// (data URI). Exactly one field is set; part order is preserved on the wire.
type Part struct {
	Text     string
	ImageURL string
}

// Message is a provider-neutral chat message.
type Message struct {
	Role  string
	Parts []Part
}

// TextMessage builds a single-part text message.
func TextMessage(role, text string) Message {
	return Message{Role: role, Parts: []Part{{Text: text}}}
}

// Options control a single completion call.
type Options struct {
	Temperature float64
	MaxTokens   int
	JSONMode    bool
	Vision      bool // use the multimodal model instead of the default
}

// Client wraps an OpenAI-compatible chat-completions API (OpenRouter).
type Client struct {
	model       string
	visionModel string
	llm         *openai.LLM
}

// headerRoundTripper injects the attribution headers OpenRouter expects on
// every request.
type headerRoundTripper struct {
	referer string
	title   string
	next    http.RoundTripper
}

func (h *headerRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	if h.referer != "" {
		req2.Header.Set("HTTP-Referer", h.referer)
	}
	if h.title != "" {
		req2.Header.Set("X-Title", h.title)
	}
	return h.next.RoundTrip(req2)
}

// NewClient creates a new completion client. A missing API key is a fatal
// configuration error reported here, at startup, not per call.
func NewClient(apiKey, baseURL, model, visionModel, referer, title string) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OPENROUTER_API_KEY is required")
	}
	if visionModel == "" {
		visionModel = model
	}

	httpClient := &http.Client{
		Transport: &headerRoundTripper{referer: referer, title: title, next: http.DefaultTransport},
	}

	client, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
		openai.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("initialize openai client: %w", err)
	}

	log.Info().
		Str("base_url", baseURL).
		Str("model", model).
		Str("vision_model", visionModel).
		Msg("LLM client initialized")

	return &Client{model: model, visionModel: visionModel, llm: client}, nil
}

// Complete sends systemPrompt plus messages and returns the raw completion
// text. The system prompt is always the first message; if the caller already
// supplied a system message, a second one is not added. Single attempt, no
// retry.
func (c *Client) Complete(ctx context.Context, systemPrompt string, messages []Message, opts Options) (string, error) {
	content := make([]llms.MessageContent, 0, len(messages)+1)
	if systemPrompt != "" && !hasSystemMessage(messages) {
		content = append(content, llms.MessageContent{
			Role:  llms.ChatMessageTypeSystem,
			Parts: []llms.ContentPart{llms.TextPart(systemPrompt)},
		})
	}
	for _, m := range messages {
		content = append(content, toMessageContent(m))
	}

	callOpts := []llms.CallOption{
		llms.WithTemperature(opts.Temperature),
		llms.WithMaxTokens(opts.MaxTokens),
	}
	model := c.model
	if opts.Vision {
		model = c.visionModel
	}
	callOpts = append(callOpts, llms.WithModel(model))
	if opts.JSONMode {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	resp, err := c.llm.GenerateContent(ctx, content, callOpts...)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCompletionFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices in response", ErrCompletionFailed)
	}

	raw := resp.Choices[0].Content
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: empty completion", ErrCompletionFailed)
	}
	logResponse(model, raw)
	return raw, nil
}

func hasSystemMessage(messages []Message) bool {
	for _, m := range messages {
		if m.Role == RoleSystem {
			return true
		}
	}
	return false
}

func toMessageContent(m Message) llms.MessageContent {
	var role llms.ChatMessageType
	switch m.Role {
	case RoleSystem:
		role = llms.ChatMessageTypeSystem
	case RoleAssistant:
		role = llms.ChatMessageTypeAI
	default:
		role = llms.ChatMessageTypeHuman
	}

	parts := make([]llms.ContentPart, 0, len(m.Parts))
	for _, p := range m.Parts {
		if p.ImageURL != "" {
			parts = append(parts, llms.ImageURLPart(p.ImageURL))
			continue
		}
		parts = append(parts, llms.TextPart(p.Text))
	}
	return llms.MessageContent{Role: role, Parts: parts}
}

// logResponse logs model output, truncating if over maxResponseLogBytes.
func logResponse(model, raw string) {
	if len(raw) <= maxResponseLogBytes {
		log.Debug().Str("model", model).Str("response", raw).Msg("Model response")
		return
	}
	log.Debug().
		Str("model", model).
		Str("response", raw[:maxResponseLogBytes]+"... [truncated]").
		Int("response_len", len(raw)).
		Msg("Model response")
}
