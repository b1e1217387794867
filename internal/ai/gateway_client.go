package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultGatewayBaseURL = "https://ai.gateway.lovable.dev/v1"
	DefaultAppName        = "J.A.R.V.I.S."

	// DefaultSystemPrompt takes the selected model's display name.
	DefaultSystemPrompt = "Du bist J.A.R.V.I.S., ein fortschrittlicher KI-Assistent basierend auf %s. " +
		"Du bist hilfsbereit, präzise und effizient. Antworte auf Deutsch."

	maxErrorBodyBytes = 64 * 1024
)

type GatewayClientConfig struct {
	APIKey       string
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	HTTPClient   *http.Client
	SiteURL      string
	AppName      string
	SystemPrompt string
}

// GatewayClient talks to the OpenAI-compatible AI gateway.
type GatewayClient struct {
	apiKey       string
	baseURL      string
	timeout      time.Duration
	maxRetries   int
	httpClient   *http.Client
	siteURL      string
	appName      string
	systemPrompt string
}

func NewGatewayClient(config GatewayClientConfig) *GatewayClient {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = DefaultGatewayBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	if strings.TrimSpace(config.AppName) == "" {
		config.AppName = DefaultAppName
	}
	if !strings.Contains(config.SystemPrompt, "%s") {
		config.SystemPrompt = DefaultSystemPrompt
	}

	return &GatewayClient{
		apiKey:       strings.TrimSpace(config.APIKey),
		baseURL:      strings.TrimSuffix(config.BaseURL, "/"),
		timeout:      config.Timeout,
		maxRetries:   config.MaxRetries,
		httpClient:   config.HTTPClient,
		siteURL:      strings.TrimSpace(config.SiteURL),
		appName:      strings.TrimSpace(config.AppName),
		systemPrompt: config.SystemPrompt,
	}
}

func (c *GatewayClient) Available() bool {
	return c.apiKey != ""
}

// ChatRequest is one routed chat turn.
type ChatRequest struct {
	Model    ModelDescriptor
	Tags     TagSet
	Messages []Message
}

type chatPayload struct {
	Model     string           `json:"model"`
	Messages  []payloadMessage `json:"messages"`
	Stream    bool             `json:"stream,omitempty"`
	MaxTokens int              `json:"max_tokens,omitempty"`
	Metadata  map[string]any   `json:"metadata,omitempty"`
}

type payloadMessage struct {
	Role    Role `json:"role"`
	Content any  `json:"content"`
}

// SystemPrompt renders the system instruction for model.
func (c *GatewayClient) SystemPrompt(model ModelDescriptor) string {
	return fmt.Sprintf(c.systemPrompt, model.Name)
}

func (c *GatewayClient) buildChatPayload(request ChatRequest) chatPayload {
	messages := make([]payloadMessage, 0, len(request.Messages)+1)
	messages = append(messages, payloadMessage{Role: RoleSystem, Content: c.SystemPrompt(request.Model)})
	for _, message := range request.Messages {
		messages = append(messages, payloadMessage{Role: message.Role, Content: message.Content})
	}

	return chatPayload{
		Model:    request.Model.ID,
		Messages: messages,
		Stream:   true,
		Metadata: map[string]any{
			"selectedModel": request.Model.Name,
			"taskType":      request.Tags.String(),
		},
	}
}

// StreamChat submits the routed request and returns the upstream SSE body
// unread. The caller owns the returned body and must close it. Nothing is
// retried.
func (c *GatewayClient) StreamChat(ctx context.Context, request ChatRequest) (io.ReadCloser, error) {
	if !c.Available() {
		return nil, ErrConfiguration
	}
	if strings.TrimSpace(request.Model.ID) == "" {
		return nil, errors.New("model is required")
	}

	encoded, err := json.Marshal(c.buildChatPayload(request))
	if err != nil {
		return nil, fmt.Errorf("marshal gateway payload: %w", err)
	}

	httpRequest, err := c.newRequest(ctx, encoded, "text/event-stream")
	if err != nil {
		return nil, err
	}

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		return nil, fmt.Errorf("%w: transport: %w", ErrUpstream, err)
	}

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		defer httpResponse.Body.Close()
		return nil, readGatewayError(httpResponse)
	}
	return httpResponse.Body, nil
}

// CompletionRequest is a non-streaming call with free-form content.
type CompletionRequest struct {
	Model     string
	System    string
	User      any
	MaxTokens int
}

type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type CompletionResult struct {
	Text    string
	ModelID string
	Usage   TokenUsage
}

// Complete performs a buffered chat completion, retrying 429 and 5xx up
// to MaxRetries times.
func (c *GatewayClient) Complete(ctx context.Context, request CompletionRequest) (CompletionResult, error) {
	if !c.Available() {
		return CompletionResult{}, ErrConfiguration
	}
	if strings.TrimSpace(request.Model) == "" {
		return CompletionResult{}, errors.New("model is required")
	}
	if request.User == nil {
		return CompletionResult{}, errors.New("user content is required")
	}

	messages := make([]payloadMessage, 0, 2)
	if strings.TrimSpace(request.System) != "" {
		messages = append(messages, payloadMessage{Role: RoleSystem, Content: request.System})
	}
	messages = append(messages, payloadMessage{Role: RoleUser, Content: request.User})

	encoded, err := json.Marshal(chatPayload{
		Model:     request.Model,
		Messages:  messages,
		MaxTokens: request.MaxTokens,
	})
	if err != nil {
		return CompletionResult{}, fmt.Errorf("marshal gateway payload: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		result, callErr := c.callChatCompletions(ctx, encoded, request.Model)
		if callErr == nil {
			return result, nil
		}
		lastErr = callErr

		if !isRetryableGatewayError(callErr) || attempt == c.maxRetries {
			break
		}

		backoff := time.Duration(350*(attempt+1)) * time.Millisecond
		select {
		case <-ctx.Done():
			return CompletionResult{}, ctx.Err()
		case <-time.After(backoff):
		}
	}
	return CompletionResult{}, lastErr
}

func (c *GatewayClient) callChatCompletions(ctx context.Context, payload []byte, requestedModel string) (CompletionResult, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpRequest, err := c.newRequest(timeoutCtx, payload, "application/json")
	if err != nil {
		return CompletionResult{}, err
	}

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
			return CompletionResult{}, fmt.Errorf("%w: timeout: %w", ErrUpstream, err)
		}
		return CompletionResult{}, fmt.Errorf("%w: transport: %w", ErrUpstream, err)
	}
	defer httpResponse.Body.Close()

	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		return CompletionResult{}, readGatewayError(httpResponse)
	}

	var raw chatCompletionsResponse
	if err := json.NewDecoder(httpResponse.Body).Decode(&raw); err != nil {
		return CompletionResult{}, fmt.Errorf("%w: decode response: %w", ErrUpstream, err)
	}

	text := extractCompletionText(raw)
	if text == "" {
		return CompletionResult{}, fmt.Errorf("%w: response without text output", ErrUpstream)
	}

	return CompletionResult{
		Text:    text,
		ModelID: firstNonEmpty(raw.Model, requestedModel),
		Usage: TokenUsage{
			InputTokens:  raw.Usage.PromptTokens,
			OutputTokens: raw.Usage.CompletionTokens,
			TotalTokens:  raw.Usage.TotalTokens,
		},
	}, nil
}

func (c *GatewayClient) newRequest(ctx context.Context, payload []byte, accept string) (*http.Request, error) {
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create gateway request: %w", err)
	}
	httpRequest.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", accept)
	if c.siteURL != "" {
		httpRequest.Header.Set("HTTP-Referer", c.siteURL)
	}
	if c.appName != "" {
		httpRequest.Header.Set("X-Title", c.appName)
	}
	return httpRequest, nil
}

func readGatewayError(httpResponse *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(httpResponse.Body, maxErrorBodyBytes))
	if err != nil {
		body = []byte(fmt.Sprintf("failed to read body: %v", err))
	}
	return &GatewayHTTPError{
		StatusCode: httpResponse.StatusCode,
		Message:    truncateBody(bytes.TrimSpace(body)),
	}
}

type chatCompletionsResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content any    `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

func extractCompletionText(response chatCompletionsResponse) string {
	if len(response.Choices) == 0 {
		return ""
	}
	switch typed := response.Choices[0].Message.Content.(type) {
	case string:
		return strings.TrimSpace(typed)
	case []any:
		fragments := make([]string, 0, len(typed))
		for _, item := range typed {
			fragment, ok := item.(map[string]any)
			if !ok {
				continue
			}
			textValue, _ := fragment["text"].(string)
			if strings.TrimSpace(textValue) == "" {
				continue
			}
			fragments = append(fragments, strings.TrimSpace(textValue))
		}
		return strings.TrimSpace(strings.Join(fragments, "\n"))
	default:
		return ""
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func isRetryableGatewayError(err error) bool {
	if err == nil {
		return false
	}
	var httpErr *GatewayHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests || httpErr.StatusCode >= 500
	}
	message := strings.ToLower(err.Error())
	return strings.Contains(message, "timeout") || strings.Contains(message, "tempor")
}
