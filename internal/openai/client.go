package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/PodZamkom/Constitution/internal/apierr"
	"github.com/PodZamkom/Constitution/internal/prompt"
)

const defaultBaseURL = "https://api.openai.com"

// requestTimeout bounds every non-streaming provider call.
const requestTimeout = 30 * time.Second

// Client is a hand-rolled HTTP client for the AI provider's chat, audio and
// realtime surfaces.
type Client struct {
	// HTTPClient serves bounded request/response calls.
	HTTPClient *http.Client
	// StreamHTTPClient has no total timeout; streaming calls are bounded
	// by the request context instead.
	StreamHTTPClient *http.Client
	APIKey           string
	BaseURL          string
}

// NewClient constructs a provider client with the long-lived API credential.
func NewClient(apiKey string) *Client {
	return &Client{
		HTTPClient:       &http.Client{Timeout: requestTimeout},
		StreamHTTPClient: &http.Client{},
		APIKey:           apiKey,
		BaseURL:          defaultBaseURL,
	}
}

func (c *Client) configured() error {
	if c.APIKey == "" {
		return apierr.New(apierr.KindUnconfigured, "OPENAI_API_KEY is not configured")
	}
	return nil
}

func (c *Client) url(path string) string {
	return strings.TrimRight(c.BaseURL, "/") + path
}

type chatCompletionsRequest struct {
	Model    string           `json:"model"`
	Messages []prompt.Message `json:"messages"`
	Stream   bool             `json:"stream,omitempty"`
}

type chatChoice struct {
	Index        int            `json:"index"`
	FinishReason string         `json:"finish_reason"`
	Message      prompt.Message `json:"message"`
}

type chatCompletionsResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
}

// Complete performs one synchronous chat completion and returns the assistant
// text, trimmed. An empty choice list is an upstream contract violation.
func (c *Client) Complete(ctx context.Context, model string, messages []prompt.Message) (string, error) {
	if err := c.configured(); err != nil {
		return "", err
	}

	reqBody, _ := json.Marshal(chatCompletionsRequest{Model: model, Messages: messages})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/v1/chat/completions"), bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", connectivityError("chat completion", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", upstreamError(resp)
	}
	var cr chatCompletionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", apierr.Wrap(apierr.KindUpstreamInternal, "decode chat completion", err)
	}
	if len(cr.Choices) == 0 {
		return "", apierr.New(apierr.KindEmptyUpstream, "completion returned no choices")
	}
	return strings.TrimSpace(cr.Choices[0].Message.Content), nil
}
