package openai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/PodZamkom/Constitution/internal/prompt"
)

// chatChunk is one SSE frame of a streaming chat completion.
type chatChunk struct {
	ID      string `json:"id"`
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Role    string `json:"role,omitempty"`
			Content string `json:"content,omitempty"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
}

// StreamComplete opens a streaming chat completion and emits incremental text
// fragments on the returned channel. Both channels are closed when the stream
// ends; a non-nil error on the error channel means the stream aborted after
// possibly partial output.
func (c *Client) StreamComplete(ctx context.Context, model string, messages []prompt.Message) (<-chan string, <-chan error) {
	textCh := make(chan string, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(textCh)
		defer close(errCh)

		if err := c.configured(); err != nil {
			errCh <- err
			return
		}

		reqBody, _ := json.Marshal(chatCompletionsRequest{Model: model, Messages: messages, Stream: true})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/v1/chat/completions"), bytes.NewReader(reqBody))
		if err != nil {
			errCh <- err
			return
		}
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "text/event-stream")

		resp, err := c.StreamHTTPClient.Do(req)
		if err != nil {
			errCh <- connectivityError("open completion stream", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			errCh <- upstreamError(resp)
			return
		}

		reader := bufio.NewReader(resp.Body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if err == io.EOF {
					// The provider terminates a healthy stream with a
					// [DONE] sentinel; a bare EOF means truncation.
					errCh <- connectivityError("completion stream truncated", io.ErrUnexpectedEOF)
					return
				}
				errCh <- connectivityError("read completion stream", err)
				return
			}
			line = strings.TrimSpace(line)
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "[DONE]" {
				return
			}
			var chunk chatChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				select {
				case textCh <- delta:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return textCh, errCh
}
