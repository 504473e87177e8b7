package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/PodZamkom/Constitution/internal/apierr"
)

const (
	transcriptionModel = "whisper-1"
	// The assistant operates in Russian; hint the speech model accordingly.
	transcriptionLanguage = "ru"
)

type transcriptionResponse struct {
	Text string `json:"text"`
}

// Transcribe uploads the staged audio to the speech-to-text endpoint and
// returns the recognized text, trimmed.
func (c *Client) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if err := c.configured(); err != nil {
		return "", err
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, audio); err != nil {
		return "", err
	}
	_ = mw.WriteField("model", transcriptionModel)
	_ = mw.WriteField("language", transcriptionLanguage)
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/v1/audio/transcriptions"), &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", connectivityError("transcription", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", upstreamError(resp)
	}
	var tr transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", apierr.Wrap(apierr.KindUpstreamInternal, "decode transcription", err)
	}
	return strings.TrimSpace(tr.Text), nil
}
