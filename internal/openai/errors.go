package openai

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/PodZamkom/Constitution/internal/apierr"
)

// errorEnvelope is the provider's error response shape.
type errorEnvelope struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// classifyStatus maps a provider HTTP status to a failure category.
func classifyStatus(status int) apierr.Kind {
	switch {
	case status == http.StatusUnauthorized:
		return apierr.KindUpstreamAuth
	case status == http.StatusForbidden:
		return apierr.KindUpstreamPermission
	case status == http.StatusNotFound:
		return apierr.KindUpstreamNotFound
	case status == http.StatusTooManyRequests:
		return apierr.KindUpstreamRateLimit
	case status >= 400 && status < 500:
		return apierr.KindUpstreamBadRequest
	case status >= 500:
		return apierr.KindUpstreamInternal
	}
	return apierr.KindUpstreamInternal
}

// upstreamError turns a non-2xx provider response into a typed error,
// preserving the provider's own message where it supplies one.
func upstreamError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	kind := classifyStatus(resp.StatusCode)

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		return apierr.New(kind, env.Error.Message)
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return apierr.Newf(kind, "provider returned status %d: %s", resp.StatusCode, msg)
	}
	return apierr.Newf(kind, "provider returned status %d", resp.StatusCode)
}

// connectivityError wraps transport-level failures (DNS, refused connections,
// timeouts) as upstream connectivity problems.
func connectivityError(op string, err error) error {
	return apierr.Wrap(apierr.KindUpstreamConnectivity, op, err)
}
