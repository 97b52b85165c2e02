package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"telegram-ai-autoposter/internal/domain"
	"telegram-ai-autoposter/internal/domain/model"
)

// maxErrorBody caps how much of an upstream error body ends up in a failure reason.
const maxErrorBody = 300

func newJSONRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// do sends req and decodes a 2xx JSON reply into out. Every failure comes back as *domain.PublishError.
func do(hc *http.Client, p model.Platform, req *http.Request, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return transportError(req.Context(), p, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return transportError(req.Context(), p, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(p, resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.PublishError{Platform: string(p), Reason: "unreadable response", StatusCode: resp.StatusCode, Err: err}
	}
	return nil
}

func transportError(ctx context.Context, p model.Platform, err error) *domain.PublishError {
	reason := "request failed"
	if errors.Is(err, context.DeadlineExceeded) {
		reason = "request timed out"
	}
	return &domain.PublishError{Platform: string(p), Reason: reason, Retryable: ctx.Err() == nil, Err: err}
}

func statusError(p model.Platform, code int, body []byte) *domain.PublishError {
	var reason string
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		reason = "credentials rejected"
	case code == http.StatusTooManyRequests:
		reason = "rate limited"
	case code >= 500:
		reason = "platform unavailable"
	default:
		reason = "request rejected"
	}
	if msg := upstreamMessage(body); msg != "" {
		reason += ": " + msg
	}
	return &domain.PublishError{
		Platform:   string(p),
		Reason:     reason,
		StatusCode: code,
		Retryable:  code == http.StatusTooManyRequests || code >= 500,
		Err:        fmt.Errorf("unexpected status %d", code),
	}
}

// upstreamMessage digs a human readable message out of the common error envelopes.
func upstreamMessage(body []byte) string {
	var env struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
		Errors  []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &env) != nil {
		return truncate(strings.TrimSpace(string(body)), maxErrorBody)
	}
	switch {
	case env.Message != "":
		return truncate(env.Message, maxErrorBody)
	case len(env.Errors) > 0 && env.Errors[0].Message != "":
		return truncate(env.Errors[0].Message, maxErrorBody)
	case len(env.Error) > 0:
		var s string
		if json.Unmarshal(env.Error, &s) == nil {
			return truncate(s, maxErrorBody)
		}
		var obj struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(env.Error, &obj) == nil {
			return truncate(obj.Message, maxErrorBody)
		}
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func firstTags(tags []string, n int) []string {
	if len(tags) > n {
		return tags[:n]
	}
	return tags
}
