// Package generator is the external Question generator collaborator
// (spec §6): an HTTP client adapted from the intelligence/client.go
// lesson-generation pattern, retargeted to question-batch generation.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"noble-ngs-quiz/internal/apperr"
	"noble-ngs-quiz/internal/engine/coordinator"
	"noble-ngs-quiz/internal/models"
)

// Client calls a remote question-generation service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	getToken   func() string
}

// NewClient builds a Client. deadline bounds each call in addition to
// whatever deadline the caller's context already carries.
func NewClient(baseURL string, tokenProvider func() string, deadline time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: deadline},
		getToken:   tokenProvider,
	}
}

type generateRequest struct {
	Subject        string `json:"subject"`
	Topic          string `json:"topic"`
	Subtopic       string `json:"subtopic"`
	Grade          int    `json:"grade"`
	Difficulty     string `json:"difficulty"`
	RequestedCount int    `json:"requested_count"`
}

type generateResponse struct {
	Questions []models.Candidate `json:"questions"`
}

// Generate implements coordinator.Generator against a remote HTTP
// service.
func (c *Client) Generate(ctx context.Context, gctx coordinator.GenerationContext) ([]models.Candidate, error) {
	url := fmt.Sprintf("%s/generate", c.baseURL)

	body, err := json.Marshal(generateRequest{
		Subject:        gctx.Subject,
		Topic:          gctx.Topic,
		Subtopic:       gctx.Subtopic,
		Grade:          gctx.Grade,
		Difficulty:     string(gctx.Difficulty),
		RequestedCount: gctx.RequestedCount,
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.KindGeneratorPermanent, err, "failed to marshal generation request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindGeneratorPermanent, err, "failed to build generation request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Service-Token", c.getToken())

	if correlationID := ctx.Value("correlation_id"); correlationID != nil {
		httpReq.Header.Set("X-Correlation-ID", correlationID.(string))
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Network failures, timeouts: treat as retriable.
		return nil, apperr.Wrap(apperr.KindGeneratorTransient, err, "generator request failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindGeneratorTransient, err, "failed to read generator response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return nil, apperr.Newf(apperr.KindGeneratorPermanent, "generator rejected request: %d %s", resp.StatusCode, string(respBody))
	default:
		return nil, apperr.Newf(apperr.KindGeneratorTransient, "generator returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var result generateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, apperr.Wrap(apperr.KindGeneratorTransient, err, "failed to parse generator response")
	}

	return result.Questions, nil
}
