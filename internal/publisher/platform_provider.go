package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/postline/postline/internal/scheduler/domain"
)

// PlatformProvider publishes posts through the platform's HTTP API.
type PlatformProvider struct {
	logger     *slog.Logger
	httpClient *http.Client
	apiURL     string
	apiToken   string
}

func NewPlatformProvider(logger *slog.Logger, apiURL, apiToken string, httpClient *http.Client) *PlatformProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &PlatformProvider{
		logger:     logger.With("provider", "platform_http"),
		httpClient: httpClient,
		apiURL:     apiURL,
		apiToken:   apiToken,
	}
}

type platformPublishRequest struct {
	ContentType string          `json:"content_type"`
	Content     json.RawMessage `json:"content"`
}

type platformPublishResponse struct {
	PostIDs []string `json:"post_ids"`
}

type platformErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (p *PlatformProvider) Publish(ctx context.Context, contentType domain.ContentType, payload json.RawMessage) (*Result, error) {
	reqBody, err := json.Marshal(platformPublishRequest{
		ContentType: string(contentType),
		Content:     payload,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal publish request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create publish request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiToken)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		p.logger.ErrorContext(ctx, "Platform request failed", "error", err)
		return nil, &PublishError{Code: "transport", Message: err.Error()}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, &PublishError{
			Code:    fmt.Sprintf("read_body_%d", httpResp.StatusCode),
			Message: fmt.Sprintf("platform returned status %d and the response body could not be read: %v", httpResp.StatusCode, err),
		}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		var errResp platformErrorResponse
		if jsonErr := json.Unmarshal(respBody, &errResp); jsonErr == nil && errResp.Message != "" {
			p.logger.WarnContext(ctx, "Platform rejected publish", "status_code", httpResp.StatusCode, "code", errResp.Code, "message", errResp.Message)
			return nil, &PublishError{Code: errResp.Code, Message: errResp.Message}
		}
		p.logger.WarnContext(ctx, "Platform rejected publish", "status_code", httpResp.StatusCode, "body", string(respBody))
		return nil, &PublishError{
			Code:    fmt.Sprintf("http_%d", httpResp.StatusCode),
			Message: fmt.Sprintf("platform returned status %d", httpResp.StatusCode),
		}
	}

	var okResp platformPublishResponse
	if err := json.Unmarshal(respBody, &okResp); err != nil {
		return nil, &PublishError{Code: "bad_response", Message: "platform response could not be parsed: " + err.Error()}
	}
	if len(okResp.PostIDs) == 0 {
		return nil, &PublishError{Code: "bad_response", Message: "platform reported success without post ids"}
	}

	p.logger.InfoContext(ctx, "Published to platform", "post_ids", okResp.PostIDs)
	return &Result{PlatformPostIDs: okResp.PostIDs}, nil
}
