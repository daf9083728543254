// Package vision implements the remote multimodal collaborators: the
// question analyzer, the change oracle, and the selection verifier. All of
// them speak to a Gemini-style generateContent HTTP endpoint.
package vision

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/screenwise/screenwise/types"
)

// ClientConfig configures the generateContent HTTP client.
type ClientConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"-"`
	Timeout time.Duration `yaml:"timeout"`
}

// Client is a thin wrapper over the vision backend's generateContent
// endpoint. It maps transport and API failures to typed errors; retry and
// fallback policy live in the Analyzer, not here.
type Client struct {
	cfg    ClientConfig
	client *http.Client
	logger *zap.Logger
}

// NewClient creates a backend client.
func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "vision_client")),
	}
}

// Wire structures for the generateContent request/response.

type genPart struct {
	Text       string         `json:"text,omitempty"`
	InlineData *genInlineData `json:"inlineData,omitempty"`
	FileData   *genFileData   `json:"fileData,omitempty"`
}

type genInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type genFileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

type genContent struct {
	Role  string    `json:"role,omitempty"`
	Parts []genPart `json:"parts"`
}

type genGenerationConfig struct {
	Temperature      float32 `json:"temperature,omitempty"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type genRequest struct {
	Contents          []genContent         `json:"contents"`
	SystemInstruction *genContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *genGenerationConfig `json:"generationConfig,omitempty"`
}

type genCandidate struct {
	Content      genContent `json:"content"`
	FinishReason string     `json:"finishReason,omitempty"`
}

type genResponse struct {
	Candidates []genCandidate `json:"candidates"`
}

type genErrorResp struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// GenerateRequest is one call to the backend.
type GenerateRequest struct {
	Model        string
	Parts        []genPart
	System       string
	JSONResponse bool
}

// TextPart builds a text request part.
func TextPart(text string) genPart {
	return genPart{Text: text}
}

// ImagePart builds an inline image part from raw encoded bytes.
func ImagePart(frame *types.Frame) genPart {
	return genPart{InlineData: &genInlineData{
		MimeType: frame.MimeType,
		Data:     encodeBase64(frame.Data),
	}}
}

// InlinePart builds an inline data part for an arbitrary mime type.
func InlinePart(mimeType, base64Data string) genPart {
	return genPart{InlineData: &genInlineData{MimeType: mimeType, Data: base64Data}}
}

// FilePart builds a file-reference part (link attachments).
func FilePart(mimeType, uri string) genPart {
	return genPart{FileData: &genFileData{MimeType: mimeType, FileURI: uri}}
}

// Generate performs one generateContent call and returns the first
// candidate's concatenated text.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	body := genRequest{
		Contents: []genContent{{Role: "user", Parts: req.Parts}},
	}
	if req.System != "" {
		body.SystemInstruction = &genContent{Parts: []genPart{{Text: req.System}}}
	}
	if req.JSONResponse {
		body.GenerationConfig = &genGenerationConfig{ResponseMimeType: "application/json"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", types.NewError(types.ErrInternalError, "marshal request").WithCause(err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(c.cfg.BaseURL, "/"), req.Model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", types.NewError(types.ErrInternalError, "build request").WithCause(err)
	}
	httpReq.Header.Set("x-goog-api-key", c.cfg.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", types.NewError(types.ErrUpstreamTimeout, "backend unreachable").
			WithRetryable(true).WithModel(req.Model).WithCause(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.NewError(types.ErrUpstreamError, "read response").
			WithRetryable(true).WithModel(req.Model).WithCause(err)
	}

	c.logger.Debug("generateContent call",
		zap.String("model", req.Model),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		return "", c.mapAPIError(req.Model, resp.StatusCode, raw)
	}

	var parsed genResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", types.NewError(types.ErrUpstreamError, "decode response").
			WithRetryable(true).WithModel(req.Model).WithCause(err)
	}

	text := candidateText(parsed)
	if text == "" {
		// The model returned a syntactically valid but empty completion.
		// Treated as transient: the analyzer retries and may fall back.
		return "", types.NewError(types.ErrEmptyResponse, "model returned no content").
			WithRetryable(true).WithModel(req.Model)
	}
	return text, nil
}

func candidateText(resp genResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	return strings.TrimSpace(sb.String())
}

// mapAPIError converts a non-200 response into a typed error. Quota
// exhaustion is distinguished from plain rate limiting so callers can
// disable automation instead of retrying into a bill.
func (c *Client) mapAPIError(model string, status int, raw []byte) *types.Error {
	var apiErr genErrorResp
	_ = json.Unmarshal(raw, &apiErr)
	msg := apiErr.Error.Message
	if msg == "" {
		msg = fmt.Sprintf("backend returned status %d", status)
	}

	switch {
	case status == http.StatusTooManyRequests:
		if apiErr.Error.Status == "RESOURCE_EXHAUSTED" && strings.Contains(strings.ToLower(msg), "quota") {
			return types.NewError(types.ErrQuotaExceeded, msg).WithModel(model)
		}
		return types.NewError(types.ErrRateLimited, msg).WithRetryable(true).WithModel(model)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return types.NewError(types.ErrAuthentication, msg).WithModel(model)
	case status == http.StatusNotFound:
		return types.NewError(types.ErrModelNotFound, msg).WithModel(model)
	case status == http.StatusServiceUnavailable:
		return types.NewError(types.ErrModelOverloaded, msg).WithRetryable(true).WithModel(model)
	case status == http.StatusBadRequest:
		return types.NewError(types.ErrInvalidRequest, msg).WithModel(model)
	case status >= 500:
		return types.NewError(types.ErrUpstreamError, msg).WithRetryable(true).WithModel(model)
	default:
		return types.NewError(types.ErrUpstreamError, msg).WithModel(model)
	}
}
