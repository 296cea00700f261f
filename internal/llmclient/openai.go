package llmclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/ganainy/ai-mobile-ui-crawler-sub003/api/schemas"
	"github.com/ganainy/ai-mobile-ui-crawler-sub003/internal/config"
)

// OpenAIClient implements schemas.LLMClient against an OpenAI-compatible
// chat completions endpoint (OpenAI proper, or a self-hosted gateway).
type OpenAIClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
	config     config.LLMModelConfig
}

// -- OpenAI API request/response structures --

type openAIContentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text,omitempty"`
	ImageURL *openAIImageURL `json:"image_url,omitempty"`
}

type openAIImageURL struct {
	URL string `json:"url"`
}

type openAIMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

type openAIRequestPayload struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *struct {
		Type string `json:"type"`
	} `json:"response_format,omitempty"`
}

type openAIResponsePayload struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// NewOpenAIClient initializes the client.
func NewOpenAIClient(cfg config.LLMModelConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "https://api.openai.com/v1/chat/completions"
	}

	return &OpenAIClient{
		apiKey:   cfg.APIKey,
		endpoint: endpoint,
		config:   cfg,
		limiter:  newLimiter(cfg.RequestsPerMinute),
		httpClient: &http.Client{
			Timeout: cfg.APITimeout,
		},
		logger: logger.Named("llm.openai"),
	}, nil
}

// GenerateResponse sends the prompts (and optional inline screenshot) to
// the chat completions API with a bounded retry policy.
func (c *OpenAIClient) GenerateResponse(ctx context.Context, req schemas.GenerationRequest) (string, schemas.GenerationUsage, error) {
	payload, err := c.buildRequestPayload(req)
	if err != nil {
		return "", schemas.GenerationUsage{}, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", schemas.GenerationUsage{}, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", schemas.GenerationUsage{}, wrapTimeout("openai", err)
	}

	var (
		responseContent string
		usage           schemas.GenerationUsage
	)

	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

		startTime := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		duration := time.Since(startTime)
		if err != nil {
			c.logger.Warn("Network error during LLM request, retrying", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		var responsePayload openAIResponsePayload
		if err := json.Unmarshal(respBody, &responsePayload); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}
		if len(responsePayload.Choices) == 0 {
			return backoff.Permanent(fmt.Errorf("openai API returned no choices"))
		}

		usage = schemas.GenerationUsage{
			PromptTokens:     responsePayload.Usage.PromptTokens,
			CompletionTokens: responsePayload.Usage.CompletionTokens,
			TotalTokens:      responsePayload.Usage.TotalTokens,
		}
		c.logger.Info("LLM generation complete (OpenAI)",
			zap.Duration("duration", duration),
			zap.Int("total_tokens", usage.TotalTokens),
		)

		responseContent = responsePayload.Choices[0].Message.Content
		return nil
	}

	if err = backoff.Retry(operation, retryPolicy(ctx, c.config.MaxRetries)); err != nil {
		return "", schemas.GenerationUsage{}, wrapTimeout("openai", err)
	}
	return responseContent, usage, nil
}

func (c *OpenAIClient) buildRequestPayload(req schemas.GenerationRequest) (openAIRequestPayload, error) {
	userContent := interface{}(req.UserPrompt)
	if req.ImagePath != "" {
		data, err := os.ReadFile(req.ImagePath)
		if err != nil {
			return openAIRequestPayload{}, fmt.Errorf("reading prompt image: %w", err)
		}
		userContent = []openAIContentPart{
			{Type: "text", Text: req.UserPrompt},
			{Type: "image_url", ImageURL: &openAIImageURL{
				URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(data),
			}},
		}
	}

	payload := openAIRequestPayload{
		Model: c.config.Model,
		Messages: []openAIMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: userContent},
		},
		Temperature: float64(req.Options.Temperature),
		MaxTokens:   c.config.MaxTokens,
	}
	if req.Options.MaxTokens > 0 {
		payload.MaxTokens = req.Options.MaxTokens
	}
	if req.Options.ForceJSONFormat {
		payload.ResponseFormat = &struct {
			Type string `json:"type"`
		}{Type: "json_object"}
	}
	return payload, nil
}

func (c *OpenAIClient) handleAPIError(statusCode int, body []byte) error {
	c.logger.Error("OpenAI API returned error status", zap.Int("status", statusCode), zap.ByteString("response", body))
	err := fmt.Errorf("openai API error: status %d", statusCode)

	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err // Transient; retry.
	default:
		return backoff.Permanent(err)
	}
}
