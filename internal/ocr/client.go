// Package ocr implements the grounding collaborator: a thin client for
// the OCR sidecar that localizes text/element regions on a screenshot.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/ganainy/ai-mobile-ui-crawler-sub003/api/schemas"
	"github.com/ganainy/ai-mobile-ui-crawler-sub003/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client posts screenshots to the OCR sidecar and returns the detections
// in the provider's reading order.
type Client struct {
	cfg        config.OCRConfig
	httpClient *http.Client
	logger     *zap.Logger
}

var _ schemas.GroundingClient = (*Client)(nil)

// NewClient builds a grounding client for the configured endpoint.
func NewClient(cfg config.OCRConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger.Named("ocr"),
	}
}

type detectRequest struct {
	Image string `json:"image"`
}

type detectResponse struct {
	Regions []schemas.DetectedRegion `json:"regions"`
}

// DetectRegions sends the screenshot at imagePath to the sidecar and
// returns detections above the configured confidence floor. Degenerate
// boxes are dropped rather than propagated into the label map.
func (c *Client) DetectRegions(ctx context.Context, imagePath string) ([]schemas.DetectedRegion, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("reading screenshot: %w", err)
	}

	body, err := json.Marshal(detectRequest{Image: base64.StdEncoding.EncodeToString(data)})
	if err != nil {
		return nil, fmt.Errorf("encoding detect request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building detect request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("calling OCR sidecar: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading OCR response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("OCR sidecar returned status %d", resp.StatusCode)
	}

	var decoded detectResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, fmt.Errorf("decoding OCR response: %w", err)
	}

	regions := make([]schemas.DetectedRegion, 0, len(decoded.Regions))
	for _, r := range decoded.Regions {
		if r.Confidence < c.cfg.MinConfidence {
			continue
		}
		if err := r.Box.Validate(); err != nil {
			c.logger.Debug("Dropping degenerate detection", zap.String("text", r.Text), zap.Error(err))
			continue
		}
		regions = append(regions, r)
	}

	c.logger.Debug("Grounding complete",
		zap.Int("detected", len(decoded.Regions)), zap.Int("kept", len(regions)))
	return regions, nil
}
