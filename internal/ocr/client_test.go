package ocr

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ganainy/ai-mobile-ui-crawler-sub003/internal/config"
)

func writeScreenshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, os.WriteFile(path, []byte("fake-png-bytes"), 0o644))
	return path
}

func TestDetectRegions(t *testing.T) {
	imagePath := writeScreenshot(t)

	t.Run("filters by confidence and validity", func(t *testing.T) {
		var gotImage string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			var req detectRequest
			require.NoError(t, json.Unmarshal(body, &req))
			gotImage = req.Image

			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"regions":[
				{"text":"Login","box":{"x_min":10,"y_min":20,"x_max":110,"y_max":60},"confidence":0.95},
				{"text":"noise","box":{"x_min":0,"y_min":0,"x_max":5,"y_max":5},"confidence":0.10},
				{"text":"degenerate","box":{"x_min":50,"y_min":50,"x_max":50,"y_max":80},"confidence":0.90}
			]}`)
		}))
		defer server.Close()

		client := NewClient(config.OCRConfig{
			Endpoint:      server.URL,
			Timeout:       5 * time.Second,
			MinConfidence: 0.5,
		}, zap.NewNop())

		regions, err := client.DetectRegions(context.Background(), imagePath)
		require.NoError(t, err)
		require.Len(t, regions, 1)
		assert.Equal(t, "Login", regions[0].Text)

		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("fake-png-bytes")), gotImage)
	})

	t.Run("preserves provider order", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"regions":[
				{"text":"b","box":{"x_min":0,"y_min":100,"x_max":50,"y_max":140},"confidence":0.9},
				{"text":"a","box":{"x_min":0,"y_min":0,"x_max":50,"y_max":40},"confidence":0.9}
			]}`)
		}))
		defer server.Close()

		client := NewClient(config.OCRConfig{Endpoint: server.URL, Timeout: time.Second}, zap.NewNop())
		regions, err := client.DetectRegions(context.Background(), imagePath)
		require.NoError(t, err)
		require.Len(t, regions, 2)
		assert.Equal(t, "b", regions[0].Text)
		assert.Equal(t, "a", regions[1].Text)
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewClient(config.OCRConfig{Endpoint: server.URL, Timeout: time.Second}, zap.NewNop())
		_, err := client.DetectRegions(context.Background(), imagePath)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("missing screenshot is an error", func(t *testing.T) {
		client := NewClient(config.OCRConfig{Endpoint: "http://127.0.0.1:1", Timeout: time.Second}, zap.NewNop())
		_, err := client.DetectRegions(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
		require.Error(t, err)
	})
}
