package observability

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ganainy/ai-mobile-ui-crawler-sub003/internal/config"
)

// resetGlobalLogger keeps tests isolated; the logger is a process-wide
// singleton guarded by a sync.Once.
func resetGlobalLogger() {
	once = sync.Once{}
	globalLogger.Store(nil)
}

// memorySink collects encoded log output in memory.
type memorySink struct {
	mu  sync.Mutex
	buf []byte
}

func (s *memorySink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = append(s.buf, p...)
	return len(p), nil
}

func (s *memorySink) Sync() error { return nil }

func (s *memorySink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.buf)
}

var _ zapcore.WriteSyncer = (*memorySink)(nil)

func TestInitialize(t *testing.T) {
	t.Run("console format colorizes the level", func(t *testing.T) {
		resetGlobalLogger()
		sink := &memorySink{}

		Initialize(config.LoggerConfig{
			Level:       "debug",
			Format:      "console",
			ServiceName: "crawler-test",
			Colors:      config.ColorConfig{Info: "green"},
		}, sink)

		GetLogger().Info("exploration started")

		out := sink.String()
		assert.Contains(t, out, "INFO")
		assert.Contains(t, out, "exploration started")
		assert.Contains(t, out, colorGreen)
		assert.Contains(t, out, colorReset)
		assert.Contains(t, out, "crawler-test.")
	})

	t.Run("json format emits structured entries", func(t *testing.T) {
		resetGlobalLogger()
		sink := &memorySink{}

		Initialize(config.LoggerConfig{
			Level:       "info",
			Format:      "json",
			ServiceName: "crawler-test",
		}, sink)

		GetLogger().Warn("device slow", zap.String("serial", "emulator-5554"))

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(sink.String()), &entry))
		assert.Equal(t, "WARN", entry["level"])
		assert.Equal(t, "device slow", entry["msg"])
		assert.Equal(t, "emulator-5554", entry["serial"])
	})

	t.Run("level below threshold is dropped", func(t *testing.T) {
		resetGlobalLogger()
		sink := &memorySink{}

		Initialize(config.LoggerConfig{Level: "warn", Format: "json"}, sink)
		GetLogger().Info("too quiet")
		assert.Empty(t, sink.String())
	})

	t.Run("bad level falls back to info", func(t *testing.T) {
		resetGlobalLogger()
		sink := &memorySink{}

		Initialize(config.LoggerConfig{Level: "loud", Format: "json"}, sink)
		GetLogger().Info("still visible")
		assert.Contains(t, sink.String(), "still visible")
	})

	t.Run("second initialize is a no-op", func(t *testing.T) {
		resetGlobalLogger()
		first := &memorySink{}
		second := &memorySink{}

		Initialize(config.LoggerConfig{Level: "info", Format: "json"}, first)
		Initialize(config.LoggerConfig{Level: "info", Format: "json"}, second)

		GetLogger().Info("routed once")
		assert.Contains(t, first.String(), "routed once")
		assert.Empty(t, second.String())
	})
}

func TestGetLoggerFallback(t *testing.T) {
	resetGlobalLogger()
	logger := GetLogger()
	require.NotNil(t, logger)
	// Must be safe to use before Initialize runs.
	logger.Debug("early message", zap.Int("n", 1))
}

func TestNamedSubLoggers(t *testing.T) {
	resetGlobalLogger()
	sink := &memorySink{}
	Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "crawler"}, sink)

	sub := GetLogger().Named("store")
	sub.Info("ready")
	assert.Contains(t, sink.String(), `"logger":"crawler.store"`)
}

func TestSyncWithoutInitialize(t *testing.T) {
	resetGlobalLogger()
	// Must not panic.
	Sync()
}
