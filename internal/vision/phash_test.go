package vision

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// encodeFrame renders a simple two-tone screen: background fill with a
// filled rectangle, optionally perturbed with low-amplitude noise.
func encodeFrame(t *testing.T, bg, fg color.Gray, rect image.Rectangle, noise int, seed int64) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 360, 640))
	rng := rand.New(rand.NewSource(seed))

	for y := 0; y < 640; y++ {
		for x := 0; x < 360; x++ {
			c := bg
			if (image.Point{x, y}).In(rect) {
				c = fg
			}
			if noise > 0 {
				v := int(c.Y) + rng.Intn(2*noise+1) - noise
				if v < 0 {
					v = 0
				}
				if v > 255 {
					v = 255
				}
				c = color.Gray{Y: uint8(v)}
			}
			img.SetGray(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestChanged(t *testing.T) {
	light := color.Gray{Y: 230}
	dark := color.Gray{Y: 20}
	topBar := image.Rect(0, 0, 360, 80)
	bottomSheet := image.Rect(0, 320, 360, 640)

	detector := NewDetector(10)

	t.Run("identical frames are unchanged", func(t *testing.T) {
		frame := encodeFrame(t, light, dark, topBar, 0, 1)
		changed, err := detector.Changed(frame, frame)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("compression-grade noise is unchanged", func(t *testing.T) {
		before := encodeFrame(t, light, dark, topBar, 0, 1)
		after := encodeFrame(t, light, dark, topBar, 4, 99)
		changed, err := detector.Changed(before, after)
		require.NoError(t, err)
		assert.False(t, changed)
	})

	t.Run("layout change is detected", func(t *testing.T) {
		before := encodeFrame(t, light, dark, topBar, 0, 1)
		after := encodeFrame(t, dark, light, bottomSheet, 0, 1)
		changed, err := detector.Changed(before, after)
		require.NoError(t, err)
		assert.True(t, changed)
	})

	t.Run("undecodable input is an error", func(t *testing.T) {
		frame := encodeFrame(t, light, dark, topBar, 0, 1)
		_, err := detector.Changed([]byte("not an image"), frame)
		assert.Error(t, err)
	})
}

func TestPerceptualHashDeterminism(t *testing.T) {
	frame := encodeFrame(t, color.Gray{Y: 200}, color.Gray{Y: 40}, image.Rect(40, 40, 320, 200), 0, 7)

	first, err := PerceptualHash(frame)
	require.NoError(t, err)
	second, err := PerceptualHash(frame)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Zero(t, HammingDistance(first, second))
}
