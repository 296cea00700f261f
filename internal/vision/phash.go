// Package vision implements the perceptual change detector used to decide
// whether an executed action actually moved the app to a new screen.
package vision

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"
)

// hashSize is the side of the luminance grid; the hash carries one bit
// per cell, 64 in total.
const hashSize = 8

// Detector compares two screen captures with a 64-bit average hash.
// The hash is computed over an 8x8 grayscale reduction, which makes it
// robust to compression artifacts and minor rendering noise while staying
// sensitive to layout and content change.
type Detector struct {
	threshold int
}

// NewDetector builds a detector that reports change when the Hamming
// distance between the two hashes exceeds threshold.
func NewDetector(threshold int) *Detector {
	return &Detector{threshold: threshold}
}

// Changed reports whether the two encoded frames differ meaningfully.
// Identical inputs always compare equal; exact pixel equality is not the
// criterion.
func (d *Detector) Changed(before, after []byte) (bool, error) {
	hb, err := PerceptualHash(before)
	if err != nil {
		return false, fmt.Errorf("hashing pre-action frame: %w", err)
	}
	ha, err := PerceptualHash(after)
	if err != nil {
		return false, fmt.Errorf("hashing post-action frame: %w", err)
	}
	return HammingDistance(hb, ha) > d.threshold, nil
}

// PerceptualHash decodes an encoded PNG or JPEG frame and returns its
// 64-bit average hash. The computation is deterministic for identical
// inputs.
func PerceptualHash(encoded []byte) (uint64, error) {
	img, _, err := image.Decode(bytes.NewReader(encoded))
	if err != nil {
		return 0, fmt.Errorf("decoding frame: %w", err)
	}
	return hashImage(img), nil
}

// HammingDistance counts the differing bits between two hashes.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// hashImage reduces the image to an 8x8 luminance grid by box averaging,
// then emits one bit per cell brighter than the grid mean.
func hashImage(img image.Image) uint64 {
	grid := reduce(img)

	var mean uint64
	for row := 0; row < hashSize; row++ {
		for col := 0; col < hashSize; col++ {
			mean += grid[row][col]
		}
	}
	mean /= hashSize * hashSize

	var hash uint64
	bit := 0
	for row := 0; row < hashSize; row++ {
		for col := 0; col < hashSize; col++ {
			if grid[row][col] > mean {
				hash |= 1 << uint(bit)
			}
			bit++
		}
	}
	return hash
}

// reduce averages the source pixels falling into each grid cell. Cell
// bounds are computed from integer division so the mapping is exact and
// reproducible.
func reduce(img image.Image) [hashSize][hashSize]uint64 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	var grid [hashSize][hashSize]uint64
	for row := 0; row < hashSize; row++ {
		y0 := bounds.Min.Y + row*h/hashSize
		y1 := bounds.Min.Y + (row+1)*h/hashSize
		if y1 <= y0 {
			y1 = y0 + 1
		}
		for col := 0; col < hashSize; col++ {
			x0 := bounds.Min.X + col*w/hashSize
			x1 := bounds.Min.X + (col+1)*w/hashSize
			if x1 <= x0 {
				x1 = x0 + 1
			}

			var sum, count uint64
			for y := y0; y < y1; y++ {
				for x := x0; x < x1; x++ {
					r, g, b, _ := img.At(x, y).RGBA()
					// Integer BT.601 luma over 16-bit channels.
					sum += (299*uint64(r) + 587*uint64(g) + 114*uint64(b)) / 1000
					count++
				}
			}
			grid[row][col] = sum / count
		}
	}
	return grid
}
