package schemas

import "fmt"

// -- Geometry Schemas --

// Point is a pixel coordinate on the device screen.
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// BoundingBox is an axis-aligned rectangle in screenshot pixel space.
// A valid box satisfies XMin < XMax and YMin < YMax.
type BoundingBox struct {
	XMin int `json:"x_min"`
	YMin int `json:"y_min"`
	XMax int `json:"x_max"`
	YMax int `json:"y_max"`
}

// Validate checks the box invariant.
func (b BoundingBox) Validate() error {
	if b.XMin >= b.XMax || b.YMin >= b.YMax {
		return fmt.Errorf("degenerate bounding box [%d,%d,%d,%d]", b.XMin, b.YMin, b.XMax, b.YMax)
	}
	return nil
}

// Center returns the midpoint of the box, rounded down.
func (b BoundingBox) Center() Point {
	return Point{
		X: (b.XMin + b.XMax) / 2,
		Y: (b.YMin + b.YMax) / 2,
	}
}

// Width returns the horizontal extent of the box.
func (b BoundingBox) Width() int { return b.XMax - b.XMin }

// Height returns the vertical extent of the box.
func (b BoundingBox) Height() int { return b.YMax - b.YMin }

// DetectedRegion is one OCR/element detection on a single screenshot.
// Regions are ephemeral; they live only for the decision cycle that
// produced them.
type DetectedRegion struct {
	Text       string      `json:"text"`
	Box        BoundingBox `json:"box"`
	Confidence float64     `json:"confidence"` // in [0,1]
}

// Center returns the center point of the region's bounding box.
func (r DetectedRegion) Center() Point {
	return r.Box.Center()
}
