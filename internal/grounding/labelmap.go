// Package grounding assigns stable integer labels to detected screen
// regions so the model can reference elements without raw coordinates.
package grounding

import (
	"sort"

	"github.com/ganainy/ai-mobile-ui-crawler-sub003/api/schemas"
)

// LabelMap maps the label ids of a single exploration cycle to screen
// coordinates. Ids are contiguous starting at 1 and are never reused
// within the same map; the map must be cleared before every new cycle so
// stale ids from a previous screen can never resolve.
type LabelMap struct {
	centers map[int]schemas.Point
	regions map[int]schemas.DetectedRegion
}

// NewLabelMap returns an empty label map.
func NewLabelMap() *LabelMap {
	m := &LabelMap{}
	m.Clear()
	return m
}

// Clear empties the map. Required before every new assignment.
func (m *LabelMap) Clear() {
	m.centers = make(map[int]schemas.Point)
	m.regions = make(map[int]schemas.DetectedRegion)
}

// Assign clears the map and labels the supplied regions 1..len(regions)
// in input order, each id mapped to the region's center point. Every
// supplied region gets exactly one id, even when bounding boxes overlap.
// The caller is responsible for supplying a stable reading order.
func (m *LabelMap) Assign(regions []schemas.DetectedRegion) {
	m.Clear()
	for i, r := range regions {
		id := i + 1
		m.centers[id] = r.Center()
		m.regions[id] = r
	}
}

// Lookup resolves a label id to its center coordinate.
func (m *LabelMap) Lookup(id int) (schemas.Point, bool) {
	p, ok := m.centers[id]
	return p, ok
}

// Region returns the full detection behind a label id.
func (m *LabelMap) Region(id int) (schemas.DetectedRegion, bool) {
	r, ok := m.regions[id]
	return r, ok
}

// Len returns the number of assigned labels.
func (m *LabelMap) Len() int {
	return len(m.centers)
}

// Labels returns the assigned ids in ascending order.
func (m *LabelMap) Labels() []int {
	ids := make([]int, 0, len(m.centers))
	for id := range m.centers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// rowTolerancePx treats regions whose vertical centers are within this
// many pixels as belonging to the same text row.
const rowTolerancePx = 12

// SortReadingOrder orders regions top-to-bottom, then left-to-right within
// a row, so the same detection set always yields the same label ids. The
// sort is stable: detections the tolerance cannot separate keep their
// provider order.
func SortReadingOrder(regions []schemas.DetectedRegion) []schemas.DetectedRegion {
	sorted := make([]schemas.DetectedRegion, len(regions))
	copy(sorted, regions)

	sort.SliceStable(sorted, func(i, j int) bool {
		ci, cj := sorted[i].Center(), sorted[j].Center()
		di := ci.Y - cj.Y
		if di < -rowTolerancePx || di > rowTolerancePx {
			return ci.Y < cj.Y
		}
		return ci.X < cj.X
	})
	return sorted
}
