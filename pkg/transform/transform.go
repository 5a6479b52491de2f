// Package transform turns tile rows into the GPU-ready vertex arrays consumed
// by the rendering front-end: one position vec4 and one color vec4 per tile,
// in source row order.
package transform

import (
	"github.com/arsdragonfly/ultralogi/pkg/engine"
)

// tileColors maps tile-type codes 0-5 to their base RGB triples. Any other
// code falls back to neutral gray.
var tileColors = [6][3]float32{
	{0.2, 0.5, 0.8},  // water
	{0.3, 0.7, 0.3},  // grass
	{0.6, 0.6, 0.5},  // rock
	{0.9, 0.9, 0.95}, // snow
	{0.8, 0.7, 0.4},  // sand
	{0.1, 0.4, 0.1},  // forest
}

// TileColor returns the RGB triple for a tile type, each component scaled by
// colorScale. Codes outside 0-5 map to (0.5, 0.5, 0.5) scaled likewise.
func TileColor(tileType int32, colorScale float32) (r, g, b float32) {
	if tileType < 0 || int(tileType) >= len(tileColors) {
		return 0.5 * colorScale, 0.5 * colorScale, 0.5 * colorScale
	}
	c := tileColors[tileType]
	return c[0] * colorScale, c[1] * colorScale, c[2] * colorScale
}

// VertexData transforms every row of a tile table into dense position and
// color vec4 arrays. Row i's position is (x*spacing, y*spacing, elevation, 1)
// and its color is the tile palette entry with alpha fixed at 1.
func VertexData(t *engine.Table, spacing, colorScale float32) (positions, colors []float32) {
	n := t.NumRows()
	positions = make([]float32, 0, n*4)
	colors = make([]float32, 0, n*4)

	for i := 0; i < n; i++ {
		positions = append(positions,
			float32(t.X[i])*spacing,
			float32(t.Y[i])*spacing,
			t.Elevation[i],
			1.0,
		)

		r, g, b := TileColor(t.TileType[i], colorScale)
		colors = append(colors, r, g, b, 1.0)
	}

	return positions, colors
}
