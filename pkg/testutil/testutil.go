// Package testutil provides testing utilities for ultralogi
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/arsdragonfly/ultralogi/pkg/config"
	"github.com/arsdragonfly/ultralogi/pkg/engine"
)

// Tile is a single test fixture row.
type Tile struct {
	X, Y, Type int32
	Elevation  float32
}

// TestLogger creates a test logger that writes to the test output.
// The logger is automatically cleaned up when the test completes.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// TestEngine opens an in-memory engine with the tiles schema created and
// closes it when the test completes.
func TestEngine(t *testing.T) *engine.Engine {
	t.Helper()

	cfg := config.New().Engine
	eng, err := engine.Open(cfg, TestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, eng.Close())
	})

	ctx, cancel := TestContext(t)
	defer cancel()

	_, err = eng.Execute(ctx, `CREATE TABLE tiles (
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		tile_type INTEGER NOT NULL,
		elevation REAL NOT NULL
	)`)
	require.NoError(t, err)

	return eng
}

// SeedTiles inserts the given fixture rows into the tiles table.
func SeedTiles(t *testing.T, eng *engine.Engine, tiles []Tile) {
	t.Helper()

	ctx, cancel := TestContext(t)
	defer cancel()

	rows := make([][]interface{}, 0, len(tiles))
	for _, tile := range tiles {
		rows = append(rows, []interface{}{tile.X, tile.Y, tile.Type, tile.Elevation})
	}

	n, err := eng.BulkInsert(ctx,
		`INSERT INTO tiles (x, y, tile_type, elevation) VALUES (?, ?, ?, ?)`, rows)
	require.NoError(t, err)
	require.Equal(t, int64(len(tiles)), n)
}

// GridTiles builds a size×size grid of deterministic fixture tiles.
func GridTiles(size int) []Tile {
	tiles := make([]Tile, 0, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			tiles = append(tiles, Tile{
				X:         int32(x),
				Y:         int32(y),
				Type:      int32((x + y) % 7),
				Elevation: float32(x)*0.5 + float32(y)*0.25,
			})
		}
	}
	return tiles
}
