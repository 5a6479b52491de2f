// Package chunks implements the spatial chunk store: precomputed per-chunk
// vertex buffers persisted in the engine's own durable storage and assembled
// into one combined buffer on read.
//
// Chunk blobs are immutable once generated; Generate always clears and fully
// regenerates the store, never patches. Writes to source tables do not
// invalidate existing chunks.
package chunks

import (
	"context"

	"go.uber.org/zap"

	"github.com/arsdragonfly/ultralogi/pkg/engine"
	"github.com/arsdragonfly/ultralogi/pkg/errors"
	"github.com/arsdragonfly/ultralogi/pkg/metrics"
	"github.com/arsdragonfly/ultralogi/pkg/packer"
	"github.com/arsdragonfly/ultralogi/pkg/transform"
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS tile_chunks (
		chunk_x INTEGER NOT NULL,
		chunk_y INTEGER NOT NULL,
		gpu_data BLOB NOT NULL,
		PRIMARY KEY (chunk_x, chunk_y)
	)`

	chunkTilesSQL = `SELECT x, y, tile_type, elevation FROM tiles
		WHERE x >= ? AND x < ? AND y >= ? AND y < ?
		ORDER BY y, x`

	insertChunkSQL = `INSERT OR REPLACE INTO tile_chunks (chunk_x, chunk_y, gpu_data) VALUES (?, ?, ?)`

	combinedSQL = `SELECT gpu_data FROM tile_chunks ORDER BY chunk_y, chunk_x`
)

// Store reads and regenerates the durable chunk collection.
type Store struct {
	eng *engine.Engine
	log *zap.Logger
}

// GenerateOptions parameterize a full chunk regeneration pass.
type GenerateOptions struct {
	GridSize   int
	ChunkSize  int
	Spacing    float32
	ColorScale float32
}

// NewStore returns a chunk store backed by the given engine.
func NewStore(eng *engine.Engine, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{eng: eng, log: log}
}

// Generate partitions the grid into (GridSize/ChunkSize)² disjoint chunks,
// queries each chunk's half-open interval, transforms the rows, and persists
// one packed vertex blob per chunk. The pass is a blocking batch job that
// replaces the whole store.
func (s *Store) Generate(ctx context.Context, opts GenerateOptions) error {
	if opts.ChunkSize <= 0 || opts.GridSize <= 0 {
		return errors.Newf(errors.ErrorTypeConfig,
			"grid and chunk sizes must be positive, got grid=%d chunk=%d",
			opts.GridSize, opts.ChunkSize)
	}
	if opts.GridSize%opts.ChunkSize != 0 {
		return errors.Newf(errors.ErrorTypeConfig,
			"grid size %d is not divisible by chunk size %d", opts.GridSize, opts.ChunkSize)
	}

	timer := metrics.NewTimer()

	if _, err := s.eng.Execute(ctx, createTableSQL); err != nil {
		return err
	}
	if _, err := s.eng.Execute(ctx, `DELETE FROM tile_chunks`); err != nil {
		return err
	}

	chunksPerSide := opts.GridSize / opts.ChunkSize
	for cy := 0; cy < chunksPerSide; cy++ {
		for cx := 0; cx < chunksPerSide; cx++ {
			xMin := cx * opts.ChunkSize
			yMin := cy * opts.ChunkSize

			table, err := s.eng.QueryTiles(ctx, chunkTilesSQL,
				xMin, xMin+opts.ChunkSize, yMin, yMin+opts.ChunkSize)
			if err != nil {
				return err
			}

			positions, colors := transform.VertexData(table, opts.Spacing, opts.ColorScale)
			blob, err := packer.EncodeVertex(positions, colors)
			if err != nil {
				return err
			}

			if _, err := s.eng.Execute(ctx, insertChunkSQL, cx, cy, blob); err != nil {
				return err
			}
		}
	}

	elapsed := timer.Stop()
	metrics.ChunkGenerateDuration.Observe(elapsed.Seconds())
	s.log.Info("chunk store regenerated",
		zap.Int("chunks", chunksPerSide*chunksPerSide),
		zap.Duration("elapsed", elapsed))

	return nil
}

// QueryCombined reads every persisted chunk ordered by (chunk_y, chunk_x),
// concatenates all position arrays in that order followed by all color
// arrays, and returns one buffer whose count is the sum of per-chunk counts.
// A blob shorter than what its declared count implies is skipped, so one
// corrupt chunk does not abort aggregation of the rest.
func (s *Store) QueryCombined(ctx context.Context) ([]byte, error) {
	if _, err := s.eng.Execute(ctx, createTableSQL); err != nil {
		return nil, err
	}

	blobs, err := s.eng.QueryBlobs(ctx, combinedSQL)
	if err != nil {
		return nil, err
	}

	var (
		allPositions []byte
		allColors    []byte
		totalCount   uint32
	)

	for i, blob := range blobs {
		count, posBytes, colorBytes, err := packer.SplitVertex(blob)
		if err != nil {
			metrics.ChunksSkipped.Inc()
			s.log.Warn("skipping malformed chunk blob",
				zap.Int("index", i),
				zap.Int("bytes", len(blob)),
				zap.Error(err))
			continue
		}
		allPositions = append(allPositions, posBytes...)
		allColors = append(allColors, colorBytes...)
		totalCount += count
	}

	out, err := packer.JoinVertex(totalCount, allPositions, allColors)
	if err != nil {
		return nil, err
	}

	metrics.BufferBytes.WithLabelValues("chunk").Set(float64(len(out)))
	return out, nil
}
