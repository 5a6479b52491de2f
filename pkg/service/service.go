// Package service is the operations facade over the whole pipeline. A
// Service owns the engine and every cache tier and exposes the external
// surface: raw SQL, cache-aware reads and writes, scalar buffer precomputes,
// the durable chunk store, and the voxel world.
//
// Invalidate-on-write holds the engine section first, releases it, then takes
// the cache section. No operation ever holds both at once.
package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arsdragonfly/ultralogi/pkg/cache"
	"github.com/arsdragonfly/ultralogi/pkg/chunks"
	"github.com/arsdragonfly/ultralogi/pkg/config"
	"github.com/arsdragonfly/ultralogi/pkg/engine"
	"github.com/arsdragonfly/ultralogi/pkg/metrics"
	"github.com/arsdragonfly/ultralogi/pkg/packer"
	"github.com/arsdragonfly/ultralogi/pkg/transform"
	"github.com/arsdragonfly/ultralogi/pkg/voxel"
)

// tileQuery is the fixed full scan every buffer-producing path runs. Row
// order is part of the buffer contract, so the ORDER BY is not optional.
const tileQuery = `SELECT x, y, tile_type, elevation FROM tiles ORDER BY y, x`

// Service wires the engine to the cache tiers.
type Service struct {
	cfg *config.Config
	log *zap.Logger

	eng     *engine.Engine
	results *cache.ResultCache
	gpu     *cache.BufferSlot
	raw     *cache.BufferSlot
	chunks  *chunks.Store
	voxels  *voxel.World
}

// New validates cfg, opens the engine, and returns a ready Service.
func New(cfg *config.Config, log *zap.Logger) (*Service, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	eng, err := engine.Open(cfg.Engine, log)
	if err != nil {
		return nil, err
	}

	return &Service{
		cfg:     cfg,
		log:     log,
		eng:     eng,
		results: cache.NewResultCache(),
		gpu:     cache.NewBufferSlot("gpu"),
		raw:     cache.NewBufferSlot("raw"),
		chunks:  chunks.NewStore(eng, log),
		voxels:  voxel.NewWorld(eng, log),
	}, nil
}

// Execute runs a statement directly on the engine, bypassing every cache.
func (s *Service) Execute(ctx context.Context, sqlText string, args ...interface{}) (int64, error) {
	metrics.StatementsExecuted.WithLabelValues("raw").Inc()
	return s.eng.Execute(ctx, sqlText, args...)
}

// Query streams a query result as Arrow IPC bytes, bypassing every cache.
func (s *Service) Query(ctx context.Context, sqlText string, args ...interface{}) ([]byte, error) {
	metrics.StatementsExecuted.WithLabelValues("raw").Inc()
	return s.eng.QueryIPC(ctx, sqlText, args...)
}

// BulkInsert runs one INSERT statement per row inside a single engine
// transaction and invalidates the result cache afterwards, same ordering as
// ExecuteWithCache.
func (s *Service) BulkInsert(ctx context.Context, insertSQL string, rows [][]interface{}) (int64, error) {
	metrics.StatementsExecuted.WithLabelValues("cached").Inc()

	n, err := s.eng.BulkInsert(ctx, insertSQL, rows)
	if err != nil {
		return 0, err
	}

	if cache.IsWrite(insertSQL) {
		s.results.InvalidateAll()
		s.log.Debug("result cache invalidated", zap.Int64("rows", n))
	}
	return n, nil
}

// QueryCached serves the fixed tile scan through the result cache and packs
// the rows into the GPU vertex layout using the configured render defaults. A
// hit never touches the engine; packing cost remains.
func (s *Service) QueryCached(ctx context.Context) ([]byte, error) {
	table, err := s.QueryTilesCached(ctx, tileQuery)
	if err != nil {
		return nil, err
	}

	positions, colors := transform.VertexData(table,
		float32(s.cfg.Render.TileSpacing), float32(s.cfg.Render.ColorScale))
	return packer.EncodeVertex(positions, colors)
}

// QueryTilesCached returns the tile table for the exact query text, serving
// from the result cache when the same text was queried since the last
// invalidation. The returned table is read-only by contract.
func (s *Service) QueryTilesCached(ctx context.Context, sqlText string) (*engine.Table, error) {
	return s.results.GetOrCompute(sqlText, func() (*engine.Table, error) {
		metrics.StatementsExecuted.WithLabelValues("cached").Inc()
		return s.eng.QueryTiles(ctx, sqlText)
	})
}

// ExecuteWithCache runs a statement and, when its leading keyword mutates
// state, invalidates the whole result cache afterwards. The engine section is
// released before the cache section is taken.
func (s *Service) ExecuteWithCache(ctx context.Context, sqlText string, args ...interface{}) (int64, error) {
	metrics.StatementsExecuted.WithLabelValues("cached").Inc()

	n, err := s.eng.Execute(ctx, sqlText, args...)
	if err != nil {
		return 0, err
	}

	if cache.IsWrite(sqlText) {
		s.results.InvalidateAll()
		s.log.Debug("result cache invalidated", zap.String("statement", firstWord(sqlText)))
	}
	return n, nil
}

// PrecomputeGPUData runs the full tile scan, transforms it into vertex
// arrays with the given spacing and color scale, packs them, and stores the
// buffer in the GPU slot. Returns the elapsed wall time of the whole pass.
func (s *Service) PrecomputeGPUData(ctx context.Context, spacing, colorScale float32) (time.Duration, error) {
	timer := metrics.NewTimer()

	table, err := s.eng.QueryTiles(ctx, tileQuery)
	if err != nil {
		return 0, err
	}

	positions, colors := transform.VertexData(table, spacing, colorScale)

	buf, err := packer.EncodeVertex(positions, colors)
	if err != nil {
		return 0, err
	}
	s.gpu.Store(buf)

	elapsed := timer.Stop()
	metrics.PrecomputeDuration.WithLabelValues("gpu").Observe(elapsed.Seconds())
	s.log.Info("gpu buffer precomputed",
		zap.Int("tiles", table.NumRows()),
		zap.Int("bytes", len(buf)),
		zap.Duration("elapsed", elapsed))
	return elapsed, nil
}

// FetchPrecomputed returns a copy of the precomputed GPU vertex buffer. Fails
// with a not-initialized error before the first precompute.
func (s *Service) FetchPrecomputed() ([]byte, error) {
	return s.gpu.Fetch()
}

// ExportRawColumns packs the full tile scan into the raw SoA column layout
// and returns it without caching.
func (s *Service) ExportRawColumns(ctx context.Context) ([]byte, error) {
	table, err := s.eng.QueryTiles(ctx, tileQuery)
	if err != nil {
		return nil, err
	}
	return packer.EncodeColumns(table.X, table.Y, table.TileType, table.Elevation)
}

// CacheRawColumns packs the full tile scan into the raw SoA column layout and
// stores it in the raw slot. Returns the elapsed wall time of the pass.
func (s *Service) CacheRawColumns(ctx context.Context) (time.Duration, error) {
	timer := metrics.NewTimer()

	buf, err := s.ExportRawColumns(ctx)
	if err != nil {
		return 0, err
	}
	s.raw.Store(buf)

	elapsed := timer.Stop()
	metrics.PrecomputeDuration.WithLabelValues("raw").Observe(elapsed.Seconds())
	s.log.Info("raw column buffer cached",
		zap.Int("bytes", len(buf)),
		zap.Duration("elapsed", elapsed))
	return elapsed, nil
}

// FetchCachedRaw returns a copy of the cached raw column buffer. Fails with a
// not-initialized error before the first CacheRawColumns.
func (s *Service) FetchCachedRaw() ([]byte, error) {
	return s.raw.Fetch()
}

// GenerateChunks regenerates the durable chunk store for the given grid
// geometry and render parameters.
func (s *Service) GenerateChunks(ctx context.Context, gridSize, chunkSize int, spacing, colorScale float32) error {
	return s.chunks.Generate(ctx, chunks.GenerateOptions{
		GridSize:   gridSize,
		ChunkSize:  chunkSize,
		Spacing:    spacing,
		ColorScale: colorScale,
	})
}

// QueryCombinedChunks aggregates every persisted chunk into one vertex
// buffer.
func (s *Service) QueryCombinedChunks(ctx context.Context) ([]byte, error) {
	return s.chunks.QueryCombined(ctx)
}

// CacheStats snapshots the result cache.
func (s *Service) CacheStats() cache.Stats {
	return s.results.Stats()
}

// ClearCache invalidates the result cache and empties both scalar slots. The
// chunk store is durable and unaffected.
func (s *Service) ClearCache() {
	s.results.InvalidateAll()
	s.gpu.Clear()
	s.raw.Clear()
}

// ExplainQuery returns the engine's plan for a query without executing it.
func (s *Service) ExplainQuery(ctx context.Context, sqlText string) (string, error) {
	return s.eng.Explain(ctx, sqlText)
}

// CreateVoxelWorld generates the voxel chunk column at (chunkX, chunkZ).
func (s *Service) CreateVoxelWorld(ctx context.Context, chunkX, chunkZ int) error {
	return s.voxels.CreateChunk(ctx, chunkX, chunkZ)
}

// QueryVoxelChunk streams one voxel chunk's solid blocks as Arrow IPC.
func (s *Service) QueryVoxelChunk(ctx context.Context, chunkX, chunkZ int) ([]byte, error) {
	return s.voxels.QueryChunk(ctx, chunkX, chunkZ)
}

// QueryVoxelChunkRaw packs one voxel chunk's solid blocks into the dense u8
// column buffer.
func (s *Service) QueryVoxelChunkRaw(ctx context.Context, chunkX, chunkZ int) ([]byte, error) {
	return s.voxels.QueryChunkRaw(ctx, chunkX, chunkZ)
}

// Close shuts the engine down. Further engine-touching operations fail with a
// lock error; in-memory caches keep serving what they hold.
func (s *Service) Close() error {
	return s.eng.Close()
}

func firstWord(sqlText string) string {
	fields := strings.Fields(sqlText)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
