package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arsdragonfly/ultralogi/pkg/config"
	"github.com/arsdragonfly/ultralogi/pkg/errors"
	"github.com/arsdragonfly/ultralogi/pkg/packer"
	"github.com/arsdragonfly/ultralogi/pkg/service"
	"github.com/arsdragonfly/ultralogi/pkg/testutil"
)

func newService(t *testing.T) *service.Service {
	t.Helper()

	cfg := config.New()
	cfg.Grid.GridSize = 4
	cfg.Grid.ChunkSize = 2

	svc, err := service.New(cfg, testutil.TestLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func seedTiles(t *testing.T, svc *service.Service, size int) {
	t.Helper()

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	_, err := svc.Execute(ctx, `CREATE TABLE tiles (
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		tile_type INTEGER NOT NULL,
		elevation REAL NOT NULL
	)`)
	require.NoError(t, err)

	for _, tile := range testutil.GridTiles(size) {
		_, err := svc.Execute(ctx, `INSERT INTO tiles VALUES (?, ?, ?, ?)`,
			tile.X, tile.Y, tile.Type, tile.Elevation)
		require.NoError(t, err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.New()
	cfg.Grid.GridSize = 10
	cfg.Grid.ChunkSize = 4

	_, err := service.New(cfg, testutil.TestLogger(t))
	require.Error(t, err)
}

func TestQueryCachedPacksKnownTiles(t *testing.T) {
	svc := newService(t)

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	_, err := svc.Execute(ctx, `CREATE TABLE tiles (
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		tile_type INTEGER NOT NULL,
		elevation REAL NOT NULL
	)`)
	require.NoError(t, err)
	_, err = svc.Execute(ctx,
		`INSERT INTO tiles VALUES (0, 0, 1, 2.0), (1, 0, 0, 1.0), (0, 1, 9, 0.0)`)
	require.NoError(t, err)

	buf, err := svc.QueryCached(ctx)
	require.NoError(t, err)

	count, positions, colors, err := packer.DecodeVertex(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), count)
	assert.Equal(t, []float32{
		0, 0, 2.0, 1,
		1, 0, 1.0, 1,
		0, 1, 0.0, 1,
	}, positions)
	assert.Equal(t, []float32{
		0.3, 0.7, 0.3, 1,
		0.2, 0.5, 0.8, 1,
		0.5, 0.5, 0.5, 1,
	}, colors)

	// A second call is a cache hit on the same fixed scan.
	require.Equal(t, 1, svc.CacheStats().Entries)
	again, err := svc.QueryCached(ctx)
	require.NoError(t, err)
	assert.Equal(t, buf, again)
	assert.Equal(t, 1, svc.CacheStats().Entries)
}

func TestQueryTilesCachedHitSkipsEngine(t *testing.T) {
	svc := newService(t)
	seedTiles(t, svc, 2)

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	query := `SELECT x, y, tile_type, elevation FROM tiles ORDER BY y, x`
	first, err := svc.QueryTilesCached(ctx, query)
	require.NoError(t, err)
	require.Equal(t, 4, first.NumRows())

	// A hit must not re-run the query: mutate the table behind the
	// cache's back and confirm the cached rows still come out.
	_, err = svc.Execute(ctx, `DELETE FROM tiles`)
	require.NoError(t, err)

	second, err := svc.QueryTilesCached(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, 4, second.NumRows())
	assert.Same(t, &first.X[0], &second.X[0])
}

func TestExecuteWithCacheInvalidatesOnWrite(t *testing.T) {
	svc := newService(t)
	seedTiles(t, svc, 2)

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	query := `SELECT x, y, tile_type, elevation FROM tiles ORDER BY y, x`
	_, err := svc.QueryTilesCached(ctx, query)
	require.NoError(t, err)
	require.Equal(t, 1, svc.CacheStats().Entries)

	before := svc.CacheStats().Version
	_, err = svc.ExecuteWithCache(ctx, `UPDATE tiles SET elevation = 0`)
	require.NoError(t, err)

	stats := svc.CacheStats()
	assert.Equal(t, before+1, stats.Version)
	assert.Equal(t, 0, stats.Entries)
}

func TestExecuteWithCacheReadDoesNotInvalidate(t *testing.T) {
	svc := newService(t)
	seedTiles(t, svc, 2)

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	query := `SELECT x, y, tile_type, elevation FROM tiles ORDER BY y, x`
	_, err := svc.QueryTilesCached(ctx, query)
	require.NoError(t, err)

	before := svc.CacheStats().Version
	_, err = svc.ExecuteWithCache(ctx, `SELECT COUNT(*) FROM tiles`)
	require.NoError(t, err)

	stats := svc.CacheStats()
	assert.Equal(t, before, stats.Version)
	assert.Equal(t, 1, stats.Entries)
}

func TestExecuteWithCacheFailedWriteLeavesCacheIntact(t *testing.T) {
	svc := newService(t)
	seedTiles(t, svc, 2)

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	query := `SELECT x, y, tile_type, elevation FROM tiles ORDER BY y, x`
	_, err := svc.QueryTilesCached(ctx, query)
	require.NoError(t, err)

	before := svc.CacheStats()
	_, err = svc.ExecuteWithCache(ctx, `INSERT INTO missing_table VALUES (1)`)
	require.Error(t, err)

	after := svc.CacheStats()
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.Entries, after.Entries)
}

func TestBulkInsertInvalidatesCache(t *testing.T) {
	svc := newService(t)
	seedTiles(t, svc, 2)

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	query := `SELECT x, y, tile_type, elevation FROM tiles ORDER BY y, x`
	_, err := svc.QueryTilesCached(ctx, query)
	require.NoError(t, err)
	before := svc.CacheStats()

	rows := [][]interface{}{
		{5, 5, 1, 1.0},
		{6, 5, 2, 2.0},
	}
	n, err := svc.BulkInsert(ctx, `INSERT INTO tiles VALUES (?, ?, ?, ?)`, rows)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	after := svc.CacheStats()
	assert.Equal(t, before.Version+1, after.Version)
	assert.Equal(t, 0, after.Entries)

	table, err := svc.QueryTilesCached(ctx, query)
	require.NoError(t, err)
	assert.Equal(t, 6, table.NumRows())
}

func TestFetchBeforePrecomputeFails(t *testing.T) {
	svc := newService(t)

	_, err := svc.FetchPrecomputed()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotInitialized))

	_, err = svc.FetchCachedRaw()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotInitialized))
}

func TestPrecomputeThenFetchGPUBuffer(t *testing.T) {
	svc := newService(t)
	seedTiles(t, svc, 4)

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	elapsed, err := svc.PrecomputeGPUData(ctx, 1.0, 1.0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed.Nanoseconds(), int64(0))

	buf, err := svc.FetchPrecomputed()
	require.NoError(t, err)

	count, positions, colors, err := packer.DecodeVertex(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), count)
	assert.Len(t, positions, 16*4)
	assert.Len(t, colors, 16*4)

	// Fetches hand out copies; clobbering one must not affect the next.
	buf[4] = 0xFF
	again, err := svc.FetchPrecomputed()
	require.NoError(t, err)
	assert.NotEqual(t, buf[4], again[4])
}

func TestFetchReflectsLatestPrecompute(t *testing.T) {
	svc := newService(t)
	seedTiles(t, svc, 2)

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	_, err := svc.PrecomputeGPUData(ctx, 1.0, 1.0)
	require.NoError(t, err)

	_, err = svc.Execute(ctx, `DELETE FROM tiles WHERE x = 0`)
	require.NoError(t, err)
	_, err = svc.PrecomputeGPUData(ctx, 1.0, 1.0)
	require.NoError(t, err)

	buf, err := svc.FetchPrecomputed()
	require.NoError(t, err)

	count, err := packer.ReadCount(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), count)
}

func TestExportAndCacheRawColumns(t *testing.T) {
	svc := newService(t)
	seedTiles(t, svc, 2)

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	exported, err := svc.ExportRawColumns(ctx)
	require.NoError(t, err)

	_, err = svc.CacheRawColumns(ctx)
	require.NoError(t, err)

	cached, err := svc.FetchCachedRaw()
	require.NoError(t, err)
	assert.Equal(t, exported, cached)

	x, y, tileType, elevation, err := packer.DecodeColumns(cached)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 1, 0, 1}, x)
	assert.Equal(t, []int32{0, 0, 1, 1}, y)
	assert.Len(t, tileType, 4)
	assert.Len(t, elevation, 4)
}

func TestClearCacheEmptiesEveryMemoryTier(t *testing.T) {
	svc := newService(t)
	seedTiles(t, svc, 4)

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	_, err := svc.QueryTilesCached(ctx, `SELECT x, y, tile_type, elevation FROM tiles ORDER BY y, x`)
	require.NoError(t, err)
	_, err = svc.PrecomputeGPUData(ctx, 1.0, 1.0)
	require.NoError(t, err)
	_, err = svc.CacheRawColumns(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.GenerateChunks(ctx, 4, 2, 1.0, 1.0))

	before := svc.CacheStats().Version
	svc.ClearCache()

	stats := svc.CacheStats()
	assert.Equal(t, before+1, stats.Version)
	assert.Equal(t, 0, stats.Entries)

	_, err = svc.FetchPrecomputed()
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotInitialized))
	_, err = svc.FetchCachedRaw()
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotInitialized))

	// The chunk store is durable and survives.
	buf, err := svc.QueryCombinedChunks(ctx)
	require.NoError(t, err)
	count, err := packer.ReadCount(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), count)
}

func TestGenerateAndCombineChunksThroughService(t *testing.T) {
	svc := newService(t)
	seedTiles(t, svc, 4)

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	require.NoError(t, svc.GenerateChunks(ctx, 4, 2, 1.0, 1.0))

	buf, err := svc.QueryCombinedChunks(ctx)
	require.NoError(t, err)

	count, err := packer.ReadCount(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(16), count)
}

func TestExplainQuery(t *testing.T) {
	svc := newService(t)
	seedTiles(t, svc, 2)

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	plan, err := svc.ExplainQuery(ctx, `SELECT * FROM tiles WHERE x = 1`)
	require.NoError(t, err)
	assert.NotEmpty(t, plan)
}

func TestVoxelOpsThroughService(t *testing.T) {
	svc := newService(t)

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	require.NoError(t, svc.CreateVoxelWorld(ctx, 0, 0))

	raw, err := svc.QueryVoxelChunkRaw(ctx, 0, 0)
	require.NoError(t, err)

	count, err := packer.ReadCount(raw)
	require.NoError(t, err)
	assert.Equal(t, uint32(33*32*32), count)

	ipcBytes, err := svc.QueryVoxelChunk(ctx, 0, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, ipcBytes)
}

func TestOperationsAfterCloseFailWithLockError(t *testing.T) {
	svc := newService(t)
	seedTiles(t, svc, 2)

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	require.NoError(t, svc.Close())

	_, err := svc.Execute(ctx, `SELECT 1`)
	assert.True(t, errors.IsType(err, errors.ErrorTypeLock))

	_, err = svc.PrecomputeGPUData(ctx, 1.0, 1.0)
	assert.True(t, errors.IsType(err, errors.ErrorTypeLock))
}
