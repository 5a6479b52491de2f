package voxel_test

import (
	"bytes"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arsdragonfly/ultralogi/pkg/packer"
	"github.com/arsdragonfly/ultralogi/pkg/testutil"
	"github.com/arsdragonfly/ultralogi/pkg/voxel"
)

func TestBlockTypeLayers(t *testing.T) {
	eng := testutil.TestEngine(t)
	world := voxel.NewWorld(eng, testutil.TestLogger(t))

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	require.NoError(t, world.CreateChunk(ctx, 0, 0))

	rows, err := eng.QueryBlobs(ctx, `SELECT CAST(COUNT(*) AS TEXT) FROM voxels`)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "65536", string(rows[0]))

	buf, err := world.QueryChunkRaw(ctx, 0, 0)
	require.NoError(t, err)

	_, y, _, blockType, err := packer.DecodeVoxels(buf)
	require.NoError(t, err)

	// Solid layers: y 0..28 stone, 29..31 dirt, 32 grass. 33 layers of
	// 32x32 voxels each.
	require.Len(t, blockType, 33*32*32)

	for i := range y {
		switch {
		case y[i] == 32:
			assert.Equal(t, voxel.BlockGrass, blockType[i])
		case y[i] >= 29:
			assert.Equal(t, voxel.BlockDirt, blockType[i])
		default:
			assert.Equal(t, voxel.BlockStone, blockType[i])
		}
		assert.LessOrEqual(t, y[i], uint8(32))
	}
}

func TestCreateChunkReplacesExisting(t *testing.T) {
	eng := testutil.TestEngine(t)
	world := voxel.NewWorld(eng, testutil.TestLogger(t))

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	require.NoError(t, world.CreateChunk(ctx, 1, 2))
	require.NoError(t, world.CreateChunk(ctx, 1, 2))

	rows, err := eng.QueryBlobs(ctx, `SELECT CAST(COUNT(*) AS TEXT) FROM voxels`)
	require.NoError(t, err)
	assert.Equal(t, "65536", string(rows[0]))
}

func TestChunksAreIndependent(t *testing.T) {
	eng := testutil.TestEngine(t)
	world := voxel.NewWorld(eng, testutil.TestLogger(t))

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	require.NoError(t, world.CreateChunk(ctx, 0, 0))
	require.NoError(t, world.CreateChunk(ctx, 0, 1))

	buf, err := world.QueryChunkRaw(ctx, 0, 1)
	require.NoError(t, err)

	count, err := packer.ReadCount(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(33*32*32), count)
}

func TestQueryChunkIPCOrdering(t *testing.T) {
	eng := testutil.TestEngine(t)
	world := voxel.NewWorld(eng, testutil.TestLogger(t))

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	require.NoError(t, world.CreateChunk(ctx, 0, 0))

	data, err := world.QueryChunk(ctx, 0, 0)
	require.NoError(t, err)

	reader, err := ipc.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer reader.Release()

	schema := reader.Schema()
	require.Equal(t, 4, schema.NumFields())
	assert.Equal(t, "x", schema.Field(0).Name)
	assert.Equal(t, "block_type", schema.Field(3).Name)

	var total int
	var prevZ, prevY, prevX int64
	first := true
	for reader.Next() {
		rec := reader.Record()
		xs := rec.Column(0).(*array.Int64)
		ys := rec.Column(1).(*array.Int64)
		zs := rec.Column(2).(*array.Int64)
		types := rec.Column(3).(*array.Int64)

		for i := 0; i < int(rec.NumRows()); i++ {
			assert.Greater(t, types.Value(i), int64(0))

			if !first {
				after := zs.Value(i) > prevZ ||
					(zs.Value(i) == prevZ && ys.Value(i) > prevY) ||
					(zs.Value(i) == prevZ && ys.Value(i) == prevY && xs.Value(i) > prevX)
				assert.True(t, after, "rows must ascend by (z, y, x)")
			}
			prevZ, prevY, prevX = zs.Value(i), ys.Value(i), xs.Value(i)
			first = false
		}
		total += int(rec.NumRows())
	}
	require.NoError(t, reader.Err())
	assert.Equal(t, 33*32*32, total)
}

func TestQueryChunkRawMissingChunkIsEmpty(t *testing.T) {
	eng := testutil.TestEngine(t)
	world := voxel.NewWorld(eng, testutil.TestLogger(t))

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	require.NoError(t, world.CreateChunk(ctx, 0, 0))

	buf, err := world.QueryChunkRaw(ctx, 5, 5)
	require.NoError(t, err)

	count, err := packer.ReadCount(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), count)
}
