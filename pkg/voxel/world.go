// Package voxel maintains a block-based world alongside the tile grid. Each
// chunk is a 32x64x32 column of voxels generated procedurally and persisted
// row-per-voxel, so chunk contents stay queryable with plain SQL.
package voxel

import (
	"context"

	"go.uber.org/zap"

	"github.com/arsdragonfly/ultralogi/pkg/engine"
	"github.com/arsdragonfly/ultralogi/pkg/metrics"
	"github.com/arsdragonfly/ultralogi/pkg/packer"
)

// Chunk dimensions. A chunk always holds ChunkSizeX*ChunkHeight*ChunkSizeZ
// voxels, air included.
const (
	ChunkSizeX  = 32
	ChunkHeight = 64
	ChunkSizeZ  = 32

	ChunkVolume = ChunkSizeX * ChunkHeight * ChunkSizeZ
)

// Block type codes.
const (
	BlockAir   uint8 = 0
	BlockGrass uint8 = 1
	BlockDirt  uint8 = 2
	BlockStone uint8 = 3
)

const (
	createTableSQL = `CREATE TABLE IF NOT EXISTS voxels (
		chunk_x INTEGER NOT NULL,
		chunk_z INTEGER NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		z INTEGER NOT NULL,
		block_type INTEGER NOT NULL,
		PRIMARY KEY (chunk_x, chunk_z, x, y, z)
	)`

	deleteChunkSQL = `DELETE FROM voxels WHERE chunk_x = ? AND chunk_z = ?`

	insertVoxelSQL = `INSERT INTO voxels (chunk_x, chunk_z, x, y, z, block_type)
		VALUES (?, ?, ?, ?, ?, ?)`

	chunkIPCSQL = `SELECT x, y, z, block_type FROM voxels
		WHERE chunk_x = ? AND chunk_z = ? AND block_type > 0
		ORDER BY z, y, x`

	chunkRawSQL = `SELECT x, y, z, block_type FROM voxels
		WHERE chunk_x = ? AND chunk_z = ? AND block_type > 0`
)

// World generates and serves voxel chunks backed by the engine.
type World struct {
	eng *engine.Engine
	log *zap.Logger
}

// NewWorld returns a voxel world backed by the given engine.
func NewWorld(eng *engine.Engine, log *zap.Logger) *World {
	if log == nil {
		log = zap.NewNop()
	}
	return &World{eng: eng, log: log}
}

// blockAt is the terrain rule: a flat grass layer at y=32 over three dirt
// layers over stone, with air above.
func blockAt(y int) uint8 {
	switch {
	case y > 32:
		return BlockAir
	case y == 32:
		return BlockGrass
	case y >= 29:
		return BlockDirt
	default:
		return BlockStone
	}
}

// CreateChunk regenerates one chunk column at (chunkX, chunkZ), replacing any
// previous rows for the same chunk. Every voxel of the column is stored,
// including air, so downstream queries decide their own filtering.
func (w *World) CreateChunk(ctx context.Context, chunkX, chunkZ int) error {
	timer := metrics.NewTimer()

	if _, err := w.eng.Execute(ctx, createTableSQL); err != nil {
		return err
	}
	if _, err := w.eng.Execute(ctx, deleteChunkSQL, chunkX, chunkZ); err != nil {
		return err
	}

	rows := make([][]interface{}, 0, ChunkVolume)
	for x := 0; x < ChunkSizeX; x++ {
		for y := 0; y < ChunkHeight; y++ {
			for z := 0; z < ChunkSizeZ; z++ {
				rows = append(rows, []interface{}{chunkX, chunkZ, x, y, z, blockAt(y)})
			}
		}
	}

	if _, err := w.eng.BulkInsert(ctx, insertVoxelSQL, rows); err != nil {
		return err
	}

	w.log.Info("voxel chunk generated",
		zap.Int("chunk_x", chunkX),
		zap.Int("chunk_z", chunkZ),
		zap.Int("voxels", len(rows)),
		zap.Duration("elapsed", timer.Stop()))

	return nil
}

// QueryChunk streams one chunk's solid voxels as Arrow IPC, ordered by
// (z, y, x) so consumers can rebuild the column deterministically.
func (w *World) QueryChunk(ctx context.Context, chunkX, chunkZ int) ([]byte, error) {
	return w.eng.QueryIPC(ctx, chunkIPCSQL, chunkX, chunkZ)
}

// QueryChunkRaw packs one chunk's solid voxels into the dense u8 column
// buffer. Row order is whatever the engine returns.
func (w *World) QueryChunkRaw(ctx context.Context, chunkX, chunkZ int) ([]byte, error) {
	x, y, z, blockType, err := w.eng.QueryVoxels(ctx, chunkRawSQL, chunkX, chunkZ)
	if err != nil {
		return nil, err
	}

	buf, err := packer.EncodeVoxels(x, y, z, blockType)
	if err != nil {
		return nil, err
	}

	metrics.BufferBytes.WithLabelValues("voxel").Set(float64(len(buf)))
	return buf, nil
}
