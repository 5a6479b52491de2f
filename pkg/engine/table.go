package engine

import (
	"context"

	"github.com/arsdragonfly/ultralogi/pkg/errors"
)

// Table is an in-memory columnar tile table. Duplicating a Table is cheap
// because views share the underlying column storage; tables handed out by a
// cache are read-only by contract.
type Table struct {
	X         []int32
	Y         []int32
	TileType  []int32
	Elevation []float32
}

// NumRows returns the number of rows in the table.
func (t *Table) NumRows() int {
	return len(t.X)
}

// View returns a duplicate of the table sharing the underlying column
// storage.
func (t *Table) View() *Table {
	return &Table{
		X:         t.X,
		Y:         t.Y,
		TileType:  t.TileType,
		Elevation: t.Elevation,
	}
}

// QueryTiles runs a query returning the tile schema
// (x INTEGER, y INTEGER, tile_type INTEGER, elevation REAL) and materializes
// every row into one columnar table.
func (e *Engine) QueryTiles(ctx context.Context, sqlText string, args ...interface{}) (*Table, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, errClosed()
	}

	rows, err := e.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEngine, "query tiles")
	}
	defer rows.Close()

	t := &Table{}
	for rows.Next() {
		var (
			x, y, tileType int32
			elevation      float64
		)
		if err := rows.Scan(&x, &y, &tileType, &elevation); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeEngine, "scan tile row")
		}
		t.X = append(t.X, x)
		t.Y = append(t.Y, y)
		t.TileType = append(t.TileType, tileType)
		t.Elevation = append(t.Elevation, float32(elevation))
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEngine, "iterate tile rows")
	}

	return t, nil
}

// QueryVoxels runs a query returning the voxel schema (x, y, z, block_type)
// and materializes every row into dense u8 columns.
func (e *Engine) QueryVoxels(ctx context.Context, sqlText string, args ...interface{}) (x, y, z, blockType []uint8, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, nil, nil, nil, errClosed()
	}

	rows, err := e.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, errors.ErrorTypeEngine, "query voxels")
	}
	defer rows.Close()

	for rows.Next() {
		var vx, vy, vz, vt uint8
		if err := rows.Scan(&vx, &vy, &vz, &vt); err != nil {
			return nil, nil, nil, nil, errors.Wrap(err, errors.ErrorTypeEngine, "scan voxel row")
		}
		x = append(x, vx)
		y = append(y, vy)
		z = append(z, vz)
		blockType = append(blockType, vt)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, nil, nil, errors.Wrap(err, errors.ErrorTypeEngine, "iterate voxel rows")
	}

	return x, y, z, blockType, nil
}
