// Package packer is the single source of truth for the binary wire layouts
// consumed by the rendering front-end. Every cache tier routes its encode and
// decode through this package instead of re-deriving offset arithmetic.
//
// All layouts share a 4-byte little-endian row-count header:
//
//	vertex:  [count:u32][positions: count×4 f32][colors: count×4 f32]
//	columns: [count:u32][x: count i32][y: count i32][type: count i32][elevation: count f32]
//	voxels:  [count:u32][x: count u8][y: count u8][z: count u8][type: count u8]
//
// Decoding fails with a malformed-buffer error whenever the byte length is
// smaller than the header implies. Trailing bytes beyond the declared layout
// are tolerated.
package packer

import (
	"encoding/binary"
	"math"

	"github.com/arsdragonfly/ultralogi/pkg/errors"
)

const (
	// HeaderSize is the length of the row-count header.
	HeaderSize = 4

	// VertexStride is the per-row byte width of one vec4 float array.
	VertexStride = 16

	// ColumnStride is the per-row byte width of the raw column layout.
	ColumnStride = 16
)

// EncodeVertex packs position and color vec4 arrays into the vertex layout.
// Both slices must hold exactly four float32 components per row.
func EncodeVertex(positions, colors []float32) ([]byte, error) {
	if len(positions)%4 != 0 || len(colors) != len(positions) {
		return nil, errors.Newf(errors.ErrorTypeInternal,
			"vertex arrays must be equal-length vec4 arrays, got %d and %d floats",
			len(positions), len(colors))
	}

	count := uint32(len(positions) / 4)
	buf := make([]byte, HeaderSize+len(positions)*4+len(colors)*4)
	binary.LittleEndian.PutUint32(buf, count)
	putFloat32s(buf[HeaderSize:], positions)
	putFloat32s(buf[HeaderSize+len(positions)*4:], colors)
	return buf, nil
}

// DecodeVertex unpacks a vertex layout buffer into its position and color
// arrays.
func DecodeVertex(buf []byte) (count uint32, positions, colors []float32, err error) {
	count, posBytes, colorBytes, err := SplitVertex(buf)
	if err != nil {
		return 0, nil, nil, err
	}
	return count, getFloat32s(posBytes), getFloat32s(colorBytes), nil
}

// SplitVertex reads the count header and locates the position and color byte
// ranges without parsing the floats. Chunk aggregation concatenates these
// ranges directly.
func SplitVertex(buf []byte) (count uint32, posBytes, colorBytes []byte, err error) {
	count, err = ReadCount(buf)
	if err != nil {
		return 0, nil, nil, err
	}

	arrayLen := int(count) * VertexStride
	need := HeaderSize + 2*arrayLen
	if len(buf) < need {
		return 0, nil, nil, errors.Newf(errors.ErrorTypeMalformedBuffer,
			"vertex buffer declares %d rows (%d bytes) but holds %d", count, need, len(buf)).
			WithDetail("count", count).
			WithDetail("bytes", len(buf))
	}

	posBytes = buf[HeaderSize : HeaderSize+arrayLen]
	colorBytes = buf[HeaderSize+arrayLen : HeaderSize+2*arrayLen]
	return count, posBytes, colorBytes, nil
}

// JoinVertex assembles a vertex buffer from already-encoded position and
// color byte ranges. Lengths must match count rows of vec4 float32.
func JoinVertex(count uint32, posBytes, colorBytes []byte) ([]byte, error) {
	arrayLen := int(count) * VertexStride
	if len(posBytes) != arrayLen || len(colorBytes) != arrayLen {
		return nil, errors.Newf(errors.ErrorTypeInternal,
			"vertex byte ranges must each hold %d bytes for %d rows, got %d and %d",
			arrayLen, count, len(posBytes), len(colorBytes))
	}

	buf := make([]byte, HeaderSize+2*arrayLen)
	binary.LittleEndian.PutUint32(buf, count)
	copy(buf[HeaderSize:], posBytes)
	copy(buf[HeaderSize+arrayLen:], colorBytes)
	return buf, nil
}

// EncodeColumns packs the raw structure-of-arrays column layout. All slices
// must hold one element per row.
func EncodeColumns(x, y, tileType []int32, elevation []float32) ([]byte, error) {
	n := len(x)
	if len(y) != n || len(tileType) != n || len(elevation) != n {
		return nil, errors.Newf(errors.ErrorTypeInternal,
			"column arrays must be equal length, got x=%d y=%d type=%d elevation=%d",
			len(x), len(y), len(tileType), len(elevation))
	}

	buf := make([]byte, HeaderSize+n*ColumnStride)
	binary.LittleEndian.PutUint32(buf, uint32(n))
	putInt32s(buf[HeaderSize:], x)
	putInt32s(buf[HeaderSize+n*4:], y)
	putInt32s(buf[HeaderSize+n*8:], tileType)
	putFloat32s(buf[HeaderSize+n*12:], elevation)
	return buf, nil
}

// DecodeColumns unpacks the raw column layout.
func DecodeColumns(buf []byte) (x, y, tileType []int32, elevation []float32, err error) {
	count, err := ReadCount(buf)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	n := int(count)
	need := HeaderSize + n*ColumnStride
	if len(buf) < need {
		return nil, nil, nil, nil, errors.Newf(errors.ErrorTypeMalformedBuffer,
			"column buffer declares %d rows (%d bytes) but holds %d", count, need, len(buf)).
			WithDetail("count", count).
			WithDetail("bytes", len(buf))
	}

	x = getInt32s(buf[HeaderSize : HeaderSize+n*4])
	y = getInt32s(buf[HeaderSize+n*4 : HeaderSize+n*8])
	tileType = getInt32s(buf[HeaderSize+n*8 : HeaderSize+n*12])
	elevation = getFloat32s(buf[HeaderSize+n*12 : HeaderSize+n*16])
	return x, y, tileType, elevation, nil
}

// EncodeVoxels packs the u8 structure-of-arrays voxel layout.
func EncodeVoxels(x, y, z, blockType []uint8) ([]byte, error) {
	n := len(x)
	if len(y) != n || len(z) != n || len(blockType) != n {
		return nil, errors.Newf(errors.ErrorTypeInternal,
			"voxel arrays must be equal length, got x=%d y=%d z=%d type=%d",
			len(x), len(y), len(z), len(blockType))
	}

	buf := make([]byte, HeaderSize+n*4)
	binary.LittleEndian.PutUint32(buf, uint32(n))
	copy(buf[HeaderSize:], x)
	copy(buf[HeaderSize+n:], y)
	copy(buf[HeaderSize+n*2:], z)
	copy(buf[HeaderSize+n*3:], blockType)
	return buf, nil
}

// DecodeVoxels unpacks the voxel layout.
func DecodeVoxels(buf []byte) (x, y, z, blockType []uint8, err error) {
	count, err := ReadCount(buf)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	n := int(count)
	need := HeaderSize + n*4
	if len(buf) < need {
		return nil, nil, nil, nil, errors.Newf(errors.ErrorTypeMalformedBuffer,
			"voxel buffer declares %d rows (%d bytes) but holds %d", count, need, len(buf)).
			WithDetail("count", count).
			WithDetail("bytes", len(buf))
	}

	x = append([]uint8(nil), buf[HeaderSize:HeaderSize+n]...)
	y = append([]uint8(nil), buf[HeaderSize+n:HeaderSize+n*2]...)
	z = append([]uint8(nil), buf[HeaderSize+n*2:HeaderSize+n*3]...)
	blockType = append([]uint8(nil), buf[HeaderSize+n*3:HeaderSize+n*4]...)
	return x, y, z, blockType, nil
}

// ReadCount reads the row-count header.
func ReadCount(buf []byte) (uint32, error) {
	if len(buf) < HeaderSize {
		return 0, errors.Newf(errors.ErrorTypeMalformedBuffer,
			"buffer too short for count header: %d bytes", len(buf))
	}
	return binary.LittleEndian.Uint32(buf), nil
}

func putFloat32s(dst []byte, src []float32) {
	for i, v := range src {
		binary.LittleEndian.PutUint32(dst[i*4:], math.Float32bits(v))
	}
}

func getFloat32s(src []byte) []float32 {
	out := make([]float32, len(src)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return out
}

func putInt32s(dst []byte, src []int32) {
	for i, v := range src {
		binary.LittleEndian.PutUint32(dst[i*4:], uint32(v))
	}
}

func getInt32s(src []byte) []int32 {
	out := make([]int32, len(src)/4)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(src[i*4:]))
	}
	return out
}
