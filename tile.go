package tilecache

// Tile is a rectangular subregion of a 2-D variable read or written as a
// single I/O unit: the position it occupies in its scheme, an opaque
// contiguous row-major payload of typed elements, and a dirty flag used
// by sinks (the cache core never interprets it).
type Tile struct {
	Position *TilePosition
	DType    ElementType
	Payload  []byte // len == Position.Dims.Area() * DType.Size()
	Dirty    bool
}

// NewTile allocates a zeroed tile for the given position and element
// type.
func NewTile(pos *TilePosition, dtype ElementType) Tile {
	return Tile{
		Position: pos,
		DType:    dtype,
		Payload:  make([]byte, pos.Dims.Area()*dtype.Size()),
	}
}

// Bytes returns the number of bytes occupied by this tile's payload:
// payloadElementCount * elementSizeBytes. This is the exact quantity the
// tile cache sums for its byte accounting — no approximation.
func (t Tile) Bytes() int64 {
	return int64(t.Position.Dims.Area()) * int64(t.DType.Size())
}

// Contains reports whether the global pixel (row, col) is contained in
// this tile.
func (t Tile) Contains(row, col int) bool {
	return t.Position.Contains(row, col)
}

// PayloadIndex returns the 1-D payload index (in elements, not bytes) for
// a pixel known to be contained in this tile.
func (t Tile) PayloadIndex(row, col int) int {
	return t.Position.PayloadIndex(row, col)
}

// Bounds returns the tile's bounding rectangle in global coordinates.
func (t Tile) Bounds() (start, dims Dims) {
	return t.Position.Bounds()
}
