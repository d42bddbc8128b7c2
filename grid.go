package tilecache

import (
	"context"
	"encoding/binary"
	"math"
	"weak"
)

// GridManager is the subset of the cache manager a CachedGrid needs: fetch
// one tile through the shared tile cache, and drop every tile belonging to
// a source when the grid owning it is disposed. Defined here, rather than
// imported from the cache manager's package, so this package stays free of
// a dependency on its own downstream consumer — *cachemgr.Manager
// satisfies this interface without either package importing the other.
type GridManager interface {
	GetTile(ctx context.Context, source any, pos *TilePosition) (*Tile, error)
	RemoveTilesForSource(source any)
}

// CachedGrid is a random-access 2-D facade over a tile source and the
// shared tile cache, with a single-tile hot path: repeated pixel reads
// that land in the same tile as the previous read never consult the cache
// manager at all.
//
// The element type and signed/unsigned interpretation are fixed at
// construction and describe how raw tile payload bytes widen to float64.
type CachedGrid struct {
	manager  GridManager
	source   any
	scheme   *TilingScheme
	dtype    ElementType
	unsigned bool
	order    binary.ByteOrder
	lastTile weak.Pointer[Tile]
}

// NewCachedGrid builds a grid over scheme, reading tiles of the given
// element type from source (an opaque identity used as the cache key's
// source component) through manager. order controls how multi-byte
// elements are decoded/encoded; pass binary.LittleEndian when unsure, as
// most source containers are native-endian on the machines that write
// them.
func NewCachedGrid(manager GridManager, source any, scheme *TilingScheme, dtype ElementType, unsigned bool, order binary.ByteOrder) *CachedGrid {
	return &CachedGrid{
		manager:  manager,
		source:   source,
		scheme:   scheme,
		dtype:    dtype,
		unsigned: unsigned,
		order:    order,
	}
}

// Dimensions returns the grid's global dimensions.
func (g *CachedGrid) Dimensions() Dims {
	return g.scheme.Dimensions()
}

// Value returns the element at (row, col) widened to float64, or NaN if
// the coordinate is out of range. It first consults the last-tile weak
// reference: if still alive and the previous tile contains (row, col), the
// element is read from it directly with no cache manager call. Otherwise
// it fetches the owning tile via the cache manager (a cache hit or a
// source read on miss) and refreshes the weak reference.
func (g *CachedGrid) Value(row, col int) float64 {
	if row < 0 || row >= g.scheme.Dimensions().Rows || col < 0 || col >= g.scheme.Dimensions().Cols {
		return math.NaN()
	}

	if tile := g.lastTile.Value(); tile != nil && tile.Contains(row, col) {
		return g.readElement(tile, row, col)
	}

	pos, err := g.scheme.PositionForCoords(row, col)
	if err != nil {
		return math.NaN()
	}
	tile, err := g.manager.GetTile(context.Background(), g.source, pos)
	if err != nil {
		return math.NaN()
	}
	g.lastTile = weak.Make(tile)
	return g.readElement(tile, row, col)
}

// ValueAt returns the element at the given row-major linear index,
// decomposed as (index/cols, index mod cols) and delegated to Value.
func (g *CachedGrid) ValueAt(index int) float64 {
	cols := g.scheme.Dimensions().Cols
	return g.Value(index/cols, index%cols)
}

// SetValue always fails: cached grids are a read-only view over their
// source.
func (g *CachedGrid) SetValue(row, col int, val float64) error {
	return ErrUnsupported{Action: "setValue on a read-only CachedGrid"}
}

func (g *CachedGrid) readElement(tile *Tile, row, col int) float64 {
	off := tile.PayloadIndex(row, col) * g.dtype.Size()
	return g.dtype.Widen(tile.Payload, off, g.order, g.unsigned)
}

// Data returns the entire grid as a single row-major payload buffer,
// equivalent to Data(Dims{}, g.Dimensions()).
func (g *CachedGrid) Data() ([]byte, error) {
	return g.DataRect(Dims{}, g.scheme.Dimensions())
}

// DataRect returns the rectangle [start, start+count) as a single
// row-major payload buffer of element-type length count.Rows*count.Cols.
// It fails with ErrCoordinateOutOfRange if the rectangle escapes the
// grid's dimensions.
func (g *CachedGrid) DataRect(start, count Dims) ([]byte, error) {
	positions, err := g.scheme.CoveringPositions(start, count)
	if err != nil {
		return nil, err
	}

	elemSize := g.dtype.Size()
	dst := make([]byte, count.Rows*count.Cols*elemSize)
	dstStride := count.Cols * elemSize

	for _, pos := range positions {
		tile, err := g.manager.GetTile(context.Background(), g.source, pos)
		if err != nil {
			return nil, err
		}

		tileStart, tileDims := pos.Bounds()
		// Intersection of the tile's rectangle with the requested one, in
		// global coordinates.
		rowLo := max(start.Rows, tileStart.Rows)
		rowHi := min(start.Rows+count.Rows, tileStart.Rows+tileDims.Rows)
		colLo := max(start.Cols, tileStart.Cols)
		colHi := min(start.Cols+count.Cols, tileStart.Cols+tileDims.Cols)

		srcStride := tileDims.Cols * elemSize
		rowBytes := (colHi - colLo) * elemSize

		for row := rowLo; row < rowHi; row++ {
			srcLocalRow := row - tileStart.Rows
			srcLocalCol := colLo - tileStart.Cols
			srcOff := srcLocalRow*srcStride + srcLocalCol*elemSize

			dstLocalRow := row - start.Rows
			dstLocalCol := colLo - start.Cols
			dstOff := dstLocalRow*dstStride + dstLocalCol*elemSize

			copy(dst[dstOff:dstOff+rowBytes], tile.Payload[srcOff:srcOff+rowBytes])
		}
	}

	return dst, nil
}

// Dispose evicts every tile this grid's source contributed to the shared
// cache and releases the last-tile reference. Other grids over the same
// source are unaffected by any cache state beyond eviction; it is the
// caller's responsibility not to call Dispose while other grids still
// expect the source's tiles to be warm.
func (g *CachedGrid) Dispose() {
	g.manager.RemoveTilesForSource(g.source)
	g.lastTile = weak.Pointer[Tile]{}
}
