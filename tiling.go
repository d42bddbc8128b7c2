package tilecache

// TilingScheme partitions a 2-D coordinate space of GlobalDims into fixed
// size TileDims tiles, including truncated edge tiles along the last row
// and column. A scheme is immutable once constructed and pre-materializes
// one shared TilePosition per (tileRow, tileCol) pair, eliminating
// per-read allocation and making position equality a cheap pointer
// comparison.
type TilingScheme struct {
	globalDims Dims
	tileDims   Dims
	tileCounts Dims
	positions  []*TilePosition // row-major, index = tileRow*tileCounts.Cols+tileCol
}

// NewTilingScheme builds a scheme over globalDims with the given tile
// size. Both dimensions of globalDims and tileDims must be positive.
func NewTilingScheme(globalDims, tileDims Dims) *TilingScheme {
	if globalDims.Rows <= 0 || globalDims.Cols <= 0 || tileDims.Rows <= 0 || tileDims.Cols <= 0 {
		panic("tilecache: scheme dimensions must be positive")
	}

	s := &TilingScheme{
		globalDims: globalDims,
		tileDims:   tileDims,
		tileCounts: Dims{
			Rows: ceilDiv(globalDims.Rows, tileDims.Rows),
			Cols: ceilDiv(globalDims.Cols, tileDims.Cols),
		},
	}

	s.positions = make([]*TilePosition, s.tileCounts.Rows*s.tileCounts.Cols)
	for tr := 0; tr < s.tileCounts.Rows; tr++ {
		for tc := 0; tc < s.tileCounts.Cols; tc++ {
			s.positions[tr*s.tileCounts.Cols+tc] = newTilePosition(s, tr, tc)
		}
	}
	return s
}

// Dimensions returns the global dimensions of the tiled space.
func (s *TilingScheme) Dimensions() Dims { return s.globalDims }

// TileDimensions returns the nominal (untruncated) tile dimensions.
func (s *TilingScheme) TileDimensions() Dims { return s.tileDims }

// TileCounts returns the number of tiles along each axis.
func (s *TilingScheme) TileCounts() Dims { return s.tileCounts }

// TileCount returns the total number of tiles in the scheme.
func (s *TilingScheme) TileCount() int {
	return s.tileCounts.Rows * s.tileCounts.Cols
}

func (s *TilingScheme) inRange(row, col int) bool {
	return row >= 0 && row < s.globalDims.Rows && col >= 0 && col < s.globalDims.Cols
}

// PositionForCoords returns the shared position whose tile contains the
// pixel (row, col). Fails if (row, col) lies outside the global
// dimensions.
func (s *TilingScheme) PositionForCoords(row, col int) (*TilePosition, error) {
	if !s.inRange(row, col) {
		return nil, ErrCoordinateOutOfRange{What: "pixel", Dims: s.globalDims}
	}
	tr := row / s.tileDims.Rows
	tc := col / s.tileDims.Cols
	return s.positions[tr*s.tileCounts.Cols+tc], nil
}

// PositionForIndex returns the shared position at the given tile
// indices. Fails if out of range.
func (s *TilingScheme) PositionForIndex(tileRow, tileCol int) (*TilePosition, error) {
	if tileRow < 0 || tileRow >= s.tileCounts.Rows || tileCol < 0 || tileCol >= s.tileCounts.Cols {
		return nil, ErrCoordinateOutOfRange{What: "tile index", Dims: s.tileCounts}
	}
	return s.positions[tileRow*s.tileCounts.Cols+tileCol], nil
}

// AllPositions returns a snapshot list of all positions in the scheme,
// row-major.
func (s *TilingScheme) AllPositions() []*TilePosition {
	out := make([]*TilePosition, len(s.positions))
	copy(out, s.positions)
	return out
}

// CoveringPositions returns the minimal ordered (row-major) list of
// positions whose tiles collectively cover the rectangle
// [start, start+count). Fails on non-positive count or an out-of-range
// rectangle.
func (s *TilingScheme) CoveringPositions(start, count Dims) ([]*TilePosition, error) {
	if count.Rows <= 0 || count.Cols <= 0 {
		return nil, ErrCoordinateOutOfRange{What: "rectangle", Dims: s.globalDims}
	}
	endRow := start.Rows + count.Rows
	endCol := start.Cols + count.Cols
	if start.Rows < 0 || start.Cols < 0 || endRow > s.globalDims.Rows || endCol > s.globalDims.Cols {
		return nil, ErrCoordinateOutOfRange{What: "rectangle", Dims: s.globalDims}
	}

	firstTr := start.Rows / s.tileDims.Rows
	lastTr := (endRow - 1) / s.tileDims.Rows
	firstTc := start.Cols / s.tileDims.Cols
	lastTc := (endCol - 1) / s.tileDims.Cols

	out := make([]*TilePosition, 0, (lastTr-firstTr+1)*(lastTc-firstTc+1))
	for tr := firstTr; tr <= lastTr; tr++ {
		for tc := firstTc; tc <= lastTc; tc++ {
			out = append(out, s.positions[tr*s.tileCounts.Cols+tc])
		}
	}
	return out, nil
}

// TilePosition identifies one (tileRow, tileCol) tile within a scheme,
// carrying its derived read-only bounding geometry. Positions are shared
// (never copied) when served from a TilingScheme; two positions are
// equal iff both coordinates match and they were produced by the same
// scheme (pointer identity, per TilingScheme's pre-materialization).
type TilePosition struct {
	scheme   *TilingScheme // non-owning handle; scheme outlives every position derived from it
	TileRow  int
	TileCol  int
	Dims     Dims // effective dims, honoring truncation at the last row/column of tiles
	Start    Dims // (tileRow*tileDims.Rows, tileCol*tileDims.Cols)
	End      Dims // Start + Dims - 1
}

func newTilePosition(s *TilingScheme, tileRow, tileCol int) *TilePosition {
	rows := s.tileDims.Rows
	if tileRow == s.tileCounts.Rows-1 {
		if r := s.globalDims.Rows % s.tileDims.Rows; r != 0 {
			rows = r
		}
	}
	cols := s.tileDims.Cols
	if tileCol == s.tileCounts.Cols-1 {
		if c := s.globalDims.Cols % s.tileDims.Cols; c != 0 {
			cols = c
		}
	}

	start := Dims{Rows: tileRow * s.tileDims.Rows, Cols: tileCol * s.tileDims.Cols}
	return &TilePosition{
		scheme:  s,
		TileRow: tileRow,
		TileCol: tileCol,
		Dims:    Dims{Rows: rows, Cols: cols},
		Start:   start,
		End:     Dims{Rows: start.Rows + rows - 1, Cols: start.Cols + cols - 1},
	}
}

// Scheme returns the owning scheme of this position.
func (p *TilePosition) Scheme() *TilingScheme { return p.scheme }

// Hash returns tileRow*tileCounts.Cols+tileCol, a dense linear index
// suitable as a map/slice key within the owning scheme.
func (p *TilePosition) Hash() int {
	return p.TileRow*p.scheme.tileCounts.Cols + p.TileCol
}

// Equal reports whether two positions refer to the same tile of the same
// scheme. Equality uses scheme pointer identity, not value equality of
// the scheme's geometry.
func (p *TilePosition) Equal(other *TilePosition) bool {
	if other == nil {
		return false
	}
	return p.scheme == other.scheme && p.TileRow == other.TileRow && p.TileCol == other.TileCol
}

// Contains reports whether the global pixel (row, col) falls within this
// position's tile.
func (p *TilePosition) Contains(row, col int) bool {
	return row >= p.Start.Rows && row <= p.End.Rows && col >= p.Start.Cols && col <= p.End.Cols
}

// PayloadIndex returns the 1-D payload index for a pixel known to be
// contained in this position's tile: (row mod tileRows)*dims.Cols + (col
// mod tileCols).
func (p *TilePosition) PayloadIndex(row, col int) int {
	tileDims := p.scheme.tileDims
	localRow := row - p.TileRow*tileDims.Rows
	localCol := col - p.TileCol*tileDims.Cols
	return localRow*p.Dims.Cols + localCol
}

// Bounds returns the bounding rectangle of this tile in global
// coordinates as (start, dims).
func (p *TilePosition) Bounds() (start, dims Dims) {
	return p.Start, p.Dims
}
