// Package tilesource defines the contract the tile cache core consumes to
// read and write individual tiles of an external container. Concrete
// format readers (chunked array containers and their metadata) are
// outside this package's scope; it only describes the shape a reader
// must expose and the rule for deriving tile dimensions from a
// container's chunking/compression properties.
package tilesource

import "github.com/gracefulearth/tilecache"

// Source reads individual tiles from an external container.
type Source interface {
	// ReadTile synchronously reads the tile at pos. It fails with an
	// IOError if the underlying store cannot deliver, and with
	// ErrSchemeMismatch if pos does not belong to this source's scheme.
	ReadTile(pos *tilecache.TilePosition) (tilecache.Tile, error)

	// Scheme reports the tiling scheme this source reads.
	Scheme() *tilecache.TilingScheme
}

// Sink writes individual tiles to an external container. It is the
// symmetric, bordering contract to Source.
type Sink interface {
	WriteTile(t tilecache.Tile) error
	Scheme() *tilecache.TilingScheme
}

// ChunkMetadata describes what a concrete format reader discovered about
// a variable's on-disk storage along the two selected dimensions, used by
// DeriveTileDims to pick a tile shape.
type ChunkMetadata struct {
	// Chunked is true if the container stores the variable in
	// fixed-size chunks along the selected dimensions.
	Chunked bool
	// ChunkDims is the chunk shape, valid only when Chunked is true.
	ChunkDims tilecache.Dims
	// MonolithicCompressed is true if the variable is compressed as a
	// single blob with no chunk boundaries (the entire slice must be
	// decompressed at once).
	MonolithicCompressed bool
}

// DefaultMaxUnchunkedTile is the element-wise cap applied when a
// variable is neither chunked nor monolithically compressed.
const DefaultMaxUnchunkedTile = 512

// DeriveTileDims implements the tile dimension derivation rule required
// of any source over a chunked/compressed container:
//
//  1. If chunked: tileDims = chunk dimensions.
//  2. Else if monolithically compressed: tileDims = globalDims (the
//     whole slice must be decompressed at once).
//  3. Else: tileDims = min(globalDims, 512) element-wise.
func DeriveTileDims(globalDims tilecache.Dims, meta ChunkMetadata) tilecache.Dims {
	switch {
	case meta.Chunked:
		return meta.ChunkDims
	case meta.MonolithicCompressed:
		return globalDims
	default:
		return tilecache.Dims{
			Rows: min(globalDims.Rows, DefaultMaxUnchunkedTile),
			Cols: min(globalDims.Cols, DefaultMaxUnchunkedTile),
		}
	}
}
