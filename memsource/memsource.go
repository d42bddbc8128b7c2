// Package memsource implements a Source and Sink entirely in memory, for
// tests and small CLI demonstrations that would otherwise need a real
// chunked-container file. Grounded on the flat all-tiles-resident shape
// of owlpinetech/pixi's InMemoryDataset, generalized from that library's
// on-disk tile layout to this package's (source, position) tile contract.
package memsource

import (
	"github.com/gracefulearth/tilecache"
	"github.com/gracefulearth/tilecache/tilesource"
)

// Dataset is an in-memory grid of a single element type, readable and
// writable a tile at a time through the Source/Sink contract. Every tile
// of the scheme is allocated up front. Access is serialized through the
// embedded Locker, the same way a concrete format reader would serialize
// calls against a single non-reentrant file handle.
type Dataset struct {
	tilesource.Locker

	scheme *tilecache.TilingScheme
	dtype  tilecache.ElementType
	tiles  map[int][]byte // keyed by TilePosition.Hash()
}

// New allocates a dataset over scheme with every tile pre-allocated and
// zeroed.
func New(scheme *tilecache.TilingScheme, dtype tilecache.ElementType) *Dataset {
	d := &Dataset{
		scheme: scheme,
		dtype:  dtype,
		tiles:  make(map[int][]byte, scheme.TileCount()),
	}
	for _, pos := range scheme.AllPositions() {
		d.tiles[pos.Hash()] = make([]byte, pos.Dims.Area()*dtype.Size())
	}
	return d
}

// Scheme returns the dataset's tiling scheme.
func (d *Dataset) Scheme() *tilecache.TilingScheme {
	return d.scheme
}

// ReadTile returns a copy of the tile at pos.
func (d *Dataset) ReadTile(pos *tilecache.TilePosition) (tilecache.Tile, error) {
	if pos.Scheme() != d.scheme {
		return tilecache.Tile{}, tilecache.ErrSchemeMismatch{}
	}

	var tile tilecache.Tile
	err := d.WithLock(func() error {
		stored := d.tiles[pos.Hash()]
		payload := make([]byte, len(stored))
		copy(payload, stored)
		tile = tilecache.Tile{Position: pos, DType: d.dtype, Payload: payload}
		return nil
	})
	return tile, err
}

// WriteTile stores a copy of t's payload at its position. Fails with
// ErrSchemeMismatch if t belongs to a different scheme.
func (d *Dataset) WriteTile(t tilecache.Tile) error {
	if t.Position.Scheme() != d.scheme {
		return tilecache.ErrSchemeMismatch{}
	}

	return d.WithLock(func() error {
		stored := make([]byte, len(t.Payload))
		copy(stored, t.Payload)
		d.tiles[t.Position.Hash()] = stored
		return nil
	})
}

var (
	_ tilesource.Source = (*Dataset)(nil)
	_ tilesource.Sink   = (*Dataset)(nil)
)
