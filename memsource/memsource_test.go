package memsource

import (
	"encoding/binary"
	"testing"

	"github.com/gracefulearth/tilecache"
)

func TestDatasetWriteThenReadRoundTrips(t *testing.T) {
	scheme := tilecache.NewTilingScheme(tilecache.Dims{Rows: 20, Cols: 20}, tilecache.Dims{Rows: 10, Cols: 10})
	ds := New(scheme, tilecache.Double)

	pos, err := scheme.PositionForIndex(1, 0)
	if err != nil {
		t.Fatalf("PositionForIndex: %v", err)
	}

	in := tilecache.NewTile(pos, tilecache.Double)
	tilecache.Double.PutWidened(in.Payload, 0, binary.LittleEndian, false, 3.25)

	if err := ds.WriteTile(in); err != nil {
		t.Fatalf("WriteTile: %v", err)
	}

	out, err := ds.ReadTile(pos)
	if err != nil {
		t.Fatalf("ReadTile: %v", err)
	}
	if got := tilecache.Double.Widen(out.Payload, 0, binary.LittleEndian, false); got != 3.25 {
		t.Fatalf("round-tripped value = %v, want 3.25", got)
	}
	if len(out.Payload) > 0 && len(in.Payload) > 0 && &out.Payload[0] == &in.Payload[0] {
		t.Fatalf("ReadTile must return a copy, not share backing storage with the written tile")
	}
}

func TestDatasetReadTileRejectsForeignScheme(t *testing.T) {
	schemeA := tilecache.NewTilingScheme(tilecache.Dims{Rows: 10, Cols: 10}, tilecache.Dims{Rows: 10, Cols: 10})
	schemeB := tilecache.NewTilingScheme(tilecache.Dims{Rows: 10, Cols: 10}, tilecache.Dims{Rows: 10, Cols: 10})

	ds := New(schemeA, tilecache.Byte)
	posB, _ := schemeB.PositionForIndex(0, 0)

	if _, err := ds.ReadTile(posB); err == nil {
		t.Fatalf("expected ErrSchemeMismatch for a position from a different scheme")
	}
}

func TestDatasetAllTilesPreallocated(t *testing.T) {
	scheme := tilecache.NewTilingScheme(tilecache.Dims{Rows: 25, Cols: 25}, tilecache.Dims{Rows: 10, Cols: 10})
	ds := New(scheme, tilecache.Float)

	for _, pos := range scheme.AllPositions() {
		tile, err := ds.ReadTile(pos)
		if err != nil {
			t.Fatalf("ReadTile(%d,%d): %v", pos.TileRow, pos.TileCol, err)
		}
		want := pos.Dims.Area() * tilecache.Float.Size()
		if len(tile.Payload) != want {
			t.Fatalf("tile (%d,%d) payload len = %d, want %d", pos.TileRow, pos.TileCol, len(tile.Payload), want)
		}
	}
}
