package tilesource

import (
	"testing"

	"github.com/gracefulearth/tilecache"
)

func TestDeriveTileDimsChunked(t *testing.T) {
	global := tilecache.Dims{Rows: 10000, Cols: 10000}
	meta := ChunkMetadata{Chunked: true, ChunkDims: tilecache.Dims{Rows: 256, Cols: 128}}

	got := DeriveTileDims(global, meta)
	if want := (tilecache.Dims{Rows: 256, Cols: 128}); got != want {
		t.Fatalf("DeriveTileDims(chunked) = %+v, want %+v", got, want)
	}
}

func TestDeriveTileDimsMonolithicCompressed(t *testing.T) {
	global := tilecache.Dims{Rows: 2000, Cols: 3000}
	meta := ChunkMetadata{MonolithicCompressed: true}

	got := DeriveTileDims(global, meta)
	if got != global {
		t.Fatalf("DeriveTileDims(monolithic) = %+v, want the full global dims %+v", got, global)
	}
}

func TestDeriveTileDimsUnchunkedCapsAtDefault(t *testing.T) {
	global := tilecache.Dims{Rows: 10000, Cols: 10000}

	got := DeriveTileDims(global, ChunkMetadata{})
	want := tilecache.Dims{Rows: DefaultMaxUnchunkedTile, Cols: DefaultMaxUnchunkedTile}
	if got != want {
		t.Fatalf("DeriveTileDims(unchunked) = %+v, want %+v", got, want)
	}
}

func TestDeriveTileDimsUnchunkedSmallerThanDefaultIsUnclamped(t *testing.T) {
	global := tilecache.Dims{Rows: 100, Cols: 900}

	got := DeriveTileDims(global, ChunkMetadata{})
	want := tilecache.Dims{Rows: 100, Cols: DefaultMaxUnchunkedTile}
	if got != want {
		t.Fatalf("DeriveTileDims(small unchunked) = %+v, want %+v", got, want)
	}
}
