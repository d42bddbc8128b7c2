package cachemgr

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/gracefulearth/tilecache"
)

// scriptedSource reads from a fixed scheme, returning the scripted error
// (if any) for a given position and otherwise a zeroed tile whose
// Position lets observers confirm which tile arrived.
type scriptedSource struct {
	scheme  *tilecache.TilingScheme
	mu      sync.Mutex
	fail    map[[2]int]error
	reads   []string // one key(pos) tag per ReadTile call, in call order
	block   chan struct{}
	entered chan struct{} // signaled the instant ReadTile is called, before blocking
}

func newScriptedSource(scheme *tilecache.TilingScheme) *scriptedSource {
	return &scriptedSource{scheme: scheme, fail: make(map[[2]int]error)}
}

func (s *scriptedSource) Scheme() *tilecache.TilingScheme { return s.scheme }

func (s *scriptedSource) ReadTile(pos *tilecache.TilePosition) (tilecache.Tile, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	s.reads = append(s.reads, key(pos))
	err := s.fail[[2]int{pos.TileRow, pos.TileCol}]
	s.mu.Unlock()
	if err != nil {
		return tilecache.Tile{}, err
	}
	return tilecache.NewTile(pos, tilecache.Byte), nil
}

func key(pos *tilecache.TilePosition) string {
	return string(rune('A' + pos.TileRow*10 + pos.TileCol))
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []struct {
		op   *Delivery
		tile *tilecache.Tile
	}
}

func (r *recordingObserver) Update(op *Delivery, tile *tilecache.Tile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, struct {
		op   *Delivery
		tile *tilecache.Tile
	}{op, tile})
}

func (r *recordingObserver) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestDeliveryNotifiesInListOrder(t *testing.T) {
	scheme := tilecache.NewTilingScheme(tilecache.Dims{Rows: 40, Cols: 40}, tilecache.Dims{Rows: 10, Cols: 10})
	source := newScriptedSource(scheme)

	positions := scheme.AllPositions()
	obs := &recordingObserver{}

	d := NewDelivery(context.Background(), source, positions, []Observer{obs})
	d.Start()
	d.WaitUntilFinished()

	if d.State() != Finished {
		t.Fatalf("state = %v, want Finished", d.State())
	}
	if obs.len() != len(positions) {
		t.Fatalf("got %d notifications, want %d", obs.len(), len(positions))
	}
	for i, call := range obs.calls {
		if call.tile == nil {
			t.Fatalf("call %d: tile is nil, want a tile", i)
		}
		if call.tile.Position != positions[i] {
			t.Fatalf("call %d out of order: got tile for (%d,%d), want (%d,%d)",
				i, call.tile.Position.TileRow, call.tile.Position.TileCol, positions[i].TileRow, positions[i].TileCol)
		}
		if call.op != d {
			t.Fatalf("call %d: op = %v, want the delivery itself", i, call.op)
		}
	}
}

func TestDeliveryStartIsIdempotent(t *testing.T) {
	scheme := tilecache.NewTilingScheme(tilecache.Dims{Rows: 10, Cols: 10}, tilecache.Dims{Rows: 10, Cols: 10})
	source := newScriptedSource(scheme)
	obs := &recordingObserver{}

	d := NewDelivery(context.Background(), source, scheme.AllPositions(), []Observer{obs})
	d.Start()
	d.Start() // no-op
	d.WaitUntilFinished()

	if obs.len() != 1 {
		t.Fatalf("expected exactly 1 notification (1 position), got %d", obs.len())
	}
}

func TestDeliveryReadErrorSetsLastErrorAndContinues(t *testing.T) {
	scheme := tilecache.NewTilingScheme(tilecache.Dims{Rows: 20, Cols: 10}, tilecache.Dims{Rows: 10, Cols: 10})
	source := newScriptedSource(scheme)
	boom := errors.New("boom")
	source.fail[[2]int{0, 0}] = boom

	obs := &recordingObserver{}
	positions := scheme.AllPositions() // (0,0) fails, (1,0) succeeds
	d := NewDelivery(context.Background(), source, positions, []Observer{obs})
	d.Start()
	d.WaitUntilFinished()

	if obs.len() != 2 {
		t.Fatalf("expected 2 notifications despite the read error, got %d", obs.len())
	}
	if obs.calls[0].tile != nil {
		t.Fatalf("first notification should carry a nil tile on read failure")
	}
	if obs.calls[1].tile == nil {
		t.Fatalf("second notification should still carry its tile")
	}
	if d.LastError() != boom {
		t.Fatalf("LastError() = %v, want %v", d.LastError(), boom)
	}
	if d.State() != Finished {
		t.Fatalf("state = %v, want Finished (errors don't cancel the operation)", d.State())
	}
}

func TestDeliveryCancelStopsBetweenTiles(t *testing.T) {
	// Three positions; every ReadTile call blocks at entry until the test
	// releases it. Cancel is issued while the first read is still
	// in-flight, then the first read is released: this ordering
	// (Cancel-before-release-before-ReadTile-returns) guarantees the
	// worker observes Cancelled once it reaches the second position,
	// without relying on a scheduling race.
	scheme := tilecache.NewTilingScheme(tilecache.Dims{Rows: 30, Cols: 10}, tilecache.Dims{Rows: 10, Cols: 10})
	source := newScriptedSource(scheme)
	source.block = make(chan struct{})
	source.entered = make(chan struct{}, 1)

	obs := &recordingObserver{}
	d := NewDelivery(context.Background(), source, scheme.AllPositions(), []Observer{obs})
	d.Start()

	<-source.entered            // first ReadTile call has started (in-flight)
	d.Cancel()                  // cancel while it's still blocked
	source.block <- struct{}{}  // now release it
	d.WaitUntilFinished()

	if d.State() != Cancelled {
		t.Fatalf("state = %v, want Cancelled", d.State())
	}
	if obs.len() != 1 {
		t.Fatalf("expected exactly 1 notification (the in-flight read allowed to complete), got %d", obs.len())
	}
	if len(source.reads) != 1 {
		t.Fatalf("expected exactly 1 ReadTile call, got %d", len(source.reads))
	}
}
