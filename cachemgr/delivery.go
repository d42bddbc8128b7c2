package cachemgr

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gracefulearth/tilecache"
	"github.com/gracefulearth/tilecache/internal/telemetry"
	"github.com/gracefulearth/tilecache/tilesource"
)

// Observer is notified once per tile position processed by a Delivery,
// in the exact order the positions were given. On a successful read the
// notification carries the tile; on a failed read it carries a nil tile
// and Delivery.LastError reports the cause.
type Observer interface {
	Update(op *Delivery, tile *tilecache.Tile)
}

// ObserverFunc adapts a plain function to Observer.
type ObserverFunc func(op *Delivery, tile *tilecache.Tile)

func (f ObserverFunc) Update(op *Delivery, tile *tilecache.Tile) { f(op, tile) }

// State is a Delivery's position in its state machine.
type State int

const (
	NotStarted State = iota
	Running
	Cancelled
	Finished
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NOT_STARTED"
	case Running:
		return "RUNNING"
	case Cancelled:
		return "CANCELLED"
	case Finished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// Delivery streams a fixed list of tile positions from one source to a
// list of observers, one tile at a time, on a single background
// goroutine. It is a one-shot object: once Start has been called, the
// position list and observer list are fixed for the life of the
// operation.
//
// There is deliberately no worker pool or task-framework dependency here:
// a delivery operation's concurrency is exactly "one goroutine, maybe
// cancelled between tiles" and nothing a generic task scheduler would add
// is needed for that shape.
type Delivery struct {
	ctx       context.Context
	source    tilesource.Source
	positions []*tilecache.TilePosition
	observers []Observer

	startOnce sync.Once
	done      chan struct{}

	mu      sync.Mutex
	state   State
	lastErr error
}

// NewDelivery constructs a delivery operation bound to source, reading
// exactly the given positions in order and notifying observers for each.
// The operation does not begin reading until Start is called. ctx is the
// request context each tile read's span is parented to; it is not used
// for cancellation, which goes through Cancel instead.
func NewDelivery(ctx context.Context, source tilesource.Source, positions []*tilecache.TilePosition, observers []Observer) *Delivery {
	return &Delivery{
		ctx:       ctx,
		source:    source,
		positions: positions,
		observers: observers,
		done:      make(chan struct{}),
	}
}

// Start begins reading on a background goroutine. Idempotent: calling it
// more than once has no additional effect.
func (d *Delivery) Start() {
	d.startOnce.Do(func() {
		d.mu.Lock()
		d.state = Running
		d.mu.Unlock()
		go d.run()
	})
}

func (d *Delivery) run() {
	defer close(d.done)

	label := telemetry.SourceLabel(d.source)

	for _, pos := range d.positions {
		if d.cancelled() {
			return
		}

		_, span := telemetry.Tracer.Start(d.ctx, "cachemgr.delivery.read_tile")
		span.SetAttributes(attribute.Int("tilecache.tile_row", pos.TileRow), attribute.Int("tilecache.tile_col", pos.TileCol))
		tile, err := d.source.ReadTile(pos)
		if err != nil {
			span.End()
			d.mu.Lock()
			d.lastErr = err
			d.mu.Unlock()
			slog.Warn("tile read failed", "source", label, "tile_row", pos.TileRow, "tile_col", pos.TileCol, "error", err)
			d.notify(nil)
			continue
		}
		span.End()
		d.notify(&tile)
	}

	d.mu.Lock()
	if d.state != Cancelled {
		d.state = Finished
	}
	d.mu.Unlock()
}

func (d *Delivery) cancelled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state == Cancelled
}

func (d *Delivery) notify(tile *tilecache.Tile) {
	for _, obs := range d.observers {
		obs.Update(d, tile)
	}
}

// Cancel requests that the operation stop before reading its next
// position. An in-flight ReadTile is always allowed to complete and its
// result still delivered. Cancel has no effect unless the operation is
// currently Running.
func (d *Delivery) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Running {
		d.state = Cancelled
	}
}

// WaitUntilFinished blocks until the worker goroutine exits, whether by
// reaching Finished or by Cancelled stopping the remaining iteration.
// Calling it before Start has been called blocks forever; callers must
// always Start before waiting.
func (d *Delivery) WaitUntilFinished() {
	<-d.done
}

// Source returns the source this operation reads from.
func (d *Delivery) Source() tilesource.Source {
	return d.source
}

// LastError returns the most recent read error, or nil if every position
// read so far has succeeded.
func (d *Delivery) LastError() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// State reports the operation's current position in its state machine.
func (d *Delivery) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}
