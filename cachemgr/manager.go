// Package cachemgr implements the process-wide cache manager: the entry
// point that turns tile reads into cache hits or source fetches, and
// turns bulk region requests into background delivery operations.
package cachemgr

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/gracefulearth/tilecache"
	"github.com/gracefulearth/tilecache/cache"
	"github.com/gracefulearth/tilecache/internal/telemetry"
	"github.com/gracefulearth/tilecache/tilesource"
)

const (
	mebibyte = 1 << 20
	kibibyte = 1 << 10

	envCacheSizeMiB = "CACHE_SIZE_MIB"
	envCompressMode = "COMPRESS_MODE"
	envChunkSizeKiB = "CHUNK_SIZE_KIB"

	defaultCacheSizeMiB = 128
	defaultCompressMode = true
	defaultChunkSizeKiB = 512
)

// Config holds the cache manager's environment-sourced configuration.
// CompressMode and ChunkSizeBytes govern sinks the manager's embedder
// writes through, not reads served by the manager itself; they are
// carried here because the manager is this package's single
// environment-configured entry point, and all three keys are read
// together at the same first-use boundary.
type Config struct {
	CacheSizeBytes int64
	CompressMode   bool
	ChunkSizeBytes int64
}

// DefaultConfig returns the configuration the manager uses when no
// environment variables are set.
func DefaultConfig() Config {
	return Config{
		CacheSizeBytes: defaultCacheSizeMiB * mebibyte,
		CompressMode:   defaultCompressMode,
		ChunkSizeBytes: defaultChunkSizeKiB * kibibyte,
	}
}

// ConfigFromEnv reads CACHE_SIZE_MIB, COMPRESS_MODE and CHUNK_SIZE_KIB
// from the process environment, falling back to DefaultConfig's values
// for any that are unset. Returns tilecache.ErrConfig if a set variable
// cannot be parsed as the expected type.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv(envCacheSizeMiB); v != "" {
		mib, err := strconv.ParseInt(v, 10, 64)
		if err != nil || mib <= 0 {
			return Config{}, tilecache.ErrConfig{Key: envCacheSizeMiB, Value: v}
		}
		cfg.CacheSizeBytes = mib * mebibyte
	}

	if v := os.Getenv(envCompressMode); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, tilecache.ErrConfig{Key: envCompressMode, Value: v}
		}
		cfg.CompressMode = enabled
	}

	if v := os.Getenv(envChunkSizeKiB); v != "" {
		kib, err := strconv.ParseInt(v, 10, 64)
		if err != nil || kib <= 0 {
			return Config{}, tilecache.ErrConfig{Key: envChunkSizeKiB, Value: v}
		}
		cfg.ChunkSizeBytes = kib * kibibyte
	}

	return cfg, nil
}

// Manager is the process-wide cache manager: a single byte-bounded tile
// cache shared by every source it is asked about.
type Manager struct {
	cache *cache.Cache
	cfg   Config
}

// New builds a manager isolated from the process-wide Default singleton,
// for tests and for embedders that want a dedicated cache instead of the
// shared one.
func New(cfg Config) *Manager {
	return &Manager{
		cache: cache.New(cfg.CacheSizeBytes),
		cfg:   cfg,
	}
}

var (
	defaultManagerMu   sync.Mutex
	defaultManagerOnce sync.Once
	defaultManager     *Manager
)

// Default returns the process-wide cache manager, configuring it from the
// environment on first use. Every subsequent call returns the same
// instance until Reset is called.
func Default() *Manager {
	defaultManagerMu.Lock()
	defer defaultManagerMu.Unlock()
	defaultManagerOnce.Do(func() {
		cfg, err := ConfigFromEnv()
		if err != nil {
			panic(err)
		}
		defaultManager = New(cfg)
	})
	return defaultManager
}

// Reset tears down the process-wide singleton so the next call to Default
// reconfigures from the environment again. It exists for tests that need
// a clean singleton between cases; production callers have no reason to
// call it.
func Reset() {
	defaultManagerMu.Lock()
	defer defaultManagerMu.Unlock()
	defaultManagerOnce = sync.Once{}
	defaultManager = nil
}

// Config returns the configuration this manager was built with.
func (m *Manager) Config() Config {
	return m.cfg
}

// GetTile looks up (source, position) in the shared cache. On a miss it
// reads synchronously through source, inserts the result, and returns it.
// source must implement tilesource.Source; anything else is rejected with
// ErrUnsupported. Concurrent misses for the same key are not
// deduplicated: two callers racing on a cold key may both invoke
// ReadTile, and both insert their own (equal) result.
func (m *Manager) GetTile(ctx context.Context, source any, pos *tilecache.TilePosition) (*tilecache.Tile, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "cachemgr.get_tile")
	defer span.End()

	src, ok := source.(tilesource.Source)
	if !ok {
		return nil, tilecache.ErrUnsupported{Action: "GetTile: source does not implement tilesource.Source"}
	}

	label := telemetry.SourceLabel(source)
	span.SetAttributes(attribute.Int("tilecache.tile_row", pos.TileRow), attribute.Int("tilecache.tile_col", pos.TileCol))

	key := cache.Key{Source: source, Position: pos}
	if tile, ok := m.cache.Get(key); ok {
		telemetry.CacheHits.WithLabelValues(label).Inc()
		span.SetAttributes(attribute.Bool("tilecache.hit", true))
		return tile, nil
	}

	telemetry.CacheMisses.WithLabelValues(label).Inc()
	span.SetAttributes(attribute.Bool("tilecache.hit", false))

	tile, err := src.ReadTile(pos)
	if err != nil {
		slog.Warn("tile read failed", "source", label, "tile_row", pos.TileRow, "tile_col", pos.TileCol, "error", err)
		return nil, err
	}

	m.cache.Put(key, &tile)
	m.updateSizeMetrics()
	return &tile, nil
}

// RequestTiles enumerates the tile positions covering [start, start+count)
// via source's scheme. Positions already cached are delivered to observer
// synchronously, before this method returns, with a nil Delivery as the
// notification's operation, since no delivery operation produced them. The remaining
// positions are handed to a new Delivery, which also
// inserts every tile it reads into the shared cache before forwarding it
// to observer; the Delivery is started and returned immediately without
// waiting for it to finish.
//
// If every position was already cached, the returned Delivery is nil and
// there is nothing further to wait on.
func (m *Manager) RequestTiles(ctx context.Context, source any, start, count tilecache.Dims, observer Observer) (*Delivery, error) {
	ctx, span := telemetry.Tracer.Start(ctx, "cachemgr.request_tiles")
	defer span.End()

	src, ok := source.(tilesource.Source)
	if !ok {
		return nil, tilecache.ErrUnsupported{Action: "RequestTiles: source does not implement tilesource.Source"}
	}

	positions, err := src.Scheme().CoveringPositions(start, count)
	if err != nil {
		return nil, err
	}

	label := telemetry.SourceLabel(source)
	var pending []*tilecache.TilePosition
	for _, pos := range positions {
		key := cache.Key{Source: source, Position: pos}
		if tile, ok := m.cache.Get(key); ok {
			telemetry.CacheHits.WithLabelValues(label).Inc()
			if observer != nil {
				observer.Update(nil, tile)
			}
			continue
		}
		telemetry.CacheMisses.WithLabelValues(label).Inc()
		pending = append(pending, pos)
	}

	if len(pending) == 0 {
		return nil, nil
	}

	cacheInsert := ObserverFunc(func(op *Delivery, tile *tilecache.Tile) {
		if tile == nil {
			telemetry.DeliveryErrorsTotal.WithLabelValues(label).Inc()
			return
		}
		m.cache.Put(cache.Key{Source: source, Position: tile.Position}, tile)
		m.updateSizeMetrics()
	})

	observers := []Observer{cacheInsert}
	if observer != nil {
		observers = append(observers, observer)
	}

	delivery := NewDelivery(ctx, src, pending, observers)
	delivery.Start()
	return delivery, nil
}

// RemoveTilesForSource evicts every cached tile whose key's source equals
// source by identity. Used by CachedGrid.Dispose.
func (m *Manager) RemoveTilesForSource(source any) {
	m.cache.RemoveWhere(func(k cache.Key) bool { return k.Source == source })
	m.updateSizeMetrics()
}

// CacheSize returns the number of bytes currently held in the shared
// cache, for reporting tools such as cmd/tilestat and cmd/tilewarm.
func (m *Manager) CacheSize() int64 {
	return m.cache.Size()
}

// CacheCapacity returns the shared cache's byte budget.
func (m *Manager) CacheCapacity() int64 {
	return m.cache.Capacity()
}

func (m *Manager) updateSizeMetrics() {
	telemetry.CacheSizeBytes.WithLabelValues("default").Set(float64(m.cache.Size()))
	telemetry.CacheCapacityBytes.WithLabelValues("default").Set(float64(m.cache.Capacity()))
}

var _ tilecache.GridManager = (*Manager)(nil)
