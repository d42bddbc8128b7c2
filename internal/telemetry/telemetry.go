// Package telemetry holds the cache manager's ambient observability
// instruments: a no-op-by-default OpenTelemetry tracer and a fixed set of
// Prometheus counters/gauges for cache hits, misses, evictions and size.
// Neither is required for correctness; both exist so the manager is
// observable in the same way the rest of this codebase's lineage is.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// TracerName is the instrumentation name the default Tracer is created
// with.
const TracerName = "github.com/gracefulearth/tilecache/cachemgr"

// Tracer is the package-wide tracer. It defaults to a no-op
// implementation so the manager never depends on a configured OTel
// exporter. It is built from its own no-op provider, so
// otel.SetTracerProvider does not affect it; real spans appear only when
// a different trace.Tracer is assigned to this variable.
var Tracer trace.Tracer = noop.NewTracerProvider().Tracer(TracerName)

var (
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tilecache_cache_hits_total",
			Help: "Total number of tile cache hits.",
		},
		[]string{"source"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tilecache_cache_misses_total",
			Help: "Total number of tile cache misses requiring a source read.",
		},
		[]string{"source"},
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tilecache_cache_evictions_total",
			Help: "Total number of tiles evicted from the tile cache.",
		},
		[]string{"source"},
	)

	CacheSizeBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tilecache_cache_size_bytes",
			Help: "Current total size of the tile cache in bytes.",
		},
		[]string{"manager"},
	)

	CacheCapacityBytes = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tilecache_cache_capacity_bytes",
			Help: "Configured byte ceiling of the tile cache.",
		},
		[]string{"manager"},
	)

	DeliveryErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tilecache_delivery_errors_total",
			Help: "Total number of tile read errors encountered by delivery operations.",
		},
		[]string{"source"},
	)
)

// SourceLabel derives the label value used for the per-source metric
// vectors above. Named sources (anything implementing fmt.Stringer) use
// their string form; everything else is labeled "unnamed" rather than
// risking an unbounded label cardinality from a pointer's address.
func SourceLabel(source any) string {
	if s, ok := source.(interface{ String() string }); ok {
		return s.String()
	}
	return "unnamed"
}
