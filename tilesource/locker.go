package tilesource

import "sync"

// Locker is a per-source mutex a concrete Source/Sink implementation can
// embed to serialize reads against its container handle when the
// underlying format library is not re-entrant. Mirrors the
// sync.RWMutex-guarded backing handle pattern a tiled-raster reader
// typically uses around its file handle.
type Locker struct {
	mu sync.Mutex
}

// WithLock runs fn while holding the source's lock, returning whatever
// error fn returns.
func (l *Locker) WithLock(fn func() error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fn()
}
