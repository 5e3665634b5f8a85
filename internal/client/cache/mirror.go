package cache

import (
	"github.com/coocood/freecache"
)

// Mirror is an in-memory copy of namespace values in front of durable
// storage. A miss always falls through to storage.
type Mirror interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
	Del(key string)
}

type freecacheMirror struct {
	cache *freecache.Cache
}

// NewMirror returns a freecache-backed mirror of sizeMB megabytes, or a
// no-op mirror when sizeMB is not positive.
func NewMirror(sizeMB int) Mirror {
	if sizeMB <= 0 {
		return noopMirror{}
	}
	return &freecacheMirror{cache: freecache.NewCache(sizeMB * 1024 * 1024)}
}

func (m *freecacheMirror) Get(key string) ([]byte, bool) {
	v, err := m.cache.Get([]byte(key))
	if err != nil {
		return nil, false
	}
	return v, true
}

func (m *freecacheMirror) Set(key string, value []byte) {
	// values larger than 1/1024 of the cache are rejected; reads then
	// fall through to storage
	if err := m.cache.Set([]byte(key), value, 0); err != nil {
		m.cache.Del([]byte(key))
	}
}

func (m *freecacheMirror) Del(key string) {
	m.cache.Del([]byte(key))
}

type noopMirror struct{}

func (noopMirror) Get(_ string) ([]byte, bool) { return nil, false }
func (noopMirror) Set(_ string, _ []byte)      {}
func (noopMirror) Del(_ string)                {}
