package intent

import (
	"fmt"
	"sync"
	"time"
)

type Snapshot struct {
	Version    int64
	Model      string
	Classifier *Classifier
	LoadedAt   time.Time
}

// Registry holds the classifier built from the newest accepted catalog so a
// running server can swap catalogs without dropping requests.
type Registry struct {
	mu      sync.RWMutex
	current Snapshot
	loaded  bool
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Load validates c and makes it current. Older versions are ignored and an
// unversioned catalog cannot replace a versioned one; the returned bool
// reports whether the swap happened.
func (r *Registry) Load(c Catalog) (bool, error) {
	classifier, err := NewClassifier(c.Categories)
	if err != nil {
		return false, fmt.Errorf("load catalog v%d: %w", c.Version, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.loaded {
		cur := r.current.Version
		if cur > 0 && c.Version > 0 && c.Version < cur {
			return false, nil
		}
		if cur > 0 && c.Version == 0 {
			return false, nil
		}
	}

	r.current = Snapshot{
		Version:    c.Version,
		Model:      c.Model,
		Classifier: classifier,
		LoadedAt:   time.Now(),
	}
	r.loaded = true
	return true, nil
}

func (r *Registry) Current() (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current, r.loaded
}
