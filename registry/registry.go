// Package registry holds the process-wide table of open indexes, keyed by
// (shape, bits, dimensions, tolerance, namespace). Lookups take the shared
// side of a reader-writer lock, creations the exclusive side; the table
// itself is a bounded LRU so long-running servers that touch many
// namespaces quiesce the cold ones instead of accumulating open file
// handles forever.
package registry

import (
	"path/filepath"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	logging "github.com/ipfs/go-log/v2"
	"github.com/kerinin/hmsearch/factory"
	"github.com/kerinin/hmsearch/metrics"
)

var log = logging.Logger("hmsearch/registry")

// DefaultMaxOpen bounds how many indexes one process keeps open at once.
const DefaultMaxOpen = 128

// Key identifies one index.
type Key struct {
	Kind       factory.Kind
	Bits       int
	Dimensions int
	Tolerance  int
	Namespace  string
}

func (k Key) spec(dataDir string) factory.Spec {
	spec := factory.Spec{
		Kind:       k.Kind,
		Bits:       k.Bits,
		Dimensions: k.Dimensions,
		Tolerance:  k.Tolerance,
	}
	if dataDir != "" {
		spec.DataDir = filepath.Join(dataDir, k.Namespace)
	}
	return spec
}

// Registry is the create-on-first-use index table.
type Registry struct {
	mu      sync.RWMutex
	dbs     *lru.Cache[Key, factory.DB]
	dataDir string // "" => in-memory backends
}

// New builds a registry whose indexes use dataDir as the durable backend
// root (empty for in-memory), keeping at most maxOpen indexes open.
// Evicted indexes are closed; with a durable backend they reopen from disk
// on next use.
func New(dataDir string, maxOpen int) (*Registry, error) {
	if maxOpen <= 0 {
		maxOpen = DefaultMaxOpen
	}
	dbs, err := lru.NewWithEvict[Key, factory.DB](maxOpen, func(key Key, db factory.DB) {
		if err := db.Close(); err != nil {
			log.Errorw("failed to close evicted index", "key", key, "err", err)
		}
		metrics.IndexesOpen.Dec()
		log.Infow("evicted index", "namespace", key.Namespace, "tolerance", key.Tolerance)
	})
	if err != nil {
		return nil, err
	}
	return &Registry{dbs: dbs, dataDir: dataDir}, nil
}

// Get returns the open index for key, if any.
func (r *Registry) Get(key Key) (factory.DB, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dbs.Get(key)
}

// GetOrCreate returns the open index for key, assembling and opening it on
// first use. Queries against a never-created index also create it, so an
// empty index answers with no matches instead of an error.
func (r *Registry) GetOrCreate(key Key) (factory.DB, error) {
	if db, ok := r.Get(key); ok {
		return db, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if db, ok := r.dbs.Get(key); ok {
		return db, nil
	}

	db, err := factory.New(key.spec(r.dataDir))
	if err != nil {
		return nil, err
	}
	r.dbs.Add(key, db)
	metrics.IndexesOpen.Inc()
	log.Infow("opened index", "kind", key.Kind, "bits", key.Bits, "dimensions", key.Dimensions, "tolerance", key.Tolerance, "namespace", key.Namespace)
	return db, nil
}

// CloseAll closes every open index. The registry stays usable; subsequent
// GetOrCreate calls reopen.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dbs.Purge()
}

// Len reports the number of currently open indexes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.dbs.Len()
}
