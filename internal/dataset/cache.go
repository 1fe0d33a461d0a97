package dataset

import (
	"sync"
	"time"

	"github.com/lox/stravaexplorer/internal/log"
	"github.com/lox/stravaexplorer/internal/metrics"
)

// LoadFunc produces the base observation table.
type LoadFunc func() (*Table, error)

// Cache memoizes a LoadFunc for the life of the process. The first Get runs
// the load; every later Get returns the same table or the same error. There
// is no invalidation.
type Cache struct {
	load LoadFunc
	once sync.Once

	table    *Table
	err      error
	loadedAt time.Time
}

func NewCache(load LoadFunc) *Cache {
	return &Cache{load: load}
}

// Get returns the cached table, loading it on first use.
func (c *Cache) Get() (*Table, error) {
	c.once.Do(func() {
		start := time.Now()
		c.table, c.err = c.load()
		elapsed := time.Since(start)
		c.loadedAt = time.Now()

		metrics.DatasetLoadSeconds.Set(elapsed.Seconds())
		if c.err != nil {
			log.Errorw("dataset: load failed", "error", c.err, "elapsed", elapsed)
			return
		}
		metrics.DatasetRows.Set(float64(c.table.Len()))
		log.Infow("dataset: loaded", "rows", c.table.Len(), "elapsed", elapsed)
	})
	return c.table, c.err
}

// LoadedAt reports when the load finished. It is zero before the first Get.
func (c *Cache) LoadedAt() time.Time {
	return c.loadedAt
}
