package forecaster

import (
	"context"
	"encoding/binary"
	"errors"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/chrisdamba/messforecast/internal/metrics"
	"github.com/chrisdamba/messforecast/internal/models"
)

type fitOutcome struct {
	predictions []int
	fallback    error
}

// fitCache memoises fit outcomes by series fingerprint. Concurrent callers with the same
// fingerprint share one fit. When full, the oldest fingerprint is evicted first.
type fitCache struct {
	mu       sync.Mutex
	entries  map[uint64]fitOutcome
	order    []uint64
	capacity int
	group    singleflight.Group
}

func newFitCache(capacity int) *fitCache {
	return &fitCache{
		entries:  make(map[uint64]fitOutcome, capacity),
		capacity: capacity,
	}
}

func (c *fitCache) get(fp uint64) (fitOutcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out, ok := c.entries[fp]
	return out, ok
}

func (c *fitCache) put(fp uint64, out fitOutcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[fp]; ok {
		return
	}
	for len(c.order) >= c.capacity {
		delete(c.entries, c.order[0])
		c.order = c.order[1:]
	}
	c.entries[fp] = out
	c.order = append(c.order, fp)
}

func (c *fitCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// do returns the cached outcome for fp or computes it with fn. Errors are not cached.
//
// Concurrent callers share one fit, which runs under the context of whichever caller
// started it. A caller whose own ctx is still live retries when that shared fit was
// cancelled by another caller's context.
func (c *fitCache) do(ctx context.Context, fp uint64, fn func() (fitOutcome, error), m *metrics.Pipeline) (fitOutcome, error) {
	if out, ok := c.get(fp); ok {
		m.CacheLookup(true)
		return out, nil
	}
	m.CacheLookup(false)

	key := strconv.FormatUint(fp, 16)
	for {
		v, err, shared := c.group.Do(key, func() (interface{}, error) {
			if out, ok := c.get(fp); ok {
				return out, nil
			}
			out, err := fn()
			if err != nil {
				return fitOutcome{}, err
			}
			c.put(fp, out)
			return out, nil
		})
		if err == nil {
			return v.(fitOutcome), nil
		}
		if shared && isContextError(err) && ctx.Err() == nil {
			continue
		}
		return fitOutcome{}, err
	}
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// fingerprint hashes the ordered (weekStart, count) pairs together with every setting that
// changes the fitted output. New or corrected data yields a new fingerprint.
func fingerprint(obs []models.Observation, cfg Config) uint64 {
	h := xxhash.New()
	var buf [8]byte
	write := func(v int64) {
		binary.LittleEndian.PutUint64(buf[:], uint64(v))
		_, _ = h.Write(buf[:])
	}
	write(int64(cfg.Horizon))
	write(int64(cfg.MinObservations))
	write(int64(cfg.SeasonLength))
	for _, o := range obs {
		write(o.WeekStart.Unix())
		write(int64(o.Count))
	}
	return h.Sum64()
}
