package measure

import (
	"sync"
	"time"
)

type DefaultMetric struct {
	mu               *sync.Mutex
	fitElapsed       time.Duration
	fitTotal         int64
	transformElapsed time.Duration
	transformTotal   int64
	hits             int64
	misses           int64
}

func (mt *DefaultMetric) AddFitDuration(elapsed time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.fitTotal++
	mt.fitElapsed += elapsed
}

func (mt *DefaultMetric) AddTransformDuration(elapsed time.Duration) {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.transformTotal++
	mt.transformElapsed += elapsed
}

func (mt *DefaultMetric) CacheHit() {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.hits++
}

func (mt *DefaultMetric) CacheMiss() {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.misses++
}

func (mt *DefaultMetric) AVGFitDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.fitTotal == 0 {
		return time.Duration(0)
	}

	return round(time.Duration(float64(mt.fitElapsed) / float64(mt.fitTotal)))
}

func (mt *DefaultMetric) AVGTransformDuration() time.Duration {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	if mt.transformTotal == 0 {
		return time.Duration(0)
	}

	return round(time.Duration(float64(mt.transformElapsed) / float64(mt.transformTotal)))
}

func (mt *DefaultMetric) Hits() int64 {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.hits
}

func (mt *DefaultMetric) Misses() int64 {
	mt.mu.Lock()
	defer mt.mu.Unlock()

	return mt.misses
}

func round(d time.Duration) time.Duration {
	switch {
	case d > time.Second:
		d = d.Round(time.Second)
	case d > time.Millisecond:
		d = d.Round(time.Millisecond)
	case d > time.Microsecond:
		d = d.Round(time.Microsecond)
	}

	return d
}
