package measure

import "time"

type Measure interface {
	AddMetric(name string) Metric
	AllMetrics() map[string]Metric
}

type Metric interface {
	AddFitDuration(elapsed time.Duration)
	AddTransformDuration(elapsed time.Duration)
	CacheHit()
	CacheMiss()
	AVGFitDuration() time.Duration
	AVGTransformDuration() time.Duration
	Hits() int64
	Misses() int64
}
