package ttlcache

// Metrics receives cache events. Stats already counts hits and misses;
// Metrics exists so they can also be exported.
type Metrics interface {
	Hit()
	Miss()
	// Evict is called when a capacity-bounded cache drops its least
	// recently used entry.
	Evict()
	// Expire is called when a read finds an expired entry and removes it.
	Expire()
}

// NoopMetrics ignores every event.
type NoopMetrics struct{}

func (NoopMetrics) Hit()    {}
func (NoopMetrics) Miss()   {}
func (NoopMetrics) Evict()  {}
func (NoopMetrics) Expire() {}
