package realtime

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats is the statistics snapshot returned by Gateway.Stats (spec.md §4.7:
// "per-namespace live connection count, per-event-type counters, total
// sessions since boot, uptime milliseconds").
type Stats struct {
	Connections map[Namespace]int64
	EventCounts map[string]int64
	TotalSince  int64
	UptimeMS    int64
}

// statsTracker holds the live counters backing Stats.
type statsTracker struct {
	bootTime  time.Time
	totalBoot int64

	connMu sync.Mutex
	conns  map[Namespace]int64

	eventMu sync.Mutex
	events  map[string]int64
}

func newStatsTracker() *statsTracker {
	conns := make(map[Namespace]int64, len(namespaces))
	for _, ns := range namespaces {
		conns[ns] = 0
	}
	return &statsTracker{
		bootTime: time.Now(),
		conns:    conns,
		events:   make(map[string]int64),
	}
}

func (t *statsTracker) onConnect(ns Namespace) {
	t.connMu.Lock()
	t.conns[ns]++
	t.connMu.Unlock()
	atomic.AddInt64(&t.totalBoot, 1)
}

func (t *statsTracker) onDisconnect(ns Namespace) {
	t.connMu.Lock()
	t.conns[ns]--
	t.connMu.Unlock()
}

func (t *statsTracker) onEvent(kind string) {
	t.eventMu.Lock()
	t.events[kind]++
	t.eventMu.Unlock()
}

func (t *statsTracker) snapshot() Stats {
	t.connMu.Lock()
	conns := make(map[Namespace]int64, len(t.conns))
	for ns, c := range t.conns {
		conns[ns] = c
	}
	t.connMu.Unlock()

	t.eventMu.Lock()
	events := make(map[string]int64, len(t.events))
	for k, v := range t.events {
		events[k] = v
	}
	t.eventMu.Unlock()

	return Stats{
		Connections: conns,
		EventCounts: events,
		TotalSince:  atomic.LoadInt64(&t.totalBoot),
		UptimeMS:    time.Since(t.bootTime).Milliseconds(),
	}
}
