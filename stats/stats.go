package stats

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

type Stage string

const (
	StageFetch  Stage = "fetch"
	StageParse  Stage = "parse"
	StageExport Stage = "export"
)

type EventType string

const (
	EventTypeFetched       EventType = "fetched"
	EventTypeParsed        EventType = "parsed"
	EventTypeSkippedCursor EventType = "skipped_cursor"
	EventTypeFiltered      EventType = "filtered"
	EventTypeExported      EventType = "exported"
	EventTypeDryRunExport  EventType = "dry_run_exported"
	EventTypeError         EventType = "error"
)

type Event struct {
	Stage       Stage
	Type        EventType
	UID         uint32
	ServiceType string
	Err         error
	Detail      string
}

type Summary struct {
	Fetched       int
	Parsed        int
	SkippedCursor int
	Filtered      int
	Exported      int
	DryRunExports int
	Errors        int
	ByType        map[string]int
	LastError     error
}

func (s Summary) LogAttrs() []any {
	attrs := []any{
		"fetched", s.Fetched,
		"parsed", s.Parsed,
		"skippedCursor", s.SkippedCursor,
		"filtered", s.Filtered,
		"exported", s.Exported,
		"dryRunExports", s.DryRunExports,
		"errors", s.Errors,
	}
	for _, serviceType := range sortedKeys(s.ByType) {
		attrs = append(attrs, "type."+serviceType, s.ByType[serviceType])
	}
	if s.LastError != nil {
		attrs = append(attrs, "lastError", s.LastError.Error())
	}
	return attrs
}

type Collector struct {
	mu      sync.Mutex
	summary Summary
}

func NewCollector() *Collector {
	return &Collector{summary: Summary{ByType: make(map[string]int)}}
}

func (c *Collector) Run(ctx context.Context, events <-chan Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			c.apply(evt)
		}
	}
}

func (c *Collector) Snapshot() Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	summary := c.summary
	summary.ByType = make(map[string]int, len(c.summary.ByType))
	for k, v := range c.summary.ByType {
		summary.ByType[k] = v
	}
	return summary
}

func (c *Collector) apply(evt Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch evt.Type {
	case EventTypeFetched:
		c.summary.Fetched++
	case EventTypeParsed:
		c.summary.Parsed++
		if evt.ServiceType != "" {
			c.summary.ByType[evt.ServiceType]++
		}
	case EventTypeSkippedCursor:
		c.summary.SkippedCursor++
	case EventTypeFiltered:
		c.summary.Filtered++
	case EventTypeExported:
		c.summary.Exported++
	case EventTypeDryRunExport:
		c.summary.DryRunExports++
	case EventTypeError:
		c.summary.Errors++
		if evt.Err != nil {
			c.summary.LastError = evt.Err
		}
	}
}

type EventStream interface {
	SubscribeStats(name string, fn func(context.Context, <-chan Event) error)
}

type Reporter struct {
	collector *Collector
	logger    *slog.Logger
	started   time.Time
}

func NewReporter(stream EventStream, logger *slog.Logger) *Reporter {
	reporter := &Reporter{
		collector: NewCollector(),
		logger:    logger,
		started:   time.Now(),
	}
	stream.SubscribeStats("stats-reporter", reporter.consume)
	return reporter
}

func (r *Reporter) consume(ctx context.Context, events <-chan Event) error {
	r.collector.Run(ctx, events)
	summary := r.collector.Snapshot()
	attrs := append(summary.LogAttrs(), "duration", time.Since(r.started))
	if ctx.Err() != nil {
		if r.logger != nil {
			r.logger.Debug("stats collection stopped", append(attrs, "err", ctx.Err())...)
		}
		return ctx.Err()
	}
	if r.logger != nil {
		r.logger.Info("stats summary", attrs...)
	}
	return nil
}

func (r *Reporter) Summary() Summary {
	return r.collector.Snapshot()
}

// PrettyPrintTop prints the top N most frequent items in a map.
func PrettyPrintTop(m map[string]int, limit int) {
	type pair struct {
		Key   string
		Value int
	}

	var pairs []pair
	for k, v := range m {
		pairs = append(pairs, pair{k, v})
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Value > pairs[j].Value
	})

	for i := 0; i < limit && i < len(pairs); i++ {
		fmt.Printf("%d. %s (%d)\n", i+1, pairs[i].Key, pairs[i].Value)
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
