package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dhcgn/grab-receipts-exporter/config"
	"github.com/dhcgn/grab-receipts-exporter/filter"
	"github.com/dhcgn/grab-receipts-exporter/model"
	"github.com/dhcgn/grab-receipts-exporter/receipt"
	"github.com/dhcgn/grab-receipts-exporter/state"
	"github.com/dhcgn/grab-receipts-exporter/stats"
)

type StageFunc func(context.Context) error

// Runner owns the pipeline: a source stage writes raw messages into the
// mailbox channel, the bridge parses them into receipt records, and the
// exporter stage drains the records channel. Stats subscribers hang off a
// separate event bus.
type Runner struct {
	cfg    config.Config
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	messages chan model.Envelope
	records  chan receipt.Record
	events   chan stats.Event

	tracker state.Tracker
	filter  *filter.Filter

	workWG  sync.WaitGroup
	statsWG sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeMailboxOnce sync.Once
	closeRecordsOnce sync.Once
	closeEventsOnce  sync.Once
	since            time.Time
}

func New(cfg config.Config, logger *slog.Logger) (*Runner, error) {
	ctx, cancel := context.WithCancel(context.Background())

	tracker, err := state.NewFileTracker(cfg.StateDir, !cfg.DryRun)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("state tracker: %w", err)
	}

	recordFilter, err := filter.New(filter.Options{
		OnlyTypes:    cfg.OnlyTypes,
		ExcludeTypes: cfg.ExcludeTypes,
		IncludeBody:  cfg.IncludeBody,
		ExcludeBody:  cfg.ExcludeBody,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("record filter: %w", err)
	}

	r := &Runner{
		cfg:      cfg,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		messages: make(chan model.Envelope, 32),
		records:  make(chan receipt.Record, 32),
		events:   make(chan stats.Event, 128),
		tracker:  tracker,
		filter:   recordFilter,
	}

	r.AddStage("bridge", r.bridge)
	return r, nil
}

func (r *Runner) Config() config.Config {
	return r.cfg
}

func (r *Runner) Logger() *slog.Logger {
	return r.logger
}

func (r *Runner) Context() context.Context {
	return r.ctx
}

func (r *Runner) Tracker() state.Tracker {
	return r.tracker
}

func (r *Runner) MailboxWriter() chan<- model.Envelope {
	return r.messages
}

func (r *Runner) CloseMailbox() {
	r.closeMailboxOnce.Do(func() {
		close(r.messages)
	})
}

func (r *Runner) Records() <-chan receipt.Record {
	return r.records
}

func (r *Runner) EmitEvent(evt stats.Event) {
	select {
	case <-r.ctx.Done():
	case r.events <- evt:
	}
}

func (r *Runner) SubscribeStats(name string, fn func(context.Context, <-chan stats.Event) error) {
	r.statsWG.Add(1)
	go func() {
		defer r.statsWG.Done()
		if err := fn(r.ctx, r.events); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stats: %w", name, err))
		}
	}()
}

func (r *Runner) AddStage(name string, fn StageFunc) {
	r.workWG.Add(1)
	go func() {
		defer r.workWG.Done()
		if err := fn(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.fail(fmt.Errorf("%s stage: %w", name, err))
		}
	}()
}

func (r *Runner) Start() error {
	r.since = time.Now()

	r.workWG.Wait()

	if r.currentErr() == nil {
		if flusher, ok := r.tracker.(interface{ Flush() error }); ok {
			if err := flusher.Flush(); err != nil {
				r.fail(fmt.Errorf("persist cursor: %w", err))
			}
		}
	}

	r.closeEvents()
	r.statsWG.Wait()

	r.cancel()

	err := r.currentErr()
	duration := time.Since(r.since)
	if err != nil {
		r.logger.Error("pipeline failed", "duration", duration, "err", err)
		return err
	}

	r.logger.Info("pipeline completed", "duration", duration, "lastUID", r.tracker.LastUID())
	return nil
}

// bridge parses each fetched message into a ledger record. Faults are
// isolated per message: a bad envelope or unparseable body is counted and
// skipped, it never aborts the batch.
func (r *Runner) bridge(ctx context.Context) error {
	defer r.closeRecords()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case envelope, ok := <-r.messages:
			if !ok {
				return nil
			}

			if envelope.Err != nil {
				r.EmitEvent(stats.Event{Stage: stats.StageParse, Type: stats.EventTypeError, Err: envelope.Err})
				if r.logger != nil {
					r.logger.Warn("skipping message", "err", envelope.Err)
				}
				continue
			}

			msg := envelope.Message
			r.EmitEvent(stats.Event{Stage: stats.StageParse, Type: stats.EventTypeFetched, UID: msg.UID})

			if msg.UID <= r.tracker.LastUID() {
				r.EmitEvent(stats.Event{Stage: stats.StageParse, Type: stats.EventTypeSkippedCursor, UID: msg.UID})
				continue
			}

			rec, text := receipt.ParseMessage(msg.UID, msg.Raw)
			r.EmitEvent(stats.Event{Stage: stats.StageParse, Type: stats.EventTypeParsed, UID: msg.UID, ServiceType: string(rec.Type)})

			if !r.filter.Allows(rec.Type, text) {
				r.EmitEvent(stats.Event{Stage: stats.StageParse, Type: stats.EventTypeFiltered, UID: msg.UID, ServiceType: string(rec.Type)})
				continue
			}

			select {
			case <-ctx.Done():
				return ctx.Err()
			case r.records <- rec:
			}
		}
	}
}

func (r *Runner) closeRecords() {
	r.closeRecordsOnce.Do(func() {
		close(r.records)
	})
}

func (r *Runner) closeEvents() {
	r.closeEventsOnce.Do(func() {
		close(r.events)
	})
}

func (r *Runner) currentErr() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

func (r *Runner) fail(err error) {
	if err == nil {
		return
	}
	r.errMu.Lock()
	if r.err == nil {
		r.err = err
		r.cancel()
	}
	r.errMu.Unlock()
}
