// Package ledger appends assembled receipt records to the CSV file. The
// header row is written exactly once, when the file is new or empty, and the
// cursor only advances for records that were actually written.
package ledger

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dhcgn/grab-receipts-exporter/receipt"
	"github.com/dhcgn/grab-receipts-exporter/runner"
	"github.com/dhcgn/grab-receipts-exporter/state"
	"github.com/dhcgn/grab-receipts-exporter/stats"
)

type Options struct {
	Path   string
	DryRun bool
}

type Exporter struct {
	opts    Options
	runner  *runner.Runner
	tracker state.Tracker
	records <-chan receipt.Record
	logger  *slog.Logger
}

func NewExporter(opts Options, r *runner.Runner, logger *slog.Logger) (*Exporter, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("csv path is empty")
	}
	tracker := r.Tracker()
	if tracker == nil {
		return nil, fmt.Errorf("tracker must not be nil")
	}
	exporter := &Exporter{
		opts:    opts,
		runner:  r,
		tracker: tracker,
		records: r.Records(),
		logger:  logger,
	}
	r.AddStage("ledger", exporter.run)
	return exporter, nil
}

func (e *Exporter) run(ctx context.Context) error {
	var (
		file   *os.File
		writer *csv.Writer
	)
	defer func() {
		if writer != nil {
			writer.Flush()
		}
		if file != nil {
			_ = file.Close()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case rec, ok := <-e.records:
			if !ok {
				if writer != nil {
					writer.Flush()
					if err := writer.Error(); err != nil {
						return fmt.Errorf("flush csv: %w", err)
					}
				}
				return nil
			}

			if e.opts.DryRun {
				e.tracker.Advance(rec.UID)
				e.runner.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeDryRunExport, UID: rec.UID, ServiceType: string(rec.Type)})
				if e.logger != nil {
					e.logger.Info("dry-run export", "uid", rec.UID, "date", rec.Date, "type", rec.Type, "orderID", rec.OrderID, "total", rec.TotalAmount)
				}
				continue
			}

			if writer == nil {
				var err error
				file, writer, err = e.open()
				if err != nil {
					e.runner.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeError, UID: rec.UID, Err: err})
					return err
				}
			}

			if err := writer.Write(rec.Row()); err != nil {
				err = fmt.Errorf("write record uid %d: %w", rec.UID, err)
				e.runner.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeError, UID: rec.UID, Err: err})
				return err
			}
			writer.Flush()
			if err := writer.Error(); err != nil {
				err = fmt.Errorf("write record uid %d: %w", rec.UID, err)
				e.runner.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeError, UID: rec.UID, Err: err})
				return err
			}

			e.tracker.Advance(rec.UID)
			e.runner.EmitEvent(stats.Event{Stage: stats.StageExport, Type: stats.EventTypeExported, UID: rec.UID, ServiceType: string(rec.Type)})
			if e.logger != nil {
				e.logger.Info("exported receipt", "uid", rec.UID, "date", rec.Date, "type", rec.Type, "orderID", rec.OrderID, "total", rec.TotalAmount)
			}
		}
	}
}

// open prepares the CSV file for appending; a new or empty file gets the
// header row first.
func (e *Exporter) open() (*os.File, *csv.Writer, error) {
	if dir := filepath.Dir(e.opts.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("create csv directory: %w", err)
		}
	}

	isNew := true
	if info, err := os.Stat(e.opts.Path); err == nil && info.Size() > 0 {
		isNew = false
	}

	file, err := os.OpenFile(e.opts.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open csv: %w", err)
	}

	writer := csv.NewWriter(file)
	if isNew {
		if err := writer.Write(receipt.CSVHeader()); err != nil {
			_ = file.Close()
			return nil, nil, fmt.Errorf("write csv header: %w", err)
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			_ = file.Close()
			return nil, nil, fmt.Errorf("write csv header: %w", err)
		}
	}

	return file, writer, nil
}
