package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dhcgn/grab-receipts-exporter/cmd"
	"github.com/dhcgn/grab-receipts-exporter/config"
	"github.com/dhcgn/grab-receipts-exporter/imap"
	"github.com/dhcgn/grab-receipts-exporter/ledger"
	"github.com/dhcgn/grab-receipts-exporter/mbox"
	"github.com/dhcgn/grab-receipts-exporter/progress"
	"github.com/dhcgn/grab-receipts-exporter/runner"
	"github.com/dhcgn/grab-receipts-exporter/stats"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "grab-receipts-exporter",
		Short: "Export Grab e-receipts from a mail folder into a CSV ledger",
		RunE: func(cobraCmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cobraCmd)
			if err != nil {
				return err
			}

			logger, cleanup, err := setupLogger(cfg)
			if err != nil {
				return err
			}
			defer func() {
				_ = cleanup()
			}()

			slog.SetDefault(logger)
			logger.Info("starting grab-receipts-exporter",
				"mailbox", cfg.Mailbox, "mbox", cfg.MboxPath, "csv", cfg.CSVPath, "dryRun", cfg.DryRun)

			return run(cfg, logger)
		},
	}

	if err := config.RegisterFlags(rootCmd); err != nil {
		fmt.Fprintf(os.Stderr, "failed to register CLI flags: %v\n", err)
		os.Exit(1)
	}

	rootCmd.AddCommand(cmd.NewScanCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	r, err := runner.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("runner.New: %w", err)
	}

	if cfg.MboxPath != "" {
		total, err := mbox.CountMessages(cfg.MboxPath)
		if err != nil {
			return fmt.Errorf("mbox.CountMessages: %w", err)
		}
		bar := progress.New(total, int(r.Tracker().LastUID()), cfg.LogLevel)
		progress.NewReporter(r, bar, logger)

		if _, err := mbox.NewProducer(mbox.Options{Path: cfg.MboxPath}, r, logger); err != nil {
			return fmt.Errorf("mbox.NewProducer: %w", err)
		}
	} else {
		stats.NewReporter(r, logger)

		fetcherOpts := imap.Options{
			Host:               cfg.IMAPHost,
			Port:               cfg.IMAPPort,
			Username:           cfg.IMAPUser,
			Password:           cfg.IMAPPass,
			UseTLS:             cfg.UseTLS,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
			Mailbox:            cfg.Mailbox,
			SubjectFilter:      cfg.SubjectFilter,
		}
		if _, err := imap.NewFetcher(fetcherOpts, r, logger); err != nil {
			return fmt.Errorf("imap.NewFetcher: %w", err)
		}
	}

	exporterOpts := ledger.Options{
		Path:   cfg.CSVPath,
		DryRun: cfg.DryRun,
	}
	if _, err := ledger.NewExporter(exporterOpts, r, logger); err != nil {
		return fmt.Errorf("ledger.NewExporter: %w", err)
	}

	return r.Start()
}

func setupLogger(cfg config.Config) (*slog.Logger, func() error, error) {
	level := new(slog.LevelVar)
	level.Set(slog.LevelInfo)

	switch cfg.LogLevel {
	case "debug":
		level.Set(slog.LevelDebug)
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	}

	opts := &slog.HandlerOptions{Level: level}
	cleanup := func() error { return nil }

	if cfg.LogDir != "" {
		if err := os.MkdirAll(cfg.LogDir, 0o755); err != nil {
			return nil, cleanup, err
		}

		logFilePath := filepath.Join(cfg.LogDir, fmt.Sprintf("grab-receipts-exporter-%s.log", time.Now().Format("20060102T150405")))
		file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, cleanup, err
		}

		handler := slog.NewTextHandler(io.MultiWriter(os.Stdout, file), opts)
		cleanup = func() error {
			return file.Close()
		}
		return slog.New(handler), cleanup, nil
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	return slog.New(handler), cleanup, nil
}
