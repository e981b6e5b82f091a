// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
// Command symbols converts fixture-described platform trees into merged
// symbol graphs, searches them, and keeps snapshots of them.
//
// Usage:
//
//	symbols convert testdata/sample.yaml
//	symbols convert --json testdata/sample.yaml
//	symbols lookup testdata/sample.yaml connect
//	symbols snapshot save --label before testdata/sample.yaml
//	symbols snapshot list
//	symbols snapshot diff <base-id> <target-id>
//
// Configuration is read from --config (YAML) over the embedded defaults;
// SYMBOLS_LOG_LEVEL, SYMBOLS_LOG_FORMAT and SYMBOLS_SNAPSHOT_DIR override
// both. --trace writes OpenTelemetry spans to stderr.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/AleutianAI/symbridge/services/symbols/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// app holds the state shared by every subcommand once the root command's
// pre-run has loaded it.
type app struct {
	configPath string
	logLevel   string
	trace      bool

	cfg    *config.Config
	logger *slog.Logger
	tp     *sdktrace.TracerProvider
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "symbols",
		Short:        "Merge compiled-class trees with their source metadata",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML configuration file")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override logging.level (debug, info, warn, error)")
	root.PersistentFlags().BoolVar(&a.trace, "trace", false, "export OpenTelemetry spans to stderr")

	root.AddCommand(
		newConvertCmd(a),
		newLookupCmd(a),
		newSnapshotCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Context(), a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg
	a.logger = newLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(a.logger)

	if a.trace {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(cmd.ErrOrStderr()), stdouttrace.WithPrettyPrint())
		if err != nil {
			return fmt.Errorf("creating trace exporter: %w", err)
		}
		a.tp = sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
		otel.SetTracerProvider(a.tp)
	}
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if a.tp == nil {
		return nil
	}
	return a.tp.Shutdown(context.WithoutCancel(ctx))
}

// newLogger picks a text handler for terminals and JSON otherwise, unless
// the configuration names one.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	text := cfg.Logging.Format == "text"
	if cfg.Logging.Format == "auto" {
		if f, ok := w.(*os.File); ok {
			text = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
	}
	if text {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// snapshotDir resolves the snapshot store: the --dir flag, then the
// configuration, then ~/.symbols/snapshots.
func (a *app) snapshotDir(flagDir string) (string, error) {
	if flagDir != "" {
		return flagDir, nil
	}
	if a.cfg.Snapshot.Dir != "" {
		return a.cfg.Snapshot.Dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot resolve home directory: %w", err)
	}
	return filepath.Join(home, ".symbols", "snapshots"), nil
}
