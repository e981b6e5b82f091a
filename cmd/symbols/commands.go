// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/symbridge/services/symbols/convert"
	"github.com/AleutianAI/symbridge/services/symbols/fixture"
	"github.com/AleutianAI/symbridge/services/symbols/index"
	"github.com/AleutianAI/symbridge/services/symbols/merged"
	"github.com/AleutianAI/symbridge/services/symbols/snapshot"
)

// convertFixture loads a fixture file and converts its module.
func (a *app) convertFixture(ctx context.Context, file string) (*merged.Module, error) {
	mod, err := fixture.Load(file)
	if err != nil {
		return nil, err
	}
	e := convert.NewEngine(a.cfg.EngineOptions(a.logger)...)
	m, err := e.ConvertModule(ctx, mod)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("module converted",
		slog.String("engine_id", e.ID()),
		slog.String("module", m.Name()),
		slog.Int("cached", e.Cache().Len()))
	return m, nil
}

// =============================================================================
// convert
// =============================================================================

func newConvertCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "convert <fixture.yaml>",
		Short: "Convert a fixture and print the merged symbol tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := a.convertFixture(ctx, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				g, err := snapshot.FromMerged(ctx, m)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(g)
			}
			return printTree(cmd.OutOrStdout(), m, 0)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the flattened graph as JSON")
	return cmd
}

func printTree(w io.Writer, sym merged.Symbol, depth int) error {
	marker := ""
	if !sym.OneToOne() {
		marker = " *"
	}
	if _, err := fmt.Fprintf(w, "%s%s %s%s\n", strings.Repeat("  ", depth), sym.Kind(), sym.Name(), marker); err != nil {
		return err
	}
	children, err := merged.Children(sym)
	if err != nil {
		return err
	}
	for _, c := range children {
		if err := printTree(w, c, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// lookup
// =============================================================================

func newLookupCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "lookup <fixture.yaml> <query>",
		Short: "Search a converted fixture by symbol name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := a.convertFixture(ctx, args[0])
			if err != nil {
				return err
			}
			idx := index.New(a.cfg.IndexOptions()...)
			if _, err := idx.Build(ctx, m); err != nil {
				return err
			}
			results, err := idx.Search(ctx, args[1], limit)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no symbols match %q\n", args[1])
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tPACKAGE\tPATH\tKEY")
			for _, r := range results {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Symbol.Kind(), r.Package, r.Path, r.Symbol.Key())
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results (0 for all)")
	return cmd
}

// =============================================================================
// snapshot
// =============================================================================

func newSnapshotCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Save, list, compare and delete graph snapshots",
	}
	cmd.PersistentFlags().StringVar(&dir, "dir", "", "snapshot store directory (overrides snapshot.dir)")

	// withStore opens the store for the duration of fn.
	withStore := func(fn func(m *snapshot.Manager) error) error {
		d, err := a.snapshotDir(dir)
		if err != nil {
			return err
		}
		m, db, err := snapshot.Open(d, a.logger)
		if err != nil {
			return err
		}
		defer db.Close()
		return fn(m)
	}

	var label string
	save := &cobra.Command{
		Use:   "save <fixture.yaml>",
		Short: "Convert a fixture and save its graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := a.convertFixture(ctx, args[0])
			if err != nil {
				return err
			}
			g, err := snapshot.FromMerged(ctx, m)
			if err != nil {
				return err
			}
			return withStore(func(mgr *snapshot.Manager) error {
				meta, err := mgr.Save(ctx, g, label)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s nodes=%d edges=%d hash=%.16s\n",
					meta.ID, meta.Module, meta.NodeCount, meta.EdgeCount, meta.GraphHash)
				return nil
			})
		},
	}
	save.Flags().StringVar(&label, "label", "", "human-readable label")

	var module string
	list := &cobra.Command{
		Use:   "list",
		Short: "List saved snapshots, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(func(mgr *snapshot.Manager) error {
				metas, err := mgr.List(cmd.Context(), module, a.cfg.Snapshot.ListLimit)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tMODULE\tLABEL\tCREATED\tNODES\tEDGES")
				for _, meta := range metas {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\n", meta.ID, meta.Module, meta.Label,
						meta.CreatedAt().Format(time.RFC3339), meta.NodeCount, meta.EdgeCount)
				}
				return tw.Flush()
			})
		},
	}
	list.Flags().StringVar(&module, "module", "", "only list snapshots of this module")

	diff := &cobra.Command{
		Use:   "diff <base-id> <target-id>",
		Short: "Compare two snapshots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStore(func(mgr *snapshot.Manager) error {
				base, _, err := mgr.Load(ctx, args[0])
				if err != nil {
					return err
				}
				target, _, err := mgr.Load(ctx, args[1])
				if err != nil {
					return err
				}
				d, err := snapshot.Compare(base, target)
				if err != nil {
					return err
				}
				return printDiff(cmd.OutOrStdout(), d)
			})
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(func(mgr *snapshot.Manager) error {
				return mgr.Delete(cmd.Context(), args[0])
			})
		},
	}

	cmd.AddCommand(save, list, diff, del)
	return cmd
}

func printDiff(w io.Writer, d *snapshot.Diff) error {
	if d.Empty() {
		_, err := fmt.Fprintln(w, "no changes")
		return err
	}
	for _, k := range d.Added {
		fmt.Fprintf(w, "+ %s\n", k)
	}
	for _, k := range d.Removed {
		fmt.Fprintf(w, "- %s\n", k)
	}
	for _, c := range d.Changed {
		detail := ""
		if len(c.Attributes) > 0 {
			detail = " (" + strings.Join(c.Attributes, ", ") + ")"
		}
		fmt.Fprintf(w, "~ %s %s%s\n", c.Key, c.Change, detail)
	}
	_, err := fmt.Fprintf(w, "%d changes, %d edges added, %d edges removed, %d packages affected\n",
		d.Summary.TotalChanges, d.EdgesAdded, d.EdgesRemoved, d.Summary.PackagesAffected)
	return err
}
