package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jamesainslie/perimeter/pkg/perimeter/filter"
	"github.com/jamesainslie/perimeter/pkg/perimeter/monitor"
	"github.com/jamesainslie/perimeter/pkg/perimeter/output"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Re-resolve entries as they change",
	Long: `Watch monitors a directory tree and prints a freshly resolved record
for every created, modified or re-permissioned entry. Removed entries are
printed with an unresolved record. Filter flags apply to each change.

With -o json or -o jsonl every change is written as one JSON object per line.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	root := cfg.Root
	if len(args) > 0 {
		root = args[0]
	}

	absRoot, err := resolveRoot(root)
	if err != nil {
		return err
	}

	resolver, err := newResolver(cfg)
	if err != nil {
		return err
	}

	f, err := buildFilter()
	if err != nil {
		return fmt.Errorf("failed to build filter: %w", err)
	}

	m, err := monitor.New(resolver, monitor.WithIncludeOther(cfg.IncludeOther))
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}
	defer m.Close()

	if err := m.Watch(absRoot); err != nil {
		return fmt.Errorf("failed to watch %s: %w", absRoot, err)
	}

	printInfo("Watching %d directories under %s (Ctrl+C to stop)", len(m.Watched()), absRoot)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := cmd.OutOrStdout()
	asJSON := isJSONFormat(viper.GetString("output"))
	m.Run(ctx, func(ch monitor.Change) {
		if err := writeChange(w, f, ch, asJSON); err != nil {
			printVerbose("Failed to write change: %v", err)
		}
	})

	return nil
}

func isJSONFormat(format string) bool {
	return format == "json" || format == "jsonl"
}

// writeChange prints ch if its record passes f.
func writeChange(w io.Writer, f *filter.Filter, ch monitor.Change, asJSON bool) error {
	if f != nil && !f.Match(ch.Record) {
		return nil
	}

	if asJSON {
		return json.NewEncoder(w).Encode(ch)
	}

	rec := ch.Record
	_, err := fmt.Fprintf(w, "%s  %-11s  %-9s  %s:%s  %s\n",
		ch.Time.Format("15:04:05"),
		ch.Op,
		output.DisplayPerms(rec.Permissions),
		output.DisplayID(rec.UserID),
		output.DisplayID(rec.GroupID),
		ch.Path,
	)
	return err
}
