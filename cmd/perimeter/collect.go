package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jamesainslie/perimeter/cmd/perimeter/tui"
	"github.com/jamesainslie/perimeter/pkg/perimeter/collector"
	"github.com/jamesainslie/perimeter/pkg/perimeter/config"
	"github.com/jamesainslie/perimeter/pkg/perimeter/filter"
	"github.com/jamesainslie/perimeter/pkg/perimeter/logging"
	"github.com/jamesainslie/perimeter/pkg/perimeter/metadata"
	"github.com/jamesainslie/perimeter/pkg/perimeter/output"
	"github.com/jamesainslie/perimeter/pkg/perimeter/store"
	"github.com/jamesainslie/perimeter/pkg/perimeter/tuner"
	"github.com/jamesainslie/perimeter/pkg/perimeter/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// collectRequest describes one collection invocation.
type collectRequest struct {
	Root   string
	Format string
	Filter *filter.Filter
	Save   bool
}

// runCollect is the root command handler.
func runCollect(cmd *cobra.Command, args []string) error {
	root := cfg.Root
	if len(args) > 0 {
		root = args[0]
	}

	absRoot, err := resolveRoot(root)
	if err != nil {
		return err
	}

	f, err := buildFilter()
	if err != nil {
		return fmt.Errorf("failed to build filter: %w", err)
	}

	format, err := outputFormat()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req := collectRequest{
		Root:   absRoot,
		Format: format,
		Filter: f,
		Save:   cfg.Store.Enabled && !viper.GetBool("no_store"),
	}

	if viper.GetBool("interactive") {
		return runInteractive(ctx, cfg, req)
	}
	return runCollection(ctx, cmd.OutOrStdout(), cfg, req)
}

// runCollection walks req.Root, optionally stores the run and writes the
// filtered records to w. Cancelling ctx prints the partial result.
func runCollection(ctx context.Context, w io.Writer, c *config.Config, req collectRequest) error {
	resolver, err := newResolver(c)
	if err != nil {
		return err
	}

	pass := newCollectionPass(c, req, resolver)

	printInfo("Collecting %s...", req.Root)

	result, err := collector.Collect(ctx, pass.opts)
	interrupted := false
	if err != nil {
		if result == nil || !errors.Is(err, context.Canceled) {
			return fmt.Errorf("collection failed: %w", err)
		}
		interrupted = true
		printInfo("Interrupted, showing partial results")
	}

	out := output.NewResult(req.Root, result)
	out.PermissionFormat = resolver.Format().String()
	out.Interrupted = interrupted
	out.RunID, out.Warnings = pass.finish(result, interrupted)

	if req.Filter != nil {
		out.Records = req.Filter.Apply(result.Records)
	}

	return output.Write(w, req.Format, out, output.WithTemplate(viper.GetString("template")))
}

// runInteractive runs the same pass inside the terminal browser.
func runInteractive(ctx context.Context, c *config.Config, req collectRequest) error {
	resolver, err := newResolver(c)
	if err != nil {
		return err
	}

	pass := newCollectionPass(c, req, resolver)
	return tui.Run(ctx, tui.Options{
		Collector: pass.opts,
		Filter:    req.Filter,
		Finish:    pass.finish,
		Logs:      logging.GetBuffer(),
	})
}

// collectionPass holds what one collection needs before and after the walk.
type collectionPass struct {
	config       *config.Config
	req          collectRequest
	opts         collector.Options
	format       string
	started      time.Time
	failedBefore int64
}

func newCollectionPass(c *config.Config, req collectRequest, resolver *metadata.Resolver) *collectionPass {
	tuned := tunedConfig(c.Workers)

	return &collectionPass{
		config: c,
		req:    req,
		opts: collector.Options{
			Root:           req.Root,
			Exclude:        c.Exclude,
			Workers:        tuned.Workers,
			RecordCapacity: tuned.RecordCapacity,
			MaxDepth:       c.MaxDepth,
			IncludeOther:   c.IncludeOther,
			Resolver:       resolver,
		},
		format:       resolver.Format().String(),
		started:      time.Now(),
		failedBefore: logging.Get("metadata").Warnings(),
	}
}

// finish stores a completed run and returns its id with the warnings to show.
func (p *collectionPass) finish(result *types.CollectResult, interrupted bool) (string, []string) {
	failed := logging.Get("metadata").Warnings() - p.failedBefore
	warnings := collectionWarnings(result, failed, logPath(p.config))

	if !p.req.Save || interrupted {
		return "", warnings
	}

	id, err := saveRun(p.config, p.req.Root, p.format, p.started, result)
	if err != nil {
		return "", append(warnings, fmt.Sprintf("run not stored: %v", err))
	}
	return id, warnings
}

func collectionWarnings(result *types.CollectResult, failedQueries int64, logFile string) []string {
	var warnings []string
	if failedQueries > 0 {
		warnings = append(warnings, fmt.Sprintf("%d metadata queries failed, see %s", failedQueries, logFile))
	}
	if n := len(result.Errors); n > 0 {
		warnings = append(warnings, fmt.Sprintf("%d paths could not be read during the walk", n))
	}
	return warnings
}

// saveRun stores the run and prunes old runs beyond the retention limit.
func saveRun(c *config.Config, root, format string, started time.Time, result *types.CollectResult) (string, error) {
	s, err := store.Open(c.Store.Path)
	if err != nil {
		return "", err
	}
	defer s.Close()

	run := store.NewRun(root, format, started, result)
	if err := s.SaveRun(run, result.Records); err != nil {
		return "", err
	}

	if pruned, err := s.Prune(c.Store.Retain); err != nil {
		printVerbose("Failed to prune runs: %v", err)
	} else if pruned > 0 {
		printVerbose("Pruned %d old runs", pruned)
	}

	return run.ID, nil
}

// tunedConfig detects system resources and applies the worker override.
func tunedConfig(workers int) tuner.OptimalConfig {
	resources, err := tuner.Detect()
	if err != nil {
		printVerbose("Failed to detect system resources, using defaults: %v", err)
		resources = tuner.SystemResources{
			CPUCores:     4,
			TotalRAM:     8 * types.GiB,
			AvailableRAM: 4 * types.GiB,
		}
	}

	tuned := tuner.CalculateWithOverrides(resources, workers)

	printVerbose("System: %d CPUs, %s RAM, %s available",
		resources.CPUCores,
		types.FormatSize(resources.TotalRAM),
		types.FormatSize(resources.AvailableRAM))
	printVerbose("Config: %d workers, record capacity %d", tuned.Workers, tuned.RecordCapacity)

	return tuned
}

// resolveRoot expands and validates a collection root.
func resolveRoot(path string) (string, error) {
	expanded, err := config.ExpandPath(path)
	if err != nil {
		return "", fmt.Errorf("failed to expand path: %w", err)
	}

	absPath, err := filepath.Abs(expanded)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("path does not exist: %s", absPath)
		}
		return "", fmt.Errorf("cannot access path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", absPath)
	}

	return absPath, nil
}

// outputFormat returns the requested output format after checking it exists.
func outputFormat() (string, error) {
	format := viper.GetString("output")
	if format == "" {
		format = "pretty"
	}
	if _, err := output.Get(format); err != nil {
		return "", fmt.Errorf("unknown output format %q: available formats are %v", format, output.Available())
	}
	return format, nil
}
