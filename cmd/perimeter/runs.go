package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jamesainslie/perimeter/pkg/perimeter/output"
	"github.com/jamesainslie/perimeter/pkg/perimeter/store"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect stored collection runs",
	Long: `Every completed collection is stored with its records so it can be
reviewed later. Runs are identified by id; any unique id prefix works.`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the records of a stored run",
	Long:  `Show prints a stored run's records. Filter, sort and output flags apply.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete stored runs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRunsDelete,
}

var runsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest runs",
	Args:  cobra.NoArgs,
	RunE:  runRunsPrune,
}

func init() {
	runsPruneCmd.Flags().Int("keep", 0, "runs to keep (default: store.retain)")

	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsDeleteCmd)
	runsCmd.AddCommand(runsPruneCmd)
	rootCmd.AddCommand(runsCmd)
}

func openStore() (*store.Store, error) {
	s, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", cfg.Store.Path, err)
	}
	return s, nil
}

func runRunsList(cmd *cobra.Command, _ []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	runs, err := s.ListRuns()
	if err != nil {
		return err
	}

	return printRuns(cmd.OutOrStdout(), runs, isJSONFormat(viper.GetString("output")))
}

// printRuns writes runs as a table, or as a JSON array when asJSON is set.
func printRuns(w io.Writer, runs []*store.Run, asJSON bool) error {
	if asJSON {
		if runs == nil {
			runs = []*store.Run{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		_, err := fmt.Fprintln(w, "No stored runs")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tRECORDS\tUNRESOLVED\tELAPSED\tROOT")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(run.ID),
			humanize.Time(run.StartedAt),
			humanize.Comma(run.Records),
			humanize.Comma(run.Unresolved),
			run.Elapsed.Round(time.Millisecond),
			run.Root,
		)
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	format, err := outputFormat()
	if err != nil {
		return err
	}

	f, err := buildFilter()
	if err != nil {
		return fmt.Errorf("failed to build filter: %w", err)
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	run, err := s.Lookup(args[0])
	if err != nil {
		return err
	}

	records, err := s.Records(run.ID)
	if err != nil {
		return err
	}

	out := runResult(run)
	out.Records = f.Apply(records)
	return output.Write(cmd.OutOrStdout(), format, out, output.WithTemplate(viper.GetString("template")))
}

// runResult builds an output.Result header from a stored run.
func runResult(run *store.Run) *output.Result {
	return &output.Result{
		Source:           run.Root,
		RunID:            run.ID,
		PermissionFormat: run.PermissionFormat,
		TotalRecords:     int(run.Records),
		Stats: output.Stats{
			Dirs:       run.Dirs,
			Files:      run.Files,
			Others:     run.Others,
			Unresolved: run.Unresolved,
			Errors:     run.Errors,
			Duration:   run.Elapsed,
		},
	}
}

func runRunsDelete(_ *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	for _, prefix := range args {
		run, err := s.Lookup(prefix)
		if err != nil {
			return err
		}
		if err := s.DeleteRun(run.ID); err != nil {
			return err
		}
		printInfo("Deleted run %s", run.ID)
	}
	return nil
}

func runRunsPrune(cmd *cobra.Command, _ []string) error {
	keep, _ := cmd.Flags().GetInt("keep")
	if keep <= 0 {
		keep = cfg.Store.Retain
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	deleted, err := s.Prune(keep)
	if err != nil {
		return err
	}
	printInfo("Deleted %d runs, kept the newest %d", deleted, keep)
	return nil
}
