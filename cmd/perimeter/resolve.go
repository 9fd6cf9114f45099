package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jamesainslie/perimeter/pkg/perimeter/collector"
	"github.com/jamesainslie/perimeter/pkg/perimeter/metadata"
	"github.com/jamesainslie/perimeter/pkg/perimeter/output"
	"github.com/jamesainslie/perimeter/pkg/perimeter/types"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <path>...",
	Short: "Resolve ownership and permissions of individual paths",
	Long: `Resolve queries the owner, group and permissions of each path without
walking a tree. The kind of each path is taken from lstat unless --as is given;
paths that cannot be stat'ed are queried as files and reported unresolved.

Examples:
  perimeter resolve /etc/passwd /etc/shadow
  perimeter resolve --as directory /var/empty
  perimeter resolve -p octal -o json /usr/bin/passwd`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().String("as", "", "treat every path as this kind: file, directory or other")
	rootCmd.AddCommand(resolveCmd)
}

func runResolve(cmd *cobra.Command, args []string) error {
	resolver, err := newResolver(cfg)
	if err != nil {
		return err
	}

	format, err := outputFormat()
	if err != nil {
		return err
	}

	as, _ := cmd.Flags().GetString("as")
	records, err := resolvePaths(resolver, args, as)
	if err != nil {
		return err
	}

	out := &output.Result{
		Records:          records,
		Stats:            tally(records),
		Source:           "resolve",
		PermissionFormat: resolver.Format().String(),
		TotalRecords:     len(records),
	}
	return output.Write(cmd.OutOrStdout(), format, out, output.WithTemplate(viper.GetString("template")))
}

// resolvePaths builds one record per path. A non-empty as forces the kind.
func resolvePaths(r *metadata.Resolver, paths []string, as string) ([]types.Record, error) {
	var forced *types.Kind
	if as != "" {
		kind, err := types.ParseKind(as)
		if err != nil {
			return nil, fmt.Errorf("invalid --as: %w", err)
		}
		forced = &kind
	}

	records := make([]types.Record, 0, len(paths))
	for _, path := range paths {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
		}

		var info fs.FileInfo
		kind := types.KindFile
		if fi, err := os.Lstat(absPath); err == nil {
			info = fi
			kind = types.ClassifyMode(fi.Mode())
		}
		if forced != nil {
			kind = *forced
		}

		records = append(records, collector.BuildRecord(r, absPath, kind, info))
	}
	return records, nil
}

// tally counts records by kind. Other records are not counted as unresolved.
func tally(records []types.Record) output.Stats {
	var s output.Stats
	for i := range records {
		switch records[i].Kind {
		case types.KindDirectory:
			s.Dirs++
		case types.KindFile:
			s.Files++
		default:
			s.Others++
			continue
		}
		if !records[i].Resolved() {
			s.Unresolved++
		}
	}
	return s
}
