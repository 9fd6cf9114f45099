package main

import (
	"fmt"
	"strings"

	"github.com/jamesainslie/perimeter/pkg/perimeter/filter"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// addFilterFlags registers the record filter flags on cmd and every subcommand.
func addFilterFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("include", "", "only paths matching these comma-separated globs")
	flags.String("kind", "", "only these kinds: file, directory, other")
	flags.String("owner", "", "only these owning user ids (comma-separated)")
	flags.String("group", "", "only these owning group ids (comma-separated)")
	flags.Bool("world-writable", false, "only world-writable entries")
	flags.Bool("setid", false, "only setuid or setgid entries")
	flags.Bool("unresolved", false, "only entries whose metadata could not be resolved")
	flags.String("newer-than", "", "only entries modified within this duration (e.g. 7d, 2w)")
	flags.String("sort", "path", "sort by: path, owner, group, mode, size, age")
	flags.BoolP("reverse", "r", false, "reverse the sort order")
	flags.IntP("limit", "l", 0, "maximum records to show (0=unlimited)")

	for key, name := range map[string]string{
		"include":        "include",
		"kind":           "kind",
		"owner":          "owner",
		"group":          "group",
		"world_writable": "world-writable",
		"setid":          "setid",
		"unresolved":     "unresolved",
		"newer_than":     "newer-than",
		"sort":           "sort",
		"reverse":        "reverse",
		"limit":          "limit",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(name))
	}
}

// buildFilter creates a filter.Filter from the CLI flags.
func buildFilter() (*filter.Filter, error) {
	opts := []filter.Option{
		filter.WithLimit(max(viper.GetInt("limit"), 0)),
		filter.WithWorldWritable(viper.GetBool("world_writable")),
		filter.WithSetID(viper.GetBool("setid")),
		filter.WithUnresolvedOnly(viper.GetBool("unresolved")),
	}

	if patterns := parseCommaSeparated(viper.GetString("include")); len(patterns) > 0 {
		opts = append(opts, filter.WithInclude(patterns...))
	}

	if s := viper.GetString("kind"); s != "" {
		kinds, err := filter.ParseKinds(s)
		if err != nil {
			return nil, fmt.Errorf("invalid kind %q: %w", s, err)
		}
		opts = append(opts, filter.WithKinds(kinds...))
	}

	if s := viper.GetString("owner"); s != "" {
		ids, err := filter.ParseIDs(s)
		if err != nil {
			return nil, fmt.Errorf("invalid owner %q: %w", s, err)
		}
		opts = append(opts, filter.WithOwners(ids...))
	}

	if s := viper.GetString("group"); s != "" {
		ids, err := filter.ParseIDs(s)
		if err != nil {
			return nil, fmt.Errorf("invalid group %q: %w", s, err)
		}
		opts = append(opts, filter.WithGroups(ids...))
	}

	if s := viper.GetString("newer_than"); s != "" {
		d, err := filter.ParseDuration(s)
		if err != nil {
			return nil, fmt.Errorf("invalid newer-than %q: %w", s, err)
		}
		opts = append(opts, filter.WithNewerThan(d))
	}

	sortBy := viper.GetString("sort")
	if sortBy == "" {
		sortBy = "path"
	}
	field, err := filter.ParseSortField(sortBy)
	if err != nil {
		return nil, fmt.Errorf("invalid sort field %q: %w", sortBy, err)
	}
	opts = append(opts, filter.WithSortBy(field))

	// Paths and ids ascend; size, mode and age show the largest value first.
	descending := field == filter.SortSize || field == filter.SortMode || field == filter.SortAge
	if viper.GetBool("reverse") {
		descending = !descending
	}
	opts = append(opts, filter.WithSortDescending(descending))

	return filter.New(opts...), nil
}

// parseCommaSeparated splits a comma-separated string and trims whitespace.
func parseCommaSeparated(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
