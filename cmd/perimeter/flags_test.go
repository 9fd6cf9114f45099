package main

import (
	"reflect"
	"testing"
	"time"

	"github.com/jamesainslie/perimeter/pkg/perimeter/filter"
	"github.com/jamesainslie/perimeter/pkg/perimeter/types"
	"github.com/spf13/viper"
)

func TestBuildFilter(t *testing.T) {
	t.Cleanup(viper.Reset)

	tests := []struct {
		name  string
		setup map[string]interface{}
		check func(t *testing.T, f *filter.Filter)
	}{
		{
			name:  "defaults sort by path ascending",
			setup: nil,
			check: func(t *testing.T, f *filter.Filter) {
				if f.SortBy != filter.SortPath || f.SortDescending {
					t.Errorf("sort = %v desc=%v, want path ascending", f.SortBy, f.SortDescending)
				}
				if f.Limit != 0 || f.WorldWritable || f.SetID || f.UnresolvedOnly {
					t.Errorf("unexpected non-default filter: %+v", f)
				}
			},
		},
		{
			name:  "mode sorts descending",
			setup: map[string]interface{}{"sort": "mode"},
			check: func(t *testing.T, f *filter.Filter) {
				if f.SortBy != filter.SortMode || !f.SortDescending {
					t.Errorf("sort = %v desc=%v, want mode descending", f.SortBy, f.SortDescending)
				}
			},
		},
		{
			name:  "reverse flips owner",
			setup: map[string]interface{}{"sort": "owner", "reverse": true},
			check: func(t *testing.T, f *filter.Filter) {
				if f.SortBy != filter.SortOwner || !f.SortDescending {
					t.Errorf("sort = %v desc=%v, want owner descending", f.SortBy, f.SortDescending)
				}
			},
		},
		{
			name: "audit flags",
			setup: map[string]interface{}{
				"world_writable": true,
				"setid":          true,
				"unresolved":     true,
				"limit":          10,
			},
			check: func(t *testing.T, f *filter.Filter) {
				if !f.WorldWritable || !f.SetID || !f.UnresolvedOnly || f.Limit != 10 {
					t.Errorf("audit flags not applied: %+v", f)
				}
			},
		},
		{
			name:  "negative limit is unlimited",
			setup: map[string]interface{}{"limit": -5},
			check: func(t *testing.T, f *filter.Filter) {
				if f.Limit != 0 {
					t.Errorf("Limit = %d, want 0", f.Limit)
				}
			},
		},
		{
			name: "lists",
			setup: map[string]interface{}{
				"include":    "/etc/**, *.conf",
				"kind":       "file,dir",
				"owner":      "0,1000",
				"group":      "42",
				"newer_than": "2d",
			},
			check: func(t *testing.T, f *filter.Filter) {
				if !reflect.DeepEqual(f.Include, []string{"/etc/**", "*.conf"}) {
					t.Errorf("Include = %v", f.Include)
				}
				if !reflect.DeepEqual(f.Kinds, []types.Kind{types.KindFile, types.KindDirectory}) {
					t.Errorf("Kinds = %v", f.Kinds)
				}
				if !reflect.DeepEqual(f.Owners, []int64{0, 1000}) {
					t.Errorf("Owners = %v", f.Owners)
				}
				if !reflect.DeepEqual(f.Groups, []int64{42}) {
					t.Errorf("Groups = %v", f.Groups)
				}
				if f.NewerThan != 48*time.Hour {
					t.Errorf("NewerThan = %v, want 48h", f.NewerThan)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			for k, v := range tt.setup {
				viper.Set(k, v)
			}

			f, err := buildFilter()
			if err != nil {
				t.Fatalf("buildFilter() error = %v", err)
			}
			tt.check(t, f)
		})
	}
}

func TestBuildFilterErrors(t *testing.T) {
	t.Cleanup(viper.Reset)

	tests := []struct {
		key   string
		value string
	}{
		{"kind", "socket"},
		{"owner", "root"},
		{"group", "-1"},
		{"newer_than", "soon"},
		{"sort", "color"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			viper.Reset()
			viper.Set(tt.key, tt.value)
			if _, err := buildFilter(); err == nil {
				t.Errorf("buildFilter() with %s=%q succeeded, want error", tt.key, tt.value)
			}
		})
	}
}

func TestParseCommaSeparated(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{" a , b ,, c ", []string{"a", "b", "c"}},
		{",", []string{}},
	}

	for _, tt := range tests {
		got := parseCommaSeparated(tt.input)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parseCommaSeparated(%q) = %#v, want %#v", tt.input, got, tt.want)
		}
	}
}
