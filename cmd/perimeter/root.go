package main

import (
	"fmt"
	"os"

	"github.com/jamesainslie/perimeter/pkg/perimeter/config"
	"github.com/jamesainslie/perimeter/pkg/perimeter/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string

	// cfg is loaded by initializeLogging before any command runs.
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "perimeter [path]",
		Short: "Inventory ownership and permissions of a directory tree",
		Long: `Perimeter walks a directory tree and records the owning user id, owning
group id and permissions of every file and directory. Entries whose metadata
cannot be read are still recorded, with -1 ids and empty permissions.

Examples:
  perimeter                          # Collect the configured root
  perimeter /etc                     # Collect a specific directory
  perimeter -o json /srv             # JSON output
  perimeter -o template --template '{{range .Records}}{{.Path}}{{"\n"}}{{end}}' /etc
  perimeter -i /var                  # Browse records interactively
  perimeter --world-writable /       # Only world-writable entries
  perimeter resolve /etc/shadow      # Resolve individual paths
  perimeter watch /etc               # Re-resolve entries as they change
  perimeter runs list                # Show stored runs`,
		Args:               cobra.MaximumNArgs(1),
		RunE:               runCollect,
		PersistentPreRunE:  initializeLogging,
		PersistentPostRunE: closeLogging,
		SilenceUsage:       true,
	}
)

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default: ~/.config/perimeter/config.yaml)")
	flags.IntP("workers", "w", 0, "override worker count (0=auto)")
	flags.StringSliceP("exclude", "e", nil, "exclude paths or glob patterns (repeatable)")
	flags.StringP("permission-format", "p", "", "permission rendering: symbolic, octal or flags")
	flags.Bool("include-other", false, "record sockets, devices, pipes and symlinks")
	flags.Int("max-depth", 0, "maximum depth below the root (0=unlimited)")
	flags.StringP("output", "o", "pretty", "output format")
	flags.String("template", "", "text/template for -o template")
	flags.BoolP("quiet", "q", false, "minimal output")
	flags.BoolP("verbose", "v", false, "debug output on stderr")

	_ = viper.BindPFlag("workers", flags.Lookup("workers"))
	_ = viper.BindPFlag("exclude", flags.Lookup("exclude"))
	_ = viper.BindPFlag("permission_format", flags.Lookup("permission-format"))
	_ = viper.BindPFlag("include_other", flags.Lookup("include-other"))
	_ = viper.BindPFlag("max_depth", flags.Lookup("max-depth"))
	_ = viper.BindPFlag("output", flags.Lookup("output"))
	_ = viper.BindPFlag("template", flags.Lookup("template"))
	_ = viper.BindPFlag("quiet", flags.Lookup("quiet"))
	_ = viper.BindPFlag("verbose", flags.Lookup("verbose"))

	addFilterFlags(rootCmd)
	rootCmd.Flags().Bool("no-store", false, "do not persist this run")
	_ = viper.BindPFlag("no_store", rootCmd.Flags().Lookup("no-store"))
	rootCmd.Flags().BoolP("interactive", "i", false, "browse the records in a terminal UI")
	_ = viper.BindPFlag("interactive", rootCmd.Flags().Lookup("interactive"))
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func closeLogging(_ *cobra.Command, _ []string) error {
	return logging.Close()
}

func getVerbose() bool {
	return viper.GetBool("verbose")
}

func getQuiet() bool {
	return viper.GetBool("quiet")
}

// printVerbose prints a message to stderr if verbose mode is enabled.
func printVerbose(format string, args ...interface{}) {
	if getVerbose() && !getQuiet() {
		fmt.Fprintf(os.Stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// printInfo prints a message to stderr unless quiet mode is enabled.
// Stdout is reserved for formatted output.
func printInfo(format string, args ...interface{}) {
	if !getQuiet() {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
