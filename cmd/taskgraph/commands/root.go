// Package commands implements the taskgraph CLI, grounded on the
// teacher's cmd/linear-fuse/commands root.go + internal/cmd root.go
// (persistent cobra flags bound through viper, cobra.OnInitialize for
// config loading).
package commands

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jra3/taskgraph/internal/config"
	"github.com/jra3/taskgraph/pkg/taskgraph"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "taskgraph",
	Short: "Reconstruct conversation hierarchies and operate the shared commit log and message store",
	Long: `taskgraph scans per-task conversation archives, reconstructs their
parent/child hierarchy, and operates the shared-state commit log and
inter-machine message store built on top of the same storage root.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default: $XDG_CONFIG_HOME/taskgraph/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug logging")
	rootCmd.PersistentFlags().String("machine-id", "", "this machine's identifier")
	rootCmd.PersistentFlags().String("shared-root", "", "shared state root for the commit log and message store")
	rootCmd.PersistentFlags().StringSlice("storage-root", nil, "storage root(s) containing task folders")

	viper.BindPFlag("machine_id", rootCmd.PersistentFlags().Lookup("machine-id"))
	viper.BindPFlag("shared_root", rootCmd.PersistentFlags().Lookup("shared-root"))
	viper.BindPFlag("storage_roots", rootCmd.PersistentFlags().Lookup("storage-root"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		viper.ReadInConfig()
	}
	viper.SetEnvPrefix("TASKGRAPH")
	viper.AutomaticEnv()
}

// loadConfig resolves the layered configuration and applies any viper
// overrides bound from CLI flags on top of it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("machine_id"); v != "" {
		cfg.MachineID = v
	}
	if v := viper.GetString("shared_root"); v != "" {
		cfg.SharedRoot = v
	}
	if v := viper.GetStringSlice("storage_roots"); len(v) > 0 {
		cfg.StorageRoots = v
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	return cfg, nil
}

func openService() (*taskgraph.Service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return taskgraph.Open(cfg)
}

// stdoutIsTerminal gates whether list/inbox-style commands print a
// header row: piped output (the common scripting case) stays
// machine-parseable tab-separated data with no header.
func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}
