package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/memento/cmd/inventory"
	"github.com/ValentinKolb/memento/cmd/item"
	"github.com/ValentinKolb/memento/cmd/lock"
	"github.com/ValentinKolb/memento/cmd/media"
	"github.com/ValentinKolb/memento/cmd/util"
	"github.com/ValentinKolb/memento/lib/metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	Version = "1.0.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "memento",
		Short: "shared inventory vault",
		Long: fmt.Sprintf(`memento (v%s)

A multi-client inventory vault on a shared key-value medium (memory, badger or redis).
Writes are arbitrated by an advisory lock and merged per item, so clients editing
different items never lose each other's changes.

Every flag can also be set as an environment variable MEMENTO_<FLAG>
(e.g. MEMENTO_REDIS_ADDR=localhost:6379), or in a .env file.`, Version),
		SilenceUsage: true,
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of memento",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("memento v%s\n", Version)
		},
	}
)

func init() {
	// Add Commands
	RootCmd.AddCommand(inventory.InventoryCommands)
	RootCmd.AddCommand(item.ItemCommands)
	RootCmd.AddCommand(media.MediaCommands)
	RootCmd.AddCommand(lock.LockCommands)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "log-level"
	RootCmd.PersistentFlags().String(key, "warn", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))
	key = "metrics"
	RootCmd.PersistentFlags().Bool(key, false, util.WrapString("Print the collected metrics in Prometheus text format to stderr on exit"))

	cobra.OnFinalize(util.FinalizeVault, printMetrics)
}

// printMetrics dumps the metrics if requested
func printMetrics() {
	if viper.GetBool("metrics") {
		metrics.WritePrometheus(os.Stderr)
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
