package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/ylchen07/chefkit/internal/azure"
	"github.com/ylchen07/chefkit/internal/filesecret"
	"github.com/ylchen07/chefkit/internal/hashicorp"
	"github.com/ylchen07/chefkit/internal/provider"
)

var (
	configPath   string
	instanceName string
	formatType   string
	verbose      bool
	showMetrics  bool
)

func init() {
	// Register secret reference schemes
	provider.Register(filesecret.FileScheme, filesecret.NewFileProvider)
	provider.Register(filesecret.EnvScheme, filesecret.NewEnvProvider)
	provider.Register(hashicorp.Scheme, hashicorp.NewProvider)
	provider.Register(azure.Scheme, azure.NewProvider)
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "chefkit",
		Short:         "Browse and edit a Chef server organization",
		Long:          `chefkit lists, searches and edits Chef server objects, and reads and writes encrypted data bag items.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&instanceName, "instance", "i", "", "Instance name (optional, uses default if not specified)")
	rootCmd.PersistentFlags().StringVarP(&formatType, "format", "f", "", "Output format (plain, json, yaml)")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log requests and skipped pages to stderr")
	rootCmd.PersistentFlags().BoolVar(&showMetrics, "metrics", false, "Print request metrics to stderr on exit")

	// Add commands
	rootCmd.AddCommand(listInstancesCmd())
	rootCmd.AddCommand(listIndexesCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(itemCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintln(os.Stderr, "hint:", hint)
		}
		stop()
		os.Exit(1)
	}
}
