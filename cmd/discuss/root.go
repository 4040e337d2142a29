package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	discuss "github.com/eduardoboucas/jekyll-discuss"
	"github.com/spf13/cobra"
)

var (
	verbose    bool
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "discuss",
	Short: "Commit form submissions to a git repository",
	Long: `discuss accepts comments and other form entries for static sites,
validates them against the site's discuss.yml and commits them to the
repository, directly or through a pull/merge request.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Service configuration file (default: nearest "+discuss.ConfigFile+")")
}

// loadPlatform reads the service configuration and wires every component.
func loadPlatform(ctx context.Context) (*discuss.Platform, error) {
	path := configPath
	if path == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		found, err := discuss.FindConfig(cwd)
		switch {
		case err == nil:
			path = found
		case !errors.Is(err, discuss.ErrConfigNotFound):
			return nil, err
		}
	}

	cfg, err := discuss.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return discuss.New(ctx, cfg, discuss.WithLogger(slog.Default()))
}
