package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/elonfeng/realitycheck/internal/config"
)

var (
	cfgFile string
	verbose bool

	appCfg *config.Config
	logger = zap.NewNop()
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	cancel()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "realitycheck",
		Short:         "Check whether an idea already exists before you build it",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// A missing .env is normal.
			_ = godotenv.Load()

			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appCfg = cfg

			logger, err = buildLogger(cfg.Log, verbose)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml)")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "human-readable debug logging")

	root.AddCommand(checkCmd())
	root.AddCommand(keywordsCmd())
	root.AddCommand(actionCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(purgeCmd())

	return root
}

func checkCmd() *cobra.Command {
	var opts checkOptions

	cmd := &cobra.Command{
		Use:   "check [idea...]",
		Short: "Score an idea against GitHub, Hacker News and package registries",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.args = args
			return runCheck(cmd.Context(), appCfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.depth, "depth", "", "quick or deep (default: from config)")
	cmd.Flags().IntVar(&opts.threshold, "threshold", -1, "alert when the signal exceeds this (default: from config)")
	cmd.Flags().StringVar(&opts.ideaFile, "idea-file", "", "read the idea from a file")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "output the report as JSON")
	return cmd
}

func keywordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keywords [idea...]",
		Short: "Print the search keywords extracted from an idea",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKeywords(args)
		},
	}
}

func actionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "action",
		Short: "Run as a GitHub Action step (reads INPUT_* variables)",
		// Replaces the root hook: the working directory is the user's
		// repository, so neither .env nor ./config.yaml is read from it.
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			appCfg, logger = loadActionConfig(os.Stdout, os.Getenv)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if code := runAction(cmd.Context(), appCfg, os.Stdout, os.Getenv); code != 0 {
				_ = logger.Sync()
				os.Exit(code)
			}
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), appCfg, port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "server port (default: from config)")
	return cmd
}

func purgeCmd() *cobra.Command {
	var olderThan string

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete cached source responses from the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPurge(cmd.Context(), appCfg, olderThan)
		},
	}

	cmd.Flags().StringVar(&olderThan, "older-than", "", "age cutoff, e.g. 24h (default: cache TTL)")
	return cmd
}
