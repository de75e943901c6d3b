package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"pagesync/internal/config"
	"pagesync/internal/engine"
	"pagesync/internal/history"
	"pagesync/internal/remote"
	"pagesync/internal/schema"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	rootCmd = &cobra.Command{
		Use:   "pagesync",
		Short: "Reconcile hierarchical remote documents against a declared schema",
	}
	configPath string
	schemaPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the config file")
	rootCmd.PersistentFlags().StringVarP(&schemaPath, "schema", "s", "schema.yaml", "Path to the schema file")

	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(historyCmd)
}

// initEngine builds the engine from config: client, logger, optional ledger.
func initEngine() (*engine.Engine, history.Store, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Remote.APIKey == "" {
		return nil, nil, fmt.Errorf("remote API key not configured (set PAGESYNC_API_TOKEN)")
	}

	logger, err := buildLogger(cfg.Log.Level)
	if err != nil {
		return nil, nil, err
	}

	httpCfg := remote.DefaultHTTPConfig(cfg.Remote.APIKey)
	if cfg.Remote.BaseURL != "" {
		httpCfg.BaseURL = cfg.Remote.BaseURL
	}
	if cfg.Remote.TimeoutSeconds > 0 {
		httpCfg.Timeout = time.Duration(cfg.Remote.TimeoutSeconds) * time.Second
	}
	client := remote.NewHTTPClient(httpCfg, logger)

	engCfg := engine.DefaultConfig()
	if cfg.Discovery.FetchFanout > 0 {
		engCfg.Walker.FetchFanout = cfg.Discovery.FetchFanout
	}
	if cfg.Discovery.MaxPagesPerNode > 0 {
		engCfg.Walker.MaxPagesPerNode = cfg.Discovery.MaxPagesPerNode
	}
	if cfg.Discovery.MaxRetries > 0 {
		engCfg.Walker.Retry.MaxRetries = cfg.Discovery.MaxRetries
	}

	var ledger history.Store
	if cfg.History.Path != "" {
		ledger, err = history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open run ledger: %w", err)
		}
	}

	return engine.New(client, engCfg, ledger, logger), ledger, nil
}

func buildLogger(level string) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("bad log level %q: %w", level, err)
		}
		zapCfg.Level = lvl
	}
	return zapCfg.Build()
}

var planCmd = &cobra.Command{
	Use:   "plan [root query]",
	Short: "Show the mutations a reconcile would apply, without applying them",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, ledger, err := initEngine()
		if err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		if ledger != nil {
			defer ledger.Close()
		}

		s, err := schema.Load(schemaPath)
		if err != nil {
			log.Fatalf("Failed to load schema: %v", err)
		}

		fmt.Printf("🔍 Planning against %q...\n", args[0])
		plan, _, err := eng.Plan(context.Background(), args[0], s)
		if err != nil {
			log.Fatalf("Planning failed: %v", err)
		}

		if plan.Empty() {
			fmt.Println("✅ Document already matches the schema. Nothing to do.")
			return
		}
		for _, group := range plan.Groups {
			fmt.Printf("📌 %s\n", group.Key)
			for _, op := range group.Ops {
				fmt.Printf("  -> %s\n", op)
			}
		}
		fmt.Printf("📊 %d operations across %d sections.\n", plan.Total(), len(plan.Groups))
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply [root query]",
	Short: "Reconcile the document into the schema's desired state",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		eng, ledger, err := initEngine()
		if err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		if ledger != nil {
			defer ledger.Close()
		}

		s, err := schema.Load(schemaPath)
		if err != nil {
			log.Fatalf("Failed to load schema: %v", err)
		}

		fmt.Printf("🚀 Reconciling %q...\n", args[0])
		start := time.Now()
		result := eng.ReconcileDocument(context.Background(), args[0], s)

		for _, w := range result.Warnings {
			fmt.Printf("⚠️  %s\n", w)
		}
		if result.Success {
			fmt.Printf("✅ Applied %d of %d planned mutations in %v.\n",
				result.MutationsApplied, result.PlannedOps, time.Since(start))
			return
		}
		for _, e := range result.Errors {
			fmt.Printf("❌ %s\n", e)
		}
		fmt.Printf("Applied %d of %d before failing. Re-run once the condition clears; reconciliation converges.\n",
			result.MutationsApplied, result.PlannedOps)
		os.Exit(1)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent reconcile runs from the ledger",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		if cfg.History.Path == "" {
			log.Fatal("No run ledger configured (history.path)")
		}

		ledger, err := history.NewSQLiteStore(cfg.History.Path)
		if err != nil {
			log.Fatalf("Failed to open run ledger: %v", err)
		}
		defer ledger.Close()

		runs, err := ledger.RecentRuns(context.Background(), 20)
		if err != nil {
			log.Fatalf("Failed to read runs: %v", err)
		}
		if len(runs) == 0 {
			fmt.Println("No recorded runs.")
			return
		}
		for _, run := range runs {
			status := "✅"
			if run.ErrorText != "" {
				status = "❌"
			}
			fmt.Printf("%s %s  %q  applied %d/%d  %v",
				status, run.StartedAt.Format(time.RFC3339), run.RootQuery,
				run.AppliedOps, run.PlannedOps, run.Duration)
			if run.ErrorText != "" {
				fmt.Printf("  (%s)", run.ErrorText)
			}
			fmt.Println()
		}
	},
}
