// Command seobot-workflow runs workflow definitions from the command line.
//
// Usage:
//
//	seobot-workflow run --workflow wf.yaml --query "audit my site"
//	seobot-workflow run --config config.yaml --workflow wf.yaml --resume <execution-id>
//	seobot-workflow recover <execution-id>
//	seobot-workflow cleanup
//	seobot-workflow version
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sodown4thecause/seobot-sub008/config"
	"github.com/sodown4thecause/seobot-sub008/internal/cache"
	"github.com/sodown4thecause/seobot-sub008/internal/metrics"
	"github.com/sodown4thecause/seobot-sub008/internal/telemetry"
	"github.com/sodown4thecause/seobot-sub008/persistence"
	"github.com/sodown4thecause/seobot-sub008/workflow"
)

// Build-time injected.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runWorkflow(os.Args[2:])
	case "recover":
		runRecover(os.Args[2:])
	case "cleanup":
		runCleanup(os.Args[2:])
	case "version":
		fmt.Printf("seobot-workflow %s (%s)\n", Version, GitCommit)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`seobot-workflow - workflow orchestration engine

Commands:
  run       Execute a workflow definition
  recover   Inspect a failed execution for resumability
  cleanup   Remove executions past the retention window
  version   Show version information`)
}

// bootstrap loads config, builds the logger, and opens the execution store.
func bootstrap(configPath string) (*config.Config, *zap.Logger, persistence.ExecutionStore, error) {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := cfg.Log.BuildLogger()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build logger: %w", err)
	}

	store, err := persistence.NewExecutionStore(cfg, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open execution store: %w", err)
	}
	return cfg, logger, store, nil
}

func runWorkflow(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	workflowPath := fs.String("workflow", "", "Path to workflow definition (YAML)")
	query := fs.String("query", "", "User query for the run")
	resumeID := fs.String("resume", "", "Execution ID to resume from")
	conversationID := fs.String("conversation", "", "Owning conversation ID")
	userID := fs.String("user", "", "Owning user ID")
	fs.Parse(args)

	if *workflowPath == "" {
		fmt.Fprintln(os.Stderr, "run: --workflow is required")
		os.Exit(1)
	}

	cfg, logger, store, err := bootstrap(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	defer store.Close()

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Fatal("failed to initialize telemetry", zap.Error(err))
	}
	defer providers.Shutdown(context.Background())

	wf, err := loadWorkflow(*workflowPath)
	if err != nil {
		logger.Fatal("failed to load workflow", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []workflow.Option{
		workflow.WithLogger(logger),
		workflow.WithConversation(*conversationID, *userID),
	}
	if cfg.Engine.MetricsNamespace != "" {
		opts = append(opts, workflow.WithMetrics(
			metrics.NewCollector(cfg.Engine.MetricsNamespace, logger)))
	}
	if cfg.Telemetry.Enabled {
		opts = append(opts, workflow.WithTracer(providers.Tracer("seobot-workflow")))
	}
	if cfg.Engine.SharedCacheEnabled {
		manager, err := cache.NewManager(cfg.Redis, cfg.Store.KeyPrefix, cfg.Engine.SharedCacheTTL, logger)
		if err != nil {
			logger.Fatal("failed to connect shared cache", zap.Error(err))
		}
		defer manager.Close()
		opts = append(opts, workflow.WithToolCache(cache.NewToolResultCache(manager, logger)))
	}
	if *resumeID != "" {
		recovery := workflow.NewRecoveryService(store, logger)
		prior, err := recovery.CompletedResults(ctx, *resumeID)
		if err != nil {
			logger.Fatal("failed to load prior execution", zap.Error(err))
		}
		opts = append(opts, workflow.WithCompletedResults(prior))
	}

	registry := workflow.NewRegistry(logger)
	registerBuiltinTools(registry)

	engine := workflow.NewEngine(wf, workflow.NewContext(*query), registry, store, opts...)
	execution, err := engine.Execute(ctx)
	if err != nil {
		logger.Fatal("execution error", zap.Error(err))
	}

	out, _ := json.MarshalIndent(execution, "", "  ")
	fmt.Println(string(out))
	if execution.Status == workflow.ExecutionStatusFailed {
		os.Exit(1)
	}
}

func runRecover(args []string) {
	fs := flag.NewFlagSet("recover", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "recover: execution ID is required")
		os.Exit(1)
	}

	_, logger, store, err := bootstrap(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	defer store.Close()

	recovery := workflow.NewRecoveryService(store, logger)
	decision, err := recovery.RecoverExecution(context.Background(), fs.Arg(0))
	if err != nil {
		logger.Fatal("recovery inspection failed", zap.Error(err))
	}

	out, _ := json.MarshalIndent(decision, "", "  ")
	fmt.Println(string(out))
}

func runCleanup(args []string) {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg, logger, store, err := bootstrap(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	defer store.Close()

	removed, err := store.Cleanup(context.Background(), cfg.Store.Retention)
	if err != nil {
		logger.Fatal("cleanup failed", zap.Error(err))
	}
	fmt.Printf("removed %d executions\n", removed)
}

func loadWorkflow(path string) (*workflow.Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow file: %w", err)
	}
	var wf workflow.Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse workflow file: %w", err)
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return &wf, nil
}

// registerBuiltinTools installs the demo tools available to YAML-driven
// runs. Real deployments register their own ToolExecutor.
func registerBuiltinTools(registry *workflow.Registry) {
	registry.Register(workflow.NewToolFunc("echo", func(ctx context.Context, params map[string]any) (any, error) {
		return params, nil
	}))
	registry.Register(workflow.NewToolFunc("env", func(ctx context.Context, params map[string]any) (any, error) {
		name, _ := params["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("env: missing name param")
		}
		return os.Getenv(name), nil
	}))
}
