// Package seobot provides a top-level convenience entry point for running
// workflows with minimal boilerplate.
//
// Usage:
//
//	import "github.com/sodown4thecause/seobot-sub008"
//
//	execution, err := seobot.Run(ctx, wf, registry,
//	    seobot.WithQuery("audit example.com"),
//	    seobot.WithStore(store))
//
// This is a thin wrapper around [workflow.NewEngine]; both produce identical
// results. Use this package when you prefer the shorter import path.
package seobot

import (
	"context"

	"go.uber.org/zap"

	"github.com/sodown4thecause/seobot-sub008/workflow"
)

// RunOption configures a [Run] call.
type RunOption func(*runConfig)

type runConfig struct {
	query   string
	store   workflow.ExecutionStore
	logger  *zap.Logger
	engine  []workflow.Option
	context *workflow.Context
}

// WithQuery sets the user query available to parameter interpolation.
func WithQuery(query string) RunOption {
	return func(c *runConfig) { c.query = query }
}

// WithStore persists the execution and its checkpoints.
func WithStore(store workflow.ExecutionStore) RunOption {
	return func(c *runConfig) { c.store = store }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) RunOption {
	return func(c *runConfig) { c.logger = logger }
}

// WithContext supplies a fully built workflow context instead of one derived
// from the query.
func WithContext(wctx *workflow.Context) RunOption {
	return func(c *runConfig) { c.context = wctx }
}

// WithEngineOptions forwards additional options to the underlying engine.
func WithEngineOptions(opts ...workflow.Option) RunOption {
	return func(c *runConfig) { c.engine = append(c.engine, opts...) }
}

// Run executes a workflow against a tool executor and returns the finished
// execution record.
func Run(ctx context.Context, wf *workflow.Workflow, tools workflow.ToolExecutor, opts ...RunOption) (*workflow.Execution, error) {
	cfg := &runConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	wctx := cfg.context
	if wctx == nil {
		wctx = workflow.NewContext(cfg.query)
	}

	engineOpts := cfg.engine
	if cfg.logger != nil {
		engineOpts = append(engineOpts, workflow.WithLogger(cfg.logger))
	}

	engine := workflow.NewEngine(wf, wctx, tools, cfg.store, engineOpts...)
	return engine.Execute(ctx)
}
