// Package main provides the CLI entry point for the agent execution core.
//
// agentcore wires the cognitive engine, runtime dispatcher, and context
// manager into a runnable session loop over stdin/stdout, and exposes the
// rollout log and archive for offline inspection.
//
// # Basic usage
//
//	agentcore run --config agentcore.yaml
//	agentcore replay --log session.jsonl
//	agentcore archive list
package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shellmind/agentcore/internal/approval"
	"github.com/shellmind/agentcore/internal/backoff"
	agentconfig "github.com/shellmind/agentcore/internal/config"
	agentcontext "github.com/shellmind/agentcore/internal/context"
	"github.com/shellmind/agentcore/internal/core"
	"github.com/shellmind/agentcore/internal/jobs"
	"github.com/shellmind/agentcore/internal/llmcap"
	"github.com/shellmind/agentcore/internal/rollout"
	"github.com/shellmind/agentcore/internal/runtime"
	"github.com/shellmind/agentcore/internal/scratchpad"
	"github.com/shellmind/agentcore/internal/telemetry"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"

	configPath string
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := buildRootCmd().Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "agentcore",
		Short:        "agent execution core: session loop, cognition, and runtime dispatcher",
		Version:      fmt.Sprintf("%s (commit %s)", version, commit),
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file (defaults applied when unset)")
	root.AddCommand(buildRunCmd(), buildReplayCmd(), buildArchiveCmd())
	return root
}

func loadConfig() (agentconfig.Config, error) {
	if configPath == "" {
		return agentconfig.DefaultConfig(), nil
	}
	f, err := os.Open(configPath)
	if err != nil {
		return agentconfig.Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()
	return agentconfig.LoadConfig(f)
}

func buildRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run an interactive session over stdin/stdout",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return runSession(cmd.Context(), cfg)
		},
	}
	return cmd
}

func runSession(ctx context.Context, cfg agentconfig.Config) error {
	logger := slog.Default()

	var llm runtime.LLMCapability
	switch cfg.LLM.Provider {
	case "openai":
		llm = llmcap.NewOpenAICapability(cfg.LLM.APIKey, cfg.LLM.Model)
	default:
		llm = llmcap.NewAnthropicCapability(cfg.LLM.Model)
	}

	tools := &stdoutEchoTool{} // placeholder ToolCapability; replace with real tool wiring
	validating, err := runtime.NewSchemaValidatingTool(tools, map[string]string{
		"echo": stdoutEchoToolSchema,
	})
	if err != nil {
		return fmt.Errorf("compile tool schemas: %w", err)
	}
	retrying := runtime.NewRetryingTool(validating, runtime.RetryPolicy{
		MaxAttempts: cfg.Runtime.RetryMaxAttempts,
		Backoff: backoff.Policy{
			InitialMs: float64(cfg.Runtime.RetryInitialDelay.Milliseconds()),
			MaxMs:     float64(cfg.Runtime.RetryMaxDelay.Milliseconds()),
			Factor:    cfg.Runtime.RetryFactor,
			Jitter:    backoff.ForToolRetries().Jitter,
		},
	})
	executor := runtime.NewExecutor(retrying, runtime.ExecutorConfig{MaxConcurrency: cfg.Runtime.MaxConcurrentTools})

	approvalPolicy := approval.DefaultPolicy()
	approvalPolicy.RequireApproval = cfg.Approval.RequireFor
	approvalPolicy.Allowlist = cfg.Approval.AutoApprove
	approvals := approval.NewRegistry(approvalPolicy)

	jobStore := jobs.NewMemoryStore()

	var recorder *telemetry.Recorder
	if cfg.Telemetry.Enabled {
		recorder = telemetry.NewRecorder(prometheus.DefaultRegisterer)
		go serveMetrics(cfg.Telemetry.ListenAddr)
	}

	workers := runtime.NewWorkerPool(cfg.Runtime.MaxConcurrentWorkers, jobStore, stubWorker, logger)

	var telemetryCap runtime.TelemetryCapability = runtime.NopTelemetry{}
	if recorder != nil {
		telemetryCap = recorder
	}
	dispatcher := runtime.NewDispatcher(llm, executor, approvals, jobStore, workers, telemetryCap)

	pad := scratchpad.New(cfg.Session.Scratchpad.SoftSizeWarn, cfg.Session.Scratchpad.HardSizeWarn, logger)
	if cfg.Session.Scratchpad.PurgeCron != "" {
		if err := pad.StartTimerPurge(cfg.Session.Scratchpad.PurgeCron); err != nil {
			logger.Warn("scratchpad timer purge disabled", "error", err)
		}
	}

	ctxMgr := agentcontext.NewManager(agentcontext.Settings{
		MaxTokens:        cfg.Context.MaxTokens,
		PruneThreshold:   cfg.Context.PruneThreshold,
		TargetFraction:   cfg.Context.TargetFraction,
		KeepFirst:        cfg.Context.KeepFirst,
		KeepLast:         cfg.Context.KeepLast,
		PreservePatterns: cfg.Context.PreservePatterns,
		MaxArchiveSize:   cfg.Context.MaxArchiveSize,
	}, nil, logger)

	engine := &core.LLMEngine{
		SystemPrompt: "You are a terminal assistant. Use ACTION blocks to call tools.",
		RequiresApproval: func(tool string, args map[string]any) bool {
			return approvals.Requires(tool)
		},
		MaxParseFailures: 3,
		Logger:           logger,
	}

	bus := loggingBus{logger: logger}

	session := core.NewSession(core.SessionConfig{
		Engine:         engine,
		Dispatcher:     dispatcher,
		Context:        ctxMgr,
		Bus:            bus,
		Logger:         logger,
		State:          core.NewState(3),
		Feedback:       dispatcher.Feedback,
		Approvals:      approvals,
		Jobs:           jobStore,
		SweepInterval:  cfg.Runtime.StalledJobSweepInterval,
		StallThreshold: cfg.Runtime.StalledJobThreshold,
	})

	inputs := make(chan core.Input)
	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go readStdin(inputs)

	return session.Run(sigCtx, inputs)
}

func readStdin(out chan<- core.Input) {
	defer close(out)
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		out <- core.UserMessage{Text: scanner.Text()}
	}
}

func serveMetrics(addr string) {
	if addr == "" {
		addr = ":9090"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Default().Warn("metrics server stopped", "error", err)
	}
}

func stubWorker(ctx context.Context, spec core.WorkerSpec) (string, error) {
	return "worker objective acknowledged: " + spec.Objective, nil
}

// loggingBus publishes OutputEvents to the structured logger and to stdout
// for the interactive run command.
type loggingBus struct {
	logger *slog.Logger
}

func (b loggingBus) Publish(ev core.OutputEvent) {
	b.logger.Info("output_event", "event", fmt.Sprintf("%T", ev))
	fmt.Println(eventText(ev))
}

func eventText(ev core.OutputEvent) string {
	switch e := ev.(type) {
	case core.AssistantMessage:
		return e.Text
	case core.DoneEvent:
		return e.Text
	case core.ErrorEvent:
		return "error: " + e.Message
	default:
		return fmt.Sprintf("%+v", ev)
	}
}

// stdoutEchoTool is a placeholder runtime.ToolCapability: it proves the
// dispatcher/executor wiring end to end without depending on any concrete
// tool implementation, which is explicitly out of scope for this core.
type stdoutEchoTool struct{}

func (stdoutEchoTool) Execute(ctx context.Context, call core.ToolCall) (core.ToolResult, error) {
	return core.ToolResult{CallID: call.ID, OK: true, Content: fmt.Sprintf("tool %q invoked with %v (no concrete tool wired)", call.Name, call.Args)}, nil
}

// stdoutEchoToolSchema is the JSON schema the dispatcher validates "echo"
// calls against before they reach stdoutEchoTool.
const stdoutEchoToolSchema = `{
  "type": "object",
  "required": ["text"],
  "properties": {
    "text": { "type": "string" }
  },
  "additionalProperties": true
}`

func buildReplayCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "replay a rollout log and print each record",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			reader := rollout.NewReader(f)
			return rollout.Replay(reader, func(rec rollout.Record) error {
				fmt.Printf("#%d [%s -> %s]\n", rec.SequenceNo, rec.InputKind, rec.DecisionKind)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&path, "log", "", "rollout log path to replay")
	cmd.MarkFlagRequired("log")
	return cmd
}

func buildArchiveCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "archive", Short: "inspect the pruned-segment archive"}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "list archived segments (requires a running session; offline inspection is not yet wired)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return fmt.Errorf("archive list requires an attached session; use the list_archive manual command interactively")
		},
	})
	return cmd
}
