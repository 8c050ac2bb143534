// handlers.go implements the command handlers: runtime construction
// from config, then thin orchestration over the internal packages.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/praxishq/praxis/internal/approval"
	"github.com/praxishq/praxis/internal/config"
	"github.com/praxishq/praxis/internal/engine"
	"github.com/praxishq/praxis/internal/memory"
	openaiembed "github.com/praxishq/praxis/internal/memory/embeddings/openai"
	"github.com/praxishq/praxis/internal/observability"
	"github.com/praxishq/praxis/internal/provider"
	"github.com/praxishq/praxis/internal/storage"
	"github.com/praxishq/praxis/internal/tools"
	"github.com/praxishq/praxis/pkg/models"
)

// runtime bundles everything a command needs, built once per invocation.
type runtime struct {
	cfg      *config.Config
	logger   *observability.Logger
	metrics  *observability.Metrics
	tracer   *observability.Tracer
	stores   *storage.StoreSet
	gate     *approval.Gate
	memory   *memory.Manager
	executor *engine.Executor

	shutdownTracer func(context.Context) error
}

func newRuntime(configPath string, debug bool) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		// A missing default config file means "use defaults", an explicit
		// one must exist.
		if errors.Is(err, os.ErrNotExist) && configPath == defaultConfigPath() && os.Getenv("PRAXIS_CONFIG") == "" {
			cfg, err = config.Load("")
		}
		if err != nil {
			return nil, err
		}
	}
	if debug {
		cfg.Logging.Level = "debug"
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	})

	metrics := observability.NewMetrics()
	tracer, shutdownTracer := observability.NewTracer(observability.TraceConfig{
		ServiceName:    "praxis",
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})

	var stores *storage.StoreSet
	switch cfg.Storage.Driver {
	case "memory":
		stores = storage.NewMemoryStoreSet()
	default:
		stores, err = storage.NewSQLiteStoreSet(cfg.Storage.Path)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
	}

	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry); err != nil {
		return nil, fmt.Errorf("register builtin tools: %w", err)
	}

	gate := approval.NewGate(approval.GateConfig{
		Approvals:  stores.Approvals,
		Executions: stores.Executions,
		Metrics:    metrics,
		Logger:     logger.Slog(),
		TTL:        cfg.Approval.TTL,
	})

	dispatcher := tools.NewDispatcher(tools.DispatcherConfig{
		Registry:  registry,
		Approvals: gate,
		Logs:      stores.ToolCalls,
		Metrics:   metrics,
		Logger:    logger.Slog(),
	})

	var mem *memory.Manager
	if cfg.Embeddings.APIKey != "" {
		embedder, err := openaiembed.New(openaiembed.Config{
			APIKey:  cfg.Embeddings.APIKey,
			BaseURL: cfg.Embeddings.BaseURL,
			Model:   cfg.Embeddings.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("embeddings: %w", err)
		}
		mem, err = memory.NewManager(memory.ManagerConfig{
			Memories: stores.Memories,
			Episodes: stores.Episodes,
			Embedder: embedder,
			Metrics:  metrics,
			Logger:   logger.Slog(),
		})
		if err != nil {
			return nil, fmt.Errorf("memory: %w", err)
		}
	}

	prov, err := provider.New(cfg.Provider)
	if err != nil {
		return nil, err
	}

	executor, err := engine.NewExecutor(engine.Config{
		Stores:     stores,
		Provider:   prov,
		Registry:   registry,
		Dispatcher: dispatcher,
		Memory:     mem,
		Metrics:    metrics,
		Tracer:     tracer,
		Logger:     logger.Slog(),
	})
	if err != nil {
		return nil, err
	}

	return &runtime{
		cfg:            cfg,
		logger:         logger,
		metrics:        metrics,
		tracer:         tracer,
		stores:         stores,
		gate:           gate,
		memory:         mem,
		executor:       executor,
		shutdownTracer: shutdownTracer,
	}, nil
}

func (r *runtime) Close(ctx context.Context) {
	if err := r.stores.Close(); err != nil {
		r.logger.Warn(ctx, "close storage", "error", err)
	}
	if r.shutdownTracer != nil {
		if err := r.shutdownTracer(ctx); err != nil {
			r.logger.Warn(ctx, "shutdown tracer", "error", err)
		}
	}
}

type runParams struct {
	configPath  string
	debug       bool
	agentID     string
	task        string
	event       string
	payloadJSON string
	triggerType string
	maxSteps    int
	timeout     time.Duration
}

func runRun(ctx context.Context, p runParams) error {
	rt, err := newRuntime(p.configPath, p.debug)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	payload := map[string]any{}
	if p.payloadJSON != "" {
		if err := json.Unmarshal([]byte(p.payloadJSON), &payload); err != nil {
			return fmt.Errorf("parse --payload: %w", err)
		}
	}
	if p.task != "" {
		payload["task"] = p.task
	}

	trigger := models.Trigger{
		Type:    models.TriggerType(p.triggerType),
		Event:   p.event,
		Payload: payload,
	}

	result := rt.executor.Run(ctx, p.agentID, trigger, engine.RunOptions{
		MaxSteps: p.maxSteps,
		Timeout:  p.timeout,
	})
	printJSON(result)

	switch {
	case result.Success:
		return nil
	case result.Status == models.ExecutionWaitingApproval:
		fmt.Fprintf(os.Stderr, "execution suspended; resolve with: praxis approvals approve %s --resume\n", result.ApprovalID)
		return nil
	default:
		return fmt.Errorf("execution %s: %s", result.Status, result.Error)
	}
}

func runResume(ctx context.Context, configPath, approvalID string) error {
	rt, err := newRuntime(configPath, false)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	result := rt.executor.Resume(ctx, approvalID, engine.RunOptions{})
	printJSON(result)
	if !result.Success && result.Status != models.ExecutionWaitingApproval {
		return fmt.Errorf("execution %s: %s", result.Status, result.Error)
	}
	return nil
}

func runApprovalsList(ctx context.Context, configPath, agentID string) error {
	rt, err := newRuntime(configPath, false)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	pending, err := rt.gate.ListPending(ctx, agentID)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("no pending approvals")
		return nil
	}
	for _, req := range pending {
		fmt.Printf("%s  agent=%s  tool=%s  risk=%s  expires=%s\n",
			req.ID, req.AgentID, req.ToolName, req.Risk, req.ExpiresAt.Format(time.RFC3339))
	}
	return nil
}

func runApprovalsApprove(ctx context.Context, configPath, id, by, note string, resume bool) error {
	rt, err := newRuntime(configPath, false)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if err := rt.gate.Approve(ctx, id, by, note); err != nil {
		return err
	}
	fmt.Printf("approved %s\n", id)

	if resume {
		result := rt.executor.Resume(ctx, id, engine.RunOptions{})
		printJSON(result)
		if !result.Success && result.Status != models.ExecutionWaitingApproval {
			return fmt.Errorf("execution %s: %s", result.Status, result.Error)
		}
	}
	return nil
}

func runApprovalsDeny(ctx context.Context, configPath, id, by, note string) error {
	rt, err := newRuntime(configPath, false)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if err := rt.gate.Deny(ctx, id, by, note); err != nil {
		return err
	}
	fmt.Printf("denied %s\n", id)
	return nil
}

func runApprovalsSweep(ctx context.Context, configPath string) error {
	rt, err := newRuntime(configPath, false)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	swept, err := rt.gate.Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("expired %d approval(s)\n", swept)
	return nil
}

func runAgentsCreate(ctx context.Context, configPath, file string) error {
	rt, err := newRuntime(configPath, false)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	var agent models.AgentConfig
	if err := json.Unmarshal(data, &agent); err != nil {
		return fmt.Errorf("parse agent definition: %w", err)
	}
	if agent.Name == "" {
		return fmt.Errorf("agent definition requires a name")
	}
	if err := rt.stores.Agents.Create(ctx, &agent); err != nil {
		return err
	}
	fmt.Printf("created agent %s\n", agent.ID)
	return nil
}

func runAgentsShow(ctx context.Context, configPath, id string) error {
	rt, err := newRuntime(configPath, false)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	agent, err := rt.stores.Agents.Get(ctx, id)
	if err != nil {
		return err
	}
	printJSON(agent)
	return nil
}

func runMemoryStore(ctx context.Context, configPath, agentID, content, kind, subject string) error {
	rt, err := newRuntime(configPath, false)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if rt.memory == nil {
		return fmt.Errorf("embeddings are not configured; set embeddings.api_key")
	}

	if existing, err := rt.memory.FindSimilar(ctx, agentID, content, 0); err == nil && existing != nil {
		fmt.Printf("near-duplicate of %s, skipped\n", existing.ID)
		return nil
	}

	mem := &models.Memory{
		AgentID: agentID,
		Kind:    models.MemoryKind(kind),
		Content: content,
		Subject: subject,
	}
	if err := rt.memory.Store(ctx, mem); err != nil {
		return err
	}
	fmt.Printf("stored memory %s\n", mem.ID)
	return nil
}

func runMemoryRecall(ctx context.Context, configPath, agentID, query string, limit int) error {
	rt, err := newRuntime(configPath, false)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if rt.memory == nil {
		return fmt.Errorf("embeddings are not configured; set embeddings.api_key")
	}

	scored, err := rt.memory.Retrieve(ctx, agentID, query, memory.RetrieveOptions{Limit: limit})
	if err != nil {
		return err
	}
	if len(scored) == 0 {
		fmt.Println("no memories found")
		return nil
	}
	for _, s := range scored {
		fmt.Printf("%.3f  [%s]  %s\n", s.Similarity, s.Memory.Kind, s.Memory.Content)
	}
	return nil
}

func runMemoryConsolidate(ctx context.Context, configPath, agentID string) error {
	rt, err := newRuntime(configPath, false)
	if err != nil {
		return err
	}
	defer rt.Close(ctx)

	if rt.memory == nil {
		return fmt.Errorf("embeddings are not configured; set embeddings.api_key")
	}

	pruned, err := rt.memory.Consolidate(ctx, agentID)
	if err != nil {
		return err
	}
	fmt.Printf("pruned %d memories\n", pruned)
	return nil
}

func runServe(ctx context.Context, configPath string, debug bool) error {
	rt, err := newRuntime(configPath, debug)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var server *http.Server
	if rt.cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		server = &http.Server{Addr: rt.cfg.Metrics.Addr, Handler: mux}
		go func() {
			rt.logger.Info(ctx, "metrics listening", "addr", rt.cfg.Metrics.Addr)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				rt.logger.Error(ctx, "metrics server failed", "error", err)
			}
		}()
	}

	interval := rt.cfg.Approval.SweepInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	rt.logger.Info(ctx, "praxis resident mode started", "sweep_interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			rt.logger.Info(ctx, "shutting down")
			if server != nil {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(shutdownCtx); err != nil {
					rt.logger.Warn(ctx, "metrics server shutdown", "error", err)
				}
			}
			return nil
		case <-ticker.C:
			swept, err := rt.gate.Sweep(ctx)
			if err != nil {
				rt.logger.Warn(ctx, "approval sweep failed", "error", err)
				continue
			}
			if swept > 0 {
				rt.logger.Info(ctx, "expired stale approvals", "count", swept)
			}
		}
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "encode output: %v\n", err)
	}
}
