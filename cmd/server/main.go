// Command server starts the Mechaway workflow automation engine: the
// project-scoped storage manager, the workflow registry, every node
// executor, the DAG activation engine, the hot-reload cron scheduler, and
// the REST/trigger HTTP surface, all wired together and served until
// SIGINT/SIGTERM.
//
// Usage:
//
//	server [flags]
//
// Flags:
//
//	-addr string
//	    Server address (default ":8080")
//	-data-dir string
//	    Directory holding per-project SQLite databases (default "./data")
//	-secret-key string
//	    Key material for AES-256-GCM secret encryption (default from
//	    MECHAWAY_SECRET_KEY; when empty, an ephemeral key is generated
//	    and stored secrets do not survive a restart)
//	-allow-http
//	    Permit the HTTPClient node to make outbound requests (default false)
//	-max-execution-time duration
//	    Per-activation deadline (default 30s)
//	-max-node-executions int
//	    Node-execution budget per activation (default 10000)
//
// Example:
//
//	# Start server on default port against ./data
//	server
//
//	# Start server with outbound HTTP enabled and a custom data directory
//	server -addr :9090 -data-dir /var/lib/mechaway -allow-http
//
// The server exposes, per project slug:
//
//	GET    /health                                            - health check
//	GET    /health/live                                       - liveness probe
//	GET    /health/ready                                       - readiness probe
//	GET    /healthz                                            - "ok"
//	GET    /metrics                                            - Prometheus metrics
//	GET    /api/v1/projects/{project}/workflows                - list workflows
//	POST   /api/v1/projects/{project}/workflows                - create a workflow
//	GET    /api/v1/projects/{project}/workflows/{id}            - load a workflow
//	PUT    /api/v1/projects/{project}/workflows/{id}            - update a workflow
//	DELETE /api/v1/projects/{project}/workflows/{id}             - delete a workflow
//	ANY    /api/v1/projects/{project}/webhook/{id}/{path}       - fire the Webhook node registered at path
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/insanalamin/mechaway/pkg/binding"
	"github.com/insanalamin/mechaway/pkg/config"
	"github.com/insanalamin/mechaway/pkg/cron"
	"github.com/insanalamin/mechaway/pkg/engine"
	"github.com/insanalamin/mechaway/pkg/executor"
	"github.com/insanalamin/mechaway/pkg/health"
	"github.com/insanalamin/mechaway/pkg/httpserver"
	"github.com/insanalamin/mechaway/pkg/logging"
	"github.com/insanalamin/mechaway/pkg/middleware"
	"github.com/insanalamin/mechaway/pkg/observer"
	"github.com/insanalamin/mechaway/pkg/registry"
	"github.com/insanalamin/mechaway/pkg/sandbox"
	"github.com/insanalamin/mechaway/pkg/secrets"
	"github.com/insanalamin/mechaway/pkg/storage"
	"github.com/insanalamin/mechaway/pkg/telemetry"
)

func main() {
	cfg := config.FromEnv()

	addr := flag.String("addr", ":8080", "Server address")
	dataDir := flag.String("data-dir", cfg.DataDir, "Directory holding per-project SQLite databases")
	secretKey := flag.String("secret-key", os.Getenv("MECHAWAY_SECRET_KEY"), "Key material for secret encryption")
	allowHTTP := flag.Bool("allow-http", cfg.AllowHTTP, "Permit the HTTPClient node to make outbound requests")
	maxExecutionTime := flag.Duration("max-execution-time", cfg.MaxExecutionTime, "Per-activation deadline")
	maxNodeExecutions := flag.Int("max-node-executions", cfg.MaxNodeExecutions, "Node-execution budget per activation")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	cfg.DataDir = *dataDir
	cfg.AllowHTTP = *allowHTTP
	cfg.MaxExecutionTime = *maxExecutionTime
	cfg.MaxNodeExecutions = *maxNodeExecutions

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if *secretKey == "" {
		fmt.Fprintln(os.Stderr, "warning: -secret-key not set, generating an ephemeral key; secrets will not survive a restart")
		*secretKey = randomEphemeralKey()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create data directory %s: %v\n", cfg.DataDir, err)
		os.Exit(1)
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = *logLevel
	logger := logging.New(logCfg)

	storageMgr := storage.NewManager(cfg.DataDir)
	wfRegistry := registry.NewRegistry(storageMgr)
	secretStore := secrets.NewStore(storageMgr, *secretKey)
	sb := sandbox.New()
	bindings := binding.NewResolver(sb, secretStore)

	execRegistry := executor.NewRegistry()
	execRegistry.MustRegister(executor.NewWebhookExecutor())
	execRegistry.MustRegister(executor.NewCronExecutor())
	execRegistry.MustRegister(executor.NewHTTPClientExecutor())
	execRegistry.MustRegister(executor.NewScriptExecutor(sb))
	execRegistry.MustRegister(executor.NewTableWriterExecutor())
	execRegistry.MustRegister(executor.NewTableReaderExecutor(cfg.MaxTableLimit))
	execRegistry.MustRegister(executor.NewTableQueryExecutor(cfg.MaxTableLimit))
	execRegistry.MustRegister(executor.NewPGQueryExecutor())
	execRegistry.MustRegister(executor.NewConditionExecutor())
	execRegistry.MustRegister(executor.NewSwitchExecutor())
	execRegistry.MustRegister(executor.NewDelayExecutor())
	execRegistry.MustRegister(executor.NewCacheExecutor())

	telemetryProvider, err := telemetry.NewProvider(context.Background(), telemetry.DefaultConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start telemetry: %v\n", err)
		os.Exit(1)
	}

	observerMgr := observer.NewManager()
	observerMgr.Register(observer.NewConsoleObserverWithLogger(loggingAdapter{logger}))
	observerMgr.Register(telemetry.NewTelemetryObserver(telemetryProvider))

	eng := engine.New(execRegistry, bindings, secretStore, storageMgr, cfg, observerMgr, logger)
	eng.Use(
		middleware.NewLoggingMiddleware(logger),
		middleware.NewMetricsMiddleware(middleware.NewInMemoryMetricsCollector()),
		middleware.NewValidationMiddleware(execRegistry),
		middleware.NewInputValidationMiddleware(1<<20),
		middleware.NewSizeLimitMiddleware(),
		middleware.NewRateLimitMiddleware(),
		middleware.NewRetryMiddleware(),
	)

	scheduler := cron.NewScheduler(wfRegistry, eng, logger)

	checker := health.NewChecker("mechaway", "1.0.0")
	checker.RegisterCheck("storage", func(ctx context.Context) error {
		_, err := storageMgr.ForProject("_healthcheck")
		return err
	}, 2*time.Second, true)

	httpSrv := httpserver.New(wfRegistry, eng, checker, logger)
	httpSrv.SetReconciler(scheduler)
	httpCfg := httpserver.DefaultConfig()
	httpCfg.Address = *addr

	server := &http.Server{
		Addr:         httpCfg.Address,
		Handler:      httpSrv.Handler(httpCfg),
		ReadTimeout:  httpCfg.ReadTimeout,
		WriteTimeout: httpCfg.WriteTimeout,
	}

	scheduler.Start()
	reconcileStop := make(chan struct{})
	go runPeriodicReconcile(scheduler, reconcileStop)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		fmt.Printf("Starting Mechaway workflow engine on %s\n", *addr)
		fmt.Printf("Health check:     http://localhost%s/health\n", *addr)
		fmt.Printf("Liveness probe:   http://localhost%s/health/live\n", *addr)
		fmt.Printf("Readiness probe:  http://localhost%s/health/ready\n", *addr)
		fmt.Printf("Metrics:          http://localhost%s/metrics\n", *addr)
		fmt.Println("\nPress Ctrl+C to shutdown")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal: %v\n", sig)
		fmt.Println("Shutting down gracefully...")

		ctx, cancel := context.WithTimeout(context.Background(), httpCfg.ShutdownTimeout)
		defer cancel()

		close(reconcileStop)
		if err := scheduler.Stop(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Cron scheduler shutdown error: %v\n", err)
		}
		if err := telemetryProvider.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Telemetry shutdown error: %v\n", err)
		}
		if err := server.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Shutdown error: %v\n", err)
			os.Exit(1)
		}

		fmt.Println("Server stopped")
	}
}

// runPeriodicReconcile re-syncs the cron scheduler's installed entries on a
// fixed interval, as a backstop alongside the per-write reconcile triggered
// by httpserver: it catches a project whose workflows were written before
// the scheduler ever saw the process start, and re-applies a schedule
// change if a reconcile was ever missed.
func runPeriodicReconcile(scheduler *cron.Scheduler, stop <-chan struct{}) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := scheduler.Reconcile(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "periodic cron reconcile failed: %v\n", err)
			}
		case <-stop:
			return
		}
	}
}

// randomEphemeralKey produces throwaway key material for local runs where
// no -secret-key was supplied. Never used when MECHAWAY_SECRET_KEY is set.
func randomEphemeralKey() string {
	return fmt.Sprintf("ephemeral-%d", os.Getpid())
}

// loggingAdapter satisfies observer.Logger with pkg/logging's structured
// logger so ConsoleObserver's event lines flow through the same sink as
// the rest of the process.
type loggingAdapter struct {
	l *logging.Logger
}

func (a loggingAdapter) Debug(msg string, fields map[string]interface{}) {
	a.l.WithFields(fields).Debug(msg)
}

func (a loggingAdapter) Info(msg string, fields map[string]interface{}) {
	a.l.WithFields(fields).Info(msg)
}

func (a loggingAdapter) Warn(msg string, fields map[string]interface{}) {
	a.l.WithFields(fields).Warn(msg)
}

func (a loggingAdapter) Error(msg string, fields map[string]interface{}) {
	a.l.WithFields(fields).Error(msg)
}
