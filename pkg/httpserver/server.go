package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/insanalamin/mechaway/pkg/errs"
	"github.com/insanalamin/mechaway/pkg/executor"
	"github.com/insanalamin/mechaway/pkg/health"
	"github.com/insanalamin/mechaway/pkg/logging"
	"github.com/insanalamin/mechaway/pkg/registry"
	"github.com/insanalamin/mechaway/pkg/types"
)

type contextKey string

const requestIDKey contextKey = "request_id"

// maxRequestBody bounds a workflow-definition or trigger-payload request
// body; larger bodies are rejected before JSON decoding runs.
const maxRequestBody = 1 << 20 // 1MB

// Activator runs one DAG activation starting from a trigger node.
// Declared locally so this package does not import pkg/engine;
// *engine.Engine satisfies it structurally.
type Activator interface {
	Activate(ctx context.Context, projectSlug string, wf *types.Workflow, triggerNodeID string, payload types.Value) (*types.Result, error)
}

// Reconciler is pkg/cron.Scheduler's project-facing surface. A workflow
// write only reaches Cron-trigger nodes once the scheduler has both seen
// the project and reconciled its schedule set; wiring it here means a new
// or edited Cron node takes effect as soon as its workflow is saved instead
// of waiting for the next background reconcile tick.
type Reconciler interface {
	Watch(projectSlug string)
	Reconcile(ctx context.Context) error
}

// Server is Mechaway's REST API and trigger surface: workflow CRUD under
// /api/v1/projects/{project}/workflows, a webhook firing endpoint, and the
// health/metrics endpoints every deployment needs.
type Server struct {
	registry   *registry.Registry
	activator  Activator
	health     *health.Checker
	logger     *logging.Logger
	router     *mux.Router
	reconciler Reconciler
}

// Config holds the handful of knobs the HTTP surface actually needs:
// listen address, timeouts, and CORS origins.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

func DefaultConfig() Config {
	return Config{
		Address:         ":8080",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		AllowedOrigins:  []string{"*"},
	}
}

func New(reg *registry.Registry, activator Activator, checker *health.Checker, logger *logging.Logger) *Server {
	s := &Server{
		registry:  reg,
		activator: activator,
		health:    checker,
		logger:    logger,
		router:    mux.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// SetReconciler wires a pkg/cron.Scheduler so Cron-trigger nodes are
// scheduled as soon as their workflow is written, rather than only on the
// scheduler's own background tick. Optional: a Server with no reconciler
// still serves Webhook triggers and CRUD normally.
func (s *Server) SetReconciler(r Reconciler) {
	s.reconciler = r
}

// reconcileProject tells the scheduler about project and asks it to pick up the
// change immediately. Failures are logged, not surfaced to the caller: a
// write that succeeded should not fail the HTTP response because the next
// scheduler tick would have caught it anyway.
func (s *Server) reconcileProject(ctx context.Context, project string) {
	if s.reconciler == nil {
		return
	}
	s.reconciler.Watch(project)
	if err := s.reconciler.Reconcile(ctx); err != nil {
		s.logger.WithField("project", project).WithError(err).Warn("cron reconcile after workflow write failed")
	}
}

// Handler returns the fully wrapped handler (routes + CORS), suitable for
// http.Server.Handler.
func (s *Server) Handler(cfg Config) http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization"}),
	)
	return cors(s.router)
}

func (s *Server) registerRoutes() {
	s.router.HandleFunc("/health", s.health.HTTPHandler())
	s.router.HandleFunc("/health/live", s.health.LivenessHandler())
	s.router.HandleFunc("/health/ready", s.health.ReadinessHandler())
	s.router.HandleFunc("/healthz", handleHealthz)
	s.router.Handle("/metrics", promhttp.Handler())

	api := s.router.PathPrefix("/api/v1/projects/{project}").Subrouter()
	api.Use(requestIDMiddleware)
	api.Use(jsonMiddleware)

	workflows := api.PathPrefix("/workflows").Subrouter()
	workflows.HandleFunc("", s.handleListWorkflows).Methods("GET")
	workflows.HandleFunc("", s.handleCreateWorkflow).Methods("POST")
	workflows.HandleFunc("/{id}", s.handleGetWorkflow).Methods("GET")
	workflows.HandleFunc("/{id}", s.handleUpdateWorkflow).Methods("PUT")
	workflows.HandleFunc("/{id}", s.handleDeleteWorkflow).Methods("DELETE")

	// The Trigger Surface: (workflow_id, webhook_path) -> node_id, reachable
	// by any HTTP method. No .Methods() call means mux matches every verb.
	api.HandleFunc("/webhook/{id}/{path:.*}", s.handleWebhookTrigger)
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func reqID(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func (s *Server) handleListWorkflows(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["project"]
	wfs, err := s.registry.List(r.Context(), project)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wfs)
}

func (s *Server) handleGetWorkflow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	wf, err := s.registry.Get(r.Context(), vars["project"], vars["id"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, wf)
}

func (s *Server) handleCreateWorkflow(w http.ResponseWriter, r *http.Request) {
	project := mux.Vars(r)["project"]
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var wf types.Workflow
	if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
		s.logger.WithField("request_id", reqID(r)).WithError(err).Warn("invalid workflow body")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	wf.ID = "" // creation always assigns a fresh ID, ignoring any client-supplied one

	saved, err := s.registry.Put(r.Context(), project, wf)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.reconcileProject(r.Context(), project)
	writeJSON(w, http.StatusCreated, saved)
}

func (s *Server) handleUpdateWorkflow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var wf types.Workflow
	if err := json.NewDecoder(r.Body).Decode(&wf); err != nil {
		s.logger.WithField("request_id", reqID(r)).WithError(err).Warn("invalid workflow body")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	wf.ID = vars["id"]

	saved, err := s.registry.Put(r.Context(), vars["project"], wf)
	if err != nil {
		writeErr(w, err)
		return
	}
	s.reconcileProject(r.Context(), vars["project"])
	writeJSON(w, http.StatusOK, saved)
}

func (s *Server) handleDeleteWorkflow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.registry.Delete(r.Context(), vars["project"], vars["id"]); err != nil {
		writeErr(w, err)
		return
	}
	s.reconcileProject(r.Context(), vars["project"])
	w.WriteHeader(http.StatusNoContent)
}

// handleWebhookTrigger is the Trigger Surface: it looks up
// (workflow_id, webhook_path) against the workflow's Webhook nodes to find
// the node_id to activate. A miss — unknown workflow or no Webhook node
// configured with this path — is a 404. Method is informational: any verb
// reaches here, since the route is registered without .Methods(). The
// request body becomes the trigger's "payload" output.
func (s *Server) handleWebhookTrigger(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	project, workflowID, webhookPath := vars["project"], vars["id"], vars["path"]

	wf, err := s.registry.Get(r.Context(), project, workflowID)
	if err != nil {
		writeErr(w, err)
		return
	}

	nodeID, ok := resolveWebhookNode(wf, webhookPath)
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no webhook registered at this path"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	var payload map[string]types.Value
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	result, err := s.activator.Activate(r.Context(), project, wf, nodeID, payload)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// resolveWebhookNode implements the Trigger Surface lookup: the
// (workflow_id, webhook_path) -> node_id map derived from wf's Webhook
// nodes, each configured with its own "path" param. webhookPath "" matches
// a Webhook node with no configured path (the workflow's sole/default
// trigger).
func resolveWebhookNode(wf *types.Workflow, webhookPath string) (string, bool) {
	for _, n := range wf.Nodes {
		if n.Kind != types.NodeKindWebhook {
			continue
		}
		var params executor.WebhookParams
		if len(n.Params) > 0 {
			_ = json.Unmarshal(n.Params, &params)
		}
		if params.Path == webhookPath {
			return n.ID, true
		}
	}
	return "", false
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errs.IsClientError(errs.KindOf(err)) {
		status = http.StatusBadRequest
	}
	if errs.KindOf(err) == errs.UnknownWorkflow || errs.KindOf(err) == errs.UnknownNode {
		status = http.StatusNotFound
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
