// Package server provides the GitPilot HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/jxucoder/gitpilot/internal/auth"
	"github.com/jxucoder/gitpilot/internal/config"
	"github.com/jxucoder/gitpilot/internal/executor"
	ghx "github.com/jxucoder/gitpilot/internal/github"
	"github.com/jxucoder/gitpilot/internal/llm"
	"github.com/jxucoder/gitpilot/internal/model"
	"github.com/jxucoder/gitpilot/internal/planner"
	"github.com/jxucoder/gitpilot/internal/store"
	"github.com/jxucoder/gitpilot/internal/tools"
)

// repoClient is the repository surface one request operates on. The
// github.Client satisfies it; tests substitute fakes.
type repoClient interface {
	tools.Reader
	executor.RepoService
}

// Server is the GitPilot HTTP API server.
type Server struct {
	cfg      *config.Config
	store    *store.Store
	resolver *auth.Resolver
	llm      llm.Client
	router   chi.Router

	// newRepo builds the repository client for one resolved token.
	// Overridable in tests.
	newRepo func(token string) repoClient
}

// New creates a Server with all dependencies.
func New(cfg *config.Config) (*Server, error) {
	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}

	client, err := llm.NewClientFromConfig(cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		store:    st,
		resolver: auth.NewResolver(cfg),
		llm:      client,
		newRepo:  func(token string) repoClient { return ghx.NewClient(token) },
	}
	s.router = s.buildRouter()
	return s, nil
}

// Start runs the HTTP server until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.ServerAddr,
		Handler: s.router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.WithFields(log.Fields{"addr": s.cfg.ServerAddr}).Info("gitpilot server listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return s.store.Close()
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Minute))

	r.Route("/api", func(r chi.Router) {
		r.Post("/plan", s.handlePlan)
		r.Post("/execute", s.handleExecute)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Get("/runs/{id}/events", s.handleRunEvents)
		r.Get("/repos/{owner}/{repo}/tree", s.handleRepoTree)
		r.Get("/repos/{owner}/{repo}/file", s.handleRepoFile)
		r.Post("/repos/{owner}/{repo}/file", s.handleCommitFile)
		r.Get("/auth/status", s.handleAuthStatus)
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	return r
}

// --- Request/Response types ---

type planRequest struct {
	Repo string `json:"repo"` // "owner/repo"
	Goal string `json:"goal"`
}

type planResponse struct {
	RunID string      `json:"run_id"`
	Plan  *model.Plan `json:"plan"`
}

type executeRequest struct {
	Repo       string      `json:"repo"`
	Plan       *model.Plan `json:"plan"`
	BranchName string      `json:"branch_name,omitempty"`
}

type executeResponse struct {
	RunID string              `json:"run_id"`
	Log   *model.ExecutionLog `json:"log"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// --- Handlers ---

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	var req planRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Repo == "" || req.Goal == "" {
		writeError(w, http.StatusBadRequest, "repo and goal are required")
		return
	}

	owner, repo, err := ghx.SplitRepo(req.Repo)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := s.resolver.Resolve(r.Context(), requestToken(r))
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	run := s.beginRun(store.KindPlan, req.Repo, req.Goal)

	rc := tools.RepoContext{Owner: owner, Repo: repo, Reader: s.newRepo(token)}
	plan, err := planner.New(s.llm, s.cfg.MaxAgentTurns).GeneratePlan(r.Context(), req.Goal, rc)
	if err != nil {
		s.finishRun(run, store.StatusError, err.Error())
		writeError(w, errorStatus(err), err.Error())
		return
	}

	run.Steps = len(plan.Steps)
	s.finishRun(run, store.StatusComplete, "")
	writeJSON(w, http.StatusOK, planResponse{RunID: run.ID, Plan: plan})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Repo == "" || req.Plan == nil {
		writeError(w, http.StatusBadRequest, "repo and plan are required")
		return
	}

	owner, repo, err := ghx.SplitRepo(req.Repo)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := s.resolver.Resolve(r.Context(), requestToken(r))
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	run := s.beginRun(store.KindExecute, req.Repo, req.Plan.Goal)
	run.Steps = len(req.Plan.Steps)

	ex := executor.New(s.llm, s.newRepo(token), s.fallbackRepo())
	execLog, err := ex.Execute(r.Context(), req.Plan, owner, repo, req.BranchName)
	if err != nil {
		s.finishRun(run, store.StatusError, err.Error())
		writeError(w, errorStatus(err), err.Error())
		return
	}

	run.Branch = execLog.Branch
	run.Failures = execLog.FailureCount()
	status := store.StatusComplete
	if execLog.Status == model.ExecutionPartial {
		status = store.StatusPartial
	}
	s.finishRun(run, status, "")
	s.recordStepEvents(run.ID, execLog)

	writeJSON(w, http.StatusOK, executeResponse{RunID: run.ID, Log: execLog})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRuns()
	if err != nil {
		log.WithError(err).Error("listing runs")
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.store.GetRun(id); err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	events, err := s.store.GetEvents(id)
	if err != nil {
		log.WithError(err).Error("listing run events")
		writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}
	if events == nil {
		events = []*store.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) handleRepoTree(w http.ResponseWriter, r *http.Request) {
	token, err := s.resolver.Resolve(r.Context(), requestToken(r))
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	owner, repo := chi.URLParam(r, "owner"), chi.URLParam(r, "repo")
	snap, err := s.newRepo(token).Snapshot(r.Context(), owner, repo, r.URL.Query().Get("ref"))
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRepoFile(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path query parameter is required")
		return
	}

	token, err := s.resolver.Resolve(r.Context(), requestToken(r))
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	owner, repo := chi.URLParam(r, "owner"), chi.URLParam(r, "repo")
	content, err := s.newRepo(token).ReadFile(r.Context(), owner, repo, path, r.URL.Query().Get("ref"))
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path, "content": content})
}

type commitFileRequest struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Message string `json:"message"`
	Branch  string `json:"branch"`
}

// handleCommitFile commits one file directly, outside any plan. Intended for
// small manual fixes after reviewing a partial execution.
func (s *Server) handleCommitFile(w http.ResponseWriter, r *http.Request) {
	var req commitFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Path == "" || req.Branch == "" {
		writeError(w, http.StatusBadRequest, "path and branch are required")
		return
	}
	if req.Message == "" {
		req.Message = fmt.Sprintf("GitPilot: Update %s", req.Path)
	}

	token, err := s.resolver.Resolve(r.Context(), requestToken(r))
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}

	owner, repo := chi.URLParam(r, "owner"), chi.URLParam(r, "repo")
	commit, err := s.newRepo(token).WriteFile(r.Context(), owner, repo, req.Path, req.Content, req.Message, req.Branch)
	if err != nil {
		writeError(w, errorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, commit)
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	method := "none"
	if s.cfg.GitHubToken != "" {
		method = "pat"
	} else if s.cfg.AppConfigured() {
		method = "app"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"method":   method,
		"fallback": s.resolver.HasFallback(),
	})
}

// --- Run audit ---

func (s *Server) beginRun(kind store.Kind, repo, goal string) *store.Run {
	now := time.Now().UTC()
	run := &store.Run{
		ID:        uuid.New().String()[:8],
		Kind:      kind,
		Repo:      repo,
		Goal:      goal,
		Status:    store.StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateRun(run); err != nil {
		log.WithError(err).Error("recording run")
	}
	return run
}

func (s *Server) finishRun(run *store.Run, status store.Status, errText string) {
	run.Status = status
	run.Error = errText
	if err := s.store.UpdateRun(run); err != nil {
		log.WithError(err).Error("updating run")
	}
}

func (s *Server) recordStepEvents(runID string, execLog *model.ExecutionLog) {
	for i := range execLog.Steps {
		ev := &store.Event{
			RunID:     runID,
			Type:      "step",
			Data:      execLog.Steps[i].Summary(),
			CreatedAt: time.Now().UTC(),
		}
		if err := s.store.AddEvent(ev); err != nil {
			log.WithError(err).Error("recording run event")
		}
	}
}

// fallbackRepo returns the installation-credential repository client used
// for the per-operation permissions retry, or nil when no GitHub App is
// configured. The installation token is minted lazily on first use.
func (s *Server) fallbackRepo() executor.RepoService {
	if !s.resolver.HasFallback() {
		return nil
	}
	return &lazyFallback{resolver: s.resolver, newRepo: s.newRepo}
}

// --- Helpers ---

// requestToken extracts an explicit caller token from the Authorization
// header. Both "Bearer" and "token" schemes are accepted.
func requestToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	for _, prefix := range []string{"Bearer ", "token "} {
		if strings.HasPrefix(h, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(h, prefix))
		}
	}
	return ""
}

// errorStatus maps the error taxonomy to HTTP status codes.
func errorStatus(err error) int {
	var planErr *planner.PlanGenerationError
	var branchErr *executor.BranchSetupError
	switch {
	case ghx.IsAuth(err):
		return http.StatusUnauthorized
	case ghx.IsPermissionDenied(err):
		return http.StatusForbidden
	case ghx.IsNotFound(err):
		return http.StatusNotFound
	case ghx.IsWriteConflict(err), ghx.IsBranchExists(err):
		return http.StatusConflict
	case errors.As(err, &planErr):
		return http.StatusUnprocessableEntity
	case errors.As(err, &branchErr):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithError(err).Error("encoding response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
