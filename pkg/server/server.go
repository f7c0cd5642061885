package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/elonfeng/realitycheck/internal/store"
	"github.com/elonfeng/realitycheck/pkg/check"
	"github.com/elonfeng/realitycheck/pkg/scoring"
	"github.com/elonfeng/realitycheck/pkg/source"
)

const maxRequestBody = 64 << 10

// Server provides the HTTP API.
type Server struct {
	runner       *check.Runner
	store        store.Store
	defaultDepth scoring.Depth
	runTimeout   time.Duration
	port         int
	logger       *zap.Logger
}

// Options configures a Server. Store may be nil when the persistent cache
// is disabled.
type Options struct {
	Store        store.Store
	DefaultDepth scoring.Depth
	RunTimeout   time.Duration
	Port         int
	Logger       *zap.Logger
}

// New creates a new HTTP server.
func New(runner *check.Runner, opts Options) *Server {
	if opts.Port == 0 {
		opts.Port = 8080
	}
	if opts.DefaultDepth == "" {
		opts.DefaultDepth = scoring.DepthQuick
	}
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Server{
		runner:       runner,
		store:        opts.Store,
		defaultDepth: opts.DefaultDepth,
		runTimeout:   opts.RunTimeout,
		port:         opts.Port,
		logger:       opts.Logger,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/v1/sources", s.handleSources)
	mux.HandleFunc("/api/v1/check", s.handleCheck)
	return mux
}

// ListenAndServe starts the HTTP server and shuts it down when ctx ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("server listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	counts := map[source.SourceType]int{}
	if s.store != nil {
		c, err := s.store.CountBySource(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		counts = c
	}

	enabled := make(map[source.SourceType]bool)
	for _, src := range s.runner.Sources(scoring.DepthDeep) {
		enabled[src.Name()] = true
	}
	quick := make(map[source.SourceType]bool)
	for _, st := range scoring.DepthQuick.Sources() {
		quick[st] = true
	}

	type sourceInfo struct {
		Name    string `json:"name"`
		Enabled bool   `json:"enabled"`
		Quick   bool   `json:"quick"`
		Cached  int    `json:"cached_queries"`
	}

	infos := make([]sourceInfo, 0, len(source.AllSourceTypes()))
	for _, st := range source.AllSourceTypes() {
		infos = append(infos, sourceInfo{
			Name:    string(st),
			Enabled: enabled[st],
			Quick:   quick[st],
			Cached:  counts[st],
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  infos,
		"count": len(infos),
	})
}

type checkRequest struct {
	Idea  string `json:"idea"`
	Depth string `json:"depth"`
}

type checkResponse struct {
	Report        *scoring.Report `json:"report"`
	Fallback      bool            `json:"fallback"`
	TopCompetitor string          `json:"top_competitor"`
	Error         string          `json:"error,omitempty"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req checkRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Idea) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": check.ErrEmptyIdea.Error()})
		return
	}

	depth := s.defaultDepth
	if req.Depth != "" {
		depth = scoring.ParseDepth(req.Depth)
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.runTimeout)
	defer cancel()

	res := s.runner.Check(ctx, req.Idea, depth)
	out := res.Outputs()
	resp := checkResponse{
		Report:        res.Report,
		Fallback:      res.Fallback(),
		TopCompetitor: out.TopCompetitor,
	}
	if res.Err != nil {
		s.logger.Warn("check failed", zap.Error(res.Err))
		resp.Error = res.Err.Error()
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
