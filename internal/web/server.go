package web

import (
	"context"
	"net/http"

	"golang.org/x/time/rate"

	"dupefinder/internal/config"
	"dupefinder/internal/hashcache"
	"dupefinder/internal/logger"
)

type Server struct {
	ctx     context.Context
	jobMgr  *JobManager
	config  config.Config
	cache   *hashcache.Cache
	logger  *logger.Logger
	limiter *rate.Limiter
}

// NewServer creates the HTTP front end. cache may be nil; jobs started by
// the server stop when ctx is cancelled.
func NewServer(ctx context.Context, jobMgr *JobManager, cfg config.Config, cache *hashcache.Cache, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Discard()
	}
	return &Server{
		ctx:     ctx,
		jobMgr:  jobMgr,
		config:  cfg,
		cache:   cache,
		logger:  log.With("web"),
		limiter: newLimiter(cfg.RateLimit),
	}
}

// newLimiter allows perSecond job submissions with a matching burst.
// Zero disables the limit.
func newLimiter(perSecond float64) *rate.Limiter {
	if perSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(perSecond), max(1, int(perSecond)))
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/api/detect", s.handleDetect)
	mux.HandleFunc("/api/scan", s.handleScan)
	mux.HandleFunc("/api/jobs", s.handleListJobs)
	mux.HandleFunc("/api/jobs/", s.handleJobAction)
	mux.HandleFunc("/ws", s.handleWebSocket)

	return s.loggingMiddleware(mux)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("%s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}
