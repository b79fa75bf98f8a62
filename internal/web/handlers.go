package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"dupefinder/internal/config"
	"dupefinder/internal/detect"
	"dupefinder/internal/pipeline"
	"dupefinder/internal/track"
)

const maxRequestBytes = 64 << 20

// RunOptions are the per-request overrides shared by detect and scan jobs.
type RunOptions struct {
	Parameters json.RawMessage `json:"parameters,omitempty"`
	Backend    string          `json:"backend,omitempty"`
	Strategies []string        `json:"strategies,omitempty"`
}

type DetectRequest struct {
	Tracks []track.Track `json:"tracks"`
	RunOptions
}

type ScanRequest struct {
	Dir string `json:"dir"`
	RunOptions
}

type JobResponse struct {
	ID          string         `json:"id"`
	Kind        JobKind        `json:"kind"`
	Source      string         `json:"source"`
	Status      JobStatus      `json:"status"`
	Progress    int            `json:"progress"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   string         `json:"created_at"`
	StartedAt   *string        `json:"started_at,omitempty"`
	CompletedAt *string        `json:"completed_at,omitempty"`
	Report      *detect.Report `json:"report,omitempty"`
}

// runFunc does the work of a job and reports progress in percent.
type runFunc func(ctx context.Context, progress func(int)) (*detect.Report, error)

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.limiter.Allow() {
		http.Error(w, "Too many jobs, retry later", http.StatusTooManyRequests)
		return
	}

	var req DetectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cfg, params, err := s.prepare(req.RunOptions)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	in := pipeline.Input{Tracks: req.Tracks, Params: params}
	job := s.startJob(KindDetect, fmt.Sprintf("%d tracks", len(req.Tracks)), func(ctx context.Context, progress func(int)) (*detect.Report, error) {
		return pipeline.Run(ctx, cfg, s.logger, s.cache, in, pipeline.Hooks{OnDetectProgress: progress})
	})
	s.logger.Info("Created job %s for %d tracks", job.ID, len(req.Tracks))

	writeJSON(w, http.StatusAccepted, s.jobToResponse(job, false))
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !s.limiter.Allow() {
		http.Error(w, "Too many jobs, retry later", http.StatusTooManyRequests)
		return
	}

	var req ScanRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	dir := config.ExpandHome(req.Dir)
	if dir == "" {
		dir = s.config.LibraryDir
	}
	if dir == "" {
		http.Error(w, "dir is required when no library_dir is configured", http.StatusBadRequest)
		return
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		http.Error(w, fmt.Sprintf("not a directory: %s", dir), http.StatusBadRequest)
		return
	}

	cfg, params, err := s.prepare(req.RunOptions)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	in := pipeline.Input{Dir: dir, Params: params}
	job := s.startJob(KindScan, dir, func(ctx context.Context, progress func(int)) (*detect.Report, error) {
		// Scanning takes the first 40%, detection the rest
		return pipeline.Run(ctx, cfg, s.logger, s.cache, in, pipeline.Hooks{
			OnScanProgress:   func(done, total int) { progress(done * 40 / total) },
			OnDetectProgress: func(p int) { progress(40 + p*60/100) },
		})
	})
	s.logger.Info("Created job %s for folder %s", job.ID, dir)

	writeJSON(w, http.StatusAccepted, s.jobToResponse(job, false))
}

// prepare applies the request overrides to the server config and resolves
// the detection parameters.
func (s *Server) prepare(opts RunOptions) (config.Config, detect.Parameters, error) {
	cfg := s.config
	if opts.Backend != "" {
		cfg.SimilarityBackend = opts.Backend
	}
	if len(opts.Strategies) > 0 {
		cfg.Strategies = opts.Strategies
	}

	params, err := detect.ParseParameters(opts.Parameters, cfg.Parameters())
	if err != nil {
		return cfg, params, err
	}
	if _, err := cfg.EngineOptions(nil); err != nil {
		return cfg, params, err
	}
	return cfg, params, nil
}

func (s *Server) startJob(kind JobKind, source string, run runFunc) Job {
	job := s.jobMgr.CreateJob(kind, source)
	go s.processJob(job.ID, run)
	return job
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	jobs := s.jobMgr.ListJobs()
	responses := make([]*JobResponse, len(jobs))
	for i, job := range jobs {
		responses[i] = s.jobToResponse(job, false)
	}

	writeJSON(w, http.StatusOK, responses)
}

func (s *Server) handleJobAction(w http.ResponseWriter, r *http.Request) {
	// Extract job ID from path: /api/jobs/{id} or /api/jobs/{id}/cancel
	path := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]

	// Handle GET /api/jobs/{id}
	if r.Method == http.MethodGet && len(parts) == 1 {
		job, err := s.jobMgr.GetJob(jobID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		writeJSON(w, http.StatusOK, s.jobToResponse(job, true))
		return
	}

	// Handle POST /api/jobs/{id}/cancel
	if r.Method == http.MethodPost && len(parts) == 2 && parts[1] == "cancel" {
		job, err := s.jobMgr.GetJob(jobID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		if job.Status.Done() {
			http.Error(w, fmt.Sprintf("job already %s", job.Status), http.StatusConflict)
			return
		}

		if job.Cancel != nil {
			job.Cancel()
		}

		s.jobMgr.UpdateJob(jobID, func(j *Job) {
			j.Status = StatusCancelled
		})

		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
		return
	}

	http.Error(w, "Invalid request", http.StatusBadRequest)
}

func (s *Server) processJob(jobID string, run runFunc) {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	// Store cancel function in job
	s.jobMgr.UpdateJob(jobID, func(j *Job) {
		j.Cancel = cancel
		j.Status = StatusRunning
	})

	// Cancelled before it started
	if job, err := s.jobMgr.GetJob(jobID); err != nil || job.Status != StatusRunning {
		return
	}

	s.logger.Info("Starting job %s", jobID)

	report, err := run(ctx, func(p int) {
		s.jobMgr.UpdateJob(jobID, func(j *Job) {
			if p > j.Progress {
				j.Progress = p
			}
		})
	})

	switch {
	case ctx.Err() != nil:
		s.logger.Info("Job %s cancelled", jobID)
		s.jobMgr.UpdateJob(jobID, func(j *Job) {
			j.Status = StatusCancelled
		})
	case err != nil:
		s.logger.Error("Job %s failed: %v", jobID, err)
		s.jobMgr.UpdateJob(jobID, func(j *Job) {
			j.Status = StatusFailed
			j.Error = err.Error()
		})
	default:
		s.jobMgr.UpdateJob(jobID, func(j *Job) {
			j.Report = report
			j.Progress = 100
			j.Status = StatusCompleted
		})
		s.logger.Info("Job %s completed: %d duplicate groups", jobID, report.DuplicateGroups)
	}
}

func (s *Server) jobToResponse(job Job, withReport bool) *JobResponse {
	resp := &JobResponse{
		ID:        job.ID,
		Kind:      job.Kind,
		Source:    job.Source,
		Status:    job.Status,
		Progress:  job.Progress,
		Error:     job.Error,
		CreatedAt: job.CreatedAt.Format("2006-01-02 15:04:05"),
	}

	if job.StartedAt != nil {
		started := job.StartedAt.Format("2006-01-02 15:04:05")
		resp.StartedAt = &started
	}

	if job.CompletedAt != nil {
		completed := job.CompletedAt.Format("2006-01-02 15:04:05")
		resp.CompletedAt = &completed
	}

	if withReport {
		resp.Report = job.Report
	}

	return resp
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
