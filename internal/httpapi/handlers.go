package httpapi

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/forPelevin/vodclips/internal/artifacts"
	"github.com/forPelevin/vodclips/internal/logging"
	"github.com/forPelevin/vodclips/internal/pipeline"
	"github.com/forPelevin/vodclips/internal/ports"
)

const defaultJobsLimit = 50

func (s *Server) jobID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "jobID")
	if err := pipeline.ValidateJobID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), s.logger)
		return "", false
	}
	return id, true
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit := defaultJobsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer", s.logger)
			return
		}
		limit = n
	}
	list, err := s.jobs.List(r.Context(), limit)
	if err != nil {
		s.writeLookupError(w, "jobs", err)
		return
	}
	writeJSON(w, http.StatusOK, list, s.logger)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	job, err := s.jobs.Get(r.Context(), id)
	if err != nil {
		s.writeLookupError(w, "job "+id, err)
		return
	}
	writeJSON(w, http.StatusOK, job, s.logger)
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	a, err := artifacts.LoadAnalysis(r.Context(), s.store, id)
	if err != nil {
		s.writeLookupError(w, "analysis for job "+id, err)
		return
	}
	writeJSON(w, http.StatusOK, a, s.logger)
}

func (s *Server) handleGetTranscript(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	tr, err := artifacts.LoadTranscript(r.Context(), s.store, id)
	if err != nil {
		s.writeLookupError(w, "transcript for job "+id, err)
		return
	}
	writeJSON(w, http.StatusOK, tr, s.logger)
}

func (s *Server) handleGetManifest(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	m, err := artifacts.LoadManifest(r.Context(), s.store, id)
	if err != nil {
		s.writeLookupError(w, "clips for job "+id, err)
		return
	}
	writeJSON(w, http.StatusOK, m, s.logger)
}

type clipPreview struct {
	ClipIndex      int     `json:"clip_index"`
	Duration       float64 `json:"duration"`
	StartTime      float64 `json:"start_time"`
	CompositeScore float64 `json:"composite_score"`
	FileSizeMB     float64 `json:"file_size_mb"`
	HasSRT         bool    `json:"has_srt"`
}

type previewBody struct {
	JobID      string        `json:"job_id"`
	TotalClips int           `json:"total_clips"`
	Clips      []clipPreview `json:"clips"`
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	m, err := artifacts.LoadManifest(r.Context(), s.store, id)
	if err != nil {
		s.writeLookupError(w, "clips for job "+id, err)
		return
	}
	body := previewBody{JobID: id, TotalClips: len(m.Clips), Clips: make([]clipPreview, 0, len(m.Clips))}
	for _, c := range m.Clips {
		body.Clips = append(body.Clips, clipPreview{
			ClipIndex:      c.ClipIndex,
			Duration:       c.Duration,
			StartTime:      c.StartTime,
			CompositeScore: c.CompositeScore,
			FileSizeMB:     c.FileSizeMB,
			HasSRT:         c.HasSRT,
		})
	}
	writeJSON(w, http.StatusOK, body, s.logger)
}

func (s *Server) handleDownloadClip(w http.ResponseWriter, r *http.Request) {
	s.download(w, r, "video/mp4", "mp4", artifacts.ClipKey)
}

func (s *Server) handleDownloadSRT(w http.ResponseWriter, r *http.Request) {
	s.download(w, r, "application/x-subrip", "srt", artifacts.SRTKey)
}

func (s *Server) download(w http.ResponseWriter, r *http.Request, contentType, ext string, key func(string, int) string) {
	id, ok := s.jobID(w, r)
	if !ok {
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, "clip index must be a non-negative integer", s.logger)
		return
	}
	k := key(id, index)
	rc, err := s.store.Get(r.Context(), k)
	if errors.Is(err, ports.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s not found for clip %d of job %s", ext, index, id), s.logger)
		return
	}
	if err != nil {
		s.logger.Error("failed to open object", slog.String("key", k), logging.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read object", s.logger)
		return
	}
	defer func() { _ = rc.Close() }()

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="clip_%d_%s.%s"`, index, id, ext))
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("download interrupted", slog.String("key", k), logging.Error(err))
	}
}
