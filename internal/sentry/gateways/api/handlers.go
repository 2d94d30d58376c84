package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/haukened/url-sentry/internal/sentry/common/utils"
	"github.com/haukened/url-sentry/internal/sentry/domain"
	"github.com/haukened/url-sentry/internal/sentry/repos/blocklist"
	"github.com/haukened/url-sentry/internal/sentry/repos/journal"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type classifyRequest struct {
	URL string `json:"url"`
}

type classifyBatchRequest struct {
	URLs []string `json:"urls"`
}

type classifyResponse struct {
	Result           domain.ClassificationResult `json:"result"`
	RegisteredDomain string                      `json:"registered_domain,omitempty"`
	ReportSuggested  bool                        `json:"report_suggested"`
	DetectionID      string                      `json:"detection_id,omitempty"`
}

type blockRequest struct {
	Domain string `json:"domain"`
}

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "starting"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res := s.classifier.Classify(r.Context(), req.URL)
	respondJSON(w, http.StatusOK, s.journal(res))
}

func (s *Server) handleClassifyBatch(w http.ResponseWriter, r *http.Request) {
	var req classifyBatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.URLs) == 0 {
		respondWithError(w, "urls must not be empty", http.StatusBadRequest)
		return
	}
	if len(req.URLs) > s.maxBatch {
		respondWithError(w, "too many urls in one batch", http.StatusRequestEntityTooLarge)
		return
	}

	results := s.classifier.ClassifyBatch(r.Context(), req.URLs, s.batchLimit)
	out := make([]classifyResponse, len(results))
	for i, res := range results {
		out[i] = s.journal(res)
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": out})
}

// journal records res and decorates it for the response. A journal failure is
// logged and does not fail the request.
func (s *Server) journal(res domain.ClassificationResult) classifyResponse {
	out := classifyResponse{Result: res, ReportSuggested: res.IsFraud()}
	if res.Verdict != domain.VerdictInvalidFormat {
		out.RegisteredDomain = utils.RegisteredDomain(domain.HostOnly(res.Domain))
	}
	det, err := s.detections.Record(res)
	if err != nil {
		s.logger.Error(map[string]any{"url": res.URL, "error": err}, "failed to journal detection")
		return out
	}
	out.DetectionID = det.ID
	return out
}

func (s *Server) handleSubmitReport(w http.ResponseWriter, r *http.Request) {
	var req journal.Report
	if !decodeJSON(w, r, &req) {
		return
	}
	rep, err := s.reports.Submit(req)
	switch {
	case errors.Is(err, journal.ErrInvalidReport):
		respondWithError(w, err.Error(), http.StatusBadRequest)
	case err != nil:
		s.logger.Error(map[string]any{"error": err}, "failed to store report")
		respondWithError(w, "could not store report", http.StatusInternalServerError)
	default:
		s.logger.Info(map[string]any{"url": rep.URL}, "block request received")
		respondJSON(w, http.StatusCreated, rep)
	}
}

func (s *Server) handleListDetections(w http.ResponseWriter, r *http.Request) {
	filter, err := journal.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		respondWithError(w, err.Error(), http.StatusBadRequest)
		return
	}
	dets, err := s.detections.List(filter)
	if err != nil {
		s.logger.Error(map[string]any{"error": err}, "failed to read detections")
		respondWithError(w, "could not read detections", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"detections": dets})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	st, err := s.detections.Stats()
	if err != nil {
		s.logger.Error(map[string]any{"error": err}, "failed to read detection stats")
		respondWithError(w, "could not read stats", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"detections": st,
		"blocklist":  s.blocklist.Stats(),
	})
}

func (s *Server) handleListBlocklist(w http.ResponseWriter, _ *http.Request) {
	names, err := s.blocklist.List()
	if err != nil {
		s.logger.Error(map[string]any{"error": err}, "failed to list blocklist")
		respondWithError(w, "could not list blocklist", http.StatusInternalServerError)
		return
	}
	if names == nil {
		names = []string{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"domains": names})
}

func (s *Server) handleBlock(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	name := utils.CanonicalDomain(req.Domain)
	if !s.blocklistWrite(w, s.blocklist.Add(name), name) {
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"domain": name})
}

func (s *Server) handleUnblock(w http.ResponseWriter, r *http.Request) {
	name := utils.CanonicalDomain(mux.Vars(r)["domain"])
	if !s.blocklistWrite(w, s.blocklist.Remove(name), name) {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// blocklistWrite maps a blocklist write error onto the response. It reports
// whether the write succeeded.
func (s *Server) blocklistWrite(w http.ResponseWriter, err error, name string) bool {
	switch {
	case err == nil:
		return true
	case errors.Is(err, blocklist.ErrInvalidDomain):
		respondWithError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, blocklist.ErrAlreadyPresent):
		respondWithError(w, name+" is already blocked", http.StatusConflict)
	case errors.Is(err, blocklist.ErrNotPresent):
		respondWithError(w, name+" is not blocked", http.StatusNotFound)
	default:
		s.logger.Error(map[string]any{"domain": name, "error": err}, "blocklist write failed")
		respondWithError(w, "blocklist write failed", http.StatusInternalServerError)
	}
	return false
}

func (s *Server) handleListReports(w http.ResponseWriter, _ *http.Request) {
	reps, err := s.reports.List()
	if err != nil {
		s.logger.Error(map[string]any{"error": err}, "failed to read reports")
		respondWithError(w, "could not read reports", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"reports": reps})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		respondWithError(w, "Invalid request payload", http.StatusBadRequest)
		return false
	}
	return true
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondWithError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, ErrorResponse{Message: message})
}
