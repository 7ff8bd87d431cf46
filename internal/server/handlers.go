package server

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/aristath/lottoscan/internal/blocks"
	"github.com/aristath/lottoscan/internal/progress"
	"github.com/aristath/lottoscan/internal/ranking"
	"github.com/aristath/lottoscan/internal/work"
	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/mem"
)

const healthTimeout = 5 * time.Second

// AnalysisStatus is the list view of one analysis
type AnalysisStatus struct {
	Name            string      `json:"name"`
	RunID           string      `json:"run_id"`
	Status          work.Status `json:"status"`
	State           string      `json:"state"`
	Processed       string      `json:"processed"`
	Total           string      `json:"total"`
	Percent         float64     `json:"percent"`
	BlocksRemaining int         `json:"blocks_remaining"`
	RankSize        int         `json:"rank_size"`
	Degraded        bool        `json:"degraded"`
	Error           string      `json:"error,omitempty"`
}

// BlockView renders a block with decimal string bounds
type BlockView struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Cursor    string `json:"cursor,omitempty"`
	Processed string `json:"processed"`
	Complete  bool   `json:"complete"`
}

// RankView is one ranked subset
type RankView struct {
	Subset []int         `json:"subset"`
	Score  ranking.Score `json:"score"`
}

// AnalysisDetail is the full view of one analysis
type AnalysisDetail struct {
	work.Info
	Blocks []BlockView `json:"blocks"`
	Rank   []RankView  `json:"rank"`
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":     "healthy",
		"version":    s.version,
		"service":    "lottoscan",
		"goroutines": runtime.NumGoroutine(),
	}
	if s.registry != nil {
		response["analyses"] = s.registry.Count()
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		response["memory_used_percent"] = vm.UsedPercent
	}

	status := http.StatusOK
	if s.storage != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.storage.HealthCheck(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Storage health check failed")
			response["status"] = "degraded"
			response["storage"] = err.Error()
			status = http.StatusServiceUnavailable
		} else {
			response["storage"] = "ok"
		}
	}

	s.writeJSON(w, status, response)
}

// handleAnalyses handles GET /api/analyses
func (s *Server) handleAnalyses(w http.ResponseWriter, r *http.Request) {
	list := []AnalysisStatus{}
	if s.registry != nil {
		for _, job := range s.registry.List() {
			list = append(list, statusOf(job))
		}
	}

	s.writeJSON(w, http.StatusOK, envelope(list))
}

// handleAnalysis handles GET /api/analyses/{name}
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var job *work.Job
	if s.registry != nil {
		job = s.registry.Get(name)
	}
	if job == nil {
		s.writeError(w, http.StatusNotFound, "analysis not found")
		return
	}

	list := job.Scan.Blocks()
	entries := job.Scan.Rank().Entries()
	detail := AnalysisDetail{
		Info:   job.Info(),
		Blocks: make([]BlockView, len(list)),
		Rank:   make([]RankView, len(entries)),
	}
	for i, b := range list {
		detail.Blocks[i] = viewOf(b)
	}
	for i, e := range entries {
		detail.Rank[i] = RankView{Subset: e.Subset, Score: e.Score}
	}

	s.writeJSON(w, http.StatusOK, envelope(detail))
}

func statusOf(job *work.Job) AnalysisStatus {
	info := job.Info()
	sum := info.Summary
	return AnalysisStatus{
		Name:            info.Name,
		RunID:           info.ID,
		Status:          info.Status,
		State:           sum.State.String(),
		Processed:       sum.Processed.String(),
		Total:           sum.Total.String(),
		BlocksRemaining: sum.Blocks - sum.BlocksComplete,
		RankSize:        sum.RankSize,
		Degraded:        sum.Degraded,
		Percent:         progress.Update{Current: sum.Processed, Total: sum.Total}.Percent(),
		Error:           info.Error,
	}
}

func viewOf(b *blocks.Block) BlockView {
	v := BlockView{
		Start:     b.Start.String(),
		End:       b.End.String(),
		Processed: b.Processed().String(),
		Complete:  b.IsComplete(),
	}
	if b.Cursor != nil {
		v.Cursor = b.Cursor.String()
	}
	return v
}

func envelope(data interface{}) map[string]interface{} {
	return map[string]interface{}{
		"data": data,
		"metadata": map[string]interface{}{
			"timestamp": time.Now().Format(time.RFC3339),
		},
	}
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]interface{}{"error": message})
}
