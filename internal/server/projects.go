package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"sales-call-insights-go/internal/actionable"
	"sales-call-insights-go/internal/aggregator"
	"sales-call-insights-go/internal/logger"
	"sales-call-insights-go/internal/store"
	"sales-call-insights-go/internal/types"
)

func (s *Server) handleObjectionCounts(w http.ResponseWriter, r *http.Request) {
	log := logger.New().WithRequest(r).WithField("handler", "objection-counts")
	project := chi.URLParam(r, "project")

	pk, err := s.d.Knowledge.GetProject(r.Context(), project)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "Project not found")
		return
	}
	if err != nil {
		log.WithError(err).Error("failed to fetch project")
		writeError(w, r, http.StatusInternalServerError, "Failed to fetch objection counts")
		return
	}

	recs, err := s.d.Records.ListRecordings(r.Context(), store.RecordingFilter{Project: project})
	if err != nil {
		log.WithError(err).Error("failed to list project recordings")
		writeError(w, r, http.StatusInternalServerError, "Failed to fetch objection counts")
		return
	}

	sum := aggregator.Aggregate(project, pk.ObjectionCounts, recs)
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"objectionCounts": sum.ObjectionCounts,
		"topObjections":   sum.TopObjections,
		"summary":         sum,
		"action":          actionable.Generate(sum),
	})
}

func (s *Server) handleGetProsCons(w http.ResponseWriter, r *http.Request) {
	project := strings.TrimSpace(r.URL.Query().Get("project"))
	if project == "" {
		writeJSON(w, r, http.StatusBadRequest, map[string]string{"message": "Project is required"})
		return
	}

	pk, err := s.d.Knowledge.GetProject(r.Context(), project)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, r, http.StatusOK, types.ProjectKnowledge{
			Project:         project,
			Pros:            []string{},
			Objections:      []string{},
			ObjectionCounts: map[string]int{},
		})
		return
	}
	if err != nil {
		logger.New().WithRequest(r).WithError(err).Error("failed to fetch pros/cons")
		writeJSON(w, r, http.StatusInternalServerError, map[string]string{"message": "Server error"})
		return
	}
	writeJSON(w, r, http.StatusOK, pk)
}

type prosConsRequest struct {
	Project    string   `json:"project"`
	Pros       []string `json:"pros"`
	Objections []string `json:"objections"`
}

func (s *Server) handleSaveProsCons(w http.ResponseWriter, r *http.Request) {
	log := logger.New().WithRequest(r).WithField("handler", "save-pros-cons")

	var req prosConsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, r, http.StatusBadRequest, map[string]string{"message": "invalid request body"})
		return
	}
	req.Project = strings.TrimSpace(req.Project)
	if req.Project == "" {
		writeJSON(w, r, http.StatusBadRequest, map[string]string{"message": "Project is required"})
		return
	}

	err := s.d.Knowledge.UpsertProject(r.Context(), types.ProjectKnowledge{
		Project:    req.Project,
		Pros:       req.Pros,
		Objections: req.Objections,
	})
	if err != nil {
		log.WithError(err).Error("failed to save pros/cons")
		writeJSON(w, r, http.StatusInternalServerError, map[string]string{"message": "Server error"})
		return
	}

	pk, err := s.d.Knowledge.GetProject(r.Context(), req.Project)
	if err != nil {
		log.WithError(err).Error("failed to reload pros/cons")
		writeJSON(w, r, http.StatusInternalServerError, map[string]string{"message": "Server error"})
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]interface{}{
		"message": "Pros & objections saved",
		"data":    pk,
	})
}
