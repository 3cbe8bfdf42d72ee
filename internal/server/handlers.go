package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/susume/internal/models"
	"github.com/hyperjump/susume/internal/storage"
)

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req models.RecommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.SubjectID == "" && req.Profile == "" {
		s.respondError(w, http.StatusBadRequest, "subject_id or profile is required")
		return
	}

	result, err := s.engine.Recommend(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNoCandidates):
			s.respondError(w, http.StatusServiceUnavailable, "No candidate items available")
		case errors.Is(err, models.ErrNoDefaultsConfigured):
			// Nothing to recommend and nothing to fall back to. Not a
			// client error: return an empty, degraded result.
			s.respondJSON(w, http.StatusOK, &models.RecommendationResult{
				SubjectID: req.SubjectID,
				Results:   []*models.ScoredItem{},
				Degraded:  true,
			})
		default:
			s.logger.Error("Recommendation failed", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, "Recommendation failed")
		}
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleRegisterSubject(w http.ResponseWriter, r *http.Request) {
	var input models.SubjectInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if input.Profile == "" {
		s.respondError(w, http.StatusBadRequest, "profile is required")
		return
	}

	subject, err := s.engine.RegisterSubject(r.Context(), &input)
	if err != nil {
		if errors.Is(err, models.ErrEmbeddingService) {
			s.respondError(w, http.StatusBadGateway, "Embedding service unavailable")
			return
		}
		s.logger.Error("Subject registration failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Subject registration failed")
		return
	}
	s.respondJSON(w, http.StatusCreated, subject)
}

func (s *Server) handleGetSubject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	subject, err := s.storage.GetSubject(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "Subject not found")
			return
		}
		s.logger.Error("Failed to get subject", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Failed to get subject")
		return
	}
	s.respondJSON(w, http.StatusOK, subject)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	item, err := s.storage.GetItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "Item not found")
			return
		}
		s.logger.Error("Failed to get item", zap.String("id", id), zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Failed to get item")
		return
	}
	s.respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleSimilarItems(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	k := 0
	if kStr := r.URL.Query().Get("k"); kStr != "" {
		parsed, err := strconv.Atoi(kStr)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "Invalid k parameter")
			return
		}
		k = parsed
	}

	results, err := s.engine.SimilarItems(r.Context(), id, k)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrNotFound):
			s.respondError(w, http.StatusNotFound, "Item not found")
		case errors.Is(err, models.ErrNoCandidates):
			s.respondError(w, http.StatusServiceUnavailable, "No candidate items available")
		default:
			s.logger.Error("Similar items lookup failed", zap.String("id", id), zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, "Similar items lookup failed")
		}
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"item_id": id,
		"results": results,
	})
}

func (s *Server) handleCatalogRefresh(w http.ResponseWriter, r *http.Request) {
	imported := 0
	if path := s.config.Catalog.ImportPath; path != "" {
		if _, err := os.Stat(path); err == nil {
			nItems, nSets, err := storage.ImportCatalogFile(r.Context(), s.storage, path)
			if err != nil {
				s.logger.Error("Catalog import failed", zap.String("path", path), zap.Error(err))
				s.respondError(w, http.StatusInternalServerError, "Catalog import failed")
				return
			}
			imported = nItems
			s.logger.Info("catalog imported",
				zap.String("path", path), zap.Int("items", nItems), zap.Int("default_sets", nSets))
		}
	}
	if err := s.catalog.Refresh(r.Context()); err != nil {
		s.logger.Error("Catalog refresh failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Catalog refresh failed")
		return
	}
	snap := s.catalog.Current()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"version":  snap.Version,
		"items":    snap.Size(),
		"imported": imported,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjects, err := s.storage.CountSubjects(ctx)
	if err != nil {
		s.logger.Error("Failed to count subjects", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Failed to gather status")
		return
	}
	items, err := s.storage.CountItems(ctx)
	if err != nil {
		s.logger.Error("Failed to count items", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Failed to gather status")
		return
	}
	sets, err := s.storage.ListDefaultSets(ctx)
	if err != nil {
		s.logger.Error("Failed to list default sets", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Failed to gather status")
		return
	}
	diskBytes, err := storage.DiskUsageBytes(s.config.Storage.DatabasePath)
	if err != nil {
		s.logger.Warn("Failed to compute disk usage", zap.Error(err))
	}

	setNames := make([]string, len(sets))
	for i, set := range sets {
		setNames[i] = set.Name
	}

	snap := s.catalog.Current()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"subjects":     subjects,
		"items":        items,
		"default_sets": setNames,
		"disk_bytes":   diskBytes,
		"catalog": map[string]interface{}{
			"version":    snap.Version,
			"items":      snap.Size(),
			"created_at": snap.CreatedAt.Format(time.RFC3339),
		},
		"config": map[string]interface{}{
			"embedding_dimensions": s.config.Embedding.Dimensions,
			"fallback_threshold":   s.config.Fallback.Threshold,
			"default_k":            s.config.Recommend.DefaultK,
			"database_path":        s.config.Storage.DatabasePath,
		},
	})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
