package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/vecshard/internal/models"
	"github.com/hyperjump/vecshard/internal/storage"
	"github.com/hyperjump/vecshard/internal/store"
)

// TextFingerprint derives a content fingerprint for text stored without one.
func TextFingerprint(text string) string {
	return strconv.FormatUint(xxhash.Sum64String(text), 16)
}

// vectorFor returns vec, or the embedding of text when vec is empty and text is set.
func (s *Server) vectorFor(ctx context.Context, vec []float32, text string) ([]float32, error) {
	if len(vec) > 0 || text == "" {
		return vec, nil
	}
	if s.embedder == nil {
		return nil, &store.ValidationError{Field: "text", Reason: "text embedding is not enabled"}
	}
	return s.embedder.Embed(ctx, text)
}

func (s *Server) handleStoreEntry(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	var input models.EntryInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if input.Fingerprint == "" && input.Text != "" {
		input.Fingerprint = TextFingerprint(input.Text)
	}
	vec, err := s.vectorFor(r.Context(), input.Vector, input.Text)
	if err != nil {
		s.respondStoreError(w, "embed", err)
		return
	}
	s.logger.Debug("store request", zap.String("project_id", project), zap.String("fingerprint", input.Fingerprint))
	id, err := s.store.Store(r.Context(), project, input.Fingerprint, vec, input.Metadata)
	if err != nil {
		s.respondStoreError(w, "store", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) handleBatchStore(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	var batch models.Batch
	if err := json.NewDecoder(r.Body).Decode(&batch); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.logger.Debug("batch store request", zap.String("project_id", project), zap.Int("entries", batch.Len()))
	ids, err := s.store.BatchStore(r.Context(), project, batch)
	if err != nil {
		s.respondStoreError(w, "batch store", err)
		return
	}
	s.respondJSON(w, http.StatusCreated, map[string][]string{"ids": ids})
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	id := chi.URLParam(r, "id")
	deleted, err := s.store.Delete(r.Context(), project, id)
	if err != nil {
		s.respondStoreError(w, "delete", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (s *Server) handleDeleteProject(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	n, err := s.store.DeleteProject(r.Context(), project)
	if err != nil {
		s.respondStoreError(w, "delete project", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	limit, err := query.Normalize(s.config.Store.DefaultSearchLimit, s.config.Store.MaxSearchLimit)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	vec, err := s.vectorFor(r.Context(), query.Vector, query.Text)
	if err != nil {
		s.respondStoreError(w, "embed", err)
		return
	}

	start := time.Now()
	hits, err := s.store.Search(r.Context(), project, vec, limit, query.Threshold)
	if err != nil {
		s.respondStoreError(w, "search", err)
		return
	}
	s.respondJSON(w, http.StatusOK, &models.SearchResponse{
		ProjectID: project,
		Results:   hits,
		Total:     len(hits),
		QueryTime: time.Since(start).Milliseconds(),
	})
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"project_id": project,
		"count":      s.store.Count(project),
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	project := chi.URLParam(r, "project")
	n, err := s.store.Reload(r.Context(), project)
	if err != nil {
		s.respondStoreError(w, "reload", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int{"loaded": n})
}

func (s *Server) handleShardStats(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"shards": s.store.ShardStats()})
}

func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	res, err := s.store.Rebalance(r.Context())
	if err != nil {
		s.respondStoreError(w, "rebalance", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]int64{
		"moved":       int64(res.Moved),
		"duration_ms": res.Duration.Milliseconds(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"shard_count": s.store.ShardCount(),
		"pending":     s.store.Pending(),
		"entries":     s.store.Len(),
		"backend":     s.config.Storage.Backend,
	}
	if s.config.Storage.Backend == storage.BackendSQLite {
		if diskBytes, err := storage.SQLiteDiskUsage(s.config.Storage.DatabasePath); err == nil {
			resp["disk_usage_bytes"] = diskBytes
		}
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// respondStoreError maps store error classes to HTTP statuses.
func (s *Server) respondStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, store.ErrValidation):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrPersistence):
		s.logger.Warn(op+" failed", zap.Error(err))
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error(op+" failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
