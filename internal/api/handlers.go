package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/distro-catalog/internal/catalog"
)

type listResponse struct {
	Distros    []catalog.Record `json:"distros"`
	Total      int              `json:"total"`
	Page       int              `json:"page"`
	PageSize   int              `json:"page_size"`
	TotalPages int              `json:"total_pages"`
}

func (s *Server) listDistros(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r.URL.Query())
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	records, err := s.service.Catalog(r.Context(), q.ForceRefresh)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	page, total := q.apply(records)
	s.writeCacheableJSON(w, r, listResponse{
		Distros:    page,
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: totalPages(total, q.PageSize),
	})
}

func (s *Server) getDistro(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.Lookup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeCacheableJSON(w, r, rec)
}

func (s *Server) getLogo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rec, err := s.service.Lookup(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if rec.Logo == "" {
		s.writeError(w, http.StatusNotFound, "logo not found")
		return
	}
	s.writeCacheableJSON(w, r, map[string]string{
		"id":   rec.ID,
		"name": rec.Name,
		"logo": rec.Logo,
	})
}

// refresh drops the cache and rebuilds it in the background. The response
// does not wait for the crawl.
func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	if !s.service.Invalidate(r.Context()) {
		s.writeError(w, http.StatusInternalServerError, "failed to invalidate cache")
		return
	}
	reqID := requestIDFrom(r.Context())
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		records, err := s.service.Catalog(s.baseCtx, false)
		if err != nil {
			s.logger.Error("background refresh failed", zap.String("request_id", reqID), zap.Error(err))
			return
		}
		s.logger.Info("background refresh finished", zap.String("request_id", reqID), zap.Int("records", len(records)))
	}()
	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"status":  "accepted",
		"message": "cache refresh started in background",
	})
}

type cacheInfoResponse struct {
	Status     string `json:"status"`
	Backend    string `json:"backend"`
	Timestamp  string `json:"timestamp,omitempty"`
	Expiry     string `json:"expiry,omitempty"`
	Count      int    `json:"count"`
	TTLSeconds int    `json:"ttl_seconds,omitempty"`
}

func (s *Server) cacheInfo(w http.ResponseWriter, r *http.Request) {
	info, ok := s.service.CacheInfo(r.Context())
	if !ok {
		s.writeJSON(w, http.StatusOK, cacheInfoResponse{Status: "empty", Backend: s.service.Backend()})
		return
	}
	status := "expired"
	if info.Valid {
		status = "valid"
	}
	s.writeJSON(w, http.StatusOK, cacheInfoResponse{
		Status:     status,
		Backend:    info.Backend,
		Timestamp:  info.Timestamp.UTC().Format(time.RFC3339),
		Expiry:     info.Expiry.UTC().Format(time.RFC3339),
		Count:      info.Count,
		TTLSeconds: info.TTLSeconds,
	})
}
