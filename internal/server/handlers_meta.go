package server

import (
	"net/http"
	"strconv"
	"strings"

	"depot/internal/api"
	"depot/internal/format"
	"depot/internal/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user *models.User) {
	stats, err := s.store.GetUsage(r.Context(), user.Username)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.writeJSON(w, http.StatusOK, api.UsageResponse{
		Username:       user.Username,
		Role:           user.Role,
		QuotaBytes:     stats.QuotaBytes,
		UsedBytes:      stats.UsedBytes,
		FileCount:      stats.FileCount,
		DuplicateCount: stats.DuplicateCount,
		LogicalBytes:   stats.LogicalBytes,
		SavedBytes:     stats.SavedBytes,
		UsedDisplay:    format.MB(stats.UsedBytes),
		QuotaDisplay:   format.MB(stats.QuotaBytes),
		UsedPercent:    format.Percent(stats.UsedBytes, stats.QuotaBytes),
	})
}

func (s *Server) handleAdminGC(w http.ResponseWriter, r *http.Request, user *models.User) {
	dryRun := false
	if raw := strings.TrimSpace(r.URL.Query().Get("dry_run")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest,
				badRequestCode(err, ErrCodeInvalidQuery))
			return
		}
		dryRun = parsed
	}

	resp, err := s.fileService.GC(r.Context(), dryRun)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}
