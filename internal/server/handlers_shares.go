package server

import (
	"fmt"
	"net/http"
	"strings"

	"depot/internal/api"
	"depot/internal/models"
)

func (s *Server) handleCreateShare(w http.ResponseWriter, r *http.Request, user *models.User) {
	fileID, ok := s.pathFileIDOrBadRequest(w, r)
	if !ok {
		return
	}

	share, err := s.shareService.CreateShare(r.Context(), user, fileID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, share)
}

func (s *Server) handleUnshare(w http.ResponseWriter, r *http.Request, user *models.User) {
	fileID, ok := s.pathFileIDOrBadRequest(w, r)
	if !ok {
		return
	}

	revoked, err := s.shareService.Unshare(r.Context(), user, fileID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.UnshareResponse{Revoked: revoked})
}

func (s *Server) handleCreateGrant(w http.ResponseWriter, r *http.Request, user *models.User) {
	fileID, ok := s.pathFileIDOrBadRequest(w, r)
	if !ok {
		return
	}

	var req api.GrantRequest
	if !s.decodeJSONReq(w, r, &req) {
		return
	}

	grant, err := s.shareService.Grant(r.Context(), user, fileID, req.Username)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, api.GrantResponse{
		FileID:     grant.FileID,
		SharedWith: grant.SharedWith,
		SharedAt:   grant.SharedAt,
	})
}

func (s *Server) handleListShared(w http.ResponseWriter, r *http.Request, user *models.User) {
	entries, err := s.shareService.SharedWith(r.Context(), user)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

// handleSharedDownload serves public link downloads without auth.
func (s *Server) handleSharedDownload(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.PathValue("token"))
	if !validateShareToken(token) {
		s.writeErrorReq(w, r, http.StatusNotFound,
			notFoundCode(fmt.Errorf("share not found"), ErrCodeShareNotFound))
		return
	}

	share, file, err := s.shareService.ResolveToken(r.Context(), token)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	rc, err := s.fileService.OpenShared(r.Context(), file)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer rc.Close()

	s.shareService.RecordDownload(r.Context(), share)
	s.streamFile(w, file, rc)
}
