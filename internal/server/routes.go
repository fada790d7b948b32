package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"depot/internal/models"
	"depot/internal/store"
)

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	// Health check.
	mux.HandleFunc("GET /health", s.handleHealth)

	// Sessions.
	mux.HandleFunc("POST /v1/auth/login", s.handleAuthLogin)
	mux.HandleFunc("POST /v1/auth/logout", s.handleAuthLogout)
	mux.HandleFunc("GET /v1/me", s.requireUser(s.handleMe))

	// Files.
	mux.HandleFunc("POST /v1/files", s.requireUser(s.rateLimited("upload", s.handleUploadBatch)))
	mux.HandleFunc("GET /v1/files", s.requireUser(s.handleListFiles))
	mux.HandleFunc("GET /v1/files/{id}/content", s.requireUser(s.rateLimited("download", s.handleDownload)))
	mux.HandleFunc("DELETE /v1/files/{id}", s.requireUser(s.handleDeleteFile))

	// Folders.
	mux.HandleFunc("POST /v1/folders", s.requireUser(s.handleCreateFolder))
	mux.HandleFunc("GET /v1/folders", s.requireUser(s.handleListFolders))

	// Sharing.
	mux.HandleFunc("POST /v1/files/{id}/share", s.requireUser(s.handleCreateShare))
	mux.HandleFunc("DELETE /v1/files/{id}/share", s.requireUser(s.handleUnshare))
	mux.HandleFunc("POST /v1/files/{id}/grants", s.requireUser(s.handleCreateGrant))
	mux.HandleFunc("GET /v1/shared", s.requireUser(s.handleListShared))

	// Public link downloads, no auth.
	mux.HandleFunc("GET /s/{token}", s.handleSharedDownload)

	// Admin.
	mux.HandleFunc("POST /v1/admin/gc", s.requireAdmin(s.handleAdminGC))

	return mux
}

type userHandler func(http.ResponseWriter, *http.Request, *models.User)

// requireUser authenticates the bearer session token and passes the user
// through the request context.
func (s *Server) requireUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.authenticate(r)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		if user == nil {
			s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("authentication required")))
			return
		}
		next(w, r, user)
	}
}

// requireAdmin additionally checks the admin role.
func (s *Server) requireAdmin(next userHandler) http.HandlerFunc {
	return s.requireUser(func(w http.ResponseWriter, r *http.Request, user *models.User) {
		if user.Role != store.UserRoleAdmin {
			s.writeErrorReq(w, r, http.StatusForbidden, forbidden(fmt.Errorf("admin role required")))
			return
		}
		next(w, r, user)
	})
}

// rateLimited gates a handler per (user, operation) on a fixed window.
func (s *Server) rateLimited(op string, next userHandler) userHandler {
	return func(w http.ResponseWriter, r *http.Request, user *models.User) {
		key := user.Username + "|" + op
		if s.opLimiter != nil && !s.opLimiter.Allow(key, time.Now()) {
			s.writeErrorReq(w, r, http.StatusTooManyRequests,
				tooManyRequests(fmt.Errorf("rate limit exceeded for %s; retry shortly", op)))
			return
		}
		next(w, r, user)
	}
}

func (s *Server) authenticate(r *http.Request) (*models.User, error) {
	token := bearerToken(r)
	if token == "" {
		return nil, nil
	}
	return s.authService.AuthenticateSessionToken(r.Context(), token, time.Now().UTC())
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
