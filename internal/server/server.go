package server

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"depot/internal/blobstore"
	"depot/internal/config"
	"depot/internal/store"
)

const (
	allowRemoteEnvKey = "DEPOT_ALLOW_REMOTE"
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 5 * time.Minute
	writeTimeout      = 10 * time.Minute
	idleTimeout       = 60 * time.Second

	loginMaxFailures = 5
	loginWindow      = 5 * time.Minute
	loginBlockedFor  = 15 * time.Minute
)

// Server wraps HTTP handlers for the depot API.
type Server struct {
	addr         string
	store        *store.Store
	authService  *AuthService
	fileService  *FileService
	shareService *ShareService
	logger       *slog.Logger

	maxUploadBytes     int64
	multipartMaxMemory int64

	loginLimiter *loginRateLimiter
	opLimiter    *opRateLimiter
}

// New creates a new server instance.
func New(addr string, st *store.Store, blobs blobstore.BlobStore, cfg *config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}

	return &Server{
		addr:               addr,
		store:              st,
		authService:        NewAuthService(st),
		fileService:        NewFileService(st, blobs, logger),
		shareService:       NewShareService(st, cfg.APIURL),
		logger:             logger,
		maxUploadBytes:     cfg.Storage.MaxUploadBytes,
		multipartMaxMemory: cfg.Storage.MultipartMaxMemory,
		loginLimiter:       newLoginRateLimiter(loginMaxFailures, loginWindow, loginBlockedFor),
		opLimiter: newOpRateLimiter(cfg.RateLimit.Calls,
			time.Duration(cfg.RateLimit.WindowSeconds)*time.Second),
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	s.log().Info("starting server", "addr", s.addr)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.withRequestLogging(s.routes()),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	return server.ListenAndServe()
}

// ListenAddr converts a base API URL into a listen address.
func ListenAddr(apiURL string) (string, error) {
	if apiURL == "" {
		return "", fmt.Errorf("api url is required")
	}
	if u, err := url.Parse(apiURL); err == nil && u.Host != "" {
		host := u.Hostname()
		if !isAllowedListenHost(host) {
			return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
		}
		return u.Host, nil
	}

	host, _, err := net.SplitHostPort(apiURL)
	if err == nil && !isAllowedListenHost(host) {
		return "", fmt.Errorf("remote listen host %q requires %s=true", host, allowRemoteEnvKey)
	}

	return apiURL, nil
}

func isAllowedListenHost(host string) bool {
	if host == "" {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv(allowRemoteEnvKey)), "true") {
		return true
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (s *Server) log() *slog.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
