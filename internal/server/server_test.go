package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"depot/internal/api"
	internalauth "depot/internal/auth"
	"depot/internal/blobstore"
	"depot/internal/config"
	"depot/internal/store"
)

// newTestServer creates a server over a temporary store and blob root.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	blobs, err := blobstore.NewLocalCAS(filepath.Join(dir, "blobs"))
	if err != nil {
		t.Fatalf("open blobstore: %v", err)
	}

	cfg := config.Default()
	// Generous limits so tests are not throttled by the default window.
	cfg.RateLimit.Calls = 1000
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New("127.0.0.1:0", st, blobs, &cfg, logger)
}

// seedUser provisions an account and returns a live session token.
func seedUser(t *testing.T, srv *Server, username, password, role string, quotaBytes int64) string {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	hash, err := internalauth.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if _, err := srv.store.CreateUser(ctx, username, hash, role, quotaBytes, now); err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}

	result, err := srv.authService.Login(ctx, username, password, now)
	if err != nil {
		t.Fatalf("login %s: %v", username, err)
	}
	return result.Token
}

func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// uploadFiles posts a multipart batch of (filename, content) pairs.
func uploadFiles(t *testing.T, h http.Handler, token, folder string, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if folder != "" {
		if err := form.WriteField("folder", folder); err != nil {
			t.Fatalf("write folder field: %v", err)
		}
	}
	for filename, content := range files {
		part, err := form.CreateFormFile("files", filename)
		if err != nil {
			t.Fatalf("create form file: %v", err)
		}
		if _, err := part.Write([]byte(content)); err != nil {
			t.Fatalf("write form file: %v", err)
		}
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/files", &buf)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeUploadResponse(t *testing.T, w *httptest.ResponseRecorder) api.UploadBatchResponse {
	t.Helper()
	var resp api.UploadBatchResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode upload response: %v (%s)", err, w.Body.String())
	}
	return resp
}

func TestListenAddrRemoteGuard(t *testing.T) {
	t.Run("allows loopback", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "")
		addr, err := ListenAddr("http://127.0.0.1:7411")
		if err != nil {
			t.Fatalf("expected loopback to be allowed, got error: %v", err)
		}
		if addr != "127.0.0.1:7411" {
			t.Fatalf("unexpected addr: %s", addr)
		}
	})

	t.Run("blocks non-loopback by default", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "")
		_, err := ListenAddr("http://0.0.0.0:7411")
		if err == nil {
			t.Fatal("expected error for non-loopback listen host")
		}
	})

	t.Run("allows non-loopback when explicitly enabled", func(t *testing.T) {
		t.Setenv(allowRemoteEnvKey, "true")
		addr, err := ListenAddr("http://0.0.0.0:7411")
		if err != nil {
			t.Fatalf("expected allow-remote to permit host, got error: %v", err)
		}
		if addr != "0.0.0.0:7411" {
			t.Fatalf("unexpected addr: %s", addr)
		}
	})
}

func TestRequireUserDeniesMissingToken(t *testing.T) {
	srv := newTestServer(t)
	h := srv.routes()

	w := doJSON(t, h, http.MethodGet, "/v1/files", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (%s)", w.Code, w.Body.String())
	}
	var errResp api.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	if errResp.ErrorCode != ErrCodeUnauthorized {
		t.Fatalf("expected error_code %d, got %d", ErrCodeUnauthorized, errResp.ErrorCode)
	}
}

func TestLoginFlowAndMe(t *testing.T) {
	srv := newTestServer(t)
	seedUser(t, srv, "alice", "password-123", store.UserRoleMember, 10<<20)
	h := srv.routes()

	w := doJSON(t, h, http.MethodPost, "/v1/auth/login", "", api.LoginRequest{
		Username: "alice", Password: "password-123",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var login api.LoginResponse
	if err := json.Unmarshal(w.Body.Bytes(), &login); err != nil {
		t.Fatalf("decode login: %v", err)
	}
	if login.Token == "" || login.Username != "alice" {
		t.Fatalf("unexpected login response: %+v", login)
	}

	me := doJSON(t, h, http.MethodGet, "/v1/me", login.Token, nil)
	if me.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", me.Code, me.Body.String())
	}
	var usage api.UsageResponse
	if err := json.Unmarshal(me.Body.Bytes(), &usage); err != nil {
		t.Fatalf("decode usage: %v", err)
	}
	if usage.QuotaBytes != 10<<20 || usage.UsedBytes != 0 {
		t.Fatalf("unexpected usage: %+v", usage)
	}
	if usage.QuotaDisplay != "10.00 MB" {
		t.Fatalf("unexpected quota display: %q", usage.QuotaDisplay)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	srv := newTestServer(t)
	seedUser(t, srv, "alice", "password-123", store.UserRoleMember, 10<<20)
	h := srv.routes()

	w := doJSON(t, h, http.MethodPost, "/v1/auth/login", "", api.LoginRequest{
		Username: "alice", Password: "wrong-password",
	})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (%s)", w.Code, w.Body.String())
	}
}

func TestLogoutRevokesSession(t *testing.T) {
	srv := newTestServer(t)
	token := seedUser(t, srv, "alice", "password-123", store.UserRoleMember, 10<<20)
	h := srv.routes()

	w := doJSON(t, h, http.MethodPost, "/v1/auth/logout", token, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d (%s)", w.Code, w.Body.String())
	}

	after := doJSON(t, h, http.MethodGet, "/v1/me", token, nil)
	if after.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", after.Code)
	}
}
