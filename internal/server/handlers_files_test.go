package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"depot/internal/api"
	"depot/internal/store"
)

func TestUploadBatchDedupAndCounts(t *testing.T) {
	srv := newTestServer(t)
	token := seedUser(t, srv, "alice", "password-123", store.UserRoleMember, 10<<20)
	h := srv.routes()

	w := uploadFiles(t, h, token, "", map[string]string{"a.txt": "same content"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	first := decodeUploadResponse(t, w)
	if first.Uploaded != 1 || first.Skipped != 0 {
		t.Fatalf("unexpected counts: %+v", first)
	}

	// A duplicate is still a recorded upload; skipped is reserved for
	// quota rejections.
	w = uploadFiles(t, h, token, "", map[string]string{"b.txt": "same content"})
	second := decodeUploadResponse(t, w)
	if second.Uploaded != 1 || second.Skipped != 0 {
		t.Fatalf("expected duplicate to count as uploaded, got %+v", second)
	}
	if second.Results[0].Status != api.UploadStatusDuplicate {
		t.Fatalf("expected duplicate status, got %q", second.Results[0].Status)
	}
	if !second.Results[0].File.IsDuplicate {
		t.Fatal("expected is_duplicate on the record")
	}

	me := doJSON(t, h, http.MethodGet, "/v1/me", token, nil)
	var usage api.UsageResponse
	if err := json.Unmarshal(me.Body.Bytes(), &usage); err != nil {
		t.Fatalf("decode usage: %v", err)
	}
	if usage.UsedBytes != int64(len("same content")) {
		t.Fatalf("expected single charge, got %d", usage.UsedBytes)
	}
	if usage.FileCount != 2 || usage.DuplicateCount != 1 {
		t.Fatalf("unexpected counts: %+v", usage)
	}
}

func TestUploadQuotaRejectionKeepsBatchGoing(t *testing.T) {
	srv := newTestServer(t)
	token := seedUser(t, srv, "alice", "password-123", store.UserRoleMember, 20)
	h := srv.routes()

	// One oversized file fails, the small one still lands.
	w := uploadFiles(t, h, token, "", map[string]string{
		"big.txt":   strings.Repeat("x", 50),
		"small.txt": "tiny",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	resp := decodeUploadResponse(t, w)

	var failed, stored int
	for _, result := range resp.Results {
		switch result.Status {
		case api.UploadStatusFailed:
			failed++
			if !strings.Contains(result.Error, "storage quota exceeded") {
				t.Fatalf("expected quota message, got %q", result.Error)
			}
		case api.UploadStatusStored:
			stored++
		}
	}
	if failed != 1 || stored != 1 {
		t.Fatalf("expected 1 failed and 1 stored, got %+v", resp)
	}
	if resp.Uploaded != 1 || resp.Skipped != 1 {
		t.Fatalf("expected uploaded=1 skipped=1, got uploaded=%d skipped=%d", resp.Uploaded, resp.Skipped)
	}
}

func TestListFilesGroupedByFolder(t *testing.T) {
	srv := newTestServer(t)
	token := seedUser(t, srv, "alice", "password-123", store.UserRoleMember, 10<<20)
	h := srv.routes()

	if w := uploadFiles(t, h, token, "", map[string]string{"loose.txt": "l"}); w.Code != http.StatusCreated {
		t.Fatalf("upload loose: %d (%s)", w.Code, w.Body.String())
	}
	if w := uploadFiles(t, h, token, "docs", map[string]string{"doc.txt": "d"}); w.Code != http.StatusCreated {
		t.Fatalf("upload docs: %d (%s)", w.Code, w.Body.String())
	}

	w := doJSON(t, h, http.MethodGet, "/v1/files", token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var resp api.ListFilesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(resp.Groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(resp.Groups))
	}
	if resp.Groups[0].Name != "" || resp.Groups[1].Name != "docs" {
		t.Fatalf("expected default group first then docs, got %q %q", resp.Groups[0].Name, resp.Groups[1].Name)
	}
	if len(resp.Groups[1].Files) != 1 || resp.Groups[1].Files[0].Filename != "doc.txt" {
		t.Fatalf("unexpected docs group: %+v", resp.Groups[1])
	}
}

func TestDownloadRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	token := seedUser(t, srv, "alice", "password-123", store.UserRoleMember, 10<<20)
	h := srv.routes()

	w := uploadFiles(t, h, token, "", map[string]string{"hello.txt": "hello world"})
	resp := decodeUploadResponse(t, w)
	fileID := resp.Results[0].File.ID

	dl := doJSON(t, h, http.MethodGet, "/v1/files/"+fileID+"/content", token, nil)
	if dl.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", dl.Code, dl.Body.String())
	}
	if dl.Body.String() != "hello world" {
		t.Fatalf("unexpected content: %q", dl.Body.String())
	}
	if cd := dl.Header().Get("Content-Disposition"); !strings.Contains(cd, "hello.txt") {
		t.Fatalf("expected filename in disposition, got %q", cd)
	}
}

func TestDownloadDeniedForStranger(t *testing.T) {
	srv := newTestServer(t)
	aliceToken := seedUser(t, srv, "alice", "password-123", store.UserRoleMember, 10<<20)
	bobToken := seedUser(t, srv, "bob", "password-123", store.UserRoleMember, 10<<20)
	h := srv.routes()

	w := uploadFiles(t, h, aliceToken, "", map[string]string{"secret.txt": "classified"})
	fileID := decodeUploadResponse(t, w).Results[0].File.ID

	dl := doJSON(t, h, http.MethodGet, "/v1/files/"+fileID+"/content", bobToken, nil)
	if dl.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for stranger, got %d", dl.Code)
	}
}

func TestDeleteDependentDuplicatesConflict(t *testing.T) {
	srv := newTestServer(t)
	token := seedUser(t, srv, "alice", "password-123", store.UserRoleMember, 10<<20)
	h := srv.routes()

	w := uploadFiles(t, h, token, "", map[string]string{"orig.txt": "payload"})
	origID := decodeUploadResponse(t, w).Results[0].File.ID
	w = uploadFiles(t, h, token, "", map[string]string{"copy.txt": "payload"})
	copyID := decodeUploadResponse(t, w).Results[0].File.ID

	del := doJSON(t, h, http.MethodDelete, "/v1/files/"+origID, token, nil)
	if del.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d (%s)", del.Code, del.Body.String())
	}
	var errResp api.ErrorResponse
	if err := json.Unmarshal(del.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if errResp.ErrorCode != ErrCodeDependentDuplicates {
		t.Fatalf("expected error_code %d, got %d", ErrCodeDependentDuplicates, errResp.ErrorCode)
	}

	if del := doJSON(t, h, http.MethodDelete, "/v1/files/"+copyID, token, nil); del.Code != http.StatusOK {
		t.Fatalf("delete copy: %d (%s)", del.Code, del.Body.String())
	}
	if del := doJSON(t, h, http.MethodDelete, "/v1/files/"+origID, token, nil); del.Code != http.StatusOK {
		t.Fatalf("delete original: %d (%s)", del.Code, del.Body.String())
	}

	// Content is gone once the last reference is deleted.
	dl := doJSON(t, h, http.MethodGet, "/v1/files/"+origID+"/content", token, nil)
	if dl.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", dl.Code)
	}
}

func TestUploadRateLimited(t *testing.T) {
	srv := newTestServer(t)
	srv.opLimiter = newOpRateLimiter(2, time.Second)
	token := seedUser(t, srv, "alice", "password-123", store.UserRoleMember, 10<<20)
	h := srv.routes()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := uploadFiles(t, h, token, "", map[string]string{"f.txt": "content"})
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusCreated || codes[1] != http.StatusCreated {
		t.Fatalf("first two uploads should pass, got %v", codes)
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Fatalf("third upload should be throttled, got %v", codes)
	}
}

func TestCreateFolderConflict(t *testing.T) {
	srv := newTestServer(t)
	token := seedUser(t, srv, "alice", "password-123", store.UserRoleMember, 10<<20)
	h := srv.routes()

	w := doJSON(t, h, http.MethodPost, "/v1/folders", token, api.FolderCreateRequest{Name: "projects"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (%s)", w.Code, w.Body.String())
	}
	w = doJSON(t, h, http.MethodPost, "/v1/folders", token, api.FolderCreateRequest{Name: "projects"})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 on duplicate folder, got %d", w.Code)
	}
}

func TestAdminGCRemovesOrphans(t *testing.T) {
	srv := newTestServer(t)
	adminToken := seedUser(t, srv, "root", "password-123", store.UserRoleAdmin, 10<<20)
	memberToken := seedUser(t, srv, "alice", "password-123", store.UserRoleMember, 10<<20)
	h := srv.routes()

	// A member cannot run the sweep.
	if w := doJSON(t, h, http.MethodPost, "/v1/admin/gc", memberToken, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for member, got %d", w.Code)
	}

	// Plant an orphan blob with no catalog row.
	ctx := context.Background()
	staged, err := srv.fileService.blobs.Stage(ctx, strings.NewReader("orphaned bytes"))
	if err != nil {
		t.Fatalf("stage orphan: %v", err)
	}
	if err := srv.fileService.blobs.Promote(ctx, staged); err != nil {
		t.Fatalf("promote orphan: %v", err)
	}

	w := doJSON(t, h, http.MethodPost, "/v1/admin/gc?dry_run=true", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", w.Code, w.Body.String())
	}
	var dry api.GCResponse
	if err := json.Unmarshal(w.Body.Bytes(), &dry); err != nil {
		t.Fatalf("decode gc: %v", err)
	}
	if dry.OrphanBlobs != 1 || dry.RemovedBlobs != 0 {
		t.Fatalf("dry run should count but not remove: %+v", dry)
	}

	w = doJSON(t, h, http.MethodPost, "/v1/admin/gc", adminToken, nil)
	var real api.GCResponse
	if err := json.Unmarshal(w.Body.Bytes(), &real); err != nil {
		t.Fatalf("decode gc: %v", err)
	}
	if real.RemovedBlobs != 1 || real.ReclaimedBytes != int64(len("orphaned bytes")) {
		t.Fatalf("sweep should remove the orphan: %+v", real)
	}

	exists, err := srv.fileService.blobs.Exists(ctx, staged.SHA256)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatal("orphan blob should be gone after sweep")
	}
}
