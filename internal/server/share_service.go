package server

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"depot/internal/api"
	internalauth "depot/internal/auth"
	"depot/internal/models"
	"depot/internal/store"
)

// ShareService manages public tokenized links and private user-to-user
// grants. Only owners may share; grants and links never outlive the file.
type ShareService struct {
	store   *store.Store
	baseURL string
}

func NewShareService(st *store.Store, baseURL string) *ShareService {
	return &ShareService{store: st, baseURL: strings.TrimRight(baseURL, "/")}
}

// CreateShare mints (or returns) the public link for one owned file.
func (s *ShareService) CreateShare(ctx context.Context, user *models.User, fileID string) (*api.ShareResponse, error) {
	if _, err := s.requireOwned(ctx, user, fileID); err != nil {
		return nil, err
	}

	share, err := s.store.CreateShare(ctx, fileID, uuid.NewString(), user.Username, time.Now().UTC())
	if err != nil {
		return nil, storeFailure(err)
	}
	return s.shareResponse(share), nil
}

// Unshare revokes all public links for one owned file.
func (s *ShareService) Unshare(ctx context.Context, user *models.User, fileID string) (int64, error) {
	if _, err := s.requireOwned(ctx, user, fileID); err != nil {
		return 0, err
	}
	revoked, err := s.store.DeactivateSharesForFile(ctx, fileID)
	if err != nil {
		return 0, storeFailure(err)
	}
	return revoked, nil
}

// ResolveToken returns the active share and its file for a public token.
// Unknown, revoked, and dangling tokens are indistinguishable.
func (s *ShareService) ResolveToken(ctx context.Context, token string) (*models.Share, *models.File, error) {
	share, err := s.store.GetShareByToken(ctx, token)
	if err != nil {
		return nil, nil, storeFailure(err)
	}
	if share == nil || !share.Active {
		return nil, nil, notFoundCode(fmt.Errorf("share not found"), ErrCodeShareNotFound)
	}

	file, err := s.store.GetFile(ctx, share.FileID)
	if err != nil {
		return nil, nil, storeFailure(err)
	}
	if file == nil {
		return nil, nil, notFoundCode(fmt.Errorf("share not found"), ErrCodeShareNotFound)
	}
	return share, file, nil
}

// RecordDownload bumps the link's download counter.
func (s *ShareService) RecordDownload(ctx context.Context, share *models.Share) {
	_ = s.store.IncrementDownloadCount(ctx, share.ID)
}

// Grant shares one owned file privately with another user.
func (s *ShareService) Grant(ctx context.Context, user *models.User, fileID, username string) (*models.SharedFile, error) {
	if _, err := s.requireOwned(ctx, user, fileID); err != nil {
		return nil, err
	}

	normalized, err := internalauth.NormalizeUsername(username)
	if err != nil {
		return nil, badRequestCode(err, ErrCodeInvalidUsername)
	}
	if normalized == user.Username {
		return nil, badRequest(fmt.Errorf("cannot share a file with yourself"))
	}

	target, err := s.store.GetUserByUsername(ctx, normalized)
	if err != nil {
		return nil, storeFailure(err)
	}
	if target == nil {
		return nil, notFoundCode(fmt.Errorf("user %q not found", normalized), ErrCodeUserNotFound)
	}

	grant, err := s.store.CreateGrant(ctx, fileID, user.Username, normalized, time.Now().UTC())
	if err != nil {
		return nil, storeFailure(err)
	}
	return grant, nil
}

// SharedWith lists files other users privately shared with the caller.
func (s *ShareService) SharedWith(ctx context.Context, user *models.User) ([]api.SharedEntry, error) {
	entries, err := s.store.ListSharedWithUser(ctx, user.Username)
	if err != nil {
		return nil, storeFailure(err)
	}
	out := make([]api.SharedEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, api.SharedEntry{
			File:     entry.File,
			SharedBy: entry.SharedBy,
			SharedAt: entry.SharedAt,
		})
	}
	return out, nil
}

func (s *ShareService) requireOwned(ctx context.Context, user *models.User, fileID string) (*models.File, error) {
	file, err := s.store.GetFileOwned(ctx, fileID, user.Username)
	if err != nil {
		return nil, storeFailure(err)
	}
	if file == nil {
		return nil, notFound(fmt.Errorf("file not found"))
	}
	return file, nil
}

func (s *ShareService) shareResponse(share *models.Share) *api.ShareResponse {
	return &api.ShareResponse{
		FileID:        share.FileID,
		Token:         share.Token,
		URL:           s.baseURL + "/s/" + share.Token,
		Active:        share.Active,
		DownloadCount: share.DownloadCount,
		CreatedAt:     share.CreatedAt,
	}
}
