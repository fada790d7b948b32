package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"depot/internal/api"
	"depot/internal/blobstore"
	"depot/internal/models"
	"depot/internal/store"
)

// FileService coordinates uploads, downloads, and deletes across the
// catalog and the blob store. It owns the dedup decision: content is
// staged and hashed first, then the catalog transaction decides whether
// the user pays for it.
type FileService struct {
	store  *store.Store
	blobs  blobstore.BlobStore
	logger *slog.Logger
}

func NewFileService(st *store.Store, blobs blobstore.BlobStore, logger *slog.Logger) *FileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileService{store: st, blobs: blobs, logger: logger}
}

// UploadItem is one file of a batch upload.
type UploadItem struct {
	Filename string
	Content  io.Reader
}

// UploadBatch stores a batch of files for one user. Quota rejections and
// bad filenames fail their own item and the batch continues; a blob store
// failure aborts the whole batch since later items would fail the same
// way. Uploaded counts every recorded file, duplicates included; Skipped
// counts quota rejections only.
func (f *FileService) UploadBatch(ctx context.Context, user *models.User, items []UploadItem, folder string) (*api.UploadBatchResponse, error) {
	if len(items) == 0 {
		return nil, badRequestCode(fmt.Errorf("at least one file is required"), ErrCodeMissingRequired)
	}

	if folder != "" {
		if err := f.ensureFolder(ctx, user.Username, folder); err != nil {
			return nil, err
		}
	}

	resp := &api.UploadBatchResponse{Results: make([]api.UploadResult, 0, len(items))}
	for _, item := range items {
		result, quotaSkipped, err := f.uploadOne(ctx, user, item, folder)
		if err != nil {
			return nil, err
		}
		switch {
		case quotaSkipped:
			resp.Skipped++
		case result.Status == api.UploadStatusStored, result.Status == api.UploadStatusDuplicate:
			resp.Uploaded++
		}
		resp.Results = append(resp.Results, result)
	}
	return resp, nil
}

// uploadOne records one file. The second return reports a quota
// rejection, which fails the item but counts as skipped rather than
// uploaded in the batch totals.
func (f *FileService) uploadOne(ctx context.Context, user *models.User, item UploadItem, folder string) (api.UploadResult, bool, error) {
	filename := sanitizeFilename(item.Filename)
	if filename == "" {
		return api.UploadResult{
			Filename: item.Filename,
			Status:   api.UploadStatusFailed,
			Error:    "filename is required",
		}, false, nil
	}

	staged, err := f.blobs.Stage(ctx, item.Content)
	if err != nil {
		return api.UploadResult{}, false, blobFailure(fmt.Errorf("stage %s: %w", filename, err))
	}

	file, err := f.store.CreateUpload(ctx, store.UploadParams{
		Username:    user.Username,
		Filename:    filename,
		SizeBytes:   staged.SizeBytes,
		ContentHash: staged.SHA256,
		Folder:      folder,
		Now:         time.Now().UTC(),
	}, func(ctx context.Context) error {
		return f.blobs.Promote(ctx, staged)
	})
	if err != nil {
		f.blobs.Discard(staged)
		if store.IsQuotaExceeded(err) {
			f.logger.Info("upload rejected by quota", "user", user.Username, "filename", filename, "size", staged.SizeBytes)
			return api.UploadResult{
				Filename: filename,
				Status:   api.UploadStatusFailed,
				Error:    err.Error(),
			}, true, nil
		}
		return api.UploadResult{}, false, classifyStoreError(err)
	}

	status := api.UploadStatusStored
	if file.IsDuplicate {
		status = api.UploadStatusDuplicate
		f.logger.Debug("duplicate upload detected", "user", user.Username, "hash", file.ContentHash)
	}
	return api.UploadResult{Filename: filename, Status: status, File: file}, false, nil
}

// Download opens one file for reading. Owners and private grantees may
// read; everyone else sees not found.
func (f *FileService) Download(ctx context.Context, user *models.User, fileID string) (*models.File, io.ReadCloser, error) {
	file, err := f.store.GetFile(ctx, fileID)
	if err != nil {
		return nil, nil, storeFailure(err)
	}
	if file == nil {
		return nil, nil, notFound(fmt.Errorf("file not found"))
	}

	if file.Uploader != user.Username {
		granted, err := f.store.HasGrant(ctx, fileID, user.Username)
		if err != nil {
			return nil, nil, storeFailure(err)
		}
		if !granted {
			return nil, nil, notFound(fmt.Errorf("file not found"))
		}
	}

	return f.openContent(ctx, file)
}

// OpenShared opens one file for an anonymous public-link download.
func (f *FileService) OpenShared(ctx context.Context, file *models.File) (io.ReadCloser, error) {
	_, rc, err := f.openContent(ctx, file)
	return rc, err
}

func (f *FileService) openContent(ctx context.Context, file *models.File) (*models.File, io.ReadCloser, error) {
	rc, err := f.blobs.Open(ctx, file.ContentHash)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			// Catalog row without a blob means a prior crash or sweep bug.
			f.logger.Error("catalog references missing blob", "file_id", file.ID, "hash", file.ContentHash)
		}
		return nil, nil, blobFailure(err)
	}
	return file, rc, nil
}

// Delete removes one owned file record and, when the last catalog
// reference is gone, the underlying blob. Blob removal happens after the
// catalog commit, under a store transaction that re-checks the reference
// count: a concurrent same-content upload either commits before the
// re-check (the blob stays) or serializes after the removal and restages
// the content. A removal failure leaves an orphan for the GC sweep
// rather than an inconsistent catalog.
func (f *FileService) Delete(ctx context.Context, user *models.User, fileID string) (*models.File, error) {
	file, remaining, err := f.store.DeleteUpload(ctx, fileID, user.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound(fmt.Errorf("file not found"))
		}
		return nil, classifyStoreError(err)
	}

	if remaining == 0 {
		reclaimed, err := f.store.ReclaimIfUnreferenced(ctx, file.ContentHash, func(ctx context.Context) error {
			return f.blobs.Delete(ctx, file.ContentHash)
		})
		if err != nil {
			f.logger.Warn("blob removal failed, leaving orphan for gc",
				"hash", file.ContentHash, "error", err)
		} else if reclaimed {
			f.logger.Debug("blob reclaimed", "hash", file.ContentHash, "size", file.SizeBytes)
		}
	}
	return file, nil
}

// GC sweeps the blob store for blobs no catalog row references. Orphans
// accumulate only after crashes between a catalog commit and its blob
// removal.
func (f *FileService) GC(ctx context.Context, dryRun bool) (*api.GCResponse, error) {
	resp := &api.GCResponse{DryRun: dryRun}

	err := f.blobs.Walk(ctx, func(digest string, sizeBytes int64) error {
		resp.ScannedBlobs++
		if dryRun {
			refs, err := f.store.CountReferences(ctx, digest)
			if err != nil {
				return err
			}
			if refs > 0 {
				return nil
			}
			resp.OrphanBlobs++
			resp.Orphans = append(resp.Orphans, digest)
			return nil
		}

		// Removal runs under a store transaction so an upload racing the
		// sweep cannot commit a reference to a blob being removed.
		reclaimed, err := f.store.ReclaimIfUnreferenced(ctx, digest, func(ctx context.Context) error {
			return f.blobs.Delete(ctx, digest)
		})
		if err != nil {
			return err
		}
		if !reclaimed {
			return nil
		}
		resp.OrphanBlobs++
		resp.Orphans = append(resp.Orphans, digest)
		resp.RemovedBlobs++
		resp.ReclaimedBytes += sizeBytes
		return nil
	})
	if err != nil {
		return nil, internalError(fmt.Errorf("gc sweep: %w", err))
	}

	f.logger.Info("gc sweep complete", "scanned", resp.ScannedBlobs,
		"orphans", resp.OrphanBlobs, "removed", resp.RemovedBlobs,
		"reclaimed_bytes", resp.ReclaimedBytes, "dry_run", dryRun)
	return resp, nil
}

func (f *FileService) ensureFolder(ctx context.Context, owner, name string) error {
	existing, err := f.store.GetFolderByName(ctx, owner, name)
	if err != nil {
		return storeFailure(err)
	}
	if existing != nil {
		return nil
	}
	if _, err := f.store.CreateFolder(ctx, name, owner, time.Now().UTC()); err != nil {
		if errors.Is(err, store.ErrFolderExists) {
			return nil
		}
		return storeFailure(err)
	}
	return nil
}
